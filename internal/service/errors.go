// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrInvalidTransition — недопустимый переход статуса.
	ErrInvalidTransition = errors.New("недопустимый переход статуса")
	// ErrAccessExpired — срок доступа к deliverable истёк.
	ErrAccessExpired = errors.New("срок доступа истёк")
	// ErrAccessNotApproved — ассет не согласован для выдачи.
	ErrAccessNotApproved = errors.New("ассет не согласован для выдачи")
)
