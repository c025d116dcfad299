// Пакет workflow — конечные автоматы жизненного цикла ассета.
//
// Две независимые оси:
//   - ингест: uploaded → processing → ready|failed (репортится транскодером)
//   - согласование: none → pending → approved|revision_requested,
//     revision_requested → pending (после повторной передачи),
//     approved → delivered (отображаемый статус после скачивания клиентом)
//
// Сами статусы хранятся в строке ассета (таблица assets); пакет содержит
// только матрицы допустимых переходов и их валидацию. Сериализация
// конкурентных переходов — на уровне repository (условный UPDATE).
package workflow

import (
	"fmt"

	"github.com/bigkaa/gomediastore/internal/domain/model"
)

// Коды ошибок переходов.
const (
	// CodeInvalidTransition — переход недопустим из текущего статуса.
	CodeInvalidTransition = "INVALID_TRANSITION"
)

// TransitionError — ошибка перехода между статусами.
type TransitionError struct {
	Code    string // Машиночитаемый код (INVALID_TRANSITION)
	Message string // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// approvalTransitions — матрица допустимых переходов статуса согласования.
// Ключ — текущий статус, значение — набор допустимых целевых статусов.
var approvalTransitions = map[model.ApprovalStatus]map[model.ApprovalStatus]bool{
	model.ApprovalNone:              {model.ApprovalPending: true},
	model.ApprovalPending:           {model.ApprovalApproved: true, model.ApprovalRevisionRequested: true},
	model.ApprovalRevisionRequested: {model.ApprovalPending: true},
	model.ApprovalApproved:          {model.ApprovalDelivered: true},
	model.ApprovalDelivered:         {}, // Конечный отображаемый статус
}

// ingestTransitions — матрица допустимых переходов статуса обработки.
// deleted (soft delete) достижим из любого статуса.
var ingestTransitions = map[model.IngestStatus]map[model.IngestStatus]bool{
	model.StatusUploaded:   {model.StatusProcessing: true, model.StatusDeleted: true},
	model.StatusProcessing: {model.StatusReady: true, model.StatusFailed: true, model.StatusDeleted: true},
	model.StatusReady:      {model.StatusDeleted: true},
	model.StatusFailed:     {model.StatusProcessing: true, model.StatusDeleted: true}, // failed → processing: повторная обработка
	model.StatusDeleted:    {},
}

// CanTransitionApproval проверяет, допустим ли переход статуса согласования.
func CanTransitionApproval(from, to model.ApprovalStatus) bool {
	targets, ok := approvalTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// ValidateApprovalTransition возвращает TransitionError, если переход
// согласования from → to недопустим.
func ValidateApprovalTransition(from, to model.ApprovalStatus) error {
	if !CanTransitionApproval(from, to) {
		return &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("переход согласования %s → %s недопустим", from, to),
		}
	}
	return nil
}

// CanTransitionIngest проверяет, допустим ли переход статуса обработки.
func CanTransitionIngest(from, to model.IngestStatus) bool {
	targets, ok := ingestTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// ValidateIngestTransition возвращает TransitionError, если переход
// обработки from → to недопустим.
func ValidateIngestTransition(from, to model.IngestStatus) error {
	if !CanTransitionIngest(from, to) {
		return &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("переход обработки %s → %s недопустим", from, to),
		}
	}
	return nil
}

// ParseApprovalStatus преобразует строку в ApprovalStatus.
// Возвращает ошибку для недопустимых значений.
func ParseApprovalStatus(s string) (model.ApprovalStatus, error) {
	st := model.ApprovalStatus(s)
	switch st {
	case model.ApprovalNone, model.ApprovalPending, model.ApprovalApproved,
		model.ApprovalRevisionRequested, model.ApprovalDelivered:
		return st, nil
	default:
		return "", fmt.Errorf("недопустимый статус согласования: %q", s)
	}
}

// ParseIngestStatus преобразует строку в IngestStatus.
// Возвращает ошибку для недопустимых значений.
func ParseIngestStatus(s string) (model.IngestStatus, error) {
	st := model.IngestStatus(s)
	switch st {
	case model.StatusUploaded, model.StatusProcessing, model.StatusReady,
		model.StatusFailed, model.StatusDeleted:
		return st, nil
	default:
		return "", fmt.Errorf("недопустимый статус обработки: %q", s)
	}
}

// ParseAssetType преобразует строку в AssetType.
// Возвращает ошибку для недопустимых значений.
func ParseAssetType(s string) (model.AssetType, error) {
	at := model.AssetType(s)
	if !model.ValidAssetTypes[at] {
		return "", fmt.Errorf("недопустимый тип ассета: %q", s)
	}
	return at, nil
}
