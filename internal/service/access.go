// access.go — сервис выдачи deliverable клиенту.
// Проверяет право доступа, считает просмотры и скачивания,
// выпускает короткоживущие HS256-токены на получение файла.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gomediastore/internal/domain/model"
	"github.com/bigkaa/gomediastore/internal/repository"
)

// Режимы доступа к файлу.
const (
	AccessModeView     = "view"
	AccessModeDownload = "download"
)

// Prometheus-метрики доступа.
var (
	accessRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dm_access_requests_total",
		Help: "Количество запросов доступа к deliverable по режиму и результату.",
	}, []string{"mode", "result"})
)

// AccessGrant — выданное разрешение на получение файла.
type AccessGrant struct {
	// Token — подписанный HS256 JWT для обращения к хранилищу
	Token string `json:"token"`
	// StorageRef — ссылка на файл во внешнем хранилище
	StorageRef string `json:"storage_ref"`
	// ExpiresAt — момент истечения токена
	ExpiresAt time.Time `json:"expires_at"`
}

// AccessService — сервис доступа клиентов к deliverable-ассетам.
type AccessService struct {
	repo     repository.AssetRepository
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewAccessService создаёт сервис доступа.
func NewAccessService(repo repository.AssetRepository, secret string, tokenTTL time.Duration, logger *slog.Logger) *AccessService {
	return &AccessService{
		repo:     repo,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With(slog.String("component", "access_service")),
	}
}

// Request проверяет право доступа и выдаёт токен на получение файла.
// mode — view или download. Скачивание фиксирует статус delivered
// (отображаемый статус, дальнейший доступ не блокирует).
func (s *AccessService) Request(ctx context.Context, assetID, mode, subject string) (*AccessGrant, error) {
	if mode != AccessModeView && mode != AccessModeDownload {
		return nil, fmt.Errorf("%w: режим доступа должен быть view или download", ErrValidation)
	}

	a, err := s.repo.GetByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			accessRequestsTotal.WithLabelValues(mode, "not_found").Inc()
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение ассета: %w", err)
	}

	if err := s.authorize(a); err != nil {
		accessRequestsTotal.WithLabelValues(mode, "denied").Inc()
		return nil, err
	}

	if err := s.recordAccess(ctx, a, mode); err != nil {
		return nil, err
	}

	grant, err := s.mintToken(a, mode, subject)
	if err != nil {
		return nil, err
	}

	accessRequestsTotal.WithLabelValues(mode, "ok").Inc()
	s.logger.Info("Доступ выдан",
		slog.String("asset_id", assetID),
		slog.String("mode", mode),
		slog.String("subject", subject),
	)
	return grant, nil
}

// authorize проверяет право клиента на ассет.
// Различает причины отказа: не согласован и срок истёк.
func (s *AccessService) authorize(a *model.Asset) error {
	if a.Status == model.StatusDeleted {
		return ErrNotFound
	}
	if !a.IsDeliverable() {
		return ErrAccessNotApproved
	}
	switch a.ApprovalStatus {
	case model.ApprovalApproved, model.ApprovalDelivered:
		// allowed
	default:
		return ErrAccessNotApproved
	}
	if a.Expired(s.now()) {
		return ErrAccessExpired
	}
	return nil
}

// recordAccess увеличивает счётчик и фиксирует delivered при скачивании.
func (s *AccessService) recordAccess(ctx context.Context, a *model.Asset, mode string) error {
	if mode == AccessModeDownload {
		if err := s.repo.IncrementDownloadCount(ctx, a.AssetID); err != nil {
			return fmt.Errorf("счётчик скачиваний: %w", err)
		}
		// Первое скачивание переводит approved → delivered.
		// Проигрыш гонки конкурентному скачиванию не является ошибкой.
		if a.ApprovalStatus == model.ApprovalApproved {
			err := s.repo.SetApprovalStatus(ctx, a.AssetID, model.ApprovalApproved, model.ApprovalDelivered)
			if err != nil && !errors.Is(err, repository.ErrStaleTransition) {
				s.logger.Warn("Статус delivered не зафиксирован",
					slog.String("asset_id", a.AssetID),
					slog.String("error", err.Error()),
				)
			}
		}
		return nil
	}

	if err := s.repo.IncrementViewCount(ctx, a.AssetID); err != nil {
		return fmt.Errorf("счётчик просмотров: %w", err)
	}
	return nil
}

// mintToken выпускает HS256 JWT на получение файла из хранилища.
func (s *AccessService) mintToken(a *model.Asset, mode, subject string) (*AccessGrant, error) {
	now := s.now()
	expires := now.Add(s.tokenTTL)

	claims := jwt.MapClaims{
		"sub":         subject,
		"asset_id":    a.AssetID,
		"storage_ref": a.StorageRef,
		"mode":        mode,
		"iat":         now.Unix(),
		"exp":         expires.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("подпись токена доступа: %w", err)
	}

	return &AccessGrant{
		Token:      signed,
		StorageRef: a.StorageRef,
		ExpiresAt:  expires,
	}, nil
}
