// delivery.go — сервис доставки: классификация deliverable,
// согласование клиентом, запросы доработки, аннотации.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gomediastore/internal/domain/model"
	"github.com/bigkaa/gomediastore/internal/domain/workflow"
	"github.com/bigkaa/gomediastore/internal/notifier"
	"github.com/bigkaa/gomediastore/internal/repository"
)

// Prometheus-метрики доставки.
var (
	deliveryTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dm_delivery_transitions_total",
		Help: "Количество переходов статуса согласования по результату.",
	}, []string{"to", "result"})
)

// MarkDeliverableItem — результат классификации одного ассета.
type MarkDeliverableItem struct {
	AssetID string `json:"asset_id"`
	Error   string `json:"error"`
}

// MarkDeliverableResult — результат пакетной классификации.
// Частичный отказ допустим: каждый ассет обрабатывается независимо.
type MarkDeliverableResult struct {
	Succeeded []string              `json:"succeeded"`
	Failed    []MarkDeliverableItem `json:"failed"`
}

// DeliveryService — сервис доставки deliverable-ассетов.
type DeliveryService struct {
	repo       repository.AssetRepository
	cache      *SnapshotCache
	notifier   *notifier.Client
	defaultTTL time.Duration
	logger     *slog.Logger
}

// NewDeliveryService создаёт сервис доставки.
func NewDeliveryService(
	repo repository.AssetRepository,
	cache *SnapshotCache,
	nc *notifier.Client,
	defaultTTL time.Duration,
	logger *slog.Logger,
) *DeliveryService {
	return &DeliveryService{
		repo:       repo,
		cache:      cache,
		notifier:   nc,
		defaultTTL: defaultTTL,
		logger:     logger.With(slog.String("component", "delivery_service")),
	}
}

// MarkDeliverable классифицирует пакет готовых ассетов как deliverable
// и выставляет срок доступа. expiresAt == nil — срок по умолчанию.
// Операция идемпотентна по отдельному ассету: повторная классификация
// обновляет срок, не сбрасывая статус согласования.
func (s *DeliveryService) MarkDeliverable(ctx context.Context, assetIDs []string, expiresAt *time.Time, actor string) (*MarkDeliverableResult, error) {
	if len(assetIDs) == 0 {
		return nil, fmt.Errorf("%w: пустой список ассетов", ErrValidation)
	}

	expiry := time.Now().UTC().Add(s.defaultTTL)
	if expiresAt != nil {
		if !expiresAt.After(time.Now()) {
			return nil, fmt.Errorf("%w: срок доступа должен быть в будущем", ErrValidation)
		}
		expiry = expiresAt.UTC()
	}

	result := &MarkDeliverableResult{}
	batchProject := ""
	for _, assetID := range assetIDs {
		a, err := s.repo.GetByID(ctx, assetID)
		if err != nil {
			result.Failed = append(result.Failed, MarkDeliverableItem{
				AssetID: assetID, Error: "ассет не найден",
			})
			continue
		}

		// Пакет ограничен одним проектом
		if batchProject == "" {
			batchProject = a.ProjectID
		} else if a.ProjectID != batchProject {
			result.Failed = append(result.Failed, MarkDeliverableItem{
				AssetID: assetID, Error: "ассет принадлежит другому проекту",
			})
			continue
		}

		firstTime := a.AssetType != model.TypeDeliverable

		if err := s.repo.MarkDeliverable(ctx, assetID, expiry); err != nil {
			result.Failed = append(result.Failed, MarkDeliverableItem{
				AssetID: assetID, Error: s.markFailReason(err, a),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, assetID)
		s.cache.Invalidate(a.ProjectID)

		if firstTime {
			s.dispatch(notifier.Event{
				Type:       notifier.EventDeliverableReady,
				AssetID:    assetID,
				ProjectID:  a.ProjectID,
				Actor:      actor,
				OccurredAt: time.Now().UTC(),
			})
		}
	}

	s.logger.Info("Классификация deliverable выполнена",
		slog.Int("succeeded", len(result.Succeeded)),
		slog.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// markFailReason формирует сообщение об отказе классификации.
func (s *DeliveryService) markFailReason(err error, a *model.Asset) string {
	if errors.Is(err, repository.ErrStaleTransition) {
		return fmt.Sprintf("ассет не готов к доставке (статус %s)", a.Status)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return "ассет не найден"
	}
	return err.Error()
}

// Approve фиксирует согласование deliverable клиентом.
// Условное обновление по текущему статусу сериализует конкурентные решения:
// из двух одновременных approve/revision побеждает ровно одно.
func (s *DeliveryService) Approve(ctx context.Context, assetID, actor string) (*model.Asset, error) {
	a, err := s.transition(ctx, assetID, model.ApprovalApproved)
	if err != nil {
		return nil, err
	}

	s.dispatch(notifier.Event{
		Type:       notifier.EventAssetApproved,
		AssetID:    assetID,
		ProjectID:  a.ProjectID,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	})
	return a, nil
}

// RequestRevision фиксирует запрос доработки с обязательным комментарием.
// Комментарий сохраняется как аннотация ассета.
func (s *DeliveryService) RequestRevision(ctx context.Context, assetID, actor, comment string) (*model.Asset, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, fmt.Errorf("%w: запрос доработки требует комментария", ErrValidation)
	}

	a, err := s.transition(ctx, assetID, model.ApprovalRevisionRequested)
	if err != nil {
		return nil, err
	}

	an := &model.Annotation{
		AnnotationID: uuid.New().String(),
		AssetID:      assetID,
		AuthorName:   actor,
		Text:         comment,
	}
	if err := s.repo.AddAnnotation(ctx, an); err != nil {
		// Переход уже зафиксирован, комментарий не сохранился
		s.logger.Error("Комментарий доработки не сохранён",
			slog.String("asset_id", assetID),
			slog.String("error", err.Error()),
		)
	}

	s.dispatch(notifier.Event{
		Type:       notifier.EventRevisionRequested,
		AssetID:    assetID,
		ProjectID:  a.ProjectID,
		Actor:      actor,
		Comment:    comment,
		OccurredAt: time.Now().UTC(),
	})
	return a, nil
}

// Resubmit возвращает ассет после доработки в статус pending.
func (s *DeliveryService) Resubmit(ctx context.Context, assetID string) (*model.Asset, error) {
	return s.transition(ctx, assetID, model.ApprovalPending)
}

// transition выполняет переход статуса согласования с валидацией по матрице.
func (s *DeliveryService) transition(ctx context.Context, assetID string, to model.ApprovalStatus) (*model.Asset, error) {
	a, err := s.repo.GetByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение ассета: %w", err)
	}
	if !a.IsDeliverable() {
		deliveryTransitionsTotal.WithLabelValues(string(to), "rejected").Inc()
		return nil, fmt.Errorf("%w: ассет не классифицирован как deliverable", ErrInvalidTransition)
	}

	if err := workflow.ValidateApprovalTransition(a.ApprovalStatus, to); err != nil {
		deliveryTransitionsTotal.WithLabelValues(string(to), "rejected").Inc()
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, err.Error())
	}

	if err := s.repo.SetApprovalStatus(ctx, assetID, a.ApprovalStatus, to); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			deliveryTransitionsTotal.WithLabelValues(string(to), "lost_race").Inc()
			return nil, fmt.Errorf("%w: решение уже принято конкурентным запросом", ErrInvalidTransition)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("смена статуса согласования: %w", err)
	}
	deliveryTransitionsTotal.WithLabelValues(string(to), "ok").Inc()

	a.ApprovalStatus = to
	s.cache.Invalidate(a.ProjectID)

	s.logger.Info("Статус согласования изменён",
		slog.String("asset_id", assetID),
		slog.String("to", string(to)),
	)
	return a, nil
}

// Annotations возвращает комментарии ассета.
func (s *DeliveryService) Annotations(ctx context.Context, assetID string) ([]*model.Annotation, error) {
	if _, err := s.repo.GetByID(ctx, assetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение ассета: %w", err)
	}

	list, err := s.repo.ListAnnotations(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("получение аннотаций: %w", err)
	}
	return list, nil
}

// ResolveAnnotation помечает комментарий отработанным.
func (s *DeliveryService) ResolveAnnotation(ctx context.Context, annotationID string) error {
	if err := s.repo.ResolveAnnotation(ctx, annotationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("отметка аннотации: %w", err)
	}
	return nil
}

// dispatch отправляет событие уведомления в фоне.
// Отказ сервиса уведомлений не влияет на результат операции.
func (s *DeliveryService) dispatch(ev notifier.Event) {
	if !s.notifier.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.Send(ctx, ev); err != nil {
			s.logger.Warn("Уведомление не доставлено",
				slog.String("type", ev.Type),
				slog.String("asset_id", ev.AssetID),
				slog.String("error", err.Error()),
			)
		}
	}()
}
