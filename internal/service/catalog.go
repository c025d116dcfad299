// catalog.go — сервис каталога ассетов.
// Регистрация загрузок, callback транскодера, метаданные, soft delete.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bigkaa/gomediastore/internal/domain/model"
	"github.com/bigkaa/gomediastore/internal/domain/workflow"
	"github.com/bigkaa/gomediastore/internal/repository"
)

// RegisterInput — параметры регистрации загруженного ассета.
type RegisterInput struct {
	ProjectID        string
	OriginalFilename string
	ContentType      string
	Size             int64
	StorageRef       string
	UploadedBy       string
	Tags             []string
}

// MetadataUpdate — частичное обновление метаданных ассета.
// nil-поле не изменяется.
type MetadataUpdate struct {
	Title      *string
	Caption    *string
	Tags       *[]string
	AssetType  *string
	FocalPoint *model.FocalPoint
	ClearFocal bool
}

// CatalogService — сервис каталога ассетов.
type CatalogService struct {
	repo   repository.AssetRepository
	cache  *SnapshotCache
	logger *slog.Logger
}

// NewCatalogService создаёт сервис каталога.
func NewCatalogService(repo repository.AssetRepository, cache *SnapshotCache, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		repo:   repo,
		cache:  cache,
		logger: logger.With(slog.String("component", "catalog_service")),
	}
}

// Register регистрирует загруженный файл в каталоге.
// Новый ассет получает тип raw и статус uploaded.
func (s *CatalogService) Register(ctx context.Context, in RegisterInput) (*model.Asset, error) {
	if in.ProjectID == "" {
		return nil, fmt.Errorf("%w: project_id обязателен", ErrValidation)
	}
	if in.OriginalFilename == "" {
		return nil, fmt.Errorf("%w: original_filename обязателен", ErrValidation)
	}
	if in.StorageRef == "" {
		return nil, fmt.Errorf("%w: storage_ref обязателен", ErrValidation)
	}
	if in.Size < 0 {
		return nil, fmt.Errorf("%w: size не может быть отрицательным", ErrValidation)
	}

	a := &model.Asset{
		AssetID:          uuid.New().String(),
		ProjectID:        in.ProjectID,
		OriginalFilename: in.OriginalFilename,
		AssetType:        model.TypeRaw,
		Status:           model.StatusUploaded,
		ApprovalStatus:   model.ApprovalNone,
		ContentType:      in.ContentType,
		Size:             in.Size,
		StorageRef:       in.StorageRef,
		Tags:             model.NormalizeTags(in.Tags),
		UploadedBy:       in.UploadedBy,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: ассет уже зарегистрирован", ErrConflict)
		}
		return nil, fmt.Errorf("регистрация ассета: %w", err)
	}

	s.cache.Invalidate(a.ProjectID)

	s.logger.Info("Ассет зарегистрирован",
		slog.String("asset_id", a.AssetID),
		slog.String("project_id", a.ProjectID),
		slog.String("filename", a.OriginalFilename),
	)

	return a, nil
}

// Get возвращает ассет по ID.
func (s *CatalogService) Get(ctx context.Context, assetID string) (*model.Asset, error) {
	a, err := s.repo.GetByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение ассета: %w", err)
	}
	return a, nil
}

// StartProcessing переводит ассет в статус processing.
// Вызывается при постановке в очередь транскодирования.
func (s *CatalogService) StartProcessing(ctx context.Context, assetID string) error {
	a, err := s.Get(ctx, assetID)
	if err != nil {
		return err
	}
	if err := workflow.ValidateIngestTransition(a.Status, model.StatusProcessing); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, err.Error())
	}

	if err := s.repo.SetIngestStatus(ctx, assetID, a.Status, model.StatusProcessing); err != nil {
		return s.mapTransitionErr(err)
	}

	s.cache.Invalidate(a.ProjectID)
	s.logger.Info("Транскодирование начато", slog.String("asset_id", assetID))
	return nil
}

// CompleteProcessing применяет результат транскодирования.
// success=true переводит ассет в ready и сохраняет производные метаданные,
// success=false — в failed.
func (s *CatalogService) CompleteProcessing(ctx context.Context, assetID string, res repository.TranscodeResult) error {
	if res.Status != model.StatusReady && res.Status != model.StatusFailed {
		return fmt.Errorf("%w: итоговый статус должен быть ready или failed", ErrValidation)
	}

	a, err := s.Get(ctx, assetID)
	if err != nil {
		return err
	}
	if err := workflow.ValidateIngestTransition(a.Status, res.Status); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, err.Error())
	}

	if err := s.repo.ApplyTranscodeResult(ctx, assetID, res); err != nil {
		return s.mapTransitionErr(err)
	}

	s.cache.Invalidate(a.ProjectID)
	s.logger.Info("Транскодирование завершено",
		slog.String("asset_id", assetID),
		slog.String("status", string(res.Status)),
	)
	return nil
}

// UpdateMetadata обновляет метаданные ассета.
// Точка фокуса вне [0,1] отклоняется, а не приводится к границе.
func (s *CatalogService) UpdateMetadata(ctx context.Context, assetID string, upd MetadataUpdate) (*model.Asset, error) {
	a, err := s.Get(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if a.Status == model.StatusDeleted {
		return nil, ErrNotFound
	}

	if upd.Title != nil {
		a.Title = upd.Title
	}
	if upd.Caption != nil {
		a.Caption = upd.Caption
	}
	if upd.Tags != nil {
		a.Tags = model.NormalizeTags(*upd.Tags)
	}
	if upd.AssetType != nil {
		at, err := workflow.ParseAssetType(*upd.AssetType)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
		}
		// Классификация deliverable идёт через DeliveryService:
		// там выставляются срок доступа и статус согласования
		if at == model.TypeDeliverable && a.AssetType != model.TypeDeliverable {
			return nil, fmt.Errorf("%w: классификация deliverable выполняется операцией доставки", ErrValidation)
		}
		a.AssetType = at
	}
	if upd.ClearFocal {
		a.FocalPoint = nil
	} else if upd.FocalPoint != nil {
		if !upd.FocalPoint.Valid() {
			return nil, fmt.Errorf("%w: координаты точки фокуса должны быть в диапазоне [0,1]", ErrValidation)
		}
		a.FocalPoint = upd.FocalPoint
	}

	if err := s.repo.UpdateMetadata(ctx, a); err != nil {
		return nil, s.mapTransitionErr(err)
	}

	s.cache.Invalidate(a.ProjectID)
	s.logger.Info("Метаданные обновлены", slog.String("asset_id", assetID))
	return a, nil
}

// Delete выполняет soft delete ассета (status → deleted).
// Ассет исключается из выборок, но остаётся доступным по ID.
func (s *CatalogService) Delete(ctx context.Context, assetID string) error {
	a, err := s.Get(ctx, assetID)
	if err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, assetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление ассета: %w", err)
	}

	s.cache.Invalidate(a.ProjectID)
	s.logger.Info("Ассет удалён",
		slog.String("asset_id", assetID),
		slog.String("project_id", a.ProjectID),
	)
	return nil
}

// mapTransitionErr приводит ошибки репозитория к ошибкам сервисного слоя.
func (s *CatalogService) mapTransitionErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrStaleTransition):
		return fmt.Errorf("%w: статус ассета изменился конкурентно", ErrInvalidTransition)
	default:
		return err
	}
}
