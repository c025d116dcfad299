package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gomediastore/internal/domain/model"
)

// TranscodeResult — результат транскодирования, применяемый к ассету.
type TranscodeResult struct {
	// Status — итоговый статус: ready или failed.
	Status model.IngestStatus
	// ThumbnailRef — ссылка на миниатюру (при успехе).
	ThumbnailRef *string
	// Width, Height — размеры в пикселях (при успехе).
	Width  *int
	Height *int
	// DurationSeconds — длительность для видео/аудио.
	DurationSeconds *float64
}

// AssetRepository — интерфейс доступа к таблицам assets и asset_annotations.
type AssetRepository interface {
	// Create регистрирует новый ассет в каталоге.
	Create(ctx context.Context, a *model.Asset) error
	// GetByID возвращает ассет по UUID. Удалённые ассеты тоже возвращаются.
	GetByID(ctx context.Context, assetID string) (*model.Asset, error)
	// SnapshotByProject возвращает снимок всех неудалённых ассетов проекта
	// для фасетного движка.
	SnapshotByProject(ctx context.Context, projectID string) ([]*model.Asset, error)
	// UpdateMetadata обновляет редактируемые поля ассета
	// с оптимистичной блокировкой по version.
	UpdateMetadata(ctx context.Context, a *model.Asset) error
	// SetIngestStatus выполняет условный переход статуса обработки.
	SetIngestStatus(ctx context.Context, assetID string, from, to model.IngestStatus) error
	// ApplyTranscodeResult применяет результат транскодирования:
	// условный переход processing → ready|failed плюс метаданные.
	ApplyTranscodeResult(ctx context.Context, assetID string, res TranscodeResult) error
	// MarkDeliverable классифицирует готовый ассет как deliverable
	// и выставляет срок доступа. Для уже классифицированного ассета
	// обновляется только срок — статус согласования не сбрасывается.
	MarkDeliverable(ctx context.Context, assetID string, expiresAt time.Time) error
	// SetApprovalStatus выполняет условный переход статуса согласования.
	// Условие WHERE по текущему статусу сериализует конкурентные решения:
	// побеждает ровно один запрос.
	SetApprovalStatus(ctx context.Context, assetID string, from, to model.ApprovalStatus) error
	// IncrementViewCount и IncrementDownloadCount атомарно
	// увеличивают счётчики доступа.
	IncrementViewCount(ctx context.Context, assetID string) error
	IncrementDownloadCount(ctx context.Context, assetID string) error
	// RevokeExpired отзывает доступ к ассетам с истёкшим expires_at.
	// Возвращает количество отозванных.
	RevokeExpired(ctx context.Context, now time.Time) (int, error)
	// SoftDelete помечает ассет удалённым (status → deleted).
	SoftDelete(ctx context.Context, assetID string) error
	// AddAnnotation добавляет комментарий к ассету.
	AddAnnotation(ctx context.Context, an *model.Annotation) error
	// ListAnnotations возвращает комментарии ассета, старые первыми.
	ListAnnotations(ctx context.Context, assetID string) ([]*model.Annotation, error)
	// ResolveAnnotation помечает комментарий отработанным.
	ResolveAnnotation(ctx context.Context, annotationID string) error
}

// assetRepo — реализация AssetRepository.
type assetRepo struct {
	db DBTX
}

// NewAssetRepository создаёт репозиторий ассетов.
func NewAssetRepository(db DBTX) AssetRepository {
	return &assetRepo{db: db}
}

// assetColumns — список колонок assets в порядке сканирования scanAsset.
const assetColumns = `asset_id, project_id, original_filename, title, caption,
	asset_type, status, approval_status, content_type, size, storage_ref,
	thumbnail_ref, width, height, duration_seconds, tags, uploaded_by,
	focal_x, focal_y, expires_at, access_revoked, view_count, download_count,
	version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanAsset сканирует строку в порядке assetColumns.
// Точка фокуса хранится в двух колонках и собирается здесь.
func scanAsset(row rowScanner) (*model.Asset, error) {
	a := &model.Asset{}
	var focalX, focalY *float64
	err := row.Scan(
		&a.AssetID, &a.ProjectID, &a.OriginalFilename, &a.Title, &a.Caption,
		&a.AssetType, &a.Status, &a.ApprovalStatus, &a.ContentType, &a.Size, &a.StorageRef,
		&a.ThumbnailRef, &a.Width, &a.Height, &a.DurationSeconds, &a.Tags, &a.UploadedBy,
		&focalX, &focalY, &a.ExpiresAt, &a.AccessRevoked, &a.ViewCount, &a.DownloadCount,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if focalX != nil && focalY != nil {
		a.FocalPoint = &model.FocalPoint{X: *focalX, Y: *focalY}
	}
	return a, nil
}

func (r *assetRepo) Create(ctx context.Context, a *model.Asset) error {
	query := `
		INSERT INTO assets (asset_id, project_id, original_filename, title, caption,
			asset_type, status, approval_status, content_type, size, storage_ref,
			tags, uploaded_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING version, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		a.AssetID, a.ProjectID, a.OriginalFilename, a.Title, a.Caption,
		a.AssetType, a.Status, a.ApprovalStatus, a.ContentType, a.Size, a.StorageRef,
		a.Tags, a.UploadedBy, a.ExpiresAt,
	).Scan(&a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: ассет с таким ID уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка регистрации ассета: %w", err)
	}
	return nil
}

func (r *assetRepo) GetByID(ctx context.Context, assetID string) (*model.Asset, error) {
	query := fmt.Sprintf(`SELECT %s FROM assets WHERE asset_id = $1`, assetColumns)

	a, err := scanAsset(r.db.QueryRow(ctx, query, assetID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения ассета: %w", err)
	}
	return a, nil
}

func (r *assetRepo) SnapshotByProject(ctx context.Context, projectID string) ([]*model.Asset, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM assets
		WHERE project_id = $1 AND status != 'deleted'
		ORDER BY created_at DESC, asset_id`, assetColumns)

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения снимка проекта: %w", err)
	}
	defer rows.Close()

	var result []*model.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования ассета: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *assetRepo) UpdateMetadata(ctx context.Context, a *model.Asset) error {
	var focalX, focalY *float64
	if a.FocalPoint != nil {
		focalX, focalY = &a.FocalPoint.X, &a.FocalPoint.Y
	}

	query := `
		UPDATE assets
		SET title = $3, caption = $4, tags = $5, asset_type = $6,
			focal_x = $7, focal_y = $8, version = version + 1
		WHERE asset_id = $1 AND version = $2
		RETURNING version, updated_at`

	err := r.db.QueryRow(ctx, query,
		a.AssetID, a.Version, a.Title, a.Caption, a.Tags, a.AssetType, focalX, focalY,
	).Scan(&a.Version, &a.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return r.classifyMiss(ctx, a.AssetID)
		}
		return fmt.Errorf("ошибка обновления метаданных: %w", err)
	}
	return nil
}

func (r *assetRepo) SetIngestStatus(ctx context.Context, assetID string, from, to model.IngestStatus) error {
	query := `
		UPDATE assets
		SET status = $3, version = version + 1
		WHERE asset_id = $1 AND status = $2`

	tag, err := r.db.Exec(ctx, query, assetID, from, to)
	if err != nil {
		return fmt.Errorf("ошибка смены статуса обработки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, assetID)
	}
	return nil
}

func (r *assetRepo) ApplyTranscodeResult(ctx context.Context, assetID string, res TranscodeResult) error {
	query := `
		UPDATE assets
		SET status = $2, thumbnail_ref = COALESCE($3, thumbnail_ref),
			width = COALESCE($4, width), height = COALESCE($5, height),
			duration_seconds = COALESCE($6, duration_seconds),
			version = version + 1
		WHERE asset_id = $1 AND status = 'processing'`

	tag, err := r.db.Exec(ctx, query,
		assetID, res.Status, res.ThumbnailRef, res.Width, res.Height, res.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("ошибка применения результата транскодирования: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, assetID)
	}
	return nil
}

// MarkDeliverable переводит готовый ассет в deliverable.
// CASE при повторной классификации сохраняет состоявшееся согласование
// (approved, delivered); остальные статусы возвращаются в pending —
// обновлённый материал требует нового решения клиента.
func (r *assetRepo) MarkDeliverable(ctx context.Context, assetID string, expiresAt time.Time) error {
	query := `
		UPDATE assets
		SET approval_status = CASE
				WHEN asset_type = 'deliverable' AND approval_status IN ('approved', 'delivered')
					THEN approval_status
				ELSE 'pending'
			END,
			asset_type = 'deliverable',
			expires_at = $2,
			access_revoked = FALSE,
			version = version + 1
		WHERE asset_id = $1 AND status = 'ready'`

	tag, err := r.db.Exec(ctx, query, assetID, expiresAt)
	if err != nil {
		return fmt.Errorf("ошибка классификации ассета: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, assetID)
	}
	return nil
}

func (r *assetRepo) SetApprovalStatus(ctx context.Context, assetID string, from, to model.ApprovalStatus) error {
	query := `
		UPDATE assets
		SET approval_status = $3, version = version + 1
		WHERE asset_id = $1 AND approval_status = $2 AND asset_type = 'deliverable'`

	tag, err := r.db.Exec(ctx, query, assetID, from, to)
	if err != nil {
		return fmt.Errorf("ошибка смены статуса согласования: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, assetID)
	}
	return nil
}

func (r *assetRepo) IncrementViewCount(ctx context.Context, assetID string) error {
	return r.increment(ctx, assetID, "view_count")
}

func (r *assetRepo) IncrementDownloadCount(ctx context.Context, assetID string) error {
	return r.increment(ctx, assetID, "download_count")
}

func (r *assetRepo) increment(ctx context.Context, assetID, column string) error {
	// column — из фиксированного набора, не пользовательский ввод
	query := fmt.Sprintf(`UPDATE assets SET %s = %s + 1 WHERE asset_id = $1`, column, column)

	tag, err := r.db.Exec(ctx, query, assetID)
	if err != nil {
		return fmt.Errorf("ошибка увеличения счётчика %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *assetRepo) RevokeExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE assets
		SET access_revoked = TRUE
		WHERE asset_type = 'deliverable'
			AND access_revoked = FALSE
			AND expires_at IS NOT NULL
			AND expires_at <= $1`

	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка отзыва истёкших ассетов: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *assetRepo) SoftDelete(ctx context.Context, assetID string) error {
	query := `
		UPDATE assets
		SET status = 'deleted', version = version + 1
		WHERE asset_id = $1 AND status != 'deleted'`

	tag, err := r.db.Exec(ctx, query, assetID)
	if err != nil {
		return fmt.Errorf("ошибка удаления ассета: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// classifyMiss различает причины непрошедшего условного обновления:
// ассета нет вовсе — ErrNotFound, ассет есть, но статус изменился
// конкурентно — ErrStaleTransition.
func (r *assetRepo) classifyMiss(ctx context.Context, assetID string) error {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM assets WHERE asset_id = $1)`, assetID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("ошибка проверки существования ассета: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStaleTransition
}

func (r *assetRepo) AddAnnotation(ctx context.Context, an *model.Annotation) error {
	query := `
		INSERT INTO asset_annotations (annotation_id, asset_id, author_name, text,
			timecode_seconds, resolved)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		an.AnnotationID, an.AssetID, an.AuthorName, an.Text,
		an.TimecodeSeconds, an.Resolved,
	).Scan(&an.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: аннотация с таким ID уже существует", ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: ассет не найден", ErrNotFound)
		}
		return fmt.Errorf("ошибка добавления аннотации: %w", err)
	}
	return nil
}

func (r *assetRepo) ListAnnotations(ctx context.Context, assetID string) ([]*model.Annotation, error) {
	query := `
		SELECT annotation_id, asset_id, author_name, text, timecode_seconds, resolved, created_at
		FROM asset_annotations
		WHERE asset_id = $1
		ORDER BY created_at, annotation_id`

	rows, err := r.db.Query(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения аннотаций: %w", err)
	}
	defer rows.Close()

	var result []*model.Annotation
	for rows.Next() {
		an := &model.Annotation{}
		if err := rows.Scan(
			&an.AnnotationID, &an.AssetID, &an.AuthorName, &an.Text,
			&an.TimecodeSeconds, &an.Resolved, &an.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования аннотации: %w", err)
		}
		result = append(result, an)
	}
	return result, rows.Err()
}

func (r *assetRepo) ResolveAnnotation(ctx context.Context, annotationID string) error {
	query := `UPDATE asset_annotations SET resolved = TRUE WHERE annotation_id = $1`

	tag, err := r.db.Exec(ctx, query, annotationID)
	if err != nil {
		return fmt.Errorf("ошибка отметки аннотации: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
