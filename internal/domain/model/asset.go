// Пакет model — доменные структуры Delivery Module.
// Хранятся в таблицах assets и asset_annotations.
package model

import (
	"strings"
	"time"
)

// AssetType — классификация ассета. Изменяется операторами.
type AssetType string

const (
	// TypeRaw — исходный материал (значение по умолчанию при загрузке)
	TypeRaw AssetType = "raw"
	// TypeWorkInProgress — рабочий материал
	TypeWorkInProgress AssetType = "work_in_progress"
	// TypeDeliverable — материал для передачи клиенту
	TypeDeliverable AssetType = "deliverable"
	// TypeAvatar — аватар профиля
	TypeAvatar AssetType = "avatar"
	// TypePortfolio — портфолио
	TypePortfolio AssetType = "portfolio"
)

// ValidAssetTypes — допустимые значения asset_type.
var ValidAssetTypes = map[AssetType]bool{
	TypeRaw:            true,
	TypeWorkInProgress: true,
	TypeDeliverable:    true,
	TypeAvatar:         true,
	TypePortfolio:      true,
}

// IngestStatus — статус обработки ассета (транскодирование),
// не связан с согласованием.
type IngestStatus string

const (
	// StatusUploaded — файл загружен, обработка не началась
	StatusUploaded IngestStatus = "uploaded"
	// StatusProcessing — идёт транскодирование
	StatusProcessing IngestStatus = "processing"
	// StatusReady — ассет готов к использованию
	StatusReady IngestStatus = "ready"
	// StatusFailed — обработка завершилась ошибкой
	StatusFailed IngestStatus = "failed"
	// StatusDeleted — soft delete, ассет исключён из выборок
	StatusDeleted IngestStatus = "deleted"
)

// ApprovalStatus — статус согласования deliverable-ассета.
// Имеет смысл только при asset_type = deliverable.
type ApprovalStatus string

const (
	// ApprovalNone — ассет не является deliverable
	ApprovalNone ApprovalStatus = "none"
	// ApprovalPending — ожидает решения клиента
	ApprovalPending ApprovalStatus = "pending"
	// ApprovalApproved — согласован клиентом
	ApprovalApproved ApprovalStatus = "approved"
	// ApprovalRevisionRequested — клиент запросил доработку
	ApprovalRevisionRequested ApprovalStatus = "revision_requested"
	// ApprovalDelivered — скачан клиентом (отображаемый статус, не gate)
	ApprovalDelivered ApprovalStatus = "delivered"
)

// FocalPoint — нормализованная точка фокуса изображения.
// Обе координаты в диапазоне [0,1]; (0.5, 0.5) — центр.
type FocalPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Valid проверяет, что координаты находятся в [0,1].
func (fp FocalPoint) Valid() bool {
	return fp.X >= 0 && fp.X <= 1 && fp.Y >= 0 && fp.Y <= 1
}

// Asset — запись ассета в каталоге проекта.
type Asset struct {
	// AssetID — UUID ассета
	AssetID string
	// ProjectID — UUID проекта
	ProjectID string
	// OriginalFilename — оригинальное имя файла
	OriginalFilename string
	// Title — отображаемое название (опционально)
	Title *string
	// Caption — подпись/описание (опционально)
	Caption *string
	// AssetType — классификация (raw, work_in_progress, deliverable, ...)
	AssetType AssetType
	// Status — статус обработки (uploaded, processing, ready, failed)
	Status IngestStatus
	// ApprovalStatus — статус согласования (none для не-deliverable)
	ApprovalStatus ApprovalStatus
	// ContentType — MIME-тип файла
	ContentType string
	// Size — размер файла в байтах
	Size int64
	// StorageRef — ссылка на файл во внешнем хранилище
	StorageRef string
	// ThumbnailRef — ссылка на миниатюру (заполняется транскодером)
	ThumbnailRef *string
	// Width, Height — размеры в пикселях (для изображений и видео)
	Width  *int
	Height *int
	// DurationSeconds — длительность (для видео/аудио)
	DurationSeconds *float64
	// Tags — теги ассета (регистр сохраняется для отображения)
	Tags []string
	// UploadedBy — идентификатор загрузившего
	UploadedBy string
	// FocalPoint — точка фокуса для адаптивного кадрирования (опционально)
	FocalPoint *FocalPoint
	// ExpiresAt — момент, после которого ассет недоступен клиенту
	ExpiresAt *time.Time
	// AccessRevoked — доступ отозван (выставляется expiry sweeper'ом)
	AccessRevoked bool
	// ViewCount, DownloadCount — монотонные счётчики доступа
	ViewCount     int64
	DownloadCount int64
	// Version — версия записи для оптимистичной блокировки
	Version int64
	// CreatedAt, UpdatedAt — время создания и последнего обновления
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsDeliverable сообщает, классифицирован ли ассет для передачи клиенту.
func (a *Asset) IsDeliverable() bool {
	return a.AssetType == TypeDeliverable
}

// Expired проверяет, истёк ли срок доступа на момент now.
func (a *Asset) Expired(now time.Time) bool {
	if a.AccessRevoked {
		return true
	}
	return a.ExpiresAt != nil && !now.Before(*a.ExpiresAt)
}

// DisplayName возвращает title или, если он пуст, имя файла.
func (a *Asset) DisplayName() string {
	if a.Title != nil && *a.Title != "" {
		return *a.Title
	}
	return a.OriginalFilename
}

// Annotation — комментарий к deliverable-ассету.
// Timecode имеет смысл только для видео.
type Annotation struct {
	// AnnotationID — UUID аннотации
	AnnotationID string
	// AssetID — UUID ассета
	AssetID string
	// AuthorName — имя автора
	AuthorName string
	// Text — текст комментария
	Text string
	// TimecodeSeconds — позиция в видео (опционально)
	TimecodeSeconds *float64
	// Resolved — комментарий отработан
	Resolved bool
	// CreatedAt — время создания
	CreatedAt time.Time
}

// NormalizeTags дедуплицирует теги без учёта регистра, сохраняя
// первое встреченное написание. Пустые теги и пробелы по краям отбрасываются.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		canonical := strings.ToLower(trimmed)
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// CanonicalTag возвращает каноническую форму тега для сопоставления.
func CanonicalTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
