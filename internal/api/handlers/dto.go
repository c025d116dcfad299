// dto.go — API-типы Delivery Module и конвертация из domain-моделей.
// Формат полей соответствует OpenAPI контракту (snake_case).
package handlers

import (
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/bigkaa/gomediastore/internal/domain/crop"
	"github.com/bigkaa/gomediastore/internal/domain/model"
	"github.com/bigkaa/gomediastore/internal/facet"
)

// FocalPointDTO — точка фокуса в долях [0,1].
type FocalPointDTO struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AssetResponse — представление ассета в API.
type AssetResponse struct {
	AssetId          openapi_types.UUID `json:"asset_id"`
	ProjectId        openapi_types.UUID `json:"project_id"`
	OriginalFilename string             `json:"original_filename"`
	Title            *string            `json:"title,omitempty"`
	Caption          *string            `json:"caption,omitempty"`
	AssetType        string             `json:"asset_type"`
	Status           string             `json:"status"`
	ApprovalStatus   string             `json:"approval_status"`
	ContentType      string             `json:"content_type"`
	Size             int64              `json:"size"`
	ThumbnailRef     *string            `json:"thumbnail_ref,omitempty"`
	Width            *int               `json:"width,omitempty"`
	Height           *int               `json:"height,omitempty"`
	DurationSeconds  *float64           `json:"duration_seconds,omitempty"`
	Tags             []string           `json:"tags"`
	UploadedBy       string             `json:"uploaded_by"`
	FocalPoint       *FocalPointDTO     `json:"focal_point,omitempty"`
	ExpiresAt        *time.Time         `json:"expires_at,omitempty"`
	AccessRevoked    bool               `json:"access_revoked"`
	ViewCount        int64              `json:"view_count"`
	DownloadCount    int64              `json:"download_count"`
	Version          int64              `json:"version"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	// Crop — прямоугольник кадрирования для запрошенного aspect
	// (заполняется только при наличии query-параметра aspect и размеров).
	Crop *crop.Rect `json:"crop,omitempty"`
}

// RegisterAssetRequest — тело POST /api/v1/assets.
type RegisterAssetRequest struct {
	ProjectId        openapi_types.UUID `json:"project_id"`
	OriginalFilename string             `json:"original_filename"`
	ContentType      string             `json:"content_type"`
	Size             int64              `json:"size"`
	StorageRef       string             `json:"storage_ref"`
	Tags             []string           `json:"tags,omitempty"`
}

// UpdateAssetRequest — тело PATCH /api/v1/assets/{asset_id}.
// nil-поле не изменяется; clear_focal_point сбрасывает точку фокуса.
type UpdateAssetRequest struct {
	Title           *string        `json:"title,omitempty"`
	Caption         *string        `json:"caption,omitempty"`
	Tags            *[]string      `json:"tags,omitempty"`
	AssetType       *string        `json:"asset_type,omitempty"`
	FocalPoint      *FocalPointDTO `json:"focal_point,omitempty"`
	ClearFocalPoint bool           `json:"clear_focal_point,omitempty"`
}

// TranscodingResultRequest — тело POST /api/v1/assets/{asset_id}/transcoding.
type TranscodingResultRequest struct {
	Status          string   `json:"status"`
	ThumbnailRef    *string  `json:"thumbnail_ref,omitempty"`
	Width           *int     `json:"width,omitempty"`
	Height          *int     `json:"height,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
}

// AccessRequest — тело POST /api/v1/assets/{asset_id}/access.
type AccessRequest struct {
	Mode string `json:"mode"`
}

// AccessResponse — выданный токен доступа.
type AccessResponse struct {
	Token      string    `json:"token"`
	StorageRef string    `json:"storage_ref"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// MarkDeliverableRequest — тело POST /api/v1/deliverables.
type MarkDeliverableRequest struct {
	AssetIds  []openapi_types.UUID `json:"asset_ids"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty"`
}

// MarkDeliverableFailure — причина отказа для одного ассета.
type MarkDeliverableFailure struct {
	AssetId openapi_types.UUID `json:"asset_id"`
	Error   string             `json:"error"`
}

// MarkDeliverableResponse — результат пакетной классификации.
type MarkDeliverableResponse struct {
	Succeeded []openapi_types.UUID     `json:"succeeded"`
	Failed    []MarkDeliverableFailure `json:"failed"`
}

// RevisionRequest — тело POST /api/v1/deliverables/{asset_id}/revision.
type RevisionRequest struct {
	Comment string `json:"comment"`
}

// AnnotationResponse — представление аннотации в API.
type AnnotationResponse struct {
	AnnotationId    openapi_types.UUID `json:"annotation_id"`
	AssetId         openapi_types.UUID `json:"asset_id"`
	AuthorName      string             `json:"author_name"`
	Text            string             `json:"text"`
	TimecodeSeconds *float64           `json:"timecode_seconds,omitempty"`
	Resolved        bool               `json:"resolved"`
	CreatedAt       time.Time          `json:"created_at"`
}

// CatalogCounts — фасетные счётчики каталога.
type CatalogCounts struct {
	Total     int            `json:"total"`
	Filtered  int            `json:"filtered"`
	Types     map[string]int `json:"types"`
	Statuses  map[string]int `json:"statuses"`
	Tags      map[string]int `json:"tags"`
	Uploaders map[string]int `json:"uploaders"`
}

// CatalogResponse — страница каталога с фасетными счётчиками.
type CatalogResponse struct {
	Items   []AssetResponse `json:"items"`
	Counts  CatalogCounts   `json:"counts"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	HasMore bool            `json:"has_more"`
}

// parseUUID конвертирует строковый UUID в API-тип.
// Некорректная строка даёт нулевой UUID — на выходе это не случается,
// идентификаторы генерируются сервисом.
func parseUUID(s string) openapi_types.UUID {
	u, _ := uuid.Parse(s)
	return u
}

// assetToResponse конвертирует domain-модель в API-тип.
// aspect — целевое соотношение сторон ("4:5", "auto", "" — без кадрирования).
func assetToResponse(a *model.Asset, aspect string) AssetResponse {
	resp := AssetResponse{
		AssetId:          parseUUID(a.AssetID),
		ProjectId:        parseUUID(a.ProjectID),
		OriginalFilename: a.OriginalFilename,
		Title:            a.Title,
		Caption:          a.Caption,
		AssetType:        string(a.AssetType),
		Status:           string(a.Status),
		ApprovalStatus:   string(a.ApprovalStatus),
		ContentType:      a.ContentType,
		Size:             a.Size,
		ThumbnailRef:     a.ThumbnailRef,
		Width:            a.Width,
		Height:           a.Height,
		DurationSeconds:  a.DurationSeconds,
		Tags:             a.Tags,
		UploadedBy:       a.UploadedBy,
		ExpiresAt:        a.ExpiresAt,
		AccessRevoked:    a.AccessRevoked,
		ViewCount:        a.ViewCount,
		DownloadCount:    a.DownloadCount,
		Version:          a.Version,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if a.FocalPoint != nil {
		resp.FocalPoint = &FocalPointDTO{X: a.FocalPoint.X, Y: a.FocalPoint.Y}
	}
	resp.Crop = cropForAsset(a, aspect)
	return resp
}

// cropForAsset вычисляет прямоугольник кадрирования для запрошенного aspect.
// Возвращает nil, если aspect пуст или размеры ассета неизвестны.
func cropForAsset(a *model.Asset, aspect string) *crop.Rect {
	if aspect == "" || a.Width == nil || a.Height == nil {
		return nil
	}
	// Точка фокуса по умолчанию — центр.
	fx, fy := 0.5, 0.5
	if a.FocalPoint != nil {
		fx, fy = a.FocalPoint.X, a.FocalPoint.Y
	}
	return crop.Compute(*a.Width, *a.Height, aspect, fx, fy)
}

// assetsToResponses конвертирует срез ассетов.
func assetsToResponses(assets []*model.Asset, aspect string) []AssetResponse {
	items := make([]AssetResponse, 0, len(assets))
	for _, a := range assets {
		items = append(items, assetToResponse(a, aspect))
	}
	return items
}

// annotationToResponse конвертирует аннотацию в API-тип.
func annotationToResponse(an *model.Annotation) AnnotationResponse {
	return AnnotationResponse{
		AnnotationId:    parseUUID(an.AnnotationID),
		AssetId:         parseUUID(an.AssetID),
		AuthorName:      an.AuthorName,
		Text:            an.Text,
		TimecodeSeconds: an.TimecodeSeconds,
		Resolved:        an.Resolved,
		CreatedAt:       an.CreatedAt,
	}
}

// countsToResponse конвертирует фасетные счётчики.
func countsToResponse(c facet.Counts) CatalogCounts {
	return CatalogCounts{
		Total:     c.Total,
		Filtered:  c.Filtered,
		Types:     c.Types,
		Statuses:  c.Statuses,
		Tags:      c.Tags,
		Uploaders: c.Uploaders,
	}
}
