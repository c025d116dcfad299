// assets.go — обработчики каталога ассетов.
// Регистрация загрузки, callback транскодера, метаданные, удаление, доступ.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/gomediastore/internal/api/errors"
	"github.com/bigkaa/gomediastore/internal/api/middleware"
	"github.com/bigkaa/gomediastore/internal/domain/model"
	"github.com/bigkaa/gomediastore/internal/repository"
	"github.com/bigkaa/gomediastore/internal/service"
)

// assetIDFromURL извлекает и валидирует asset_id из пути.
func assetIDFromURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "asset_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		apierrors.ValidationError(w, "Некорректный asset_id: ожидается UUID")
		return "", false
	}
	return id.String(), true
}

// handleRegisterAsset — реализация POST /api/v1/assets.
// Новый ассет получает тип raw и статус uploaded.
func (h *APIHandler) handleRegisterAsset(w http.ResponseWriter, r *http.Request) {
	var req RegisterAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}

	in := service.RegisterInput{
		ProjectID:        req.ProjectId.String(),
		OriginalFilename: req.OriginalFilename,
		ContentType:      req.ContentType,
		Size:             req.Size,
		StorageRef:       req.StorageRef,
		UploadedBy:       middleware.SubjectFromContext(r.Context()),
		Tags:             req.Tags,
	}
	if req.ProjectId == uuid.Nil {
		apierrors.ValidationError(w, "project_id обязателен")
		return
	}

	asset, err := h.catalog.Register(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, assetToResponse(asset, ""))
}

// handleGetAsset — реализация GET /api/v1/assets/{asset_id}.
// Query-параметр aspect добавляет прямоугольник кадрирования в ответ.
func (h *APIHandler) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	assetID, ok := assetIDFromURL(w, r)
	if !ok {
		return
	}

	asset, err := h.catalog.Get(r.Context(), assetID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, assetToResponse(asset, r.URL.Query().Get("aspect")))
}

// handleUpdateAsset — реализация PATCH /api/v1/assets/{asset_id}.
func (h *APIHandler) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	assetID, ok := assetIDFromURL(w, r)
	if !ok {
		return
	}

	var req UpdateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}

	upd := service.MetadataUpdate{
		Title:      req.Title,
		Caption:    req.Caption,
		Tags:       req.Tags,
		AssetType:  req.AssetType,
		ClearFocal: req.ClearFocalPoint,
	}
	if req.FocalPoint != nil {
		upd.FocalPoint = &model.FocalPoint{X: req.FocalPoint.X, Y: req.FocalPoint.Y}
	}

	asset, err := h.catalog.UpdateMetadata(r.Context(), assetID, upd)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, assetToResponse(asset, ""))
}

// handleDeleteAsset — реализация DELETE /api/v1/assets/{asset_id}.
func (h *APIHandler) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	assetID, ok := assetIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.catalog.Delete(r.Context(), assetID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleStartProcessing — реализация POST /api/v1/assets/{asset_id}/processing.
// Транскодер сообщает о взятии ассета в обработку (uploaded → processing).
func (h *APIHandler) handleStartProcessing(w http.ResponseWriter, r *http.Request) {
	assetID, ok := assetIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.catalog.StartProcessing(r.Context(), assetID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleTranscodingResult — реализация POST /api/v1/assets/{asset_id}/transcoding.
// Callback транскодера: итоговый статус ready или failed плюс производные данные.
func (h *APIHandler) handleTranscodingResult(w http.ResponseWriter, r *http.Request) {
	assetID, ok := assetIDFromURL(w, r)
	if !ok {
		return
	}

	var req TranscodingResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}

	res := repository.TranscodeResult{
		Status:          model.IngestStatus(req.Status),
		ThumbnailRef:    req.ThumbnailRef,
		Width:           req.Width,
		Height:          req.Height,
		DurationSeconds: req.DurationSeconds,
	}

	if err := h.catalog.CompleteProcessing(r.Context(), assetID, res); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleAccessRequest — реализация POST /api/v1/assets/{asset_id}/access.
// Выдаёт подписанный токен доступа к deliverable (view / download).
func (h *APIHandler) handleAccessRequest(w http.ResponseWriter, r *http.Request) {
	assetID, ok := assetIDFromURL(w, r)
	if !ok {
		return
	}

	var req AccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}

	grant, err := h.access.Request(r.Context(), assetID, req.Mode, middleware.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AccessResponse{
		Token:      grant.Token,
		StorageRef: grant.StorageRef,
		ExpiresAt:  grant.ExpiresAt,
	})
}
