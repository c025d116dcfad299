// deliverables.go — обработчики цикла согласования deliverables.
// Пакетная классификация, approve / revision / resubmit, аннотации.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/gomediastore/internal/api/errors"
)

// handleMarkDeliverable — реализация POST /api/v1/deliverables.
// Пакетная классификация: частичный отказ не прерывает остальные ассеты.
func (h *APIHandler) handleMarkDeliverable(w http.ResponseWriter, r *http.Request) {
	var req MarkDeliverableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}
	if len(req.AssetIds) == 0 {
		apierrors.ValidationError(w, "asset_ids не может быть пустым")
		return
	}

	assetIDs := make([]string, 0, len(req.AssetIds))
	for _, id := range req.AssetIds {
		assetIDs = append(assetIDs, id.String())
	}

	result, err := h.delivery.MarkDeliverable(r.Context(), assetIDs, req.ExpiresAt, actorFromRequest(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := MarkDeliverableResponse{
		Succeeded: make([]openapi_types.UUID, 0, len(result.Succeeded)),
		Failed:    make([]MarkDeliverableFailure, 0, len(result.Failed)),
	}
	for _, id := range result.Succeeded {
		resp.Succeeded = append(resp.Succeeded, parseUUID(id))
	}
	for _, item := range result.Failed {
		resp.Failed = append(resp.Failed, MarkDeliverableFailure{
			AssetId: parseUUID(item.AssetID),
			Error:   item.Error,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleApprove — реализация POST /api/v1/deliverables/{asset_id}/approve.
func (h *APIHandler) handleApprove(w http.ResponseWriter, r *http.Request) {
	assetID, ok := assetIDFromURL(w, r)
	if !ok {
		return
	}

	asset, err := h.delivery.Approve(r.Context(), assetID, actorFromRequest(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, assetToResponse(asset, ""))
}

// handleRequestRevision — реализация POST /api/v1/deliverables/{asset_id}/revision.
// Комментарий обязателен и сохраняется как аннотация доработки.
func (h *APIHandler) handleRequestRevision(w http.ResponseWriter, r *http.Request) {
	assetID, ok := assetIDFromURL(w, r)
	if !ok {
		return
	}

	var req RevisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}

	asset, err := h.delivery.RequestRevision(r.Context(), assetID, actorFromRequest(r), req.Comment)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, assetToResponse(asset, ""))
}

// handleResubmit — реализация POST /api/v1/deliverables/{asset_id}/resubmit.
func (h *APIHandler) handleResubmit(w http.ResponseWriter, r *http.Request) {
	assetID, ok := assetIDFromURL(w, r)
	if !ok {
		return
	}

	asset, err := h.delivery.Resubmit(r.Context(), assetID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, assetToResponse(asset, ""))
}

// handleListAnnotations — реализация GET /api/v1/deliverables/{asset_id}/annotations.
func (h *APIHandler) handleListAnnotations(w http.ResponseWriter, r *http.Request) {
	assetID, ok := assetIDFromURL(w, r)
	if !ok {
		return
	}

	annotations, err := h.delivery.Annotations(r.Context(), assetID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]AnnotationResponse, 0, len(annotations))
	for _, an := range annotations {
		items = append(items, annotationToResponse(an))
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleResolveAnnotation — реализация
// POST /api/v1/deliverables/{asset_id}/annotations/{annotation_id}/resolve.
func (h *APIHandler) handleResolveAnnotation(w http.ResponseWriter, r *http.Request) {
	if _, ok := assetIDFromURL(w, r); !ok {
		return
	}

	annotationID, err := uuid.Parse(chi.URLParam(r, "annotation_id"))
	if err != nil {
		apierrors.ValidationError(w, "Некорректный annotation_id: ожидается UUID")
		return
	}

	if err := h.delivery.ResolveAnnotation(r.Context(), annotationID.String()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
