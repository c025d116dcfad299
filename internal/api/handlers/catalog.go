// catalog.go — обработчик GET /api/v1/projects/{project_id}/catalog.
// Фасетный поиск по снапшоту проекта: фильтры, счётчики, сортировка, пагинация.
package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/gomediastore/internal/api/errors"
	"github.com/bigkaa/gomediastore/internal/domain/workflow"
	"github.com/bigkaa/gomediastore/internal/facet"
)

// handleCatalog — реализация GET /api/v1/projects/{project_id}/catalog.
func (h *APIHandler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "project_id"))
	if err != nil {
		apierrors.ValidationError(w, "Некорректный project_id: ожидается UUID")
		return
	}

	q := r.URL.Query()

	filter, err := parseCatalogFilter(q)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	sort, ok := facet.ParseSort(q.Get("sort"))
	if !ok {
		apierrors.ValidationError(w, fmt.Sprintf("Неизвестная сортировка: %s", q.Get("sort")))
		return
	}

	page, err := parseCatalogPage(q)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	page = h.query.NormalizePage(page)

	result, err := h.query.Catalog(r.Context(), projectID.String(), filter, sort, page)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := CatalogResponse{
		Items:   assetsToResponses(result.Page, q.Get("aspect")),
		Counts:  countsToResponse(result.Counts),
		Limit:   page.Limit,
		Offset:  page.Offset,
		HasMore: result.HasMore,
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseCatalogFilter разбирает query-параметры фильтра каталога.
// Многозначные измерения передаются через запятую (OR внутри измерения).
func parseCatalogFilter(q url.Values) (facet.Filter, error) {
	var filter facet.Filter

	for _, raw := range splitCSV(q.Get("type")) {
		at, err := workflow.ParseAssetType(raw)
		if err != nil {
			return filter, err
		}
		filter.Types = append(filter.Types, at)
	}

	for _, raw := range splitCSV(q.Get("status")) {
		st, err := workflow.ParseIngestStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Statuses = append(filter.Statuses, st)
	}

	filter.Tags = splitCSV(q.Get("tag"))
	filter.Uploaders = splitCSV(q.Get("uploaded_by"))
	filter.Search = strings.TrimSpace(q.Get("q"))

	var err error
	if filter.CreatedAfter, err = parseTimeParam(q, "created_after"); err != nil {
		return filter, err
	}
	if filter.CreatedBefore, err = parseTimeParam(q, "created_before"); err != nil {
		return filter, err
	}
	if filter.CreatedAfter != nil && filter.CreatedBefore != nil &&
		filter.CreatedAfter.After(*filter.CreatedBefore) {
		return filter, fmt.Errorf("created_after не может быть позже created_before")
	}

	return filter, nil
}

// parseCatalogPage разбирает limit и offset.
// Значения за пределами допустимых нормализует сервисный слой.
func parseCatalogPage(q url.Values) (facet.Page, error) {
	var page facet.Page

	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return page, fmt.Errorf("limit должен быть целым числом")
		}
		page.Limit = v
	}

	if raw := q.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return page, fmt.Errorf("offset должен быть целым числом")
		}
		page.Offset = v
	}

	return page, nil
}

// parseTimeParam разбирает опциональный RFC3339 query-параметр.
func parseTimeParam(q url.Values, name string) (*time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s должен быть в формате RFC3339", name)
	}
	return &t, nil
}

// splitCSV разбирает значение через запятую, отбрасывая пустые элементы.
func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
