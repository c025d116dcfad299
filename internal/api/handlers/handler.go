// handler.go — основной обработчик API Delivery Module.
// Объединяет health и бизнес-обработчики, регистрирует маршруты chi
// и выполняет единое отображение ошибок сервисного слоя на HTTP-ответы.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/gomediastore/internal/api/errors"
	"github.com/bigkaa/gomediastore/internal/api/middleware"
	"github.com/bigkaa/gomediastore/internal/domain/rbac"
	"github.com/bigkaa/gomediastore/internal/service"
)

// APIHandler — основной обработчик API Delivery Module.
// Делегирует запросы в сервисный слой.
type APIHandler struct {
	catalog  *service.CatalogService
	delivery *service.DeliveryService
	access   *service.AccessService
	query    *service.QueryService
	health   *HealthHandler
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	catalog *service.CatalogService,
	delivery *service.DeliveryService,
	access *service.AccessService,
	query *service.QueryService,
	health *HealthHandler,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		catalog:  catalog,
		delivery: delivery,
		access:   access,
		query:    query,
		health:   health,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// RegisterRoutes регистрирует маршруты API на chi-роутере.
// authMW — JWT middleware; nil допустим только в тестах (маршруты без аутентификации).
func (h *APIHandler) RegisterRoutes(r chi.Router, authMW func(http.Handler) http.Handler) {
	// Служебные endpoints — без аутентификации
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)
	r.Get("/api/v1/openapi.json", h.health.GetOpenAPISpec)

	r.Route("/api/v1", func(r chi.Router) {
		if authMW != nil {
			r.Use(authMW)
		}

		// Каталог: регистрация и метаданные — operator+
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(rbac.RoleOperator))
			r.Post("/assets", h.handleRegisterAsset)
			r.Patch("/assets/{asset_id}", h.handleUpdateAsset)
			r.Delete("/assets/{asset_id}", h.handleDeleteAsset)
			r.Post("/assets/{asset_id}/processing", h.handleStartProcessing)
			r.Post("/assets/{asset_id}/transcoding", h.handleTranscodingResult)
			r.Post("/deliverables", h.handleMarkDeliverable)
			r.Post("/deliverables/{asset_id}/resubmit", h.handleResubmit)
			r.Post("/deliverables/{asset_id}/annotations/{annotation_id}/resolve", h.handleResolveAnnotation)
		})

		// Чтение и решения заказчика — client+
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(rbac.RoleClient))
			r.Get("/assets/{asset_id}", h.handleGetAsset)
			r.Post("/assets/{asset_id}/access", h.handleAccessRequest)
			r.Post("/deliverables/{asset_id}/approve", h.handleApprove)
			r.Post("/deliverables/{asset_id}/revision", h.handleRequestRevision)
			r.Get("/deliverables/{asset_id}/annotations", h.handleListAnnotations)
			r.Get("/projects/{project_id}/catalog", h.handleCatalog)
		})
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError отображает ошибку сервисного слоя на HTTP-ответ.
// Неизвестные ошибки логируются и возвращаются как 500.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Ассет не найден")
	case errors.Is(err, service.ErrInvalidTransition):
		apierrors.InvalidTransition(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrAccessExpired):
		apierrors.AccessDenied(w, apierrors.ReasonExpired, "Срок доступа к deliverable истёк")
	case errors.Is(err, service.ErrAccessNotApproved):
		apierrors.AccessDenied(w, apierrors.ReasonNotApproved, "Deliverable не согласован для доступа")
	default:
		h.logger.Error("Внутренняя ошибка обработки запроса",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// actorFromRequest извлекает имя субъекта для аудита и аннотаций.
func actorFromRequest(r *http.Request) string {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		return ""
	}
	return principal.DisplayName()
}
