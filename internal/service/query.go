// query.go — сервис фасетного поиска по каталогу проекта.
// Загружает снимок каталога (через LRU-кэш) и выполняет
// фильтрацию, подсчёт фасетов, сортировку и пагинацию in-memory.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gomediastore/internal/facet"
	"github.com/bigkaa/gomediastore/internal/repository"
)

// Prometheus-метрики поиска.
var (
	searchRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_search_requests_total",
		Help: "Общее количество фасетных запросов к каталогу.",
	})
	searchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dm_search_duration_seconds",
		Help:    "Длительность фасетного запроса в секундах.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
	searchSnapshotSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dm_search_snapshot_size",
		Help:    "Размер снимка каталога, обработанного фасетным запросом.",
		Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000},
	})
)

// QueryService — сервис фасетного поиска.
type QueryService struct {
	repo            repository.AssetRepository
	cache           *SnapshotCache
	pageSizeDefault int
	pageSizeMax     int
	logger          *slog.Logger
}

// NewQueryService создаёт сервис поиска.
func NewQueryService(
	repo repository.AssetRepository,
	cache *SnapshotCache,
	pageSizeDefault, pageSizeMax int,
	logger *slog.Logger,
) *QueryService {
	return &QueryService{
		repo:            repo,
		cache:           cache,
		pageSizeDefault: pageSizeDefault,
		pageSizeMax:     pageSizeMax,
		logger:          logger.With(slog.String("component", "query_service")),
	}
}

// NormalizePage приводит параметры пагинации к допустимому диапазону:
// limit ≤ 0 — значение по умолчанию, limit выше максимума — максимум,
// отрицательный offset — ноль.
func (s *QueryService) NormalizePage(page facet.Page) facet.Page {
	if page.Limit <= 0 {
		page.Limit = s.pageSizeDefault
	}
	if page.Limit > s.pageSizeMax {
		page.Limit = s.pageSizeMax
	}
	if page.Offset < 0 {
		page.Offset = 0
	}
	return page
}

// Catalog выполняет фасетный запрос по каталогу проекта.
// Размер страницы приводится к допустимому диапазону,
// отрицательный offset — к нулю.
func (s *QueryService) Catalog(ctx context.Context, projectID string, filter facet.Filter, sort facet.Sort, page facet.Page) (*facet.Result, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project_id обязателен", ErrValidation)
	}

	page = s.NormalizePage(page)

	snapshot, ok := s.cache.Get(projectID)
	if !ok {
		var err error
		snapshot, err = s.repo.SnapshotByProject(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("снимок каталога: %w", err)
		}
		s.cache.Set(projectID, snapshot)
	}

	start := time.Now()
	result := facet.Query(snapshot, filter, sort, page)

	searchRequestsTotal.Inc()
	searchDurationSeconds.Observe(time.Since(start).Seconds())
	searchSnapshotSize.Observe(float64(len(snapshot)))

	s.logger.Debug("Фасетный запрос выполнен",
		slog.String("project_id", projectID),
		slog.Int("total", result.Counts.Total),
		slog.Int("filtered", result.Counts.Filtered),
		slog.Int("page", len(result.Page)),
	)

	return &result, nil
}
