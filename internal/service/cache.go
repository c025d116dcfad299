// cache.go — LRU-кэш снимков каталога проектов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gomediastore/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш снимков каталога.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша снимков каталога.",
	})
)

// SnapshotCache — LRU-кэш снимков каталога с автоматическим TTL.
// Ключ — project_id. Каждый экземпляр DM имеет собственный in-memory кэш
// (per-instance, stateless архитектура); мутации инвалидируют проект целиком.
type SnapshotCache struct {
	cache *expirable.LRU[string, []*model.Asset]
}

// NewSnapshotCache создаёт LRU-кэш с указанным максимальным размером и TTL.
// maxSize — максимальное количество проектов в кэше.
// ttl — время жизни снимка после добавления.
func NewSnapshotCache(maxSize int, ttl time.Duration) *SnapshotCache {
	cache := expirable.NewLRU[string, []*model.Asset](maxSize, nil, ttl)
	return &SnapshotCache{cache: cache}
}

// Get возвращает снимок каталога проекта из кэша.
// Возвращает (снимок, true) при hit или (nil, false) при miss.
// Обновляет Prometheus-метрики hit/miss.
func (c *SnapshotCache) Get(projectID string) ([]*model.Asset, bool) {
	val, ok := c.cache.Get(projectID)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет снимок проекта в кэше.
func (c *SnapshotCache) Set(projectID string, snapshot []*model.Asset) {
	c.cache.Add(projectID, snapshot)
}

// Invalidate удаляет снимок проекта из кэша.
// Вызывается после любой мутации ассетов проекта.
func (c *SnapshotCache) Invalidate(projectID string) {
	c.cache.Remove(projectID)
}
