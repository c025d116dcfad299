// expiry.go — фоновый отзыв доступа к deliverable с истёкшим сроком.
//
// Sweeper помечает deliverable-ассеты с expires_at в прошлом
// как access_revoked: клиент теряет доступ, запись остаётся в каталоге.
//
// Запускается как горутина с периодическим тикером (DM_EXPIRY_SWEEP_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gomediastore/internal/repository"
)

// Prometheus метрики sweeper'а
var (
	// sweepRunsTotal — количество запусков sweeper'а.
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_expiry_sweep_runs_total",
		Help: "Общее количество запусков отзыва истёкших ассетов",
	})

	// sweepRevokedTotal — количество отозванных ассетов.
	sweepRevokedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_expiry_revoked_total",
		Help: "Общее количество ассетов с отозванным доступом",
	})

	// sweepDurationSeconds — длительность выполнения одного прохода.
	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dm_expiry_sweep_duration_seconds",
		Help:    "Длительность прохода отзыва в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// SweepResult — результат одного прохода sweeper'а.
type SweepResult struct {
	// RevokedCount — количество ассетов с отозванным доступом
	RevokedCount int
	// Errors — количество ошибок
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// ExpirySweeper — сервис фонового отзыва истёкших ассетов.
type ExpirySweeper struct {
	repo     repository.AssetRepository
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex // защита от параллельного запуска RunOnce
	running bool       // флаг работы фонового процесса
	cancel  context.CancelFunc
}

// NewExpirySweeper создаёт sweeper.
func NewExpirySweeper(repo repository.AssetRepository, interval time.Duration, logger *slog.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		repo:     repo,
		interval: interval,
		logger:   logger.With(slog.String("component", "expiry_sweeper")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
// Вызывается один раз при старте приложения.
func (sw *ExpirySweeper) Start(ctx context.Context) {
	swCtx, cancel := context.WithCancel(ctx)
	sw.cancel = cancel
	sw.running = true

	go sw.run(swCtx)

	sw.logger.Info("Отзыв истёкших ассетов запущен",
		slog.String("interval", sw.interval.String()),
	)
}

// Stop останавливает фоновый процесс.
func (sw *ExpirySweeper) Stop() {
	if sw.cancel != nil {
		sw.cancel()
	}
	sw.running = false
	sw.logger.Info("Отзыв истёкших ассетов остановлен")
}

// run — основной цикл фоновой горутины.
func (sw *ExpirySweeper) run(ctx context.Context) {
	// Первый проход — сразу после старта
	sw.RunOnce(ctx)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход отзыва.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
func (sw *ExpirySweeper) RunOnce(ctx context.Context) *SweepResult {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	start := time.Now()
	result := &SweepResult{}

	sw.logger.Debug("Проход отзыва начат")

	revoked, err := sw.repo.RevokeExpired(ctx, time.Now().UTC())
	if err != nil {
		sw.logger.Error("Ошибка отзыва истёкших ассетов",
			slog.String("error", err.Error()),
		)
		result.Errors++
	}
	result.RevokedCount = revoked
	result.Duration = time.Since(start)

	// Обновляем Prometheus метрики
	sweepRunsTotal.Inc()
	sweepRevokedTotal.Add(float64(revoked))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	if revoked > 0 {
		sw.logger.Info("Проход отзыва завершён",
			slog.Int("revoked", result.RevokedCount),
			slog.Int("errors", result.Errors),
			slog.Duration("duration", result.Duration),
		)
	}

	return result
}
