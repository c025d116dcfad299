// Точка входа Delivery Module — модуль доставки медиа-ассетов.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// создаёт сервисный слой и API handlers, запускает фоновые задачи
// (expiry sweeper, topologymetrics), HTTP-сервер с JWT middleware
// и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/gomediastore/internal/api/handlers"
	"github.com/bigkaa/gomediastore/internal/api/middleware"
	"github.com/bigkaa/gomediastore/internal/api/openapi"
	"github.com/bigkaa/gomediastore/internal/config"
	"github.com/bigkaa/gomediastore/internal/database"
	"github.com/bigkaa/gomediastore/internal/notifier"
	"github.com/bigkaa/gomediastore/internal/repository"
	"github.com/bigkaa/gomediastore/internal/server"
	"github.com/bigkaa/gomediastore/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Delivery Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("DM_DEPHEALTH_GROUP") == "" {
		logger.Warn("DM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Валидация OpenAPI контракта
	ctx := context.Background()
	specJSON, err := openapi.LoadJSON(ctx)
	if err != nil {
		logger.Error("Ошибка OpenAPI контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Подключение к PostgreSQL (pgxpool)
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 6. Repository и кэш снапшотов каталога
	assetRepo := repository.NewAssetRepository(pool)
	snapshotCache := service.NewSnapshotCache(cfg.CacheSize, cfg.CacheTTL)

	// 7. Клиент сервиса уведомлений (отключён при пустом DM_NOTIFIER_URL)
	notifierClient := notifier.New(cfg.NotifierURL, cfg.NotifierTimeout, logger)
	if notifierClient.Enabled() {
		logger.Info("Сервис уведомлений подключён", slog.String("url", cfg.NotifierURL))
	} else {
		logger.Info("Сервис уведомлений отключён (DM_NOTIFIER_URL не задан)")
	}

	// 8. Services
	catalogSvc := service.NewCatalogService(assetRepo, snapshotCache, logger)
	deliverySvc := service.NewDeliveryService(assetRepo, snapshotCache, notifierClient, cfg.DeliveryDefaultTTL, logger)
	accessSvc := service.NewAccessService(assetRepo, cfg.AccessTokenSecret, cfg.AccessTokenTTL, logger)
	querySvc := service.NewQueryService(assetRepo, snapshotCache, cfg.PageSizeDefault, cfg.PageSizeMax, logger)

	// 9. Фоновый отзыв просроченных deliverables
	sweeper := service.NewExpirySweeper(assetRepo, cfg.ExpirySweepInterval, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// 10. topologymetrics — мониторинг зависимостей (PostgreSQL + OIDC)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"delivery-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.AuthJWKSURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			defer dephealthSvc.Stop()
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 11. Health handler (PostgreSQL readiness + OpenAPI контракт)
	pgChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(pgChecker, specJSON)

	// 12. API handler
	apiHandler := handlers.NewAPIHandler(
		catalogSvc,
		deliverySvc,
		accessSvc,
		querySvc,
		healthHandler,
		logger,
	)

	// 13. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(middleware.JWTAuthOptions{
		JWKSURL:        cfg.AuthJWKSURL,
		Issuer:         cfg.AuthIssuerURL,
		GroupsClaim:    cfg.AuthGroupsClaim,
		AdminGroups:    cfg.RoleAdminGroups,
		OperatorGroups: cfg.RoleOperatorGroups,
		ClientGroups:   cfg.RoleClientGroups,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jwtAuth.Close()
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.AuthJWKSURL),
		slog.String("issuer", cfg.AuthIssuerURL),
	)

	// 14. HTTP-сервер: metrics и logging — глобально, JWT — внутри /api/v1
	srv := server.New(cfg, logger, apiHandler, jwtAuth.Middleware(),
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	// 15. Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Delivery Module остановлен")
}
