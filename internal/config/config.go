// Пакет config — загрузка и валидация конфигурации Delivery Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Delivery Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8000-8009)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- OIDC / JWT ---

	// URL OIDC-провайдера (например, https://keycloak.kryukov.lan/realms/mediastore)
	AuthIssuerURL string
	// URL JWKS endpoint (авто-вычисляется из AuthIssuerURL, если не задан)
	AuthJWKSURL string
	// Claim для групп в JWT
	AuthGroupsClaim string

	// --- Маппинг групп → ролей ---

	// Группы, дающие роль admin (через запятую)
	RoleAdminGroups []string
	// Группы, дающие роль operator (через запятую)
	RoleOperatorGroups []string
	// Группы, дающие роль client (через запятую)
	RoleClientGroups []string

	// --- Токены доступа к файлам ---

	// Секрет подписи HS256 токенов выдачи файлов
	AccessTokenSecret string
	// Время жизни токена выдачи
	AccessTokenTTL time.Duration

	// --- Доставка ---

	// Срок доступа deliverable по умолчанию, если не задан явно
	DeliveryDefaultTTL time.Duration
	// Интервал фонового отзыва истёкших ассетов
	ExpirySweepInterval time.Duration

	// --- Уведомления ---

	// URL сервиса уведомлений (пусто — уведомления отключены)
	NotifierURL string
	// Таймаут HTTP-запросов к сервису уведомлений
	NotifierTimeout time.Duration

	// --- Кеш снимков каталога ---

	// Максимальное количество проектов в кеше
	CacheSize int
	// Время жизни записи кеша
	CacheTTL time.Duration

	// --- Пагинация ---

	// Размер страницы каталога по умолчанию
	PageSizeDefault int
	// Максимальный размер страницы каталога
	PageSizeMax int

	// --- Прочее ---

	// Имя группы topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// DM_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("DM_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("DM_PORT: %w", err)
	}
	if cfg.Port < 8000 || cfg.Port > 8009 {
		return nil, fmt.Errorf("DM_PORT: значение %d вне допустимого диапазона 8000-8009", cfg.Port)
	}

	// DM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("DM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DM_LOG_LEVEL: %w", err)
	}

	// DM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("DM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// DM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("DM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// DM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("DM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("DM_DB_PORT: %w", err)
	}

	// DM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("DM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// DM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("DM_DB_USER")
	if err != nil {
		return nil, err
	}

	// DM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("DM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// DM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("DM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("DM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- OIDC / JWT ---

	// DM_AUTH_ISSUER_URL — обязательный
	cfg.AuthIssuerURL, err = getEnvRequired("DM_AUTH_ISSUER_URL")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.AuthIssuerURL = strings.TrimRight(cfg.AuthIssuerURL, "/")

	// DM_AUTH_JWKS_URL — авто-вычисляется из AuthIssuerURL, если не задан
	cfg.AuthJWKSURL = getEnvDefault("DM_AUTH_JWKS_URL",
		fmt.Sprintf("%s/protocol/openid-connect/certs", cfg.AuthIssuerURL))

	// DM_AUTH_GROUPS_CLAIM — claim для групп (по умолчанию groups)
	cfg.AuthGroupsClaim = getEnvDefault("DM_AUTH_GROUPS_CLAIM", "groups")

	// --- Маппинг групп → ролей ---

	// DM_ROLE_ADMIN_GROUPS — группы для роли admin (по умолчанию "mediastore-admins")
	cfg.RoleAdminGroups = parseCSV(getEnvDefault("DM_ROLE_ADMIN_GROUPS", "mediastore-admins"))

	// DM_ROLE_OPERATOR_GROUPS — группы для роли operator (по умолчанию "mediastore-operators")
	cfg.RoleOperatorGroups = parseCSV(getEnvDefault("DM_ROLE_OPERATOR_GROUPS", "mediastore-operators"))

	// DM_ROLE_CLIENT_GROUPS — группы для роли client (по умолчанию "mediastore-clients")
	cfg.RoleClientGroups = parseCSV(getEnvDefault("DM_ROLE_CLIENT_GROUPS", "mediastore-clients"))

	// --- Токены доступа к файлам ---

	// DM_ACCESS_TOKEN_SECRET — обязательный
	cfg.AccessTokenSecret, err = getEnvRequired("DM_ACCESS_TOKEN_SECRET")
	if err != nil {
		return nil, err
	}
	if len(cfg.AccessTokenSecret) < 32 {
		return nil, fmt.Errorf("DM_ACCESS_TOKEN_SECRET: длина %d меньше минимальной 32", len(cfg.AccessTokenSecret))
	}

	// DM_ACCESS_TOKEN_TTL — время жизни токена выдачи (по умолчанию 15m)
	cfg.AccessTokenTTL, err = getEnvDuration("DM_ACCESS_TOKEN_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DM_ACCESS_TOKEN_TTL: %w", err)
	}

	// --- Доставка ---

	// DM_DELIVERY_DEFAULT_TTL — срок доступа по умолчанию (по умолчанию 720h)
	cfg.DeliveryDefaultTTL, err = getEnvDuration("DM_DELIVERY_DEFAULT_TTL", 720*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DM_DELIVERY_DEFAULT_TTL: %w", err)
	}

	// DM_EXPIRY_SWEEP_INTERVAL — интервал отзыва истёкших ассетов (по умолчанию 5m)
	cfg.ExpirySweepInterval, err = getEnvDuration("DM_EXPIRY_SWEEP_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DM_EXPIRY_SWEEP_INTERVAL: %w", err)
	}

	// --- Уведомления ---

	// DM_NOTIFIER_URL — URL сервиса уведомлений (опционально)
	cfg.NotifierURL = strings.TrimRight(getEnvDefault("DM_NOTIFIER_URL", ""), "/")

	// DM_NOTIFIER_TIMEOUT — таймаут запросов к уведомлениям (по умолчанию 5s)
	cfg.NotifierTimeout, err = getEnvDuration("DM_NOTIFIER_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_NOTIFIER_TIMEOUT: %w", err)
	}

	// --- Кеш снимков каталога ---

	// DM_CACHE_SIZE — количество проектов в кеше (по умолчанию 256)
	cfg.CacheSize, err = getEnvInt("DM_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("DM_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("DM_CACHE_SIZE: значение %d должно быть положительным", cfg.CacheSize)
	}

	// DM_CACHE_TTL — время жизни записи кеша (по умолчанию 30s)
	cfg.CacheTTL, err = getEnvDuration("DM_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_CACHE_TTL: %w", err)
	}

	// --- Пагинация ---

	// DM_PAGE_SIZE_DEFAULT — размер страницы по умолчанию (по умолчанию 50)
	cfg.PageSizeDefault, err = getEnvInt("DM_PAGE_SIZE_DEFAULT", 50)
	if err != nil {
		return nil, fmt.Errorf("DM_PAGE_SIZE_DEFAULT: %w", err)
	}

	// DM_PAGE_SIZE_MAX — максимальный размер страницы (по умолчанию 200)
	cfg.PageSizeMax, err = getEnvInt("DM_PAGE_SIZE_MAX", 200)
	if err != nil {
		return nil, fmt.Errorf("DM_PAGE_SIZE_MAX: %w", err)
	}
	if cfg.PageSizeDefault < 1 || cfg.PageSizeDefault > cfg.PageSizeMax {
		return nil, fmt.Errorf("DM_PAGE_SIZE_DEFAULT: значение %d вне диапазона 1-%d", cfg.PageSizeDefault, cfg.PageSizeMax)
	}

	// --- Прочее ---

	// DM_DEPHEALTH_GROUP — имя группы topologymetrics (по умолчанию mediastore)
	cfg.DephealthGroup = getEnvDefault("DM_DEPHEALTH_GROUP", "mediastore")

	// DM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("DM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// DM_HTTP_READ_TIMEOUT, DM_HTTP_WRITE_TIMEOUT, DM_HTTP_IDLE_TIMEOUT — таймауты HTTP-сервера
	cfg.HTTPReadTimeout, err = getEnvDuration("DM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("DM_HTTP_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("DM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// DM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("DM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL
// (для topologymetrics и golang-migrate).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.DBUser), url.QueryEscape(c.DBPassword),
		c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
