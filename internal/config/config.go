// Пакет config — загрузка и валидация конфигурации Index Module
// из переменных окружения.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые раскладки хранилища индекса.
const (
	// IndexDriverMulti — нормализованная раскладка (отдельные таблицы для хэшей, URL и т.д.)
	IndexDriverMulti = "multi"
	// IndexDriverSingle — денормализованная раскладка (одна таблица record с JSONB/массивами)
	IndexDriverSingle = "single"
)

// DistPeer — внешний реестр, к которому обращается глобальный резолвер,
// если запись не найдена локально.
type DistPeer struct {
	// Name — имя пира (для логов)
	Name string `json:"name"`
	// Host — базовый URL пира
	Host string `json:"host"`
	// Hints — регулярные выражения; пир опрашивается, если did совпадает хотя бы с одним
	Hints []string `json:"hints"`
	// Type — протокол пира: indexd (GET /index/{did}) или drs (GET /ga4gh/drs/v1/objects/{did})
	Type string `json:"type"`
}

// Config содержит все параметры конфигурации Index Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8040-8049)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Базовый размер пула соединений
	DBPoolSize int
	// Допустимое превышение пула сверх DBPoolSize
	DBPoolOverflow int

	// --- Драйверы ---

	// Раскладка индекса: multi или single
	IndexDriver string
	// Драйвер реестра глобальных алиасов (поддерживается только postgres)
	AliasDriver string
	// Драйвер хранилища учётных данных Basic (поддерживается только postgres)
	AuthDriver string

	// --- Идентификаторы ---

	// Префикс по умолчанию (например, "dg.4503/")
	DefaultPrefix string
	// Добавлять префикс к сгенерированным did
	PrependPrefix bool
	// Создавать алиас <prefix><did> при создании записи
	AddPrefixAlias bool

	// --- Внешние реестры и DRS ---

	// Пиры глобального резолвера
	Dist []DistPeer
	// Таймаут запроса к пиру
	DistTimeout time.Duration
	// Переопределения полей DRS service-info (сырой JSON-объект)
	DRSServiceInfo map[string]any

	// --- Авторизация ---

	// Доступны ли записи для чтения без проверки прав
	AreRecordsDiscoverable bool
	// Ресурсы, на которые требуется право read, если записи не discoverable
	GlobalDiscoveryAuthz []string
	// Базовый URL policy engine (пусто — все запросы без Basic отклоняются)
	AuthzURL string
	// Таймаут запроса к policy engine
	AuthzTimeout time.Duration
	// Максимальное количество решений в кэше
	AuthzCacheSize int
	// Максимальное время жизни решения в кэше
	AuthzCacheMaxTTL time.Duration

	// --- JWT (опциональная проверка подписи bearer-токенов) ---

	// URL JWKS endpoint; пусто — подпись не проверяется (проверку выполняет policy engine)
	JWTJWKSURL string
	// Ожидаемый issuer (пусто — не проверяется)
	JWTIssuer string
	// Допустимое отклонение времени при проверке exp/nbf
	JWTLeeway time.Duration

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
//
//nolint:cyclop,funlen // линейная загрузка параметров
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// IM_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("IM_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("IM_PORT: %w", err)
	}
	if cfg.Port < 8040 || cfg.Port > 8049 {
		return nil, fmt.Errorf("IM_PORT: значение %d вне допустимого диапазона 8040-8049", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("IM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("IM_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("IM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("IM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("IM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IM_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("IM_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IM_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("IM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("IM_DB_HOST")
	if err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("IM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("IM_DB_PORT: %w", err)
	}
	cfg.DBName, err = getEnvRequired("IM_DB_NAME")
	if err != nil {
		return nil, err
	}
	cfg.DBUser, err = getEnvRequired("IM_DB_USER")
	if err != nil {
		return nil, err
	}
	cfg.DBPassword, err = getEnvRequired("IM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("IM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("IM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// IM_DB_POOL_SIZE — базовый размер пула (по умолчанию 5)
	cfg.DBPoolSize, err = getEnvInt("IM_DB_POOL_SIZE", 5)
	if err != nil {
		return nil, fmt.Errorf("IM_DB_POOL_SIZE: %w", err)
	}
	if cfg.DBPoolSize < 1 {
		return nil, fmt.Errorf("IM_DB_POOL_SIZE: значение %d должно быть положительным", cfg.DBPoolSize)
	}
	// IM_DB_POOL_OVERFLOW — допустимое превышение (по умолчанию 10)
	cfg.DBPoolOverflow, err = getEnvInt("IM_DB_POOL_OVERFLOW", 10)
	if err != nil {
		return nil, fmt.Errorf("IM_DB_POOL_OVERFLOW: %w", err)
	}
	if cfg.DBPoolOverflow < 0 {
		return nil, fmt.Errorf("IM_DB_POOL_OVERFLOW: значение %d не может быть отрицательным", cfg.DBPoolOverflow)
	}

	// --- Драйверы ---

	cfg.IndexDriver = getEnvDefault("IM_INDEX_DRIVER", IndexDriverMulti)
	if cfg.IndexDriver != IndexDriverMulti && cfg.IndexDriver != IndexDriverSingle {
		return nil, fmt.Errorf("IM_INDEX_DRIVER: недопустимое значение %q, допустимые: multi, single", cfg.IndexDriver)
	}
	cfg.AliasDriver = getEnvDefault("IM_ALIAS_DRIVER", "postgres")
	if cfg.AliasDriver != "postgres" {
		return nil, fmt.Errorf("IM_ALIAS_DRIVER: недопустимое значение %q, поддерживается только postgres", cfg.AliasDriver)
	}
	cfg.AuthDriver = getEnvDefault("IM_AUTH_DRIVER", "postgres")
	if cfg.AuthDriver != "postgres" {
		return nil, fmt.Errorf("IM_AUTH_DRIVER: недопустимое значение %q, поддерживается только postgres", cfg.AuthDriver)
	}

	// --- Идентификаторы ---

	cfg.DefaultPrefix = getEnvDefault("IM_DEFAULT_PREFIX", "")
	cfg.PrependPrefix, err = getEnvBool("IM_PREPEND_PREFIX", false)
	if err != nil {
		return nil, fmt.Errorf("IM_PREPEND_PREFIX: %w", err)
	}
	cfg.AddPrefixAlias, err = getEnvBool("IM_ADD_PREFIX_ALIAS", false)
	if err != nil {
		return nil, fmt.Errorf("IM_ADD_PREFIX_ALIAS: %w", err)
	}
	// Одновременное включение даёт алиасы с двойным префиксом
	if cfg.PrependPrefix && cfg.AddPrefixAlias {
		return nil, fmt.Errorf("IM_PREPEND_PREFIX и IM_ADD_PREFIX_ALIAS не могут быть включены одновременно")
	}
	if (cfg.PrependPrefix || cfg.AddPrefixAlias) && cfg.DefaultPrefix == "" {
		return nil, fmt.Errorf("IM_DEFAULT_PREFIX: обязателен при IM_PREPEND_PREFIX или IM_ADD_PREFIX_ALIAS")
	}

	// --- Внешние реестры и DRS ---

	cfg.Dist, err = parseDist(getEnvDefault("IM_DIST", "[]"))
	if err != nil {
		return nil, fmt.Errorf("IM_DIST: %w", err)
	}
	cfg.DistTimeout, err = getEnvDuration("IM_DIST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IM_DIST_TIMEOUT: %w", err)
	}

	if raw := getEnvDefault("IM_DRS_SERVICE_INFO", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.DRSServiceInfo); err != nil {
			return nil, fmt.Errorf("IM_DRS_SERVICE_INFO: некорректный JSON-объект: %w", err)
		}
	}

	// --- Авторизация ---

	cfg.AreRecordsDiscoverable, err = getEnvBool("IM_ARE_RECORDS_DISCOVERABLE", true)
	if err != nil {
		return nil, fmt.Errorf("IM_ARE_RECORDS_DISCOVERABLE: %w", err)
	}
	cfg.GlobalDiscoveryAuthz = parseCSV(getEnvDefault("IM_GLOBAL_DISCOVERY_AUTHZ", ""))
	if !cfg.AreRecordsDiscoverable && len(cfg.GlobalDiscoveryAuthz) == 0 {
		return nil, fmt.Errorf("IM_GLOBAL_DISCOVERY_AUTHZ: обязателен при IM_ARE_RECORDS_DISCOVERABLE=false")
	}

	cfg.AuthzURL = strings.TrimRight(getEnvDefault("IM_AUTHZ_URL", ""), "/")
	cfg.AuthzTimeout, err = getEnvDuration("IM_AUTHZ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IM_AUTHZ_TIMEOUT: %w", err)
	}
	cfg.AuthzCacheSize, err = getEnvInt("IM_AUTHZ_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("IM_AUTHZ_CACHE_SIZE: %w", err)
	}
	if cfg.AuthzCacheSize < 1 {
		return nil, fmt.Errorf("IM_AUTHZ_CACHE_SIZE: значение %d должно быть положительным", cfg.AuthzCacheSize)
	}
	cfg.AuthzCacheMaxTTL, err = getEnvDuration("IM_AUTHZ_CACHE_MAX_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("IM_AUTHZ_CACHE_MAX_TTL: %w", err)
	}

	// --- JWT ---

	cfg.JWTJWKSURL = getEnvDefault("IM_JWT_JWKS_URL", "")
	cfg.JWTIssuer = getEnvDefault("IM_JWT_ISSUER", "")
	cfg.JWTLeeway, err = getEnvDuration("IM_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IM_JWT_LEEWAY: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("IM_DEPHEALTH_GROUP", "goartstore")
	cfg.DephealthCheckInterval, err = getEnvDuration("IM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("IM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IM_SHUTDOWN_TIMEOUT: %w", err)
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

// DatabaseURL возвращает URL подключения к PostgreSQL (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
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

// getEnvBool возвращает логическое значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q (допустимые: true, false)", val)
	}
	return b, nil
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

// parseDist разбирает JSON-список пиров и проверяет регулярные выражения подсказок.
func parseDist(raw string) ([]DistPeer, error) {
	var peers []DistPeer
	if err := json.Unmarshal([]byte(raw), &peers); err != nil {
		return nil, fmt.Errorf("некорректный JSON-список: %w", err)
	}
	for i := range peers {
		p := &peers[i]
		if p.Host == "" {
			return nil, fmt.Errorf("пир #%d: host обязателен", i)
		}
		p.Host = strings.TrimRight(p.Host, "/")
		if p.Type == "" {
			p.Type = "indexd"
		}
		if p.Type != "indexd" && p.Type != "drs" {
			return nil, fmt.Errorf("пир %q: недопустимый type %q, допустимые: indexd, drs", p.Host, p.Type)
		}
		for _, h := range p.Hints {
			if _, err := regexp.Compile(h); err != nil {
				return nil, fmt.Errorf("пир %q: некорректная подсказка %q: %w", p.Host, h, err)
			}
		}
	}
	return peers, nil
}
