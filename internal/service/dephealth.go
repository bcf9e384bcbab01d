// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Index Module мониторит:
//   - PostgreSQL — SQL checker через существующий pgxpool (connection pool mode, critical)
//   - policy engine — HTTP checker, если задан IM_AUTHZ_URL (non-critical: чтение работает без него)
//   - пиры DIST — HTTP checker к базовому URL пира (non-critical)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками.
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bigkaa/goartstore/index-module/internal/config"
)

// DephealthParams — параметры мониторинга зависимостей.
type DephealthParams struct {
	// ServiceID — имя вершины графа текущего приложения
	ServiceID string
	// Group — имя группы в метриках (IM_DEPHEALTH_GROUP)
	Group string
	// DB — *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool()
	DB *sql.DB
	// PGConnURL — URL подключения к PostgreSQL (для лейблов, не для подключения)
	PGConnURL string
	// AuthzURL — базовый URL policy engine (пусто — не мониторится)
	AuthzURL string
	// Dist — пиры глобального резолвера
	Dist          []config.DistPeer
	CheckInterval time.Duration
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(p DephealthParams, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(p, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(p DephealthParams, logger *slog.Logger, registerer prometheus.Registerer) (*DephealthService, error) {
	return newDephealthService(p, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(p DephealthParams, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(p.DB)),
			dephealth.FromURL(p.PGConnURL),
			dephealth.CheckInterval(p.CheckInterval),
			dephealth.Critical(true),
		),
	}

	if p.AuthzURL != "" {
		opts = append(opts, dephealth.HTTP("policy-engine",
			dephealth.FromURL(p.AuthzURL),
			dephealth.WithHTTPHealthPath("/health"),
			dephealth.CheckInterval(p.CheckInterval),
			dephealth.Critical(false),
		))
	}

	for _, peer := range p.Dist {
		opts = append(opts, dephealth.HTTP(DistDepName(peer),
			dephealth.FromURL(peer.Host),
			dephealth.WithHTTPHealthPath(distHealthPath(peer)),
			dephealth.CheckInterval(p.CheckInterval),
			dephealth.Critical(false),
		))
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(p.ServiceID, p.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}

var (
	depNameInvalid = regexp.MustCompile(`[^a-z0-9-]+`)
	depNameDashes  = regexp.MustCompile(`-{2,}`)
)

// maxDepNameLen — ограничение длины имени зависимости (DNS label).
const maxDepNameLen = 63

// DistDepName возвращает имя зависимости для пира DIST: dist-<name или host>,
// приведённое к [a-z0-9-], не длиннее 63 символов.
func DistDepName(peer config.DistPeer) string {
	base := peer.Name
	if base == "" {
		base = strings.TrimPrefix(strings.TrimPrefix(peer.Host, "https://"), "http://")
	}
	name := depNameInvalid.ReplaceAllString(strings.ToLower(base), "-")
	name = depNameDashes.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if name == "" {
		name = "unknown"
	}
	name = "dist-" + name
	if len(name) > maxDepNameLen {
		name = strings.TrimRight(name[:maxDepNameLen], "-")
	}
	return name
}

// distHealthPath — путь проверки пира: service-info для drs, _status для indexd.
func distHealthPath(peer config.DistPeer) string {
	if peer.Type == "drs" {
		return "/ga4gh/drs/v1/service-info"
	}
	return "/_status"
}
