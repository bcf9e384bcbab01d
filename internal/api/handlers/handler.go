// handler.go — основной обработчик API Index Module.
// Объединяет health и бизнес-обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/goartstore/index-module/internal/api/errors"
	"github.com/bigkaa/goartstore/index-module/internal/dist"
	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
	"github.com/bigkaa/goartstore/index-module/internal/repository"
	"github.com/bigkaa/goartstore/index-module/internal/service"
)

// maxBodySize — ограничение размера тела запроса.
const maxBodySize = 8 << 20

// RecordEngine — операции над записями и запросы индекса.
// Реализуется *service.IndexService.
type RecordEngine interface {
	Prefix() string
	MintPrefix() string
	MintGUIDs(count int) []string
	Layout() string

	Create(ctx context.Context, in service.CreateInput) (service.RecordRef, error)
	CreateBlank(ctx context.Context, in service.BlankInput) (service.RecordRef, error)
	CreateBlankVersion(ctx context.Context, did string, in service.BlankInput) (service.RecordRef, error)
	BlankUpdate(ctx context.Context, did, rev string, in service.BlankUpdateInput) (service.RecordRef, error)
	Update(ctx context.Context, did, rev string, changes model.RecordChanges) (service.RecordRef, error)
	Delete(ctx context.Context, did, rev string) error
	CreateVersion(ctx context.Context, did string, in service.CreateInput) (service.RecordRef, error)

	Get(ctx context.Context, key string) (*model.Record, error)
	GetWithNonstrictPrefix(ctx context.Context, key string) (*model.Record, error)
	GetAllVersions(ctx context.Context, key string, excludeDeleted bool) ([]*model.Record, error)
	GetLatestVersion(ctx context.Context, key string, hasVersion, excludeDeleted bool) (*model.Record, error)
	BulkGet(ctx context.Context, dids []string) ([]*model.Record, error)
	BulkGetLatest(ctx context.Context, dids []string, hasVersion, excludeDeleted bool) ([]*model.Record, error)

	GetAliases(ctx context.Context, did string) ([]string, error)
	AppendAliases(ctx context.Context, did string, names []string) ([]string, error)
	ReplaceAliases(ctx context.Context, did string, names []string) ([]string, error)
	DeleteAlias(ctx context.Context, did, name string) error
	DeleteAllAliases(ctx context.Context, did string) error

	List(ctx context.Context, p service.ListParams) ([]*model.Record, error)
	GetURLs(ctx context.Context, p service.URLListParams) ([]repository.URLEntry, error)
	HashesToURLs(ctx context.Context, size *int64, hashes map[string]string, start, limit int) ([]string, error)
	QueryURLs(ctx context.Context, q repository.URLsQuery) ([]repository.DIDURLs, error)
	QueryMetadataByKey(ctx context.Context, q repository.MetadataKeyQuery) ([]repository.URLMetadataHit, error)
}

// AliasRegistry — реестр глобальных алиасов. Реализуется *service.AliasService.
type AliasRegistry interface {
	Upsert(ctx context.Context, name, rev string, changes model.GlobalAliasChanges) (service.AliasRef, error)
	Get(ctx context.Context, name string) (*model.GlobalAlias, error)
	Delete(ctx context.Context, name, rev string) error
	List(ctx context.Context, q repository.AliasListQuery) ([]*model.GlobalAlias, error)
}

// StatsProvider — статистика и проверка хранилища. Реализуется *service.HealthService.
type StatsProvider interface {
	Stats(ctx context.Context) (service.Stats, error)
	HealthCheck(ctx context.Context) error
}

// ReadGate — проверка права чтения. Реализуется *auth.Gate.
type ReadGate interface {
	AuthorizeRead(ctx context.Context) error
}

// Resolver — глобальный резолвер did. Реализуется *dist.Resolver.
type Resolver interface {
	Enabled() bool
	Resolve(ctx context.Context, did string) (*dist.Document, error)
}

// APIHandler — основной обработчик API Index Module.
type APIHandler struct {
	health   *HealthHandler
	records  RecordEngine
	aliases  AliasRegistry
	stats    StatsProvider
	gate     ReadGate
	resolver Resolver
	drsInfo  map[string]any
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// drsInfo — переопределения полей DRS service-info (может быть nil).
func NewAPIHandler(
	health *HealthHandler,
	records RecordEngine,
	aliases AliasRegistry,
	stats StatsProvider,
	gate ReadGate,
	resolver Resolver,
	drsInfo map[string]any,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:   health,
		records:  records,
		aliases:  aliases,
		stats:    stats,
		gate:     gate,
		resolver: resolver,
		drsInfo:  drsInfo,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// fail записывает ответ для ошибки сервисного слоя.
func (h *APIHandler) fail(w http.ResponseWriter, err error) {
	apierrors.FromError(w, h.logger, err)
}

// authorizeRead проверяет право чтения; false — ответ уже записан.
func (h *APIHandler) authorizeRead(w http.ResponseWriter, r *http.Request) bool {
	if err := h.gate.AuthorizeRead(r.Context()); err != nil {
		h.fail(w, err)
		return false
	}
	return true
}

// readBody читает тело запроса с ограничением размера.
func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: чтение тела запроса: %v", service.ErrValidation, err)
	}
	if len(data) > maxBodySize {
		return nil, fmt.Errorf("%w: тело запроса больше %d байт", service.ErrValidation, maxBodySize)
	}
	return data, nil
}

// bindQuery связывает необязательный query-параметр с dest (form, explode).
// Повторяющиеся параметры собираются в срез.
func bindQuery(q url.Values, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, q, dest); err != nil {
		return fmt.Errorf("%w: параметр %s: %v", service.ErrValidation, name, err)
	}
	return nil
}

// bindQueryCSV связывает необязательный параметр-список через запятую.
func bindQueryCSV(q url.Values, name string, dest *[]string) error {
	if err := runtime.BindQueryParameter("form", false, false, name, q, dest); err != nil {
		return fmt.Errorf("%w: параметр %s: %v", service.ErrValidation, name, err)
	}
	return nil
}

// deref возвращает значение указателя или def.
func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
