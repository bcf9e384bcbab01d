// metrics.go — Prometheus HTTP метрики Index Module.
// Регистрирует метрики: im_http_requests_total, im_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "im_http_requests_total",
			Help: "Общее количество HTTP-запросов к Index Module",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "im_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Index Module в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// staticPaths — пути без идентификаторов.
var staticPaths = map[string]struct{}{
	"/health/live": {}, "/health/ready": {}, "/metrics": {},
	"/index": {}, "/index/": {}, "/index/blank": {}, "/index/blank/": {},
	"/urls": {}, "/urls/": {}, "/urls/query": {}, "/urls/query/": {},
	"/urls/metadata": {}, "/urls/metadata/": {},
	"/bulk/documents": {}, "/bulk/documents/latest": {},
	"/alias": {}, "/alias/": {},
	"/guid/mint": {}, "/guid/prefix": {},
	"/_status": {}, "/_stats": {}, "/_version": {},
	"/ga4gh/drs/v1/objects": {}, "/ga4gh/drs/v1/service-info": {},
	"/ga4gh/dos/v1/dataobjects": {},
}

// indexSuffixes — подресурсы записи после /index/{did}.
var indexSuffixes = []string{"/versions", "/latest", "/aliases"}

// normalizePath заменяет идентификаторы в пути на шаблоны для предотвращения
// взрывного роста кардинальности метрик. did может содержать "/" (префикс),
// поэтому подресурсы распознаются по суффиксу.
// /index/dg.4503/0f1a.../versions → /index/{did}/versions
func normalizePath(path string) string {
	if _, ok := staticPaths[path]; ok {
		return path
	}

	switch {
	case strings.HasPrefix(path, "/index/blank/"):
		return "/index/blank/{did}"
	case strings.HasPrefix(path, "/index/"):
		rest := strings.TrimPrefix(path, "/index/")
		if i := strings.LastIndex(rest, "/aliases/"); i > 0 {
			return "/index/{did}/aliases/{name}"
		}
		for _, s := range indexSuffixes {
			if strings.HasSuffix(rest, s) {
				return "/index/{did}" + s
			}
		}
		return "/index/{did}"
	case strings.HasPrefix(path, "/alias/"):
		return "/alias/{name}"
	case strings.HasPrefix(path, "/ga4gh/drs/v1/objects/"):
		return "/ga4gh/drs/v1/objects/{id}"
	case strings.HasPrefix(path, "/ga4gh/dos/v1/dataobjects/"):
		return "/ga4gh/dos/v1/dataobjects/{id}"
	}
	return "/{did}"
}
