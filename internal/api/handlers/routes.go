// routes.go — регистрация маршрутов Index Module.
// Идентификаторы и имена алиасов могут содержать "/", поэтому вложенные пути
// регистрируются через wildcard и разбираются обработчиками.
package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes регистрирует все маршруты API на роутере.
func RegisterRoutes(r chi.Router, h *APIHandler) {
	// Health и метрики
	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)
	r.Get("/metrics", h.GetMetrics)

	// Записи индекса
	for _, p := range []string{"/index", "/index/"} {
		r.Get(p, h.ListRecords)
		r.Post(p, h.CreateRecord)
	}
	for _, p := range []string{"/index/blank", "/index/blank/"} {
		r.Post(p, h.CreateBlank)
	}
	r.Post("/index/blank/*", h.CreateBlankVersion)
	r.Put("/index/blank/*", h.BlankUpdate)

	r.Get("/index/*", h.IndexGet)
	r.Post("/index/*", h.IndexPost)
	r.Put("/index/*", h.IndexPut)
	r.Delete("/index/*", h.IndexDelete)

	// Запросы
	for _, p := range []string{"/urls", "/urls/"} {
		r.Get(p, h.ListURLs)
	}
	for _, p := range []string{"/urls/query", "/urls/query/"} {
		r.Get(p, h.QueryURLs)
	}
	for _, p := range []string{"/urls/metadata", "/urls/metadata/"} {
		r.Get(p, h.QueryURLMetadata)
	}
	r.Post("/bulk/documents", h.BulkDocuments)
	r.Post("/bulk/documents/latest", h.BulkDocumentsLatest)

	// Глобальные алиасы
	for _, p := range []string{"/alias", "/alias/"} {
		r.Get(p, h.ListGlobalAliases)
	}
	r.Get("/alias/*", h.GetGlobalAlias)
	r.Put("/alias/*", h.PutGlobalAlias)
	r.Delete("/alias/*", h.DeleteGlobalAlias)

	// Служебные
	r.Get("/guid/mint", h.MintGUIDs)
	r.Get("/guid/prefix", h.GetPrefix)
	r.Get("/_status", h.GetStatus)
	r.Get("/_stats", h.GetStats)
	r.Get("/_version", h.GetVersion)

	// GA4GH
	r.Get("/ga4gh/drs/v1/service-info", h.DRSServiceInfo)
	r.Get("/ga4gh/drs/v1/objects", h.ListDRSObjects)
	r.Get("/ga4gh/drs/v1/objects/*", h.GetDRSObject)
	r.Get("/ga4gh/dos/v1/dataobjects", h.ListDOSObjects)
	r.Get("/ga4gh/dos/v1/dataobjects/*", h.GetDOSObject)

	// Глобальное разрешение did (DIST)
	r.Get("/*", h.ResolveDID)
}
