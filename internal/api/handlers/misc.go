// misc.go — служебные endpoints: /guid/mint, /guid/prefix, /_status, /_stats, /_version.
package handlers

import (
	"net/http"

	"github.com/bigkaa/goartstore/index-module/internal/config"
)

// MintGUIDs — GET /guid/mint?count=N. Количество приводится к [0, 10000].
func (h *APIHandler) MintGUIDs(w http.ResponseWriter, r *http.Request) {
	var count *int
	if err := bindQuery(r.URL.Query(), "count", &count); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"guids": h.records.MintGUIDs(deref(count, 1)),
	})
}

// GetPrefix — GET /guid/prefix. null, если префикс не добавляется при выпуске.
func (h *APIHandler) GetPrefix(w http.ResponseWriter, _ *http.Request) {
	var prefix *string
	if p := h.records.MintPrefix(); p != "" {
		prefix = &p
	}
	writeJSON(w, http.StatusOK, map[string]*string{"prefix": prefix})
}

// GetStatus — GET /_status. Текст "Healthy" или UNHEALTHY (500).
func (h *APIHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if err := h.stats.HealthCheck(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Healthy"))
}

// GetStats — GET /_stats.
func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.Stats(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type versionResponse struct {
	Version string `json:"version"`
	Layout  string `json:"layout"`
}

// GetVersion — GET /_version.
func (h *APIHandler) GetVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{
		Version: config.Version,
		Layout:  h.records.Layout(),
	})
}
