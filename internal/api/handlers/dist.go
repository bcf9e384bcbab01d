// dist.go — глобальное разрешение did: GET /{did}.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/bigkaa/goartstore/index-module/internal/service"
)

// ResolveDID — GET /{did}. Сначала локальный индекс (префикс не строгий),
// при NO_RECORD опрашиваются пиры DIST; документ пира отдаётся как есть.
func (h *APIHandler) ResolveDID(w http.ResponseWriter, r *http.Request) {
	did, err := wildcardParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !h.authorizeRead(w, r) {
		return
	}

	rec, err := h.records.GetWithNonstrictPrefix(r.Context(), did)
	if err == nil {
		writeJSON(w, http.StatusOK, mapRecord(rec))
		return
	}
	if !errors.Is(err, service.ErrNotFound) || h.resolver == nil || !h.resolver.Enabled() {
		h.fail(w, err)
		return
	}

	doc, err := h.resolver.Resolve(r.Context(), did)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Debug("did разрешён через DIST",
		slog.String("did", did),
		slog.String("peer", doc.Peer),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}
