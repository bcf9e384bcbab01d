// ga4gh.go — проекции GA4GH: DRS v1 и DOS v1 (только чтение).
package handlers

import (
	"net/http"

	"github.com/bigkaa/goartstore/index-module/internal/config"
	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
	"github.com/bigkaa/goartstore/index-module/internal/projection"
	"github.com/bigkaa/goartstore/index-module/internal/service"
)

// listPage читает limit/page и возвращает страницу записей без фильтров.
func (h *APIHandler) listPage(w http.ResponseWriter, r *http.Request) ([]*model.Record, bool) {
	var limit, page *int
	q := r.URL.Query()
	if err := bindQuery(q, "limit", &limit); err != nil {
		h.fail(w, err)
		return nil, false
	}
	if err := bindQuery(q, "page", &page); err != nil {
		h.fail(w, err)
		return nil, false
	}
	if !h.authorizeRead(w, r) {
		return nil, false
	}
	recs, err := h.records.List(r.Context(), service.ListParams{
		Page:  page,
		Limit: deref(limit, service.DefaultLimit),
	})
	if err != nil {
		h.fail(w, err)
		return nil, false
	}
	return recs, true
}

// objectByID читает запись по id из пути (префикс не строгий).
func (h *APIHandler) objectByID(w http.ResponseWriter, r *http.Request) (*model.Record, bool) {
	id, err := wildcardParam(r)
	if err != nil {
		h.fail(w, err)
		return nil, false
	}
	if !h.authorizeRead(w, r) {
		return nil, false
	}
	rec, err := h.records.GetWithNonstrictPrefix(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return nil, false
	}
	return rec, true
}

// ListDRSObjects — GET /ga4gh/drs/v1/objects?limit=&page=.
func (h *APIHandler) ListDRSObjects(w http.ResponseWriter, r *http.Request) {
	recs, ok := h.listPage(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projection.ToDRSList(recs, h.records.Prefix()))
}

// GetDRSObject — GET /ga4gh/drs/v1/objects/{id}[?expand=].
// Бандлы не хранятся, expand проверяется и игнорируется.
func (h *APIHandler) GetDRSObject(w http.ResponseWriter, r *http.Request) {
	var expand *bool
	if err := bindQuery(r.URL.Query(), "expand", &expand); err != nil {
		h.fail(w, err)
		return
	}
	rec, ok := h.objectByID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projection.ToDRS(rec, h.records.Prefix()))
}

// DRSServiceInfo — GET /ga4gh/drs/v1/service-info.
func (h *APIHandler) DRSServiceInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, projection.ServiceInfo(config.Version, h.drsInfo))
}

// ListDOSObjects — GET /ga4gh/dos/v1/dataobjects?limit=&page=.
func (h *APIHandler) ListDOSObjects(w http.ResponseWriter, r *http.Request) {
	recs, ok := h.listPage(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projection.ToDOSList(recs))
}

// GetDOSObject — GET /ga4gh/dos/v1/dataobjects/{id}.
func (h *APIHandler) GetDOSObject(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.objectByID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projection.DOSResponse{DataObject: projection.ToDOS(rec)})
}
