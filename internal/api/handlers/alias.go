// alias.go — обработчики реестра глобальных алиасов: /alias/ и /alias/{name}.
// Имена алиасов могут содержать "/", поэтому путь разбирается из wildcard.
package handlers

import (
	"net/http"

	"github.com/bigkaa/goartstore/index-module/internal/api/schema"
	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
	"github.com/bigkaa/goartstore/index-module/internal/repository"
	"github.com/bigkaa/goartstore/index-module/internal/service"
)

type globalAliasResponse struct {
	Name            string            `json:"name"`
	Rev             string            `json:"rev"`
	Size            *int64            `json:"size"`
	Hashes          map[string]string `json:"hashes"`
	Release         *model.Release    `json:"release"`
	Metastring      *string           `json:"metastring"`
	HostAuthorities []string          `json:"host_authorities"`
	KeeperAuthority *string           `json:"keeper_authority"`
}

func mapGlobalAlias(a *model.GlobalAlias) globalAliasResponse {
	resp := globalAliasResponse{
		Name:            a.Name,
		Rev:             a.Rev,
		Size:            a.Size,
		Hashes:          a.Hashes,
		Release:         a.Release,
		Metastring:      a.Metastring,
		HostAuthorities: a.HostAuthorities,
		KeeperAuthority: a.KeeperAuthority,
	}
	if resp.Hashes == nil {
		resp.Hashes = map[string]string{}
	}
	if resp.HostAuthorities == nil {
		resp.HostAuthorities = []string{}
	}
	return resp
}

type globalAliasRequest struct {
	Size            *int64            `json:"size"`
	Hashes          map[string]string `json:"hashes"`
	Release         *model.Release    `json:"release"`
	Metastring      *string           `json:"metastring"`
	HostAuthorities []string          `json:"host_authorities"`
	KeeperAuthority *string           `json:"keeper_authority"`
}

type aliasListResponse struct {
	Aliases []string          `json:"aliases"`
	Start   *string           `json:"start"`
	Limit   int               `json:"limit"`
	Size    *int64            `json:"size"`
	Hashes  map[string]string `json:"hashes"`
}

// ListGlobalAliases — GET /alias/?start=&limit=&size=&hash=.
func (h *APIHandler) ListGlobalAliases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		start *string
		limit *int
		size  *int64
		hash  []string
	)
	for _, b := range []struct {
		name string
		dest any
	}{{"start", &start}, {"limit", &limit}, {"size", &size}, {"hash", &hash}} {
		if err := bindQuery(q, b.name, b.dest); err != nil {
			h.fail(w, err)
			return
		}
	}
	hashes, err := parsePairs("hash", hash)
	if err != nil {
		h.fail(w, err)
		return
	}

	lim := deref(limit, service.DefaultLimit)
	aliases, err := h.aliases.List(r.Context(), repository.AliasListQuery{
		Start:  deref(start, ""),
		Limit:  lim,
		Size:   size,
		Hashes: hashes,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	names := make([]string, 0, len(aliases))
	for _, a := range aliases {
		names = append(names, a.Name)
	}
	writeJSON(w, http.StatusOK, aliasListResponse{
		Aliases: names,
		Start:   start,
		Limit:   lim,
		Size:    size,
		Hashes:  hashes,
	})
}

// GetGlobalAlias — GET /alias/{name}.
func (h *APIHandler) GetGlobalAlias(w http.ResponseWriter, r *http.Request) {
	name, err := wildcardParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	a, err := h.aliases.Get(r.Context(), name)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapGlobalAlias(a))
}

// PutGlobalAlias — PUT /alias/{name}[?rev=]. Без rev создаёт алиас.
func (h *APIHandler) PutGlobalAlias(w http.ResponseWriter, r *http.Request) {
	name, err := wildcardParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var rev *string
	if err := bindQuery(r.URL.Query(), "rev", &rev); err != nil {
		h.fail(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var req globalAliasRequest
	if err := schema.Decode(schema.GlobalAlias, body, &req); err != nil {
		h.fail(w, err)
		return
	}

	ref, err := h.aliases.Upsert(r.Context(), name, deref(rev, ""), model.GlobalAliasChanges{
		Size:            req.Size,
		Release:         req.Release,
		Metastring:      req.Metastring,
		KeeperAuthority: req.KeeperAuthority,
		Hashes:          req.Hashes,
		HostAuthorities: req.HostAuthorities,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": ref.Name, "rev": ref.Rev})
}

// DeleteGlobalAlias — DELETE /alias/{name}?rev=.
func (h *APIHandler) DeleteGlobalAlias(w http.ResponseWriter, r *http.Request) {
	name, err := wildcardParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	rev, err := requireRev(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.aliases.Delete(r.Context(), name, rev); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
