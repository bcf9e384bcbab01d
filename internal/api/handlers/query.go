// query.go — обработчики запросов: GET /index/, /urls/, /urls/query/,
// /urls/metadata/, /bulk/documents, /bulk/documents/latest.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bigkaa/goartstore/index-module/internal/api/schema"
	"github.com/bigkaa/goartstore/index-module/internal/repository"
	"github.com/bigkaa/goartstore/index-module/internal/service"
)

// listParams — query-параметры GET /index/.
type listParams struct {
	Hash         []string
	URL          []string
	Metadata     []string
	IDs          []string
	Size         *int64
	FileName     *string
	Version      *string
	Uploader     *string
	ACL          *string
	Authz        *string
	URLsMetadata *string
	NegateParams *string
	Start        *string
	Page         *int
	Limit        *int
}

// negateBody — JSON negate_params: каждый предикат добавляется с отрицанием.
type negateBody struct {
	Size         *int64                       `json:"size"`
	Hashes       map[string]string            `json:"hashes"`
	FileName     *string                      `json:"file_name"`
	Version      *string                      `json:"version"`
	Uploader     *string                      `json:"uploader"`
	URLs         []string                     `json:"urls"`
	ACL          []string                     `json:"acl"`
	Authz        []string                     `json:"authz"`
	Metadata     map[string]string            `json:"metadata"`
	URLsMetadata map[string]map[string]string `json:"urls_metadata"`
}

func (n *negateBody) filter() repository.RecordFilter {
	return repository.RecordFilter{
		Size:         n.Size,
		Hashes:       n.Hashes,
		FileName:     n.FileName,
		Version:      n.Version,
		Uploader:     n.Uploader,
		URLs:         n.URLs,
		ACL:          n.ACL,
		Authz:        n.Authz,
		Metadata:     n.Metadata,
		URLsMetadata: n.URLsMetadata,
	}
}

func bindListParams(q url.Values) (listParams, error) {
	var p listParams
	binds := []struct {
		name string
		dest any
	}{
		{"hash", &p.Hash}, {"url", &p.URL}, {"metadata", &p.Metadata},
		{"size", &p.Size}, {"file_name", &p.FileName}, {"version", &p.Version},
		{"uploader", &p.Uploader}, {"acl", &p.ACL}, {"authz", &p.Authz},
		{"urls_metadata", &p.URLsMetadata}, {"negate_params", &p.NegateParams},
		{"start", &p.Start}, {"page", &p.Page}, {"limit", &p.Limit},
	}
	for _, b := range binds {
		if err := bindQuery(q, b.name, b.dest); err != nil {
			return listParams{}, err
		}
	}
	if err := bindQueryCSV(q, "ids", &p.IDs); err != nil {
		return listParams{}, err
	}
	return p, nil
}

// parsePairs разбирает повторяющиеся параметры вида key:value.
func parsePairs(name string, values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for _, v := range values {
		k, val, ok := strings.Cut(v, ":")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: параметр %s: ожидается ключ:значение, получено %q", service.ErrValidation, name, v)
		}
		out[k] = val
	}
	return out, nil
}

// parseList разбирает список через запятую; "null" — пустой список.
func parseList(v *string) []string {
	if v == nil {
		return nil
	}
	if *v == "null" || *v == "" {
		return []string{}
	}
	return strings.Split(*v, ",")
}

// parseJSONParam разбирает JSON-значение query-параметра.
func parseJSONParam(name string, v *string, dst any) error {
	if v == nil || *v == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(*v), dst); err != nil {
		return fmt.Errorf("%w: параметр %s: некорректный JSON: %v", service.ErrValidation, name, err)
	}
	return nil
}

// listFilter собирает фильтр и отрицания из query-параметров.
func (p *listParams) listFilter() (filter, negate repository.RecordFilter, err error) {
	hashes, err := parsePairs("hash", p.Hash)
	if err != nil {
		return filter, negate, err
	}
	metadata, err := parsePairs("metadata", p.Metadata)
	if err != nil {
		return filter, negate, err
	}
	filter = repository.RecordFilter{
		Size:     p.Size,
		Hashes:   hashes,
		FileName: p.FileName,
		Version:  p.Version,
		Uploader: p.Uploader,
		URLs:     p.URL,
		ACL:      parseList(p.ACL),
		Authz:    parseList(p.Authz),
		Metadata: metadata,
	}
	if err := parseJSONParam("urls_metadata", p.URLsMetadata, &filter.URLsMetadata); err != nil {
		return filter, negate, err
	}
	var n negateBody
	if err := parseJSONParam("negate_params", p.NegateParams, &n); err != nil {
		return filter, negate, err
	}
	return filter, n.filter(), nil
}

// listResponse — ответ GET /index/.
type listResponse struct {
	Records []recordResponse  `json:"records"`
	IDs     []string          `json:"ids,omitempty"`
	Start   *string           `json:"start,omitempty"`
	Page    *int              `json:"page,omitempty"`
	Limit   int               `json:"limit"`
	Size    *int64            `json:"size,omitempty"`
	Hashes  map[string]string `json:"hashes,omitempty"`
}

// ListRecords — GET /index/.
func (h *APIHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	p, err := bindListParams(r.URL.Query())
	if err != nil {
		h.fail(w, err)
		return
	}
	filter, negate, err := p.listFilter()
	if err != nil {
		h.fail(w, err)
		return
	}
	if !h.authorizeRead(w, r) {
		return
	}

	limit := deref(p.Limit, service.DefaultLimit)
	recs, err := h.records.List(r.Context(), service.ListParams{
		Filter: filter,
		Negate: negate,
		IDs:    p.IDs,
		Start:  deref(p.Start, ""),
		Page:   p.Page,
		Limit:  limit,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Records: mapRecords(recs),
		IDs:     p.IDs,
		Start:   p.Start,
		Page:    p.Page,
		Limit:   limit,
		Size:    p.Size,
		Hashes:  filter.Hashes,
	})
}

// urlEntry — элемент ответа /urls/.
type urlEntry struct {
	URL      string            `json:"url"`
	Metadata map[string]string `json:"metadata"`
}

// ListURLs — GET /urls/.
// С urls_only=true возвращает только различные URL записей с точным размером и всеми хэшами.
func (h *APIHandler) ListURLs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		hash     []string
		ids      []string
		size     *int64
		start    *int
		limit    *int
		urlsOnly *bool
	)
	for _, b := range []struct {
		name string
		dest any
	}{{"hash", &hash}, {"size", &size}, {"start", &start}, {"limit", &limit}, {"urls_only", &urlsOnly}} {
		if err := bindQuery(q, b.name, b.dest); err != nil {
			h.fail(w, err)
			return
		}
	}
	if err := bindQueryCSV(q, "ids", &ids); err != nil {
		h.fail(w, err)
		return
	}
	hashes, err := parsePairs("hash", hash)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !h.authorizeRead(w, r) {
		return
	}

	if deref(urlsOnly, false) {
		urls, err := h.records.HashesToURLs(r.Context(), size, hashes, deref(start, 0), deref(limit, service.DefaultLimit))
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"urls": urls})
		return
	}

	entries, err := h.records.GetURLs(r.Context(), service.URLListParams{
		Size:   size,
		Hashes: hashes,
		IDs:    ids,
		Start:  deref(start, 0),
		Limit:  deref(limit, service.DefaultLimit),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]urlEntry, 0, len(entries))
	for _, e := range entries {
		m := e.Metadata
		if m == nil {
			m = map[string]string{}
		}
		out = append(out, urlEntry{URL: e.URL, Metadata: m})
	}
	writeJSON(w, http.StatusOK, map[string][]urlEntry{"urls": out})
}

// didURLs — элемент ответа /urls/query/.
type didURLs struct {
	DID  string `json:"did"`
	URLs string `json:"urls"`
}

// QueryURLs — GET /urls/query/?include=&exclude=&versioned=&offset=&limit=.
func (h *APIHandler) QueryURLs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		include, exclude *string
		versioned        *bool
		offset, limit    *int
	)
	for _, b := range []struct {
		name string
		dest any
	}{{"include", &include}, {"exclude", &exclude}, {"versioned", &versioned}, {"offset", &offset}, {"limit", &limit}} {
		if err := bindQuery(q, b.name, b.dest); err != nil {
			h.fail(w, err)
			return
		}
	}
	if !h.authorizeRead(w, r) {
		return
	}

	res, err := h.records.QueryURLs(r.Context(), repository.URLsQuery{
		Include:   deref(include, ""),
		Exclude:   deref(exclude, ""),
		Versioned: versioned,
		Offset:    deref(offset, 0),
		Limit:     deref(limit, service.DefaultLimit),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]didURLs, 0, len(res))
	for _, d := range res {
		out = append(out, didURLs{DID: d.DID, URLs: d.URLs})
	}
	writeJSON(w, http.StatusOK, out)
}

// metadataHit — элемент ответа /urls/metadata/.
type metadataHit struct {
	DID string `json:"did"`
	URL string `json:"url"`
	Rev string `json:"rev"`
}

// QueryURLMetadata — GET /urls/metadata/?key=&value=&url=&versioned=&offset=&limit=.
func (h *APIHandler) QueryURLMetadata(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		key, value, u *string
		versioned     *bool
		offset, limit *int
	)
	for _, b := range []struct {
		name string
		dest any
	}{{"key", &key}, {"value", &value}, {"url", &u}, {"versioned", &versioned}, {"offset", &offset}, {"limit", &limit}} {
		if err := bindQuery(q, b.name, b.dest); err != nil {
			h.fail(w, err)
			return
		}
	}
	if !h.authorizeRead(w, r) {
		return
	}

	hits, err := h.records.QueryMetadataByKey(r.Context(), repository.MetadataKeyQuery{
		Key:       deref(key, ""),
		Value:     deref(value, ""),
		URL:       deref(u, ""),
		Versioned: versioned,
		Offset:    deref(offset, 0),
		Limit:     deref(limit, service.DefaultLimit),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]metadataHit, 0, len(hits))
	for _, hit := range hits {
		out = append(out, metadataHit{DID: hit.DID, URL: hit.URL, Rev: hit.Rev})
	}
	writeJSON(w, http.StatusOK, out)
}

// decodeBulkIDs читает список did: JSON-массив строк или {"ids": [...]}.
func decodeBulkIDs(r *http.Request) ([]string, error) {
	body, err := readBody(r)
	if err != nil {
		return nil, err
	}
	var wrapped struct {
		IDs []string `json:"ids"`
	}
	if len(body) > 0 && body[0] == '{' {
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: некорректный JSON: %v", service.ErrValidation, err)
		}
		body, _ = json.Marshal(wrapped.IDs)
	}
	var ids []string
	if err := schema.Decode(schema.BulkIDs, body, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// BulkDocuments — POST /bulk/documents.
func (h *APIHandler) BulkDocuments(w http.ResponseWriter, r *http.Request) {
	ids, err := decodeBulkIDs(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !h.authorizeRead(w, r) {
		return
	}
	recs, err := h.records.BulkGet(r.Context(), ids)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapRecords(recs))
}

// BulkDocumentsLatest — POST /bulk/documents/latest?skip_null=&exclude_deleted=.
func (h *APIHandler) BulkDocumentsLatest(w http.ResponseWriter, r *http.Request) {
	var skipNull, excludeDeleted *bool
	q := r.URL.Query()
	if err := bindQuery(q, "skip_null", &skipNull); err != nil {
		h.fail(w, err)
		return
	}
	if err := bindQuery(q, "exclude_deleted", &excludeDeleted); err != nil {
		h.fail(w, err)
		return
	}
	ids, err := decodeBulkIDs(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !h.authorizeRead(w, r) {
		return
	}
	recs, err := h.records.BulkGetLatest(r.Context(), ids, deref(skipNull, false), deref(excludeDeleted, false))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapRecords(recs))
}
