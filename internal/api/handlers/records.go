// records.go — обработчики /index: создание, чтение, обновление, удаление,
// версии, blank-записи и алиасы записей.
//
// did может содержать "/" (префикс вида dg.4503/), поэтому пути под /index/
// разбираются вручную: подресурсы распознаются по суффиксу.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/index-module/internal/api/errors"
	"github.com/bigkaa/goartstore/index-module/internal/api/schema"
	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
	"github.com/bigkaa/goartstore/index-module/internal/service"
)

// dateLayout — формат дат записи в ответах.
const dateLayout = "2006-01-02T15:04:05.000000"

// inputDateLayouts — допустимые форматы дат во входных данных (без зоны — UTC).
var inputDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"}

// recordResponse — запись в ответах /index.
type recordResponse struct {
	DID                string                       `json:"did"`
	BaseID             string                       `json:"baseid"`
	Rev                string                       `json:"rev"`
	Form               model.Form                   `json:"form"`
	Size               *int64                       `json:"size"`
	FileName           *string                      `json:"file_name"`
	Version            *string                      `json:"version"`
	Uploader           *string                      `json:"uploader"`
	Description        *string                      `json:"description"`
	CreatedDate        string                       `json:"created_date"`
	UpdatedDate        string                       `json:"updated_date"`
	ContentCreatedDate *string                      `json:"content_created_date"`
	ContentUpdatedDate *string                      `json:"content_updated_date"`
	Hashes             map[string]string            `json:"hashes"`
	URLs               []string                     `json:"urls"`
	URLsMetadata       map[string]map[string]string `json:"urls_metadata"`
	Metadata           map[string]string            `json:"metadata"`
	ACL                []string                     `json:"acl"`
	Authz              []string                     `json:"authz"`
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(dateLayout)
	return &s
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range inputDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: некорректная дата %q", service.ErrValidation, s)
}

// parseOptionalDate разбирает nullable-дату; nil и "" — отсутствие даты.
func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// mapRecord преобразует запись в ответ.
func mapRecord(rec *model.Record) recordResponse {
	rec = rec.Clone()
	rec.Normalize()
	return recordResponse{
		DID:                rec.DID,
		BaseID:             rec.BaseID,
		Rev:                rec.Rev,
		Form:               rec.Form,
		Size:               rec.Size,
		FileName:           rec.FileName,
		Version:            rec.Version,
		Uploader:           rec.Uploader,
		Description:        rec.Description,
		CreatedDate:        rec.CreatedDate.UTC().Format(dateLayout),
		UpdatedDate:        rec.UpdatedDate.UTC().Format(dateLayout),
		ContentCreatedDate: formatDate(rec.ContentCreatedDate),
		ContentUpdatedDate: formatDate(rec.ContentUpdatedDate),
		Hashes:             rec.Hashes,
		URLs:               rec.URLs,
		URLsMetadata:       rec.URLsMetadata,
		Metadata:           rec.Metadata,
		ACL:                rec.ACL,
		Authz:              rec.Authz,
	}
}

func mapRecords(recs []*model.Record) []recordResponse {
	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, mapRecord(rec))
	}
	return out
}

// refResponse — результат мутации.
type refResponse struct {
	DID    string `json:"did"`
	Rev    string `json:"rev"`
	BaseID string `json:"baseid"`
}

func mapRef(ref service.RecordRef) refResponse {
	return refResponse(ref)
}

// createRequest — тело создания записи или версии.
type createRequest struct {
	DID                string                       `json:"did"`
	BaseID             string                       `json:"baseid"`
	Form               model.Form                   `json:"form"`
	Size               *int64                       `json:"size"`
	URLs               []string                     `json:"urls"`
	Hashes             map[string]string            `json:"hashes"`
	FileName           *string                      `json:"file_name"`
	Version            *string                      `json:"version"`
	Uploader           *string                      `json:"uploader"`
	Description        *string                      `json:"description"`
	Metadata           map[string]string            `json:"metadata"`
	URLsMetadata       map[string]map[string]string `json:"urls_metadata"`
	ACL                []string                     `json:"acl"`
	Authz              []string                     `json:"authz"`
	ContentCreatedDate *string                      `json:"content_created_date"`
	ContentUpdatedDate *string                      `json:"content_updated_date"`
}

func (req *createRequest) input() (service.CreateInput, error) {
	created, err := parseOptionalDate(req.ContentCreatedDate)
	if err != nil {
		return service.CreateInput{}, err
	}
	updated, err := parseOptionalDate(req.ContentUpdatedDate)
	if err != nil {
		return service.CreateInput{}, err
	}
	return service.CreateInput{
		Form:               req.Form,
		DID:                req.DID,
		BaseID:             req.BaseID,
		Size:               req.Size,
		URLs:               req.URLs,
		Hashes:             req.Hashes,
		FileName:           req.FileName,
		Version:            req.Version,
		Uploader:           req.Uploader,
		Description:        req.Description,
		Metadata:           req.Metadata,
		URLsMetadata:       req.URLsMetadata,
		ACL:                req.ACL,
		Authz:              req.Authz,
		ContentCreatedDate: created,
		ContentUpdatedDate: updated,
	}, nil
}

// decodeCreate читает и проверяет тело создания.
func decodeCreate(r *http.Request, versionBody bool) (service.CreateInput, error) {
	body, err := readBody(r)
	if err != nil {
		return service.CreateInput{}, err
	}
	s := schema.CreateRecord
	if versionBody {
		s = schema.CreateVersion
	}
	var req createRequest
	if err := schema.Decode(s, body, &req); err != nil {
		return service.CreateInput{}, err
	}
	if req.Form == "" {
		req.Form = model.FormObject
	}
	return req.input()
}

// decodeChanges собирает RecordChanges: отсутствующее поле не меняется, null — сбрасывается.
//
//nolint:cyclop // линейный разбор полей
func decodeChanges(body []byte) (model.RecordChanges, error) {
	var raw map[string]json.RawMessage
	if err := schema.Decode(schema.UpdateRecord, body, &raw); err != nil {
		return model.RecordChanges{}, err
	}
	var c model.RecordChanges
	var err error
	field := func(name string, dst any) {
		if err != nil {
			return
		}
		if e := json.Unmarshal(raw[name], dst); e != nil {
			err = fmt.Errorf("%w: поле %s: %v", service.ErrValidation, name, e)
		}
	}

	for name := range raw {
		switch name {
		case "file_name":
			var v *string
			field(name, &v)
			c.FileName = model.Some(v)
		case "version":
			var v *string
			field(name, &v)
			c.Version = model.Some(v)
		case "uploader":
			var v *string
			field(name, &v)
			c.Uploader = model.Some(v)
		case "description":
			var v *string
			field(name, &v)
			c.Description = model.Some(v)
		case "metadata":
			var v map[string]string
			field(name, &v)
			c.Metadata = model.Some(v)
		case "acl":
			var v []string
			field(name, &v)
			c.ACL = model.Some(v)
		case "authz":
			var v []string
			field(name, &v)
			c.Authz = model.Some(v)
		case "urls":
			var v []string
			field(name, &v)
			c.URLs = model.Some(v)
		case "urls_metadata":
			var v map[string]map[string]string
			field(name, &v)
			c.URLsMetadata = model.Some(v)
		case "size":
			var v *int64
			field(name, &v)
			c.Size = model.Some(v)
		case "content_created_date", "content_updated_date":
			var v *string
			field(name, &v)
			if err != nil {
				break
			}
			t, perr := parseOptionalDate(v)
			if perr != nil {
				err = perr
				break
			}
			if name == "content_created_date" {
				c.ContentCreatedDate = model.Some(t)
			} else {
				c.ContentUpdatedDate = model.Some(t)
			}
		}
	}
	return c, err
}

// --- разбор путей /index/ ---

// indexRoute — разобранный путь под /index/.
type indexRoute struct {
	did string
	// sub — подресурс: "", "versions", "latest", "aliases"
	sub string
	// alias — имя алиаса для /index/{did}/aliases/{name}
	alias string
}

// parseIndexPath разбирает остаток пути после /index/.
func parseIndexPath(r *http.Request) (indexRoute, error) {
	tail, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		return indexRoute{}, fmt.Errorf("%w: некорректный путь: %v", service.ErrValidation, err)
	}
	tail = strings.TrimSuffix(tail, "/")
	if i := strings.LastIndex(tail, "/aliases/"); i > 0 {
		return indexRoute{did: tail[:i], sub: "aliases", alias: tail[i+len("/aliases/"):]}, nil
	}
	for _, sub := range []string{"versions", "latest", "aliases"} {
		if did, ok := strings.CutSuffix(tail, "/"+sub); ok && did != "" {
			return indexRoute{did: did, sub: sub}, nil
		}
	}
	if tail == "" {
		return indexRoute{}, fmt.Errorf("%w: пустой did", service.ErrValidation)
	}
	return indexRoute{did: tail}, nil
}

// wildcardParam возвращает раскодированный остаток пути.
func wildcardParam(r *http.Request) (string, error) {
	v, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		return "", fmt.Errorf("%w: некорректный путь: %v", service.ErrValidation, err)
	}
	v = strings.TrimSuffix(v, "/")
	if v == "" {
		return "", fmt.Errorf("%w: пустой идентификатор", service.ErrValidation)
	}
	return v, nil
}

// requireRev возвращает обязательный query-параметр rev.
func requireRev(r *http.Request) (string, error) {
	rev := r.URL.Query().Get("rev")
	if rev == "" {
		return "", fmt.Errorf("%w: параметр rev обязателен", service.ErrValidation)
	}
	return rev, nil
}

// IndexGet — GET /index/{did}[/versions|/latest|/aliases].
func (h *APIHandler) IndexGet(w http.ResponseWriter, r *http.Request) {
	route, err := parseIndexPath(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !h.authorizeRead(w, r) {
		return
	}
	switch route.sub {
	case "":
		h.getRecord(w, r, route.did)
	case "versions":
		h.getVersions(w, r, route.did)
	case "latest":
		h.getLatest(w, r, route.did)
	case "aliases":
		if route.alias != "" {
			apierrors.WriteError(w, http.StatusMethodNotAllowed, apierrors.CodeUserError, "Метод не поддерживается для алиаса записи")
			return
		}
		h.getRecordAliases(w, r, route.did)
	}
}

// IndexPost — POST /index/{did} (новая версия) и POST /index/{did}/aliases.
func (h *APIHandler) IndexPost(w http.ResponseWriter, r *http.Request) {
	route, err := parseIndexPath(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	switch {
	case route.sub == "":
		h.createVersion(w, r, route.did)
	case route.sub == "aliases" && route.alias == "":
		h.mutateRecordAliases(w, r, route.did, h.records.AppendAliases)
	default:
		apierrors.WriteError(w, http.StatusMethodNotAllowed, apierrors.CodeUserError, "Метод не поддерживается")
	}
}

// IndexPut — PUT /index/{did}?rev= и PUT /index/{did}/aliases.
func (h *APIHandler) IndexPut(w http.ResponseWriter, r *http.Request) {
	route, err := parseIndexPath(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	switch {
	case route.sub == "":
		h.updateRecord(w, r, route.did)
	case route.sub == "aliases" && route.alias == "":
		h.mutateRecordAliases(w, r, route.did, h.records.ReplaceAliases)
	default:
		apierrors.WriteError(w, http.StatusMethodNotAllowed, apierrors.CodeUserError, "Метод не поддерживается")
	}
}

// IndexDelete — DELETE /index/{did}?rev=, /index/{did}/aliases, /index/{did}/aliases/{name}.
func (h *APIHandler) IndexDelete(w http.ResponseWriter, r *http.Request) {
	route, err := parseIndexPath(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	switch {
	case route.sub == "":
		rev, err := requireRev(r)
		if err != nil {
			h.fail(w, err)
			return
		}
		if err := h.records.Delete(r.Context(), route.did, rev); err != nil {
			h.fail(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	case route.sub == "aliases" && route.alias != "":
		if err := h.records.DeleteAlias(r.Context(), route.did, route.alias); err != nil {
			h.fail(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	case route.sub == "aliases":
		if err := h.records.DeleteAllAliases(r.Context(), route.did); err != nil {
			h.fail(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		apierrors.WriteError(w, http.StatusMethodNotAllowed, apierrors.CodeUserError, "Метод не поддерживается")
	}
}

// CreateRecord — POST /index/.
func (h *APIHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	in, err := decodeCreate(r, false)
	if err != nil {
		h.fail(w, err)
		return
	}
	ref, err := h.records.Create(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapRef(ref))
}

func (h *APIHandler) getRecord(w http.ResponseWriter, r *http.Request, did string) {
	rec, err := h.records.GetWithNonstrictPrefix(r.Context(), did)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapRecord(rec))
}

func (h *APIHandler) updateRecord(w http.ResponseWriter, r *http.Request, did string) {
	rev, err := requireRev(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	changes, err := decodeChanges(body)
	if err != nil {
		h.fail(w, err)
		return
	}
	ref, err := h.records.Update(r.Context(), did, rev, changes)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapRef(ref))
}

func (h *APIHandler) createVersion(w http.ResponseWriter, r *http.Request, did string) {
	in, err := decodeCreate(r, true)
	if err != nil {
		h.fail(w, err)
		return
	}
	ref, err := h.records.CreateVersion(r.Context(), did, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapRef(ref))
}

// versionFlags читает has_version и exclude_deleted.
func versionFlags(r *http.Request) (hasVersion, excludeDeleted bool, err error) {
	var hv, ed *bool
	q := r.URL.Query()
	if err := bindQuery(q, "has_version", &hv); err != nil {
		return false, false, err
	}
	if err := bindQuery(q, "exclude_deleted", &ed); err != nil {
		return false, false, err
	}
	return deref(hv, false), deref(ed, false), nil
}

// getVersions — версии семейства, ключ — порядковый номер в порядке создания.
func (h *APIHandler) getVersions(w http.ResponseWriter, r *http.Request, did string) {
	_, excludeDeleted, err := versionFlags(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	versions, err := h.records.GetAllVersions(r.Context(), did, excludeDeleted)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make(map[string]recordResponse, len(versions))
	for i, rec := range versions {
		out[fmt.Sprint(i)] = mapRecord(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *APIHandler) getLatest(w http.ResponseWriter, r *http.Request, did string) {
	hasVersion, excludeDeleted, err := versionFlags(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	rec, err := h.records.GetLatestVersion(r.Context(), did, hasVersion, excludeDeleted)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapRecord(rec))
}

// --- blank-записи ---

type blankCreateRequest struct {
	Uploader string  `json:"uploader"`
	FileName *string `json:"file_name"`
}

type blankUpdateRequest struct {
	Size   *int64            `json:"size"`
	Hashes map[string]string `json:"hashes"`
	URLs   []string          `json:"urls"`
	Authz  []string          `json:"authz"`
}

func decodeBlank(r *http.Request) (service.BlankInput, error) {
	body, err := readBody(r)
	if err != nil {
		return service.BlankInput{}, err
	}
	var req blankCreateRequest
	if err := schema.Decode(schema.BlankCreate, body, &req); err != nil {
		return service.BlankInput{}, err
	}
	return service.BlankInput{Uploader: req.Uploader, FileName: req.FileName}, nil
}

// CreateBlank — POST /index/blank/.
func (h *APIHandler) CreateBlank(w http.ResponseWriter, r *http.Request) {
	in, err := decodeBlank(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	ref, err := h.records.CreateBlank(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapRef(ref))
}

// CreateBlankVersion — POST /index/blank/{did}.
func (h *APIHandler) CreateBlankVersion(w http.ResponseWriter, r *http.Request) {
	did, err := wildcardParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	in, err := decodeBlank(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	ref, err := h.records.CreateBlankVersion(r.Context(), did, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapRef(ref))
}

// BlankUpdate — PUT /index/blank/{did}?rev=.
func (h *APIHandler) BlankUpdate(w http.ResponseWriter, r *http.Request) {
	did, err := wildcardParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	rev, err := requireRev(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var req blankUpdateRequest
	if err := schema.Decode(schema.BlankUpdate, body, &req); err != nil {
		h.fail(w, err)
		return
	}
	ref, err := h.records.BlankUpdate(r.Context(), did, rev, service.BlankUpdateInput(req))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapRef(ref))
}

// --- алиасы записи ---

type aliasValue struct {
	Value string `json:"value"`
}

type aliasesBody struct {
	Aliases []aliasValue `json:"aliases"`
}

func mapAliases(names []string) aliasesBody {
	out := aliasesBody{Aliases: make([]aliasValue, 0, len(names))}
	for _, n := range names {
		out.Aliases = append(out.Aliases, aliasValue{Value: n})
	}
	return out
}

func (h *APIHandler) getRecordAliases(w http.ResponseWriter, r *http.Request, did string) {
	names, err := h.records.GetAliases(r.Context(), did)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapAliases(names))
}

// aliasMutation — AppendAliases или ReplaceAliases.
type aliasMutation func(ctx context.Context, did string, names []string) ([]string, error)

func (h *APIHandler) mutateRecordAliases(w http.ResponseWriter, r *http.Request, did string, mutate aliasMutation) {
	body, err := readBody(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var req aliasesBody
	if err := schema.Decode(schema.RecordAliases, body, &req); err != nil {
		h.fail(w, err)
		return
	}
	names := make([]string, 0, len(req.Aliases))
	for _, a := range req.Aliases {
		names = append(names, a.Value)
	}
	out, err := mutate(r.Context(), did, names)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapAliases(out))
}
