package repository

import (
	"fmt"
	"strings"

	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
)

// layoutPredicates — SQL-предикаты, зависящие от раскладки.
// Строка записи в запросе всегда имеет алиас r. Пустое значение означает «отсутствует».
type layoutPredicates interface {
	hash(w *whereBuilder, algo, digest string) string
	url(w *whereBuilder, u string) string
	ace(w *whereBuilder, ace string) string
	aclEmpty() string
	authz(w *whereBuilder, resource string) string
	authzEmpty() string
	metadata(w *whereBuilder, key, value string) string
	urlMetadata(w *whereBuilder, prefix string, inner map[string]string) string
}

// applyFilter добавляет в w предикаты фильтра. При negate каждый предикат
// добавляется отдельно как NOT(COALESCE(p, false)).
func applyFilter(w *whereBuilder, p layoutPredicates, f RecordFilter, negate bool) {
	add := func(cond string) {
		if negate {
			cond = "NOT COALESCE((" + cond + "), false)"
		}
		w.add(cond)
	}

	if f.Size != nil {
		add("r.size = " + w.arg(*f.Size))
	}
	for _, algo := range model.SortedKeys(f.Hashes) {
		add(p.hash(w, algo, f.Hashes[algo]))
	}
	if f.FileName != nil {
		add(scalarPredicate(w, "r.file_name", *f.FileName))
	}
	if f.Version != nil {
		add(scalarPredicate(w, "r.version", *f.Version))
	}
	if f.Uploader != nil {
		add(scalarPredicate(w, "r.uploader", *f.Uploader))
	}
	for _, u := range f.URLs {
		add(p.url(w, u))
	}
	if f.ACL != nil {
		if len(f.ACL) == 0 {
			add(p.aclEmpty())
		}
		for _, a := range f.ACL {
			add(p.ace(w, a))
		}
	}
	if f.Authz != nil {
		if len(f.Authz) == 0 {
			add(p.authzEmpty())
		}
		for _, a := range f.Authz {
			add(p.authz(w, a))
		}
	}
	for _, k := range model.SortedKeys(f.Metadata) {
		add(p.metadata(w, k, f.Metadata[k]))
	}
	for _, prefix := range model.SortedKeys(f.URLsMetadata) {
		add(p.urlMetadata(w, prefix, f.URLsMetadata[prefix]))
	}
}

// scalarPredicate — равенство на скалярной колонке; пустое значение — IS NULL.
func scalarPredicate(w *whereBuilder, column, value string) string {
	if value == "" {
		return column + " IS NULL"
	}
	return column + " = " + w.arg(value)
}

// buildListWhere строит WHERE для List, общий для обеих раскладок.
func buildListWhere(p layoutPredicates, q ListQuery) *whereBuilder {
	w := &whereBuilder{}
	applyFilter(w, p, q.Filter, false)
	applyFilter(w, p, q.Negate, true)
	if len(q.IDs) > 0 {
		w.add("r.did = ANY(" + w.arg(q.IDs) + ")")
	}
	if q.Start != "" {
		w.add("r.did > " + w.arg(q.Start))
	}
	return w
}

// listTail возвращает ORDER BY / LIMIT / OFFSET для List.
func listTail(w *whereBuilder, q ListQuery) string {
	order := "ORDER BY r.did"
	if q.OrderByUpdated {
		order = "ORDER BY r.updated_date, r.did"
	}
	return fmt.Sprintf("%s LIMIT %s OFFSET %s", order, w.arg(q.Limit), w.arg(q.Offset))
}

// buildURLListWhere строит WHERE для ListURLs.
func buildURLListWhere(p layoutPredicates, q URLListQuery) *whereBuilder {
	w := &whereBuilder{}
	applyFilter(w, p, RecordFilter{Size: q.Size, Hashes: q.Hashes}, false)
	if len(q.IDs) > 0 {
		w.add("r.did = ANY(" + w.arg(q.IDs) + ")")
	}
	return w
}

// versionedPredicate — наличие или отсутствие version.
func versionedPredicate(versioned *bool) string {
	if versioned == nil {
		return ""
	}
	if *versioned {
		return "r.version IS NOT NULL"
	}
	return "r.version IS NULL"
}

// --- multi ---

// multiPredicates — предикаты нормализованной раскладки (EXISTS по дочерним таблицам).
type multiPredicates struct{}

func (multiPredicates) hash(w *whereBuilder, algo, digest string) string {
	if digest == "" {
		return fmt.Sprintf("NOT EXISTS (SELECT 1 FROM index_record_hash h WHERE h.did = r.did AND h.hash_type = %s)",
			w.arg(algo))
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM index_record_hash h WHERE h.did = r.did AND h.hash_type = %s AND h.hash_value = %s)",
		w.arg(algo), w.arg(digest))
}

func (multiPredicates) url(w *whereBuilder, u string) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM index_record_url u WHERE u.did = r.did AND u.url = %s)", w.arg(u))
}

func (multiPredicates) ace(w *whereBuilder, ace string) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM index_record_ace a WHERE a.did = r.did AND a.ace = %s)", w.arg(ace))
}

func (multiPredicates) aclEmpty() string {
	return "NOT EXISTS (SELECT 1 FROM index_record_ace a WHERE a.did = r.did)"
}

func (multiPredicates) authz(w *whereBuilder, resource string) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM index_record_authz z WHERE z.did = r.did AND z.resource = %s)", w.arg(resource))
}

func (multiPredicates) authzEmpty() string {
	return "NOT EXISTS (SELECT 1 FROM index_record_authz z WHERE z.did = r.did)"
}

func (multiPredicates) metadata(w *whereBuilder, key, value string) string {
	if value == "" {
		cond := fmt.Sprintf("NOT EXISTS (SELECT 1 FROM index_record_metadata m WHERE m.did = r.did AND m.key = %s)", w.arg(key))
		if key == model.MetadataProjectID {
			cond = "(" + cond + " AND r.project_id IS NULL)"
		}
		return cond
	}
	cond := fmt.Sprintf("EXISTS (SELECT 1 FROM index_record_metadata m WHERE m.did = r.did AND m.key = %s AND m.value = %s)",
		w.arg(key), w.arg(value))
	if key == model.MetadataProjectID {
		cond = fmt.Sprintf("(r.project_id = %s OR %s)", w.arg(value), cond)
	}
	return cond
}

func (multiPredicates) urlMetadata(w *whereBuilder, prefix string, inner map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `EXISTS (SELECT 1 FROM index_record_url u WHERE u.did = r.did AND u.url LIKE %s ESCAPE '\'`,
		w.arg(escapeLike(prefix)+"%"))
	for _, k := range model.SortedKeys(inner) {
		v := inner[k]
		if v == "" {
			fmt.Fprintf(&b, " AND NOT EXISTS (SELECT 1 FROM index_record_url_metadata um WHERE um.did = u.did AND um.url = u.url AND um.key = %s)",
				w.arg(k))
			continue
		}
		fmt.Fprintf(&b, " AND EXISTS (SELECT 1 FROM index_record_url_metadata um WHERE um.did = u.did AND um.url = u.url AND um.key = %s AND um.value = %s)",
			w.arg(k), w.arg(v))
	}
	b.WriteString(")")
	return b.String()
}

// --- single ---

// singlePredicates — предикаты денормализованной раскладки (JSONB и массивы).
type singlePredicates struct{}

func (singlePredicates) hash(w *whereBuilder, algo, digest string) string {
	if digest == "" {
		return fmt.Sprintf("NOT (r.hashes ? %s)", w.arg(algo))
	}
	return fmt.Sprintf("r.hashes @> jsonb_build_object(%s::text, %s::text)", w.arg(algo), w.arg(digest))
}

func (singlePredicates) url(w *whereBuilder, u string) string {
	return fmt.Sprintf("%s::text = ANY(r.urls)", w.arg(u))
}

func (singlePredicates) ace(w *whereBuilder, ace string) string {
	return fmt.Sprintf("%s::text = ANY(r.acl)", w.arg(ace))
}

func (singlePredicates) aclEmpty() string {
	return "cardinality(r.acl) = 0"
}

func (singlePredicates) authz(w *whereBuilder, resource string) string {
	return fmt.Sprintf("%s::text = ANY(r.authz)", w.arg(resource))
}

func (singlePredicates) authzEmpty() string {
	return "cardinality(r.authz) = 0"
}

func (singlePredicates) metadata(w *whereBuilder, key, value string) string {
	if value == "" {
		cond := fmt.Sprintf("NOT (r.record_metadata ? %s)", w.arg(key))
		if key == model.MetadataProjectID {
			cond = "(" + cond + " AND r.project_id IS NULL)"
		}
		return cond
	}
	cond := fmt.Sprintf("r.record_metadata @> jsonb_build_object(%s::text, %s::text)", w.arg(key), w.arg(value))
	if key == model.MetadataProjectID {
		cond = fmt.Sprintf("(r.project_id = %s OR %s)", w.arg(value), cond)
	}
	return cond
}

func (singlePredicates) urlMetadata(w *whereBuilder, prefix string, inner map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `EXISTS (SELECT 1 FROM unnest(r.urls) AS u(url) WHERE u.url LIKE %s ESCAPE '\'`,
		w.arg(escapeLike(prefix)+"%"))
	const meta = "COALESCE(r.url_metadata -> u.url, '{}'::jsonb)"
	for _, k := range model.SortedKeys(inner) {
		v := inner[k]
		if v == "" {
			fmt.Fprintf(&b, " AND NOT (%s ? %s)", meta, w.arg(k))
			continue
		}
		fmt.Fprintf(&b, " AND %s @> jsonb_build_object(%s::text, %s::text)", meta, w.arg(k), w.arg(v))
	}
	b.WriteString(")")
	return b.String()
}
