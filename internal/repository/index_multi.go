package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/index-module/internal/config"
	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
)

// multiIndexRepo — нормализованная раскладка: index_record и дочерние таблицы.
type multiIndexRepo struct {
	db    DBTX
	preds multiPredicates
}

// NewMultiIndexRepository создаёт репозиторий нормализованной раскладки.
func NewMultiIndexRepository(db DBTX) IndexRepository {
	return &multiIndexRepo{db: db}
}

const multiColumns = `r.did, r.baseid, r.rev, r.form, r.size, r.created_date, r.updated_date,
	r.file_name, r.version, r.uploader, r.description, r.content_created_date, r.content_updated_date`

func (r *multiIndexRepo) Layout() string { return config.IndexDriverMulti }

func (r *multiIndexRepo) Insert(ctx context.Context, rec *model.Record) error {
	rec.Normalize()

	if _, err := r.db.Exec(ctx,
		`INSERT INTO base_version (baseid) VALUES ($1) ON CONFLICT DO NOTHING`, rec.BaseID); err != nil {
		return fmt.Errorf("ошибка создания base_version: %w", err)
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO index_record (did, baseid, rev, form, size, created_date, updated_date,
			file_name, version, uploader, description, content_created_date, content_updated_date, project_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.DID, rec.BaseID, rec.Rev, string(rec.Form), rec.Size, rec.CreatedDate, rec.UpdatedDate,
		rec.FileName, rec.Version, rec.Uploader, rec.Description,
		rec.ContentCreatedDate, rec.ContentUpdatedDate, rec.ProjectID(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: did %s уже существует", ErrConflict, rec.DID)
		}
		return fmt.Errorf("ошибка создания записи: %w", err)
	}

	if err := r.insertChildren(ctx, rec); err != nil {
		return err
	}
	return r.AddAliases(ctx, rec.DID, rec.Aliases)
}

// insertChildren записывает хэши, URL, метаданные, acl и authz записи.
func (r *multiIndexRepo) insertChildren(ctx context.Context, rec *model.Record) error {
	if len(rec.Hashes) > 0 {
		types := model.SortedKeys(rec.Hashes)
		values := make([]string, len(types))
		for i, t := range types {
			values[i] = rec.Hashes[t]
		}
		if _, err := r.db.Exec(ctx, `
			INSERT INTO index_record_hash (did, hash_type, hash_value)
			SELECT $1, t, v FROM unnest($2::text[], $3::text[]) AS x(t, v)`,
			rec.DID, types, values); err != nil {
			return fmt.Errorf("ошибка записи хэшей: %w", err)
		}
	}

	if len(rec.URLs) > 0 {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO index_record_url (did, url)
			SELECT $1, u FROM unnest($2::text[]) AS x(u)`,
			rec.DID, rec.URLs); err != nil {
			return fmt.Errorf("ошибка записи URL: %w", err)
		}
	}

	var mu, mk, mv []string
	for _, u := range model.SortedKeys(rec.URLsMetadata) {
		for _, k := range model.SortedKeys(rec.URLsMetadata[u]) {
			mu = append(mu, u)
			mk = append(mk, k)
			mv = append(mv, rec.URLsMetadata[u][k])
		}
	}
	if len(mu) > 0 {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO index_record_url_metadata (did, url, key, value)
			SELECT $1, u, k, v FROM unnest($2::text[], $3::text[], $4::text[]) AS x(u, k, v)`,
			rec.DID, mu, mk, mv); err != nil {
			return fmt.Errorf("ошибка записи метаданных URL: %w", err)
		}
	}

	if len(rec.Metadata) > 0 {
		keys := model.SortedKeys(rec.Metadata)
		values := make([]string, len(keys))
		for i, k := range keys {
			values[i] = rec.Metadata[k]
		}
		if _, err := r.db.Exec(ctx, `
			INSERT INTO index_record_metadata (did, key, value)
			SELECT $1, k, v FROM unnest($2::text[], $3::text[]) AS x(k, v)`,
			rec.DID, keys, values); err != nil {
			return fmt.Errorf("ошибка записи метаданных: %w", err)
		}
	}

	if len(rec.ACL) > 0 {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO index_record_ace (did, ace, ord)
			SELECT $1, a, o - 1 FROM unnest($2::text[]) WITH ORDINALITY AS x(a, o)`,
			rec.DID, rec.ACL); err != nil {
			return fmt.Errorf("ошибка записи acl: %w", err)
		}
	}

	if len(rec.Authz) > 0 {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO index_record_authz (did, resource, ord)
			SELECT $1, a, o - 1 FROM unnest($2::text[]) WITH ORDINALITY AS x(a, o)`,
			rec.DID, rec.Authz); err != nil {
			return fmt.Errorf("ошибка записи authz: %w", err)
		}
	}

	return nil
}

// deleteChildren удаляет дочерние строки записи, кроме алиасов.
// Метаданные URL удаляются раньше URL (внешний ключ).
func (r *multiIndexRepo) deleteChildren(ctx context.Context, did string) error {
	for _, table := range []string{
		"index_record_url_metadata",
		"index_record_url",
		"index_record_hash",
		"index_record_metadata",
		"index_record_ace",
		"index_record_authz",
	} {
		if _, err := r.db.Exec(ctx, "DELETE FROM "+table+" WHERE did = $1", did); err != nil {
			return fmt.Errorf("ошибка удаления из %s: %w", table, err)
		}
	}
	return nil
}

func (r *multiIndexRepo) Get(ctx context.Context, did string, forUpdate bool) (*model.Record, error) {
	query := "SELECT " + multiColumns + " FROM index_record r WHERE r.did = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	recs, err := r.query(ctx, query, did)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

func (r *multiIndexRepo) Save(ctx context.Context, rec *model.Record) error {
	rec.Normalize()

	tag, err := r.db.Exec(ctx, `
		UPDATE index_record
		SET rev = $2, size = $3, updated_date = $4, file_name = $5, version = $6, uploader = $7,
			description = $8, content_created_date = $9, content_updated_date = $10, project_id = $11
		WHERE did = $1`,
		rec.DID, rec.Rev, rec.Size, rec.UpdatedDate, rec.FileName, rec.Version, rec.Uploader,
		rec.Description, rec.ContentCreatedDate, rec.ContentUpdatedDate, rec.ProjectID(),
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления записи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := r.deleteChildren(ctx, rec.DID); err != nil {
		return err
	}
	return r.insertChildren(ctx, rec)
}

func (r *multiIndexRepo) Touch(ctx context.Context, did, rev string, updated time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE index_record SET rev = $2, updated_date = $3 WHERE did = $1`, did, rev, updated)
	if err != nil {
		return fmt.Errorf("ошибка обновления ревизии: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *multiIndexRepo) Delete(ctx context.Context, did string) error {
	if err := r.deleteChildren(ctx, did); err != nil {
		return err
	}
	if err := r.DeleteAllAliases(ctx, did); err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM index_record WHERE did = $1`, did)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *multiIndexRepo) GetMany(ctx context.Context, dids []string) ([]*model.Record, error) {
	if len(dids) == 0 {
		return nil, nil
	}
	return r.query(ctx, "SELECT "+multiColumns+" FROM index_record r WHERE r.did = ANY($1) ORDER BY r.did", dids)
}

func (r *multiIndexRepo) ListVersions(ctx context.Context, baseid string) ([]*model.Record, error) {
	return r.query(ctx, "SELECT "+multiColumns+
		" FROM index_record r WHERE r.baseid = $1 ORDER BY r.created_date, r.did", baseid)
}

func (r *multiIndexRepo) ListVersionsByBaseIDs(ctx context.Context, baseids []string) ([]*model.Record, error) {
	if len(baseids) == 0 {
		return nil, nil
	}
	return r.query(ctx, "SELECT "+multiColumns+
		" FROM index_record r WHERE r.baseid = ANY($1) ORDER BY r.baseid, r.created_date, r.did", baseids)
}

func (r *multiIndexRepo) BaseIDsOf(ctx context.Context, dids []string) (map[string]string, error) {
	return baseIDsOf(ctx, r.db, "index_record", dids)
}

func (r *multiIndexRepo) BaseIDExists(ctx context.Context, baseid string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM base_version WHERE baseid = $1)`, baseid).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки base_version: %w", err)
	}
	return exists, nil
}

func (r *multiIndexRepo) ListAliases(ctx context.Context, did string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT name FROM index_record_alias WHERE did = $1 ORDER BY name`, did)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения алиасов: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования алиасов: %w", err)
	}
	return names, nil
}

func (r *multiIndexRepo) AddAliases(ctx context.Context, did string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO index_record_alias (did, name)
		SELECT $1, n FROM unnest($2::text[]) AS x(n)`,
		did, names)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: алиас уже привязан к записи", ErrConflict)
		}
		return fmt.Errorf("ошибка привязки алиасов: %w", err)
	}
	return nil
}

func (r *multiIndexRepo) DeleteAlias(ctx context.Context, did, name string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM index_record_alias WHERE did = $1 AND name = $2`, did, name)
	if err != nil {
		return fmt.Errorf("ошибка удаления алиаса: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *multiIndexRepo) DeleteAllAliases(ctx context.Context, did string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM index_record_alias WHERE did = $1`, did); err != nil {
		return fmt.Errorf("ошибка удаления алиасов: %w", err)
	}
	return nil
}

func (r *multiIndexRepo) List(ctx context.Context, q ListQuery) ([]*model.Record, error) {
	w := buildListWhere(r.preds, q)
	query := "SELECT " + multiColumns + " FROM index_record r " + w.where() + " " + listTail(w, q)
	return r.query(ctx, query, w.args...)
}

func (r *multiIndexRepo) ListURLs(ctx context.Context, q URLListQuery) ([]URLEntry, error) {
	w := buildURLListWhere(r.preds, q)
	query := fmt.Sprintf(`
		SELECT u.did, u.url
		FROM index_record r
		JOIN index_record_url u ON u.did = r.did
		%s
		ORDER BY u.url, u.did
		LIMIT %s OFFSET %s`, w.where(), w.arg(q.Limit), w.arg(q.Offset))

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения URL: %w", err)
	}
	type didURL struct{ did, url string }
	var pairs []didURL
	var did, u string
	if _, err := pgx.ForEachRow(rows, []any{&did, &u}, func() error {
		pairs = append(pairs, didURL{did, u})
		return nil
	}); err != nil {
		return nil, fmt.Errorf("ошибка сканирования URL: %w", err)
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	dids := make([]string, 0, len(pairs))
	for _, p := range pairs {
		dids = append(dids, p.did)
	}
	meta := map[didURL]map[string]string{}
	rows, err = r.db.Query(ctx,
		`SELECT did, url, key, value FROM index_record_url_metadata WHERE did = ANY($1)`, dids)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения метаданных URL: %w", err)
	}
	var k, v string
	if _, err := pgx.ForEachRow(rows, []any{&did, &u, &k, &v}, func() error {
		key := didURL{did, u}
		if meta[key] == nil {
			meta[key] = map[string]string{}
		}
		meta[key][k] = v
		return nil
	}); err != nil {
		return nil, fmt.Errorf("ошибка сканирования метаданных URL: %w", err)
	}

	entries := make([]URLEntry, 0, len(pairs))
	for _, p := range pairs {
		m := meta[p]
		if m == nil {
			m = map[string]string{}
		}
		entries = append(entries, URLEntry{URL: p.url, Metadata: m})
	}
	return dedupeURLEntries(entries), nil
}

func (r *multiIndexRepo) QueryURLs(ctx context.Context, q URLsQuery) ([]DIDURLs, error) {
	w := &whereBuilder{}
	if cond := versionedPredicate(q.Versioned); cond != "" {
		w.add(cond)
	}
	var having []string
	const agg = "string_agg(u.url, ',' ORDER BY u.url)"
	if q.Include != "" {
		having = append(having, fmt.Sprintf(`%s LIKE %s ESCAPE '\'`, agg, w.arg("%"+escapeLike(q.Include)+"%")))
	}
	if q.Exclude != "" {
		having = append(having, fmt.Sprintf(`%s NOT LIKE %s ESCAPE '\'`, agg, w.arg("%"+escapeLike(q.Exclude)+"%")))
	}
	havingSQL := ""
	if len(having) > 0 {
		havingSQL = "HAVING " + strings.Join(having, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT r.did, %s
		FROM index_record r
		JOIN index_record_url u ON u.did = r.did
		%s
		GROUP BY r.did
		%s
		ORDER BY r.did
		LIMIT %s OFFSET %s`, agg, w.where(), havingSQL, w.arg(q.Limit), w.arg(q.Offset))

	return collectDIDURLs(ctx, r.db, query, w.args)
}

func (r *multiIndexRepo) QueryMetadataByKey(ctx context.Context, q MetadataKeyQuery) ([]URLMetadataHit, error) {
	w := &whereBuilder{}
	w.add("m.key = " + w.arg(q.Key))
	w.add("m.value = " + w.arg(q.Value))
	if q.URL != "" {
		w.add(fmt.Sprintf(`m.url LIKE %s ESCAPE '\'`, w.arg("%"+escapeLike(q.URL)+"%")))
	}
	if cond := versionedPredicate(q.Versioned); cond != "" {
		w.add(cond)
	}

	query := fmt.Sprintf(`
		SELECT r.did, m.url, r.rev
		FROM index_record_url_metadata m
		JOIN index_record r ON r.did = m.did
		%s
		ORDER BY r.did, m.url
		LIMIT %s OFFSET %s`, w.where(), w.arg(q.Limit), w.arg(q.Offset))

	return collectMetadataHits(ctx, r.db, query, w.args)
}

func (r *multiIndexRepo) Stats(ctx context.Context) (count, totalBytes int64, err error) {
	return stats(ctx, r.db, "index_record")
}

// query выполняет SELECT по index_record и загружает дочерние строки для результата.
func (r *multiIndexRepo) query(ctx context.Context, query string, args ...any) ([]*model.Record, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записей: %w", err)
	}
	defer rows.Close()

	var result []*model.Record
	for rows.Next() {
		rec := &model.Record{}
		var form string
		if err := rows.Scan(
			&rec.DID, &rec.BaseID, &rec.Rev, &form, &rec.Size, &rec.CreatedDate, &rec.UpdatedDate,
			&rec.FileName, &rec.Version, &rec.Uploader, &rec.Description,
			&rec.ContentCreatedDate, &rec.ContentUpdatedDate,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		rec.Form = model.Form(form)
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения записей: %w", err)
	}
	rows.Close()

	if err := r.loadChildren(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// loadChildren загружает хэши, URL, метаданные, acl, authz и алиасы одним запросом на таблицу.
func (r *multiIndexRepo) loadChildren(ctx context.Context, recs []*model.Record) error {
	if len(recs) == 0 {
		return nil
	}
	byDID := make(map[string]*model.Record, len(recs))
	dids := make([]string, 0, len(recs))
	for _, rec := range recs {
		rec.Hashes = map[string]string{}
		rec.Metadata = map[string]string{}
		rec.URLsMetadata = map[string]map[string]string{}
		byDID[rec.DID] = rec
		dids = append(dids, rec.DID)
	}

	var did, a, b, c string

	load := func(query string, scan []any, fn func(rec *model.Record)) error {
		rows, err := r.db.Query(ctx, query, dids)
		if err != nil {
			return err
		}
		_, err = pgx.ForEachRow(rows, scan, func() error {
			if rec := byDID[did]; rec != nil {
				fn(rec)
			}
			return nil
		})
		return err
	}

	steps := []struct {
		name  string
		query string
		scan  []any
		fn    func(rec *model.Record)
	}{
		{"хэши", `SELECT did, hash_type, hash_value FROM index_record_hash WHERE did = ANY($1)`,
			[]any{&did, &a, &b}, func(rec *model.Record) { rec.Hashes[a] = b }},
		{"URL", `SELECT did, url FROM index_record_url WHERE did = ANY($1) ORDER BY did, url`,
			[]any{&did, &a}, func(rec *model.Record) { rec.URLs = append(rec.URLs, a) }},
		{"метаданные URL", `SELECT did, url, key, value FROM index_record_url_metadata WHERE did = ANY($1)`,
			[]any{&did, &a, &b, &c}, func(rec *model.Record) {
				if rec.URLsMetadata[a] == nil {
					rec.URLsMetadata[a] = map[string]string{}
				}
				rec.URLsMetadata[a][b] = c
			}},
		{"метаданные", `SELECT did, key, value FROM index_record_metadata WHERE did = ANY($1)`,
			[]any{&did, &a, &b}, func(rec *model.Record) { rec.Metadata[a] = b }},
		{"acl", `SELECT did, ace FROM index_record_ace WHERE did = ANY($1) ORDER BY did, ord, ace`,
			[]any{&did, &a}, func(rec *model.Record) { rec.ACL = append(rec.ACL, a) }},
		{"authz", `SELECT did, resource FROM index_record_authz WHERE did = ANY($1) ORDER BY did, ord, resource`,
			[]any{&did, &a}, func(rec *model.Record) { rec.Authz = append(rec.Authz, a) }},
		{"алиасы", `SELECT did, name FROM index_record_alias WHERE did = ANY($1) ORDER BY did, name`,
			[]any{&did, &a}, func(rec *model.Record) { rec.Aliases = append(rec.Aliases, a) }},
	}
	for _, s := range steps {
		if err := load(s.query, s.scan, s.fn); err != nil {
			return fmt.Errorf("ошибка загрузки (%s): %w", s.name, err)
		}
	}

	for _, rec := range recs {
		rec.Normalize()
	}
	return nil
}

// --- общие запросы обеих раскладок ---

func baseIDsOf(ctx context.Context, db DBTX, table string, dids []string) (map[string]string, error) {
	out := make(map[string]string, len(dids))
	if len(dids) == 0 {
		return out, nil
	}
	rows, err := db.Query(ctx, "SELECT did, baseid FROM "+table+" WHERE did = ANY($1)", dids)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения baseid: %w", err)
	}
	var did, baseid string
	if _, err := pgx.ForEachRow(rows, []any{&did, &baseid}, func() error {
		out[did] = baseid
		return nil
	}); err != nil {
		return nil, fmt.Errorf("ошибка сканирования baseid: %w", err)
	}
	return out, nil
}

func stats(ctx context.Context, db DBTX, table string) (count, totalBytes int64, err error) {
	err = db.QueryRow(ctx, "SELECT COUNT(*), COALESCE(SUM(size), 0)::bigint FROM "+table).Scan(&count, &totalBytes)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	return count, totalBytes, nil
}

func collectDIDURLs(ctx context.Context, db DBTX, query string, args []any) ([]DIDURLs, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения URL записей: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (DIDURLs, error) {
		var d DIDURLs
		err := row.Scan(&d.DID, &d.URLs)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования URL записей: %w", err)
	}
	return out, nil
}

func collectMetadataHits(ctx context.Context, db DBTX, query string, args []any) ([]URLMetadataHit, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска по метаданным URL: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (URLMetadataHit, error) {
		var h URLMetadataHit
		err := row.Scan(&h.DID, &h.URL, &h.Rev)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования метаданных URL: %w", err)
	}
	return out, nil
}

// dedupeURLEntries убирает повторяющиеся пары (url, метаданные), сохраняя порядок.
func dedupeURLEntries(entries []URLEntry) []URLEntry {
	seen := map[string]struct{}{}
	out := entries[:0]
	for _, e := range entries {
		key := e.URL
		for _, k := range model.SortedKeys(e.Metadata) {
			key += "\x00" + k + "\x01" + e.Metadata[k]
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

