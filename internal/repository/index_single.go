package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/index-module/internal/config"
	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
)

// singleIndexRepo — денормализованная раскладка: одна строка record
// с JSONB- и массивными колонками. Глобальная уникальность алиасов
// обеспечивается таблицей record_alias_name.
type singleIndexRepo struct {
	db    DBTX
	preds singlePredicates
}

// NewSingleIndexRepository создаёт репозиторий денормализованной раскладки.
func NewSingleIndexRepository(db DBTX) IndexRepository {
	return &singleIndexRepo{db: db}
}

const singleColumns = `r.did, r.baseid, r.rev, r.form, r.size, r.created_date, r.updated_date,
	r.file_name, r.version, r.uploader, r.description, r.content_created_date, r.content_updated_date,
	r.hashes, r.acl, r.authz, r.urls, r.record_metadata, r.url_metadata, r.alias`

func (r *singleIndexRepo) Layout() string { return config.IndexDriverSingle }

func (r *singleIndexRepo) Insert(ctx context.Context, rec *model.Record) error {
	rec.Normalize()

	_, err := r.db.Exec(ctx, `
		INSERT INTO record (did, baseid, rev, form, size, created_date, updated_date,
			file_name, version, uploader, description, content_created_date, content_updated_date,
			hashes, acl, authz, urls, record_metadata, url_metadata, alias, project_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, '{}', $20)`,
		rec.DID, rec.BaseID, rec.Rev, string(rec.Form), rec.Size, rec.CreatedDate, rec.UpdatedDate,
		rec.FileName, rec.Version, rec.Uploader, rec.Description,
		rec.ContentCreatedDate, rec.ContentUpdatedDate,
		rec.Hashes, rec.ACL, rec.Authz, rec.URLs, rec.Metadata, rec.URLsMetadata, rec.ProjectID(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: did %s уже существует", ErrConflict, rec.DID)
		}
		return fmt.Errorf("ошибка создания записи: %w", err)
	}

	return r.AddAliases(ctx, rec.DID, rec.Aliases)
}

func (r *singleIndexRepo) Get(ctx context.Context, did string, forUpdate bool) (*model.Record, error) {
	query := "SELECT " + singleColumns + " FROM record r WHERE r.did = $1"
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

func (r *singleIndexRepo) Save(ctx context.Context, rec *model.Record) error {
	rec.Normalize()

	tag, err := r.db.Exec(ctx, `
		UPDATE record
		SET rev = $2, size = $3, updated_date = $4, file_name = $5, version = $6, uploader = $7,
			description = $8, content_created_date = $9, content_updated_date = $10,
			hashes = $11, acl = $12, authz = $13, urls = $14, record_metadata = $15, url_metadata = $16,
			project_id = $17
		WHERE did = $1`,
		rec.DID, rec.Rev, rec.Size, rec.UpdatedDate, rec.FileName, rec.Version, rec.Uploader,
		rec.Description, rec.ContentCreatedDate, rec.ContentUpdatedDate,
		rec.Hashes, rec.ACL, rec.Authz, rec.URLs, rec.Metadata, rec.URLsMetadata, rec.ProjectID(),
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления записи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *singleIndexRepo) Touch(ctx context.Context, did, rev string, updated time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE record SET rev = $2, updated_date = $3 WHERE did = $1`, did, rev, updated)
	if err != nil {
		return fmt.Errorf("ошибка обновления ревизии: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *singleIndexRepo) Delete(ctx context.Context, did string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM record_alias_name WHERE did = $1`, did); err != nil {
		return fmt.Errorf("ошибка удаления алиасов: %w", err)
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM record WHERE did = $1`, did)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *singleIndexRepo) GetMany(ctx context.Context, dids []string) ([]*model.Record, error) {
	if len(dids) == 0 {
		return nil, nil
	}
	return r.query(ctx, "SELECT "+singleColumns+" FROM record r WHERE r.did = ANY($1) ORDER BY r.did", dids)
}

func (r *singleIndexRepo) ListVersions(ctx context.Context, baseid string) ([]*model.Record, error) {
	return r.query(ctx, "SELECT "+singleColumns+
		" FROM record r WHERE r.baseid = $1 ORDER BY r.created_date, r.did", baseid)
}

func (r *singleIndexRepo) ListVersionsByBaseIDs(ctx context.Context, baseids []string) ([]*model.Record, error) {
	if len(baseids) == 0 {
		return nil, nil
	}
	return r.query(ctx, "SELECT "+singleColumns+
		" FROM record r WHERE r.baseid = ANY($1) ORDER BY r.baseid, r.created_date, r.did", baseids)
}

func (r *singleIndexRepo) BaseIDsOf(ctx context.Context, dids []string) (map[string]string, error) {
	return baseIDsOf(ctx, r.db, "record", dids)
}

// BaseIDExists — в single-раскладке семейство существует, пока есть хотя бы одна его запись.
func (r *singleIndexRepo) BaseIDExists(ctx context.Context, baseid string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM record WHERE baseid = $1)`, baseid).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки baseid: %w", err)
	}
	return exists, nil
}

func (r *singleIndexRepo) ListAliases(ctx context.Context, did string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT name FROM record_alias_name WHERE did = $1 ORDER BY name`, did)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения алиасов: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования алиасов: %w", err)
	}
	return names, nil
}

func (r *singleIndexRepo) AddAliases(ctx context.Context, did string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO record_alias_name (name, did)
		SELECT n, $1 FROM unnest($2::text[]) AS x(n)`,
		did, names)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: алиас уже привязан к записи", ErrConflict)
		}
		return fmt.Errorf("ошибка привязки алиасов: %w", err)
	}
	return r.syncAliasColumn(ctx, did)
}

func (r *singleIndexRepo) DeleteAlias(ctx context.Context, did, name string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM record_alias_name WHERE did = $1 AND name = $2`, did, name)
	if err != nil {
		return fmt.Errorf("ошибка удаления алиаса: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return r.syncAliasColumn(ctx, did)
}

func (r *singleIndexRepo) DeleteAllAliases(ctx context.Context, did string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM record_alias_name WHERE did = $1`, did); err != nil {
		return fmt.Errorf("ошибка удаления алиасов: %w", err)
	}
	return r.syncAliasColumn(ctx, did)
}

// syncAliasColumn пересобирает колонку alias из record_alias_name.
func (r *singleIndexRepo) syncAliasColumn(ctx context.Context, did string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE record
		SET alias = COALESCE((SELECT array_agg(name ORDER BY name) FROM record_alias_name WHERE did = $1), '{}')
		WHERE did = $1`, did)
	if err != nil {
		return fmt.Errorf("ошибка обновления колонки alias: %w", err)
	}
	return nil
}

func (r *singleIndexRepo) List(ctx context.Context, q ListQuery) ([]*model.Record, error) {
	w := buildListWhere(r.preds, q)
	query := "SELECT " + singleColumns + " FROM record r " + w.where() + " " + listTail(w, q)
	return r.query(ctx, query, w.args...)
}

func (r *singleIndexRepo) ListURLs(ctx context.Context, q URLListQuery) ([]URLEntry, error) {
	w := buildURLListWhere(r.preds, q)
	query := fmt.Sprintf(`
		SELECT u.url, COALESCE(r.url_metadata -> u.url, '{}'::jsonb)
		FROM record r, unnest(r.urls) AS u(url)
		%s
		ORDER BY u.url, r.did
		LIMIT %s OFFSET %s`, w.where(), w.arg(q.Limit), w.arg(q.Offset))

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения URL: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (URLEntry, error) {
		var e URLEntry
		err := row.Scan(&e.URL, &e.Metadata)
		if e.Metadata == nil {
			e.Metadata = map[string]string{}
		}
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования URL: %w", err)
	}
	return dedupeURLEntries(entries), nil
}

func (r *singleIndexRepo) QueryURLs(ctx context.Context, q URLsQuery) ([]DIDURLs, error) {
	w := &whereBuilder{}
	w.add("cardinality(r.urls) > 0")
	if cond := versionedPredicate(q.Versioned); cond != "" {
		w.add(cond)
	}
	const joined = "(SELECT string_agg(x, ',' ORDER BY x) FROM unnest(r.urls) AS x)"
	if q.Include != "" {
		w.add(fmt.Sprintf(`%s LIKE %s ESCAPE '\'`, joined, w.arg("%"+escapeLike(q.Include)+"%")))
	}
	if q.Exclude != "" {
		w.add(fmt.Sprintf(`%s NOT LIKE %s ESCAPE '\'`, joined, w.arg("%"+escapeLike(q.Exclude)+"%")))
	}

	query := fmt.Sprintf(`
		SELECT r.did, %s
		FROM record r
		%s
		ORDER BY r.did
		LIMIT %s OFFSET %s`, joined, w.where(), w.arg(q.Limit), w.arg(q.Offset))

	return collectDIDURLs(ctx, r.db, query, w.args)
}

func (r *singleIndexRepo) QueryMetadataByKey(ctx context.Context, q MetadataKeyQuery) ([]URLMetadataHit, error) {
	w := &whereBuilder{}
	w.add(fmt.Sprintf("r.url_metadata -> u.url ->> %s = %s", w.arg(q.Key), w.arg(q.Value)))
	if q.URL != "" {
		w.add(fmt.Sprintf(`u.url LIKE %s ESCAPE '\'`, w.arg("%"+escapeLike(q.URL)+"%")))
	}
	if cond := versionedPredicate(q.Versioned); cond != "" {
		w.add(cond)
	}

	query := fmt.Sprintf(`
		SELECT r.did, u.url, r.rev
		FROM record r, unnest(r.urls) AS u(url)
		%s
		ORDER BY r.did, u.url
		LIMIT %s OFFSET %s`, w.where(), w.arg(q.Limit), w.arg(q.Offset))

	return collectMetadataHits(ctx, r.db, query, w.args)
}

func (r *singleIndexRepo) Stats(ctx context.Context) (count, totalBytes int64, err error) {
	return stats(ctx, r.db, "record")
}

// query выполняет SELECT по record; все поля записи находятся в одной строке.
func (r *singleIndexRepo) query(ctx context.Context, query string, args ...any) ([]*model.Record, error) {
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
			&rec.Hashes, &rec.ACL, &rec.Authz, &rec.URLs, &rec.Metadata, &rec.URLsMetadata, &rec.Aliases,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		rec.Form = model.Form(form)
		rec.Normalize()
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения записей: %w", err)
	}
	return result, nil
}
