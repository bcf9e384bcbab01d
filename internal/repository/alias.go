package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
)

// AliasRepository — CRUD реестра глобальных алиасов (alias_record и дочерние таблицы).
type AliasRepository interface {
	// Get возвращает алиас по имени; forUpdate блокирует строку.
	Get(ctx context.Context, name string, forUpdate bool) (*model.GlobalAlias, error)
	// Insert создаёт алиас. ErrConflict — если имя занято.
	Insert(ctx context.Context, a *model.GlobalAlias) error
	// Update перезаписывает все поля алиаса.
	Update(ctx context.Context, a *model.GlobalAlias) error
	// Delete удаляет алиас с хэшами и authorities.
	Delete(ctx context.Context, name string) error
	// List возвращает алиасы по имени по возрастанию.
	List(ctx context.Context, q AliasListQuery) ([]*model.GlobalAlias, error)
}

// AliasListQuery — параметры List для глобальных алиасов.
type AliasListQuery struct {
	// Start — курсор: name строго больше Start
	Start  string
	Limit  int
	Size   *int64
	Hashes map[string]string
}

// AliasStore открывает транзакции над реестром алиасов.
type AliasStore struct {
	tx *TxRunner
}

// NewAliasStore создаёт хранилище глобальных алиасов.
func NewAliasStore(pool *pgxpool.Pool) *AliasStore {
	return &AliasStore{tx: NewTxRunner(pool)}
}

// Session выполняет fn в транзакции.
func (s *AliasStore) Session(ctx context.Context, fn func(repo AliasRepository) error) error {
	return s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		return fn(NewAliasRepository(tx))
	})
}

type aliasRepo struct {
	db DBTX
}

// NewAliasRepository создаёт репозиторий глобальных алиасов.
func NewAliasRepository(db DBTX) AliasRepository {
	return &aliasRepo{db: db}
}

const aliasColumns = `a.name, a.rev, a.size, a.release, a.metastring, a.keeper_authority`

func (r *aliasRepo) Get(ctx context.Context, name string, forUpdate bool) (*model.GlobalAlias, error) {
	query := "SELECT " + aliasColumns + " FROM alias_record a WHERE a.name = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	aliases, err := r.query(ctx, query, name)
	if err != nil {
		return nil, err
	}
	if len(aliases) == 0 {
		return nil, ErrNotFound
	}
	return aliases[0], nil
}

func (r *aliasRepo) Insert(ctx context.Context, a *model.GlobalAlias) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO alias_record (name, rev, size, release, metastring, keeper_authority)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.Name, a.Rev, a.Size, a.Release, a.Metastring, a.KeeperAuthority,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: алиас %s уже существует", ErrConflict, a.Name)
		}
		return fmt.Errorf("ошибка создания алиаса: %w", err)
	}
	return r.insertChildren(ctx, a)
}

func (r *aliasRepo) Update(ctx context.Context, a *model.GlobalAlias) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE alias_record
		SET rev = $2, size = $3, release = $4, metastring = $5, keeper_authority = $6
		WHERE name = $1`,
		a.Name, a.Rev, a.Size, a.Release, a.Metastring, a.KeeperAuthority,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления алиаса: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := r.deleteChildren(ctx, a.Name); err != nil {
		return err
	}
	return r.insertChildren(ctx, a)
}

func (r *aliasRepo) Delete(ctx context.Context, name string) error {
	if err := r.deleteChildren(ctx, name); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM alias_record WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("ошибка удаления алиаса: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *aliasRepo) List(ctx context.Context, q AliasListQuery) ([]*model.GlobalAlias, error) {
	w := &whereBuilder{}
	if q.Start != "" {
		w.add("a.name > " + w.arg(q.Start))
	}
	if q.Size != nil {
		w.add("a.size = " + w.arg(*q.Size))
	}
	for _, algo := range model.SortedKeys(q.Hashes) {
		w.add(fmt.Sprintf(
			"EXISTS (SELECT 1 FROM alias_record_hash h WHERE h.name = a.name AND h.hash_type = %s AND h.hash_value = %s)",
			w.arg(algo), w.arg(q.Hashes[algo])))
	}

	query := fmt.Sprintf("SELECT %s FROM alias_record a %s ORDER BY a.name LIMIT %s",
		aliasColumns, w.where(), w.arg(q.Limit))
	return r.query(ctx, query, w.args...)
}

func (r *aliasRepo) insertChildren(ctx context.Context, a *model.GlobalAlias) error {
	if len(a.Hashes) > 0 {
		algos := model.SortedKeys(a.Hashes)
		digests := make([]string, len(algos))
		for i, algo := range algos {
			digests[i] = a.Hashes[algo]
		}
		_, err := r.db.Exec(ctx, `
			INSERT INTO alias_record_hash (name, hash_type, hash_value)
			SELECT $1, t, v FROM unnest($2::text[], $3::text[]) AS x(t, v)`,
			a.Name, algos, digests)
		if err != nil {
			return fmt.Errorf("ошибка записи хэшей алиаса: %w", err)
		}
	}
	if len(a.HostAuthorities) > 0 {
		_, err := r.db.Exec(ctx, `
			INSERT INTO alias_record_host_authority (name, host)
			SELECT $1, h FROM unnest($2::text[]) AS x(h)`,
			a.Name, a.HostAuthorities)
		if err != nil {
			return fmt.Errorf("ошибка записи host_authorities: %w", err)
		}
	}
	return nil
}

func (r *aliasRepo) deleteChildren(ctx context.Context, name string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM alias_record_hash WHERE name = $1`, name); err != nil {
		return fmt.Errorf("ошибка удаления хэшей алиаса: %w", err)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM alias_record_host_authority WHERE name = $1`, name); err != nil {
		return fmt.Errorf("ошибка удаления host_authorities: %w", err)
	}
	return nil
}

// query читает строки alias_record и догружает хэши и authorities.
func (r *aliasRepo) query(ctx context.Context, query string, args ...any) ([]*model.GlobalAlias, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения алиасов: %w", err)
	}
	aliases, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.GlobalAlias, error) {
		a := &model.GlobalAlias{}
		var release *string
		if err := row.Scan(&a.Name, &a.Rev, &a.Size, &release, &a.Metastring, &a.KeeperAuthority); err != nil {
			return nil, err
		}
		if release != nil {
			rel := model.Release(*release)
			a.Release = &rel
		}
		a.Hashes = map[string]string{}
		a.HostAuthorities = []string{}
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования алиасов: %w", err)
	}
	if len(aliases) == 0 {
		return aliases, nil
	}

	byName := make(map[string]*model.GlobalAlias, len(aliases))
	names := make([]string, len(aliases))
	for i, a := range aliases {
		byName[a.Name] = a
		names[i] = a.Name
	}

	hashRows, err := r.db.Query(ctx,
		`SELECT name, hash_type, hash_value FROM alias_record_hash WHERE name = ANY($1)`, names)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения хэшей алиасов: %w", err)
	}
	var name, algo, digest string
	_, err = pgx.ForEachRow(hashRows, []any{&name, &algo, &digest}, func() error {
		byName[name].Hashes[algo] = digest
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования хэшей алиасов: %w", err)
	}

	hostRows, err := r.db.Query(ctx,
		`SELECT name, host FROM alias_record_host_authority WHERE name = ANY($1) ORDER BY name, host`, names)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения host_authorities: %w", err)
	}
	var host string
	_, err = pgx.ForEachRow(hostRows, []any{&name, &host}, func() error {
		byName[name].HostAuthorities = append(byName[name].HostAuthorities, host)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования host_authorities: %w", err)
	}

	return aliases, nil
}
