// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM.
// Индекс записей доступен в двух раскладках (multi, single) за одним интерфейсом.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/goartstore/index-module/internal/config"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся did или алиас).
	ErrConflict = errors.New("конфликт — запись уже существует")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner позволяет выполнять операции в транзакции.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт TxRunner для управления транзакциями.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx выполняет fn внутри транзакции.
// При ошибке fn — транзакция откатывается.
// При успехе — коммитится. Соединение возвращается в пул на любом пути.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// IndexStore связывает выбранную раскладку индекса с транзакцией.
type IndexStore struct {
	tx      *TxRunner
	layout  string
	newRepo func(db DBTX) IndexRepository
}

// NewIndexStore создаёт хранилище индекса для раскладки layout (multi или single).
func NewIndexStore(pool *pgxpool.Pool, layout string) (*IndexStore, error) {
	newRepo, err := LayoutConstructor(layout)
	if err != nil {
		return nil, err
	}
	return &IndexStore{tx: NewTxRunner(pool), layout: layout, newRepo: newRepo}, nil
}

// LayoutConstructor возвращает конструктор репозитория для раскладки.
func LayoutConstructor(layout string) (func(db DBTX) IndexRepository, error) {
	switch layout {
	case config.IndexDriverMulti:
		return NewMultiIndexRepository, nil
	case config.IndexDriverSingle:
		return NewSingleIndexRepository, nil
	default:
		return nil, fmt.Errorf("неизвестная раскладка индекса %q", layout)
	}
}

// Session выполняет fn в транзакции с репозиторием выбранной раскладки.
func (s *IndexStore) Session(ctx context.Context, fn func(repo IndexRepository) error) error {
	return s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		return fn(s.newRepo(tx))
	})
}

// Layout возвращает имя раскладки.
func (s *IndexStore) Layout() string {
	return s.layout
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// isNoRows проверяет, что QueryRow не нашёл строк.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// whereBuilder накапливает условия WHERE и позиционные аргументы.
type whereBuilder struct {
	conds []string
	args  []any
}

// arg добавляет аргумент и возвращает его плейсхолдер ($N).
func (w *whereBuilder) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *whereBuilder) add(cond string) {
	w.conds = append(w.conds, cond)
}

// where возвращает "WHERE ..." или пустую строку.
func (w *whereBuilder) where() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

// escapeLike экранирует спецсимволы LIKE (используется с ESCAPE '\').
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
