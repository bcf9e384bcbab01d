package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuthRepository — учётные данные Basic-аутентификации (auth_record).
// Пароли хранятся как SHA-256 hex; хэширование выполняет вызывающий код.
type AuthRepository interface {
	// PasswordDigest возвращает хэш пароля пользователя; ErrNotFound, если пользователя нет.
	PasswordDigest(ctx context.Context, username string) (string, error)
	// Upsert создаёт пользователя или заменяет его пароль.
	Upsert(ctx context.Context, username, digest string) error
	// Delete удаляет пользователя.
	Delete(ctx context.Context, username string) error
}

type authRepo struct {
	db DBTX
}

// NewAuthRepository создаёт репозиторий учётных данных.
func NewAuthRepository(db DBTX) AuthRepository {
	return &authRepo{db: db}
}

// NewAuthRepositoryFromPool — репозиторий учётных данных поверх пула (вне транзакций).
func NewAuthRepositoryFromPool(pool *pgxpool.Pool) AuthRepository {
	return &authRepo{db: pool}
}

func (r *authRepo) PasswordDigest(ctx context.Context, username string) (string, error) {
	var digest string
	err := r.db.QueryRow(ctx, `SELECT password FROM auth_record WHERE username = $1`, username).Scan(&digest)
	if err != nil {
		if isNoRows(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("ошибка получения учётных данных: %w", err)
	}
	return digest, nil
}

func (r *authRepo) Upsert(ctx context.Context, username, digest string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO auth_record (username, password) VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET password = EXCLUDED.password`,
		username, digest)
	if err != nil {
		return fmt.Errorf("ошибка сохранения учётных данных: %w", err)
	}
	return nil
}

func (r *authRepo) Delete(ctx context.Context, username string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM auth_record WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("ошибка удаления пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
