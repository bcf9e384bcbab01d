// health.go — статистика индекса и проверка доступности хранилища.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/goartstore/index-module/internal/repository"
)

// Stats — агрегаты индекса.
type Stats struct {
	FileCount     int64 `json:"fileCount"`
	TotalFileSize int64 `json:"totalFileSize"`
}

// HealthService — статистика и health check.
type HealthService struct {
	store  IndexStore
	check  func(ctx context.Context) error
	logger *slog.Logger
}

// NewHealthService создаёт сервис статистики.
// check выполняет SELECT 1 в транзакции (database.HealthCheck поверх пула).
func NewHealthService(store IndexStore, check func(ctx context.Context) error, logger *slog.Logger) *HealthService {
	return &HealthService{
		store:  store,
		check:  check,
		logger: logger.With(slog.String("component", "health_service")),
	}
}

// Stats возвращает количество записей и суммарный размер.
func (s *HealthService) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.store.Session(ctx, func(repo repository.IndexRepository) error {
		var err error
		st.FileCount, st.TotalFileSize, err = repo.Stats(ctx)
		return err
	})
	if err != nil {
		return Stats{}, fmt.Errorf("получение статистики: %w", err)
	}
	return st, nil
}

// HealthCheck проверяет доступность хранилища; ErrUnhealthy при любой ошибке.
func (s *HealthService) HealthCheck(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		s.logger.Warn("Хранилище недоступно", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	return nil
}
