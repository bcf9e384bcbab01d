package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/bigkaa/goartstore/index-module/internal/config"
)

// TestHealthService_Stats проверяет агрегаты индекса.
func TestHealthService_Stats(t *testing.T) {
	svc, store, _ := newTestService(config.IndexDriverMulti, PrefixSettings{})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := svc.Create(ctx, objectInput()); err != nil {
			t.Fatalf("Create ошибка: %v", err)
		}
	}
	if _, err := svc.CreateBlank(ctx, BlankInput{Uploader: "u"}); err != nil {
		t.Fatalf("CreateBlank ошибка: %v", err)
	}

	hs := NewHealthService(store, func(context.Context) error { return nil }, slog.Default())
	st, err := hs.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats ошибка: %v", err)
	}
	if st.FileCount != 3 || st.TotalFileSize != 246 {
		t.Errorf("Stats = %+v, ожидалось {3 246}", st)
	}
}

// TestHealthService_HealthCheck проверяет перевод ошибки хранилища в ErrUnhealthy.
func TestHealthService_HealthCheck(t *testing.T) {
	store := newMemStore(config.IndexDriverMulti)

	ok := NewHealthService(store, func(context.Context) error { return nil }, slog.Default())
	if err := ok.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck ошибка: %v", err)
	}

	down := NewHealthService(store, func(context.Context) error { return errors.New("connection refused") }, slog.Default())
	if err := down.HealthCheck(context.Background()); !errors.Is(err, ErrUnhealthy) {
		t.Errorf("HealthCheck = %v, ожидался ErrUnhealthy", err)
	}
}
