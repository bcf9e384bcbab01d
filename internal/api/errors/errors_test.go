package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/bigkaa/goartstore/index-module/internal/auth"
	"github.com/bigkaa/goartstore/index-module/internal/dist"
	"github.com/bigkaa/goartstore/index-module/internal/service"
)

// TestClassify проверяет соответствие ошибок кодам ответа.
func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"не найдено", fmt.Errorf("get: %w", service.ErrNotFound), 404, CodeNoRecord},
		{"не найдено в DIST", dist.ErrNotFound, 404, CodeNoRecord},
		{"несколько записей", service.ErrMultipleRecords, 409, CodeMultipleRecords},
		{"ревизия", fmt.Errorf("x: %w", service.ErrRevisionMismatch), 409, CodeRevisionMismatch},
		{"дубликат", service.ErrDuplicateRecord, 409, CodeDuplicateRecord},
		{"валидация", service.ErrValidation, 400, CodeUserError},
		{"аутентификация", auth.ErrAuth, 403, CodeAuthError},
		{"авторизация", auth.ErrAuthz, 401, CodeAuthzError},
		{"хранилище", service.ErrUnhealthy, 500, CodeUnhealthy},
		{"прочее", errors.New("boom"), 500, CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := Classify(tt.err)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Errorf("Classify = %d %s, ожидалось %d %s", status, code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

// TestFromError проверяет формат тела ответа.
func TestFromError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	w := httptest.NewRecorder()
	FromError(w, logger, fmt.Errorf("%w: текущая a, передана b", service.ErrRevisionMismatch))
	if w.Code != http.StatusConflict {
		t.Fatalf("статус = %d", w.Code)
	}
	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Error.Code != CodeRevisionMismatch || body.Error.Message == "" {
		t.Errorf("тело = %+v", body)
	}

	w = httptest.NewRecorder()
	FromError(w, logger, errors.New("секрет соединения"))
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Error.Message != "Внутренняя ошибка сервера" {
		t.Errorf("внутренняя ошибка раскрыта клиенту: %q", body.Error.Message)
	}
}
