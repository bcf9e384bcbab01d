// Пакет errors — ответы с ошибками Index Module.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError или FromError.
package errors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bigkaa/goartstore/index-module/internal/auth"
	"github.com/bigkaa/goartstore/index-module/internal/dist"
	"github.com/bigkaa/goartstore/index-module/internal/service"
)

// Коды ошибок.
const (
	CodeNoRecord         = "NO_RECORD"
	CodeMultipleRecords  = "MULTIPLE_RECORDS"
	CodeRevisionMismatch = "REVISION_MISMATCH"
	CodeDuplicateRecord  = "DUPLICATE_RECORD"
	CodeUserError        = "USER_ERROR"
	CodeAuthError        = "AUTH_ERROR"
	CodeAuthzError       = "AUTHZ_ERROR"
	CodeUnhealthy        = "UNHEALTHY"
	CodeInternalError    = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// kinds — соответствие ошибок слоёв кодам ответа. Порядок важен:
// проверяется первое совпадение.
var kinds = []struct {
	target error
	status int
	code   string
}{
	{service.ErrNotFound, http.StatusNotFound, CodeNoRecord},
	{dist.ErrNotFound, http.StatusNotFound, CodeNoRecord},
	{service.ErrMultipleRecords, http.StatusConflict, CodeMultipleRecords},
	{service.ErrRevisionMismatch, http.StatusConflict, CodeRevisionMismatch},
	{service.ErrDuplicateRecord, http.StatusConflict, CodeDuplicateRecord},
	{service.ErrValidation, http.StatusBadRequest, CodeUserError},
	{auth.ErrAuth, http.StatusForbidden, CodeAuthError},
	{auth.ErrAuthz, http.StatusUnauthorized, CodeAuthzError},
	{service.ErrUnhealthy, http.StatusInternalServerError, CodeUnhealthy},
}

// Classify возвращает HTTP-статус и код для ошибки.
// Неизвестные ошибки — 500 INTERNAL_ERROR.
func Classify(err error) (status int, code string) {
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, CodeInternalError
}

// FromError записывает ответ для ошибки сервисного слоя.
// Внутренние ошибки логируются, клиенту уходит обобщённое сообщение.
func FromError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := Classify(err)
	if code == CodeInternalError {
		logger.Error("Внутренняя ошибка", slog.String("error", err.Error()))
		WriteError(w, status, code, "Внутренняя ошибка сервера")
		return
	}
	WriteError(w, status, code, err.Error())
}

// --- Конструкторы для типичных ошибок ---

// UserError — 400 некорректный запрос.
func UserError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeUserError, message)
}

// NoRecord — 404 запись не найдена.
func NoRecord(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNoRecord, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
