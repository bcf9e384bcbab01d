// errors.go — ошибки бизнес-логики сервисного слоя.
// Ошибки аутентификации и авторизации объявлены в пакете auth.
package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/goartstore/index-module/internal/repository"
)

var (
	// ErrNotFound — идентификатор не разрешается ни в запись, ни в семейство.
	ErrNotFound = errors.New("запись не найдена")
	// ErrMultipleRecords — нарушение уникальности между семействами.
	ErrMultipleRecords = errors.New("найдено несколько записей")
	// ErrDuplicateRecord — did или алиас уже существует.
	ErrDuplicateRecord = errors.New("запись уже существует")
	// ErrRevisionMismatch — переданная ревизия не совпадает с текущей.
	ErrRevisionMismatch = errors.New("ревизия не совпадает")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrUnhealthy — хранилище недоступно.
	ErrUnhealthy = errors.New("хранилище недоступно")
)

// validationf оборачивает сообщение в ErrValidation.
func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// invalid оборачивает ошибку доменной валидации в ErrValidation.
func invalid(err error) error {
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

// translateRepoErr приводит ошибки репозитория к видам сервисного слоя.
func translateRepoErr(err error, action string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, action)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %v", ErrDuplicateRecord, err)
	default:
		return fmt.Errorf("%s: %w", action, err)
	}
}

// checkRev сравнивает ревизию клиента с текущей.
func checkRev(current, given string) error {
	if given != current {
		return fmt.Errorf("%w: текущая %s, передана %s", ErrRevisionMismatch, current, given)
	}
	return nil
}
