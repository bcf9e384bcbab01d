// Пакет auth — проверка учётных данных и прав доступа Index Module.
// Два режима: Basic-учётные данные из хранилища auth_record и
// проверка прав на ресурсы через внешний policy engine.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	// ErrAuth — неверные Basic-учётные данные (AUTH_ERROR, 403).
	ErrAuth = errors.New("ошибка аутентификации")
	// ErrAuthz — policy engine отказал в доступе (AUTHZ_ERROR, 401).
	ErrAuthz = errors.New("доступ запрещён")
)

// contextKey — тип для ключей контекста.
type contextKey string

const contextKeyCredentials contextKey = "im_credentials"

// Credentials — учётные данные запроса из заголовка Authorization.
type Credentials struct {
	// Header — исходное значение заголовка Authorization (ключ кэша решений)
	Header string
	// Basic — true, если заголовок содержит Basic-учётные данные
	Basic    bool
	Username string
	Password string
	// Token — bearer-токен (пусто, если не передан)
	Token string
}

// ParseAuthorization разбирает заголовок Authorization.
// Нераспознанная схема даёт Credentials только с Header.
func ParseAuthorization(header string) Credentials {
	c := Credentials{Header: header}
	scheme, value, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return c
	}
	value = strings.TrimSpace(value)

	switch {
	case strings.EqualFold(scheme, "Basic"):
		raw, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return c
		}
		user, pass, ok := strings.Cut(string(raw), ":")
		if !ok {
			return c
		}
		c.Basic = true
		c.Username = user
		c.Password = pass
	case strings.EqualFold(scheme, "Bearer"):
		c.Token = value
	}
	return c
}

// WithCredentials помещает учётные данные в контекст.
func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, contextKeyCredentials, c)
}

// FromContext возвращает учётные данные запроса (пустые, если не заданы).
func FromContext(ctx context.Context) Credentials {
	c, _ := ctx.Value(contextKeyCredentials).(Credentials)
	return c
}

// HashPassword возвращает SHA-256 hex-дайджест пароля (формат auth_record.password).
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
