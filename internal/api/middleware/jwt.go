// jwt.go — опциональная проверка подписи bearer-токенов через JWKS.
// Решение о правах принимает policy engine; здесь отсекаются токены
// с неверной подписью, истёкшим сроком или чужим issuer.
// Запросы без bearer-токена (Basic, анонимные) пропускаются.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/goartstore/index-module/internal/api/errors"
	"github.com/bigkaa/goartstore/index-module/internal/auth"
)

// Параметры загрузки JWKS.
const (
	jwksClientTimeout   = 10 * time.Second
	jwksRefreshInterval = 15 * time.Minute
)

// JWTVerifier — middleware проверки bearer-токенов.
type JWTVerifier struct {
	jwks      keyfunc.Keyfunc
	issuer    string
	jwtLeeway time.Duration
	logger    *slog.Logger
}

// NewJWTVerifier создаёт проверку токенов с JWKS по URL.
// Первая загрузка ключей не блокирует старт: IdP может быть ещё недоступен.
func NewJWTVerifier(jwksURL, issuer string, leeway time.Duration, logger *slog.Logger) (*JWTVerifier, error) {
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: jwksClientTimeout},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}
	return NewJWTVerifierWithKeyfunc(k, issuer, leeway, logger), nil
}

// NewJWTVerifierWithKeyfunc создаёт проверку с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTVerifierWithKeyfunc(kf keyfunc.Keyfunc, issuer string, leeway time.Duration, logger *slog.Logger) *JWTVerifier {
	return &JWTVerifier{
		jwks:      kf,
		issuer:    issuer,
		jwtLeeway: leeway,
		logger:    logger.With(slog.String("component", "jwt_verifier")),
	}
}

// Middleware возвращает HTTP middleware. Должен стоять после Credentials.
// Невалидный токен — AUTH_ERROR (403): учётные данные неверны.
func (j *JWTVerifier) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := auth.FromContext(r.Context())
			if c.Token == "" {
				next.ServeHTTP(w, r)
				return
			}

			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(c.Token, &jwt.RegisteredClaims{}, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil || !token.Valid {
				reason := "невалидный токен"
				if err != nil {
					reason = err.Error()
				}
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", reason),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.WriteError(w, http.StatusForbidden, apierrors.CodeAuthError, "Невалидный или просроченный токен")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
