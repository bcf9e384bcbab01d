// gate.go — проверка прав запроса.
// Валидные Basic-учётные данные разрешают любое действие; иначе каждое
// право на ресурс подтверждается policy engine (через кэш решений).
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/goartstore/index-module/internal/repository"
)

// methodRead — право, требуемое для чтения при закрытом discovery.
const methodRead = "read"

// UserStore — источник хэшей паролей Basic-пользователей.
// Реализуется repository.AuthRepository.
type UserStore interface {
	PasswordDigest(ctx context.Context, username string) (string, error)
}

// PolicyEngine — решение policy engine по одному ресурсу.
// Реализуется *PolicyClient.
type PolicyEngine interface {
	Allowed(ctx context.Context, token, method, resource string) (bool, error)
}

// GateConfig — параметры Gate.
type GateConfig struct {
	// Discoverable — чтение без проверки прав
	Discoverable bool
	// DiscoveryAuthz — ресурсы, на которые требуется право read, если !Discoverable
	DiscoveryAuthz []string
}

// Gate — проверка прав текущего запроса.
type Gate struct {
	users  UserStore
	policy PolicyEngine
	cache  *DecisionCache
	cfg    GateConfig
	logger *slog.Logger
}

// NewGate создаёт Gate. policy == nil — policy engine не настроен:
// без Basic-учётных данных все проверки завершаются отказом.
func NewGate(users UserStore, policy PolicyEngine, cache *DecisionCache, cfg GateConfig, logger *slog.Logger) *Gate {
	return &Gate{
		users:  users,
		policy: policy,
		cache:  cache,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "auth_gate")),
	}
}

// checkBasic сверяет пароль с хэшем из хранилища.
func (g *Gate) checkBasic(ctx context.Context, c Credentials) error {
	digest, err := g.users.PasswordDigest(ctx, c.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: пользователь %q не найден", ErrAuth, c.Username)
		}
		return fmt.Errorf("проверка учётных данных: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(digest), []byte(HashPassword(c.Password))) != 1 {
		return fmt.Errorf("%w: неверный пароль пользователя %q", ErrAuth, c.Username)
	}
	return nil
}

// RequireBasic требует валидные Basic-учётные данные.
func (g *Gate) RequireBasic(ctx context.Context) error {
	c := FromContext(ctx)
	if !c.Basic {
		return fmt.Errorf("%w: требуются Basic-учётные данные", ErrAuthz)
	}
	return g.checkBasic(ctx, c)
}

// Authorize требует право method на каждый ресурс.
// Пустой список ресурсов разрешён только по Basic-учётным данным.
func (g *Gate) Authorize(ctx context.Context, method string, resources []string) error {
	c := FromContext(ctx)
	if c.Basic {
		return g.checkBasic(ctx, c)
	}
	if len(resources) == 0 {
		return fmt.Errorf("%w: %s без списка ресурсов требует Basic-учётных данных", ErrAuthz, method)
	}
	if g.policy == nil {
		return fmt.Errorf("%w: policy engine не настроен", ErrAuthz)
	}

	for _, resource := range resources {
		allowed, err := g.decide(ctx, c, method, resource)
		if err != nil {
			// Сбой или таймаут policy engine — отказ
			g.logger.Warn("Policy engine недоступен",
				slog.String("resource", resource),
				slog.String("method", method),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("%w: %s на %s: %v", ErrAuthz, method, resource, err)
		}
		if !allowed {
			return fmt.Errorf("%w: %s на %s", ErrAuthz, method, resource)
		}
	}
	return nil
}

// decide возвращает решение из кэша или запрашивает policy engine.
// Ошибки транспорта не кэшируются.
func (g *Gate) decide(ctx context.Context, c Credentials, method, resource string) (bool, error) {
	if g.cache != nil {
		if allowed, ok := g.cache.Get(resource, method, c.Header); ok {
			return allowed, nil
		}
	}
	allowed, err := g.policy.Allowed(ctx, c.Token, method, resource)
	if err != nil {
		return false, err
	}
	if g.cache != nil {
		g.cache.Set(resource, method, c.Header, c.Token, allowed)
	}
	return allowed, nil
}

// AuthorizeRead проверяет право чтения, если записи не discoverable.
func (g *Gate) AuthorizeRead(ctx context.Context) error {
	if g.cfg.Discoverable {
		return nil
	}
	return g.Authorize(ctx, methodRead, g.cfg.DiscoveryAuthz)
}
