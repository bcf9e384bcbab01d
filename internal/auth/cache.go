// cache.go — кэш решений policy engine.
// Обёртка над hashicorp/golang-lru/v2/expirable: общий TTL задаёт верхнюю
// границу, каждая запись дополнительно хранит срок действия bearer-токена.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша решений.
var (
	authzCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "im_authz_cache_hits_total",
		Help: "Общее количество попаданий в кэш решений policy engine.",
	})
	authzCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "im_authz_cache_misses_total",
		Help: "Общее количество промахов кэша решений policy engine.",
	})
)

type decisionKey struct {
	resource string
	method   string
	header   string
}

type decision struct {
	allowed bool
	expires time.Time
}

// DecisionCache — LRU-кэш решений (resource, method, Authorization) → allow/deny.
type DecisionCache struct {
	cache  *expirable.LRU[decisionKey, decision]
	maxTTL time.Duration
	now    func() time.Time
}

// NewDecisionCache создаёт кэш с максимальным размером и TTL.
func NewDecisionCache(maxSize int, maxTTL time.Duration) *DecisionCache {
	return &DecisionCache{
		cache:  expirable.NewLRU[decisionKey, decision](maxSize, nil, maxTTL),
		maxTTL: maxTTL,
		now:    time.Now,
	}
}

// Get возвращает закэшированное решение. Просроченная по токену запись удаляется.
func (c *DecisionCache) Get(resource, method, header string) (allowed, ok bool) {
	key := decisionKey{resource: resource, method: method, header: header}
	d, found := c.cache.Get(key)
	if found && c.now().Before(d.expires) {
		authzCacheHitsTotal.Inc()
		return d.allowed, true
	}
	if found {
		c.cache.Remove(key)
	}
	authzCacheMissesTotal.Inc()
	return false, false
}

// Set сохраняет решение на min(maxTTL, exp токена). token может быть пустым.
func (c *DecisionCache) Set(resource, method, header, token string, allowed bool) {
	now := c.now()
	expires := now.Add(c.maxTTL)
	if exp, ok := TokenExpiry(token); ok && exp.Before(expires) {
		expires = exp
	}
	if !now.Before(expires) {
		return
	}
	c.cache.Add(decisionKey{resource: resource, method: method, header: header}, decision{
		allowed: allowed,
		expires: expires,
	})
}

// Len возвращает количество записей в кэше.
func (c *DecisionCache) Len() int {
	return c.cache.Len()
}

// TokenExpiry извлекает exp из JWT без проверки подписи.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
