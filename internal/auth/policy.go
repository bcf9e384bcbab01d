// policy.go — HTTP-клиент к policy engine.
// POST {base}/auth/request с токеном пользователя и списком запросов,
// ответ {"auth": true|false}.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ServiceName — имя сервиса в запросах к policy engine.
const ServiceName = "indexd"

// PolicyClient — клиент policy engine.
type PolicyClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewPolicyClient создаёт клиент policy engine.
// timeout ограничивает каждый запрос; истечение таймаута трактуется вызывающим как отказ.
func NewPolicyClient(baseURL string, timeout time.Duration, logger *slog.Logger) *PolicyClient {
	return &PolicyClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "policy_client")),
	}
}

type policyAction struct {
	Service string `json:"service"`
	Method  string `json:"method"`
}

type policyRequest struct {
	Resource string       `json:"resource"`
	Action   policyAction `json:"action"`
}

type policyBody struct {
	User struct {
		Token string `json:"token,omitempty"`
	} `json:"user"`
	Requests []policyRequest `json:"requests"`
}

type policyResponse struct {
	Auth bool `json:"auth"`
}

// Allowed спрашивает, разрешён ли method на resource для владельца token.
// Ошибка возвращается при сбое транспорта или неожиданном ответе.
func (c *PolicyClient) Allowed(ctx context.Context, token, method, resource string) (bool, error) {
	var body policyBody
	body.User.Token = token
	body.Requests = []policyRequest{{
		Resource: resource,
		Action:   policyAction{Service: ServiceName, Method: method},
	}}
	data, err := json.Marshal(body)
	if err != nil {
		return false, fmt.Errorf("сериализация запроса policy engine: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/request", bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("создание запроса policy engine: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL из конфигурации
	if err != nil {
		return false, fmt.Errorf("запрос к policy engine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("policy engine вернул статус %d: %s", resp.StatusCode, string(msg))
	}

	var out policyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("декодирование ответа policy engine: %w", err)
	}

	c.logger.Debug("Решение policy engine",
		slog.String("resource", resource),
		slog.String("method", method),
		slog.Bool("auth", out.Auth),
	)
	return out.Auth, nil
}
