package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/goartstore/index-module/internal/repository"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockUsers — мок UserStore.
type mockUsers struct {
	digests map[string]string
}

func (m *mockUsers) PasswordDigest(_ context.Context, username string) (string, error) {
	d, ok := m.digests[username]
	if !ok {
		return "", repository.ErrNotFound
	}
	return d, nil
}

// mockPolicy — мок PolicyEngine.
type mockPolicy struct {
	calls     atomic.Int32
	allowedFn func(token, method, resource string) (bool, error)
}

func (m *mockPolicy) Allowed(_ context.Context, token, method, resource string) (bool, error) {
	m.calls.Add(1)
	return m.allowedFn(token, method, resource)
}

func basicHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

// signedToken создаёт HS256-токен с exp.
func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("подпись токена: %v", err)
	}
	return tok
}

// TestParseAuthorization проверяет разбор заголовка Authorization.
func TestParseAuthorization(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   Credentials
	}{
		{
			name:   "basic",
			header: basicHeader("admin", "p:ss"),
			want:   Credentials{Basic: true, Username: "admin", Password: "p:ss"},
		},
		{
			name:   "bearer",
			header: "Bearer abc.def.ghi",
			want:   Credentials{Token: "abc.def.ghi"},
		},
		{
			name:   "схема без учёта регистра",
			header: "bearer tok",
			want:   Credentials{Token: "tok"},
		},
		{
			name:   "битый base64",
			header: "Basic %%%",
			want:   Credentials{},
		},
		{
			name:   "пустой заголовок",
			header: "",
			want:   Credentials{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAuthorization(tt.header)
			tt.want.Header = tt.header
			if got != tt.want {
				t.Errorf("ParseAuthorization = %+v, ожидалось %+v", got, tt.want)
			}
		})
	}
}

// TestHashPassword проверяет формат хэша пароля.
func TestHashPassword(t *testing.T) {
	// sha256("password")
	want := "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8"
	if got := HashPassword("password"); got != want {
		t.Errorf("HashPassword = %s, ожидалось %s", got, want)
	}
}

// TestDecisionCache_GetSet проверяет кэширование решений.
func TestDecisionCache_GetSet(t *testing.T) {
	c := NewDecisionCache(10, time.Minute)

	if _, ok := c.Get("/a", "read", "h"); ok {
		t.Fatal("ожидался промах для нового ключа")
	}
	c.Set("/a", "read", "h", "", true)
	allowed, ok := c.Get("/a", "read", "h")
	if !ok || !allowed {
		t.Errorf("Get = %v, %v; ожидалось true, true", allowed, ok)
	}

	// Ключ включает метод и заголовок
	if _, ok := c.Get("/a", "update", "h"); ok {
		t.Error("решение для read не должно использоваться для update")
	}
	if _, ok := c.Get("/a", "read", "other"); ok {
		t.Error("решение не должно переноситься на другой заголовок")
	}
}

// TestDecisionCache_TokenExpiry проверяет, что запись живёт не дольше токена.
func TestDecisionCache_TokenExpiry(t *testing.T) {
	c := NewDecisionCache(10, time.Hour)
	now := time.Now()
	c.now = func() time.Time { return now }

	tok := signedToken(t, now.Add(10*time.Second))
	c.Set("/a", "read", "Bearer "+tok, tok, true)
	if _, ok := c.Get("/a", "read", "Bearer "+tok); !ok {
		t.Fatal("ожидалось попадание до истечения токена")
	}

	c.now = func() time.Time { return now.Add(11 * time.Second) }
	if _, ok := c.Get("/a", "read", "Bearer "+tok); ok {
		t.Error("ожидался промах после истечения токена")
	}
	if c.Len() != 0 {
		t.Errorf("просроченная запись не удалена, Len = %d", c.Len())
	}

	// Уже истёкший токен не кэшируется
	expired := signedToken(t, now.Add(-time.Minute))
	c.Set("/a", "read", "x", expired, true)
	if c.Len() != 0 {
		t.Error("решение по истёкшему токену закэшировано")
	}
}

// TestTokenExpiry проверяет извлечение exp без проверки подписи.
func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := TokenExpiry(signedToken(t, exp))
	if !ok || !got.Equal(exp) {
		t.Errorf("TokenExpiry = %v, %v; ожидалось %v", got, ok, exp)
	}
	if _, ok := TokenExpiry("not-a-jwt"); ok {
		t.Error("ожидалось ok=false для некорректного токена")
	}
	if _, ok := TokenExpiry(""); ok {
		t.Error("ожидалось ok=false для пустого токена")
	}
}

func newTestGate(policy PolicyEngine, cfg GateConfig) *Gate {
	users := &mockUsers{digests: map[string]string{"admin": HashPassword("secret")}}
	return NewGate(users, policy, NewDecisionCache(100, time.Minute), cfg, testLogger())
}

// TestGate_Basic проверяет режим Basic-учётных данных.
func TestGate_Basic(t *testing.T) {
	policy := &mockPolicy{allowedFn: func(string, string, string) (bool, error) { return false, nil }}
	g := newTestGate(policy, GateConfig{Discoverable: true})

	ok := WithCredentials(context.Background(), ParseAuthorization(basicHeader("admin", "secret")))
	if err := g.Authorize(ok, "create", []string{"/a"}); err != nil {
		t.Errorf("Authorize с верным паролем: %v", err)
	}
	if err := g.Authorize(ok, "create", nil); err != nil {
		t.Errorf("Authorize без ресурсов с Basic: %v", err)
	}
	if err := g.RequireBasic(ok); err != nil {
		t.Errorf("RequireBasic: %v", err)
	}
	if policy.calls.Load() != 0 {
		t.Error("Basic-учётные данные не должны обращаться к policy engine")
	}

	bad := WithCredentials(context.Background(), ParseAuthorization(basicHeader("admin", "wrong")))
	if err := g.Authorize(bad, "create", []string{"/a"}); !errors.Is(err, ErrAuth) {
		t.Errorf("неверный пароль: %v, ожидался ErrAuth", err)
	}
	unknown := WithCredentials(context.Background(), ParseAuthorization(basicHeader("nobody", "secret")))
	if err := g.RequireBasic(unknown); !errors.Is(err, ErrAuth) {
		t.Errorf("неизвестный пользователь: %v, ожидался ErrAuth", err)
	}
	if err := g.RequireBasic(context.Background()); !errors.Is(err, ErrAuthz) {
		t.Errorf("без учётных данных: %v, ожидался ErrAuthz", err)
	}
}

// TestGate_Policy проверяет делегирование policy engine и кэш решений.
func TestGate_Policy(t *testing.T) {
	policy := &mockPolicy{allowedFn: func(_, _, resource string) (bool, error) {
		return resource != "/denied", nil
	}}
	g := newTestGate(policy, GateConfig{Discoverable: true})
	ctx := WithCredentials(context.Background(), ParseAuthorization("Bearer tok"))

	if err := g.Authorize(ctx, "update", []string{"/a", "/b"}); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if err := g.Authorize(ctx, "update", []string{"/a", "/b"}); err != nil {
		t.Fatalf("повторный Authorize: %v", err)
	}
	if n := policy.calls.Load(); n != 2 {
		t.Errorf("обращений к policy engine %d, ожидалось 2 (второй вызов из кэша)", n)
	}

	if err := g.Authorize(ctx, "update", []string{"/a", "/denied"}); !errors.Is(err, ErrAuthz) {
		t.Errorf("отказ по одному ресурсу: %v, ожидался ErrAuthz", err)
	}
	if err := g.Authorize(ctx, "update", nil); !errors.Is(err, ErrAuthz) {
		t.Errorf("пустой список ресурсов без Basic: %v, ожидался ErrAuthz", err)
	}
}

// TestGate_PolicyFailure проверяет, что сбой policy engine — отказ и не кэшируется.
func TestGate_PolicyFailure(t *testing.T) {
	fail := true
	policy := &mockPolicy{allowedFn: func(string, string, string) (bool, error) {
		if fail {
			return false, context.DeadlineExceeded
		}
		return true, nil
	}}
	g := newTestGate(policy, GateConfig{Discoverable: true})
	ctx := WithCredentials(context.Background(), ParseAuthorization("Bearer tok"))

	if err := g.Authorize(ctx, "create", []string{"/a"}); !errors.Is(err, ErrAuthz) {
		t.Fatalf("таймаут: %v, ожидался ErrAuthz", err)
	}
	fail = false
	if err := g.Authorize(ctx, "create", []string{"/a"}); err != nil {
		t.Errorf("после восстановления: %v", err)
	}
}

// TestGate_NoPolicy проверяет отказ без настроенного policy engine.
func TestGate_NoPolicy(t *testing.T) {
	g := NewGate(&mockUsers{}, nil, nil, GateConfig{Discoverable: true}, testLogger())
	if err := g.Authorize(context.Background(), "create", []string{"/a"}); !errors.Is(err, ErrAuthz) {
		t.Errorf("Authorize = %v, ожидался ErrAuthz", err)
	}
}

// TestGate_AuthorizeRead проверяет ограничение чтения.
func TestGate_AuthorizeRead(t *testing.T) {
	var gotMethod, gotResource string
	policy := &mockPolicy{allowedFn: func(_, method, resource string) (bool, error) {
		gotMethod, gotResource = method, resource
		return false, nil
	}}

	open := newTestGate(policy, GateConfig{Discoverable: true})
	if err := open.AuthorizeRead(context.Background()); err != nil {
		t.Errorf("discoverable: %v", err)
	}

	closed := newTestGate(policy, GateConfig{Discoverable: false, DiscoveryAuthz: []string{"/programs"}})
	ctx := WithCredentials(context.Background(), ParseAuthorization("Bearer tok"))
	if err := closed.AuthorizeRead(ctx); !errors.Is(err, ErrAuthz) {
		t.Errorf("AuthorizeRead = %v, ожидался ErrAuthz", err)
	}
	if gotMethod != "read" || gotResource != "/programs" {
		t.Errorf("запрос к policy engine: %s %s", gotMethod, gotResource)
	}
}

// TestPolicyClient_Allowed проверяет формат запроса и разбор ответа.
func TestPolicyClient_Allowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/request" {
			http.NotFound(w, r)
			return
		}
		var body policyBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		req := body.Requests[0]
		allowed := body.User.Token == "good" &&
			req.Action.Service == ServiceName &&
			req.Action.Method == "create" &&
			req.Resource == "/programs/a"
		_ = json.NewEncoder(w).Encode(policyResponse{Auth: allowed})
	}))
	defer srv.Close()

	c := NewPolicyClient(srv.URL+"/", time.Second, testLogger())

	ok, err := c.Allowed(context.Background(), "good", "create", "/programs/a")
	if err != nil || !ok {
		t.Errorf("Allowed = %v, %v; ожидалось true", ok, err)
	}
	ok, err = c.Allowed(context.Background(), "bad", "create", "/programs/a")
	if err != nil || ok {
		t.Errorf("Allowed(bad) = %v, %v; ожидалось false", ok, err)
	}
}

// TestPolicyClient_Errors проверяет ошибки транспорта и статуса.
func TestPolicyClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewPolicyClient(srv.URL, time.Second, testLogger())
	if _, err := c.Allowed(context.Background(), "", "read", "/a"); err == nil {
		t.Error("ожидалась ошибка при статусе 500")
	}

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(policyResponse{Auth: true})
	}))
	defer slow.Close()

	c = NewPolicyClient(slow.URL, 20*time.Millisecond, testLogger())
	if _, err := c.Allowed(context.Background(), "", "read", "/a"); err == nil {
		t.Error("ожидалась ошибка таймаута")
	}
}
