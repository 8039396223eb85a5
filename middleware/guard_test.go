package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/authmint/authmint"
)

type stubProvider struct {
	mu      sync.Mutex
	byID    map[string]authmint.AccountRecord
	byEmail map[string]string
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		byID:    make(map[string]authmint.AccountRecord),
		byEmail: make(map[string]string),
	}
}

func (p *stubProvider) GetAccountByEmail(_ context.Context, email string) (authmint.AccountRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byEmail[email]
	if !ok {
		return authmint.AccountRecord{}, authmint.ErrAccountNotFound
	}
	return p.byID[id], nil
}

func (p *stubProvider) GetAccountByID(_ context.Context, accountID string) (authmint.AccountRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	account, ok := p.byID[accountID]
	if !ok {
		return authmint.AccountRecord{}, authmint.ErrAccountNotFound
	}
	return account, nil
}

func (p *stubProvider) CreateAccount(_ context.Context, input authmint.CreateAccountInput) (authmint.AccountRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byEmail[input.Email]; ok {
		return authmint.AccountRecord{}, authmint.ErrAccountExists
	}
	account := authmint.AccountRecord{
		ID:           "acct-1",
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Active:       input.Active,
	}
	p.byID[account.ID] = account
	p.byEmail[account.Email] = account.ID
	return account, nil
}

func (p *stubProvider) UpdatePasswordHash(_ context.Context, accountID, newHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	account, ok := p.byID[accountID]
	if !ok {
		return authmint.ErrAccountNotFound
	}
	account.PasswordHash = newHash
	p.byID[accountID] = account
	return nil
}

func (p *stubProvider) SetActive(_ context.Context, accountID string, active bool) (authmint.AccountRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	account, ok := p.byID[accountID]
	if !ok {
		return authmint.AccountRecord{}, authmint.ErrAccountNotFound
	}
	account.Active = active
	p.byID[accountID] = account
	return account, nil
}

func newTestEngine(t *testing.T) *authmint.Engine {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := authmint.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := authmint.New().
		WithConfig(cfg).
		WithRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()})).
		WithAccountProvider(newStubProvider()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine
}

func loginPair(t *testing.T, engine *authmint.Engine) *authmint.TokenPair {
	t.Helper()

	ctx := context.Background()
	if _, err := engine.Register(ctx, authmint.RegisterRequest{
		Email:    "alice@example.com",
		Password: "correct-horse-battery",
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	pair, err := engine.Login(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return pair
}

func TestGuardPassesValidToken(t *testing.T) {
	engine := newTestEngine(t)
	pair := loginPair(t, engine)

	var seen *authmint.AuthResult
	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := AuthResultFromContext(r.Context())
		if !ok {
			t.Fatal("auth result missing from context")
		}
		seen = res
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if seen == nil || seen.AccountID == "" {
		t.Fatalf("auth result not populated: %+v", seen)
	}
}

func TestGuardRejects(t *testing.T) {
	engine := newTestEngine(t)

	handler := Guard(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run on rejected request")
	}))

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", tc.name, rec.Code)
		}
	}
}

func TestGuardNilEngine(t *testing.T) {
	handler := Guard(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without an engine")
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
