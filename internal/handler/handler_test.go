package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/consultease/adminguard/internal/config"
	"github.com/consultease/adminguard/internal/credential"
	"github.com/consultease/adminguard/internal/lockout"
	"github.com/consultease/adminguard/internal/model"
	"github.com/consultease/adminguard/internal/service"
)

const testPassword = "Corr3ct-Horse"

// fakeClock is a settable clock shared by the handlers under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store   *config.Store
	authSvc *service.AuthService
	clock   *fakeClock
	router  chi.Router
}

// newTestEnv creates a fresh test environment with an in-memory store and a
// Chi router with the admin routes mounted.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := config.NewStore("") // in-memory SQLite
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	validator := credential.NewValidator(credential.NewPolicy(credential.DefaultMinLength), credential.NewHasher(bcrypt.MinCost))
	authSvc := service.NewAuthService(store, validator, lockout.Policy{Threshold: 5, Duration: 900 * time.Second}, nil)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	adminHandler := NewAdminHandler(authSvc, clock.Now, nil)
	sysHandler := NewSystemHandler(validator)

	r := chi.NewRouter()
	r.Route("/api/v1/system", func(r chi.Router) {
		r.Post("/admin/session", adminHandler.Login)
		r.Put("/admin/password", adminHandler.ChangePassword)
		r.Get("/admin/{username}/lock", adminHandler.LockStatus)
		r.Post("/password/check", sysHandler.CheckPassword)
	})
	r.Get("/openapi.json", NewOpenAPIHandler("test").ServeSpec)

	return &testEnv{
		store:   store,
		authSvc: authSvc,
		clock:   clock,
		router:  r,
	}
}

// seedAdmin creates an active admin with testPassword.
func (e *testEnv) seedAdmin(t *testing.T, username string) *model.Admin {
	t.Helper()
	admin, err := e.authSvc.CreateAdmin(context.Background(), username, testPassword)
	if err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	return admin
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, "POST", "/api/v1/system/admin/session", toJSON(t, map[string]string{
		"username": username,
		"password": password,
	}))
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) model.ErrorDetail {
	t.Helper()
	var resp model.ErrorResponse
	decodeJSON(t, rr, &resp)
	return resp.Error
}
