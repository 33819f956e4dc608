package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/sentinel-core/internal/accesslog"
	"github.com/nerrad567/sentinel-core/internal/auth"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/config"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/database"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/logging"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/metrics"
	"github.com/nerrad567/sentinel-core/internal/resource"
	_ "github.com/nerrad567/sentinel-core/migrations" // registers embedded migrations
)

const testPassword = "correct-horse-battery"

var testSecret = []byte("api-test-secret-at-least-32-characters")

var (
	hashOnce sync.Once
	hashed   string
	hashErr  error
)

// testPasswordHash hashes testPassword once per test binary.
func testPasswordHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() { hashed, hashErr = auth.HashPassword(testPassword) })
	if hashErr != nil {
		t.Fatalf("hashing password: %v", hashErr)
	}
	return hashed
}

// testEnv is a fully wired server backed by a temporary SQLite database.
type testEnv struct {
	srv     *Server
	handler http.Handler
	db      *database.DB
	issuer  *auth.Issuer
	users   map[auth.Role]*auth.User
}

type envOption func(*Deps)

func withRateLimit(perMinute, burst int) envOption {
	return func(d *Deps) {
		d.Security.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute, Burst: burst}
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver:      database.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "api-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	users := auth.NewUserRepository(db)
	issuer, err := auth.NewIssuer(testSecret, 15*time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	verifier, err := auth.NewVerifier(testSecret, users)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	authn, err := auth.NewAuthenticator(users, issuer)
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}

	deps := Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:        logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test"),
		DB:            db,
		Users:         users,
		Resources:     resource.NewRepository(db),
		AccessLogs:    accesslog.NewRepository(db),
		Authenticator: authn,
		Guard:         auth.NewGuard(verifier),
		Metrics:       metrics.New("test", "abc123"),
		Version:       "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv.startBackground(context.Background())
	t.Cleanup(func() { srv.Close() })

	env := &testEnv{
		srv:     srv,
		handler: srv.buildRouter(),
		db:      db,
		issuer:  issuer,
		users:   make(map[auth.Role]*auth.User),
	}
	for _, role := range auth.ValidRoles {
		env.users[role] = env.createUser(t, string(role)+"-user", role)
	}
	return env
}

// createUser inserts a user whose password is testPassword.
func (e *testEnv) createUser(t *testing.T, username string, role auth.Role) *auth.User {
	t.Helper()
	u := &auth.User{
		Username:     username,
		DisplayName:  "Test " + username,
		PasswordHash: testPasswordHash(t),
		Role:         role,
	}
	if err := e.srv.users.Create(context.Background(), u); err != nil {
		t.Fatalf("creating user %s: %v", username, err)
	}
	return u
}

// token issues a bearer token for the seeded user holding role.
func (e *testEnv) token(t *testing.T, role auth.Role) string {
	t.Helper()
	tok, _, err := e.issuer.Issue(e.users[role])
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	return tok
}

// do sends a request through the router. body may be nil, a string or any
// JSON-encodable value.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a response body into T.
func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

// expectStatus fails the test if the response code differs from want.
func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, want, rec.Body.String())
	}
}

// waitForAccessLogs polls until at least n entries match filter.
func (e *testEnv) waitForAccessLogs(t *testing.T, filter accesslog.Filter, n int) []accesslog.Entry {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		res, err := e.srv.accessLogs.List(context.Background(), filter)
		if err != nil {
			t.Fatalf("listing access logs: %v", err)
		}
		if len(res.Logs) >= n {
			return res.Logs
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d access log entries matching %+v, want %d", len(res.Logs), filter, n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// validRadio is a minimal valid create-resource body.
func validRadio(serial string) map[string]any {
	return map[string]any{
		"name":             "Handheld radio",
		"type":             "equipamento",
		"serial_number":    serial,
		"location":         "Gatehouse",
		"status":           "disponivel",
		"acquisition_date": "2025-03-14",
	}
}

func newRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

func serve(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	return serveHandler(e.handler, req)
}

func serveHandler(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
