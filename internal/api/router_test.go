package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/nerrad567/sentinel-core/internal/accesslog"
	"github.com/nerrad567/sentinel-core/internal/auth"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/database"
)

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	expectStatus(t, rec, http.StatusOK)
	got := decode[map[string]any](t, rec)
	if got["status"] != "ok" || got["version"] != "test" {
		t.Errorf("health = %v", got)
	}
}

func TestRoutes_RootAndVersionedAlias(t *testing.T) {
	env := newTestEnv(t)
	admin := env.users[auth.RoleSecurityAdmin]

	for _, prefix := range []string{"", APIPrefix} {
		t.Run("prefix="+prefix, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, prefix+"/auth/login", "", loginRequest{
				Username: admin.Username,
				Password: testPassword,
			})
			expectStatus(t, rec, http.StatusOK)
			tok := decode[loginResponse](t, rec).Token

			expectStatus(t, env.do(t, http.MethodGet, prefix+"/users", tok, nil), http.StatusOK)
			expectStatus(t, env.do(t, http.MethodGet, prefix+"/resources", tok, nil), http.StatusOK)
			expectStatus(t, env.do(t, http.MethodDelete, prefix+"/users/"+admin.ID, tok, nil), http.StatusForbidden)
		})
	}

	// /metrics at the root is the Prometheus exposition, not the JSON snapshot.
	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); strings.HasPrefix(ct, "application/json") {
		t.Errorf("root /metrics Content-Type = %q, want Prometheus text", ct)
	}
}

func TestRoleMatrix(t *testing.T) {
	env := newTestEnv(t)

	routes := []struct {
		method  string
		path    string
		allowed []auth.Role
	}{
		{http.MethodGet, "/users", []auth.Role{auth.RoleSecurityAdmin}},
		{http.MethodGet, "/resources", []auth.Role{auth.RoleStaff, auth.RoleManager, auth.RoleSecurityAdmin}},
		{http.MethodGet, "/access-logs", []auth.Role{auth.RoleSecurityAdmin}},
		{http.MethodGet, "/auth/me", []auth.Role{auth.RoleStaff, auth.RoleManager, auth.RoleSecurityAdmin}},
		{http.MethodPost, "/auth/ws-ticket", []auth.Role{auth.RoleSecurityAdmin}},
		{http.MethodDelete, "/resources/res-missing", []auth.Role{auth.RoleSecurityAdmin}},
		{http.MethodPut, "/resources/res-missing", []auth.Role{auth.RoleManager, auth.RoleSecurityAdmin}},
	}

	for _, rt := range routes {
		allowed := auth.NewRoleSet(rt.allowed...)
		for _, role := range auth.ValidRoles {
			t.Run(rt.method+" "+rt.path+" as "+string(role), func(t *testing.T) {
				var body any
				if rt.method == http.MethodPut {
					body = map[string]any{"location": "Depot"}
				}
				rec := env.do(t, rt.method, rt.path, env.token(t, role), body)
				_, ok := allowed[role]
				switch {
				case ok && (rec.Code == http.StatusUnauthorized || rec.Code == http.StatusForbidden):
					t.Errorf("%s got %d, want admitted", role, rec.Code)
				case !ok && rec.Code != http.StatusForbidden:
					t.Errorf("%s got %d, want 403", role, rec.Code)
				}
			})
		}
	}
}

func TestGuard_MissingTokenIs401(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/users", "/resources", "/access-logs"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		expectStatus(t, rec, http.StatusUnauthorized)
	}
}

func TestGuard_DenialIsLogged(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/users/usr-x", env.token(t, auth.RoleStaff), nil)
	expectStatus(t, rec, http.StatusForbidden)

	logs := env.waitForAccessLogs(t, accesslog.Filter{Area: "/users/{id}"}, 1)
	if logs[0].Status != accesslog.StatusFailure {
		t.Errorf("status = %q, want falha", logs[0].Status)
	}
	if !strings.Contains(logs[0].Detail, "forbidden") {
		t.Errorf("detail = %q, want reason", logs[0].Detail)
	}
}

func TestGuard_DeletedPrincipal(t *testing.T) {
	env := newTestEnv(t)
	staff := env.users[auth.RoleStaff]
	tok := env.token(t, auth.RoleStaff)

	if err := env.srv.users.Delete(context.Background(), staff.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/resources", tok, nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	if id := rec.Header().Get("X-Request-ID"); len(id) != requestIDBytes*2 {
		t.Errorf("generated X-Request-ID = %q", id)
	}

	req := newRequest(t, http.MethodGet, "/health")
	req.Header.Set("X-Request-ID", "client-supplied")
	rec = serve(env, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-supplied" {
		t.Errorf("X-Request-ID = %q, want client-supplied", got)
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)
	env.srv.cfg.CORS.AllowedOrigins = []string{"https://console.example"}

	req := newRequest(t, http.MethodOptions, "/resources")
	req.Header.Set("Origin", "https://console.example")
	rec := serve(env, req)
	expectStatus(t, rec, http.StatusNoContent)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://console.example" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = newRequest(t, http.MethodOptions, "/resources")
	req.Header.Set("Origin", "https://evil.example")
	rec = serve(env, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for unlisted origin = %q, want empty", got)
	}
}

func TestMetricsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/resources", "", nil)

	rec := env.do(t, http.MethodGet, APIPrefix+"/metrics", "", nil)
	expectStatus(t, rec, http.StatusOK)
	snap := decode[SystemMetrics](t, rec)
	if snap.Version != "test" || snap.Database.Driver != database.DriverSQLite {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.MQTT.Enabled || snap.InfluxDB.Enabled {
		t.Error("optional connections reported as enabled")
	}

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	expectStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	for _, want := range []string{
		`sentinel_access_denials_total{reason="missing_token"} 1`,
		`route="/resources/"`,
		`sentinel_build_info{commit="abc123",version="test"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %s", want)
		}
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	env := newTestEnv(t)
	h := env.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := serveHandler(h, newRequest(t, http.MethodGet, "/"))
	expectStatus(t, rec, http.StatusInternalServerError)
	if got := decode[Error](t, rec); got.Code != ErrCodeInternal {
		t.Errorf("code = %q", got.Code)
	}
}
