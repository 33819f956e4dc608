package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// scrape returns the exposition text served by m.
func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(body)
}

func TestNew_IndependentRegistries(t *testing.T) {
	a := New("1.0.0", "abc")
	b := New("1.0.0", "abc")

	a.LoginAttempt(OutcomeSuccess)

	if !strings.Contains(scrape(t, a), `sentinel_login_attempts_total{outcome="success"} 1`) {
		t.Error("a should report one successful login")
	}
	if strings.Contains(scrape(t, b), "sentinel_login_attempts_total{") {
		t.Error("b should report no login attempts")
	}
}

func TestObserveRequest(t *testing.T) {
	m := New("dev", "none")

	m.RequestStarted()
	if !strings.Contains(scrape(t, m), "http_in_flight_requests 1") {
		t.Error("in-flight gauge should be 1")
	}

	m.ObserveRequest(http.MethodGet, "/api/v1/resources", http.StatusOK, 15*time.Millisecond)
	out := scrape(t, m)
	if !strings.Contains(out, "http_in_flight_requests 0") {
		t.Error("in-flight gauge should be 0")
	}
	if !strings.Contains(out, `http_requests_total{method="GET",route="/api/v1/resources",status="200"} 1`) {
		t.Error("requests_total should count the request")
	}
	if !strings.Contains(out, `http_request_duration_seconds_count{method="GET",route="/api/v1/resources",status="200"} 1`) {
		t.Error("request duration should be observed")
	}
}

func TestAccessDenied(t *testing.T) {
	m := New("dev", "none")
	m.AccessDenied("forbidden")
	m.AccessDenied("forbidden")
	m.AccessDenied("token_expired")

	out := scrape(t, m)
	if !strings.Contains(out, `sentinel_access_denials_total{reason="forbidden"} 2`) {
		t.Error("forbidden denials should be 2")
	}
	if !strings.Contains(out, `sentinel_access_denials_total{reason="token_expired"} 1`) {
		t.Error("token_expired denials should be 1")
	}
}

func TestHandler_Exposition(t *testing.T) {
	m := New("1.2.3", "deadbeef")

	out := scrape(t, m)
	for _, want := range []string{
		`sentinel_build_info{commit="deadbeef",version="1.2.3"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
