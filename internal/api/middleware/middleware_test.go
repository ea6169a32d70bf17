package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/CaioWing/clientforge/internal/auth"
	"github.com/CaioWing/clientforge/internal/domain"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(Actor(r.Context())))
}

func TestBearerSecret(t *testing.T) {
	h := BearerSecret("cb-secret", "ci")(http.HandlerFunc(okHandler))

	tests := []struct {
		header string
		code   int
	}{
		{"Bearer cb-secret", http.StatusOK},
		{"Bearer wrong", http.StatusUnauthorized},
		{"cb-secret", http.StatusUnauthorized},
		{"", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/ci/callback", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.code {
			t.Fatalf("%q: expected %d, got %d", tt.header, tt.code, rec.Code)
		}
		if tt.code == http.StatusOK && rec.Body.String() != "ci" {
			t.Fatalf("expected actor ci, got %q", rec.Body.String())
		}
	}
}

func TestBearerSecret_EmptySecretRejectsAll(t *testing.T) {
	h := BearerSecret("", "ci")(http.HandlerFunc(okHandler))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestManagementAuth(t *testing.T) {
	mgr := auth.NewJWTManager("secret", time.Hour)
	token, _, _ := mgr.Generate("ops@example.com")
	h := ManagementAuth(mgr)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ops@example.com" {
		t.Fatalf("expected admitted admin, got %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := &RateLimiter{visitors: map[string]*visitor{}, rate: 1, burst: 2}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("expected burst of 2 to be allowed")
	}
	if rl.allow("a") {
		t.Fatal("expected third request to be limited")
	}
	if !rl.allow("b") {
		t.Fatal("expected other clients to be unaffected")
	}
	now = now.Add(time.Second)
	if !rl.allow("a") {
		t.Fatal("expected a token after one second")
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics(func(context.Context) (*domain.JobStats, error) {
		return &domain.JobStats{Total: 3, InProgress: 2, Success: 1}, nil
	})

	r := chi.NewRouter()
	r.Use(m.Middleware())
	r.Get("/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {})
	r.Get("/metrics", m.Handler())

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/jobs/"+id, nil))
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`clientforge_http_requests_total{method="GET",status="200"} 2`,
		`clientforge_http_request_duration_seconds_count{method="GET",route="/jobs/{id}"} 2`,
		`clientforge_build_jobs{status="InProgress"} 2`,
		`clientforge_build_jobs{status="Success"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
}

func TestLogger_RecordsStatus(t *testing.T) {
	var buf strings.Builder
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if !strings.Contains(buf.String(), `"status":418`) {
		t.Fatalf("expected status in log line, got %s", buf.String())
	}
}
