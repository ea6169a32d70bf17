package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/CaioWing/clientforge/internal/domain"
)

// Metrics collects HTTP request metrics in a Prometheus-compatible format.
type Metrics struct {
	requestsTotal   sync.Map // key: "method:status" -> *int64
	requestDuration sync.Map // key: "method:route" -> *durationBuckets
	activeRequests  int64
	jobStats        func(context.Context) (*domain.JobStats, error)
}

type durationBuckets struct {
	mu    sync.Mutex
	sum   float64
	count int64
}

// NewMetrics creates a collector. jobStats, when non-nil, is sampled on
// each scrape to export job counts by status.
func NewMetrics(jobStats func(context.Context) (*domain.JobStats, error)) *Metrics {
	return &Metrics{jobStats: jobStats}
}

func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			atomic.AddInt64(&m.activeRequests, 1)

			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			atomic.AddInt64(&m.activeRequests, -1)
			duration := time.Since(start).Seconds()

			key := fmt.Sprintf("%s:%d", r.Method, rw.status)
			counter, _ := m.requestsTotal.LoadOrStore(key, new(int64))
			atomic.AddInt64(counter.(*int64), 1)

			routeKey := fmt.Sprintf("%s:%s", r.Method, routePattern(r))
			buckets, _ := m.requestDuration.LoadOrStore(routeKey, &durationBuckets{})
			db := buckets.(*durationBuckets)
			db.mu.Lock()
			db.sum += duration
			db.count++
			db.mu.Unlock()
		})
	}
}

// routePattern groups requests by their chi route so ids and query strings
// do not explode label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// Handler serves the /metrics endpoint in Prometheus text exposition format.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		fmt.Fprintf(w, "# HELP clientforge_http_active_requests Number of active HTTP requests.\n")
		fmt.Fprintf(w, "# TYPE clientforge_http_active_requests gauge\n")
		fmt.Fprintf(w, "clientforge_http_active_requests %d\n\n", atomic.LoadInt64(&m.activeRequests))

		fmt.Fprintf(w, "# HELP clientforge_http_requests_total Total number of HTTP requests.\n")
		fmt.Fprintf(w, "# TYPE clientforge_http_requests_total counter\n")
		for _, key := range sortedKeys(&m.requestsTotal) {
			val, _ := m.requestsTotal.Load(key)
			method, status := splitMetricsKey(key)
			fmt.Fprintf(w, "clientforge_http_requests_total{method=%q,status=%q} %d\n",
				method, status, atomic.LoadInt64(val.(*int64)))
		}

		fmt.Fprintf(w, "\n# HELP clientforge_http_request_duration_seconds HTTP request duration in seconds.\n")
		fmt.Fprintf(w, "# TYPE clientforge_http_request_duration_seconds summary\n")
		for _, key := range sortedKeys(&m.requestDuration) {
			val, _ := m.requestDuration.Load(key)
			db := val.(*durationBuckets)
			db.mu.Lock()
			sum := db.sum
			count := db.count
			db.mu.Unlock()
			method, route := splitMetricsKey(key)
			fmt.Fprintf(w, "clientforge_http_request_duration_seconds_sum{method=%q,route=%q} %.6f\n", method, route, sum)
			fmt.Fprintf(w, "clientforge_http_request_duration_seconds_count{method=%q,route=%q} %d\n", method, route, count)
		}

		if m.jobStats == nil {
			return
		}
		stats, err := m.jobStats(r.Context())
		if err != nil {
			return
		}
		fmt.Fprintf(w, "\n# HELP clientforge_build_jobs Build jobs by status.\n")
		fmt.Fprintf(w, "# TYPE clientforge_build_jobs gauge\n")
		for _, s := range []struct {
			status domain.JobStatus
			n      int
		}{
			{domain.JobStatusInProgress, stats.InProgress},
			{domain.JobStatusSuccess, stats.Success},
			{domain.JobStatusFailed, stats.Failed},
			{domain.JobStatusCancelled, stats.Cancelled},
		} {
			fmt.Fprintf(w, "clientforge_build_jobs{status=%q} %d\n", s.status, s.n)
		}
	}
}

func sortedKeys(m *sync.Map) []string {
	var keys []string
	m.Range(func(key, _ any) bool {
		keys = append(keys, key.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

func splitMetricsKey(key string) (string, string) {
	for i, c := range key {
		if c == ':' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
