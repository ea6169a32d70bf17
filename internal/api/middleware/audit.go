package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/CaioWing/clientforge/internal/domain"
	"github.com/CaioWing/clientforge/internal/service"
)

// AuditLog returns a middleware that records successful mutating requests
// made by actorType callers.
func AuditLog(auditSvc *service.AuditService, actorType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				return
			}
			if rw.status >= 400 {
				return
			}

			action, resource := classifyRequest(r.Method, r.URL.Path)
			if action == "" {
				return
			}

			auditSvc.Log(r.Context(), &domain.AuditEntry{
				Actor:      Actor(r.Context()),
				ActorType:  actorType,
				Action:     action,
				Resource:   resource,
				ResourceID: chi.URLParam(r, "id"),
				IPAddress:  r.RemoteAddr,
				Details:    map[string]any{"method": r.Method, "path": r.URL.Path, "status": rw.status},
			})
		})
	}
}

func classifyRequest(method, path string) (action, resource string) {
	p := strings.TrimPrefix(path, "/api/v1/")

	switch {
	case strings.HasPrefix(p, "management/jobs/") && strings.HasSuffix(p, "/status") && method == http.MethodPut:
		return service.ActionJobOverride, "job"
	case p == "management/auth/refresh":
		return "auth.refresh", "auth"
	case (p == "builds" || p == "builds/") && method == http.MethodPost:
		return service.ActionBuildSubmitted, "build"
	case p == "ci/trigger" && method == http.MethodPost:
		return service.ActionExternalTrigger, "build"
	default:
		return "", ""
	}
}
