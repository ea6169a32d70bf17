package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/CaioWing/clientforge/internal/api/response"
	"github.com/CaioWing/clientforge/internal/auth"
)

type contextKey string

const (
	AdminEmailKey contextKey = "admin_email"
	ActorKey      contextKey = "actor"
)

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func ManagementAuth(jwtMgr *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				response.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			token, ok := BearerToken(r)
			if !ok {
				response.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			claims, err := jwtMgr.Validate(token)
			if err != nil {
				response.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), AdminEmailKey, claims.Email)
			ctx = context.WithValue(ctx, ActorKey, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerSecret admits requests whose bearer token equals secret. actor
// names the caller in audit entries.
func BearerSecret(secret, actor string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, _ := BearerToken(r)
			if !auth.SecretEqual(token, secret) {
				response.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			ctx := context.WithValue(r.Context(), ActorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Actor returns who the auth middleware admitted, or "anonymous".
func Actor(ctx context.Context) string {
	if a, ok := ctx.Value(ActorKey).(string); ok && a != "" {
		return a
	}
	return "anonymous"
}
