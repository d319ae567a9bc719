package middleware

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/queueup/queueup/internal/auth"
	"github.com/queueup/queueup/internal/model"
)

// RequireScope returns middleware that enforces scope requirements.
// Must be applied after Auth middleware. Holding ANY of the listed
// scopes is sufficient, and admin passes everything.
func RequireScope(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				writeScopeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			if !hasAnyScope(authCtx.Scopes, required) {
				writeScopeError(w, http.StatusForbidden, "FORBIDDEN",
					fmt.Sprintf("Insufficient permissions. Required scope: %s", required[0]))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasAnyScope(held, required []string) bool {
	if slices.Contains(held, model.ScopeAdmin) {
		return true
	}
	for _, req := range required {
		if slices.Contains(held, req) {
			return true
		}
	}
	return false
}

// RequireRead is a convenience middleware for read scope.
func RequireRead() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeRead)
}

// RequireWrite is a convenience middleware for write scope.
func RequireWrite() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeWrite)
}

// RequireAdmin is a convenience middleware for admin scope.
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeAdmin)
}

// writeScopeError writes an error in the flat API envelope.
func writeScopeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(fmt.Sprintf(`{"error":%q,"code":%q}`, message, code)))
}
