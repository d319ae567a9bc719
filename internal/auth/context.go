package auth

import (
	"context"

	"github.com/queueup/queueup/internal/model"
)

// ctxKey is unexported so no other package can collide with it.
type ctxKey struct{}

// ContextWithAuth returns a context carrying the auth context. The
// auth middleware attaches it after verifying the API key.
func ContextWithAuth(ctx context.Context, auth *model.AuthContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, auth)
}

// AuthFromContext retrieves the auth context, or nil when the request
// was not authenticated.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	auth, _ := ctx.Value(ctxKey{}).(*model.AuthContext)
	return auth
}

// MustAuthFromContext is AuthFromContext for paths that only run
// behind the auth middleware. Panics when the context is missing.
func MustAuthFromContext(ctx context.Context) *model.AuthContext {
	auth := AuthFromContext(ctx)
	if auth == nil {
		panic("auth context not found - ensure auth middleware is applied")
	}
	return auth
}

// UserIDFromContext returns the authenticated user's ID, or 0.
func UserIDFromContext(ctx context.Context) int64 {
	if auth := AuthFromContext(ctx); auth != nil {
		return auth.UserID
	}
	return 0
}

// KeyIDFromContext returns the authenticated key's ID, or "".
func KeyIDFromContext(ctx context.Context) string {
	if auth := AuthFromContext(ctx); auth != nil {
		return auth.KeyID
	}
	return ""
}
