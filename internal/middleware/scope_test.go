package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/queueup/queueup/internal/auth"
	"github.com/queueup/queueup/internal/model"
)

// serveWithScopes runs a request with the given held scopes through
// the scope middleware and returns the status code. A nil scopes slice
// means no auth context at all.
func serveWithScopes(t *testing.T, mw func(http.Handler) http.Handler, scopes []string) int {
	t.Helper()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recruitments", nil)
	if scopes != nil {
		authCtx := &model.AuthContext{
			KeyID:     "01J0000000000000000000TEST",
			KeyPrefix: "qk_test_a1b2c3",
			UserID:    42,
			Scopes:    scopes,
		}
		req = req.WithContext(auth.ContextWithAuth(req.Context(), authCtx))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireScope(t *testing.T) {
	testCases := []struct {
		name          string
		scopes        []string
		requiredScope string
		wantStatus    int
	}{
		{
			name:          "read scope allows read",
			scopes:        []string{model.ScopeRead},
			requiredScope: model.ScopeRead,
			wantStatus:    http.StatusOK,
		},
		{
			name:          "write scope allows write",
			scopes:        []string{model.ScopeWrite},
			requiredScope: model.ScopeWrite,
			wantStatus:    http.StatusOK,
		},
		{
			name:          "admin allows read",
			scopes:        []string{model.ScopeAdmin},
			requiredScope: model.ScopeRead,
			wantStatus:    http.StatusOK,
		},
		{
			name:          "admin allows write",
			scopes:        []string{model.ScopeAdmin},
			requiredScope: model.ScopeWrite,
			wantStatus:    http.StatusOK,
		},
		{
			name:          "multiple scopes work",
			scopes:        []string{model.ScopeRead, model.ScopeWrite},
			requiredScope: model.ScopeWrite,
			wantStatus:    http.StatusOK,
		},
		{
			name:          "read cannot access write",
			scopes:        []string{model.ScopeRead},
			requiredScope: model.ScopeWrite,
			wantStatus:    http.StatusForbidden,
		},
		{
			name:          "write cannot access admin",
			scopes:        []string{model.ScopeWrite},
			requiredScope: model.ScopeAdmin,
			wantStatus:    http.StatusForbidden,
		},
		{
			name:          "unknown scope grants nothing",
			scopes:        []string{"participation"},
			requiredScope: model.ScopeWrite,
			wantStatus:    http.StatusForbidden,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := serveWithScopes(t, RequireScope(tc.requiredScope), tc.scopes)
			if got != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, got)
			}
		})
	}
}

func TestRequireScope_NoAuthContext(t *testing.T) {
	got := serveWithScopes(t, RequireScope(model.ScopeRead), nil)
	if got != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, got)
	}
}

func TestConvenienceMiddleware(t *testing.T) {
	testCases := []struct {
		name       string
		middleware func() func(http.Handler) http.Handler
	}{
		{"RequireRead", RequireRead},
		{"RequireWrite", RequireWrite},
		{"RequireAdmin", RequireAdmin},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Admin passes all three
			got := serveWithScopes(t, tc.middleware(), []string{model.ScopeAdmin})
			if got != http.StatusOK {
				t.Errorf("expected status %d, got %d", http.StatusOK, got)
			}
		})
	}
}
