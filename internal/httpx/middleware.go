package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-commerce.git/internal/auth"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxIsAdmin
)

// UserID returns the authenticated user's id, empty if the request was not
// authenticated.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(ctxUserID).(string)
	return id
}

func IsAdmin(ctx context.Context) bool {
	ok, _ := ctx.Value(ctxIsAdmin).(bool)
	return ok
}

type AuthMiddleware struct {
	Auth *auth.Service
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")
		if !strings.HasPrefix(raw, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		userID, isAdmin, err := m.Auth.ParseToken(strings.TrimPrefix(raw, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, userID)
		ctx = context.WithValue(ctx, ctxIsAdmin, isAdmin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "admin only")
			return
		}
		next.ServeHTTP(w, r)
	}))
}
