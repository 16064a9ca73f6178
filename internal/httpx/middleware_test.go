package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-commerce.git/internal/auth"
)

func signToken(t *testing.T, secret []byte, userID string, admin bool) string {
	t.Helper()
	claims := auth.Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return tok
}

func TestRequireAuth(t *testing.T) {
	secret := []byte("test-secret")
	mw := &AuthMiddleware{Auth: &auth.Service{Secret: secret}}

	var gotUser string
	h := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	// no header
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// garbage token
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer nope")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// valid token
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "user-1", false))
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-1", gotUser)
}

func TestRequireAdmin(t *testing.T) {
	secret := []byte("test-secret")
	mw := &AuthMiddleware{Auth: &auth.Service{Secret: secret}}

	h := mw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	// regular user
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/orders/stats", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "user-1", false))
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// admin
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/orders/stats", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "admin-1", true))
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
