package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kiosko-dev/backend-kiosko/internal/auth"
	"github.com/kiosko-dev/backend-kiosko/internal/common"
)

func newMiddleware(t *testing.T) (auth.Middleware, string, string) {
	t.Helper()
	svc := &auth.Service{Secret: []byte("test-secret"), TokenTTL: time.Minute}
	adminToken, err := svc.SignAccessToken("admin-1", "admin")
	require.NoError(t, err)
	customerToken, err := svc.SignAccessToken("customer-1", "customer")
	require.NoError(t, err)
	return auth.Middleware{Service: svc}, adminToken, customerToken
}

func TestRequireAuth(t *testing.T) {
	mw, _, customerToken := newMiddleware(t)
	var seenUser string
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser, _ = common.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+customerToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "customer-1", seenUser)
}

func TestRequireAuthRejectsGarbageToken(t *testing.T) {
	mw, _, _ := newMiddleware(t)
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	mw, adminToken, customerToken := newMiddleware(t)
	handler := mw.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin/promocodes", nil)
	req.Header.Set("Authorization", "Bearer "+customerToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/admin/promocodes", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCookieFallback(t *testing.T) {
	svc := &auth.Service{Secret: []byte("test-secret"), TokenTTL: time.Minute}
	token, err := svc.SignAccessToken("customer-1", "customer")
	require.NoError(t, err)

	mw := auth.Middleware{Service: svc, AccessCookie: "access_token"}
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
