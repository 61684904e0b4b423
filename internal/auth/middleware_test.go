package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pricing-api/internal/common"
)

const testSecret = "test-secret-which-is-long-enough"

func newTestService(t *testing.T, now time.Time) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Secret:    testSecret,
		Issuer:    "pricing-api",
		Audience:  "storefront",
		ClockSkew: time.Minute,
	})
	require.NoError(t, err)
	svc.WithNow(func() time.Time { return now })
	return svc
}

func signToken(t *testing.T, now time.Time, ttl time.Duration) string {
	t.Helper()
	tok, err := jwt.NewBuilder().
		Subject("user-1").
		Issuer("pricing-api").
		Audience([]string{"storefront"}).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim("app_metadata", map[string]any{
			"subscriptions": map[string]any{"members": "supporter"},
		}).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(testSecret)))
	require.NoError(t, err)
	return string(signed)
}

func claimsProbe(got *map[string]any, user *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = common.Claims(r.Context())
		if id, ok := common.UserID(r.Context()); ok {
			*user = id
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateAttachesClaims(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m := Middleware{Service: newTestService(t, now)}

	var claimSet map[string]any
	var user string
	handler := m.Authenticate(claimsProbe(&claimSet, &user))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, now, time.Hour))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-1", user)
	require.Equal(t, "user-1", claimSet["sub"])
	meta, ok := claimSet["app_metadata"].(map[string]any)
	require.True(t, ok)
	subs, ok := meta["subscriptions"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "supporter", subs["members"])
}

func TestAuthenticateAnonymousWithoutToken(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m := Middleware{Service: newTestService(t, now)}

	var claimSet map[string]any
	var user string
	handler := m.Authenticate(claimsProbe(&claimSet, &user))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, claimSet)
	require.Empty(t, user)
}

func TestAuthenticateIgnoresInvalidToken(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m := Middleware{Service: newTestService(t, now)}

	var claimSet map[string]any
	var user string
	handler := m.Authenticate(claimsProbe(&claimSet, &user))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, claimSet)
}

func TestRequireAuth(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m := Middleware{Service: newTestService(t, now)}

	var claimSet map[string]any
	var user string
	handler := m.RequireAuth(claimsProbe(&claimSet, &user))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, now, time.Hour))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-1", user)
}

func TestRequireAuthRejectsExpiredToken(t *testing.T) {
	issued := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// Validate two hours later, well past the one-hour expiry plus skew.
	m := Middleware{Service: newTestService(t, issued.Add(2*time.Hour))}

	handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, issued, time.Hour))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
