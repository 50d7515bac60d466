package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"guruchat-backend/internal/cache"
	"guruchat-backend/internal/models"
)

const testSecret = "test-secret"

func newTestAuth(denylist cache.SessionDenylist) *JWTAuth {
	return NewJWTAuth(testSecret, time.Hour, false, denylist, zap.NewNop())
}

func signClaims(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestGenerateAndVerify(t *testing.T) {
	auth := newTestAuth(cache.NewMemoryDenylist())
	userID := bson.NewObjectID()

	token, expiresAt, err := auth.GenerateSessionToken(userID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	session, err := auth.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, userID, session.UserID)
	assert.NotEmpty(t, session.JTI)
	assert.Equal(t, expiresAt.Unix(), session.ExpiresAt.Unix())
}

func TestVerify_Rejects(t *testing.T) {
	auth := newTestAuth(nil)
	validUser := bson.NewObjectID().Hex()
	future := time.Now().Add(time.Hour).Unix()

	good, _, err := auth.GenerateSessionToken(bson.NewObjectID())
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingSession},
		{"garbage", "not-a-jwt", ErrInvalidSession},
		{"tampered", good[:len(good)-2] + "xx", ErrInvalidSession},
		{"wrong secret", signClaims(t, jwt.SigningMethodHS256, []byte("other"),
			jwt.MapClaims{"userId": validUser, "jti": "a", "exp": future}), ErrInvalidSession},
		{"alg none", signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType,
			jwt.MapClaims{"userId": validUser, "jti": "a", "exp": future}), ErrInvalidSession},
		{"expired", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret),
			jwt.MapClaims{"userId": validUser, "jti": "a", "exp": time.Now().Add(-time.Minute).Unix()}), ErrSessionExpired},
		{"no exp", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret),
			jwt.MapClaims{"userId": validUser, "jti": "a"}), ErrInvalidSession},
		{"bad user id", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret),
			jwt.MapClaims{"userId": "123", "jti": "a", "exp": future}), ErrInvalidSession},
		{"missing jti", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret),
			jwt.MapClaims{"userId": validUser, "exp": future}), ErrInvalidSession},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := auth.Verify(context.Background(), tc.token)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestVerify_RevokedSession(t *testing.T) {
	auth := newTestAuth(cache.NewMemoryDenylist())
	token, _, err := auth.GenerateSessionToken(bson.NewObjectID())
	require.NoError(t, err)

	session, err := auth.Verify(context.Background(), token)
	require.NoError(t, err)
	require.NoError(t, auth.Revoke(context.Background(), session))

	_, err = auth.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

type failingDenylist struct{}

func (failingDenylist) Revoke(context.Context, string, time.Time) error { return errors.New("down") }
func (failingDenylist) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("down")
}

func TestVerify_DenylistOutageAcceptsToken(t *testing.T) {
	auth := newTestAuth(failingDenylist{})
	token, _, err := auth.GenerateSessionToken(bson.NewObjectID())
	require.NoError(t, err)

	_, err = auth.Verify(context.Background(), token)
	assert.NoError(t, err)
}

func TestMiddleware(t *testing.T) {
	auth := newTestAuth(nil)
	userID := bson.NewObjectID()
	token, _, err := auth.GenerateSessionToken(userID)
	require.NoError(t, err)

	var seen bson.ObjectID
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/gurus", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, userID, seen)
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/gurus", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/gurus", nil)
		req.Header.Set("X-Request-ID", "req-1")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusUnauthorized, rr.Code)

		var body models.ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.False(t, body.Success)
		assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
		assert.Equal(t, "req-1", body.Error.RequestID)
	})
}

func TestSessionCookies(t *testing.T) {
	auth := NewJWTAuth(testSecret, 24*time.Hour, true, nil, zap.NewNop())

	rr := httptest.NewRecorder()
	auth.SetSessionCookie(rr, "tok")
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, SessionCookieName, c.Name)
	assert.Equal(t, "tok", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 86400, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	rr = httptest.NewRecorder()
	auth.ClearSessionCookie(rr)
	cookies = rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
