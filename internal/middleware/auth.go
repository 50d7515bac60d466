package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"guruchat-backend/internal/cache"
	"guruchat-backend/internal/models"
)

type contextKey string

const SessionKey contextKey = "session"

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "jwt_token"

var (
	ErrMissingSession = errors.New("no session token")
	ErrInvalidSession = errors.New("invalid session token")
	ErrSessionExpired = errors.New("session token expired")
	ErrSessionRevoked = errors.New("session token revoked")
)

// Session is the verified content of a session token.
type Session struct {
	UserID    bson.ObjectID
	JTI       string
	ExpiresAt time.Time
}

type JWTAuth struct {
	Secret   []byte
	TTL      time.Duration
	Secure   bool
	denylist cache.SessionDenylist
	log      *zap.Logger
}

func NewJWTAuth(secret string, ttl time.Duration, secure bool, denylist cache.SessionDenylist, log *zap.Logger) *JWTAuth {
	return &JWTAuth{
		Secret:   []byte(secret),
		TTL:      ttl,
		Secure:   secure,
		denylist: denylist,
		log:      log,
	}
}

// GenerateSessionToken creates a JWT valid for the configured TTL.
func (j *JWTAuth) GenerateSessionToken(userID bson.ObjectID) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(j.TTL)
	claims := jwt.MapClaims{
		"userId": userID.Hex(),
		"jti":    uuid.NewString(),
		"iat":    now.Unix(),
		"exp":    expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify is the only place a session token is checked: signature, algorithm,
// expiry, user id format and the denylist.
func (j *JWTAuth) Verify(ctx context.Context, tokenStr string) (*Session, error) {
	if tokenStr == "" {
		return nil, ErrMissingSession
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.Secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSession
	}

	userIDStr, _ := claims["userId"].(string)
	userID, err := models.ParseID(userIDStr)
	if err != nil {
		return nil, ErrInvalidSession
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil, ErrInvalidSession
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidSession
	}

	if j.denylist != nil {
		revoked, err := j.denylist.IsRevoked(ctx, jti)
		if err != nil {
			j.log.Warn("session denylist lookup failed, accepting token", zap.Error(err))
		} else if revoked {
			return nil, ErrSessionRevoked
		}
	}

	return &Session{UserID: userID, JTI: jti, ExpiresAt: exp.Time}, nil
}

// Revoke denylists the session until its natural expiry.
func (j *JWTAuth) Revoke(ctx context.Context, s *Session) error {
	if j.denylist == nil || s == nil {
		return nil
	}
	return j.denylist.Revoke(ctx, s.JTI, s.ExpiresAt)
}

// TokenFromRequest reads the session cookie, falling back to a Bearer header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// SessionFromRequest returns a session already verified earlier in the chain,
// or verifies the request's token.
func (j *JWTAuth) SessionFromRequest(r *http.Request) (*Session, error) {
	if s := GetSession(r.Context()); s != nil {
		return s, nil
	}
	return j.Verify(r.Context(), TokenFromRequest(r))
}

func (j *JWTAuth) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(j.TTL.Seconds()),
		HttpOnly: true,
		Secure:   j.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (j *JWTAuth) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   j.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware requires a valid session and attaches it to the context.
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := j.SessionFromRequest(r)
		if err != nil {
			if errors.Is(err, ErrSessionExpired) {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Session has expired", r)
			} else {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", r)
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, SessionKey, s)
}

// GetSession extracts the verified session from request context
func GetSession(ctx context.Context) *Session {
	s, _ := ctx.Value(SessionKey).(*Session)
	return s
}

// GetUserID extracts the session's user id from request context
func GetUserID(ctx context.Context) bson.ObjectID {
	if s := GetSession(ctx); s != nil {
		return s.UserID
	}
	return bson.NilObjectID
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := chimw.GetReqID(r.Context())
	if requestID == "" {
		requestID = r.Header.Get("X-Request-ID")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Success: false,
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}
