package middleware

import (
	"net/http"
	"strings"
)

// Decision is what the gatekeeper does with a request.
type Decision int

const (
	Allow Decision = iota
	RedirectHome
	RedirectLogin
	RejectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectHome:
		return "redirect_home"
	case RedirectLogin:
		return "redirect_login"
	case RejectUnauthorized:
		return "reject"
	default:
		return "unknown"
	}
}

var staticPrefixes = []string{"/static/", "/images/"}

var alwaysOpen = map[string]bool{
	"/favicon.ico": true,
	"/health":      true,
	"/metrics":     true,
}

var authPages = map[string]bool{
	"/login":    true,
	"/register": true,
}

var publicAPI = map[string]bool{
	"/api/auth/login":    true,
	"/api/auth/register": true,
}

// isPublicAsset reports paths served to everyone regardless of session.
func isPublicAsset(path string) bool {
	if alwaysOpen[path] {
		return true
	}
	for _, prefix := range staticPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Classify decides a request's fate from its path and session state alone.
func Classify(path string, authenticated bool) Decision {
	if isPublicAsset(path) {
		return Allow
	}

	if authenticated {
		if authPages[path] {
			return RedirectHome
		}
		return Allow
	}

	if authPages[path] || publicAPI[path] {
		return Allow
	}
	if path == "/api" || strings.HasPrefix(path, "/api/") {
		return RejectUnauthorized
	}
	return RedirectLogin
}

// Gatekeeper applies Classify to every request. A verified session is put on
// the context so downstream handlers do not verify the token twice. Public
// assets skip verification entirely.
func (j *JWTAuth) Gatekeeper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicAsset(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		session, err := j.Verify(r.Context(), TokenFromRequest(r))
		authenticated := err == nil

		switch Classify(r.URL.Path, authenticated) {
		case RedirectHome:
			http.Redirect(w, r, "/", http.StatusSeeOther)
		case RedirectLogin:
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		case RejectUnauthorized:
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", r)
		default:
			if authenticated {
				r = r.WithContext(WithSession(r.Context(), session))
			}
			next.ServeHTTP(w, r)
		}
	})
}
