package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snippet-runner/internal/apperror"
)

// CookieName is the cookie a session token may be carried in.
const CookieName = "session_token"

type contextKey string

const sessionIDKey contextKey = "sessionID"

// RequireSession protects routes under /sessions/{param}. The caller must
// present a token whose subject equals the session ID in the URL, either as a
// Bearer token or in the session cookie. A nil TokenService leaves the routes
// open.
func RequireSession(tokens *TokenService, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil {
				next.ServeHTTP(w, r)
				return
			}

			raw := tokenFromRequest(r)
			if raw == "" {
				writeAuthError(w, http.StatusUnauthorized, apperror.Unauthorized("session token required"))
				return
			}
			sessionID, err := tokens.Validate(raw)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, apperror.Unauthorized("valid session token required"))
				return
			}
			if want := chi.URLParam(r, param); want != "" && want != sessionID {
				writeAuthError(w, http.StatusForbidden, apperror.Forbidden("token does not belong to this session"))
				return
			}

			ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionIDFromContext returns the session ID a validated token carried.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}

// tokenFromRequest prefers the Authorization header over the cookie. Browsers
// cannot set headers on websocket upgrades, so a token query parameter is
// accepted as a last resort.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

func writeAuthError(w http.ResponseWriter, status int, err *apperror.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   apperror.Code(err),
		"message": err.Message,
	})
}
