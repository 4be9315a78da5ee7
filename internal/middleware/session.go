package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/todoshare/server-go/internal/model"
	"github.com/todoshare/server-go/internal/service"
)

const SessionCookieName = "session"

type contextKey string

const sessionContextKey contextKey = "session"

// GetSession returns the session attached to the request, or nil.
func GetSession(ctx context.Context) *model.Session {
	if session, ok := ctx.Value(sessionContextKey).(*model.Session); ok {
		return session
	}
	return nil
}

// GetUser returns the logged-in user, or nil for anonymous requests and
// pending (pre-callback) sessions.
func GetUser(ctx context.Context) *model.User {
	if session := GetSession(ctx); session != nil {
		return session.User()
	}
	return nil
}

type SessionMiddleware struct {
	store *service.SessionStore
}

func NewSessionMiddleware(store *service.SessionStore) *SessionMiddleware {
	return &SessionMiddleware{store: store}
}

// Attach resolves the session cookie and puts the session in the request
// context. It never rejects: anonymous requests pass through with no
// session, and each handler decides what that means.
func (m *SessionMiddleware) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if session := m.store.Read(r.Context(), r); session != nil {
			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects requests without a logged-in user. Attach must run
// earlier in the chain.
func (m *SessionMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUser(r.Context()) == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"error":   "Authentication required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func SetSessionCookie(w http.ResponseWriter, value string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie. The attributes mirror
// SetSessionCookie so the clearing cookie replaces the one it targets.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
