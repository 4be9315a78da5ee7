package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/todoshare/server-go/internal/audit"
	"github.com/todoshare/server-go/internal/config"
	apperrors "github.com/todoshare/server-go/internal/errors"
	"github.com/todoshare/server-go/internal/metrics"
	"github.com/todoshare/server-go/internal/middleware"
	"github.com/todoshare/server-go/internal/service"
)

type AuthHandler struct {
	oauth         *service.OAuthService
	cfg           *config.Config
	collector     *metrics.Collector
	secureCookies bool
}

func NewAuthHandler(oauth *service.OAuthService, cfg *config.Config, collector *metrics.Collector, secureCookies bool) *AuthHandler {
	return &AuthHandler{oauth: oauth, cfg: cfg, collector: collector, secureCookies: secureCookies}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/login", h.Login)
	r.Get("/github/callback", h.Callback)
	r.Get("/logout", h.Logout)

	return r
}

// GET /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	authURL, cookieValue, err := h.oauth.BeginLogin(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to begin login")
		writeError(w, err)
		return
	}

	middleware.SetSessionCookie(w, cookieValue, h.cfg.PendingTTL(), h.secureCookies)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// GET /auth/github/callback
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if provErr := query.Get("error"); provErr != "" {
		h.collector.RecordLoginFailure()
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventLoginFailure,
			Details: map[string]interface{}{"reason": "provider_error", "error": provErr},
		})
		writeError(w, apperrors.Provider("OAuth error: "+provErr))
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		h.collector.RecordLoginFailure()
		writeError(w, apperrors.MissingRequired("code or state"))
		return
	}

	sess := middleware.GetSession(r.Context())
	user, cookieValue, err := h.oauth.CompleteLogin(r.Context(), sess, state, code)
	if err != nil {
		h.collector.RecordLoginFailure()
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventLoginFailure,
			Details: map[string]interface{}{"reason": string(apperrors.GetCode(err))},
		})
		writeError(w, err)
		return
	}

	middleware.SetSessionCookie(w, cookieValue, h.cfg.SessionTTL(), h.secureCookies)
	h.collector.RecordLoginSuccess()
	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventLoginSuccess,
		UserLogin: user.Login,
	})

	http.Redirect(w, r, h.cfg.PostLoginRedirect, http.StatusFound)
}

// GET /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if err := h.oauth.Logout(r.Context(), sess); err != nil {
		log.Warn().Err(err).Msg("failed to destroy session on logout")
	}

	if user := middleware.GetUser(r.Context()); user != nil {
		audit.LogFromRequest(r, audit.Event{
			Type:      audit.EventLogout,
			UserLogin: user.Login,
		})
	}

	middleware.ClearSessionCookie(w, h.secureCookies)
	http.Redirect(w, r, h.cfg.PostLoginRedirect, http.StatusFound)
}

// GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess == nil || sess.User() == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Not authenticated"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":       sess.User(),
		"loggedInAt": sess.Data.LoggedInAt,
	})
}
