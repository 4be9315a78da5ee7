package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoshare/server-go/internal/config"
	"github.com/todoshare/server-go/internal/metrics"
	"github.com/todoshare/server-go/internal/middleware"
	"github.com/todoshare/server-go/internal/model"
	"github.com/todoshare/server-go/internal/service"
)

type authTestEnv struct {
	router chi.Router
	store  *service.SessionStore
	github *httptest.Server
}

// githubStub serves the two endpoints the OAuth exchange touches.
func githubStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gho_testtoken","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":583231,"login":"octocat","name":"The Octocat"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newAuthTestEnv(t *testing.T) *authTestEnv {
	t.Helper()

	github := githubStub(t)
	store := service.NewSessionStore(newMemSessionKV(), "auth-test-secret")
	oauth := service.NewOAuthService(store, service.GitHubConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/github/callback",
		AuthURL:      github.URL + "/login/oauth/authorize",
		TokenURL:     github.URL + "/login/oauth/access_token",
		UserAPIURL:   github.URL + "/user",
	}, github.Client(), 10*time.Minute, time.Hour)

	cfg := &config.Config{PostLoginRedirect: "/todos", SessionTTLSeconds: 3600, PendingTTLSeconds: 600}
	h := NewAuthHandler(oauth, cfg, metrics.NewCollector(prometheus.NewRegistry()), false)
	sessionMw := middleware.NewSessionMiddleware(store)

	r := chi.NewRouter()
	r.Use(sessionMw.Attach)
	r.Mount("/auth", h.Routes())
	r.Get("/api/me", h.Me)

	return &authTestEnv{router: r, store: store, github: github}
}

func TestAuthLoginRedirectsToProvider(t *testing.T) {
	env := newAuthTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.Contains(t, location, "/login/oauth/authorize?")
	assert.Contains(t, location, "client_id=client-id")
	assert.Contains(t, location, "state=")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookieName, cookies[0].Name)
	assert.Equal(t, 600, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
}

func TestAuthFullCallbackFlow(t *testing.T) {
	env := newAuthTestEnv(t)

	// Begin the handshake to obtain the pending cookie and the state
	// parameter the provider would echo back.
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	authURL, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)
	pending := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet,
		"/auth/github/callback?code=authcode&state="+url.QueryEscape(state), nil)
	req.AddCookie(pending)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/todos", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	// The upgraded cookie now authenticates /api/me.
	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		User       *model.User `json:"user"`
		LoggedInAt int64       `json:"loggedInAt"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.User)
	assert.Equal(t, "octocat", body.User.Login)
	assert.Positive(t, body.LoggedInAt)
}

func TestAuthCallbackMissingParams(t *testing.T) {
	env := newAuthTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/github/callback", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestAuthCallbackProviderError(t *testing.T) {
	env := newAuthTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/auth/github/callback?error=access_denied", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_denied")
}

func TestAuthCallbackStateMismatch(t *testing.T) {
	env := newAuthTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	pending := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet,
		"/auth/github/callback?code=authcode&state=forged", nil)
	req.AddCookie(pending)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthLogoutClearsSession(t *testing.T) {
	env := newAuthTestEnv(t)

	_, signed, err := env.store.Create(context.Background(), &model.SessionData{
		User: &model.User{ID: 583231, Login: "octocat"},
	}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: signed})
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/todos", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)

	// The old cookie no longer resolves.
	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: signed})
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMeUnauthenticated(t *testing.T) {
	env := newAuthTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "Not authenticated"))
}
