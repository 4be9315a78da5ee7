package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/todoshare/server-go/internal/errors"
	"github.com/todoshare/server-go/internal/model"
)

// fakeGitHub stands in for both the token and user endpoints.
func fakeGitHub(t *testing.T, tokenStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if tokenStatus != http.StatusOK {
			http.Error(w, `{"error":"bad_verification_code"}`, tokenStatus)
			return
		}
		assert.Equal(t, "good-code", r.FormValue("code"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gho_testtoken","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gho_testtoken", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":583231,"login":"octocat","name":"The Octocat","email":"octo@example.com","avatar_url":"https://avatars.example.com/u/583231"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestOAuth(t *testing.T, srv *httptest.Server, kv *fakeSessionKV) (*OAuthService, *SessionStore) {
	t.Helper()
	store := NewSessionStore(kv, "test-secret")
	svc := NewOAuthService(store, GitHubConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
		AuthURL:      srv.URL + "/login/oauth/authorize",
		TokenURL:     srv.URL + "/login/oauth/access_token",
		UserAPIURL:   srv.URL + "/user",
	}, srv.Client(), 10*time.Minute, 24*time.Hour)
	return svc, store
}

func TestOAuthBeginLogin(t *testing.T) {
	kv := newFakeSessionKV()
	svc, store := newTestOAuth(t, fakeGitHub(t, http.StatusOK), kv)

	authURL, cookieValue, err := svc.BeginLogin(context.Background())
	require.NoError(t, err)
	assert.Contains(t, authURL, "client_id=client-id")
	assert.Contains(t, authURL, "state=")

	sess := store.Read(context.Background(), requestWithCookie(cookieValue))
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.Data.State)
	assert.Nil(t, sess.Data.User)
	assert.Contains(t, authURL, "state="+sess.Data.State)
}

func TestOAuthCompleteLogin(t *testing.T) {
	kv := newFakeSessionKV()
	svc, store := newTestOAuth(t, fakeGitHub(t, http.StatusOK), kv)

	_, cookieValue, err := svc.BeginLogin(context.Background())
	require.NoError(t, err)
	sess := store.Read(context.Background(), requestWithCookie(cookieValue))
	require.NotNil(t, sess)

	user, newCookie, err := svc.CompleteLogin(context.Background(), sess, sess.Data.State, "good-code")
	require.NoError(t, err)
	assert.Equal(t, int64(583231), user.ID)
	assert.Equal(t, "octocat", user.Login)

	logged := store.Read(context.Background(), requestWithCookie(newCookie))
	require.NotNil(t, logged)
	assert.Equal(t, sess.ID, logged.ID, "session id survives the upgrade")
	require.NotNil(t, logged.Data.User)
	assert.Equal(t, "octocat", logged.Data.User.Login)
	assert.Equal(t, "gho_testtoken", logged.Data.AccessToken)
	assert.Empty(t, logged.Data.State, "state is cleared once logged in")
	assert.Greater(t, logged.Data.LoggedInAt, int64(0))
}

func TestOAuthCompleteLoginStateMismatch(t *testing.T) {
	kv := newFakeSessionKV()
	svc, store := newTestOAuth(t, fakeGitHub(t, http.StatusOK), kv)

	_, cookieValue, err := svc.BeginLogin(context.Background())
	require.NoError(t, err)
	sess := store.Read(context.Background(), requestWithCookie(cookieValue))
	require.NotNil(t, sess)

	_, _, err = svc.CompleteLogin(context.Background(), sess, "forged-state", "good-code")
	assert.Equal(t, apperrors.ErrCodeStateMismatch, apperrors.GetCode(err))
}

func TestOAuthCompleteLoginNoPendingState(t *testing.T) {
	svc, _ := newTestOAuth(t, fakeGitHub(t, http.StatusOK), newFakeSessionKV())

	// A session that already completed login carries no state nonce and
	// must not be usable for a second callback.
	sess := &model.Session{ID: "upgraded", Data: model.SessionData{
		User: &model.User{ID: 1, Login: "octocat"},
	}}
	_, _, err := svc.CompleteLogin(context.Background(), sess, "any-state", "good-code")
	assert.Equal(t, apperrors.ErrCodeStateMismatch, apperrors.GetCode(err))
}

func TestOAuthCompleteLoginNoSession(t *testing.T) {
	svc, _ := newTestOAuth(t, fakeGitHub(t, http.StatusOK), newFakeSessionKV())

	_, _, err := svc.CompleteLogin(context.Background(), nil, "whatever", "good-code")
	assert.Equal(t, apperrors.ErrCodeStateMismatch, apperrors.GetCode(err))
}

func TestOAuthCompleteLoginExchangeFailure(t *testing.T) {
	kv := newFakeSessionKV()
	svc, store := newTestOAuth(t, fakeGitHub(t, http.StatusBadRequest), kv)

	_, cookieValue, err := svc.BeginLogin(context.Background())
	require.NoError(t, err)
	sess := store.Read(context.Background(), requestWithCookie(cookieValue))
	require.NotNil(t, sess)

	_, _, err = svc.CompleteLogin(context.Background(), sess, sess.Data.State, "bad-code")
	assert.Equal(t, apperrors.ErrCodeProvider, apperrors.GetCode(err))
}

func TestOAuthLogout(t *testing.T) {
	kv := newFakeSessionKV()
	svc, store := newTestOAuth(t, fakeGitHub(t, http.StatusOK), kv)

	id, cookieValue, err := store.Create(context.Background(), &model.SessionData{
		User: &model.User{ID: 1, Login: "octocat"},
	}, time.Hour)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), &model.Session{ID: id, Data: model.SessionData{}}))
	assert.Nil(t, store.Read(context.Background(), requestWithCookie(cookieValue)))

	// Logout with no session is a no-op.
	require.NoError(t, svc.Logout(context.Background(), nil))
}

func TestOAuthDefaultEndpoints(t *testing.T) {
	store := NewSessionStore(newFakeSessionKV(), "test-secret")
	svc := NewOAuthService(store, GitHubConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
	}, nil, 10*time.Minute, 24*time.Hour)

	authURL, _, err := svc.BeginLogin(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(authURL, "https://github.com/login/oauth/authorize?"), authURL)
	assert.Equal(t, githubUserAPIURL, svc.userAPIURL)
}
