package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoshare/server-go/internal/model"
	"github.com/todoshare/server-go/internal/service"
)

type mapSessionKV struct {
	data map[string]*model.SessionData
}

func (f *mapSessionKV) GetSession(_ context.Context, id string) (*model.SessionData, error) {
	return f.data[id], nil
}

func (f *mapSessionKV) SetSession(_ context.Context, id string, data *model.SessionData, _ time.Duration) error {
	f.data[id] = data
	return nil
}

func (f *mapSessionKV) DeleteSession(_ context.Context, id string) error {
	delete(f.data, id)
	return nil
}

func newTestSessionStore(t *testing.T, data *model.SessionData) (*service.SessionStore, string) {
	t.Helper()
	store := service.NewSessionStore(&mapSessionKV{data: map[string]*model.SessionData{}}, "test-secret")
	_, cookieValue, err := store.Create(context.Background(), data, time.Minute)
	require.NoError(t, err)
	return store, cookieValue
}

func TestAttachWithValidSession(t *testing.T) {
	store, cookieValue := newTestSessionStore(t, &model.SessionData{
		User: &model.User{ID: 1, Login: "alice"},
	})
	m := NewSessionMiddleware(store)

	var gotUser *model.User
	handler := m.Attach(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUser(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: cookieValue})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, gotUser)
	assert.Equal(t, "alice", gotUser.Login)
}

func TestAttachWithoutCookie(t *testing.T) {
	store, _ := newTestSessionStore(t, &model.SessionData{})
	m := NewSessionMiddleware(store)

	called := false
	handler := m.Attach(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Nil(t, GetSession(r.Context()))
		assert.Nil(t, GetUser(r.Context()))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/todos", nil))
	assert.True(t, called, "anonymous requests pass through")
}

func TestAttachPendingSessionHasNoUser(t *testing.T) {
	store, cookieValue := newTestSessionStore(t, &model.SessionData{State: "pending"})
	m := NewSessionMiddleware(store)

	handler := m.Attach(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotNil(t, GetSession(r.Context()))
		assert.Nil(t, GetUser(r.Context()))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: cookieValue})
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestRequireUser(t *testing.T) {
	store, cookieValue := newTestSessionStore(t, &model.SessionData{
		User: &model.User{ID: 1, Login: "alice"},
	})
	m := NewSessionMiddleware(store)

	handler := m.Attach(m.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	// Without a session: 401.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/export", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)

	// With a logged-in session: passes.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/export", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: cookieValue})
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionCookieAttributes(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "abc.def", 24*time.Hour, true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, SessionCookieName, c.Name)
	assert.Equal(t, "abc.def", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 86400, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestClearSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearSessionCookie(rec, true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, SessionCookieName, c.Name)
	assert.Empty(t, c.Value)
	assert.Negative(t, c.MaxAge)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}
