package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/todoshare/server-go/internal/errors"
)

func fakeChatAPI(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAssistChat(t *testing.T) {
	srv := fakeChatAPI(t, "  42 is the answer.  ")
	svc := NewAssistService(srv.Client(), srv.URL, "test-key", "gpt-4o-mini")

	res, err := svc.Chat(context.Background(), "what is the answer?")
	require.NoError(t, err)
	assert.Equal(t, "what is the answer?", res.Prompt)
	assert.Equal(t, "42 is the answer.", res.Response)
	assert.Equal(t, "gpt-4o-mini", res.Model)
}

func TestAssistOptimize(t *testing.T) {
	srv := fakeChatAPI(t, `"Buy milk and eggs"`)
	svc := NewAssistService(srv.Client(), srv.URL, "test-key", "gpt-4o-mini")

	res, err := svc.Optimize(context.Background(), "buy milk n eggs")
	require.NoError(t, err)
	assert.Equal(t, "buy milk n eggs", res.Original)
	assert.Equal(t, "Buy milk and eggs", res.Optimized, "surrounding quotes stripped")
	assert.True(t, res.Changed)
}

func TestAssistOptimizeStripsPrefix(t *testing.T) {
	srv := fakeChatAPI(t, "Optimized: Buy milk")
	svc := NewAssistService(srv.Client(), srv.URL, "test-key", "gpt-4o-mini")

	res, err := svc.Optimize(context.Background(), "Buy milk")
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", res.Optimized)
	assert.False(t, res.Changed)
}

func TestAssistOptimizeEmptyText(t *testing.T) {
	svc := NewAssistService(nil, "http://unused", "test-key", "gpt-4o-mini")

	_, err := svc.Optimize(context.Background(), "   ")
	assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
}

func TestAssistUnconfigured(t *testing.T) {
	svc := NewAssistService(nil, "http://unused", "", "gpt-4o-mini")

	assert.False(t, svc.Configured())
	_, err := svc.Chat(context.Background(), "hi")
	assert.Equal(t, apperrors.ErrCodeUnavailable, apperrors.GetCode(err))
}

func TestAssistUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc := NewAssistService(srv.Client(), srv.URL, "test-key", "gpt-4o-mini")
	_, err := svc.Chat(context.Background(), "hi")
	assert.Equal(t, apperrors.ErrCodeExternal, apperrors.GetCode(err))
}
