package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/todoshare/server-go/internal/errors"
	"github.com/todoshare/server-go/internal/service"
)

type DemoHandler struct {
	weather *service.WeatherService
	assist  *service.AssistService
	state   *service.DemoState
}

func NewDemoHandler(weather *service.WeatherService, assist *service.AssistService, state *service.DemoState) *DemoHandler {
	return &DemoHandler{weather: weather, assist: assist, state: state}
}

// GET /api/time
func (h *DemoHandler) Time(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	beijing := now.UTC().Add(8 * time.Hour)
	if loc, err := time.LoadLocation("Asia/Shanghai"); err == nil {
		beijing = now.In(loc)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"timestamp": now.UTC().Format(time.RFC3339Nano),
		"beijing":   beijing.Format("2006/1/2 15:04:05"),
		"unix":      now.Unix(),
	})
}

// GET /api/weather?city=...
func (h *DemoHandler) Weather(w http.ResponseWriter, r *http.Request) {
	report, err := h.weather.Current(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GET /api/ai?prompt=...
func (h *DemoHandler) Chat(w http.ResponseWriter, r *http.Request) {
	result, err := h.assist.Chat(r.Context(), r.URL.Query().Get("prompt"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type optimizeRequest struct {
	Text string `json:"text"`
}

// POST /api/ai/optimize
func (h *DemoHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "must be JSON"))
		return
	}

	result, err := h.assist.Optimize(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"original":  result.Original,
		"optimized": result.Optimized,
		"changed":   result.Changed,
	})
}

// GET /counter?action=increment|reset
func (h *DemoHandler) CounterPage(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "increment":
		h.state.Increment()
	case "reset":
		h.state.Reset()
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// GET /api/counter
func (h *DemoHandler) Counter(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"count": h.state.Counter()})
}

// GET /api/shorten?url=...
func (h *DemoHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	longURL := r.URL.Query().Get("url")
	if longURL == "" {
		writeError(w, apperrors.MissingRequired("url"))
		return
	}
	if parsed, err := url.Parse(longURL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		writeError(w, apperrors.InvalidInput("url", "must be an absolute http(s) URL"))
		return
	}

	code, err := h.state.Shorten(longURL)
	if err != nil {
		writeError(w, apperrors.Internal("failed to generate short code").WithCause(err))
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"original": longURL,
		"short":    fmt.Sprintf("%s://%s/s/%s", scheme, r.Host, code),
		"code":     code,
	})
}

// GET /s/{code}
func (h *DemoHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	longURL, ok := h.state.Resolve(chi.URLParam(r, "code"))
	if !ok {
		writeError(w, apperrors.NotFound("Short URL"))
		return
	}
	http.Redirect(w, r, longURL, http.StatusFound)
}
