package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/todoshare/server-go/internal/audit"
	"github.com/todoshare/server-go/internal/config"
	apperrors "github.com/todoshare/server-go/internal/errors"
	"github.com/todoshare/server-go/internal/metrics"
	"github.com/todoshare/server-go/internal/middleware"
	"github.com/todoshare/server-go/internal/model"
	"github.com/todoshare/server-go/internal/service"
)

type TodoHandler struct {
	todos     *service.TodoService
	cfg       *config.Config
	collector *metrics.Collector
}

func NewTodoHandler(todos *service.TodoService, cfg *config.Config, collector *metrics.Collector) *TodoHandler {
	return &TodoHandler{todos: todos, cfg: cfg, collector: collector}
}

func (h *TodoHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)

	// Static paths are registered before the {id} routes so "export" and
	// "migrate" are never parsed as ids.
	r.Get("/export", h.Export)
	r.Post("/migrate", h.Migrate)
	r.Get("/migrate", h.Migrate)

	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/share", h.Share)
	r.Delete("/{id}/share/{userId}", h.Unshare)
	r.Get("/{id}/shares", h.Shares)

	return r
}

func todoID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, apperrors.InvalidInput("id", "must be a number")
	}
	return id, nil
}

// GET /api/todos
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	views, err := h.todos.List(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}

	var userInfo map[string]any
	if user != nil {
		userInfo = map[string]any{"id": user.ID, "login": user.Login}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"todos":   views,
		"user":    userInfo,
	})
}

type createTodoRequest struct {
	Text        string             `json:"text"`
	Tags        []string           `json:"tags"`
	Attachments []model.Attachment `json:"attachments"`
}

// POST /api/todos
func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "must be JSON"))
		return
	}

	view, err := h.todos.Create(r.Context(), middleware.GetUser(r.Context()), req.Text, req.Tags, req.Attachments)
	if err != nil {
		writeError(w, err)
		return
	}

	h.collector.RecordTodoCreated()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "todo": view})
}

// PUT /api/todos/{id}
func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := todoID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req model.UpdateTodoParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "must be JSON"))
		return
	}

	view, err := h.todos.Update(r.Context(), middleware.GetUser(r.Context()), id, req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "todo": view})
}

// DELETE /api/todos/{id}
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := todoID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user := middleware.GetUser(r.Context())
	if err := h.todos.Delete(r.Context(), user, id); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventTodoDelete,
		UserLogin: user.Login,
		Details:   map[string]interface{}{"todo_id": id},
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type shareRequest struct {
	SharedWithLogin string `json:"shared_with_login"`
}

// POST /api/todos/{id}/share
func (h *TodoHandler) Share(w http.ResponseWriter, r *http.Request) {
	id, err := todoID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "must be JSON"))
		return
	}

	user := middleware.GetUser(r.Context())
	grant, err := h.todos.Share(r.Context(), user, id, req.SharedWithLogin)
	if err != nil {
		writeError(w, err)
		return
	}

	h.collector.RecordShareCreated()
	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventShareCreate,
		UserLogin: user.Login,
		Details:   map[string]interface{}{"todo_id": id, "shared_with": grant.SharedWithID},
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "share": grant})
}

// DELETE /api/todos/{id}/share/{userId}
func (h *TodoHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	id, err := todoID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	sharedWith, err := url.PathUnescape(chi.URLParam(r, "userId"))
	if err != nil || sharedWith == "" {
		writeError(w, apperrors.InvalidInput("userId", "must be a user identifier"))
		return
	}

	user := middleware.GetUser(r.Context())
	if err := h.todos.Unshare(r.Context(), user, id, sharedWith); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventShareDelete,
		UserLogin: user.Login,
		Details:   map[string]interface{}{"todo_id": id, "shared_with": sharedWith},
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GET /api/todos/{id}/shares
func (h *TodoHandler) Shares(w http.ResponseWriter, r *http.Request) {
	id, err := todoID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	grants, err := h.todos.Shares(r.Context(), middleware.GetUser(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "shares": grants})
}

// GET /api/todos/export
func (h *TodoHandler) Export(w http.ResponseWriter, r *http.Request) {
	payload, err := h.todos.Export(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		writeError(w, apperrors.Internal("failed to encode export").WithCause(err))
		return
	}

	filename := fmt.Sprintf("todos-export-%s.json", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// POST /api/todos/migrate
func (h *TodoHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.MigrationConfigured() {
		writeError(w, apperrors.Unavailable("Legacy migration is not configured"))
		return
	}

	result, err := h.todos.MigrateLegacy(r.Context(), h.cfg.LegacyOwnerID, h.cfg.LegacyOwnerLogin)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Info().Int64("updated", result.Updated).Msg("migration endpoint invoked")
	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventMigrateRun,
		Details: map[string]interface{}{"updated": result.Updated},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Migration completed",
		"updated": result.Updated,
		"stats": map[string]any{
			"total": result.Total,
			"owned": result.Owned,
		},
	})
}
