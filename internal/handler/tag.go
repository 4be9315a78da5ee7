package handler

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/todoshare/server-go/internal/errors"
	"github.com/todoshare/server-go/internal/service"
)

type TagHandler struct {
	tags *service.TagService
}

func NewTagHandler(tags *service.TagService) *TagHandler {
	return &TagHandler{tags: tags}
}

func (h *TagHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{name}", h.UpdateColor)
	r.Delete("/{name}", h.Delete)

	return r
}

// tagName decodes the {name} path segment; tag names may contain
// characters the client percent-encodes.
func tagName(r *http.Request) (string, error) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		return "", apperrors.InvalidInput("name", "must be a tag name")
	}
	return name, nil
}

// GET /api/tags
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "tags": tags})
}

type createTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// POST /api/tags
func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "must be JSON"))
		return
	}

	tag, err := h.tags.Create(r.Context(), req.Name, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}

	h.respondWithList(w, r, map[string]any{"success": true, "tag": tag})
}

type updateTagRequest struct {
	Color string `json:"color"`
}

// PUT /api/tags/{name}
func (h *TagHandler) UpdateColor(w http.ResponseWriter, r *http.Request) {
	name, err := tagName(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "must be JSON"))
		return
	}

	tag, err := h.tags.UpdateColor(r.Context(), name, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}

	h.respondWithList(w, r, map[string]any{"success": true, "tag": tag})
}

// DELETE /api/tags/{name}
func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name, err := tagName(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.tags.Delete(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}

	h.respondWithList(w, r, map[string]any{"success": true})
}

// respondWithList attaches the full catalog to mutation responses so the
// client can refresh its tag picker in one round trip.
func (h *TagHandler) respondWithList(w http.ResponseWriter, r *http.Request, payload map[string]any) {
	if tags, err := h.tags.List(r.Context()); err == nil {
		payload["tags"] = tags
	}
	writeJSON(w, http.StatusOK, payload)
}
