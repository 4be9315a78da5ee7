package handler

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/todoshare/server-go/internal/config"
	apperrors "github.com/todoshare/server-go/internal/errors"
	"github.com/todoshare/server-go/internal/metrics"
	"github.com/todoshare/server-go/internal/service"
)

type AttachmentHandler struct {
	attachments *service.AttachmentService
	collector   *metrics.Collector
}

func NewAttachmentHandler(attachments *service.AttachmentService, collector *metrics.Collector) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments, collector: collector}
}

func (h *AttachmentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Object keys contain slashes, so the key routes use a wildcard.
	r.Get("/*", h.Download)
	r.Delete("/*", h.Delete)

	return r
}

// attachmentKey extracts and decodes the wildcard remainder of the path.
func attachmentKey(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "*")
	key, err := url.PathUnescape(raw)
	if err != nil || key == "" {
		return "", apperrors.InvalidInput("key", "must be an attachment key")
	}
	return key, nil
}

// POST /api/upload
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// The multipart memory cap only bounds buffering; the attachment
	// size is enforced by the service.
	if err := r.ParseMultipartForm(config.MaxUploadBytes); err != nil {
		writeError(w, apperrors.InvalidInput("body", "must be multipart form data"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperrors.MissingRequired("file"))
		return
	}
	defer file.Close()

	todoID := strings.TrimSpace(r.FormValue("todoId"))
	contentType := header.Header.Get("Content-Type")

	attachment, err := h.attachments.Upload(r.Context(), todoID, header.Filename, contentType, file, header.Size)
	if err != nil {
		writeError(w, err)
		return
	}

	h.collector.RecordUploadStored()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "attachment": attachment})
}

// GET /api/attachments/{key...}
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	key, err := attachmentKey(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rc, info, err := h.attachments.Open(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", info.ContentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if info.ETag != "" {
		w.Header().Set("ETag", info.ETag)
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("attachment stream interrupted")
	}
}

// DELETE /api/attachments/{key...}
func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key, err := attachmentKey(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.attachments.Remove(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
