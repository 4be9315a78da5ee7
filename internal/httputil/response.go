package httputil

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/todoshare/server-go/internal/errors"
)

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the standard error envelope:
// {"success": false, "error": "...", "message": "..."}
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteError writes an AppError as an HTTP response with appropriate status code
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		// Unknown errors surface their message in the envelope so the
		// frontend can display what the backend reported.
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Internal error",
			Message: err.Error(),
		})
		return
	}

	response := ErrorResponse{Error: appErr.Message}
	if cause := appErr.Unwrap(); cause != nil {
		response.Message = cause.Error()
	}

	WriteJSON(w, statusFromCode(appErr.Code), response)
}

// statusFromCode maps ErrorCode to HTTP status code
func statusFromCode(code apperrors.ErrorCode) int {
	switch code {
	// 400 Bad Request. ALREADY_EXISTS lands here rather than 409: duplicate
	// shares and duplicate tags are plain validation failures on this API.
	case apperrors.ErrCodeValidation,
		apperrors.ErrCodeInvalidInput,
		apperrors.ErrCodeMissingRequired,
		apperrors.ErrCodeAlreadyExists,
		apperrors.ErrCodeProvider:
		return http.StatusBadRequest

	// 401 Unauthorized
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized

	// 403 Forbidden
	case apperrors.ErrCodeForbidden,
		apperrors.ErrCodeStateMismatch:
		return http.StatusForbidden

	// 404 Not Found
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound

	// 429 Too Many Requests
	case apperrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests

	// 503 Service Unavailable
	case apperrors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable

	// 500 Internal Server Error
	case apperrors.ErrCodeInternal,
		apperrors.ErrCodeDatabase,
		apperrors.ErrCodeExternal:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}
