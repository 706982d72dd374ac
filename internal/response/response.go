// Package response writes the JSON envelope shared by every API endpoint:
//
//	{"status": "success", "data": {...}}
//	{"status": "error", "message": "..."}
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/clipshelf/server/internal/logger"
	"github.com/clipshelf/server/internal/service"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type Envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// JSON writes data wrapped in a success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Envelope{Status: StatusSuccess, Data: data})
}

// Message writes a success envelope carrying only a message.
func Message(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Status: StatusSuccess, Message: message})
}

// Error writes message wrapped in an error envelope.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Status: StatusError, Message: message})
}

// FromError maps a service error to its HTTP status and writes it. Unknown
// errors are logged and reported as 500 without leaking details.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
		Error(w, status, "internal server error")
		return
	}
	if status == http.StatusServiceUnavailable {
		logger.FromContext(r.Context()).Warn("transient failure", "error", err, "path", r.URL.Path)
	}
	Error(w, status, err.Error())
}

// StatusCode returns the HTTP status for err.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrDuplicateIdentity):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrRefreshExpired),
		errors.Is(err, service.ErrTokenNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrAccountDisabled),
		errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrExpired):
		return http.StatusGone
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}
