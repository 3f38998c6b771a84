package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with full technical detail server-side and
// returned to clients as a user-friendly message with a support code.
// The error kind picks the HTTP status:
//
//	structural / validation -> 400
//	not-found               -> 404
//	concurrency limit       -> 429
//	anything else           -> 500

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Nikhilraj155/project-managment/internal/ingest"
	"github.com/Nikhilraj155/project-managment/internal/logging"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case ingest.IsStructural(err), ingest.IsValidation(err):
		return http.StatusBadRequest
	case ingest.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrTooManyUploads):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the technical error and writes the user-facing JSON.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := ingest.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; nothing left to do but log.
		slog.Error("json encode error", "error", err)
	}
}
