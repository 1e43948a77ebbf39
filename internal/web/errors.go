package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with a support code
//   - Given a status code derived from the error itself
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls s.respondError(w, r, err)
//  3. statusFor picks the HTTP status from the error's type
//  4. core.MapError supplies the user-facing message and code
//  5. The technical error is logged with the request ID for correlation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sheetvault/internal/core"
)

// retryAfterBusy is sent with 503 responses when every import slot is taken.
const retryAfterBusy = 5

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`

	// Errors lists every field problem of a rejected payload.
	Errors []core.FieldError `json:"errors,omitempty"`
}

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	var (
		verrs    core.ValidationErrors
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped JSON error response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", chimw.GetReqID(r.Context()),
	}
	switch {
	case !core.IsUserFacing(err):
		// No catalogue entry: the client only sees ERR000.
		slog.Error("unhandled request error", attrs...)
	case status >= http.StatusInternalServerError:
		slog.Error("request error", attrs...)
	default:
		slog.Warn("request rejected", attrs...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterBusy))
	}

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}
	var verrs core.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Errors = verrs
	}
	writeJSON(w, status, resp)
}

// respondValidation rejects a request with a single field problem.
func (s *Server) respondValidation(w http.ResponseWriter, r *http.Request, field, message string) {
	s.respondError(w, r, core.ValidationErrors{{Field: field, Message: message}})
}
