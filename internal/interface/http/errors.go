package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// statusFor maps an application error to an HTTP status and a stable code.
// The error kinds are checked from most to least specific.
func statusFor(err error) (int, string) {
	switch {
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "already_exists"
	case shared.IsConflict(err):
		return http.StatusConflict, "conflict"
	case shared.IsInvalidDefinition(err):
		return http.StatusUnprocessableEntity, "invalid_definition"
	case errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError writes err as a JSON error. Internal errors are logged and
// their message is hidden from the caller.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		message = "internal server error"
	}
	writeJSONError(w, r, status, code, message)
}
