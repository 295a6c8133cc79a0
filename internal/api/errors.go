package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nerrad567/dccutils-server/internal/bridge"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FailureResponse is the body of a 500 response. Detail carries the
// diagnostic trace so scripted clients can surface host-side failures.
type FailureResponse struct {
	Detail string `json:"detail"`
}

// ErrCodeValidation marks missing or malformed request parameters.
const ErrCodeValidation = "validation_error"

// writeJSON writes a JSON response with the given status code and payload.
// A nil payload is encoded as JSON null.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeValidationError writes a 422 for missing or malformed parameters.
func writeValidationError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, message)
}

// writeFailure logs err with its trace and writes a 500 {"detail": trace}.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	detail := errorTrace(err)
	s.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", r.Context().Value(ctxKeyRequestID),
		"error", err,
		"trace", detail,
	)
	writeJSON(w, http.StatusInternalServerError, FailureResponse{Detail: detail})
}

// errorTrace renders err, each error it wraps, and the goroutine stack of
// a task that panicked on the main loop.
func errorTrace(err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%T: %v", err, err)
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		fmt.Fprintf(&b, "\ncaused by %T: %v", cause, cause)
	}

	var panicErr *bridge.PanicError
	if errors.As(err, &panicErr) && len(panicErr.Stack) > 0 {
		b.WriteString("\n\n")
		b.Write(panicErr.Stack)
	}
	return b.String()
}
