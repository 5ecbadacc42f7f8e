package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkordes/grumeter/internal/domain"
)

// writeJSON writes data in the success envelope.
func writeJSON[T any](w http.ResponseWriter, status int, data T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.Envelope[T]{
		Data:    data,
		Status:  status,
		Success: true,
	})
}

// writeError writes the error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.Envelope[any]{
		Status:  status,
		Success: false,
		Code:    code,
		Message: message,
	})
}

// fail maps a service error to its status code. resource names what was
// being looked up (e.g. "session") for the 404 message. Unknown errors are
// logged and reported as a generic 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, resource string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", unwrapMessage(err, domain.ErrValidation))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", resource+" not found")
	case errors.Is(err, domain.ErrSessionExpired):
		writeError(w, http.StatusGone, "session_expired", "session expired, please start a new calculation")
	case errors.Is(err, domain.ErrStepOrder):
		writeError(w, http.StatusConflict, "step_order", unwrapMessage(err, domain.ErrStepOrder))
	default:
		s.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// decodeJSON reads the request body into v. Malformed bodies become
// validation errors; an oversized body keeps its *http.MaxBytesError.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrValidation, err)
	}
	return nil
}

// unwrapMessage extracts the human-readable part after a wrapped sentinel.
// e.g. "service.CarbonService.Create: validation error: participantCount must be at least 1"
// → "participantCount must be at least 1"
func unwrapMessage(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if i := strings.LastIndex(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return sentinel.Error()
}
