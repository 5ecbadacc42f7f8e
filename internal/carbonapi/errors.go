package carbonapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes for failures that never reached the server.
const (
	CodeNetwork = "NETWORK_ERROR"
	CodeRequest = "REQUEST_ERROR"
	CodeDecode  = "DECODE_ERROR"
)

const (
	networkMessage  = "Network error - no response received"
	fallbackMessage = "Something went wrong. Please try again."
)

// ErrSessionExpired is matched by errors.Is when a session endpoint reports
// the session as missing or gone. The only recovery is a new session.
var ErrSessionExpired = errors.New("carbon session expired or not found")

// Error is a failed API call. Status is 0 when no response was received.
type Error struct {
	Status  int
	Code    string
	Message string
	Path    string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("carbonapi %s: %s: %s", e.Path, e.Code, e.Message)
	}
	if e.Message == "" {
		return fmt.Sprintf("carbonapi %s: status %d (%s)", e.Path, e.Status, e.Code)
	}
	return fmt.Sprintf("carbonapi %s: status %d (%s): %s", e.Path, e.Status, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus exposes the response status to retry policies that do not
// import this package.
func (e *Error) HTTPStatus() int { return e.Status }

// Network reports whether the request failed before any response arrived.
func (e *Error) Network() bool { return e.Status == 0 && e.Code == CodeNetwork }

// UserMessage returns text fit to show an end user: the server's message when
// it sent one, a retry prompt for network failures, otherwise a generic line.
func (e *Error) UserMessage() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return e.Message
	case e.Network():
		return "Network error. Check your connection and try again."
	default:
		return fallbackMessage
	}
}

// Retryable reports whether a read that failed with err may be retried:
// network failures, 408, 429 and 5xx are transient; context cancellation and
// every other client error are not.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return true
	}
	switch {
	case apiErr.Status == 0:
		return apiErr.Code == CodeNetwork
	case apiErr.Status == http.StatusRequestTimeout, apiErr.Status == http.StatusTooManyRequests:
		return true
	case apiErr.Status >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}
