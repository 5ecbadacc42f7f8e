package calculator

import (
	"errors"

	"github.com/pkordes/grumeter/internal/carbonapi"
	"github.com/pkordes/grumeter/internal/form"
	"github.com/pkordes/grumeter/internal/mutation"
)

const (
	expiredMessage  = "Your calculation session has expired. Please start again."
	inFlightMessage = "A request is already in progress. Please wait."
	fallbackMessage = "Something went wrong. Please try again."
)

// UserMessage turns any error returned by a Workflow into text for the user.
func UserMessage(err error) string {
	var ve *form.ValidationError
	var apiErr *carbonapi.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, carbonapi.ErrSessionExpired):
		return expiredMessage
	case errors.Is(err, mutation.ErrInFlight):
		return inFlightMessage
	case errors.As(err, &apiErr):
		return apiErr.UserMessage()
	default:
		return fallbackMessage
	}
}
