package form

import "github.com/pkordes/grumeter/internal/domain"

// ValidationError is a local precondition failure. Message is meant for the
// user as-is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap lets callers match any form failure with errors.Is(err, domain.ErrValidation).
func (e *ValidationError) Unwrap() error {
	return domain.ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
