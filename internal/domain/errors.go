package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. participant count below one, check-out before check-in).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrSessionExpired is returned when a carbon session exists but its
// expires_at has passed. Handlers should map this to HTTP 410 Gone.
var ErrSessionExpired = errors.New("session expired")

// ErrStepOrder is returned when a session stage is saved before the stage it
// depends on (e.g. accommodation before routes).
// Handlers should map this to HTTP 409 Conflict.
var ErrStepOrder = errors.New("session step out of order")
