package querycache

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/pkordes/grumeter/internal/domain"
)

// RetryPolicy controls how a failed read is retried.
type RetryPolicy struct {
	// Attempts is the total number of calls, including the first.
	// Values below 1 are treated as 1.
	Attempts int
	// BaseDelay is the wait before the second attempt; it doubles after that.
	BaseDelay time.Duration
	// MaxDelay caps a single wait.
	MaxDelay time.Duration
	// ShouldRetry decides whether err is transient. Nil means DefaultShouldRetry.
	ShouldRetry func(error) bool
}

// DefaultRetryPolicy retries twice with 1s, 2s waits, capped at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:    3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		ShouldRetry: DefaultShouldRetry,
	}
}

// NoRetry makes exactly one attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{Attempts: 1}
}

// statusCoder is implemented by errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// DefaultShouldRetry refuses to retry cancellation, validation failures and
// client errors (4xx other than 408 and 429). Server errors and errors
// without a status are considered transient.
func DefaultShouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, domain.ErrValidation) {
		return false
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		switch status := sc.HTTPStatus(); {
		case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
			return true
		case status >= 400 && status < 500:
			return false
		}
	}
	return true
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return retry.WithMaxRetries(uint64(attempts-1), b)
}

// run calls fn until it succeeds, fails permanently, or attempts run out.
// The error returned is always fn's own error, never a retry wrapper.
func (p RetryPolicy) run(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	should := p.ShouldRetry
	if should == nil {
		should = DefaultShouldRetry
	}
	return retry.DoValue(ctx, p.backoff(), func(ctx context.Context) (any, error) {
		v, err := fn(ctx)
		if err != nil && should(err) {
			return nil, retry.RetryableError(err)
		}
		return v, err
	})
}
