// Package mutation runs state-changing calls one at a time with lifecycle
// hooks.
//
// A Mutation wraps a single logical write (create a session, save routes,
// toggle a like). While one call is pending, further Run calls fail fast with
// ErrInFlight. Hooks run synchronously inside Run, so cache writes made in
// OnSuccess are visible before Run returns. Mutations never retry.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrInFlight is returned by Run when the previous call has not settled.
var ErrInFlight = errors.New("mutation already in flight")

// Status is the state of the last call.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Hooks observe a call. Any field may be nil.
//
// OnMutate runs before the call; returning an error aborts it, and the error
// goes through OnError and OnSettled like a failed call. OnSettled always
// runs last, with exactly one of out or err meaningful.
type Hooks[In, Out any] struct {
	OnMutate  func(ctx context.Context, in In) error
	OnSuccess func(ctx context.Context, in In, out Out)
	OnError   func(ctx context.Context, in In, err error)
	OnSettled func(ctx context.Context, in In, out Out, err error)
}

// Mutation is safe for concurrent use.
type Mutation[In, Out any] struct {
	name   string
	fn     func(context.Context, In) (Out, error)
	hooks  Hooks[In, Out]
	logger *slog.Logger

	mu     sync.Mutex
	status Status
	data   Out
	err    error
}

// Option configures a Mutation.
type Option func(*settings)

type settings struct {
	logger *slog.Logger
}

// WithLogger sets the logger failures are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// New returns an idle mutation named name that calls fn.
func New[In, Out any](name string, fn func(context.Context, In) (Out, error), hooks Hooks[In, Out], opts ...Option) *Mutation[In, Out] {
	s := settings{logger: slog.Default()}
	for _, o := range opts {
		o(&s)
	}
	return &Mutation[In, Out]{
		name:   name,
		fn:     fn,
		hooks:  hooks,
		logger: s.logger,
		status: StatusIdle,
	}
}

// Run performs one call. The mutation's own hooks run first, then each of
// extra in order, all before Run returns.
func (m *Mutation[In, Out]) Run(ctx context.Context, in In, extra ...Hooks[In, Out]) (Out, error) {
	var zero Out

	m.mu.Lock()
	if m.status == StatusPending {
		m.mu.Unlock()
		return zero, fmt.Errorf("mutation.%s: %w", m.name, ErrInFlight)
	}
	m.status = StatusPending
	m.err = nil
	m.mu.Unlock()

	// A panicking hook must not leave the slot pending forever.
	defer func() {
		if r := recover(); r != nil {
			m.mu.Lock()
			m.status = StatusError
			m.err = fmt.Errorf("mutation.%s: hook panic: %v", m.name, r)
			m.mu.Unlock()
			panic(r)
		}
	}()

	all := append([]Hooks[In, Out]{m.hooks}, extra...)

	out, err := m.call(ctx, in, all)

	if err != nil {
		m.logger.Error("mutation failed", "mutation", m.name, "error", err)
		for _, h := range all {
			if h.OnError != nil {
				h.OnError(ctx, in, err)
			}
		}
	} else {
		for _, h := range all {
			if h.OnSuccess != nil {
				h.OnSuccess(ctx, in, out)
			}
		}
	}
	for _, h := range all {
		if h.OnSettled != nil {
			h.OnSettled(ctx, in, out, err)
		}
	}

	// The slot stays pending until every hook has run.
	m.mu.Lock()
	if err != nil {
		m.status = StatusError
		m.err = err
	} else {
		m.status = StatusSuccess
		m.data = out
	}
	m.mu.Unlock()

	if err != nil {
		return zero, err
	}
	return out, nil
}

func (m *Mutation[In, Out]) call(ctx context.Context, in In, all []Hooks[In, Out]) (out Out, err error) {
	for _, h := range all {
		if h.OnMutate == nil {
			continue
		}
		if err := h.OnMutate(ctx, in); err != nil {
			return out, err
		}
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mutation.%s: panic: %v", m.name, r)
		}
	}()
	return m.fn(ctx, in)
}

// Name returns the name given to New.
func (m *Mutation[In, Out]) Name() string { return m.name }

// Status returns the state of the last call.
func (m *Mutation[In, Out]) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Pending reports whether a call is in flight.
func (m *Mutation[In, Out]) Pending() bool {
	return m.Status() == StatusPending
}

// Data returns the result of the last successful call.
func (m *Mutation[In, Out]) Data() Out {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// Err returns the error of the last failed call.
func (m *Mutation[In, Out]) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Reset returns a settled mutation to idle. It has no effect while pending.
func (m *Mutation[In, Out]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusPending {
		return
	}
	var zero Out
	m.status = StatusIdle
	m.data = zero
	m.err = nil
}
