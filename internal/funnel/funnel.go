// Package funnel is the step selector of the carbon calculator wizard.
//
// A Funnel moves one step at a time between PERSONNEL, ROUTES, ACCOMMODATION
// and the terminal DONE step. It performs no I/O; callers advance it only
// after the request for the current step has succeeded.
package funnel

import (
	"errors"
	"sync"
)

// Step is a wizard step.
type Step int

const (
	Personnel Step = iota
	Routes
	Accommodation
	Done
)

// Steps lists every step in order.
var Steps = []Step{Personnel, Routes, Accommodation, Done}

var (
	// ErrTerminal is returned by Advance at Done.
	ErrTerminal = errors.New("funnel is at its last step")
	// ErrInitial is returned by Retreat at Personnel.
	ErrInitial = errors.New("funnel is at its first step")
	// ErrMoved is returned by AdvanceFrom when the funnel is not at the
	// expected step.
	ErrMoved = errors.New("funnel is not at the expected step")
)

func (s Step) String() string {
	switch s {
	case Personnel:
		return "PERSONNEL"
	case Routes:
		return "ROUTES"
	case Accommodation:
		return "ACCOMMODATION"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Progress is the completion percentage shown for s.
func (s Step) Progress() int {
	switch s {
	case Personnel:
		return 33
	case Routes:
		return 66
	default:
		return 100
	}
}

// Funnel is safe for concurrent use. The zero value starts at Personnel.
type Funnel struct {
	mu       sync.Mutex
	step     Step
	onChange []func(from, to Step)
}

// New returns a Funnel at Personnel.
func New() *Funnel {
	return &Funnel{}
}

// Step returns the current step.
func (f *Funnel) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Progress returns the completion percentage of the current step.
func (f *Funnel) Progress() int {
	return f.Step().Progress()
}

// OnChange registers fn to run after every transition.
func (f *Funnel) OnChange(fn func(from, to Step)) {
	f.mu.Lock()
	f.onChange = append(f.onChange, fn)
	f.mu.Unlock()
}

// Advance moves to the next step.
func (f *Funnel) Advance() (Step, error) {
	return f.move(func(s Step) (Step, error) {
		if s == Done {
			return s, ErrTerminal
		}
		return s + 1, nil
	})
}

// AdvanceFrom moves to the step after from, but only while the funnel is
// still at from.
func (f *Funnel) AdvanceFrom(from Step) (Step, error) {
	return f.move(func(s Step) (Step, error) {
		switch {
		case s != from:
			return s, ErrMoved
		case s == Done:
			return s, ErrTerminal
		}
		return s + 1, nil
	})
}

// Retreat moves to the previous step.
func (f *Funnel) Retreat() (Step, error) {
	return f.move(func(s Step) (Step, error) {
		if s == Personnel {
			return s, ErrInitial
		}
		return s - 1, nil
	})
}

// Reset returns to Personnel from any step.
func (f *Funnel) Reset() Step {
	s, _ := f.move(func(Step) (Step, error) { return Personnel, nil })
	return s
}

func (f *Funnel) move(next func(Step) (Step, error)) (Step, error) {
	f.mu.Lock()
	from := f.step
	to, err := next(from)
	if err != nil {
		f.mu.Unlock()
		return from, err
	}
	f.step = to
	hooks := append([]func(from, to Step){}, f.onChange...)
	f.mu.Unlock()

	if from != to {
		for _, fn := range hooks {
			fn(from, to)
		}
	}
	return to, nil
}
