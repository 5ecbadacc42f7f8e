// Package calculator drives one carbon calculation session end to end.
//
// A Workflow owns the draft (form.Model), the step selector (funnel.Funnel)
// and one mutation per server call. Every Submit method validates the draft
// locally, runs its mutation, writes the cache from the success hook, and only
// then advances the funnel. A failed call leaves the step and the draft as
// they were. A session the server no longer knows sends the whole workflow
// back to the first step with an empty draft.
package calculator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkordes/grumeter/internal/carbonapi"
	"github.com/pkordes/grumeter/internal/domain"
	"github.com/pkordes/grumeter/internal/form"
	"github.com/pkordes/grumeter/internal/funnel"
	"github.com/pkordes/grumeter/internal/mutation"
	"github.com/pkordes/grumeter/internal/querycache"
)

var (
	// ErrWrongStep is returned when an action does not belong to the current step.
	ErrWrongStep = errors.New("action not available at this step")
	// ErrInconsistentResult is returned when a calculation's parts do not add
	// up to its total. Such a result is never cached.
	ErrInconsistentResult = errors.New("calculation total does not match its breakdown")
)

// API is the subset of the carbon API the workflow calls.
type API interface {
	CreateSession(ctx context.Context, req domain.CreateSessionRequest) (domain.CarbonSession, error)
	SaveRoutes(ctx context.Context, sessionID string, req domain.RoutesRequest) (domain.RoutesResponse, error)
	SaveAccommodations(ctx context.Context, sessionID string, req domain.AccommodationsRequest) (domain.AccommodationsResponse, error)
	Calculate(ctx context.Context, sessionID string) (domain.CalculationResult, error)
}

var _ API = (*carbonapi.Client)(nil)

// SessionKey is the cache key of the session mirror.
func SessionKey(sessionID string) querycache.Key {
	return querycache.Key{"carbon", "sessions", sessionID}
}

// ResultKey is the cache key of a session's calculation result.
func ResultKey(sessionID string) querycache.Key {
	return querycache.Key{"carbon", "results", sessionID}
}

var resultQuery = querycache.QueryOptions{StaleTime: querycache.StaleNever}

type sessionCall[T any] struct {
	SessionID string
	Body      T
}

// Workflow is safe for concurrent use; each step still admits one request
// at a time.
type Workflow struct {
	api    API
	cache  *querycache.Cache
	funnel *funnel.Funnel
	logger *slog.Logger

	mu        sync.Mutex
	draft     form.Model
	breakdown domain.EmissionBreakdown

	createSession      *mutation.Mutation[domain.CreateSessionRequest, domain.CarbonSession]
	saveRoutes         *mutation.Mutation[sessionCall[domain.RoutesRequest], domain.RoutesResponse]
	saveAccommodations *mutation.Mutation[sessionCall[domain.AccommodationsRequest], domain.AccommodationsResponse]
	calculate          *mutation.Mutation[string, domain.CalculationResult]
}

// New wires a Workflow at the first step with an empty draft.
// A nil logger means slog.Default().
func New(api API, cache *querycache.Cache, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Workflow{
		api:    api,
		cache:  cache,
		funnel: funnel.New(),
		logger: logger,
		draft:  form.New(),
	}
	opt := mutation.WithLogger(logger)

	w.createSession = mutation.New("createCarbonSession",
		api.CreateSession,
		mutation.Hooks[domain.CreateSessionRequest, domain.CarbonSession]{
			OnSuccess: func(_ context.Context, _ domain.CreateSessionRequest, s domain.CarbonSession) {
				_ = querycache.SetData(cache, SessionKey(s.SessionID), s)
				w.mu.Lock()
				w.draft = w.draft.WithSessionID(s.SessionID)
				w.breakdown = domain.EmissionBreakdown{}
				w.mu.Unlock()
			},
		}, opt)

	w.saveRoutes = mutation.New("saveRoutes",
		func(ctx context.Context, in sessionCall[domain.RoutesRequest]) (domain.RoutesResponse, error) {
			return api.SaveRoutes(ctx, in.SessionID, in.Body)
		},
		mutation.Hooks[sessionCall[domain.RoutesRequest], domain.RoutesResponse]{
			OnSuccess: func(_ context.Context, in sessionCall[domain.RoutesRequest], r domain.RoutesResponse) {
				w.cache.Remove(ResultKey(in.SessionID))
				w.patchSessionStep(in.SessionID, r.Step)
				w.mu.Lock()
				w.breakdown.Transportation = r.TransportationEmission
				w.mu.Unlock()
			},
			OnError: restartOnExpiry[sessionCall[domain.RoutesRequest]](w),
		}, opt)

	w.saveAccommodations = mutation.New("saveAccommodations",
		func(ctx context.Context, in sessionCall[domain.AccommodationsRequest]) (domain.AccommodationsResponse, error) {
			return api.SaveAccommodations(ctx, in.SessionID, in.Body)
		},
		mutation.Hooks[sessionCall[domain.AccommodationsRequest], domain.AccommodationsResponse]{
			OnSuccess: func(_ context.Context, in sessionCall[domain.AccommodationsRequest], r domain.AccommodationsResponse) {
				w.cache.Remove(ResultKey(in.SessionID))
				w.patchSessionStep(in.SessionID, r.Step)
				w.mu.Lock()
				w.breakdown.Accommodation = r.AccommodationEmission
				w.mu.Unlock()
			},
			OnError: restartOnExpiry[sessionCall[domain.AccommodationsRequest]](w),
		}, opt)

	w.calculate = mutation.New("calculateCarbon",
		func(ctx context.Context, sessionID string) (domain.CalculationResult, error) {
			res, err := api.Calculate(ctx, sessionID)
			if err != nil {
				return res, err
			}
			if !res.Consistent() {
				return domain.CalculationResult{}, fmt.Errorf("calculator: result %d: %w", res.ResultID, ErrInconsistentResult)
			}
			return res, nil
		},
		mutation.Hooks[string, domain.CalculationResult]{
			OnSuccess: func(_ context.Context, sessionID string, res domain.CalculationResult) {
				_ = querycache.SetData(cache, ResultKey(sessionID), res, resultQuery)
				w.patchSessionStep(sessionID, domain.StepCalculated)
				w.mu.Lock()
				w.breakdown = res.Result
				w.mu.Unlock()
			},
			OnError: restartOnExpiry[string](w),
		}, opt)

	return w
}

// ---- state -----------------------------------------------------------------

// Step is the current funnel step.
func (w *Workflow) Step() funnel.Step { return w.funnel.Step() }

// Progress is the completion percentage of the current step.
func (w *Workflow) Progress() int { return w.funnel.Progress() }

// OnStepChange registers fn to run after every step transition.
func (w *Workflow) OnStepChange(fn func(from, to funnel.Step)) { w.funnel.OnChange(fn) }

// Draft returns the current draft.
func (w *Workflow) Draft() form.Model {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

// Breakdown returns the emission subtotals confirmed by the server so far.
func (w *Workflow) Breakdown() domain.EmissionBreakdown {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.breakdown
}

// Session returns the cached mirror of the current session.
func (w *Workflow) Session() (domain.CarbonSession, bool) {
	id := w.Draft().SessionID()
	if id == "" {
		return domain.CarbonSession{}, false
	}
	return querycache.Get[domain.CarbonSession](w.cache, SessionKey(id))
}

// Pending reports whether any step request is in flight.
func (w *Workflow) Pending() bool {
	return w.createSession.Pending() || w.saveRoutes.Pending() ||
		w.saveAccommodations.Pending() || w.calculate.Pending()
}

// ---- draft edits -----------------------------------------------------------

// Edit replaces the draft with fn's result. On error the draft is unchanged.
func (w *Workflow) Edit(fn func(form.Model) (form.Model, error)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	next, err := fn(w.draft)
	if err != nil {
		return err
	}
	w.draft = next
	return nil
}

// SetParticipantCount sets the number of travellers on the draft.
func (w *Workflow) SetParticipantCount(n int) error {
	return w.Edit(func(m form.Model) (form.Model, error) { return m.WithParticipantCount(n) })
}

// AddRoute appends a route to the draft.
func (w *Workflow) AddRoute(d form.RouteDraft) error {
	return w.Edit(func(m form.Model) (form.Model, error) { return m.AddRoute(d) })
}

// RemoveRoute removes the route at index i from the draft.
func (w *Workflow) RemoveRoute(i int) error {
	return w.Edit(func(m form.Model) (form.Model, error) { return m.RemoveRoute(i) })
}

// AddAccommodation appends a stay to the draft.
func (w *Workflow) AddAccommodation(d form.AccommodationDraft) error {
	return w.Edit(func(m form.Model) (form.Model, error) { return m.AddAccommodation(d) })
}

// RemoveAccommodation removes the stay at index i from the draft.
func (w *Workflow) RemoveAccommodation(i int) error {
	return w.Edit(func(m form.Model) (form.Model, error) { return m.RemoveAccommodation(i) })
}

// ---- step actions ----------------------------------------------------------

// SubmitPersonnel creates the server session and moves to ROUTES.
func (w *Workflow) SubmitPersonnel(ctx context.Context) (domain.CarbonSession, error) {
	if err := w.expectStep(funnel.Personnel); err != nil {
		return domain.CarbonSession{}, err
	}
	draft := w.Draft()
	if err := draft.ValidatePersonnel(); err != nil {
		return domain.CarbonSession{}, err
	}

	s, err := w.createSession.Run(ctx, domain.CreateSessionRequest{ParticipantCount: draft.ParticipantCount()},
		stepHooks[domain.CreateSessionRequest, domain.CarbonSession](w, funnel.Personnel))
	if err != nil {
		return domain.CarbonSession{}, fmt.Errorf("calculator.Workflow.SubmitPersonnel: %w", err)
	}
	return s, nil
}

// SubmitRoutes saves the route drafts and moves to ACCOMMODATION.
func (w *Workflow) SubmitRoutes(ctx context.Context) (domain.RoutesResponse, error) {
	if err := w.expectStep(funnel.Routes); err != nil {
		return domain.RoutesResponse{}, err
	}
	draft := w.Draft()
	req, err := draft.RoutesRequest()
	if err != nil {
		return domain.RoutesResponse{}, err
	}

	r, err := w.saveRoutes.Run(ctx, sessionCall[domain.RoutesRequest]{SessionID: draft.SessionID(), Body: req},
		stepHooks[sessionCall[domain.RoutesRequest], domain.RoutesResponse](w, funnel.Routes))
	if err != nil {
		return domain.RoutesResponse{}, fmt.Errorf("calculator.Workflow.SubmitRoutes: %w", err)
	}
	return r, nil
}

// SubmitAccommodations saves the stays and moves to DONE.
func (w *Workflow) SubmitAccommodations(ctx context.Context) (domain.AccommodationsResponse, error) {
	if err := w.expectStep(funnel.Accommodation); err != nil {
		return domain.AccommodationsResponse{}, err
	}
	draft := w.Draft()
	req, err := draft.AccommodationsRequest()
	if err != nil {
		return domain.AccommodationsResponse{}, err
	}

	r, err := w.saveAccommodations.Run(ctx, sessionCall[domain.AccommodationsRequest]{SessionID: draft.SessionID(), Body: req},
		stepHooks[sessionCall[domain.AccommodationsRequest], domain.AccommodationsResponse](w, funnel.Accommodation))
	if err != nil {
		return domain.AccommodationsResponse{}, fmt.Errorf("calculator.Workflow.SubmitAccommodations: %w", err)
	}
	return r, nil
}

// Calculate returns the session's final result. A result already in the
// cache is returned without calling the server again.
func (w *Workflow) Calculate(ctx context.Context) (domain.CalculationResult, error) {
	if err := w.expectStep(funnel.Done); err != nil {
		return domain.CalculationResult{}, err
	}
	id := w.Draft().SessionID()
	if res, ok := querycache.Get[domain.CalculationResult](w.cache, ResultKey(id)); ok {
		return res, nil
	}

	res, err := w.calculate.Run(ctx, id)
	if err != nil {
		return domain.CalculationResult{}, fmt.Errorf("calculator.Workflow.Calculate: %w", err)
	}
	return res, nil
}

// Back moves to the previous step without any request. Drafts are kept.
func (w *Workflow) Back() (funnel.Step, error) {
	if w.Pending() {
		return w.funnel.Step(), fmt.Errorf("calculator.Workflow.Back: %w", mutation.ErrInFlight)
	}
	return w.funnel.Retreat()
}

// Restart discards the draft and the session's cache entries and returns to
// PERSONNEL.
func (w *Workflow) Restart() {
	w.mu.Lock()
	id := w.draft.SessionID()
	w.draft = w.draft.Reset()
	w.breakdown = domain.EmissionBreakdown{}
	w.mu.Unlock()

	if id != "" {
		w.cache.Remove(SessionKey(id))
		w.cache.Remove(ResultKey(id))
	}
	w.funnel.Reset()
}

// ---- internals -------------------------------------------------------------

func (w *Workflow) expectStep(want funnel.Step) error {
	if got := w.funnel.Step(); got != want {
		return fmt.Errorf("%w: at %s, need %s", ErrWrongStep, got, want)
	}
	return nil
}

// stepHooks ties a step's request to the funnel: the step is checked again
// once the mutation holds its slot, and the funnel moves before the slot is
// released.
func stepHooks[In, Out any](w *Workflow, at funnel.Step) mutation.Hooks[In, Out] {
	return mutation.Hooks[In, Out]{
		OnMutate: func(context.Context, In) error { return w.expectStep(at) },
		OnSuccess: func(context.Context, In, Out) {
			to, err := w.funnel.AdvanceFrom(at)
			if err != nil {
				w.logger.Warn("funnel did not advance", "step", at.String(), "error", err)
				return
			}
			w.logger.Debug("funnel advanced", "from", at.String(), "to", to.String())
		},
	}
}

// patchSessionStep raises the cached session's step. Steps never decrease.
func (w *Workflow) patchSessionStep(sessionID string, step int) {
	querycache.Update(w.cache, SessionKey(sessionID), func(s domain.CarbonSession) domain.CarbonSession {
		s.Step = max(s.Step, step)
		return s
	})
}

// restartOnExpiry is the OnError hook of every session-scoped mutation.
func restartOnExpiry[In any](w *Workflow) func(context.Context, In, error) {
	return func(_ context.Context, _ In, err error) {
		if errors.Is(err, carbonapi.ErrSessionExpired) {
			w.logger.Warn("carbon session expired, starting over", "error", err)
			w.Restart()
		}
	}
}
