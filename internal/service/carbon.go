// Package service contains the business logic for the Grumeter reference API.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// Services depend on repo interfaces and never issue SQL.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/grumeter/internal/domain"
	"github.com/pkordes/grumeter/internal/repo"
)

// CarbonService runs the server side of the calculation funnel: it opens
// sessions, prices each saved stage and produces the final result.
type CarbonService struct {
	sessions  repo.SessionRepo
	reference repo.ReferenceRepo
	courses   repo.CourseRepo
	ttl       time.Duration
	now       func() time.Time
}

// CarbonOption configures a CarbonService.
type CarbonOption func(*CarbonService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CarbonOption {
	return func(s *CarbonService) { s.now = now }
}

// NewCarbonService constructs a CarbonService. Sessions expire ttl after creation.
func NewCarbonService(sessions repo.SessionRepo, reference repo.ReferenceRepo, courses repo.CourseRepo, ttl time.Duration, opts ...CarbonOption) *CarbonService {
	s := &CarbonService{
		sessions:  sessions,
		reference: reference,
		courses:   courses,
		ttl:       ttl,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create opens a session for owner.
func (s *CarbonService) Create(ctx context.Context, owner string, req domain.CreateSessionRequest) (domain.CarbonSession, error) {
	if req.ParticipantCount < 1 {
		return domain.CarbonSession{}, fmt.Errorf("service.CarbonService.Create: %w: participantCount must be at least 1", domain.ErrValidation)
	}

	rec, err := s.sessions.Create(ctx, uuid.New(), owner, req.ParticipantCount, s.now().Add(s.ttl))
	if err != nil {
		return domain.CarbonSession{}, fmt.Errorf("service.CarbonService.Create: %w", err)
	}
	return rec.CarbonSession, nil
}

// SaveRoutes validates and prices the trip's legs.
// City legs are priced by great-circle distance; course legs by the course's
// distance plus the course's own per-person footprint.
func (s *CarbonService) SaveRoutes(ctx context.Context, owner, sessionID string, req domain.RoutesRequest) (domain.RoutesResponse, error) {
	rec, id, err := s.load(ctx, owner, sessionID)
	if err != nil {
		return domain.RoutesResponse{}, fmt.Errorf("service.CarbonService.SaveRoutes: %w", err)
	}
	routes, err := s.priceRoutes(ctx, req.Routes, rec.ParticipantCount)
	if err != nil {
		return domain.RoutesResponse{}, fmt.Errorf("service.CarbonService.SaveRoutes: %w", err)
	}

	saved, err := s.sessions.SaveRoutes(ctx, id, req.Routes, routes.Transportation, routes.Course)
	if err != nil {
		return domain.RoutesResponse{}, fmt.Errorf("service.CarbonService.SaveRoutes: %w", err)
	}
	return domain.RoutesResponse{
		SessionID:              saved.SessionID,
		Step:                   saved.Step,
		TransportationEmission: saved.Emissions.Transportation,
	}, nil
}

// SaveAccommodations validates and prices the trip's stays.
// Routes must have been saved first.
func (s *CarbonService) SaveAccommodations(ctx context.Context, owner, sessionID string, req domain.AccommodationsRequest) (domain.AccommodationsResponse, error) {
	rec, id, err := s.load(ctx, owner, sessionID)
	if err != nil {
		return domain.AccommodationsResponse{}, fmt.Errorf("service.CarbonService.SaveAccommodations: %w", err)
	}
	if rec.Step < domain.StepRoutesSaved {
		return domain.AccommodationsResponse{}, fmt.Errorf("service.CarbonService.SaveAccommodations: %w: routes must be saved first", domain.ErrStepOrder)
	}
	total, err := s.priceStays(ctx, req.Accommodations, rec.ParticipantCount)
	if err != nil {
		return domain.AccommodationsResponse{}, fmt.Errorf("service.CarbonService.SaveAccommodations: %w", err)
	}

	saved, err := s.sessions.SaveAccommodations(ctx, id, req.Accommodations, total)
	if err != nil {
		return domain.AccommodationsResponse{}, fmt.Errorf("service.CarbonService.SaveAccommodations: %w", err)
	}
	return domain.AccommodationsResponse{
		SessionID:             saved.SessionID,
		Step:                  saved.Step,
		AccommodationEmission: saved.Emissions.Accommodation,
	}, nil
}

// Calculate produces the session's result from the stored subtotals.
// Calculating again returns the stored result; saving routes or stays drops
// it, so the next call recomputes.
func (s *CarbonService) Calculate(ctx context.Context, owner, sessionID string) (domain.CalculationResult, error) {
	rec, id, err := s.load(ctx, owner, sessionID)
	if err != nil {
		return domain.CalculationResult{}, fmt.Errorf("service.CarbonService.Calculate: %w", err)
	}

	existing, err := s.sessions.GetResult(ctx, id)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.CalculationResult{}, fmt.Errorf("service.CarbonService.Calculate: %w", err)
	}

	if rec.Step < domain.StepAccommodationsSaved {
		return domain.CalculationResult{}, fmt.Errorf("service.CarbonService.Calculate: %w: accommodations must be saved first", domain.ErrStepOrder)
	}

	res, err := s.sessions.SaveResult(ctx, id, rec.Emissions, rec.ParticipantCount)
	if err != nil {
		return domain.CalculationResult{}, fmt.Errorf("service.CarbonService.Calculate: %w", err)
	}
	return res, nil
}

// Result returns the stored result of a calculated session.
func (s *CarbonService) Result(ctx context.Context, owner, sessionID string) (domain.CalculationResult, error) {
	_, id, err := s.load(ctx, owner, sessionID)
	if err != nil {
		return domain.CalculationResult{}, fmt.Errorf("service.CarbonService.Result: %w", err)
	}
	res, err := s.sessions.GetResult(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.CalculationResult{}, fmt.Errorf("service.CarbonService.Result: %w: session has not been calculated", domain.ErrStepOrder)
	}
	if err != nil {
		return domain.CalculationResult{}, fmt.Errorf("service.CarbonService.Result: %w", err)
	}
	return res, nil
}

// SweepExpired deletes every expired session.
func (s *CarbonService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("service.CarbonService.SweepExpired: %w", err)
	}
	return n, nil
}

// load fetches a session owned by owner. Malformed ids and sessions of
// other owners are reported as not found.
func (s *CarbonService) load(ctx context.Context, owner, sessionID string) (domain.SessionRecord, uuid.UUID, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return domain.SessionRecord{}, uuid.Nil, domain.ErrNotFound
	}
	rec, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return domain.SessionRecord{}, uuid.Nil, err
	}
	if rec.Owner != owner {
		return domain.SessionRecord{}, uuid.Nil, domain.ErrNotFound
	}
	if rec.Expired(s.now()) {
		return domain.SessionRecord{}, uuid.Nil, domain.ErrSessionExpired
	}
	return rec, id, nil
}

func (s *CarbonService) priceRoutes(ctx context.Context, routes []domain.RouteInfo, participants int) (domain.EmissionBreakdown, error) {
	if len(routes) == 0 {
		return domain.EmissionBreakdown{}, fmt.Errorf("%w: at least one route is required", domain.ErrValidation)
	}
	if err := contiguous(len(routes), func(i int) int { return routes[i].OrderIndex }); err != nil {
		return domain.EmissionBreakdown{}, err
	}

	transport, err := s.reference.TransportationTypes(ctx)
	if err != nil {
		return domain.EmissionBreakdown{}, err
	}
	locations, err := s.reference.Locations(ctx)
	if err != nil {
		return domain.EmissionBreakdown{}, err
	}
	perKm := index(transport, func(t domain.TransportationType) int { return t.ID })
	locs := index(locations, func(l domain.Location) int { return l.ID })

	var b domain.EmissionBreakdown
	n := float64(participants)
	for _, r := range routes {
		tt, ok := perKm[r.TransportationTypeID]
		if !ok {
			return domain.EmissionBreakdown{}, fmt.Errorf("%w: route %d: unknown transportationTypeId %d", domain.ErrValidation, r.OrderIndex, r.TransportationTypeID)
		}
		km, course, err := s.legDistance(ctx, r, locs)
		if err != nil {
			return domain.EmissionBreakdown{}, err
		}
		b.Transportation += km * tt.CarbonEmissionPerKm * n
		b.Course += course * n
	}

	b.Transportation = round2(b.Transportation)
	b.Course = round2(b.Course)
	return b, nil
}

// legDistance returns a leg's length in km and, for course legs, the course's
// per-person footprint.
func (s *CarbonService) legDistance(ctx context.Context, r domain.RouteInfo, locs map[int]domain.Location) (km, course float64, err error) {
	hasPair := r.DepartureLocationID != nil || r.ArrivalLocationID != nil
	switch {
	case r.IsCourse() && hasPair:
		return 0, 0, fmt.Errorf("%w: route %d: give either a city pair or a courseId, not both", domain.ErrValidation, r.OrderIndex)
	case r.IsCourse():
		c, err := s.courses.GetByID(ctx, *r.CourseID, "")
		if errors.Is(err, domain.ErrNotFound) {
			return 0, 0, fmt.Errorf("%w: route %d: unknown courseId %d", domain.ErrValidation, r.OrderIndex, *r.CourseID)
		}
		if err != nil {
			return 0, 0, err
		}
		return c.DistanceKm, c.TotalCarbonEmission, nil
	case r.DepartureLocationID == nil || r.ArrivalLocationID == nil:
		return 0, 0, fmt.Errorf("%w: route %d: departure and arrival are both required", domain.ErrValidation, r.OrderIndex)
	}

	dep, ok := locs[*r.DepartureLocationID]
	if !ok {
		return 0, 0, fmt.Errorf("%w: route %d: unknown departureLocationId %d", domain.ErrValidation, r.OrderIndex, *r.DepartureLocationID)
	}
	arr, ok := locs[*r.ArrivalLocationID]
	if !ok {
		return 0, 0, fmt.Errorf("%w: route %d: unknown arrivalLocationId %d", domain.ErrValidation, r.OrderIndex, *r.ArrivalLocationID)
	}
	if dep.ID == arr.ID {
		return 0, 0, fmt.Errorf("%w: route %d: departure and arrival must differ", domain.ErrValidation, r.OrderIndex)
	}
	return greatCircleKm(dep, arr), 0, nil
}

func (s *CarbonService) priceStays(ctx context.Context, stays []domain.AccommodationInfo, participants int) (float64, error) {
	if len(stays) == 0 {
		return 0, fmt.Errorf("%w: at least one accommodation is required", domain.ErrValidation)
	}
	if err := contiguous(len(stays), func(i int) int { return stays[i].OrderIndex }); err != nil {
		return 0, err
	}

	types, err := s.reference.AccommodationTypes(ctx)
	if err != nil {
		return 0, err
	}
	perNight := index(types, func(t domain.AccommodationType) int { return t.ID })

	var total float64
	for _, a := range stays {
		at, ok := perNight[a.AccommodationTypeID]
		if !ok {
			return 0, fmt.Errorf("%w: accommodation %d: unknown accommodationTypeId %d", domain.ErrValidation, a.OrderIndex, a.AccommodationTypeID)
		}
		if a.StartDate.IsZero() || a.EndDate.IsZero() {
			return 0, fmt.Errorf("%w: accommodation %d: startDate and endDate are required", domain.ErrValidation, a.OrderIndex)
		}
		if !a.EndDate.After(a.StartDate.Time) {
			return 0, fmt.Errorf("%w: accommodation %d: endDate must be after startDate", domain.ErrValidation, a.OrderIndex)
		}
		total += float64(a.Nights()) * at.CarbonEmissionPerNight * float64(participants)
	}
	return round2(total), nil
}

// contiguous checks that the n order indexes are exactly 1..n.
func contiguous(n int, orderIndex func(int) int) error {
	got := make([]int, n)
	for i := range got {
		got[i] = orderIndex(i)
	}
	slices.Sort(got)
	for i, v := range got {
		if v != i+1 {
			return fmt.Errorf("%w: orderIndex must run 1..%d without gaps", domain.ErrValidation, n)
		}
	}
	return nil
}

func index[T any](items []T, id func(T) int) map[int]T {
	m := make(map[int]T, len(items))
	for _, it := range items {
		m[id(it)] = it
	}
	return m
}

const earthRadiusKm = 6371.0

// greatCircleKm is the haversine distance between two locations.
func greatCircleKm(a, b domain.Location) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(b.Lat - a.Lat)
	dLng := rad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Lat))*math.Cos(rad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
