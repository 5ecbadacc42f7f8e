// Package form holds the client-side draft of a carbon calculation session.
//
// Model is an immutable value: every action returns a new Model and leaves
// the receiver untouched, so a draft that was handed to a request can never
// change underneath it. Validation failures are *ValidationError values and
// never reach the network.
package form

import (
	"fmt"
	"slices"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/grumeter/internal/domain"
)

// RouteDraft is one leg of the trip before submission. It is either a city
// pair or an eco-course, and always names a transportation type.
type RouteDraft struct {
	DepartureLocationID  *int
	ArrivalLocationID    *int
	CourseID             *int
	TransportationTypeID int
}

// CityRoute builds a point-to-point draft.
func CityRoute(departure, arrival, transportationType int) RouteDraft {
	return RouteDraft{
		DepartureLocationID:  &departure,
		ArrivalLocationID:    &arrival,
		TransportationTypeID: transportationType,
	}
}

// CourseRoute builds an eco-course draft.
func CourseRoute(course, transportationType int) RouteDraft {
	return RouteDraft{CourseID: &course, TransportationTypeID: transportationType}
}

// IsCourse reports whether d is an eco-course leg.
func (d RouteDraft) IsCourse() bool { return d.CourseID != nil }

// AccommodationDraft is one stay before submission.
type AccommodationDraft struct {
	AccommodationTypeID int
	CheckIn             time.Time
	CheckOut            time.Time
}

// Nights is the number of nights between check-in and check-out.
func (d AccommodationDraft) Nights() int {
	return int(d.CheckOut.Sub(d.CheckIn).Hours() / 24)
}

// Model is the accumulated draft. The zero value has no participants and
// fails ValidatePersonnel; New starts from one participant.
type Model struct {
	sessionID      string
	participants   int
	routes         []RouteDraft
	accommodations []AccommodationDraft
}

// New returns an empty draft for one participant.
func New() Model { return Model{participants: 1} }

// SessionID is the id issued by the server, empty before creation.
func (m Model) SessionID() string { return m.sessionID }

// ParticipantCount is the number of travellers.
func (m Model) ParticipantCount() int { return m.participants }

// Routes returns a copy of the route drafts in order.
func (m Model) Routes() []RouteDraft {
	out := make([]RouteDraft, len(m.routes))
	for i, r := range m.routes {
		out[i] = cloneRoute(r)
	}
	return out
}

// Accommodations returns a copy of the accommodation drafts in order.
func (m Model) Accommodations() []AccommodationDraft { return slices.Clone(m.accommodations) }

// WithParticipantCount sets the number of travellers. n must be at least one.
func (m Model) WithParticipantCount(n int) (Model, error) {
	if n < 1 {
		return m, invalid("participantCount", "Enter at least one participant.")
	}
	m.participants = n
	return m, nil
}

// WithSessionID records the id issued for this draft.
func (m Model) WithSessionID(id string) Model {
	m.sessionID = id
	return m
}

// AddRoute appends d after validating its shape.
func (m Model) AddRoute(d RouteDraft) (Model, error) {
	if err := validateRoute(d); err != nil {
		return m, err
	}
	m.routes = append(slices.Clone(m.routes), cloneRoute(d))
	return m, nil
}

// RemoveRoute drops the route at index i. Order indexes are recomputed on
// submission, not here.
func (m Model) RemoveRoute(i int) (Model, error) {
	if i < 0 || i >= len(m.routes) {
		return m, invalid("routes", fmt.Sprintf("There is no route %d.", i+1))
	}
	m.routes = slices.Delete(slices.Clone(m.routes), i, i+1)
	return m, nil
}

// AddAccommodation appends d. Both dates are required and check-out must
// fall after check-in.
func (m Model) AddAccommodation(d AccommodationDraft) (Model, error) {
	if err := validateAccommodation(d); err != nil {
		return m, err
	}
	m.accommodations = append(slices.Clone(m.accommodations), d)
	return m, nil
}

// RemoveAccommodation drops the accommodation at index i.
func (m Model) RemoveAccommodation(i int) (Model, error) {
	if i < 0 || i >= len(m.accommodations) {
		return m, invalid("accommodations", fmt.Sprintf("There is no accommodation %d.", i+1))
	}
	m.accommodations = slices.Delete(slices.Clone(m.accommodations), i, i+1)
	return m, nil
}

// Reset discards every draft and the session id.
func (m Model) Reset() Model { return New() }

// ValidatePersonnel checks the PERSONNEL step.
func (m Model) ValidatePersonnel() error {
	if m.participants < 1 {
		return invalid("participantCount", "Enter at least one participant.")
	}
	return nil
}

// ValidateRoutes checks the ROUTES step: at least one route.
func (m Model) ValidateRoutes() error {
	if len(m.routes) == 0 {
		return invalid("routes", "Add at least one route.")
	}
	return nil
}

// ValidateAccommodations checks the ACCOMMODATION step: at least one stay.
func (m Model) ValidateAccommodations() error {
	if len(m.accommodations) == 0 {
		return invalid("accommodations", "Add at least one accommodation.")
	}
	return nil
}

// RoutesRequest builds the save-routes payload with orderIndex 1..n in the
// current list order.
func (m Model) RoutesRequest() (domain.RoutesRequest, error) {
	if err := m.ValidateRoutes(); err != nil {
		return domain.RoutesRequest{}, err
	}
	out := make([]domain.RouteInfo, len(m.routes))
	for i, r := range m.routes {
		r = cloneRoute(r)
		out[i] = domain.RouteInfo{
			DepartureLocationID:  r.DepartureLocationID,
			ArrivalLocationID:    r.ArrivalLocationID,
			CourseID:             r.CourseID,
			TransportationTypeID: r.TransportationTypeID,
			OrderIndex:           i + 1,
		}
	}
	return domain.RoutesRequest{Routes: out}, nil
}

// AccommodationsRequest builds the save-accommodation payload with
// orderIndex 1..n in the current list order.
func (m Model) AccommodationsRequest() (domain.AccommodationsRequest, error) {
	if err := m.ValidateAccommodations(); err != nil {
		return domain.AccommodationsRequest{}, err
	}
	out := make([]domain.AccommodationInfo, len(m.accommodations))
	for i, a := range m.accommodations {
		out[i] = domain.AccommodationInfo{
			AccommodationTypeID: a.AccommodationTypeID,
			StartDate:           openapi_types.Date{Time: a.CheckIn},
			EndDate:             openapi_types.Date{Time: a.CheckOut},
			OrderIndex:          i + 1,
		}
	}
	return domain.AccommodationsRequest{Accommodations: out}, nil
}

func validateRoute(d RouteDraft) error {
	hasPair := d.DepartureLocationID != nil && d.ArrivalLocationID != nil
	partialPair := (d.DepartureLocationID == nil) != (d.ArrivalLocationID == nil)
	hasCourse := d.CourseID != nil

	switch {
	case d.TransportationTypeID <= 0:
		return invalid("transportationTypeId", "Choose a means of transport.")
	case hasCourse && (hasPair || partialPair):
		return invalid("routes", "Choose either a departure and arrival or an eco-course, not both.")
	case partialPair:
		return invalid("routes", "Choose both a departure and an arrival.")
	case !hasPair && !hasCourse:
		return invalid("routes", "Choose a departure and arrival or an eco-course.")
	case hasPair && *d.DepartureLocationID == *d.ArrivalLocationID:
		return invalid("routes", "Departure and arrival must differ.")
	}
	return nil
}

func validateAccommodation(d AccommodationDraft) error {
	switch {
	case d.AccommodationTypeID <= 0:
		return invalid("accommodationTypeId", "Choose an accommodation type.")
	case d.CheckIn.IsZero() || d.CheckOut.IsZero():
		return invalid("dates", "Enter both check-in and check-out dates.")
	case !d.CheckOut.After(d.CheckIn):
		return invalid("dates", "Check-out must be after check-in.")
	}
	return nil
}

// cloneRoute copies the pointed-to ids so no two drafts share storage.
func cloneRoute(d RouteDraft) RouteDraft {
	return RouteDraft{
		DepartureLocationID:  clonePtr(d.DepartureLocationID),
		ArrivalLocationID:    clonePtr(d.ArrivalLocationID),
		CourseID:             clonePtr(d.CourseID),
		TransportationTypeID: d.TransportationTypeID,
	}
}

func clonePtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
