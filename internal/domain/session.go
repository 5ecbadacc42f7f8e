// Package domain contains the core data types shared by the Grumeter client
// and the reference API server. Wire types carry their JSON tags here so both
// sides encode the same shapes.
package domain

import (
	"math"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// Session steps as assigned by the server. A session's step never decreases.
const (
	StepCreated             = 1
	StepRoutesSaved         = 2
	StepAccommodationsSaved = 3
	StepCalculated          = 4
)

// CarbonSession is the server-authoritative record of one calculation funnel.
// The client only ever holds a mirror of it.
type CarbonSession struct {
	SessionID        string    `json:"sessionId"`
	Step             int       `json:"step"`
	ParticipantCount int       `json:"participantCount"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s CarbonSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// CreateSessionRequest is the body of POST /carbon/sessions.
type CreateSessionRequest struct {
	ParticipantCount int `json:"participantCount"`
}

// RouteInfo is one leg of a trip as submitted to the server. Exactly one of
// the city pair or CourseID is set.
type RouteInfo struct {
	DepartureLocationID  *int `json:"departureLocationId,omitempty"`
	ArrivalLocationID    *int `json:"arrivalLocationId,omitempty"`
	CourseID             *int `json:"courseId,omitempty"`
	TransportationTypeID int  `json:"transportationTypeId"`
	OrderIndex           int  `json:"orderIndex"`
}

// IsCourse reports whether the route is an eco-course leg.
func (r RouteInfo) IsCourse() bool {
	return r.CourseID != nil
}

// RoutesRequest is the body of POST /carbon/sessions/{id}/routes.
type RoutesRequest struct {
	Routes []RouteInfo `json:"routes"`
}

// RoutesResponse is returned after routes are saved.
type RoutesResponse struct {
	SessionID              string  `json:"sessionId"`
	Step                   int     `json:"step"`
	TransportationEmission float64 `json:"transportationEmission"`
}

// AccommodationInfo is one stay as submitted to the server.
// Dates travel as YYYY-MM-DD.
type AccommodationInfo struct {
	AccommodationTypeID int                `json:"accommodationTypeId"`
	StartDate           openapi_types.Date `json:"startDate"`
	EndDate             openapi_types.Date `json:"endDate"`
	OrderIndex          int                `json:"orderIndex"`
}

// Nights returns the number of nights between StartDate and EndDate.
func (a AccommodationInfo) Nights() int {
	return int(a.EndDate.Sub(a.StartDate.Time).Hours() / 24)
}

// AccommodationsRequest is the body of POST /carbon/sessions/{id}/accommodation.
type AccommodationsRequest struct {
	Accommodations []AccommodationInfo `json:"accommodations"`
}

// AccommodationsResponse is returned after accommodations are saved.
type AccommodationsResponse struct {
	SessionID             string  `json:"sessionId"`
	Step                  int     `json:"step"`
	AccommodationEmission float64 `json:"accommodationEmission"`
}

// EmissionBreakdown splits a total into its three sources, in kg CO2e.
type EmissionBreakdown struct {
	Transportation float64 `json:"transportation"`
	Accommodation  float64 `json:"accommodation"`
	Course         float64 `json:"course"`
}

// Sum returns the total of all three sources.
func (b EmissionBreakdown) Sum() float64 {
	return b.Transportation + b.Accommodation + b.Course
}

// CalculationResult is the final, immutable outcome of a session.
type CalculationResult struct {
	ResultID            int64             `json:"resultId"`
	TotalCarbonEmission float64           `json:"totalCarbonEmission"`
	Result              EmissionBreakdown `json:"result"`
	ParticipantCount    int               `json:"participantCount"`
}

// NewCalculationResult builds a result whose total is the breakdown's sum.
func NewCalculationResult(id int64, b EmissionBreakdown, participants int) CalculationResult {
	return CalculationResult{
		ResultID:            id,
		TotalCarbonEmission: b.Sum(),
		Result:              b,
		ParticipantCount:    participants,
	}
}

// sumTolerance is the relative tolerance used by Consistent.
const sumTolerance = 1e-6

// Consistent reports whether the three sources add up to the total within
// floating-point tolerance.
func (r CalculationResult) Consistent() bool {
	diff := math.Abs(r.Result.Sum() - r.TotalCarbonEmission)
	scale := math.Max(1, math.Abs(r.TotalCarbonEmission))
	return diff <= sumTolerance*scale
}
