package domain

import "time"

// TransportationType is a selectable means of travel with its emission factor.
type TransportationType struct {
	ID                  int     `json:"id"`
	Name                string  `json:"name"`
	Type                string  `json:"type"`
	CarbonEmissionPerKm float64 `json:"carbonEmissionPerKm"`
	Icon                string  `json:"icon"`
}

// AccommodationType is a selectable kind of lodging with its emission factor.
type AccommodationType struct {
	ID                     int     `json:"id"`
	Name                   string  `json:"name"`
	Type                   string  `json:"type"`
	CarbonEmissionPerNight float64 `json:"carbonEmissionPerNight"`
}

// Location is a departure or arrival city.
type Location struct {
	ID   int     `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// SessionRecord is the server-side view of a session: the public mirror plus
// the stored per-stage emissions and the owner's token fingerprint.
type SessionRecord struct {
	CarbonSession
	Emissions EmissionBreakdown
	Owner     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
