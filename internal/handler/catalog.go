package handler

import "net/http"

// ListTransportationTypes handles GET /carbon/transportation-types.
func (s *Server) ListTransportationTypes(w http.ResponseWriter, r *http.Request) {
	out, err := s.catalog.TransportationTypes(r.Context())
	if err != nil {
		s.fail(w, r, err, "transportation type")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ListAccommodationTypes handles GET /carbon/accommodation-types.
func (s *Server) ListAccommodationTypes(w http.ResponseWriter, r *http.Request) {
	out, err := s.catalog.AccommodationTypes(r.Context())
	if err != nil {
		s.fail(w, r, err, "accommodation type")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ListLocations handles GET /locations.
func (s *Server) ListLocations(w http.ResponseWriter, r *http.Request) {
	out, err := s.catalog.Locations(r.Context())
	if err != nil {
		s.fail(w, r, err, "location")
		return
	}
	writeJSON(w, http.StatusOK, out)
}
