package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/grumeter/internal/domain"
)

// CreateSession handles POST /carbon/sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err, "session")
		return
	}

	sess, err := s.carbon.Create(r.Context(), owner(r), req)
	if err != nil {
		s.fail(w, r, err, "session")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// SaveRoutes handles POST /carbon/sessions/{sessionID}/routes.
func (s *Server) SaveRoutes(w http.ResponseWriter, r *http.Request) {
	var req domain.RoutesRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err, "session")
		return
	}

	resp, err := s.carbon.SaveRoutes(r.Context(), owner(r), chi.URLParam(r, "sessionID"), req)
	if err != nil {
		s.fail(w, r, err, "session")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SaveAccommodations handles POST /carbon/sessions/{sessionID}/accommodation.
func (s *Server) SaveAccommodations(w http.ResponseWriter, r *http.Request) {
	var req domain.AccommodationsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err, "session")
		return
	}

	resp, err := s.carbon.SaveAccommodations(r.Context(), owner(r), chi.URLParam(r, "sessionID"), req)
	if err != nil {
		s.fail(w, r, err, "session")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Calculate handles POST /carbon/sessions/{sessionID}/calculate.
// The request has no body.
func (s *Server) Calculate(w http.ResponseWriter, r *http.Request) {
	res, err := s.carbon.Calculate(r.Context(), owner(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, err, "session")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
