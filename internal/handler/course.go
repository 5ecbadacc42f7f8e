package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/grumeter/internal/domain"
)

// ListCourses handles GET /courses.
// Supports ?areaName=, ?sigunguName= and ?tag= filters.
func (s *Server) ListCourses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := domain.CourseFilters{
		AreaName:    q.Get("areaName"),
		SigunguName: q.Get("sigunguName"),
		Tag:         q.Get("tag"),
	}

	resp, err := s.courses.List(r.Context(), owner(r), filters)
	if err != nil {
		s.fail(w, r, err, "course")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetCourse handles GET /courses/{courseID}.
func (s *Server) GetCourse(w http.ResponseWriter, r *http.Request) {
	id, err := courseID(r)
	if err != nil {
		s.fail(w, r, err, "course")
		return
	}

	d, err := s.courses.Detail(r.Context(), owner(r), id)
	if err != nil {
		s.fail(w, r, err, "course")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ToggleCourseLike handles POST /courses/{courseID}/like.
func (s *Server) ToggleCourseLike(w http.ResponseWriter, r *http.Request) {
	id, err := courseID(r)
	if err != nil {
		s.fail(w, r, err, "course")
		return
	}

	st, err := s.courses.ToggleLike(r.Context(), owner(r), id)
	if err != nil {
		s.fail(w, r, err, "course")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// courseID parses the {courseID} path parameter. Non-numeric ids cannot
// name a course, so they are reported as not found.
func courseID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "courseID"))
	if err != nil {
		return 0, fmt.Errorf("handler.courseID: %w", domain.ErrNotFound)
	}
	return id, nil
}
