// Package handler implements the HTTP handlers for the Grumeter reference API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, carbon.go, etc.) but all share the same Server struct so
// they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/grumeter/internal/domain"
	"github.com/pkordes/grumeter/internal/middleware"
)

// CarbonServicer defines the session operations the carbon handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type CarbonServicer interface {
	Create(ctx context.Context, owner string, req domain.CreateSessionRequest) (domain.CarbonSession, error)
	SaveRoutes(ctx context.Context, owner, sessionID string, req domain.RoutesRequest) (domain.RoutesResponse, error)
	SaveAccommodations(ctx context.Context, owner, sessionID string, req domain.AccommodationsRequest) (domain.AccommodationsResponse, error)
	Calculate(ctx context.Context, owner, sessionID string) (domain.CalculationResult, error)
	Result(ctx context.Context, owner, sessionID string) (domain.CalculationResult, error)
}

// CatalogServicer defines the reference-list operations.
type CatalogServicer interface {
	TransportationTypes(ctx context.Context) ([]domain.TransportationType, error)
	AccommodationTypes(ctx context.Context) ([]domain.AccommodationType, error)
	Locations(ctx context.Context) ([]domain.Location, error)
}

// CourseServicer defines the eco-course operations.
type CourseServicer interface {
	List(ctx context.Context, owner string, filters domain.CourseFilters) (domain.CoursesResponse, error)
	Detail(ctx context.Context, owner string, id int) (domain.CourseDetail, error)
	ToggleLike(ctx context.Context, owner string, id int) (domain.LikeState, error)
}

// Server holds the dependencies of every endpoint.
type Server struct {
	carbon  CarbonServicer
	catalog CatalogServicer
	courses CourseServicer
	log     *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
// A nil logger means slog.Default().
func NewServer(carbon CarbonServicer, catalog CatalogServicer, courses CourseServicer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{carbon: carbon, catalog: catalog, courses: courses, log: log}
}

// NewHealthHandler returns a Server for health-check-only use.
func NewHealthHandler() *Server {
	return NewServer(nil, nil, nil, nil)
}

// Routes returns the API router. /carbon and /courses require a bearer token;
// /healthz, /openapi.yaml and /locations are public.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)
	r.Get("/locations", s.ListLocations)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireBearer)

		r.Route("/carbon", func(r chi.Router) {
			r.Get("/transportation-types", s.ListTransportationTypes)
			r.Get("/accommodation-types", s.ListAccommodationTypes)
			r.Post("/sessions", s.CreateSession)
			r.Route("/sessions/{sessionID}", func(r chi.Router) {
				r.Post("/routes", s.SaveRoutes)
				r.Post("/accommodation", s.SaveAccommodations)
				r.Post("/calculate", s.Calculate)
				r.Get("/result", s.GetResult)
			})
		})

		r.Route("/courses", func(r chi.Router) {
			r.Get("/", s.ListCourses)
			r.Get("/{courseID}", s.GetCourse)
			r.Post("/{courseID}/like", s.ToggleCourseLike)
		})
	})

	return r
}

// owner returns the caller id set by middleware.RequireBearer.
func owner(r *http.Request) string {
	o, _ := middleware.Owner(r.Context())
	return o
}
