package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/grumeter/internal/domain"
	"github.com/pkordes/grumeter/internal/handler"
	"github.com/pkordes/grumeter/internal/middleware"
)

// mockCarbonServicer is a test double for handler.CarbonServicer.
// Set only the method fields your test needs.
type mockCarbonServicer struct {
	create             func(ctx context.Context, owner string, req domain.CreateSessionRequest) (domain.CarbonSession, error)
	saveRoutes         func(ctx context.Context, owner, id string, req domain.RoutesRequest) (domain.RoutesResponse, error)
	saveAccommodations func(ctx context.Context, owner, id string, req domain.AccommodationsRequest) (domain.AccommodationsResponse, error)
	calculate          func(ctx context.Context, owner, id string) (domain.CalculationResult, error)
	result             func(ctx context.Context, owner, id string) (domain.CalculationResult, error)
}

func (m *mockCarbonServicer) Create(ctx context.Context, owner string, req domain.CreateSessionRequest) (domain.CarbonSession, error) {
	return m.create(ctx, owner, req)
}
func (m *mockCarbonServicer) SaveRoutes(ctx context.Context, owner, id string, req domain.RoutesRequest) (domain.RoutesResponse, error) {
	return m.saveRoutes(ctx, owner, id, req)
}
func (m *mockCarbonServicer) SaveAccommodations(ctx context.Context, owner, id string, req domain.AccommodationsRequest) (domain.AccommodationsResponse, error) {
	return m.saveAccommodations(ctx, owner, id, req)
}
func (m *mockCarbonServicer) Calculate(ctx context.Context, owner, id string) (domain.CalculationResult, error) {
	return m.calculate(ctx, owner, id)
}
func (m *mockCarbonServicer) Result(ctx context.Context, owner, id string) (domain.CalculationResult, error) {
	return m.result(ctx, owner, id)
}

// compile-time check: mockCarbonServicer must satisfy handler.CarbonServicer.
var _ handler.CarbonServicer = (*mockCarbonServicer)(nil)

// ---- helpers ---------------------------------------------------------------

const token = "test-token"

// serve runs one request through the full router with a bearer token.
func serve(t *testing.T, srv *handler.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) domain.Envelope[T] {
	t.Helper()
	var env domain.Envelope[T]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func carbonServer(m *mockCarbonServicer) *handler.Server {
	return handler.NewServer(m, nil, nil, nil)
}

// ---- CreateSession ---------------------------------------------------------

func TestCreateSession_201(t *testing.T) {
	var gotOwner string
	m := &mockCarbonServicer{
		create: func(_ context.Context, owner string, req domain.CreateSessionRequest) (domain.CarbonSession, error) {
			gotOwner = owner
			return domain.CarbonSession{SessionID: "s-1", Step: 1, ParticipantCount: req.ParticipantCount}, nil
		},
	}

	rec := serve(t, carbonServer(m), http.MethodPost, "/carbon/sessions", domain.CreateSessionRequest{ParticipantCount: 2})

	require.Equal(t, http.StatusCreated, rec.Code)
	env := decode[domain.CarbonSession](t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, http.StatusCreated, env.Status)
	assert.Equal(t, "s-1", env.Data.SessionID)
	assert.Equal(t, 2, env.Data.ParticipantCount)
	assert.Equal(t, middleware.HashToken(token), gotOwner)
}

func TestCreateSession_RequiresBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/carbon/sessions", bytes.NewBufferString(`{"participantCount":1}`))
	rec := httptest.NewRecorder()

	carbonServer(&mockCarbonServicer{}).Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateSession_MalformedBody_422(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/carbon/sessions", bytes.NewBufferString(`{"participantCount":`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	carbonServer(&mockCarbonServicer{}).Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_error", decode[any](t, rec).Code)
}

// ---- error mapping ---------------------------------------------------------

func TestSaveRoutes_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"validation", fmt.Errorf("service.CarbonService.SaveRoutes: %w: at least one route is required", domain.ErrValidation), http.StatusUnprocessableEntity, "validation_error"},
		{"not found", fmt.Errorf("service.CarbonService.SaveRoutes: %w", domain.ErrNotFound), http.StatusNotFound, "not_found"},
		{"expired", fmt.Errorf("service.CarbonService.SaveRoutes: %w", domain.ErrSessionExpired), http.StatusGone, "session_expired"},
		{"step order", fmt.Errorf("x: %w: routes must be saved first", domain.ErrStepOrder), http.StatusConflict, "step_order"},
		{"internal", errors.New("connection refused"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &mockCarbonServicer{
				saveRoutes: func(context.Context, string, string, domain.RoutesRequest) (domain.RoutesResponse, error) {
					return domain.RoutesResponse{}, tc.err
				},
			}

			rec := serve(t, carbonServer(m), http.MethodPost, "/carbon/sessions/s-1/routes", domain.RoutesRequest{})

			require.Equal(t, tc.wantCode, rec.Code)
			env := decode[any](t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tc.wantCode, env.Status)
			assert.Equal(t, tc.wantBody, env.Code)
			assert.NotContains(t, env.Message, "connection refused", "internal errors are not leaked")
		})
	}
}

func TestSaveRoutes_ValidationMessageIsUnwrapped(t *testing.T) {
	m := &mockCarbonServicer{
		saveRoutes: func(context.Context, string, string, domain.RoutesRequest) (domain.RoutesResponse, error) {
			return domain.RoutesResponse{}, fmt.Errorf("service.CarbonService.SaveRoutes: %w: route 1: departure and arrival must differ", domain.ErrValidation)
		},
	}

	rec := serve(t, carbonServer(m), http.MethodPost, "/carbon/sessions/s-1/routes", domain.RoutesRequest{})

	assert.Equal(t, "route 1: departure and arrival must differ", decode[any](t, rec).Message)
}

// ---- stage endpoints -------------------------------------------------------

func TestSaveRoutes_PassesPathAndBody(t *testing.T) {
	dep, arr := 1, 2
	m := &mockCarbonServicer{
		saveRoutes: func(_ context.Context, _ string, id string, req domain.RoutesRequest) (domain.RoutesResponse, error) {
			assert.Equal(t, "s-9", id)
			require.Len(t, req.Routes, 1)
			assert.Equal(t, 6, req.Routes[0].TransportationTypeID)
			return domain.RoutesResponse{SessionID: id, Step: 2, TransportationEmission: 26.95}, nil
		},
	}
	body := domain.RoutesRequest{Routes: []domain.RouteInfo{{DepartureLocationID: &dep, ArrivalLocationID: &arr, TransportationTypeID: 6, OrderIndex: 1}}}

	rec := serve(t, carbonServer(m), http.MethodPost, "/carbon/sessions/s-9/routes", body)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decode[domain.RoutesResponse](t, rec)
	assert.Equal(t, 2, env.Data.Step)
	assert.InDelta(t, 26.95, env.Data.TransportationEmission, 1e-9)
}

func TestSaveAccommodations_200(t *testing.T) {
	m := &mockCarbonServicer{
		saveAccommodations: func(_ context.Context, _ string, id string, req domain.AccommodationsRequest) (domain.AccommodationsResponse, error) {
			require.Len(t, req.Accommodations, 1)
			assert.Equal(t, "2025-06-01", req.Accommodations[0].StartDate.String())
			return domain.AccommodationsResponse{SessionID: id, Step: 3, AccommodationEmission: 89.6}, nil
		},
	}
	body := bytes.NewBufferString(`{"accommodations":[{"accommodationTypeId":2,"startDate":"2025-06-01","endDate":"2025-06-03","orderIndex":1}]}`)
	req := httptest.NewRequest(http.MethodPost, "/carbon/sessions/s-1/accommodation", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	carbonServer(m).Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[domain.AccommodationsResponse](t, rec).Data.Step)
}

func TestCalculate_200(t *testing.T) {
	want := domain.NewCalculationResult(7, domain.EmissionBreakdown{Transportation: 26.95, Accommodation: 89.6}, 2)
	m := &mockCarbonServicer{
		calculate: func(context.Context, string, string) (domain.CalculationResult, error) { return want, nil },
	}

	rec := serve(t, carbonServer(m), http.MethodPost, "/carbon/sessions/s-1/calculate", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[domain.CalculationResult](t, rec).Data
	assert.Equal(t, want, got)
	assert.True(t, got.Consistent())
}
