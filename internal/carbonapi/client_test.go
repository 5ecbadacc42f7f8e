package carbonapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/grumeter/internal/carbonapi"
	"github.com/pkordes/grumeter/internal/domain"
)

// ---- helpers ---------------------------------------------------------------

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"data":    data,
		"status":  status,
		"success": status < 400,
	}))
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"success": false,
		"code":    code,
		"message": message,
	})
}

func intPtr(i int) *int { return &i }

func date(s string) openapi_types.Date {
	t, _ := time.Parse("2006-01-02", s)
	return openapi_types.Date{Time: t}
}

// ---- session endpoints ------------------------------------------------------

func TestCreateSession_SendsBearerAndBody(t *testing.T) {
	var gotAuth string
	var gotBody domain.CreateSessionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/carbon/sessions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeEnvelope(t, w, http.StatusCreated, domain.CarbonSession{
			SessionID:        "abc",
			Step:             domain.StepCreated,
			ParticipantCount: gotBody.ParticipantCount,
		})
	}))
	defer srv.Close()

	c := carbonapi.New(srv.URL, carbonapi.WithTokenSource(carbonapi.StaticToken("tok")))

	got, err := c.CreateSession(context.Background(), domain.CreateSessionRequest{ParticipantCount: 2})

	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, 2, gotBody.ParticipantCount)
	assert.Equal(t, "abc", got.SessionID)
	assert.Equal(t, domain.StepCreated, got.Step)
}

func TestCreateSession_NoTokenNoHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeError(w, http.StatusUnauthorized, "unauthorized", "login required")
	}))
	defer srv.Close()

	_, err := carbonapi.New(srv.URL).CreateSession(context.Background(), domain.CreateSessionRequest{ParticipantCount: 1})

	var apiErr *carbonapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "login required", apiErr.UserMessage())
	assert.NotErrorIs(t, err, carbonapi.ErrSessionExpired)
}

func TestSaveRoutes_PathAndWireShape(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/carbon/sessions/s-1/routes", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		writeEnvelope(t, w, http.StatusOK, domain.RoutesResponse{SessionID: "s-1", Step: 2, TransportationEmission: 12.5})
	}))
	defer srv.Close()

	req := domain.RoutesRequest{Routes: []domain.RouteInfo{
		{DepartureLocationID: intPtr(1), ArrivalLocationID: intPtr(2), TransportationTypeID: 6, OrderIndex: 1},
		{CourseID: intPtr(3), TransportationTypeID: 2, OrderIndex: 2},
	}}
	got, err := carbonapi.New(srv.URL).SaveRoutes(context.Background(), "s-1", req)

	require.NoError(t, err)
	assert.Equal(t, 2, got.Step)
	assert.InDelta(t, 12.5, got.TransportationEmission, 1e-9)

	routes := raw["routes"].([]any)
	require.Len(t, routes, 2)
	first := routes[0].(map[string]any)
	assert.EqualValues(t, 1, first["departureLocationId"])
	assert.NotContains(t, first, "courseId")
	second := routes[1].(map[string]any)
	assert.EqualValues(t, 3, second["courseId"])
	assert.NotContains(t, second, "departureLocationId")
}

func TestSaveAccommodations_DatesAreDateOnly(t *testing.T) {
	var raw map[string][]map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/carbon/sessions/s-1/accommodation", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		writeEnvelope(t, w, http.StatusOK, domain.AccommodationsResponse{SessionID: "s-1", Step: 3, AccommodationEmission: 40})
	}))
	defer srv.Close()

	req := domain.AccommodationsRequest{Accommodations: []domain.AccommodationInfo{
		{AccommodationTypeID: 1, StartDate: date("2025-06-01"), EndDate: date("2025-06-03"), OrderIndex: 1},
	}}
	got, err := carbonapi.New(srv.URL).SaveAccommodations(context.Background(), "s-1", req)

	require.NoError(t, err)
	assert.Equal(t, 3, got.Step)
	assert.Equal(t, "2025-06-01", raw["accommodations"][0]["startDate"])
	assert.Equal(t, "2025-06-03", raw["accommodations"][0]["endDate"])
}

func TestCalculate_SessionGoneIsExpired(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, status, "session_expired", "session expired")
		}))

		_, err := carbonapi.New(srv.URL).Calculate(context.Background(), "old")
		srv.Close()

		assert.ErrorIs(t, err, carbonapi.ErrSessionExpired, "status %d", status)
	}
}

func TestCalculate_DecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/carbon/sessions/s-1/calculate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		writeEnvelope(t, w, http.StatusOK, domain.NewCalculationResult(7, domain.EmissionBreakdown{
			Transportation: 10, Accommodation: 20, Course: 5,
		}, 2))
	}))
	defer srv.Close()

	got, err := carbonapi.New(srv.URL).Calculate(context.Background(), "s-1")

	require.NoError(t, err)
	assert.EqualValues(t, 7, got.ResultID)
	assert.InDelta(t, 35, got.TotalCarbonEmission, 1e-9)
	assert.True(t, got.Consistent())
}

// ---- error mapping ----------------------------------------------------------

func TestServerErrorWithoutMessageUsesFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := carbonapi.New(srv.URL).TransportationTypes(context.Background())

	var apiErr *carbonapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Something went wrong. Please try again.", apiErr.UserMessage())
	assert.True(t, carbonapi.Retryable(err))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing listens any more

	_, err := carbonapi.New(url).Locations(context.Background())

	var apiErr *carbonapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Network())
	assert.Equal(t, carbonapi.CodeNetwork, apiErr.Code)
	assert.True(t, carbonapi.Retryable(err))
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"unauthorized", &carbonapi.Error{Status: 401}, false},
		{"not found", &carbonapi.Error{Status: 404}, false},
		{"unprocessable", &carbonapi.Error{Status: 422}, false},
		{"rate limited", &carbonapi.Error{Status: 429}, true},
		{"server", &carbonapi.Error{Status: 503}, true},
		{"network", &carbonapi.Error{Code: carbonapi.CodeNetwork}, true},
		{"canceled", context.Canceled, false},
		{"unknown", errors.New("boom"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, carbonapi.Retryable(tc.err))
		})
	}
}

// ---- catalog endpoints ------------------------------------------------------

func TestCourses_FilterQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/courses", r.URL.Path)
		assert.Equal(t, "Gyeongju", r.URL.Query().Get("areaName"))
		assert.Empty(t, r.URL.Query().Get("tag"))
		writeEnvelope(t, w, http.StatusOK, domain.CoursesResponse{Courses: []domain.CourseSummary{{ID: 1, Title: "Forest"}}})
	}))
	defer srv.Close()

	got, err := carbonapi.New(srv.URL).Courses(context.Background(), domain.CourseFilters{AreaName: "Gyeongju"})

	require.NoError(t, err)
	require.Len(t, got.Courses, 1)
	assert.Equal(t, "Forest", got.Courses[0].Title)
}

func TestToggleCourseLike(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/courses/9/like", r.URL.Path)
		writeEnvelope(t, w, http.StatusOK, domain.LikeState{IsLiked: true, LikeCount: 4})
	}))
	defer srv.Close()

	got, err := carbonapi.New(srv.URL).ToggleCourseLike(context.Background(), 9)

	require.NoError(t, err)
	assert.Equal(t, domain.LikeState{IsLiked: true, LikeCount: 4}, got)
}

// ---- token store ------------------------------------------------------------

func TestFileTokenStore_RoundTrip(t *testing.T) {
	store := carbonapi.FileTokenStore{Path: filepath.Join(t.TempDir(), "nested", "token")}

	tok, err := store.Token()
	require.NoError(t, err)
	assert.Empty(t, tok, "missing file means anonymous")

	require.NoError(t, store.Save("secret"))
	tok, err = store.Token()
	require.NoError(t, err)
	assert.Equal(t, "secret", tok)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear(), "clearing twice is fine")
	tok, err = store.Token()
	require.NoError(t, err)
	assert.Empty(t, tok)
}
