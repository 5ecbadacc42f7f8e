package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/grumeter/internal/domain"
	"github.com/pkordes/grumeter/internal/handler"
)

// mockCourseServicer is a test double for handler.CourseServicer.
type mockCourseServicer struct {
	list       func(ctx context.Context, owner string, filters domain.CourseFilters) (domain.CoursesResponse, error)
	detail     func(ctx context.Context, owner string, id int) (domain.CourseDetail, error)
	toggleLike func(ctx context.Context, owner string, id int) (domain.LikeState, error)
}

func (m *mockCourseServicer) List(ctx context.Context, owner string, filters domain.CourseFilters) (domain.CoursesResponse, error) {
	return m.list(ctx, owner, filters)
}
func (m *mockCourseServicer) Detail(ctx context.Context, owner string, id int) (domain.CourseDetail, error) {
	return m.detail(ctx, owner, id)
}
func (m *mockCourseServicer) ToggleLike(ctx context.Context, owner string, id int) (domain.LikeState, error) {
	return m.toggleLike(ctx, owner, id)
}

var _ handler.CourseServicer = (*mockCourseServicer)(nil)

// mockCatalogServicer is a test double for handler.CatalogServicer.
type mockCatalogServicer struct {
	transportationTypes func(ctx context.Context) ([]domain.TransportationType, error)
	accommodationTypes  func(ctx context.Context) ([]domain.AccommodationType, error)
	locations           func(ctx context.Context) ([]domain.Location, error)
}

func (m *mockCatalogServicer) TransportationTypes(ctx context.Context) ([]domain.TransportationType, error) {
	return m.transportationTypes(ctx)
}
func (m *mockCatalogServicer) AccommodationTypes(ctx context.Context) ([]domain.AccommodationType, error) {
	return m.accommodationTypes(ctx)
}
func (m *mockCatalogServicer) Locations(ctx context.Context) ([]domain.Location, error) {
	return m.locations(ctx)
}

var _ handler.CatalogServicer = (*mockCatalogServicer)(nil)

func courseServer(m *mockCourseServicer) *handler.Server {
	return handler.NewServer(nil, nil, m, nil)
}

func TestListCourses_PassesFilters(t *testing.T) {
	var got domain.CourseFilters
	m := &mockCourseServicer{
		list: func(_ context.Context, _ string, f domain.CourseFilters) (domain.CoursesResponse, error) {
			got = f
			return domain.CoursesResponse{Courses: []domain.CourseSummary{{ID: 1, Title: "Forest"}}}, nil
		},
	}

	rec := serve(t, courseServer(m), http.MethodGet, "/courses?areaName=Ulsan&tag=walking", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.CourseFilters{AreaName: "Ulsan", Tag: "walking"}, got)
	assert.Equal(t, "Forest", decode[domain.CoursesResponse](t, rec).Data.Courses[0].Title)
}

func TestGetCourse(t *testing.T) {
	m := &mockCourseServicer{
		detail: func(_ context.Context, _ string, id int) (domain.CourseDetail, error) {
			if id != 3 {
				return domain.CourseDetail{}, domain.ErrNotFound
			}
			return domain.CourseDetail{CourseSummary: domain.CourseSummary{ID: 3}, Tags: []string{"heritage"}}, nil
		},
	}

	ok := serve(t, courseServer(m), http.MethodGet, "/courses/3", nil)
	require.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, []string{"heritage"}, decode[domain.CourseDetail](t, ok).Data.Tags)

	missing := serve(t, courseServer(m), http.MethodGet, "/courses/4", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, "course not found", decode[any](t, missing).Message)

	bad := serve(t, courseServer(m), http.MethodGet, "/courses/abc", nil)
	assert.Equal(t, http.StatusNotFound, bad.Code)
}

func TestToggleCourseLike(t *testing.T) {
	m := &mockCourseServicer{
		toggleLike: func(_ context.Context, _ string, id int) (domain.LikeState, error) {
			assert.Equal(t, 9, id)
			return domain.LikeState{IsLiked: true, LikeCount: 4}, nil
		},
	}

	rec := serve(t, courseServer(m), http.MethodPost, "/courses/9/like", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.LikeState{IsLiked: true, LikeCount: 4}, decode[domain.LikeState](t, rec).Data)
}

func TestToggleCourseLike_WrongMethod(t *testing.T) {
	rec := serve(t, courseServer(&mockCourseServicer{}), http.MethodGet, "/courses/9/like", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCatalog(t *testing.T) {
	m := &mockCatalogServicer{
		transportationTypes: func(context.Context) ([]domain.TransportationType, error) {
			return []domain.TransportationType{{ID: 6, Type: "train"}}, nil
		},
		locations: func(context.Context) ([]domain.Location, error) {
			return nil, errors.New("db down")
		},
	}
	srv := handler.NewServer(nil, m, nil, nil)

	types := serve(t, srv, http.MethodGet, "/carbon/transportation-types", nil)
	require.Equal(t, http.StatusOK, types.Code)
	assert.Equal(t, "train", decode[[]domain.TransportationType](t, types).Data[0].Type)

	// /locations is public.
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/locations", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
