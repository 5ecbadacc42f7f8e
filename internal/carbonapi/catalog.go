package carbonapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkordes/grumeter/internal/domain"
)

// TransportationTypes lists the selectable means of travel.
func (c *Client) TransportationTypes(ctx context.Context) ([]domain.TransportationType, error) {
	out, err := do[[]domain.TransportationType](ctx, c, http.MethodGet, "/carbon/transportation-types", nil)
	if err != nil {
		return nil, fmt.Errorf("carbonapi.Client.TransportationTypes: %w", err)
	}
	return out, nil
}

// AccommodationTypes lists the selectable kinds of lodging.
func (c *Client) AccommodationTypes(ctx context.Context) ([]domain.AccommodationType, error) {
	out, err := do[[]domain.AccommodationType](ctx, c, http.MethodGet, "/carbon/accommodation-types", nil)
	if err != nil {
		return nil, fmt.Errorf("carbonapi.Client.AccommodationTypes: %w", err)
	}
	return out, nil
}

// Locations lists the cities usable as route endpoints.
func (c *Client) Locations(ctx context.Context) ([]domain.Location, error) {
	out, err := do[[]domain.Location](ctx, c, http.MethodGet, "/locations", nil)
	if err != nil {
		return nil, fmt.Errorf("carbonapi.Client.Locations: %w", err)
	}
	return out, nil
}

// Courses lists eco-courses matching filters.
func (c *Client) Courses(ctx context.Context, filters domain.CourseFilters) (domain.CoursesResponse, error) {
	path := "/courses"
	q := url.Values{}
	if filters.AreaName != "" {
		q.Set("areaName", filters.AreaName)
	}
	if filters.SigunguName != "" {
		q.Set("sigunguName", filters.SigunguName)
	}
	if filters.Tag != "" {
		q.Set("tag", filters.Tag)
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	out, err := do[domain.CoursesResponse](ctx, c, http.MethodGet, path, nil)
	if err != nil {
		return domain.CoursesResponse{}, fmt.Errorf("carbonapi.Client.Courses: %w", err)
	}
	return out, nil
}

// Course fetches one eco-course.
func (c *Client) Course(ctx context.Context, courseID int) (domain.CourseDetail, error) {
	out, err := do[domain.CourseDetail](ctx, c, http.MethodGet, "/courses/"+strconv.Itoa(courseID), nil)
	if err != nil {
		return domain.CourseDetail{}, fmt.Errorf("carbonapi.Client.Course: %w", err)
	}
	return out, nil
}

// ToggleCourseLike flips the caller's like on a course.
func (c *Client) ToggleCourseLike(ctx context.Context, courseID int) (domain.LikeState, error) {
	out, err := do[domain.LikeState](ctx, c, http.MethodPost, "/courses/"+strconv.Itoa(courseID)+"/like", nil)
	if err != nil {
		return domain.LikeState{}, fmt.Errorf("carbonapi.Client.ToggleCourseLike: %w", err)
	}
	return out, nil
}
