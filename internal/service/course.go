package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkordes/grumeter/internal/domain"
	"github.com/pkordes/grumeter/internal/repo"
)

// CourseService implements the eco-course list, detail and like operations.
type CourseService struct {
	repo repo.CourseRepo
}

// NewCourseService constructs a CourseService backed by the provided CourseRepo.
func NewCourseService(r repo.CourseRepo) *CourseService {
	return &CourseService{repo: r}
}

// List returns the courses matching filters. Surrounding whitespace in
// filter values is ignored.
func (s *CourseService) List(ctx context.Context, owner string, filters domain.CourseFilters) (domain.CoursesResponse, error) {
	filters = domain.CourseFilters{
		AreaName:    strings.TrimSpace(filters.AreaName),
		SigunguName: strings.TrimSpace(filters.SigunguName),
		Tag:         strings.TrimSpace(filters.Tag),
	}
	courses, err := s.repo.List(ctx, filters, owner)
	if err != nil {
		return domain.CoursesResponse{}, fmt.Errorf("service.CourseService.List: %w", err)
	}
	return domain.CoursesResponse{Courses: courses}, nil
}

// Detail returns one course and counts the view.
func (s *CourseService) Detail(ctx context.Context, owner string, id int) (domain.CourseDetail, error) {
	if id < 1 {
		return domain.CourseDetail{}, fmt.Errorf("service.CourseService.Detail: %w", domain.ErrNotFound)
	}
	if err := s.repo.IncrementViews(ctx, id); err != nil {
		return domain.CourseDetail{}, fmt.Errorf("service.CourseService.Detail: %w", err)
	}
	d, err := s.repo.GetByID(ctx, id, owner)
	if err != nil {
		return domain.CourseDetail{}, fmt.Errorf("service.CourseService.Detail: %w", err)
	}
	return d, nil
}

// ToggleLike flips owner's like on a course.
func (s *CourseService) ToggleLike(ctx context.Context, owner string, id int) (domain.LikeState, error) {
	if id < 1 {
		return domain.LikeState{}, fmt.Errorf("service.CourseService.ToggleLike: %w", domain.ErrNotFound)
	}
	st, err := s.repo.ToggleLike(ctx, id, owner)
	if err != nil {
		return domain.LikeState{}, fmt.Errorf("service.CourseService.ToggleLike: %w", err)
	}
	return st, nil
}
