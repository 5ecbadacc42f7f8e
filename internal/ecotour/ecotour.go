// Package ecotour reads eco-tour courses through the query cache and toggles
// likes on them.
//
// A like patches the course's detail entry in place and invalidates every
// cached list, since any list may show the course's like count.
package ecotour

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pkordes/grumeter/internal/carbonapi"
	"github.com/pkordes/grumeter/internal/domain"
	"github.com/pkordes/grumeter/internal/mutation"
	"github.com/pkordes/grumeter/internal/querycache"
)

// ListStaleTime is how long a course search result stays fresh.
const ListStaleTime = 30 * time.Second

// API is the subset of the carbon API serving courses.
type API interface {
	Courses(ctx context.Context, filters domain.CourseFilters) (domain.CoursesResponse, error)
	Course(ctx context.Context, courseID int) (domain.CourseDetail, error)
	ToggleCourseLike(ctx context.Context, courseID int) (domain.LikeState, error)
}

var _ API = (*carbonapi.Client)(nil)

// ListsKey is the prefix shared by every course list entry.
var ListsKey = querycache.Key{"eco-tours", "list"}

// ListKey is the cache key of one filtered course list.
func ListKey(filters domain.CourseFilters) querycache.Key {
	return ListsKey.Append(filters)
}

// DetailKey is the cache key of one course.
func DetailKey(courseID int) querycache.Key {
	return querycache.Key{"eco-tours", "detail", courseID}
}

// Service is safe for concurrent use.
type Service struct {
	api    API
	cache  *querycache.Cache
	logger *slog.Logger

	mu    sync.Mutex
	likes map[int]*mutation.Mutation[int, domain.LikeState]
}

// NewService returns a Service reading through cache. A nil logger means
// slog.Default().
func NewService(api API, cache *querycache.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:    api,
		cache:  cache,
		logger: logger,
		likes:  make(map[int]*mutation.Mutation[int, domain.LikeState]),
	}
}

// List returns the courses matching filters.
func (s *Service) List(ctx context.Context, filters domain.CourseFilters) ([]domain.CourseSummary, error) {
	resp, err := querycache.Fetch(ctx, s.cache, ListKey(filters),
		func(ctx context.Context) (domain.CoursesResponse, error) { return s.api.Courses(ctx, filters) },
		querycache.QueryOptions{StaleTime: ListStaleTime})
	if err != nil {
		return nil, fmt.Errorf("ecotour.Service.List: %w", err)
	}
	return resp.Courses, nil
}

// Detail returns one course.
func (s *Service) Detail(ctx context.Context, courseID int) (domain.CourseDetail, error) {
	d, err := querycache.Fetch(ctx, s.cache, DetailKey(courseID),
		func(ctx context.Context) (domain.CourseDetail, error) { return s.api.Course(ctx, courseID) },
		querycache.QueryOptions{})
	if err != nil {
		return domain.CourseDetail{}, fmt.Errorf("ecotour.Service.Detail: %w", err)
	}
	return d, nil
}

// ToggleLike flips the caller's like on a course. Only one toggle per course
// runs at a time; a second returns mutation.ErrInFlight.
func (s *Service) ToggleLike(ctx context.Context, courseID int) (domain.LikeState, error) {
	st, err := s.likeMutation(courseID).Run(ctx, courseID)
	if err != nil {
		return domain.LikeState{}, fmt.Errorf("ecotour.Service.ToggleLike: %w", err)
	}
	return st, nil
}

func (s *Service) likeMutation(courseID int) *mutation.Mutation[int, domain.LikeState] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.likes[courseID]; ok {
		return m
	}
	m := mutation.New(fmt.Sprintf("toggleCourseLike[%d]", courseID), s.api.ToggleCourseLike,
		mutation.Hooks[int, domain.LikeState]{OnSuccess: s.applyLike},
		mutation.WithLogger(s.logger))
	s.likes[courseID] = m
	return m
}

func (s *Service) applyLike(_ context.Context, courseID int, st domain.LikeState) {
	querycache.Update(s.cache, DetailKey(courseID), func(d domain.CourseDetail) domain.CourseDetail {
		d.IsLiked = st.IsLiked
		d.LikeCount = st.LikeCount
		return d
	})
	n := s.cache.Invalidate(ListsKey)
	s.logger.Debug("course like applied", "course_id", courseID, "liked", st.IsLiked, "lists_invalidated", n)
}
