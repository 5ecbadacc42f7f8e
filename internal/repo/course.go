package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pkordes/grumeter/internal/domain"
)

// CourseRepo defines the persistence operations for eco-courses.
// owner is the caller's token fingerprint; it only affects IsLiked.
type CourseRepo interface {
	// List returns courses matching filters, most liked first.
	List(ctx context.Context, filters domain.CourseFilters, owner string) ([]domain.CourseSummary, error)

	// GetByID returns one course with its tags.
	// Returns domain.ErrNotFound if no course with that ID exists.
	GetByID(ctx context.Context, id int, owner string) (domain.CourseDetail, error)

	// IncrementViews bumps the view counter of a course.
	// Returns domain.ErrNotFound if no course with that ID exists.
	IncrementViews(ctx context.Context, id int) error

	// ToggleLike flips owner's like on a course and returns the new state.
	// Returns domain.ErrNotFound if no course with that ID exists.
	ToggleLike(ctx context.Context, id int, owner string) (domain.LikeState, error)
}

type pgCourseRepo struct {
	db db
}

// NewCourseRepo constructs a CourseRepo backed by the provided db connection.
func NewCourseRepo(db db) CourseRepo {
	return &pgCourseRepo{db: db}
}

const courseColumns = `
	c.id, c.title, c.thumbnail_url, c.area_name, c.sigungu_name,
	c.total_carbon_emission, c.distance_km, c.view_count,
	(SELECT count(*) FROM course_likes l WHERE l.course_id = c.id) AS like_count,
	EXISTS (SELECT 1 FROM course_likes l WHERE l.course_id = c.id AND l.owner = @owner) AS is_liked`

func (r *pgCourseRepo) List(ctx context.Context, filters domain.CourseFilters, owner string) ([]domain.CourseSummary, error) {
	// Empty filter values match everything.
	q := `
		SELECT ` + courseColumns + `
		FROM courses c
		WHERE (@area = '' OR c.area_name = @area)
		  AND (@sigungu = '' OR c.sigungu_name = @sigungu)
		  AND (@tag = '' OR EXISTS (
		        SELECT 1 FROM course_tags t WHERE t.course_id = c.id AND t.tag = @tag))
		ORDER BY like_count DESC, c.id`

	args := pgx.NamedArgs{
		"owner":   owner,
		"area":    filters.AreaName,
		"sigungu": filters.SigunguName,
		"tag":     filters.Tag,
	}
	out, err := collect(ctx, r.db, q, args, scanCourse)
	if err != nil {
		return nil, fmt.Errorf("repo.CourseRepo.List: %w", err)
	}
	return out, nil
}

func (r *pgCourseRepo) GetByID(ctx context.Context, id int, owner string) (domain.CourseDetail, error) {
	q := `
		SELECT ` + courseColumns + `, c.created_at,
		       COALESCE((SELECT array_agg(t.tag ORDER BY t.tag) FROM course_tags t WHERE t.course_id = c.id), '{}')
		FROM courses c
		WHERE c.id = @id`

	var d domain.CourseDetail
	s := &d.CourseSummary
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "owner": owner}).Scan(
		&s.ID, &s.Title, &s.ThumbnailURL, &s.AreaName, &s.SigunguName,
		&s.TotalCarbonEmission, &s.DistanceKm, &s.ViewCount, &s.LikeCount, &s.IsLiked,
		&d.CreatedAt, &d.Tags,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = domain.ErrNotFound
		}
		return domain.CourseDetail{}, fmt.Errorf("repo.CourseRepo.GetByID: %w", err)
	}
	return d, nil
}

func (r *pgCourseRepo) IncrementViews(ctx context.Context, id int) error {
	const q = `UPDATE courses SET view_count = view_count + 1 WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.CourseRepo.IncrementViews: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.CourseRepo.IncrementViews: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgCourseRepo) ToggleLike(ctx context.Context, id int, owner string) (domain.LikeState, error) {
	// Every CTE sees the same snapshot, so the count is corrected by hand.
	const q = `
		WITH removed AS (
			DELETE FROM course_likes
			WHERE course_id = @id AND owner = @owner
			RETURNING 1
		), inserted AS (
			INSERT INTO course_likes (course_id, owner)
			SELECT @id::int, @owner::text
			WHERE NOT EXISTS (SELECT 1 FROM removed)
			  AND EXISTS (SELECT 1 FROM courses WHERE id = @id)
			RETURNING 1
		)
		SELECT EXISTS (SELECT 1 FROM inserted),
		       (SELECT count(*) FROM course_likes l WHERE l.course_id = c.id)
		         + (SELECT count(*) FROM inserted)
		         - (SELECT count(*) FROM removed)
		FROM courses c
		WHERE c.id = @id`

	var st domain.LikeState
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "owner": owner}).Scan(&st.IsLiked, &st.LikeCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = domain.ErrNotFound
		}
		return domain.LikeState{}, fmt.Errorf("repo.CourseRepo.ToggleLike: %w", err)
	}
	return st, nil
}

func scanCourse(s scanner) (domain.CourseSummary, error) {
	var c domain.CourseSummary
	err := s.Scan(
		&c.ID, &c.Title, &c.ThumbnailURL, &c.AreaName, &c.SigunguName,
		&c.TotalCarbonEmission, &c.DistanceKm, &c.ViewCount, &c.LikeCount, &c.IsLiked,
	)
	return c, err
}
