package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/grumeter/internal/domain"
)

// SessionRepo defines the persistence operations for carbon sessions.
// Save methods never lower a session's step.
type SessionRepo interface {
	// Create inserts a new session at step 1 and returns the persisted record.
	Create(ctx context.Context, id uuid.UUID, owner string, participants int, expiresAt time.Time) (domain.SessionRecord, error)

	// GetByID retrieves a session by id.
	// Returns domain.ErrNotFound if no session with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.SessionRecord, error)

	// SaveRoutes replaces the session's routes and stores the transportation
	// and course subtotals, raising the step to StepRoutesSaved. A stored
	// result is dropped so the next calculation sees the new subtotals.
	SaveRoutes(ctx context.Context, id uuid.UUID, routes []domain.RouteInfo, transportation, course float64) (domain.SessionRecord, error)

	// SaveAccommodations replaces the session's stays and stores the
	// accommodation subtotal, raising the step to StepAccommodationsSaved.
	// A stored result is dropped as with SaveRoutes.
	SaveAccommodations(ctx context.Context, id uuid.UUID, stays []domain.AccommodationInfo, accommodation float64) (domain.SessionRecord, error)

	// SaveResult stores the final result and raises the step to StepCalculated.
	SaveResult(ctx context.Context, id uuid.UUID, b domain.EmissionBreakdown, participants int) (domain.CalculationResult, error)

	// GetResult returns the stored result of a session.
	// Returns domain.ErrNotFound if the session has not been calculated.
	GetResult(ctx context.Context, id uuid.UUID) (domain.CalculationResult, error)

	// DeleteExpired removes sessions whose expiry is at or before now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type pgSessionRepo struct {
	db txDB
}

// NewSessionRepo constructs a SessionRepo backed by the provided connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewSessionRepo(db txDB) SessionRepo {
	return &pgSessionRepo{db: db}
}

// dropResult removes a result computed from subtotals that are being replaced.
const dropResult = `DELETE FROM calculation_results WHERE session_id = @id`

const sessionColumns = `
	id, owner, step, participant_count,
	transportation_emission, accommodation_emission, course_emission,
	expires_at, created_at, updated_at`

func (r *pgSessionRepo) Create(ctx context.Context, id uuid.UUID, owner string, participants int, expiresAt time.Time) (domain.SessionRecord, error) {
	const q = `
		INSERT INTO carbon_sessions (id, owner, participant_count, expires_at)
		VALUES (@id, @owner, @participants, @expires_at)
		RETURNING ` + sessionColumns

	args := pgx.NamedArgs{
		"id":           id,
		"owner":        owner,
		"participants": participants,
		"expires_at":   expiresAt,
	}
	rec, err := scanSession(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("repo.SessionRepo.Create: %w", err)
	}
	return rec, nil
}

func (r *pgSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.SessionRecord, error) {
	const q = `SELECT ` + sessionColumns + ` FROM carbon_sessions WHERE id = @id`

	rec, err := scanSession(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("repo.SessionRepo.GetByID: %w", err)
	}
	return rec, nil
}

func (r *pgSessionRepo) SaveRoutes(ctx context.Context, id uuid.UUID, routes []domain.RouteInfo, transportation, course float64) (domain.SessionRecord, error) {
	const (
		del    = `DELETE FROM session_routes WHERE session_id = @id`
		insert = `
			INSERT INTO session_routes
				(session_id, order_index, departure_location_id, arrival_location_id, course_id, transportation_type_id)
			VALUES (@id, @order_index, @departure, @arrival, @course, @transport)`
		update = `
			UPDATE carbon_sessions
			SET step                    = GREATEST(step, @step),
			    transportation_emission = @transportation,
			    course_emission         = @course,
			    updated_at              = now()
			WHERE id = @id
			RETURNING ` + sessionColumns
	)

	var rec domain.SessionRecord
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, dropResult, pgx.NamedArgs{"id": id}); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, del, pgx.NamedArgs{"id": id}); err != nil {
			return err
		}
		for _, rt := range routes {
			args := pgx.NamedArgs{
				"id":          id,
				"order_index": rt.OrderIndex,
				"departure":   rt.DepartureLocationID, // nil becomes NULL
				"arrival":     rt.ArrivalLocationID,
				"course":      rt.CourseID,
				"transport":   rt.TransportationTypeID,
			}
			if _, err := tx.Exec(ctx, insert, args); err != nil {
				return err
			}
		}
		var err error
		rec, err = scanSession(tx.QueryRow(ctx, update, pgx.NamedArgs{
			"id":             id,
			"step":           domain.StepRoutesSaved,
			"transportation": transportation,
			"course":         course,
		}))
		return err
	})
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("repo.SessionRepo.SaveRoutes: %w", err)
	}
	return rec, nil
}

func (r *pgSessionRepo) SaveAccommodations(ctx context.Context, id uuid.UUID, stays []domain.AccommodationInfo, accommodation float64) (domain.SessionRecord, error) {
	const (
		del    = `DELETE FROM session_accommodations WHERE session_id = @id`
		insert = `
			INSERT INTO session_accommodations
				(session_id, order_index, accommodation_type_id, start_date, end_date)
			VALUES (@id, @order_index, @type, @start_date, @end_date)`
		update = `
			UPDATE carbon_sessions
			SET step                   = GREATEST(step, @step),
			    accommodation_emission = @accommodation,
			    updated_at             = now()
			WHERE id = @id
			RETURNING ` + sessionColumns
	)

	var rec domain.SessionRecord
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, dropResult, pgx.NamedArgs{"id": id}); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, del, pgx.NamedArgs{"id": id}); err != nil {
			return err
		}
		for _, st := range stays {
			args := pgx.NamedArgs{
				"id":          id,
				"order_index": st.OrderIndex,
				"type":        st.AccommodationTypeID,
				"start_date":  pgtype.Date{Time: st.StartDate.Time, Valid: true},
				"end_date":    pgtype.Date{Time: st.EndDate.Time, Valid: true},
			}
			if _, err := tx.Exec(ctx, insert, args); err != nil {
				return err
			}
		}
		var err error
		rec, err = scanSession(tx.QueryRow(ctx, update, pgx.NamedArgs{
			"id":            id,
			"step":          domain.StepAccommodationsSaved,
			"accommodation": accommodation,
		}))
		return err
	})
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("repo.SessionRepo.SaveAccommodations: %w", err)
	}
	return rec, nil
}

func (r *pgSessionRepo) SaveResult(ctx context.Context, id uuid.UUID, b domain.EmissionBreakdown, participants int) (domain.CalculationResult, error) {
	const (
		insert = `
			INSERT INTO calculation_results
				(session_id, transportation_emission, accommodation_emission, course_emission,
				 total_carbon_emission, participant_count)
			VALUES (@id, @transportation, @accommodation, @course, @total, @participants)
			RETURNING ` + resultColumns
		advance = `
			UPDATE carbon_sessions
			SET step = GREATEST(step, @step), updated_at = now()
			WHERE id = @id`
	)

	var res domain.CalculationResult
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		res, err = scanResult(tx.QueryRow(ctx, insert, pgx.NamedArgs{
			"id":             id,
			"transportation": b.Transportation,
			"accommodation":  b.Accommodation,
			"course":         b.Course,
			"total":          b.Sum(),
			"participants":   participants,
		}))
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, advance, pgx.NamedArgs{"id": id, "step": domain.StepCalculated})
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return domain.CalculationResult{}, fmt.Errorf("repo.SessionRepo.SaveResult: %w", err)
	}
	return res, nil
}

const resultColumns = `
	id, transportation_emission, accommodation_emission, course_emission,
	total_carbon_emission, participant_count`

func (r *pgSessionRepo) GetResult(ctx context.Context, id uuid.UUID) (domain.CalculationResult, error) {
	const q = `SELECT ` + resultColumns + ` FROM calculation_results WHERE session_id = @id`

	res, err := scanResult(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.CalculationResult{}, fmt.Errorf("repo.SessionRepo.GetResult: %w", err)
	}
	return res, nil
}

func (r *pgSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM carbon_sessions WHERE expires_at <= @now`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"now": now})
	if err != nil {
		return 0, fmt.Errorf("repo.SessionRepo.DeleteExpired: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanSession maps a carbon_sessions row into a domain.SessionRecord.
func scanSession(s scanner) (domain.SessionRecord, error) {
	var (
		rec domain.SessionRecord
		id  pgtype.UUID
	)
	err := s.Scan(
		&id, &rec.Owner, &rec.Step, &rec.ParticipantCount,
		&rec.Emissions.Transportation, &rec.Emissions.Accommodation, &rec.Emissions.Course,
		&rec.ExpiresAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SessionRecord{}, domain.ErrNotFound
		}
		return domain.SessionRecord{}, err
	}
	rec.SessionID = uuid.UUID(id.Bytes).String()
	return rec, nil
}

// scanResult maps a calculation_results row into a domain.CalculationResult.
// The total is read back as stored, not recomputed.
func scanResult(s scanner) (domain.CalculationResult, error) {
	var res domain.CalculationResult
	err := s.Scan(
		&res.ResultID,
		&res.Result.Transportation, &res.Result.Accommodation, &res.Result.Course,
		&res.TotalCarbonEmission, &res.ParticipantCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CalculationResult{}, domain.ErrNotFound
		}
		return domain.CalculationResult{}, err
	}
	return res, nil
}
