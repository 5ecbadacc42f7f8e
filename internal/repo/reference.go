package repo

import (
	"context"
	"fmt"

	"github.com/pkordes/grumeter/internal/domain"
)

// ReferenceRepo reads the seeded lookup tables.
type ReferenceRepo interface {
	// TransportationTypes returns every means of transport ordered by id.
	TransportationTypes(ctx context.Context) ([]domain.TransportationType, error)

	// AccommodationTypes returns every kind of stay ordered by id.
	AccommodationTypes(ctx context.Context) ([]domain.AccommodationType, error)

	// Locations returns every city ordered by id.
	Locations(ctx context.Context) ([]domain.Location, error)
}

type pgReferenceRepo struct {
	db db
}

// NewReferenceRepo constructs a ReferenceRepo backed by the provided db connection.
func NewReferenceRepo(db db) ReferenceRepo {
	return &pgReferenceRepo{db: db}
}

func (r *pgReferenceRepo) TransportationTypes(ctx context.Context) ([]domain.TransportationType, error) {
	const q = `
		SELECT id, name, type, carbon_emission_per_km, icon
		FROM transportation_types
		ORDER BY id`

	out, err := collect(ctx, r.db, q, nil, func(s scanner) (domain.TransportationType, error) {
		var t domain.TransportationType
		err := s.Scan(&t.ID, &t.Name, &t.Type, &t.CarbonEmissionPerKm, &t.Icon)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("repo.ReferenceRepo.TransportationTypes: %w", err)
	}
	return out, nil
}

func (r *pgReferenceRepo) AccommodationTypes(ctx context.Context) ([]domain.AccommodationType, error) {
	const q = `
		SELECT id, name, type, carbon_emission_per_night
		FROM accommodation_types
		ORDER BY id`

	out, err := collect(ctx, r.db, q, nil, func(s scanner) (domain.AccommodationType, error) {
		var t domain.AccommodationType
		err := s.Scan(&t.ID, &t.Name, &t.Type, &t.CarbonEmissionPerNight)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("repo.ReferenceRepo.AccommodationTypes: %w", err)
	}
	return out, nil
}

func (r *pgReferenceRepo) Locations(ctx context.Context) ([]domain.Location, error) {
	const q = `SELECT id, name, lat, lng FROM locations ORDER BY id`

	out, err := collect(ctx, r.db, q, nil, func(s scanner) (domain.Location, error) {
		var l domain.Location
		err := s.Scan(&l.ID, &l.Name, &l.Lat, &l.Lng)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("repo.ReferenceRepo.Locations: %w", err)
	}
	return out, nil
}
