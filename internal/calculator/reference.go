package calculator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkordes/grumeter/internal/carbonapi"
	"github.com/pkordes/grumeter/internal/domain"
	"github.com/pkordes/grumeter/internal/querycache"
)

// ReferenceStaleTime is how long reference lists stay fresh.
const ReferenceStaleTime = 10 * time.Minute

// ReferenceAPI is the subset of the carbon API serving lookup lists.
type ReferenceAPI interface {
	TransportationTypes(ctx context.Context) ([]domain.TransportationType, error)
	AccommodationTypes(ctx context.Context) ([]domain.AccommodationType, error)
	Locations(ctx context.Context) ([]domain.Location, error)
}

var _ ReferenceAPI = (*carbonapi.Client)(nil)

// Reference serves the lookup lists the wizard's pickers need, through the
// cache.
type Reference struct {
	api   ReferenceAPI
	cache *querycache.Cache
}

// NewReference returns a Reference reading through cache.
func NewReference(api ReferenceAPI, cache *querycache.Cache) *Reference {
	return &Reference{api: api, cache: cache}
}

var referenceQuery = querycache.QueryOptions{StaleTime: ReferenceStaleTime}

// TransportationTypes lists the means of transport.
func (r *Reference) TransportationTypes(ctx context.Context) ([]domain.TransportationType, error) {
	return querycache.Fetch(ctx, r.cache, querycache.Key{"carbon", "transportation-types"}, r.api.TransportationTypes, referenceQuery)
}

// AccommodationTypes lists the kinds of stay.
func (r *Reference) AccommodationTypes(ctx context.Context) ([]domain.AccommodationType, error) {
	return querycache.Fetch(ctx, r.cache, querycache.Key{"carbon", "accommodation-types"}, r.api.AccommodationTypes, referenceQuery)
}

// Locations lists the cities routes can start or end in.
func (r *Reference) Locations(ctx context.Context) ([]domain.Location, error) {
	return querycache.Fetch(ctx, r.cache, querycache.Key{"locations"}, r.api.Locations, referenceQuery)
}

// LocationID resolves a location given by numeric id or by name
// (case-insensitive).
func (r *Reference) LocationID(ctx context.Context, ref string) (int, error) {
	locs, err := r.Locations(ctx)
	if err != nil {
		return 0, fmt.Errorf("calculator.Reference.LocationID: %w", err)
	}
	return resolve(ref, "location", locs, func(l domain.Location) (int, string, string) { return l.ID, l.Name, "" })
}

// TransportationTypeID resolves a transport by id, name or type code.
func (r *Reference) TransportationTypeID(ctx context.Context, ref string) (int, error) {
	types, err := r.TransportationTypes(ctx)
	if err != nil {
		return 0, fmt.Errorf("calculator.Reference.TransportationTypeID: %w", err)
	}
	return resolve(ref, "transportation type", types, func(t domain.TransportationType) (int, string, string) { return t.ID, t.Name, t.Type })
}

// AccommodationTypeID resolves an accommodation type by id, name or type code.
func (r *Reference) AccommodationTypeID(ctx context.Context, ref string) (int, error) {
	types, err := r.AccommodationTypes(ctx)
	if err != nil {
		return 0, fmt.Errorf("calculator.Reference.AccommodationTypeID: %w", err)
	}
	return resolve(ref, "accommodation type", types, func(t domain.AccommodationType) (int, string, string) { return t.ID, t.Name, t.Type })
}

func resolve[T any](ref, what string, items []T, fields func(T) (id int, name, code string)) (int, error) {
	ref = strings.TrimSpace(ref)
	n, numErr := strconv.Atoi(ref)
	for _, it := range items {
		id, name, code := fields(it)
		switch {
		case numErr == nil && id == n:
			return id, nil
		case strings.EqualFold(name, ref), code != "" && strings.EqualFold(code, ref):
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q: %w", what, ref, domain.ErrNotFound)
}
