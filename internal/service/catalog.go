package service

import (
	"context"
	"fmt"

	"github.com/pkordes/grumeter/internal/domain"
	"github.com/pkordes/grumeter/internal/repo"
)

// CatalogService serves the reference lists.
type CatalogService struct {
	repo repo.ReferenceRepo
}

// NewCatalogService constructs a CatalogService backed by the provided ReferenceRepo.
func NewCatalogService(r repo.ReferenceRepo) *CatalogService {
	return &CatalogService{repo: r}
}

// TransportationTypes lists the means of transport.
func (s *CatalogService) TransportationTypes(ctx context.Context) ([]domain.TransportationType, error) {
	out, err := s.repo.TransportationTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.CatalogService.TransportationTypes: %w", err)
	}
	return out, nil
}

// AccommodationTypes lists the kinds of stay.
func (s *CatalogService) AccommodationTypes(ctx context.Context) ([]domain.AccommodationType, error) {
	out, err := s.repo.AccommodationTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.CatalogService.AccommodationTypes: %w", err)
	}
	return out, nil
}

// Locations lists the route endpoints.
func (s *CatalogService) Locations(ctx context.Context) ([]domain.Location, error) {
	out, err := s.repo.Locations(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.CatalogService.Locations: %w", err)
	}
	return out, nil
}
