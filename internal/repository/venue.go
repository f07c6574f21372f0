package repository

import (
	"context"

	"visits/internal/domain"
)

// VenueRepository defines the persistence operations for venues.
type VenueRepository interface {
	// Create adds a new venue.
	Create(ctx context.Context, venue *domain.Venue) error

	// GetByID retrieves a venue by ID.
	GetByID(ctx context.Context, id string) (*domain.Venue, error)

	// GetByIDs retrieves multiple venues in one query.
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Venue, error)

	// GetAll retrieves all venues.
	GetAll(ctx context.Context) ([]*domain.Venue, error)
}
