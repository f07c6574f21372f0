package repository

import (
	"context"
	"time"

	"visits/internal/domain"
)

// VisitRepository defines the persistence operations for visits.
type VisitRepository interface {
	// Upsert inserts or replaces a visit by id. Idempotent, so retried sync
	// batches are absorbed safely.
	Upsert(ctx context.Context, visit *domain.Visit) error

	// GetByID retrieves a visit by ID.
	GetByID(ctx context.Context, id string) (*domain.Visit, error)

	// GetByUserID retrieves a user's visits, most recent arrival first.
	GetByUserID(ctx context.Context, userID string) ([]*domain.Visit, error)

	// GetActiveByUserID retrieves the user's active visit.
	// Returns nil if no active visit exists.
	GetActiveByUserID(ctx context.Context, userID string) (*domain.Visit, error)

	// UpdateDeparture closes a visit with the given departure time.
	UpdateDeparture(ctx context.Context, id string, departedAt time.Time, durationMinutes int) error
}
