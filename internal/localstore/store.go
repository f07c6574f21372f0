package localstore

import (
	"context"
	"errors"

	"visits/internal/domain"
)

// ErrNotFound is returned when a requested visit does not exist locally.
var ErrNotFound = errors.New("visit not found")

// Store is the on-device durable visit store. It is the source of truth for
// a visit until remote sync confirms it; Save must be synchronous and
// idempotent on id (upsert semantics).
type Store interface {
	// Save upserts a visit by id.
	Save(ctx context.Context, visit *domain.Visit) error

	// BatchSave upserts multiple visits atomically.
	BatchSave(ctx context.Context, visits []*domain.Visit) error

	// FindByID retrieves a visit by id.
	FindByID(ctx context.Context, id string) (*domain.Visit, error)

	// FindByUserID retrieves a user's visits, most recent arrival first.
	FindByUserID(ctx context.Context, userID string) ([]*domain.Visit, error)

	// FindUnsynced returns all visits with synced = false that have not been
	// permanently rejected, regardless of is_active.
	FindUnsynced(ctx context.Context) ([]*domain.Visit, error)

	// MarkSynced marks a visit synced under the server-confirmed id,
	// reconciling any client-generated id mismatch.
	MarkSynced(ctx context.Context, localID, serverID string) error

	// IncrementSyncAttempts bumps the rejection counter and returns the new
	// count.
	IncrementSyncAttempts(ctx context.Context, id string) (int, error)

	// MarkRejected flags a visit as permanently rejected, excluding it from
	// future sync batches. The record is kept for manual correction.
	MarkRejected(ctx context.Context, id string) error

	// Delete removes a visit.
	Delete(ctx context.Context, id string) error
}
