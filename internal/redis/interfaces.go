package redis

import (
	"context"
	"time"
)

// VenueGeoStoreInterface defines the interface for venue geo index operations.
type VenueGeoStoreInterface interface {
	AddVenue(ctx context.Context, venueID string, lat, lng float64) error
	FindNearbyVenues(ctx context.Context, lat, lng, radiusKm float64) ([]VenueLocation, error)
	RemoveVenue(ctx context.Context, venueID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireUserSyncLock(ctx context.Context, userID string, ttl time.Duration) (bool, error)
	ReleaseUserSyncLock(ctx context.Context, userID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ VenueGeoStoreInterface = (*VenueGeoStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
)
