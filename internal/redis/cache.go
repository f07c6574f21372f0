package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore handles venue caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// Venues are near-immutable reference data; a long TTL is safe.
const VenueCacheTTL = 1 * time.Hour

const venueCachePrefix = "cache:venue:"

// CachedVenue represents a cached venue entity.
type CachedVenue struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city,omitempty"`
	State     string  `json:"state,omitempty"`
	RadiusKm  float64 `json:"radius_km"`
}

// GetVenue retrieves a venue from cache. Returns nil on a miss.
func (s *CacheStore) GetVenue(ctx context.Context, venueID string) (*CachedVenue, error) {
	data, err := s.client.Get(ctx, venueCachePrefix+venueID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var venue CachedVenue
	if err := json.Unmarshal(data, &venue); err != nil {
		return nil, err
	}
	return &venue, nil
}

// SetVenue stores a venue in cache.
func (s *CacheStore) SetVenue(ctx context.Context, venue *CachedVenue) error {
	data, err := json.Marshal(venue)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, venueCachePrefix+venue.ID, data, VenueCacheTTL).Err()
}

// InvalidateVenue removes a venue from cache.
func (s *CacheStore) InvalidateVenue(ctx context.Context, venueID string) error {
	return s.client.Del(ctx, venueCachePrefix+venueID).Err()
}

// GetVenuesBatch retrieves multiple venues from cache using a pipeline.
// Returns a map of venueID -> CachedVenue, and a slice of missing IDs.
func (s *CacheStore) GetVenuesBatch(ctx context.Context, venueIDs []string) (map[string]*CachedVenue, []string, error) {
	if len(venueIDs) == 0 {
		return make(map[string]*CachedVenue), nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(venueIDs))

	for _, id := range venueIDs {
		cmds[id] = pipe.Get(ctx, venueCachePrefix+id)
	}

	// A pipeline with missing keys reports redis.Nil; real errors surface
	// through the per-command results below.
	_, _ = pipe.Exec(ctx)

	result := make(map[string]*CachedVenue)
	var missing []string

	for id, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			missing = append(missing, id)
			continue
		}

		var venue CachedVenue
		if err := json.Unmarshal(data, &venue); err != nil {
			missing = append(missing, id)
			continue
		}
		result[id] = &venue
	}

	return result, missing, nil
}

// SetVenuesBatch stores multiple venues in cache using a pipeline.
func (s *CacheStore) SetVenuesBatch(ctx context.Context, venues []*CachedVenue) error {
	if len(venues) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, venue := range venues {
		data, err := json.Marshal(venue)
		if err != nil {
			continue // Skip invalid entries
		}
		pipe.Set(ctx, venueCachePrefix+venue.ID, data, VenueCacheTTL)
	}

	_, err := pipe.Exec(ctx)
	return err
}
