package detection

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"visits/internal/domain"
	"visits/internal/geo"
)

// VenueFetcher queries the remote venue catalog.
type VenueFetcher interface {
	NearbyVenues(ctx context.Context, lat, lng, radiusKm float64) ([]*domain.Venue, error)
}

// Catalog caches nearby venues for geofence evaluation. It re-queries when
// the cached set goes stale or the user has moved a significant distance
// from the last query point, and rate-limits fetches so a noisy location
// stream cannot hammer the API.
type Catalog struct {
	fetcher        VenueFetcher
	searchRadiusKm float64
	ttl            time.Duration
	limiter        *rate.Limiter
	now            func() time.Time

	mu        sync.Mutex
	venues    []*domain.Venue
	lastPoint domain.Coordinates
	lastFetch time.Time
	primed    bool
}

// NewCatalog creates a venue catalog. searchRadiusKm is the nearby-query
// radius; ttl bounds how long a result set is reused without movement.
func NewCatalog(fetcher VenueFetcher, searchRadiusKm float64, ttl time.Duration) *Catalog {
	if searchRadiusKm <= 0 {
		searchRadiusKm = 5.0
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Catalog{
		fetcher:        fetcher,
		searchRadiusKm: searchRadiusKm,
		ttl:            ttl,
		// One fetch per 10s sustained, small burst for startup.
		limiter: rate.NewLimiter(rate.Every(10*time.Second), 2),
		now:     time.Now,
	}
}

// Venues returns the cached venue set, refreshing it when stale. A failed
// refresh falls back to the cached set; only a cold cache propagates the
// error.
func (c *Catalog) Venues(ctx context.Context, near domain.Coordinates) ([]*domain.Venue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fresh(near) || !c.limiter.Allow() {
		if c.primed {
			return c.venues, nil
		}
	}

	venues, err := c.fetcher.NearbyVenues(ctx, near.Latitude, near.Longitude, c.searchRadiusKm)
	if err != nil {
		if c.primed {
			return c.venues, nil
		}
		return nil, err
	}

	c.venues = venues
	c.lastPoint = near
	c.lastFetch = c.now()
	c.primed = true

	return c.venues, nil
}

// fresh reports whether the cached set still covers this point: primed,
// within TTL, and moved less than half the search radius since the query.
func (c *Catalog) fresh(near domain.Coordinates) bool {
	if !c.primed {
		return false
	}
	if c.now().Sub(c.lastFetch) > c.ttl {
		return false
	}
	return geo.CalculateDistance(near, c.lastPoint) < c.searchRadiusKm/2
}

// Ensure Catalog implements VenueSource.
var _ VenueSource = (*Catalog)(nil)
