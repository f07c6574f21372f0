package service

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"visits/internal/domain"
	"visits/internal/geo"
	"visits/internal/redis"
	"visits/internal/repository"
)

// DefaultSearchRadiusKm is used when a nearby query omits the radius.
const DefaultSearchRadiusKm = 5.0

// VenueService handles venue discovery and management.
type VenueService struct {
	venueRepo  repository.VenueRepository
	geoStore   redis.VenueGeoStoreInterface
	cacheStore *redis.CacheStore

	// fallbackLimiter throttles full-table scans when the geo index is
	// unavailable, so a Redis outage can't hammer Postgres.
	fallbackLimiter *rate.Limiter
}

// NewVenueService creates a new VenueService.
func NewVenueService(
	venueRepo repository.VenueRepository,
	geoStore redis.VenueGeoStoreInterface,
	cacheStore *redis.CacheStore,
) *VenueService {
	return &VenueService{
		venueRepo:       venueRepo,
		geoStore:        geoStore,
		cacheStore:      cacheStore,
		fallbackLimiter: rate.NewLimiter(rate.Limit(1), 3),
	}
}

// NearbyRequest contains the parameters for a nearby venue search.
type NearbyRequest struct {
	Lat      float64
	Lng      float64
	RadiusKm float64 // Optional: defaults to DefaultSearchRadiusKm
}

// NearbyVenue pairs a venue with its distance from the query point.
type NearbyVenue struct {
	Venue      *domain.Venue
	DistanceKm float64
}

// Nearby finds venues within the radius, nearest first. The Redis geo index
// serves the search; venue entities come from cache with a Postgres fill for
// misses. When the geo index is down, a rate-limited scan of all venues keeps
// the endpoint answering.
func (s *VenueService) Nearby(ctx context.Context, req NearbyRequest) ([]NearbyVenue, error) {
	if !isValidLatitude(req.Lat) || !isValidLongitude(req.Lng) {
		return nil, ErrInvalidLocation
	}

	radiusKm := req.RadiusKm
	if radiusKm <= 0 {
		radiusKm = DefaultSearchRadiusKm
	}

	locations, err := s.geoStore.FindNearbyVenues(ctx, req.Lat, req.Lng, radiusKm)
	if err != nil {
		return s.nearbyFallback(ctx, req.Lat, req.Lng, radiusKm)
	}

	if len(locations) == 0 {
		return []NearbyVenue{}, nil
	}

	venueIDs := make([]string, 0, len(locations))
	for _, loc := range locations {
		venueIDs = append(venueIDs, loc.VenueID)
	}

	venuesByID, err := s.resolveVenues(ctx, venueIDs)
	if err != nil {
		return nil, err
	}

	results := make([]NearbyVenue, 0, len(locations))
	for _, loc := range locations {
		venue, ok := venuesByID[loc.VenueID]
		if !ok {
			// Stale geo index entry; skip it.
			continue
		}
		results = append(results, NearbyVenue{Venue: venue, DistanceKm: loc.DistKm})
	}

	return results, nil
}

// resolveVenues loads venue entities by id, serving from cache and filling
// misses from Postgres.
func (s *VenueService) resolveVenues(ctx context.Context, venueIDs []string) (map[string]*domain.Venue, error) {
	venuesByID := make(map[string]*domain.Venue, len(venueIDs))

	missing := venueIDs
	if s.cacheStore != nil {
		cached, cacheMissing, err := s.cacheStore.GetVenuesBatch(ctx, venueIDs)
		if err == nil {
			// Cache trouble is not fatal; on error everything loads from
			// Postgres instead.
			missing = cacheMissing
			for id, cv := range cached {
				venuesByID[id] = cachedToDomain(cv)
			}
		}
	}

	if len(missing) == 0 {
		return venuesByID, nil
	}

	venues, err := s.venueRepo.GetByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}

	toCache := make([]*redis.CachedVenue, 0, len(venues))
	for _, venue := range venues {
		venuesByID[venue.ID] = venue
		toCache = append(toCache, domainToCached(venue))
	}
	if s.cacheStore != nil && len(toCache) > 0 {
		_ = s.cacheStore.SetVenuesBatch(ctx, toCache)
	}

	return venuesByID, nil
}

// nearbyFallback answers a nearby search without the geo index.
func (s *VenueService) nearbyFallback(ctx context.Context, lat, lng, radiusKm float64) ([]NearbyVenue, error) {
	if !s.fallbackLimiter.Allow() {
		return nil, ErrSearchUnavailable
	}

	venues, err := s.venueRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	point := domain.Coordinates{Latitude: lat, Longitude: lng}
	results := make([]NearbyVenue, 0)
	for _, vd := range geo.SortByDistance(point, venues) {
		if vd.DistanceKm > radiusKm {
			break
		}
		results = append(results, NearbyVenue{Venue: vd.Venue, DistanceKm: vd.DistanceKm})
	}

	return results, nil
}

// CreateVenueRequest contains the parameters for registering a venue.
type CreateVenueRequest struct {
	Name     string
	Type     domain.VenueType
	Lat      float64
	Lng      float64
	City     string
	State    string
	RadiusKm float64 // Optional: 0 means the default geofence radius
}

// Create registers a new venue and indexes it for nearby searches.
func (s *VenueService) Create(ctx context.Context, req CreateVenueRequest) (*domain.Venue, error) {
	if req.Name == "" {
		return nil, ErrInvalidVenueName
	}
	if req.Type != domain.VenueTypeBrewery && req.Type != domain.VenueTypeWinery {
		return nil, ErrInvalidVenueType
	}
	if !isValidLatitude(req.Lat) || !isValidLongitude(req.Lng) {
		return nil, ErrInvalidLocation
	}

	venue := &domain.Venue{
		ID:   uuid.New().String(),
		Name: req.Name,
		Type: req.Type,
		Location: domain.Coordinates{
			Latitude:  req.Lat,
			Longitude: req.Lng,
		},
		City:     req.City,
		State:    req.State,
		RadiusKm: req.RadiusKm,
	}

	if err := s.venueRepo.Create(ctx, venue); err != nil {
		return nil, err
	}

	// Index and cache warm are best-effort; the fallback path covers a
	// missing geo entry until the index catches up.
	_ = s.geoStore.AddVenue(ctx, venue.ID, req.Lat, req.Lng)
	if s.cacheStore != nil {
		_ = s.cacheStore.SetVenue(ctx, domainToCached(venue))
	}

	return venue, nil
}

// GetByID retrieves a venue, serving from cache when possible.
func (s *VenueService) GetByID(ctx context.Context, venueID string) (*domain.Venue, error) {
	if venueID == "" {
		return nil, ErrInvalidVenueID
	}

	if s.cacheStore != nil {
		if cached, err := s.cacheStore.GetVenue(ctx, venueID); err == nil && cached != nil {
			return cachedToDomain(cached), nil
		}
	}

	venue, err := s.venueRepo.GetByID(ctx, venueID)
	if err != nil {
		return nil, err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.SetVenue(ctx, domainToCached(venue))
	}
	return venue, nil
}

func cachedToDomain(cv *redis.CachedVenue) *domain.Venue {
	return &domain.Venue{
		ID:   cv.ID,
		Name: cv.Name,
		Type: domain.VenueType(cv.Type),
		Location: domain.Coordinates{
			Latitude:  cv.Latitude,
			Longitude: cv.Longitude,
		},
		City:     cv.City,
		State:    cv.State,
		RadiusKm: cv.RadiusKm,
	}
}

func domainToCached(venue *domain.Venue) *redis.CachedVenue {
	return &redis.CachedVenue{
		ID:        venue.ID,
		Name:      venue.Name,
		Type:      string(venue.Type),
		Latitude:  venue.Location.Latitude,
		Longitude: venue.Location.Longitude,
		City:      venue.City,
		State:     venue.State,
		RadiusKm:  venue.RadiusKm,
	}
}
