package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const venueLocationKey = "venues:locations"

// VenueLocation represents a venue's position in the geo index.
type VenueLocation struct {
	VenueID string
	Lat     float64
	Lng     float64
	DistKm  float64
}

// VenueGeoStore indexes venue positions in Redis for nearby queries.
type VenueGeoStore struct {
	client *redis.Client
}

// NewVenueGeoStore creates a new VenueGeoStore.
func NewVenueGeoStore(client *redis.Client) *VenueGeoStore {
	return &VenueGeoStore{client: client}
}

// AddVenue stores a venue's location using GEOADD.
func (s *VenueGeoStore) AddVenue(ctx context.Context, venueID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, venueLocationKey, &redis.GeoLocation{
		Name:      venueID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// FindNearbyVenues returns venue ids within the given radius (in kilometers),
// nearest first.
func (s *VenueGeoStore) FindNearbyVenues(ctx context.Context, lat, lng, radiusKm float64) ([]VenueLocation, error) {
	results, err := s.client.GeoRadius(ctx, venueLocationKey, lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	locations := make([]VenueLocation, 0, len(results))
	for _, r := range results {
		locations = append(locations, VenueLocation{
			VenueID: r.Name,
			Lat:     r.Latitude,
			Lng:     r.Longitude,
			DistKm:  r.Dist,
		})
	}

	return locations, nil
}

// RemoveVenue removes a venue from the geo index.
func (s *VenueGeoStore) RemoveVenue(ctx context.Context, venueID string) error {
	return s.client.ZRem(ctx, venueLocationKey, venueID).Err()
}
