package geo

import (
	"math"
	"sort"

	"visits/internal/domain"
)

const earthRadiusKm = 6371.0

// CalculateDistance returns the great-circle distance between two points in
// kilometers using the haversine formula. Out-of-range coordinates propagate
// numerically; callers validate at the boundary.
func CalculateDistance(a, b domain.Coordinates) float64 {
	lat1 := toRad(a.Latitude)
	lat2 := toRad(b.Latitude)
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	// Clamp guards against rounding slightly above 1 near antipodal points.
	if h > 1 {
		h = 1
	}

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// IsWithinRadius reports whether point lies within radiusKm of center,
// inclusive of the boundary.
func IsWithinRadius(center, point domain.Coordinates, radiusKm float64) bool {
	return CalculateDistance(center, point) <= radiusKm
}

// FindNearest returns the venue closest to point, or nil for an empty list.
// Ties go to the first minimal element encountered.
func FindNearest(point domain.Coordinates, venues []*domain.Venue) *domain.Venue {
	var nearest *domain.Venue
	best := math.Inf(1)

	for _, v := range venues {
		if d := CalculateDistance(point, v.Location); d < best {
			best = d
			nearest = v
		}
	}

	return nearest
}

// VenueDistance pairs a venue with its distance from a reference point.
type VenueDistance struct {
	Venue      *domain.Venue
	DistanceKm float64
}

// SortByDistance returns the venues paired with their distance from point,
// ascending. The input slice is not modified.
func SortByDistance(point domain.Coordinates, venues []*domain.Venue) []VenueDistance {
	result := make([]VenueDistance, 0, len(venues))
	for _, v := range venues {
		result = append(result, VenueDistance{
			Venue:      v,
			DistanceKm: CalculateDistance(point, v.Location),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DistanceKm < result[j].DistanceKm
	})

	return result
}

// CalculateBearing returns the initial bearing from one point to another in
// degrees, normalized to [0, 360).
func CalculateBearing(from, to domain.Coordinates) float64 {
	lat1 := toRad(from.Latitude)
	lat2 := toRad(to.Latitude)
	dLon := toRad(to.Longitude - from.Longitude)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	bearing := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

var compassPoints = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// CompassDirection converts a bearing in degrees to an 8-point compass label.
func CompassDirection(bearing float64) string {
	idx := int(math.Mod(bearing+22.5, 360) / 45)
	return compassPoints[idx]
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
