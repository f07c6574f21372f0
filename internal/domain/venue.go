package domain

// VenueType classifies a venue.
type VenueType string

const (
	VenueTypeBrewery VenueType = "brewery"
	VenueTypeWinery  VenueType = "winery"
)

// Coordinates is a WGS84 point. Latitude in [-90, 90], longitude in [-180, 180].
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Venue represents a brewery or winery location. Venues are read-only
// reference data from the detection engine's perspective.
type Venue struct {
	ID       string
	Name     string
	Type     VenueType
	Location Coordinates
	City     string
	State    string
	RadiusKm float64 // Geofence radius; 0 means use the configured default
}
