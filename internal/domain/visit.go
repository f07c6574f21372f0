package domain

import "time"

// DetectionMethod records how a visit's arrival was detected.
type DetectionMethod string

const (
	DetectionMethodGeofence DetectionMethod = "auto_geofence"
	DetectionMethodManual   DetectionMethod = "manual"
)

// Visit represents a recorded stay at a venue.
// DepartureTime is zero while the visit is still active.
type Visit struct {
	ID              string
	UserID          string
	VenueID         string
	ArrivalTime     time.Time
	DepartureTime   time.Time
	IsActive        bool
	DurationMinutes int
	DetectionMethod DetectionMethod
	Synced          bool // true once confirmed persisted remotely
	SyncAttempts    int  // rejected sync attempts so far
	Rejected        bool // permanently rejected by the server, excluded from sync
}
