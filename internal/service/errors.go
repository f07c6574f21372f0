package service

import "errors"

var (
	// ErrInvalidUserID is returned when user ID is empty.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrInvalidVisitID is returned when visit ID is empty.
	ErrInvalidVisitID = errors.New("invalid visit id")

	// ErrInvalidVenueID is returned when venue ID is empty.
	ErrInvalidVenueID = errors.New("invalid venue id")

	// ErrInvalidVenueName is returned when venue name is empty.
	ErrInvalidVenueName = errors.New("invalid venue name")

	// ErrInvalidVenueType is returned when venue type is not brewery or winery.
	ErrInvalidVenueType = errors.New("invalid venue type")

	// ErrInvalidLocation is returned when coordinates are out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidArrivalTime is returned when a visit has no arrival time.
	ErrInvalidArrivalTime = errors.New("invalid arrival time")

	// ErrInvalidDeparture is returned when departure precedes arrival.
	ErrInvalidDeparture = errors.New("departure before arrival")

	// ErrUnknownVenue is returned when a visit references a venue that does
	// not exist.
	ErrUnknownVenue = errors.New("unknown venue")

	// ErrUserMismatch is returned when a batch item belongs to another user.
	ErrUserMismatch = errors.New("visit does not belong to user")

	// ErrVisitNotActive is returned when checking out a closed visit.
	ErrVisitNotActive = errors.New("visit not active")

	// ErrSyncInProgress is returned when a user's batch sync is already
	// being processed.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrSearchUnavailable is returned when nearby search cannot be served.
	ErrSearchUnavailable = errors.New("venue search temporarily unavailable")
)
