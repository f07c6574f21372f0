package detection

import "errors"

var (
	// ErrNoActiveVisit is returned when checking out with no active visit.
	ErrNoActiveVisit = errors.New("no active visit")

	// ErrAlreadyStarted is returned when starting an engine that is running.
	ErrAlreadyStarted = errors.New("detection already started")

	// ErrNotStarted is returned when stopping an engine that is not running.
	ErrNotStarted = errors.New("detection not started")
)
