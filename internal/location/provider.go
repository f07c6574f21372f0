package location

import (
	"context"
	"errors"
	"time"

	"visits/internal/domain"
)

var (
	// ErrPermissionDenied is returned when the user has denied location access.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrNoFix is returned when no position fix is currently available.
	ErrNoFix = errors.New("no location fix available")
)

// PermissionState reflects the platform location permission.
type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionPrompt  PermissionState = "prompt"
)

// Position is a single location fix.
type Position struct {
	Coords    domain.Coordinates
	AccuracyM float64
	Time      time.Time
}

// WatchHandle identifies an active position watch.
type WatchHandle int64

// Callback receives position fixes from an active watch.
type Callback func(Position)

// Provider abstracts platform location APIs behind a uniform capability.
type Provider interface {
	RequestPermissions(ctx context.Context) (PermissionState, error)
	CheckPermissions(ctx context.Context) (PermissionState, error)
	GetCurrentPosition(ctx context.Context) (*Position, error)
	WatchPosition(cb Callback) (WatchHandle, error)
	ClearWatch(handle WatchHandle)
}
