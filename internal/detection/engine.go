package detection

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"visits/internal/domain"
	"visits/internal/geo"
	"visits/internal/localstore"
	"visits/internal/location"
)

// Default thresholds. The departure confirmation window is deliberately
// shorter than the arrival dwell: leaving needs less evidence than arriving,
// and a shorter window keeps departure times close to the actual exit.
const (
	DefaultDwellThreshold        = 10 * time.Minute
	DefaultDepartureConfirmation = 5 * time.Minute
	DefaultVenueRadiusKm         = 0.1
)

// Config holds detection engine thresholds.
type Config struct {
	DwellThreshold        time.Duration
	DepartureConfirmation time.Duration
	DefaultVenueRadiusKm  float64
}

// DefaultConfig returns the default detection configuration.
func DefaultConfig() Config {
	return Config{
		DwellThreshold:        DefaultDwellThreshold,
		DepartureConfirmation: DefaultDepartureConfirmation,
		DefaultVenueRadiusKm:  DefaultVenueRadiusKm,
	}
}

// VenueSource supplies candidate venues for geofence evaluation around a
// point. Implementations cache and refresh as they see fit.
type VenueSource interface {
	Venues(ctx context.Context, near domain.Coordinates) ([]*domain.Venue, error)
}

// Sample is a single timestamped location fix fed into the engine.
type Sample struct {
	Time   time.Time
	Coords domain.Coordinates
}

// fenceState is the per-venue detection state.
type fenceState int

const (
	stateOutside fenceState = iota
	statePendingArrival
	stateConfirmedActive
	statePendingDeparture
)

// geofenceState tracks one venue's dwell and departure windows. Timers are
// recorded timestamps compared against sample time, never scheduled
// callbacks, so the engine is driven entirely by its clock and input stream.
type geofenceState struct {
	venue     *domain.Venue // nil until resolved for a restored active visit
	state     fenceState
	enteredAt time.Time
	exitedAt  time.Time
}

// Engine turns a stream of location samples into visit lifecycle
// transitions. Each sample is processed to completion before the next; the
// engine owns its watch subscription via Start/Stop.
type Engine struct {
	cfg      Config
	userID   string
	store    localstore.Store
	venues   VenueSource
	provider location.Provider
	log      *logrus.Logger
	now      func() time.Time

	mu            sync.Mutex
	fences        map[string]*geofenceState
	activeVisitID string
	activeVenueID string
	watch         location.WatchHandle
	watching      bool
}

// NewEngine creates a detection engine for one user.
func NewEngine(
	cfg Config,
	userID string,
	store localstore.Store,
	venues VenueSource,
	provider location.Provider,
	log *logrus.Logger,
) *Engine {
	if cfg.DwellThreshold <= 0 {
		cfg.DwellThreshold = DefaultDwellThreshold
	}
	if cfg.DepartureConfirmation <= 0 {
		cfg.DepartureConfirmation = DefaultDepartureConfirmation
	}
	if cfg.DefaultVenueRadiusKm <= 0 {
		cfg.DefaultVenueRadiusKm = DefaultVenueRadiusKm
	}
	if log == nil {
		log = logrus.New()
	}

	return &Engine{
		cfg:      cfg,
		userID:   userID,
		store:    store,
		venues:   venues,
		provider: provider,
		log:      log,
		now:      time.Now,
		fences:   make(map[string]*geofenceState),
	}
}

// SetClock overrides the engine's clock. Used by manual checkout, which is
// the only transition not timed by an incoming sample.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// Start checks permission, restores any active visit from the local store,
// and begins watching position. The watch handle is owned by the engine and
// released by Stop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.watching {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.mu.Unlock()

	state, err := e.provider.CheckPermissions(ctx)
	if err != nil {
		return err
	}
	if state != location.PermissionGranted {
		state, err = e.provider.RequestPermissions(ctx)
		if err != nil {
			return err
		}
		if state != location.PermissionGranted {
			return location.ErrPermissionDenied
		}
	}

	if err := e.restoreActive(ctx); err != nil {
		return err
	}

	handle, err := e.provider.WatchPosition(func(pos location.Position) {
		sample := Sample{Time: pos.Time, Coords: pos.Coords}
		if err := e.ProcessSample(context.Background(), sample); err != nil {
			e.log.WithError(err).Warn("failed to process location sample")
		}
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.watch = handle
	e.watching = true
	e.mu.Unlock()

	return nil
}

// Stop cancels the watch subscription and abandons any pending arrival or
// departure windows without committing a visit. A confirmed active visit
// stays in the local store; resume re-adopts it.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.watching {
		return ErrNotStarted
	}

	e.provider.ClearWatch(e.watch)
	e.watching = false
	e.fences = make(map[string]*geofenceState)

	if e.activeVenueID != "" {
		// Keep only the confirmed active fence so resume can depart it.
		e.fences[e.activeVenueID] = &geofenceState{state: stateConfirmedActive}
	}

	return nil
}

// restoreActive adopts a still-active visit from the local store so a
// process restart does not lose the at-most-one-active bookkeeping.
func (e *Engine) restoreActive(ctx context.Context) error {
	visits, err := e.store.FindByUserID(ctx, e.userID)
	if err != nil {
		return err
	}

	for _, v := range visits {
		if v.IsActive {
			e.mu.Lock()
			e.activeVisitID = v.ID
			e.activeVenueID = v.VenueID
			e.fences[v.VenueID] = &geofenceState{
				state:     stateConfirmedActive,
				enteredAt: v.ArrivalTime,
			}
			e.mu.Unlock()
			break
		}
	}

	return nil
}

// ProcessSample drives the state machine with one location fix. Malformed
// samples are dropped and logged; store failures propagate because silently
// losing a visit would break the durability guarantee.
func (e *Engine) ProcessSample(ctx context.Context, sample Sample) error {
	if !validSample(sample) {
		e.log.WithFields(logrus.Fields{
			"latitude":  sample.Coords.Latitude,
			"longitude": sample.Coords.Longitude,
		}).Warn("dropping malformed location sample")
		return nil
	}

	catalog, err := e.venues.Venues(ctx, sample.Coords)
	if err != nil {
		// No venue catalog means no geofences to evaluate. Not fatal.
		e.log.WithError(err).Debug("venue catalog unavailable, skipping sample")
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Evaluate every venue in the catalog plus any venue already being
	// tracked that has dropped out of the catalog (e.g. the user moved away
	// from an active venue and the nearby query no longer returns it).
	seen := make(map[string]bool, len(catalog))
	var candidates []*geofenceState

	for _, venue := range catalog {
		seen[venue.ID] = true
		fence := e.fence(venue)
		if promotable := e.step(ctx, fence, sample); promotable {
			candidates = append(candidates, fence)
		}
	}

	for id, fence := range e.fences {
		if seen[id] || fence.venue == nil {
			continue
		}
		if promotable := e.step(ctx, fence, sample); promotable {
			candidates = append(candidates, fence)
		}
	}

	// Close a pending departure once the confirmation window elapses. This
	// runs before promotion so a venue-to-venue walk can confirm the next
	// arrival on the same tick the previous visit closes.
	if e.activeVenueID != "" {
		fence := e.fences[e.activeVenueID]
		if fence != nil && fence.state == statePendingDeparture &&
			sample.Time.Sub(fence.exitedAt) >= e.cfg.DepartureConfirmation {
			if _, err := e.close(ctx, fence.exitedAt); err != nil {
				return err
			}
		}
	}

	// Promote at most one venue. When several dwell timers elapse on the
	// same tick, the venue nearest the sample wins.
	if e.activeVisitID == "" && len(candidates) > 0 {
		winner := candidates[0]
		best := geo.CalculateDistance(sample.Coords, winner.venue.Location)
		for _, fence := range candidates[1:] {
			if d := geo.CalculateDistance(sample.Coords, fence.venue.Location); d < best {
				best = d
				winner = fence
			}
		}
		if err := e.promote(ctx, winner); err != nil {
			return err
		}
	}

	// Fences back at OUTSIDE carry no timers; drop them so the map only
	// tracks venues mid-cycle.
	for id, fence := range e.fences {
		if fence.state == stateOutside {
			delete(e.fences, id)
		}
	}

	return nil
}

// fence returns the tracked state for a venue, creating it at OUTSIDE and
// resolving the venue pointer for fences restored without one.
func (e *Engine) fence(venue *domain.Venue) *geofenceState {
	fence, ok := e.fences[venue.ID]
	if !ok {
		fence = &geofenceState{venue: venue, state: stateOutside}
		e.fences[venue.ID] = fence
	}
	if fence.venue == nil {
		fence.venue = venue
	}
	return fence
}

// step applies one sample to one fence and reports whether the fence's dwell
// timer has elapsed, making it a promotion candidate.
func (e *Engine) step(ctx context.Context, fence *geofenceState, sample Sample) bool {
	radius := fence.venue.RadiusKm
	if radius <= 0 {
		radius = e.cfg.DefaultVenueRadiusKm
	}
	within := geo.IsWithinRadius(fence.venue.Location, sample.Coords, radius)

	switch fence.state {
	case stateOutside:
		if within {
			fence.state = statePendingArrival
			fence.enteredAt = sample.Time
		}

	case statePendingArrival:
		if !within {
			// Brief pass: dwell never reached the threshold.
			fence.state = stateOutside
			fence.enteredAt = time.Time{}
			return false
		}
		if sample.Time.Sub(fence.enteredAt) >= e.cfg.DwellThreshold {
			return true
		}

	case stateConfirmedActive:
		if fence.venue.ID == e.activeVenueID && !within {
			fence.state = statePendingDeparture
			fence.exitedAt = sample.Time
		}

	case statePendingDeparture:
		if within {
			// Re-entry before the window elapsed: GPS noise, not a departure.
			fence.state = stateConfirmedActive
			fence.exitedAt = time.Time{}
		}
	}

	return false
}

// promote confirms an arrival: the visit is flushed to the local store
// before the engine reports success.
func (e *Engine) promote(ctx context.Context, fence *geofenceState) error {
	visit := &domain.Visit{
		ID:              uuid.New().String(),
		UserID:          e.userID,
		VenueID:         fence.venue.ID,
		ArrivalTime:     fence.enteredAt,
		IsActive:        true,
		DetectionMethod: domain.DetectionMethodGeofence,
		Synced:          false,
	}

	if err := e.store.Save(ctx, visit); err != nil {
		return err
	}

	fence.state = stateConfirmedActive
	e.activeVisitID = visit.ID
	e.activeVenueID = fence.venue.ID

	e.log.WithFields(logrus.Fields{
		"visit_id": visit.ID,
		"venue_id": visit.VenueID,
		"arrival":  visit.ArrivalTime,
	}).Info("visit confirmed")

	return nil
}

// close finalizes the active visit with the given departure time and resets
// the fence so a fresh arrival starts a new detection cycle.
func (e *Engine) close(ctx context.Context, departedAt time.Time) (*domain.Visit, error) {
	visit, err := e.resolveActive(ctx)
	if err != nil {
		return nil, err
	}

	visit.DepartureTime = departedAt
	visit.IsActive = false
	visit.DurationMinutes = durationMinutes(visit.ArrivalTime, departedAt)
	visit.Synced = false

	if err := e.store.Save(ctx, visit); err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"visit_id":         visit.ID,
		"venue_id":         visit.VenueID,
		"duration_minutes": visit.DurationMinutes,
	}).Info("visit closed")

	delete(e.fences, visit.VenueID)
	e.activeVisitID = ""
	e.activeVenueID = ""

	return visit, nil
}

// resolveActive loads the active visit record. A sync pass can rename the
// row to its server-confirmed id while the visit is still open, so a miss
// on the remembered id falls back to the store's active row for the user
// and adopts the new id.
func (e *Engine) resolveActive(ctx context.Context) (*domain.Visit, error) {
	visit, err := e.store.FindByID(ctx, e.activeVisitID)
	if err == nil {
		return visit, nil
	}
	if !errors.Is(err, localstore.ErrNotFound) {
		return nil, err
	}

	visits, err := e.store.FindByUserID(ctx, e.userID)
	if err != nil {
		return nil, err
	}
	for _, v := range visits {
		if v.IsActive && v.VenueID == e.activeVenueID {
			e.activeVisitID = v.ID
			return v, nil
		}
	}

	return nil, localstore.ErrNotFound
}

// CheckOut closes the active visit immediately, bypassing the departure
// confirmation window. The recorded detection method is preserved.
func (e *Engine) CheckOut(ctx context.Context) (*domain.Visit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeVisitID == "" {
		return nil, ErrNoActiveVisit
	}

	return e.close(ctx, e.now())
}

// ActiveVisitID returns the id of the confirmed active visit, or "".
func (e *Engine) ActiveVisitID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeVisitID
}

// TrackedVenues returns the number of venues with an in-progress arrival or
// departure window.
func (e *Engine) TrackedVenues() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.fences)
}

func durationMinutes(arrival, departure time.Time) int {
	return int(math.Round(departure.Sub(arrival).Minutes()))
}

func validSample(sample Sample) bool {
	lat := sample.Coords.Latitude
	lng := sample.Coords.Longitude

	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return false
	}

	return !sample.Time.IsZero()
}
