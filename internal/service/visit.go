package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"visits/internal/domain"
	"visits/internal/redis"
	"visits/internal/repository"
	"visits/internal/repository/postgres"
)

// syncLockTTL bounds how long a user's batch sync lock can be held.
const syncLockTTL = 30 * time.Second

// VisitService handles visit sync and lifecycle operations.
type VisitService struct {
	db        *sql.DB
	visitRepo repository.VisitRepository
	venueRepo repository.VenueRepository
	lockStore redis.LockStoreInterface
}

// NewVisitService creates a new VisitService.
func NewVisitService(
	db *sql.DB,
	visitRepo repository.VisitRepository,
	venueRepo repository.VenueRepository,
	lockStore redis.LockStoreInterface,
) *VisitService {
	return &VisitService{
		db:        db,
		visitRepo: visitRepo,
		venueRepo: venueRepo,
		lockStore: lockStore,
	}
}

// BatchSyncRequest contains the parameters for syncing a batch of visits.
type BatchSyncRequest struct {
	UserID string
	Visits []*domain.Visit
}

// SyncOutcome reports the server's decision for one batch item.
type SyncOutcome struct {
	ClientID string
	ServerID string
	Err      error
}

// BatchSyncResponse contains the per-item results of a batch sync.
type BatchSyncResponse struct {
	Outcomes []SyncOutcome
}

// BatchSync applies a batch of client-recorded visits. Each visit is applied
// in its own transaction, so a rejected item never blocks the rest of the
// batch. The operation is idempotent: re-sending an already-applied visit
// upserts the same row.
func (s *VisitService) BatchSync(ctx context.Context, req BatchSyncRequest) (*BatchSyncResponse, error) {
	if req.UserID == "" {
		return nil, ErrInvalidUserID
	}

	// Serialize concurrent syncs for the same user so two devices can't
	// interleave active-visit updates.
	acquired, err := s.lockStore.AcquireUserSyncLock(ctx, req.UserID, syncLockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrSyncInProgress
	}
	defer func() {
		_ = s.lockStore.ReleaseUserSyncLock(context.WithoutCancel(ctx), req.UserID)
	}()

	outcomes := make([]SyncOutcome, 0, len(req.Visits))
	for _, visit := range req.Visits {
		outcome := SyncOutcome{ClientID: visit.ID}
		if err := s.applyVisit(ctx, req.UserID, visit); err != nil {
			outcome.Err = err
		} else {
			// The client's UUID is the canonical id.
			outcome.ServerID = visit.ID
		}
		outcomes = append(outcomes, outcome)
	}

	return &BatchSyncResponse{Outcomes: outcomes}, nil
}

// applyVisit validates and persists a single synced visit.
func (s *VisitService) applyVisit(ctx context.Context, userID string, visit *domain.Visit) error {
	if err := s.validateVisit(userID, visit); err != nil {
		return err
	}

	// Reject visits for venues the server doesn't know about.
	if _, err := s.venueRepo.GetByID(ctx, visit.VenueID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownVenue
		}
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	txVisitRepo := postgres.NewVisitRepositoryWithTx(tx)

	// A user has at most one active visit. If this synced visit is active,
	// close any other visit still marked active for the user.
	if visit.IsActive {
		var active *domain.Visit
		active, err = txVisitRepo.GetActiveByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if active != nil && active.ID != visit.ID {
			duration := int(visit.ArrivalTime.Sub(active.ArrivalTime).Round(time.Minute).Minutes())
			if duration < 0 {
				duration = 0
			}
			if err = txVisitRepo.UpdateDeparture(ctx, active.ID, visit.ArrivalTime, duration); err != nil {
				return err
			}
		}
	}

	if err = txVisitRepo.Upsert(ctx, visit); err != nil {
		return err
	}

	return tx.Commit()
}

// validateVisit checks a synced visit's fields.
func (s *VisitService) validateVisit(userID string, visit *domain.Visit) error {
	if visit.ID == "" {
		return ErrInvalidVisitID
	}
	if visit.UserID != userID {
		return ErrUserMismatch
	}
	if visit.VenueID == "" {
		return ErrInvalidVenueID
	}
	if visit.ArrivalTime.IsZero() {
		return ErrInvalidArrivalTime
	}
	if visit.DetectionMethod != domain.DetectionMethodGeofence && visit.DetectionMethod != domain.DetectionMethodManual {
		visit.DetectionMethod = domain.DetectionMethodGeofence
	}
	if !visit.IsActive {
		if visit.DepartureTime.IsZero() {
			return ErrInvalidDeparture
		}
		if visit.DepartureTime.Before(visit.ArrivalTime) {
			return ErrInvalidDeparture
		}
	}
	return nil
}

// CheckOutRequest contains the parameters for closing a visit.
type CheckOutRequest struct {
	VisitID    string
	UserID     string    // Optional: when set, the visit must belong to this user
	DepartedAt time.Time // Optional: zero means now
}

// CheckOut closes an active visit with the given departure time.
func (s *VisitService) CheckOut(ctx context.Context, req CheckOutRequest) (*domain.Visit, error) {
	if req.VisitID == "" {
		return nil, ErrInvalidVisitID
	}

	visit, err := s.visitRepo.GetByID(ctx, req.VisitID)
	if err != nil {
		return nil, err
	}

	if req.UserID != "" && visit.UserID != req.UserID {
		return nil, ErrUserMismatch
	}

	if !visit.IsActive {
		return nil, ErrVisitNotActive
	}

	departedAt := req.DepartedAt
	if departedAt.IsZero() {
		departedAt = time.Now()
	}
	if departedAt.Before(visit.ArrivalTime) {
		return nil, ErrInvalidDeparture
	}

	duration := int(departedAt.Sub(visit.ArrivalTime).Round(time.Minute).Minutes())
	if err := s.visitRepo.UpdateDeparture(ctx, req.VisitID, departedAt, duration); err != nil {
		return nil, err
	}

	visit.DepartureTime = departedAt
	visit.IsActive = false
	visit.DurationMinutes = duration
	return visit, nil
}

// TimelineEntry pairs a visit with its venue for history views.
type TimelineEntry struct {
	Visit *domain.Visit
	Venue *domain.Venue // nil if the venue was since removed
}

// Timeline returns a user's visit history, most recent arrival first, with
// each visit's venue joined in.
func (s *VisitService) Timeline(ctx context.Context, userID string) ([]TimelineEntry, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	visits, err := s.visitRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	venueIDs := make([]string, 0, len(visits))
	for _, visit := range visits {
		if !seen[visit.VenueID] {
			seen[visit.VenueID] = true
			venueIDs = append(venueIDs, visit.VenueID)
		}
	}

	venuesByID := make(map[string]*domain.Venue, len(venueIDs))
	if len(venueIDs) > 0 {
		venues, err := s.venueRepo.GetByIDs(ctx, venueIDs)
		if err != nil {
			return nil, err
		}
		for _, venue := range venues {
			venuesByID[venue.ID] = venue
		}
	}

	entries := make([]TimelineEntry, 0, len(visits))
	for _, visit := range visits {
		entries = append(entries, TimelineEntry{
			Visit: visit,
			Venue: venuesByID[visit.VenueID],
		})
	}

	return entries, nil
}
