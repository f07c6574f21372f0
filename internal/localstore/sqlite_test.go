package localstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"visits/internal/domain"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "visits.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func testVisit(id string, arrival time.Time) *domain.Visit {
	return &domain.Visit{
		ID:              id,
		UserID:          "user-1",
		VenueID:         "venue-1",
		ArrivalTime:     arrival,
		IsActive:        true,
		DetectionMethod: domain.DetectionMethodGeofence,
	}
}

func TestSQLiteStore_SaveAndFindByID(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	arrival := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)

	if err := store.Save(ctx, testVisit("visit-1", arrival)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	visit, err := store.FindByID(ctx, "visit-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}

	if visit.UserID != "user-1" || visit.VenueID != "venue-1" {
		t.Errorf("unexpected visit %+v", visit)
	}
	if !visit.ArrivalTime.Equal(arrival) {
		t.Errorf("arrival = %v, want %v", visit.ArrivalTime, arrival)
	}
	if !visit.DepartureTime.IsZero() {
		t.Errorf("active visit should have zero departure, got %v", visit.DepartureTime)
	}
	if !visit.IsActive || visit.Synced {
		t.Error("visit should be active and unsynced")
	}

	if _, err := store.FindByID(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_SaveIsUpsert(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	arrival := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)

	visit := testVisit("visit-1", arrival)
	if err := store.Save(ctx, visit); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Close the same visit and save again under the same id.
	visit.IsActive = false
	visit.DepartureTime = arrival.Add(45 * time.Minute)
	visit.DurationMinutes = 45
	if err := store.Save(ctx, visit); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	visits, err := store.FindByUserID(ctx, "user-1")
	if err != nil {
		t.Fatalf("FindByUserID failed: %v", err)
	}
	if len(visits) != 1 {
		t.Fatalf("visit count = %d, want 1 (upsert, not insert)", len(visits))
	}
	if visits[0].IsActive || visits[0].DurationMinutes != 45 {
		t.Errorf("update not applied: %+v", visits[0])
	}
	if !visits[0].DepartureTime.Equal(visit.DepartureTime) {
		t.Errorf("departure = %v, want %v", visits[0].DepartureTime, visit.DepartureTime)
	}
}

func TestSQLiteStore_FindByUserIDOrdersByArrivalDesc(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)

	err := store.BatchSave(ctx, []*domain.Visit{
		testVisit("visit-old", base),
		testVisit("visit-new", base.Add(2*time.Hour)),
		testVisit("visit-mid", base.Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("BatchSave failed: %v", err)
	}

	visits, err := store.FindByUserID(ctx, "user-1")
	if err != nil {
		t.Fatalf("FindByUserID failed: %v", err)
	}

	want := []string{"visit-new", "visit-mid", "visit-old"}
	if len(visits) != len(want) {
		t.Fatalf("visit count = %d, want %d", len(visits), len(want))
	}
	for i, id := range want {
		if visits[i].ID != id {
			t.Errorf("visits[%d] = %s, want %s", i, visits[i].ID, id)
		}
	}

	other, err := store.FindByUserID(ctx, "user-2")
	if err != nil {
		t.Fatalf("FindByUserID failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other user's visits = %d, want 0", len(other))
	}
}

func TestSQLiteStore_FindUnsyncedFilters(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)

	pending := testVisit("visit-pending", base)
	pendingActive := testVisit("visit-pending-active", base.Add(time.Minute))

	synced := testVisit("visit-synced", base.Add(2*time.Minute))
	synced.Synced = true

	rejected := testVisit("visit-rejected", base.Add(3*time.Minute))
	rejected.Rejected = true

	if err := store.BatchSave(ctx, []*domain.Visit{pending, pendingActive, synced, rejected}); err != nil {
		t.Fatalf("BatchSave failed: %v", err)
	}

	unsynced, err := store.FindUnsynced(ctx)
	if err != nil {
		t.Fatalf("FindUnsynced failed: %v", err)
	}

	if len(unsynced) != 2 {
		t.Fatalf("unsynced count = %d, want 2", len(unsynced))
	}
	// Oldest arrival first.
	if unsynced[0].ID != "visit-pending" || unsynced[1].ID != "visit-pending-active" {
		t.Errorf("unexpected order: %s, %s", unsynced[0].ID, unsynced[1].ID)
	}
}

func TestSQLiteStore_MarkSyncedReconcilesServerID(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)

	if err := store.Save(ctx, testVisit("visit-local", base)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.MarkSynced(ctx, "visit-local", "visit-server"); err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}

	if _, err := store.FindByID(ctx, "visit-local"); !errors.Is(err, ErrNotFound) {
		t.Error("local id should no longer resolve")
	}

	visit, err := store.FindByID(ctx, "visit-server")
	if err != nil {
		t.Fatalf("server id lookup failed: %v", err)
	}
	if !visit.Synced {
		t.Error("visit should be marked synced")
	}

	if err := store.MarkSynced(ctx, "visit-missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkSynced on missing visit = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_RejectionBookkeeping(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)

	if err := store.Save(ctx, testVisit("visit-1", base)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := store.IncrementSyncAttempts(ctx, "visit-1")
		if err != nil {
			t.Fatalf("IncrementSyncAttempts failed: %v", err)
		}
		if got != want {
			t.Errorf("attempts = %d, want %d", got, want)
		}
	}

	if err := store.MarkRejected(ctx, "visit-1"); err != nil {
		t.Fatalf("MarkRejected failed: %v", err)
	}

	visit, err := store.FindByID(ctx, "visit-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !visit.Rejected || visit.SyncAttempts != 3 {
		t.Errorf("rejection state = %+v", visit)
	}

	// The record survives rejection for manual correction.
	unsynced, err := store.FindUnsynced(ctx)
	if err != nil {
		t.Fatalf("FindUnsynced failed: %v", err)
	}
	if len(unsynced) != 0 {
		t.Error("rejected visit must not be offered for sync")
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, testVisit("visit-1", time.Now().UTC())); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Delete(ctx, "visit-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.FindByID(ctx, "visit-1"); !errors.Is(err, ErrNotFound) {
		t.Error("deleted visit should be gone")
	}
	if err := store.Delete(ctx, "visit-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete = %v, want ErrNotFound", err)
	}
}
