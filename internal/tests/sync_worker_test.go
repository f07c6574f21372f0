package tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"visits/internal/domain"
	"visits/internal/syncer"
	"visits/internal/visitapi"
)

// ──────────────────────────────────────────────
// 2. SYNC WORKER
// ──────────────────────────────────────────────

func unsyncedVisit(id string, arrival time.Time) *domain.Visit {
	return &domain.Visit{
		ID:              id,
		UserID:          "user-1",
		VenueID:         "venue-1",
		ArrivalTime:     arrival,
		IsActive:        false,
		DepartureTime:   arrival.Add(30 * time.Minute),
		DurationMinutes: 30,
		DetectionMethod: domain.DetectionMethodGeofence,
	}
}

func TestSyncWorker_DrainsUnsyncedVisits(t *testing.T) {
	t.Parallel()

	store := NewMockVisitStore()
	client := NewMockSyncClient()
	base := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)

	store.AddVisit(unsyncedVisit("visit-1", base))
	store.AddVisit(unsyncedVisit("visit-2", base.Add(time.Hour)))

	worker := syncer.NewWorker(store, client, NewMockNetworkStatus(), syncer.Config{}, nil)

	if err := worker.ForceSync(context.Background()); err != nil {
		t.Fatalf("ForceSync failed: %v", err)
	}

	if !store.GetVisit("visit-1").Synced || !store.GetVisit("visit-2").Synced {
		t.Error("both visits should be marked synced")
	}

	// Second pass finds nothing to send.
	if err := worker.ForceSync(context.Background()); err != nil {
		t.Fatalf("second ForceSync failed: %v", err)
	}
	if got := atomic.LoadInt32(&client.BatchSyncCallCount); got != 1 {
		t.Errorf("BatchSync calls = %d, want 1 (empty queue skips the API)", got)
	}
}

func TestSyncWorker_OfflineDefersSync(t *testing.T) {
	t.Parallel()

	store := NewMockVisitStore()
	client := NewMockSyncClient()
	network := NewMockNetworkStatus()
	network.SetOnline(false)

	base := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)
	store.AddVisit(unsyncedVisit("visit-1", base))

	worker := syncer.NewWorker(store, client, network, syncer.Config{}, nil)

	if err := worker.ForceSync(context.Background()); err != nil {
		t.Fatalf("offline sync must defer, not fail: %v", err)
	}
	if atomic.LoadInt32(&client.BatchSyncCallCount) != 0 {
		t.Error("no API call should happen while offline")
	}
	if store.GetVisit("visit-1").Synced {
		t.Error("visit must stay queued while offline")
	}

	// Back online: the queue drains.
	network.SetOnline(true)
	if err := worker.ForceSync(context.Background()); err != nil {
		t.Fatalf("ForceSync failed: %v", err)
	}
	if !store.GetVisit("visit-1").Synced {
		t.Error("visit should sync once back online")
	}
}

func TestSyncWorker_TransientFailureKeepsQueue(t *testing.T) {
	t.Parallel()

	store := NewMockVisitStore()
	client := NewMockSyncClient()
	client.BatchSyncError = errors.New("connection reset")

	base := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)
	store.AddVisit(unsyncedVisit("visit-1", base))

	worker := syncer.NewWorker(store, client, NewMockNetworkStatus(), syncer.Config{}, nil)

	if err := worker.ForceSync(context.Background()); err == nil {
		t.Fatal("transport failure must surface from ForceSync")
	}
	if store.GetVisit("visit-1").Synced {
		t.Error("visit must stay queued after a transport failure")
	}
	if store.GetVisit("visit-1").SyncAttempts != 0 {
		t.Error("transport failures are not rejections")
	}

	// Recovery: the same visit goes out again.
	client.BatchSyncError = nil
	if err := worker.ForceSync(context.Background()); err != nil {
		t.Fatalf("ForceSync after recovery failed: %v", err)
	}
	if !store.GetVisit("visit-1").Synced {
		t.Error("visit should sync after the transport recovers")
	}
}

func TestSyncWorker_RejectionCapFlagsVisit(t *testing.T) {
	t.Parallel()

	store := NewMockVisitStore()
	client := NewMockSyncClient()
	client.Rejections["visit-bad"] = "unknown venue"

	base := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)
	store.AddVisit(unsyncedVisit("visit-bad", base))
	store.AddVisit(unsyncedVisit("visit-ok", base.Add(time.Hour)))

	worker := syncer.NewWorker(store, client, NewMockNetworkStatus(), syncer.Config{MaxRejections: 3}, nil)

	for i := 0; i < 3; i++ {
		if err := worker.ForceSync(context.Background()); err != nil {
			t.Fatalf("ForceSync %d failed: %v", i+1, err)
		}
	}

	bad := store.GetVisit("visit-bad")
	if bad == nil {
		t.Fatal("rejected visit must never be deleted")
	}
	if bad.SyncAttempts != 3 {
		t.Errorf("sync attempts = %d, want 3", bad.SyncAttempts)
	}
	if !bad.Rejected {
		t.Error("visit should be flagged rejected at the cap")
	}
	if !store.GetVisit("visit-ok").Synced {
		t.Error("a rejected item must not block the rest of the batch")
	}

	// Flagged visits drop out of future batches.
	calls := atomic.LoadInt32(&client.BatchSyncCallCount)
	if err := worker.ForceSync(context.Background()); err != nil {
		t.Fatalf("ForceSync failed: %v", err)
	}
	if atomic.LoadInt32(&client.BatchSyncCallCount) != calls {
		t.Error("rejected visit must be excluded from later sync batches")
	}
}

func TestSyncWorker_BatchesLargeQueues(t *testing.T) {
	t.Parallel()

	store := NewMockVisitStore()
	client := NewMockSyncClient()
	base := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		store.AddVisit(unsyncedVisit("visit-"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute)))
	}

	worker := syncer.NewWorker(store, client, NewMockNetworkStatus(), syncer.Config{BatchSize: 2}, nil)

	if err := worker.ForceSync(context.Background()); err != nil {
		t.Fatalf("ForceSync failed: %v", err)
	}

	if got := len(client.Batches); got != 3 {
		t.Fatalf("batch count = %d, want 3 (5 visits, batch size 2)", got)
	}
	for i, batch := range client.Batches[:2] {
		if len(batch) != 2 {
			t.Errorf("batch %d size = %d, want 2", i, len(batch))
		}
	}
	if len(client.Batches[2]) != 1 {
		t.Errorf("final batch size = %d, want 1", len(client.Batches[2]))
	}
}

func TestSyncWorker_ServerIDReconciliation(t *testing.T) {
	t.Parallel()

	store := NewMockVisitStore()
	base := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)
	store.AddVisit(unsyncedVisit("visit-local", base))

	// Client whose server answers with a different canonical id.
	client := &renamingSyncClient{serverID: "visit-server"}

	worker := syncer.NewWorker(store, client, NewMockNetworkStatus(), syncer.Config{}, nil)

	if err := worker.ForceSync(context.Background()); err != nil {
		t.Fatalf("ForceSync failed: %v", err)
	}

	if store.GetVisit("visit-local") != nil {
		t.Error("local id should be reconciled away")
	}
	renamed := store.GetVisit("visit-server")
	if renamed == nil || !renamed.Synced {
		t.Fatal("visit should live on under the server id, synced")
	}
}

// renamingSyncClient acknowledges every visit under a fixed server id.
type renamingSyncClient struct {
	serverID string
}

func (c *renamingSyncClient) BatchSync(ctx context.Context, visits []*domain.Visit) ([]visitapi.SyncResult, error) {
	results := make([]visitapi.SyncResult, 0, len(visits))
	for _, v := range visits {
		results = append(results, visitapi.SyncResult{
			ClientID: v.ID,
			ServerID: c.serverID,
			Status:   visitapi.StatusSynced,
		})
	}
	return results, nil
}

func TestSyncWorker_LocallyDeletedVisitSkipsReconciliation(t *testing.T) {
	t.Parallel()

	store := NewMockVisitStore()
	base := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)
	store.AddVisit(unsyncedVisit("visit-gone", base))
	store.AddVisit(unsyncedVisit("visit-kept", base.Add(time.Hour)))

	// The server acknowledges a visit the user deleted locally while the
	// batch was in flight.
	client := &deletingSyncClient{store: store, deleteID: "visit-gone"}

	worker := syncer.NewWorker(store, client, NewMockNetworkStatus(), syncer.Config{}, nil)

	if err := worker.ForceSync(context.Background()); err != nil {
		t.Fatalf("ForceSync failed: %v", err)
	}

	if store.GetVisit("visit-gone") != nil {
		t.Error("deleted visit must not be resurrected")
	}
	if !store.GetVisit("visit-kept").Synced {
		t.Error("remaining visits must still reconcile")
	}
}

// deletingSyncClient removes one visit from the local store while the batch
// is in flight, then acknowledges everything.
type deletingSyncClient struct {
	store    *MockVisitStore
	deleteID string
}

func (c *deletingSyncClient) BatchSync(ctx context.Context, visits []*domain.Visit) ([]visitapi.SyncResult, error) {
	_ = c.store.Delete(ctx, c.deleteID)
	results := make([]visitapi.SyncResult, 0, len(visits))
	for _, v := range visits {
		results = append(results, visitapi.SyncResult{
			ClientID: v.ID,
			ServerID: v.ID,
			Status:   visitapi.StatusSynced,
		})
	}
	return results, nil
}

func TestSyncWorker_NotifyCoalesces(t *testing.T) {
	t.Parallel()

	worker := syncer.NewWorker(NewMockVisitStore(), NewMockSyncClient(), NewMockNetworkStatus(), syncer.Config{}, nil)

	// Many notifications before Run drains them must not block.
	for i := 0; i < 10; i++ {
		worker.Notify()
	}
}
