package tests

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"visits/internal/domain"
	"visits/internal/localstore"
	"visits/internal/redis"
	"visits/internal/repository"
	"visits/internal/visitapi"
)

// ──────────────────────────────────────────────
// MOCK LOCAL VISIT STORE
// ──────────────────────────────────────────────

// MockVisitStore is an in-memory implementation of localstore.Store.
type MockVisitStore struct {
	mu     sync.RWMutex
	visits map[string]*domain.Visit

	// Counters for verification
	SaveCallCount       int32
	MarkSyncedCallCount int32

	// Error injection
	SaveError         error
	FindUnsyncedError error
}

// NewMockVisitStore creates a new mock visit store.
func NewMockVisitStore() *MockVisitStore {
	return &MockVisitStore{
		visits: make(map[string]*domain.Visit),
	}
}

// AddVisit seeds a visit into the store.
func (m *MockVisitStore) AddVisit(visit *domain.Visit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *visit
	m.visits[visit.ID] = &copy
}

func (m *MockVisitStore) Save(ctx context.Context, visit *domain.Visit) error {
	atomic.AddInt32(&m.SaveCallCount, 1)
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *visit
	m.visits[visit.ID] = &copy
	return nil
}

func (m *MockVisitStore) BatchSave(ctx context.Context, visits []*domain.Visit) error {
	for _, v := range visits {
		if err := m.Save(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockVisitStore) FindByID(ctx context.Context, id string) (*domain.Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	visit, ok := m.visits[id]
	if !ok {
		return nil, localstore.ErrNotFound
	}
	copy := *visit
	return &copy, nil
}

func (m *MockVisitStore) FindByUserID(ctx context.Context, userID string) ([]*domain.Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Visit, 0)
	for _, v := range m.visits {
		if v.UserID == userID {
			copy := *v
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ArrivalTime.After(result[j].ArrivalTime)
	})
	return result, nil
}

func (m *MockVisitStore) FindUnsynced(ctx context.Context) ([]*domain.Visit, error) {
	if m.FindUnsyncedError != nil {
		return nil, m.FindUnsyncedError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Visit, 0)
	for _, v := range m.visits {
		if !v.Synced && !v.Rejected {
			copy := *v
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ArrivalTime.Before(result[j].ArrivalTime)
	})
	return result, nil
}

func (m *MockVisitStore) MarkSynced(ctx context.Context, localID, serverID string) error {
	atomic.AddInt32(&m.MarkSyncedCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	visit, ok := m.visits[localID]
	if !ok {
		return localstore.ErrNotFound
	}
	if serverID != localID {
		delete(m.visits, localID)
		visit.ID = serverID
		m.visits[serverID] = visit
	}
	visit.Synced = true
	return nil
}

func (m *MockVisitStore) IncrementSyncAttempts(ctx context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	visit, ok := m.visits[id]
	if !ok {
		return 0, localstore.ErrNotFound
	}
	visit.SyncAttempts++
	return visit.SyncAttempts, nil
}

func (m *MockVisitStore) MarkRejected(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	visit, ok := m.visits[id]
	if !ok {
		return localstore.ErrNotFound
	}
	visit.Rejected = true
	return nil
}

func (m *MockVisitStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.visits[id]; !ok {
		return localstore.ErrNotFound
	}
	delete(m.visits, id)
	return nil
}

// GetVisit returns a visit for test assertions.
func (m *MockVisitStore) GetVisit(id string) *domain.Visit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.visits[id]
}

// CountVisits returns the number of stored visits.
func (m *MockVisitStore) CountVisits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.visits)
}

// ──────────────────────────────────────────────
// MOCK VENUE SOURCE
// ──────────────────────────────────────────────

// MockVenueSource is a static implementation of detection.VenueSource.
type MockVenueSource struct {
	mu     sync.RWMutex
	venues []*domain.Venue

	// Error injection
	VenuesError error
}

// NewMockVenueSource creates a venue source serving a fixed catalog.
func NewMockVenueSource(venues ...*domain.Venue) *MockVenueSource {
	return &MockVenueSource{venues: venues}
}

func (m *MockVenueSource) Venues(ctx context.Context, near domain.Coordinates) ([]*domain.Venue, error) {
	if m.VenuesError != nil {
		return nil, m.VenuesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.venues, nil
}

// SetVenues replaces the catalog.
func (m *MockVenueSource) SetVenues(venues ...*domain.Venue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.venues = venues
}

// ──────────────────────────────────────────────
// MOCK SYNC CLIENT
// ──────────────────────────────────────────────

// MockSyncClient is a scripted implementation of syncer.Client.
type MockSyncClient struct {
	mu sync.Mutex

	// Rejections maps visit ids that the server should reject to an error
	// message. Everything else syncs.
	Rejections map[string]string

	// Counters for verification
	BatchSyncCallCount int32

	// Error injection
	BatchSyncError error

	// Batches records every batch received, for assertions.
	Batches [][]string
}

// NewMockSyncClient creates a new mock sync client.
func NewMockSyncClient() *MockSyncClient {
	return &MockSyncClient{
		Rejections: make(map[string]string),
	}
}

func (m *MockSyncClient) BatchSync(ctx context.Context, visits []*domain.Visit) ([]visitapi.SyncResult, error) {
	atomic.AddInt32(&m.BatchSyncCallCount, 1)
	if m.BatchSyncError != nil {
		return nil, m.BatchSyncError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(visits))
	results := make([]visitapi.SyncResult, 0, len(visits))
	for _, v := range visits {
		ids = append(ids, v.ID)
		if reason, rejected := m.Rejections[v.ID]; rejected {
			results = append(results, visitapi.SyncResult{
				ClientID: v.ID,
				Status:   visitapi.StatusRejected,
				Error:    reason,
			})
			continue
		}
		results = append(results, visitapi.SyncResult{
			ClientID: v.ID,
			ServerID: v.ID,
			Status:   visitapi.StatusSynced,
		})
	}
	m.Batches = append(m.Batches, ids)

	return results, nil
}

// ──────────────────────────────────────────────
// MOCK NETWORK STATUS
// ──────────────────────────────────────────────

// MockNetworkStatus reports a settable online flag.
type MockNetworkStatus struct {
	online atomic.Bool
}

// NewMockNetworkStatus creates a network status mock, initially online.
func NewMockNetworkStatus() *MockNetworkStatus {
	m := &MockNetworkStatus{}
	m.online.Store(true)
	return m
}

func (m *MockNetworkStatus) Online(ctx context.Context) bool {
	return m.online.Load()
}

// SetOnline flips the reported connectivity.
func (m *MockNetworkStatus) SetOnline(online bool) {
	m.online.Store(online)
}

// ──────────────────────────────────────────────
// MOCK VISIT REPOSITORY
// ──────────────────────────────────────────────

// MockVisitRepository is a mock implementation of VisitRepository.
type MockVisitRepository struct {
	mu     sync.RWMutex
	visits map[string]*domain.Visit

	// Counters for verification
	UpsertCallCount          int32
	UpdateDepartureCallCount int32

	// Error injection
	UpsertError          error
	UpdateDepartureError error
}

// NewMockVisitRepository creates a new mock visit repository.
func NewMockVisitRepository() *MockVisitRepository {
	return &MockVisitRepository{
		visits: make(map[string]*domain.Visit),
	}
}

// AddVisit seeds a visit.
func (m *MockVisitRepository) AddVisit(visit *domain.Visit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *visit
	m.visits[visit.ID] = &copy
}

func (m *MockVisitRepository) Upsert(ctx context.Context, visit *domain.Visit) error {
	atomic.AddInt32(&m.UpsertCallCount, 1)
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *visit
	m.visits[visit.ID] = &copy
	return nil
}

func (m *MockVisitRepository) GetByID(ctx context.Context, id string) (*domain.Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	visit, ok := m.visits[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *visit
	return &copy, nil
}

func (m *MockVisitRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Visit, 0)
	for _, v := range m.visits {
		if v.UserID == userID {
			copy := *v
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ArrivalTime.After(result[j].ArrivalTime)
	})
	return result, nil
}

func (m *MockVisitRepository) GetActiveByUserID(ctx context.Context, userID string) (*domain.Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.visits {
		if v.UserID == userID && v.IsActive {
			copy := *v
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockVisitRepository) UpdateDeparture(ctx context.Context, id string, departedAt time.Time, durationMinutes int) error {
	atomic.AddInt32(&m.UpdateDepartureCallCount, 1)
	if m.UpdateDepartureError != nil {
		return m.UpdateDepartureError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	visit, ok := m.visits[id]
	if !ok {
		return repository.ErrNotFound
	}
	visit.DepartureTime = departedAt
	visit.IsActive = false
	visit.DurationMinutes = durationMinutes
	return nil
}

// GetVisit returns a visit for test assertions.
func (m *MockVisitRepository) GetVisit(id string) *domain.Visit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.visits[id]
}

// ──────────────────────────────────────────────
// MOCK VENUE REPOSITORY
// ──────────────────────────────────────────────

// MockVenueRepository is a mock implementation of VenueRepository.
type MockVenueRepository struct {
	mu     sync.RWMutex
	venues map[string]*domain.Venue

	// Counters for verification
	GetAllCallCount int32

	// Error injection
	CreateError error
	GetAllError error
}

// NewMockVenueRepository creates a new mock venue repository.
func NewMockVenueRepository() *MockVenueRepository {
	return &MockVenueRepository{
		venues: make(map[string]*domain.Venue),
	}
}

// AddVenue seeds a venue.
func (m *MockVenueRepository) AddVenue(venue *domain.Venue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *venue
	m.venues[venue.ID] = &copy
}

func (m *MockVenueRepository) Create(ctx context.Context, venue *domain.Venue) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *venue
	m.venues[venue.ID] = &copy
	return nil
}

func (m *MockVenueRepository) GetByID(ctx context.Context, id string) (*domain.Venue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	venue, ok := m.venues[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *venue
	return &copy, nil
}

func (m *MockVenueRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Venue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Venue, 0, len(ids))
	for _, id := range ids {
		if venue, ok := m.venues[id]; ok {
			copy := *venue
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockVenueRepository) GetAll(ctx context.Context) ([]*domain.Venue, error) {
	atomic.AddInt32(&m.GetAllCallCount, 1)
	if m.GetAllError != nil {
		return nil, m.GetAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Venue, 0, len(m.venues))
	for _, v := range m.venues {
		copy := *v
		result = append(result, &copy)
	}
	return result, nil
}

// ──────────────────────────────────────────────
// MOCK GEO / LOCK STORES
// ──────────────────────────────────────────────

// MockVenueGeoStore is a mock implementation of VenueGeoStoreInterface.
type MockVenueGeoStore struct {
	mu        sync.RWMutex
	locations []redis.VenueLocation

	// Error injection
	FindError error
}

// NewMockVenueGeoStore creates a new mock geo store.
func NewMockVenueGeoStore() *MockVenueGeoStore {
	return &MockVenueGeoStore{}
}

// AddLocation seeds a geo index entry.
func (m *MockVenueGeoStore) AddLocation(loc redis.VenueLocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = append(m.locations, loc)
}

func (m *MockVenueGeoStore) AddVenue(ctx context.Context, venueID string, lat, lng float64) error {
	m.AddLocation(redis.VenueLocation{VenueID: venueID, Lat: lat, Lng: lng})
	return nil
}

func (m *MockVenueGeoStore) FindNearbyVenues(ctx context.Context, lat, lng, radiusKm float64) ([]redis.VenueLocation, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]redis.VenueLocation, len(m.locations))
	copy(result, m.locations)
	return result, nil
}

func (m *MockVenueGeoStore) RemoveVenue(ctx context.Context, venueID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, loc := range m.locations {
		if loc.VenueID == venueID {
			m.locations = append(m.locations[:i], m.locations[i+1:]...)
			return nil
		}
	}
	return nil
}

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]bool

	// Error injection
	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]bool),
	}
}

func (m *MockLockStore) AcquireUserSyncLock(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[userID] {
		return false, nil
	}
	m.locks[userID] = true
	return true, nil
}

func (m *MockLockStore) ReleaseUserSyncLock(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, userID)
	return nil
}

// HoldLock simulates another process holding the user's lock.
func (m *MockLockStore) HoldLock(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[userID] = true
}
