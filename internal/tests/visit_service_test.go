package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"visits/internal/domain"
	"visits/internal/service"
)

// ──────────────────────────────────────────────
// 3. SERVER-SIDE VISIT OPERATIONS
// ──────────────────────────────────────────────

var serviceBase = time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)

func TestVisitService_CheckOutClosesActiveVisit(t *testing.T) {
	t.Parallel()

	visitRepo := NewMockVisitRepository()
	visitRepo.AddVisit(&domain.Visit{
		ID:              "visit-1",
		UserID:          "user-1",
		VenueID:         "venue-1",
		ArrivalTime:     serviceBase,
		IsActive:        true,
		DetectionMethod: domain.DetectionMethodGeofence,
	})

	svc := service.NewVisitService(nil, visitRepo, NewMockVenueRepository(), NewMockLockStore())

	departedAt := serviceBase.Add(45 * time.Minute)
	visit, err := svc.CheckOut(context.Background(), service.CheckOutRequest{
		VisitID:    "visit-1",
		DepartedAt: departedAt,
	})
	if err != nil {
		t.Fatalf("CheckOut failed: %v", err)
	}

	if visit.IsActive {
		t.Error("checked-out visit must be closed")
	}
	if visit.DurationMinutes != 45 {
		t.Errorf("duration = %d, want 45", visit.DurationMinutes)
	}

	stored := visitRepo.GetVisit("visit-1")
	if stored.IsActive || !stored.DepartureTime.Equal(departedAt) {
		t.Error("closure must be persisted")
	}

	// Closing again fails.
	_, err = svc.CheckOut(context.Background(), service.CheckOutRequest{VisitID: "visit-1"})
	if !errors.Is(err, service.ErrVisitNotActive) {
		t.Errorf("second CheckOut error = %v, want ErrVisitNotActive", err)
	}
}

func TestVisitService_CheckOutValidation(t *testing.T) {
	t.Parallel()

	visitRepo := NewMockVisitRepository()
	visitRepo.AddVisit(&domain.Visit{
		ID:          "visit-1",
		UserID:      "user-1",
		VenueID:     "venue-1",
		ArrivalTime: serviceBase,
		IsActive:    true,
	})

	svc := service.NewVisitService(nil, visitRepo, NewMockVenueRepository(), NewMockLockStore())

	tests := []struct {
		name    string
		req     service.CheckOutRequest
		wantErr error
	}{
		{
			name:    "empty visit id",
			req:     service.CheckOutRequest{},
			wantErr: service.ErrInvalidVisitID,
		},
		{
			name:    "wrong user",
			req:     service.CheckOutRequest{VisitID: "visit-1", UserID: "user-2"},
			wantErr: service.ErrUserMismatch,
		},
		{
			name: "departure before arrival",
			req: service.CheckOutRequest{
				VisitID:    "visit-1",
				DepartedAt: serviceBase.Add(-time.Minute),
			},
			wantErr: service.ErrInvalidDeparture,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.CheckOut(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckOut error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVisitService_BatchSyncRejectsBadItems(t *testing.T) {
	t.Parallel()

	venueRepo := NewMockVenueRepository()
	venueRepo.AddVenue(&domain.Venue{ID: "venue-1", Name: "Cascade Brewing", Type: domain.VenueTypeBrewery})

	svc := service.NewVisitService(nil, NewMockVisitRepository(), venueRepo, NewMockLockStore())

	resp, err := svc.BatchSync(context.Background(), service.BatchSyncRequest{
		UserID: "user-1",
		Visits: []*domain.Visit{
			{
				// Unknown venue.
				ID:          "visit-unknown-venue",
				UserID:      "user-1",
				VenueID:     "venue-missing",
				ArrivalTime: serviceBase,
				IsActive:    true,
			},
			{
				// Belongs to a different user.
				ID:          "visit-wrong-user",
				UserID:      "user-2",
				VenueID:     "venue-1",
				ArrivalTime: serviceBase,
				IsActive:    true,
			},
			{
				// Closed visit without a departure time.
				ID:          "visit-no-departure",
				UserID:      "user-1",
				VenueID:     "venue-1",
				ArrivalTime: serviceBase,
				IsActive:    false,
			},
		},
	})
	if err != nil {
		t.Fatalf("BatchSync failed: %v", err)
	}

	if len(resp.Outcomes) != 3 {
		t.Fatalf("outcome count = %d, want 3", len(resp.Outcomes))
	}

	wantErrs := map[string]error{
		"visit-unknown-venue": service.ErrUnknownVenue,
		"visit-wrong-user":    service.ErrUserMismatch,
		"visit-no-departure":  service.ErrInvalidDeparture,
	}
	for _, outcome := range resp.Outcomes {
		want := wantErrs[outcome.ClientID]
		if !errors.Is(outcome.Err, want) {
			t.Errorf("%s: error = %v, want %v", outcome.ClientID, outcome.Err, want)
		}
	}
}

func TestVisitService_BatchSyncHoldsUserLock(t *testing.T) {
	t.Parallel()

	lockStore := NewMockLockStore()
	lockStore.HoldLock("user-1")

	svc := service.NewVisitService(nil, NewMockVisitRepository(), NewMockVenueRepository(), lockStore)

	_, err := svc.BatchSync(context.Background(), service.BatchSyncRequest{UserID: "user-1"})
	if !errors.Is(err, service.ErrSyncInProgress) {
		t.Errorf("BatchSync error = %v, want ErrSyncInProgress", err)
	}

	// A different user is unaffected.
	if _, err := svc.BatchSync(context.Background(), service.BatchSyncRequest{UserID: "user-2"}); err != nil {
		t.Errorf("BatchSync for another user failed: %v", err)
	}
}

func TestVisitService_TimelineJoinsVenues(t *testing.T) {
	t.Parallel()

	visitRepo := NewMockVisitRepository()
	venueRepo := NewMockVenueRepository()

	venueRepo.AddVenue(&domain.Venue{ID: "venue-1", Name: "Cascade Brewing", Type: domain.VenueTypeBrewery})
	visitRepo.AddVisit(&domain.Visit{
		ID:          "visit-old",
		UserID:      "user-1",
		VenueID:     "venue-1",
		ArrivalTime: serviceBase,
	})
	visitRepo.AddVisit(&domain.Visit{
		ID:          "visit-new",
		UserID:      "user-1",
		VenueID:     "venue-gone",
		ArrivalTime: serviceBase.Add(2 * time.Hour),
	})
	visitRepo.AddVisit(&domain.Visit{
		ID:          "visit-other-user",
		UserID:      "user-2",
		VenueID:     "venue-1",
		ArrivalTime: serviceBase,
	})

	svc := service.NewVisitService(nil, visitRepo, venueRepo, NewMockLockStore())

	entries, err := svc.Timeline(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Timeline failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("entry count = %d, want 2", len(entries))
	}
	if entries[0].Visit.ID != "visit-new" {
		t.Errorf("first entry = %s, want most recent arrival first", entries[0].Visit.ID)
	}
	if entries[0].Venue != nil {
		t.Error("removed venue should join as nil")
	}
	if entries[1].Venue == nil || entries[1].Venue.Name != "Cascade Brewing" {
		t.Error("known venue should be joined onto its visit")
	}

	if _, err := svc.Timeline(context.Background(), ""); !errors.Is(err, service.ErrInvalidUserID) {
		t.Error("empty user id must be rejected")
	}
}

func TestVenueService_NearbyFallsBackWithoutGeoIndex(t *testing.T) {
	t.Parallel()

	venueRepo := NewMockVenueRepository()
	venueRepo.AddVenue(&domain.Venue{
		ID:       "venue-near",
		Name:     "Cascade Brewing",
		Type:     domain.VenueTypeBrewery,
		Location: domain.Coordinates{Latitude: 45.5231, Longitude: -122.6765},
	})
	venueRepo.AddVenue(&domain.Venue{
		ID:       "venue-far",
		Name:     "Willamette Valley Vineyards",
		Type:     domain.VenueTypeWinery,
		Location: domain.Coordinates{Latitude: 44.9429, Longitude: -123.0351},
	})

	geoStore := NewMockVenueGeoStore()
	geoStore.FindError = errors.New("redis down")

	svc := service.NewVenueService(venueRepo, geoStore, nil)

	venues, err := svc.Nearby(context.Background(), service.NearbyRequest{
		Lat:      45.5231,
		Lng:      -122.6765,
		RadiusKm: 5,
	})
	if err != nil {
		t.Fatalf("Nearby fallback failed: %v", err)
	}

	if len(venues) != 1 || venues[0].Venue.ID != "venue-near" {
		t.Fatalf("fallback should return only the in-radius venue, got %d", len(venues))
	}
	if venueRepo.GetAllCallCount == 0 {
		t.Error("fallback must scan the venue table")
	}
}

func TestVenueService_CreateValidation(t *testing.T) {
	t.Parallel()

	svc := service.NewVenueService(NewMockVenueRepository(), NewMockVenueGeoStore(), nil)

	tests := []struct {
		name    string
		req     service.CreateVenueRequest
		wantErr error
	}{
		{
			name:    "missing name",
			req:     service.CreateVenueRequest{Type: domain.VenueTypeBrewery, Lat: 45, Lng: -122},
			wantErr: service.ErrInvalidVenueName,
		},
		{
			name:    "bad type",
			req:     service.CreateVenueRequest{Name: "Somewhere", Type: "distillery", Lat: 45, Lng: -122},
			wantErr: service.ErrInvalidVenueType,
		},
		{
			name:    "latitude out of range",
			req:     service.CreateVenueRequest{Name: "Somewhere", Type: domain.VenueTypeWinery, Lat: 91, Lng: -122},
			wantErr: service.ErrInvalidLocation,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Create(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVenueService_CreateIndexesVenue(t *testing.T) {
	t.Parallel()

	venueRepo := NewMockVenueRepository()
	geoStore := NewMockVenueGeoStore()
	svc := service.NewVenueService(venueRepo, geoStore, nil)

	venue, err := svc.Create(context.Background(), service.CreateVenueRequest{
		Name: "Cascade Brewing",
		Type: domain.VenueTypeBrewery,
		Lat:  45.5231,
		Lng:  -122.6765,
		City: "Portland",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if venue.ID == "" {
		t.Fatal("created venue must get an id")
	}

	locations, _ := geoStore.FindNearbyVenues(context.Background(), 45.5231, -122.6765, 1)
	if len(locations) != 1 || locations[0].VenueID != venue.ID {
		t.Error("created venue must be added to the geo index")
	}
}
