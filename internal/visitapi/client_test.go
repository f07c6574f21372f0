package visitapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"visits/internal/domain"
)

func TestClient_BatchSync(t *testing.T) {
	t.Parallel()

	arrival := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/visits/batch" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		var req batchSyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if len(req.Visits) != 1 {
			t.Fatalf("visit count = %d, want 1", len(req.Visits))
		}
		p := req.Visits[0]
		if p.ID != "visit-1" || p.VenueID != "venue-1" || !p.ArrivalTime.Equal(arrival) {
			t.Errorf("unexpected payload %+v", p)
		}
		if p.DepartureTime != nil {
			t.Error("active visit must omit departure_time")
		}

		json.NewEncoder(w).Encode(batchSyncResponse{
			Results: []SyncResult{{ClientID: "visit-1", ServerID: "visit-1", Status: StatusSynced}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	results, err := client.BatchSync(context.Background(), []*domain.Visit{{
		ID:              "visit-1",
		UserID:          "user-1",
		VenueID:         "venue-1",
		ArrivalTime:     arrival,
		IsActive:        true,
		DetectionMethod: domain.DetectionMethodGeofence,
	}})
	if err != nil {
		t.Fatalf("BatchSync failed: %v", err)
	}

	if len(results) != 1 || results[0].Status != StatusSynced {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestClient_BatchSyncServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.BatchSync(context.Background(), []*domain.Visit{{ID: "visit-1"}}); err == nil {
		t.Fatal("non-2xx status must fail the batch")
	}
}

func TestClient_NearbyVenues(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/venues/nearby" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("lat") != "45.5231" || q.Get("lng") != "-122.6765" || q.Get("radius_km") != "5" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}

		json.NewEncoder(w).Encode(nearbyVenuesResponse{
			Venues: []venuePayload{{
				ID:        "venue-1",
				Name:      "Cascade Brewing",
				Type:      "brewery",
				Latitude:  45.5231,
				Longitude: -122.6765,
				RadiusKm:  0.1,
			}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	venues, err := client.NearbyVenues(context.Background(), 45.5231, -122.6765, 5)
	if err != nil {
		t.Fatalf("NearbyVenues failed: %v", err)
	}

	if len(venues) != 1 {
		t.Fatalf("venue count = %d, want 1", len(venues))
	}
	v := venues[0]
	if v.ID != "venue-1" || v.Type != domain.VenueTypeBrewery || v.Location.Latitude != 45.5231 {
		t.Errorf("unexpected venue %+v", v)
	}
}

func TestClient_Health(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))

	client := NewClient(server.URL)
	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health failed: %v", err)
	}

	server.Close()
	if err := client.Health(context.Background()); err == nil {
		t.Error("unreachable server must fail the health probe")
	}
}
