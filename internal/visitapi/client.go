package visitapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"visits/internal/domain"
)

// Sync result statuses returned by the server per batch item.
const (
	StatusSynced   = "synced"
	StatusRejected = "rejected"
)

// VisitPayload is the wire form of a visit in batch-sync requests and
// responses.
type VisitPayload struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	VenueID         string     `json:"venue_id"`
	ArrivalTime     time.Time  `json:"arrival_time"`
	DepartureTime   *time.Time `json:"departure_time,omitempty"`
	IsActive        bool       `json:"is_active"`
	DurationMinutes int        `json:"duration_minutes"`
	DetectionMethod string     `json:"detection_method"`
}

// SyncResult reports the server's decision for one batch item. ServerID is
// the canonical id; clients reconcile any mismatch with their local id.
type SyncResult struct {
	ClientID string `json:"client_id"`
	ServerID string `json:"server_id,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

type batchSyncRequest struct {
	Visits []VisitPayload `json:"visits"`
}

type batchSyncResponse struct {
	Results []SyncResult `json:"results"`
}

type departureUpdateRequest struct {
	DepartureTime   time.Time `json:"departure_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

type venuePayload struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city,omitempty"`
	State     string  `json:"state,omitempty"`
	RadiusKm  float64 `json:"radius_km"`
}

type nearbyVenuesResponse struct {
	Venues []venuePayload `json:"venues"`
}

// Client is a thin HTTP wrapper for the remote visit API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an API client against baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// BatchSync posts unsynced visits to POST /v1/visits/batch and returns a
// per-item result. A transport error or non-2xx status fails the whole
// batch; callers retry on the next trigger. The request carries a
// content-derived Idempotency-Key so a retry of an identical batch replays
// the server's cached response instead of re-running it.
func (c *Client) BatchSync(ctx context.Context, visits []*domain.Visit) ([]SyncResult, error) {
	payloads := make([]VisitPayload, 0, len(visits))
	for _, v := range visits {
		payloads = append(payloads, toPayload(v))
	}

	req := batchSyncRequest{Visits: payloads}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%x", sha256.Sum256(data))

	var resp batchSyncResponse
	if err := c.doWithHeaders(ctx, http.MethodPost, "/v1/visits/batch", data, &resp, http.Header{
		"Idempotency-Key": []string{key},
	}); err != nil {
		return nil, err
	}

	return resp.Results, nil
}

// UpdateDeparture patches a closed visit's departure on the server.
func (c *Client) UpdateDeparture(ctx context.Context, visitID string, departedAt time.Time, durationMinutes int) error {
	body := departureUpdateRequest{
		DepartureTime:   departedAt,
		DurationMinutes: durationMinutes,
	}

	return c.do(ctx, http.MethodPatch, "/v1/visits/"+url.PathEscape(visitID), body, nil)
}

// NearbyVenues queries the venue catalog around a point.
func (c *Client) NearbyVenues(ctx context.Context, lat, lng, radiusKm float64) ([]*domain.Venue, error) {
	path := fmt.Sprintf("/v1/venues/nearby?lat=%g&lng=%g&radius_km=%g", lat, lng, radiusKm)

	var resp nearbyVenuesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	venues := make([]*domain.Venue, 0, len(resp.Venues))
	for _, p := range resp.Venues {
		venues = append(venues, &domain.Venue{
			ID:       p.ID,
			Name:     p.Name,
			Type:     domain.VenueType(p.Type),
			Location: domain.Coordinates{Latitude: p.Latitude, Longitude: p.Longitude},
			City:     p.City,
			State:    p.State,
			RadiusKm: p.RadiusKm,
		})
	}

	return venues, nil
}

// Health probes the server health endpoint. Used as the network status
// signal by the sync worker.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	return c.doWithHeaders(ctx, method, path, data, out, nil)
}

func (c *Client) doWithHeaders(ctx context.Context, method, path string, body []byte, out any, headers http.Header) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("visit api: %s %s returned %d", method, path, resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}

	return nil
}

func toPayload(v *domain.Visit) VisitPayload {
	p := VisitPayload{
		ID:              v.ID,
		UserID:          v.UserID,
		VenueID:         v.VenueID,
		ArrivalTime:     v.ArrivalTime,
		IsActive:        v.IsActive,
		DurationMinutes: v.DurationMinutes,
		DetectionMethod: string(v.DetectionMethod),
	}
	if !v.DepartureTime.IsZero() {
		departure := v.DepartureTime
		p.DepartureTime = &departure
	}
	return p
}
