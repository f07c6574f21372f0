package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"visits/internal/domain"
	"visits/internal/service"
)

// VisitHandler handles HTTP requests for visits.
type VisitHandler struct {
	visitService *service.VisitService
}

// NewVisitHandler creates a new VisitHandler.
func NewVisitHandler(visitService *service.VisitService) *VisitHandler {
	return &VisitHandler{visitService: visitService}
}

// VisitPayload is the wire form of a visit in requests and responses.
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

// BatchSyncRequest is the HTTP request body for syncing visits.
type BatchSyncRequest struct {
	Visits []VisitPayload `json:"visits"`
}

// SyncResultPayload is the per-item outcome in a batch sync response.
type SyncResultPayload struct {
	ClientID string `json:"client_id"`
	ServerID string `json:"server_id,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// BatchSyncResponse is the HTTP response for a batch sync.
type BatchSyncResponse struct {
	Results []SyncResultPayload `json:"results"`
}

// Sync result statuses.
const (
	statusSynced   = "synced"
	statusRejected = "rejected"
)

// BatchSync handles POST /v1/visits/batch
func (h *VisitHandler) BatchSync(c *gin.Context) {
	var req BatchSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if len(req.Visits) == 0 {
		respondJSON(c, http.StatusOK, BatchSyncResponse{Results: []SyncResultPayload{}})
		return
	}

	// All items in a batch belong to one user; the service rejects any
	// stray item individually.
	userID := req.Visits[0].UserID

	visits := make([]*domain.Visit, 0, len(req.Visits))
	for _, p := range req.Visits {
		visits = append(visits, payloadToVisit(p))
	}

	resp, err := h.visitService.BatchSync(c.Request.Context(), service.BatchSyncRequest{
		UserID: userID,
		Visits: visits,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	results := make([]SyncResultPayload, 0, len(resp.Outcomes))
	for _, outcome := range resp.Outcomes {
		result := SyncResultPayload{ClientID: outcome.ClientID}
		if outcome.Err != nil {
			result.Status = statusRejected
			result.Error = outcome.Err.Error()
		} else {
			result.Status = statusSynced
			result.ServerID = outcome.ServerID
		}
		results = append(results, result)
	}

	respondJSON(c, http.StatusOK, BatchSyncResponse{Results: results})
}

// UpdateDepartureRequest is the HTTP request body for closing a visit.
type UpdateDepartureRequest struct {
	DepartureTime   time.Time `json:"departure_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

// UpdateDeparture handles PATCH /v1/visits/:id
func (h *VisitHandler) UpdateDeparture(c *gin.Context) {
	visitID := c.Param("id")

	var req UpdateDepartureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	visit, err := h.visitService.CheckOut(c.Request.Context(), service.CheckOutRequest{
		VisitID:    visitID,
		DepartedAt: req.DepartureTime,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, visitToPayload(visit))
}

// CheckOutRequest is the HTTP request body for a manual checkout.
type CheckOutRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// CheckOut handles POST /v1/visits/:id/checkout
func (h *VisitHandler) CheckOut(c *gin.Context) {
	visitID := c.Param("id")

	// Body is optional; checkout defaults to the current time.
	var req CheckOutRequest
	_ = c.ShouldBindJSON(&req)

	visit, err := h.visitService.CheckOut(c.Request.Context(), service.CheckOutRequest{
		VisitID: visitID,
		UserID:  req.UserID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, visitToPayload(visit))
}

// TimelineEntryPayload is one visit with its venue in a timeline response.
type TimelineEntryPayload struct {
	Visit VisitPayload  `json:"visit"`
	Venue *VenuePayload `json:"venue,omitempty"`
}

// TimelineResponse is the HTTP response for a user's visit history.
type TimelineResponse struct {
	Visits []TimelineEntryPayload `json:"visits"`
}

// Timeline handles GET /v1/users/:id/visits
func (h *VisitHandler) Timeline(c *gin.Context) {
	userID := c.Param("id")

	entries, err := h.visitService.Timeline(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	payloads := make([]TimelineEntryPayload, 0, len(entries))
	for _, entry := range entries {
		p := TimelineEntryPayload{Visit: visitToPayload(entry.Visit)}
		if entry.Venue != nil {
			vp := venueToPayload(entry.Venue)
			p.Venue = &vp
		}
		payloads = append(payloads, p)
	}

	respondJSON(c, http.StatusOK, TimelineResponse{Visits: payloads})
}

func payloadToVisit(p VisitPayload) *domain.Visit {
	visit := &domain.Visit{
		ID:              p.ID,
		UserID:          p.UserID,
		VenueID:         p.VenueID,
		ArrivalTime:     p.ArrivalTime,
		IsActive:        p.IsActive,
		DurationMinutes: p.DurationMinutes,
		DetectionMethod: domain.DetectionMethod(p.DetectionMethod),
	}
	if p.DepartureTime != nil {
		visit.DepartureTime = *p.DepartureTime
	}
	return visit
}

func visitToPayload(visit *domain.Visit) VisitPayload {
	p := VisitPayload{
		ID:              visit.ID,
		UserID:          visit.UserID,
		VenueID:         visit.VenueID,
		ArrivalTime:     visit.ArrivalTime,
		IsActive:        visit.IsActive,
		DurationMinutes: visit.DurationMinutes,
		DetectionMethod: string(visit.DetectionMethod),
	}
	if !visit.DepartureTime.IsZero() {
		departed := visit.DepartureTime
		p.DepartureTime = &departed
	}
	return p
}
