package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"visits/internal/domain"
	"visits/internal/service"
)

// VenueHandler handles HTTP requests for venues.
type VenueHandler struct {
	venueService *service.VenueService
}

// NewVenueHandler creates a new VenueHandler.
func NewVenueHandler(venueService *service.VenueService) *VenueHandler {
	return &VenueHandler{venueService: venueService}
}

// VenuePayload is the wire form of a venue.
type VenuePayload struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	City       string  `json:"city,omitempty"`
	State      string  `json:"state,omitempty"`
	RadiusKm   float64 `json:"radius_km"`
	DistanceKm float64 `json:"distance_km,omitempty"`
}

// NearbyVenuesResponse is the HTTP response for a nearby search.
type NearbyVenuesResponse struct {
	Venues []VenuePayload `json:"venues"`
}

// Nearby handles GET /v1/venues/nearby
func (h *VenueHandler) Nearby(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid lat"})
		return
	}

	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid lng"})
		return
	}

	var radiusKm float64
	if raw := c.Query("radius_km"); raw != "" {
		radiusKm, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid radius_km"})
			return
		}
	}

	nearby, err := h.venueService.Nearby(c.Request.Context(), service.NearbyRequest{
		Lat:      lat,
		Lng:      lng,
		RadiusKm: radiusKm,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	venues := make([]VenuePayload, 0, len(nearby))
	for _, nv := range nearby {
		p := venueToPayload(nv.Venue)
		p.DistanceKm = nv.DistanceKm
		venues = append(venues, p)
	}

	respondJSON(c, http.StatusOK, NearbyVenuesResponse{Venues: venues})
}

// CreateVenueRequest is the HTTP request body for registering a venue.
type CreateVenueRequest struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city,omitempty"`
	State     string  `json:"state,omitempty"`
	RadiusKm  float64 `json:"radius_km,omitempty"`
}

// CreateVenue handles POST /v1/venues
func (h *VenueHandler) CreateVenue(c *gin.Context) {
	var req CreateVenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	venue, err := h.venueService.Create(c.Request.Context(), service.CreateVenueRequest{
		Name:     req.Name,
		Type:     domain.VenueType(req.Type),
		Lat:      req.Latitude,
		Lng:      req.Longitude,
		City:     req.City,
		State:    req.State,
		RadiusKm: req.RadiusKm,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, venueToPayload(venue))
}

// GetVenue handles GET /v1/venues/:id
func (h *VenueHandler) GetVenue(c *gin.Context) {
	venue, err := h.venueService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, venueToPayload(venue))
}

func venueToPayload(venue *domain.Venue) VenuePayload {
	return VenuePayload{
		ID:        venue.ID,
		Name:      venue.Name,
		Type:      string(venue.Type),
		Latitude:  venue.Location.Latitude,
		Longitude: venue.Location.Longitude,
		City:      venue.City,
		State:     venue.State,
		RadiusKm:  venue.RadiusKm,
	}
}
