package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"visits/internal/repository"
	"visits/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrUnknownVenue):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidUserID),
		errors.Is(err, service.ErrInvalidVisitID),
		errors.Is(err, service.ErrInvalidVenueID),
		errors.Is(err, service.ErrInvalidVenueName),
		errors.Is(err, service.ErrInvalidVenueType),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidArrivalTime),
		errors.Is(err, service.ErrInvalidDeparture):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrVisitNotActive),
		errors.Is(err, service.ErrSyncInProgress):
		return http.StatusConflict

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrUserMismatch):
		return http.StatusForbidden

	// Service unavailable
	case errors.Is(err, service.ErrSearchUnavailable):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
