package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"visits/internal/handler"
	"visits/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	VisitHandler *handler.VisitHandler
	VenueHandler *handler.VenueHandler
	RedisClient  *redis.Client
	NewRelicApp  *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check. Trackers also probe this endpoint to detect whether
	// the network path to the API is up.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Visit routes.
		visits := v1.Group("/visits")
		{
			visits.POST("/batch", deps.VisitHandler.BatchSync)
			visits.PATCH("/:id", deps.VisitHandler.UpdateDeparture)
			visits.POST("/:id/checkout", deps.VisitHandler.CheckOut)
		}

		// Venue routes.
		venues := v1.Group("/venues")
		{
			venues.POST("", deps.VenueHandler.CreateVenue)
			venues.GET("/nearby", deps.VenueHandler.Nearby)
			venues.GET("/:id", deps.VenueHandler.GetVenue)
		}

		// User routes.
		users := v1.Group("/users")
		{
			users.GET("/:id/visits", deps.VisitHandler.Timeline)
		}
	}

	return router
}
