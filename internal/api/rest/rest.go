package rest

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler) {
	// Health check endpoint (no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes (public read access only)
	v1 := router.Group("/api/v1")
	{
		// Listing endpoints
		v1.GET("/listings", handler.ListListings)
		v1.GET("/listings/:tokenId", handler.GetListing)

		// Position endpoints
		v1.GET("/positions/:tokenId", handler.GetPosition)
		v1.GET("/positions/:tokenId/events", handler.GetPositionEvents)

		// Per-address read models
		v1.GET("/users/:address/positions", handler.GetUserPositions)
		v1.GET("/users/:address/listings", handler.GetUserListings)

		// Cross-token activity feed
		v1.GET("/activity", handler.GetActivity)

		// Aggregates
		v1.GET("/stats/:period", handler.GetStats)
		v1.GET("/price", handler.GetPrice)
	}
}
