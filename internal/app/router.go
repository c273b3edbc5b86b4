// internal/app/router.go
package app

import (
	"net/http"

	tripHandler "mileage-service/internal/handlers/trip"
	wsHandler "mileage-service/internal/handlers/websocket"
	"mileage-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	TripHandler    *tripHandler.TripHandler
	ChainHandler   *tripHandler.ChainHandler
	WSHandler      *wsHandler.WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, h *Handlers, gatherer prometheus.Gatherer) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Metrics ====================
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)
	api.GET("/ws/stats", append(h.AuthMiddleware.AdminOnly(), h.WSHandler.GetStats)...)

	// ==================== Trips ====================
	trips := api.Group("/trips")
	trips.Use(h.AuthMiddleware.Auth())
	{
		trips.POST("", h.TripHandler.InsertTrip)
		trips.GET("/:id", h.TripHandler.GetTrip)
		trips.PUT("/:id", h.TripHandler.UpdateTrip)
		trips.DELETE("/:id", h.TripHandler.DeleteTrip)

		trips.POST("/:id/recalculate", h.TripHandler.RecalculateMileage) // ?force=true
		trips.POST("/:id/recover", h.TripHandler.RecoverTrip)
		trips.POST("/:id/correct-odometer", h.TripHandler.CorrectOdometer)
		trips.GET("/:id/audit", h.TripHandler.GetTripAudit)
	}

	// ==================== Vehicle Chains ====================
	vehicles := api.Group("/vehicles/:vehicle_id")
	vehicles.Use(h.AuthMiddleware.Auth())
	{
		vehicles.GET("/trips", h.ChainHandler.ListChain)
		vehicles.GET("/chain/validate", h.ChainHandler.ValidateChain) // ?auto_fix=&from=&to=
		vehicles.GET("/chain/continuity", h.ChainHandler.AnalyzeContinuity)
		vehicles.GET("/chain/breaks", h.ChainHandler.DetectChainBreaks)
	}

	// ==================== Fleet Audit (admin) ====================
	chain := api.Group("/chain")
	chain.Use(h.AuthMiddleware.AdminOnly()...)
	{
		chain.POST("/audit", h.ChainHandler.ValidateFleet)
	}
}
