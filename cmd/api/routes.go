package main

import (
	"dialer-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Agent webhooks (public).
	// NOTE: This endpoint should be protected by a shared-secret header in production.
	r.POST("/webhooks/transcript", h.TranscriptWebhook)

	v1 := r.Group("/v1")
	{
		// CAMPAIGNS routes
		campaigns := v1.Group("/campaigns")
		{
			campaigns.POST("", h.CreateCampaign)
			campaigns.GET("", h.ListCampaigns)
			campaigns.GET("/:id", h.GetCampaign)
			campaigns.POST("/:id/dispatch", h.DispatchBatch)
		}

		// Ad-hoc outbound dials, untracked by campaigns.
		v1.POST("/dispatch", h.AdHocDial)
		v1.POST("/dispatch/bulk", h.BulkDial)

		// Browser widget token.
		v1.GET("/token", h.JoinToken)

		// SETTINGS routes
		settings := v1.Group("/settings")
		{
			settings.GET("", h.GetSettings)
			settings.POST("", h.SetSetting)
		}
	}
}
