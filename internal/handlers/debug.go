package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contact-service/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		level := c.DefaultQuery("level", "INFO")
		emitter.Emit(c.Request.Context(), level, "contact audit self-test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok", "routing_key": telemetry.DefaultRoutingKey})
	})
}
