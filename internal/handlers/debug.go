package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), models.Activity{
			AccountID:   c.GetInt("userID"),
			ActionType:  "audit_test",
			Description: "audit test " + requestIDFromContext(c),
			CreatedAt:   time.Now().UTC(),
		})
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
