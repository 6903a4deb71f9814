package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// requestIDFromContext returns the id set by the request-id middleware, or a
// fresh one when the route runs without it.
func requestIDFromContext(c *gin.Context) string {
	if id := observability.RequestID(c); id != "" {
		return id
	}
	return uuid.NewString()
}

func identityFromContext(c *gin.Context) models.Identity {
	if identity, ok := middleware.IdentityFrom(c); ok {
		return identity
	}
	return models.Identity{ID: c.GetInt(middleware.UserIDKey), Role: models.RoleUser}
}
