package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"messaging-service/internal/auth"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

const (
	UserIDKey   = "userID"
	IdentityKey = "identity"
)

// Recorder receives the registration activity of first-seen accounts.
type Recorder interface {
	Record(ctx context.Context, accountID int, actionType, description string) (models.Activity, error)
}

// EnsureAccount projects identity into the local accounts table and records a
// registration the first time the account is seen. recorder may be nil.
func EnsureAccount(ctx context.Context, accounts repositories.AccountRepository, recorder Recorder, identity models.Identity) error {
	_, created, err := accounts.EnsureAccount(ctx, identity)
	if err != nil {
		return err
	}
	if created && recorder != nil {
		if _, err := recorder.Record(ctx, identity.ID, models.ActionRegistration, "account registered as "+string(identity.Role)); err != nil {
			log.Warn().Err(err).Int("account_id", identity.ID).Msg("registration activity not recorded")
		}
	}
	return nil
}

// AuthMiddleware validates the bearer token and projects the caller into the
// local accounts table.
func AuthMiddleware(verifier auth.Verifier, accounts repositories.AccountRepository, recorder Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		identity, err := verifier.VerifyToken(c.Request.Context(), parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if err := EnsureAccount(c.Request.Context(), accounts, recorder, identity); err != nil {
			log.Error().Err(err).Int("account_id", identity.ID).Msg("ensure account failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "account store unavailable"})
			return
		}

		c.Set(UserIDKey, identity.ID)
		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := IdentityFrom(c)
		for _, role := range roles {
			if identity.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

// IdentityFrom returns the identity stored by AuthMiddleware.
func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	val, ok := c.Get(IdentityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := val.(models.Identity)
	return identity, ok
}
