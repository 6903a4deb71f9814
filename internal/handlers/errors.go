package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"messaging-service/internal/apperr"
)

// respondError writes err with the status of its code. Insufficient funds
// carries the amounts the client needs for display.
func respondError(c *gin.Context, err error) {
	if funds, ok := apperr.AsInsufficientFunds(err); ok {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":     funds.Error(),
			"code":      apperr.CodeInsufficientFunds,
			"required":  funds.Required,
			"available": funds.Available,
		})
		return
	}

	code := apperr.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Str("request_id", requestIDFromContext(c)).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": apperr.MessageOf(err), "code": code})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": apperr.CodeInvalidArgument})
}

// intParam parses a positive path parameter, answering 400 when it is not one.
func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
