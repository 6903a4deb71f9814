package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/boost"
	"messaging-service/internal/models"
)

// BalanceNotifier pushes a new balance to the account's live connections.
type BalanceNotifier interface {
	NotifyBalance(accountID int, balance int64)
}

type BoostHandler struct {
	scheduler *boost.Scheduler
	notifier  BalanceNotifier
}

func NewBoostHandler(scheduler *boost.Scheduler, notifier BalanceNotifier) *BoostHandler {
	return &BoostHandler{scheduler: scheduler, notifier: notifier}
}

// Activate buys a boost. Only the account itself or an admin may do so.
func (h *BoostHandler) Activate(c *gin.Context) {
	accountID, ok := intParam(c, "accountId")
	if !ok {
		return
	}
	actor := identityFromContext(c)
	if actor.ID != accountID && actor.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot boost another account"})
		return
	}

	var req struct {
		DurationMinutes int   `json:"durationMinutes" binding:"required"`
		Cost            int64 `json:"cost" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	act, err := h.scheduler.Activate(c.Request.Context(), accountID, req.DurationMinutes, req.Cost)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.notifier != nil {
		h.notifier.NotifyBalance(accountID, act.NewBalance)
	}
	c.JSON(http.StatusOK, gin.H{"endTime": act.EndTime, "newBalance": act.NewBalance})
}

func (h *BoostHandler) Status(c *gin.Context) {
	accountID, ok := intParam(c, "accountId")
	if !ok {
		return
	}
	status, err := h.scheduler.Status(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Active lists currently boosted accounts for discovery.
func (h *BoostHandler) Active(c *gin.Context) {
	ids, err := h.scheduler.ListBoosted(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if ids == nil {
		ids = []int{}
	}
	c.JSON(http.StatusOK, gin.H{"accountIds": ids})
}

func (h *BoostHandler) Purge(c *gin.Context) {
	n, err := h.scheduler.Purge(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": n})
}
