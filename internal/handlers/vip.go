package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/progression"
)

type VIPHandler struct {
	progression *progression.Service
	notifier    BalanceNotifier
}

func NewVIPHandler(svc *progression.Service, notifier BalanceNotifier) *VIPHandler {
	return &VIPHandler{progression: svc, notifier: notifier}
}

// PurchaseXP converts the caller's coins into VIP XP one to one.
func (h *VIPHandler) PurchaseXP(c *gin.Context) {
	var req struct {
		Coins int64 `json:"coins" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	accountID := c.GetInt("userID")
	res, err := h.progression.PurchaseXP(c.Request.Context(), accountID, req.Coins)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.notifier != nil {
		h.notifier.NotifyBalance(accountID, res.NewBalance)
	}
	c.JSON(http.StatusOK, res)
}

func (h *VIPHandler) Progress(c *gin.Context) {
	progress, err := h.progression.Snapshot(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}
