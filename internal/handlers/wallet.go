package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/ledger"
	"messaging-service/internal/models"
	"messaging-service/internal/pricing"
)

// WalletHandler exposes the caller's coins and the price list.
type WalletHandler struct {
	ledger  *ledger.Ledger
	pricing *pricing.Table
}

func NewWalletHandler(l *ledger.Ledger, table *pricing.Table) *WalletHandler {
	return &WalletHandler{ledger: l, pricing: table}
}

func (h *WalletHandler) Balance(c *gin.Context) {
	balance, err := h.ledger.Balance(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// Transactions lists the caller's ledger entries, newest first.
func (h *WalletHandler) Transactions(c *gin.Context) {
	txs, err := h.ledger.History(c.Request.Context(), c.GetInt("userID"), queryInt(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h *WalletHandler) Pricing(c *gin.Context) {
	c.JSON(http.StatusOK, h.pricing.Snapshot())
}
