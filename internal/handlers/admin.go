package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"messaging-service/internal/apperr"
	"messaging-service/internal/ledger"
	"messaging-service/internal/models"
	"messaging-service/internal/progression"
	"messaging-service/internal/repositories"
)

// ActivityFeed is the subset of the activity feed the admin surface uses.
type ActivityFeed interface {
	Record(ctx context.Context, accountID int, actionType, description string) (models.Activity, error)
	Recent(ctx context.Context, limit int) ([]models.Activity, error)
}

type AdminDeps struct {
	Ledger      *ledger.Ledger
	Progression *progression.Service
	Accounts    repositories.AccountRepository
	Feed        ActivityFeed
	Notifier    BalanceNotifier
}

// AdminHandler serves staff-only account, ledger and audit endpoints.
type AdminHandler struct {
	ledger      *ledger.Ledger
	progression *progression.Service
	accounts    repositories.AccountRepository
	feed        ActivityFeed
	notifier    BalanceNotifier
}

func NewAdminHandler(d AdminDeps) *AdminHandler {
	return &AdminHandler{
		ledger:      d.Ledger,
		progression: d.Progression,
		accounts:    d.Accounts,
		feed:        d.Feed,
		notifier:    d.Notifier,
	}
}

// Credit adds purchased or granted coins to an account.
func (h *AdminHandler) Credit(c *gin.Context) {
	accountID, ok := intParam(c, "accountId")
	if !ok {
		return
	}
	var req struct {
		Amount int64  `json:"amount" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	reason := req.Reason
	switch reason {
	case "":
		reason = models.ReasonAdminCredit
	case models.ReasonAdminCredit, models.ReasonCoinPurchase:
	default:
		badRequest(c, "reason must be admin_credit or coin_purchase")
		return
	}

	receipt, err := h.ledger.Credit(c.Request.Context(), accountID, req.Amount, reason)
	if err != nil {
		respondError(c, err)
		return
	}
	h.afterMutation(c, receipt, models.ActionAdminCredit, fmt.Sprintf("credited %d coins (%s) by %d", req.Amount, reason, c.GetInt("userID")))
	c.JSON(http.StatusOK, receipt)
}

// Reverse negates a transaction once.
func (h *AdminHandler) Reverse(c *gin.Context) {
	txID, err := strconv.ParseInt(c.Param("txId"), 10, 64)
	if err != nil || txID <= 0 {
		badRequest(c, "invalid txId")
		return
	}
	receipt, err := h.ledger.Reverse(c.Request.Context(), txID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.afterMutation(c, receipt, models.ActionAdminReversal, fmt.Sprintf("reversed transaction %d by %d", txID, c.GetInt("userID")))
	c.JSON(http.StatusOK, receipt)
}

func (h *AdminHandler) afterMutation(c *gin.Context, receipt ledger.Receipt, action, description string) {
	if h.notifier != nil {
		h.notifier.NotifyBalance(receipt.AccountID, receipt.Balance)
	}
	if h.feed == nil {
		return
	}
	if _, err := h.feed.Record(c.Request.Context(), receipt.AccountID, action, description); err != nil {
		log.Warn().Err(err).Int("account_id", receipt.AccountID).Str("action", action).Msg("activity record failed")
	}
}

func (h *AdminHandler) Transactions(c *gin.Context) {
	accountID, ok := intParam(c, "accountId")
	if !ok {
		return
	}
	txs, err := h.ledger.History(c.Request.Context(), accountID, queryInt(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h *AdminHandler) Reconcile(c *gin.Context) {
	accountID, ok := intParam(c, "accountId")
	if !ok {
		return
	}
	rec, err := h.ledger.Reconcile(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// SetVIP grants or revokes the VIP flag. A nil expiry means no end date.
func (h *AdminHandler) SetVIP(c *gin.Context) {
	accountID, ok := intParam(c, "accountId")
	if !ok {
		return
	}
	var req struct {
		IsVIP     *bool      `json:"is_vip" binding:"required"`
		ExpiresAt *time.Time `json:"vip_expire_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	acc, err := h.accounts.SetVIP(c.Request.Context(), accountID, *req.IsVIP, req.ExpiresAt)
	if err != nil {
		respondError(c, accountError(err))
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (h *AdminHandler) OverrideXP(c *gin.Context) {
	accountID, ok := intParam(c, "accountId")
	if !ok {
		return
	}
	var req struct {
		VipXP *int64 `json:"vip_xp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	progress, err := h.progression.OverrideXP(c.Request.Context(), accountID, *req.VipXP)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// DeleteAccount hard-deletes an account and everything that references it.
func (h *AdminHandler) DeleteAccount(c *gin.Context) {
	accountID, ok := intParam(c, "accountId")
	if !ok {
		return
	}
	if err := h.accounts.DeleteAccount(c.Request.Context(), accountID); err != nil {
		respondError(c, accountError(err))
		return
	}
	log.Info().Int("account_id", accountID).Int("admin_id", c.GetInt("userID")).Msg("account deleted")
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) RecentActivity(c *gin.Context) {
	items, err := h.feed.Recent(c.Request.Context(), queryInt(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []models.Activity{}
	}
	c.JSON(http.StatusOK, gin.H{"activities": items})
}

// RecordActivity accepts events produced elsewhere, such as logins or
// moderation decisions.
func (h *AdminHandler) RecordActivity(c *gin.Context) {
	var req struct {
		AccountID   int    `json:"account_id" binding:"required"`
		ActionType  string `json:"action_type" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := h.feed.Record(c.Request.Context(), req.AccountID, req.ActionType, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func accountError(err error) error {
	if errors.Is(err, repositories.ErrAccountNotFound) {
		return apperr.NotFound("account not found")
	}
	return apperr.Internal("account storage failure", err)
}
