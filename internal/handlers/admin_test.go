package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

func TestAdminRoutesRequireRole(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, http.StatusForbidden, app.do(t, user, http.MethodPost, "/admin/accounts/1/credit", gin.H{"amount": 10}).Code)
	assert.Equal(t, http.StatusForbidden, app.do(t, moderator, http.MethodPost, "/admin/accounts/1/credit", gin.H{"amount": 10}).Code)
	assert.Equal(t, http.StatusForbidden, app.do(t, operator, http.MethodGet, "/admin/activity", nil).Code)
}

func TestAdminCreditAndReverse(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, admin, http.MethodPost, "/admin/accounts/3/credit", gin.H{"amount": 70})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	receipt := decode(t, rec)
	assert.Equal(t, float64(70), receipt["balance"])
	txID := int64(receipt["transaction_id"].(float64))

	balance, ok := app.notifier.last(broke.ID)
	require.True(t, ok)
	assert.Equal(t, int64(70), balance)
	app.activities.AssertCalled(t, "CreateActivity", mock.Anything, broke.ID, models.ActionAdminCredit, mock.Anything)

	reversePath := fmt.Sprintf("/admin/transactions/%d/reverse", txID)
	rec = app.do(t, admin, http.MethodPost, reversePath, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(0), decode(t, rec)["balance"])
	app.activities.AssertCalled(t, "CreateActivity", mock.Anything, broke.ID, models.ActionAdminReversal, mock.Anything)

	assert.Equal(t, http.StatusConflict, app.do(t, admin, http.MethodPost, reversePath, nil).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, admin, http.MethodPost, "/admin/transactions/999/reverse", nil).Code)

	rec = app.do(t, admin, http.MethodGet, "/admin/accounts/3/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["consistent"])

	rec = app.do(t, admin, http.MethodGet, "/admin/accounts/3/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["transactions"], 2)
}

func TestAdminCreditCoinPurchase(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, admin, http.MethodPost, "/admin/accounts/3/credit", gin.H{"amount": 500, "reason": models.ReasonCoinPurchase})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	txs := app.store.Transactions(broke.ID)
	require.NotEmpty(t, txs)
	assert.Equal(t, models.ReasonCoinPurchase, txs[len(txs)-1].Reason)
	assert.Equal(t, int64(500), txs[len(txs)-1].Amount)
}

func TestAdminCreditValidation(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, http.StatusBadRequest, app.do(t, admin, http.MethodPost, "/admin/accounts/1/credit", gin.H{"amount": -5}).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(t, admin, http.MethodPost, "/admin/accounts/1/credit", gin.H{"amount": 5, "reason": "reversal:1"}).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(t, admin, http.MethodPost, "/admin/accounts/1/credit", gin.H{"amount": 5, "reason": "gift"}).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, admin, http.MethodPost, "/admin/accounts/404/credit", gin.H{"amount": 5}).Code)
}

func TestAdminAccountManagement(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, admin, http.MethodPut, "/admin/accounts/1/vip", gin.H{"is_vip": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["is_vip"])

	rec = app.do(t, admin, http.MethodPut, "/admin/accounts/1/vip-xp", gin.H{"vip_xp": 10000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(3), decode(t, rec)["currentLevel"])

	rec = app.do(t, admin, http.MethodPut, "/admin/accounts/1/vip-xp", gin.H{"vip_xp": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["currentLevel"])

	assert.Equal(t, http.StatusNoContent, app.do(t, admin, http.MethodDelete, "/admin/accounts/3", nil).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, admin, http.MethodDelete, "/admin/accounts/3", nil).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, admin, http.MethodPut, "/admin/accounts/3/vip", gin.H{"is_vip": false}).Code)
}

func TestAdminActivity(t *testing.T) {
	app := newTestApp(t)
	app.activities.On("ListRecent", mock.Anything, 20).
		Return([]models.Activity{{ID: 5, AccountID: 1, ActionType: models.ActionLogin}}, nil).Once()

	rec := app.do(t, moderator, http.MethodGet, "/admin/activity?limit=20", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["activities"], 1)

	rec = app.do(t, moderator, http.MethodPost, "/admin/activity", gin.H{
		"account_id":  1,
		"action_type": models.ActionModerationDecision,
		"description": "photo approved",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	app.activities.AssertCalled(t, "CreateActivity", mock.Anything, 1, models.ActionModerationDecision, "photo approved")

	assert.Equal(t, http.StatusBadRequest, app.do(t, moderator, http.MethodPost, "/admin/activity", gin.H{"account_id": 1}).Code)
}

func TestAdminPurgeBoosts(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(t, admin, http.MethodPost, "/admin/boosts/purge", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["purged"])
}
