package models

import "time"

// Activity is an append-only record of a notable account event.
type Activity struct {
	ID          int64     `db:"id" json:"id"`
	AccountID   int       `db:"account_id" json:"account_id"`
	ActionType  string    `db:"action_type" json:"action_type"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Activity action types.
const (
	ActionLogin              = "login"
	ActionRegistration       = "registration"
	ActionPurchase           = "purchase"
	ActionModerationDecision = "moderation_decision"
	ActionSessionStart       = "session_start"
	ActionVipXPPurchase      = "vip_xp_purchase"
	ActionVipLevelUp         = "vip_level_up"
	ActionBoostPurchase      = "boost_purchase"
	ActionAdminCredit        = "admin_credit"
	ActionAdminReversal      = "admin_reversal"
	ActionFavoriteAdded      = "favorite_added"
)
