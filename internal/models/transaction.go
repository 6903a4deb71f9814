package models

import (
	"strconv"
	"time"
)

// Transaction is an immutable ledger entry. Negative amounts are spends.
type Transaction struct {
	ID        int64     `db:"id" json:"id"`
	AccountID int       `db:"account_id" json:"account_id"`
	Amount    int64     `db:"amount" json:"amount"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Transaction reasons.
const (
	ReasonMessage       = "message"
	ReasonMessageRefund = "message_refund"
	ReasonVipXPPurchase = "vip_xp_purchase"
	ReasonBoostPurchase = "boost_purchase"
	ReasonCoinPurchase  = "coin_purchase"
	ReasonAdminCredit   = "admin_credit"
	reasonReversal      = "reversal:"
)

// ReversalReason is the reason recorded on the entry that reverses txID.
func ReversalReason(txID int64) string {
	return reasonReversal + strconv.FormatInt(txID, 10)
}

// IsReversal reports whether reason marks a reversal entry.
func IsReversal(reason string) bool {
	return len(reason) > len(reasonReversal) && reason[:len(reasonReversal)] == reasonReversal
}
