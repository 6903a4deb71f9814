// Package ledger owns account balances. Every mutation is serialized per account
// and commits its transaction log entry together with the balance change.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"messaging-service/internal/apperr"
	"messaging-service/internal/lock"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

const DefaultLockTimeout = 5 * time.Second

// Receipt is the committed outcome of a balance mutation.
type Receipt struct {
	AccountID     int           `json:"account_id"`
	TransactionID int64         `json:"transaction_id"`
	Amount        int64         `json:"amount"`
	Balance       int64         `json:"balance"`
	VipXP         int64         `json:"vip_xp"`
	Boost         *models.Boost `json:"boost,omitempty"`
}

// Reconciliation compares the cached balance against the log.
type Reconciliation struct {
	AccountID   int   `json:"account_id"`
	Balance     int64 `json:"balance"`
	LogSum      int64 `json:"log_sum"`
	Consistent  bool  `json:"consistent"`
	Discrepancy int64 `json:"discrepancy"`
}

type Ledger struct {
	repo        repositories.LedgerRepository
	locks       *lock.KeyedLock
	lockTimeout time.Duration
}

func New(repo repositories.LedgerRepository, lockTimeout time.Duration) *Ledger {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Ledger{repo: repo, locks: lock.NewKeyedLock(), lockTimeout: lockTimeout}
}

func (l *Ledger) Balance(ctx context.Context, accountID int) (int64, error) {
	balance, err := l.repo.Balance(ctx, accountID)
	if err != nil {
		return 0, translate(err)
	}
	return balance, nil
}

// Debit spends amount coins. It fails with *apperr.InsufficientFundsError when the
// balance does not cover the amount; nothing is written in that case.
func (l *Ledger) Debit(ctx context.Context, accountID int, amount int64, reason string) (Receipt, error) {
	if amount <= 0 {
		return Receipt{}, apperr.InvalidArg("debit amount must be positive")
	}
	return l.Apply(ctx, repositories.Mutation{AccountID: accountID, Amount: -amount, Reason: reason})
}

func (l *Ledger) Credit(ctx context.Context, accountID int, amount int64, reason string) (Receipt, error) {
	if amount <= 0 {
		return Receipt{}, apperr.InvalidArg("credit amount must be positive")
	}
	return l.Apply(ctx, repositories.Mutation{AccountID: accountID, Amount: amount, Reason: reason})
}

// Apply checks and commits m while holding the account's lock. Side effects
// carried by m (XP, boost window) commit in the same storage transaction.
func (l *Ledger) Apply(ctx context.Context, m repositories.Mutation) (Receipt, error) {
	if m.Reason == "" {
		return Receipt{}, apperr.InvalidArg("reason is required")
	}
	var receipt Receipt
	err := l.WithAccount(ctx, m.AccountID, func() error {
		var err error
		receipt, err = l.applyLocked(ctx, m)
		return err
	})
	return receipt, err
}

// WithAccount runs fn while no other mutation of accountID can run.
func (l *Ledger) WithAccount(ctx context.Context, accountID int, fn func() error) error {
	err := l.locks.WithLockContext(ctx, accountID, l.lockTimeout, fn)
	switch {
	case errors.Is(err, lock.ErrLockTimeout):
		return apperr.Unavailable("account is busy, retry later", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Unavailable("request cancelled", err)
	}
	return err
}

func (l *Ledger) applyLocked(ctx context.Context, m repositories.Mutation) (Receipt, error) {
	if m.Amount < 0 {
		balance, err := l.repo.Balance(ctx, m.AccountID)
		if err != nil {
			return Receipt{}, translate(err)
		}
		if balance+m.Amount < 0 {
			observability.IncInsufficientFunds()
			return Receipt{}, apperr.InsufficientFunds(-m.Amount, balance)
		}
	}

	res, err := l.repo.Apply(ctx, m)
	if errors.Is(err, repositories.ErrBalanceWouldGoNegative) {
		// Only reachable if something outside this process changed the balance.
		balance, _ := l.repo.Balance(ctx, m.AccountID)
		log.Error().Int("account_id", m.AccountID).Int64("amount", m.Amount).Str("reason", m.Reason).
			Int64("balance", balance).Msg("ledger guard rejected mutation that passed the balance check")
		observability.IncInsufficientFunds()
		return Receipt{}, apperr.InsufficientFunds(-m.Amount, balance)
	}
	if err != nil {
		return Receipt{}, translate(err)
	}

	observability.AddCoins(m.Amount)
	return Receipt{
		AccountID:     m.AccountID,
		TransactionID: res.Transaction.ID,
		Amount:        res.Transaction.Amount,
		Balance:       res.Balance,
		VipXP:         res.VipXP,
		Boost:         res.Boost,
	}, nil
}

// Reverse appends the negation of transaction txID. A transaction can be reversed
// once, and reversals themselves cannot be reversed.
func (l *Ledger) Reverse(ctx context.Context, txID int64) (Receipt, error) {
	orig, err := l.repo.GetTransaction(ctx, txID)
	if err != nil {
		return Receipt{}, translate(err)
	}
	if models.IsReversal(orig.Reason) {
		return Receipt{}, apperr.FailedPrecondition("a reversal cannot be reversed")
	}

	reason := models.ReversalReason(orig.ID)
	var receipt Receipt
	err = l.WithAccount(ctx, orig.AccountID, func() error {
		done, err := l.repo.HasReason(ctx, orig.AccountID, reason)
		if err != nil {
			return translate(err)
		}
		if done {
			return apperr.AlreadyExists(fmt.Sprintf("transaction %d already reversed", orig.ID))
		}
		receipt, err = l.applyLocked(ctx, repositories.Mutation{AccountID: orig.AccountID, Amount: -orig.Amount, Reason: reason})
		return err
	})
	return receipt, err
}

// History returns the newest transactions first.
func (l *Ledger) History(ctx context.Context, accountID int, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	txs, err := l.repo.ListTransactions(ctx, accountID, limit)
	if err != nil {
		return nil, translate(err)
	}
	return txs, nil
}

// Reconcile reads balance and log sum under the account lock.
func (l *Ledger) Reconcile(ctx context.Context, accountID int) (Reconciliation, error) {
	var rec Reconciliation
	err := l.WithAccount(ctx, accountID, func() error {
		balance, err := l.repo.Balance(ctx, accountID)
		if err != nil {
			return translate(err)
		}
		sum, err := l.repo.SumTransactions(ctx, accountID)
		if err != nil {
			return translate(err)
		}
		rec = Reconciliation{
			AccountID:   accountID,
			Balance:     balance,
			LogSum:      sum,
			Consistent:  balance == sum,
			Discrepancy: balance - sum,
		}
		return nil
	})
	if err == nil && !rec.Consistent {
		log.Error().Int("account_id", accountID).Int64("balance", rec.Balance).Int64("log_sum", rec.LogSum).
			Msg("ledger balance differs from transaction log")
	}
	return rec, err
}

func translate(err error) error {
	switch {
	case errors.Is(err, repositories.ErrAccountNotFound):
		return apperr.NotFound("account not found")
	case errors.Is(err, repositories.ErrTransactionNotFound):
		return apperr.NotFound("transaction not found")
	case errors.Is(err, repositories.ErrAlreadyReversed):
		return apperr.AlreadyExists("transaction already reversed")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Unavailable("request cancelled", err)
	default:
		return apperr.Internal("ledger storage failure", err)
	}
}
