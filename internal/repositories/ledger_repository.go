package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// Mutation is one balance change plus the side effects committed with it.
type Mutation struct {
	AccountID int
	Amount    int64
	Reason    string
	VipXP     int64
	Boost     *models.BoostWindow
}

// LedgerResult is the committed state after a mutation.
type LedgerResult struct {
	Transaction models.Transaction
	Balance     int64
	VipXP       int64
	Boost       *models.Boost
}

// LedgerRepository stores balances and the append-only transaction log.
type LedgerRepository interface {
	Balance(ctx context.Context, accountID int) (int64, error)
	Apply(ctx context.Context, m Mutation) (LedgerResult, error)
	GetTransaction(ctx context.Context, id int64) (models.Transaction, error)
	ListTransactions(ctx context.Context, accountID int, limit int) ([]models.Transaction, error)
	SumTransactions(ctx context.Context, accountID int) (int64, error)
	HasReason(ctx context.Context, accountID int, reason string) (bool, error)
}

// LedgerRepo is the Postgres ledger. Balance, log, XP and boost rows change in one DB transaction.
type LedgerRepo struct {
	db *sqlx.DB
}

func NewLedgerRepo(db *sqlx.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

func (r *LedgerRepo) Balance(ctx context.Context, accountID int) (int64, error) {
	var balance int64
	err := r.db.GetContext(ctx, &balance, `SELECT balance FROM accounts WHERE id=$1`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	return balance, err
}

// Apply commits the mutation or nothing. The guarded UPDATE rejects any change that
// would leave a negative balance even if the caller's own check was bypassed.
func (r *LedgerRepo) Apply(ctx context.Context, m Mutation) (LedgerResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return LedgerResult{}, fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	var res LedgerResult
	err = tx.QueryRowxContext(ctx, `UPDATE accounts SET balance = balance + $2, vip_xp = vip_xp + $3
        WHERE id=$1 AND balance + $2 >= 0
        RETURNING balance, vip_xp`, m.AccountID, m.Amount, m.VipXP).Scan(&res.Balance, &res.VipXP)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id=$1)`, m.AccountID); err != nil {
			return LedgerResult{}, err
		}
		if !exists {
			return LedgerResult{}, ErrAccountNotFound
		}
		return LedgerResult{}, ErrBalanceWouldGoNegative
	}
	if err != nil {
		return LedgerResult{}, err
	}

	err = tx.GetContext(ctx, &res.Transaction, `INSERT INTO transactions (account_id, amount, reason)
        VALUES ($1, $2, $3) RETURNING id, account_id, amount, reason, created_at`, m.AccountID, m.Amount, m.Reason)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return LedgerResult{}, ErrAlreadyReversed
		}
		return LedgerResult{}, fmt.Errorf("insert transaction: %w", err)
	}

	if m.Boost != nil {
		var boost models.Boost
		err = tx.GetContext(ctx, &boost, `INSERT INTO boosts (account_id, start_time, end_time)
            VALUES ($1, $2, $3) RETURNING id, account_id, start_time, end_time`, m.AccountID, m.Boost.Start, m.Boost.End)
		if err != nil {
			return LedgerResult{}, fmt.Errorf("insert boost: %w", err)
		}
		res.Boost = &boost
	}

	if err := tx.Commit(); err != nil {
		return LedgerResult{}, fmt.Errorf("commit ledger tx: %w", err)
	}
	return res, nil
}

func (r *LedgerRepo) GetTransaction(ctx context.Context, id int64) (models.Transaction, error) {
	var t models.Transaction
	err := r.db.GetContext(ctx, &t, `SELECT id, account_id, amount, reason, created_at FROM transactions WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, ErrTransactionNotFound
	}
	return t, err
}

// ListTransactions returns the newest entries first.
func (r *LedgerRepo) ListTransactions(ctx context.Context, accountID int, limit int) ([]models.Transaction, error) {
	txs := []models.Transaction{}
	err := r.db.SelectContext(ctx, &txs, `SELECT id, account_id, amount, reason, created_at FROM transactions
        WHERE account_id=$1 ORDER BY id DESC LIMIT $2`, accountID, limit)
	return txs, err
}

func (r *LedgerRepo) SumTransactions(ctx context.Context, accountID int) (int64, error) {
	var sum int64
	err := r.db.GetContext(ctx, &sum, `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE account_id=$1`, accountID)
	return sum, err
}

func (r *LedgerRepo) HasReason(ctx context.Context, accountID int, reason string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM transactions WHERE account_id=$1 AND reason=$2)`, accountID, reason)
	return exists, err
}
