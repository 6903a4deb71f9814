package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// AccountRepository persists the local account projection.
type AccountRepository interface {
	EnsureAccount(ctx context.Context, identity models.Identity) (models.Account, bool, error)
	GetAccount(ctx context.Context, id int) (models.Account, error)
	SetVIP(ctx context.Context, id int, isVIP bool, expiresAt *time.Time) (models.Account, error)
	SetVipXP(ctx context.Context, id int, xp int64) (models.Account, error)
	DeleteAccount(ctx context.Context, id int) error
}

const accountColumns = `id, display_name, avatar_url, role, balance, vip_xp, is_vip, vip_expire_date, created_at`

// AccountRepo is a sqlx implementation of AccountRepository.
type AccountRepo struct {
	db *sqlx.DB
}

func NewAccountRepo(db *sqlx.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

// EnsureAccount inserts the account or refreshes its profile fields and
// reports whether the row was created. Balance and XP are untouched.
func (r *AccountRepo) EnsureAccount(ctx context.Context, identity models.Identity) (models.Account, bool, error) {
	var row struct {
		models.Account
		Created bool `db:"created"`
	}
	// xmax is zero only on a freshly inserted tuple.
	err := r.db.GetContext(ctx, &row, `INSERT INTO accounts (id, display_name, avatar_url, role)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name,
            avatar_url = EXCLUDED.avatar_url, role = EXCLUDED.role
        RETURNING `+accountColumns+`, (xmax = 0) AS created`, identity.ID, identity.DisplayName, identity.AvatarURL, string(identity.Role))
	return row.Account, row.Created, err
}

func (r *AccountRepo) GetAccount(ctx context.Context, id int) (models.Account, error) {
	var acc models.Account
	err := r.db.GetContext(ctx, &acc, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrAccountNotFound
	}
	return acc, err
}

func (r *AccountRepo) SetVIP(ctx context.Context, id int, isVIP bool, expiresAt *time.Time) (models.Account, error) {
	var acc models.Account
	err := r.db.GetContext(ctx, &acc, `UPDATE accounts SET is_vip=$2, vip_expire_date=$3 WHERE id=$1 RETURNING `+accountColumns, id, isVIP, expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrAccountNotFound
	}
	return acc, err
}

// SetVipXP overwrites the XP counter. Only the admin override path may lower it.
func (r *AccountRepo) SetVipXP(ctx context.Context, id int, xp int64) (models.Account, error) {
	var acc models.Account
	err := r.db.GetContext(ctx, &acc, `UPDATE accounts SET vip_xp=$2 WHERE id=$1 RETURNING `+accountColumns, id, xp)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrAccountNotFound
	}
	return acc, err
}

// DeleteAccount removes the account; chats, messages, boosts and social edges cascade.
func (r *AccountRepo) DeleteAccount(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}
