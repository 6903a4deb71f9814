package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// BoostRepository reads boost rows. Inserts go through LedgerRepository.Apply
// so the payment and the window commit together.
type BoostRepository interface {
	ActiveBoosts(ctx context.Context, accountID int, now time.Time) ([]models.Boost, error)
	ListBoostedAccounts(ctx context.Context, now time.Time) ([]int, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type BoostRepo struct {
	db *sqlx.DB
}

func NewBoostRepo(db *sqlx.DB) *BoostRepo {
	return &BoostRepo{db: db}
}

// ActiveBoosts returns the account's rows with end_time after now.
func (r *BoostRepo) ActiveBoosts(ctx context.Context, accountID int, now time.Time) ([]models.Boost, error) {
	boosts := []models.Boost{}
	err := r.db.SelectContext(ctx, &boosts, `SELECT id, account_id, start_time, end_time FROM boosts
        WHERE account_id=$1 AND end_time > $2 ORDER BY end_time DESC`, accountID, now)
	return boosts, err
}

// ListBoostedAccounts returns accounts with at least one unexpired boost, latest expiry first.
func (r *BoostRepo) ListBoostedAccounts(ctx context.Context, now time.Time) ([]int, error) {
	ids := []int{}
	err := r.db.SelectContext(ctx, &ids, `SELECT account_id FROM boosts WHERE end_time > $1
        GROUP BY account_id ORDER BY MAX(end_time) DESC`, now)
	return ids, err
}

// PurgeExpired deletes rows that can no longer affect status.
func (r *BoostRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM boosts WHERE end_time <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
