package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// ActivityRepository is the append-only activity log.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, accountID int, actionType, description string) (models.Activity, error)
	ListRecent(ctx context.Context, limit int) ([]models.Activity, error)
}

type ActivityRepo struct {
	db *sqlx.DB
}

func NewActivityRepo(db *sqlx.DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

func (r *ActivityRepo) CreateActivity(ctx context.Context, accountID int, actionType, description string) (models.Activity, error) {
	var a models.Activity
	err := r.db.GetContext(ctx, &a, `INSERT INTO activities (account_id, action_type, description)
        VALUES ($1, $2, $3) RETURNING id, account_id, action_type, description, created_at`, accountID, actionType, description)
	return a, err
}

func (r *ActivityRepo) ListRecent(ctx context.Context, limit int) ([]models.Activity, error) {
	out := []models.Activity{}
	err := r.db.SelectContext(ctx, &out, `SELECT id, account_id, action_type, description, created_at
        FROM activities ORDER BY id DESC LIMIT $1`, limit)
	return out, err
}
