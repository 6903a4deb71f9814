package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// FavoriteRepository stores directed like edges.
type FavoriteRepository interface {
	AddFavorite(ctx context.Context, userID, targetID int) (models.Favorite, error)
	RemoveFavorite(ctx context.Context, userID, targetID int) error
	ListFavorites(ctx context.Context, userID int) ([]models.ViewerEntry, error)
	ListFans(ctx context.Context, userID int) ([]models.ViewerEntry, error)
}

// ViewRepository stores profile view events.
type ViewRepository interface {
	RecordView(ctx context.Context, viewerID, viewedID int) (models.ProfileView, error)
	ListViewers(ctx context.Context, viewedID int, limit int) ([]models.ViewerEntry, error)
}

type SocialRepo struct {
	db *sqlx.DB
}

func NewSocialRepo(db *sqlx.DB) *SocialRepo {
	return &SocialRepo{db: db}
}

func (r *SocialRepo) AddFavorite(ctx context.Context, userID, targetID int) (models.Favorite, error) {
	if userID == targetID {
		return models.Favorite{}, ErrSelfReference
	}
	var fav models.Favorite
	rows, err := r.db.QueryxContext(ctx, `INSERT INTO favorites (user_id, target_user_id) VALUES ($1, $2)
        ON CONFLICT (user_id, target_user_id) DO NOTHING
        RETURNING user_id, target_user_id, created_at`, userID, targetID)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return models.Favorite{}, ErrAccountNotFound
		}
		return models.Favorite{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			if pqCode(err) == pqForeignKeyViolation {
				return models.Favorite{}, ErrAccountNotFound
			}
			return models.Favorite{}, err
		}
		return models.Favorite{}, ErrAlreadyFavorited
	}
	err = rows.StructScan(&fav)
	return fav, err
}

func (r *SocialRepo) RemoveFavorite(ctx context.Context, userID, targetID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE user_id=$1 AND target_user_id=$2`, userID, targetID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFavoriteNotFound
	}
	return nil
}

// ListFavorites returns the accounts userID has liked.
func (r *SocialRepo) ListFavorites(ctx context.Context, userID int) ([]models.ViewerEntry, error) {
	entries := []models.ViewerEntry{}
	err := r.db.SelectContext(ctx, &entries, `SELECT a.id AS user_id, a.display_name, a.avatar_url, f.created_at AS at
        FROM favorites f JOIN accounts a ON a.id = f.target_user_id
        WHERE f.user_id=$1 ORDER BY f.created_at DESC`, userID)
	return entries, err
}

// ListFans returns the accounts that liked userID.
func (r *SocialRepo) ListFans(ctx context.Context, userID int) ([]models.ViewerEntry, error) {
	entries := []models.ViewerEntry{}
	err := r.db.SelectContext(ctx, &entries, `SELECT a.id AS user_id, a.display_name, a.avatar_url, f.created_at AS at
        FROM favorites f JOIN accounts a ON a.id = f.user_id
        WHERE f.target_user_id=$1 ORDER BY f.created_at DESC`, userID)
	return entries, err
}

func (r *SocialRepo) RecordView(ctx context.Context, viewerID, viewedID int) (models.ProfileView, error) {
	if viewerID == viewedID {
		return models.ProfileView{}, ErrSelfReference
	}
	var view models.ProfileView
	err := r.db.GetContext(ctx, &view, `INSERT INTO profile_views (viewer_id, viewed_user_id) VALUES ($1, $2)
        RETURNING id, viewer_id, viewed_user_id, created_at`, viewerID, viewedID)
	if pqCode(err) == pqForeignKeyViolation {
		return models.ProfileView{}, ErrAccountNotFound
	}
	return view, err
}

// ListViewers returns one row per distinct viewer carrying their latest view, newest first.
func (r *SocialRepo) ListViewers(ctx context.Context, viewedID int, limit int) ([]models.ViewerEntry, error) {
	entries := []models.ViewerEntry{}
	err := r.db.SelectContext(ctx, &entries, `SELECT a.id AS user_id, a.display_name, a.avatar_url, v.at
        FROM (
            SELECT viewer_id, MAX(created_at) AS at FROM profile_views
            WHERE viewed_user_id=$1 GROUP BY viewer_id
        ) v JOIN accounts a ON a.id = v.viewer_id
        ORDER BY v.at DESC LIMIT $2`, viewedID, limit)
	return entries, err
}
