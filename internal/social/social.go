// Package social serves favorites and profile views through the visibility gate.
package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"messaging-service/internal/apperr"
	"messaging-service/internal/models"
	"messaging-service/internal/presence"
	"messaging-service/internal/repositories"
	"messaging-service/internal/visibility"
)

const defaultViewerLimit = 100

// Store is the favorites and views persistence used by Service.
type Store interface {
	repositories.FavoriteRepository
	repositories.ViewRepository
}

// Recorder is the activity sink for new favorites.
type Recorder interface {
	Record(ctx context.Context, accountID int, actionType, description string) (models.Activity, error)
}

type Service struct {
	accounts repositories.AccountRepository
	store    Store
	presence presence.Tracker
	recorder Recorder
	now      func() time.Time
}

func NewService(accounts repositories.AccountRepository, store Store, tracker presence.Tracker, recorder Recorder) *Service {
	return &Service{accounts: accounts, store: store, presence: tracker, recorder: recorder, now: time.Now}
}

func (s *Service) AddFavorite(ctx context.Context, actor models.Identity, targetID int) (models.Favorite, error) {
	if actor.ID == targetID {
		return models.Favorite{}, apperr.InvalidArg("cannot favorite yourself")
	}
	fav, err := s.store.AddFavorite(ctx, actor.ID, targetID)
	if err != nil {
		return models.Favorite{}, translate(err)
	}
	if s.recorder != nil {
		if _, err := s.recorder.Record(ctx, targetID, models.ActionFavoriteAdded, fmt.Sprintf("favorited by %d", actor.ID)); err != nil {
			log.Warn().Err(err).Int("account_id", targetID).Msg("activity record failed")
		}
	}
	return fav, nil
}

func (s *Service) RemoveFavorite(ctx context.Context, actor models.Identity, targetID int) error {
	return translate(s.store.RemoveFavorite(ctx, actor.ID, targetID))
}

// Favorites lists the accounts userID liked. Only the owner and staff may read it.
func (s *Service) Favorites(ctx context.Context, actor models.Identity, userID int) ([]models.ViewerEntry, error) {
	if actor.ID != userID && !actor.Role.IsStaff() {
		return nil, apperr.Forbidden("not allowed to read this list")
	}
	entries, err := s.store.ListFavorites(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return s.withPresence(ctx, entries), nil
}

// Fans lists who liked userID, redacted unless the subject is VIP.
func (s *Service) Fans(ctx context.Context, actor models.Identity, userID int) ([]models.ViewerEntry, error) {
	return s.gated(ctx, actor, userID, func() ([]models.ViewerEntry, error) {
		return s.store.ListFans(ctx, userID)
	})
}

// Viewers lists the latest view per distinct viewer, redacted unless the subject is VIP.
func (s *Service) Viewers(ctx context.Context, actor models.Identity, userID int, limit int) ([]models.ViewerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultViewerLimit
	}
	return s.gated(ctx, actor, userID, func() ([]models.ViewerEntry, error) {
		return s.store.ListViewers(ctx, userID, limit)
	})
}

// RecordView stores a view of viewedID. Viewing yourself records nothing.
func (s *Service) RecordView(ctx context.Context, actor models.Identity, viewedID int) (bool, error) {
	if actor.ID == viewedID {
		return false, nil
	}
	if _, err := s.store.RecordView(ctx, actor.ID, viewedID); err != nil {
		return false, translate(err)
	}
	return true, nil
}

func (s *Service) gated(ctx context.Context, actor models.Identity, userID int, load func() ([]models.ViewerEntry, error)) ([]models.ViewerEntry, error) {
	staff := actor.Role.IsStaff()
	if actor.ID != userID && !staff {
		return nil, apperr.Forbidden("not allowed to read this list")
	}

	subject, err := s.accounts.GetAccount(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	entries, err := load()
	if err != nil {
		return nil, translate(err)
	}
	entries = s.withPresence(ctx, entries)
	if staff && actor.ID != userID {
		return entries, nil
	}
	return visibility.FilterViewerList(subject, entries, s.now()), nil
}

func (s *Service) withPresence(ctx context.Context, entries []models.ViewerEntry) []models.ViewerEntry {
	if s.presence == nil || len(entries) == 0 {
		return entries
	}
	ids := make([]int, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	online, err := s.presence.Online(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Msg("presence lookup failed")
		return entries
	}
	for i := range entries {
		entries[i].IsOnline = online[entries[i].UserID]
	}
	return entries
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrAccountNotFound):
		return apperr.NotFound("account not found")
	case errors.Is(err, repositories.ErrAlreadyFavorited):
		return apperr.AlreadyExists("already in favorites")
	case errors.Is(err, repositories.ErrFavoriteNotFound):
		return apperr.NotFound("not in favorites")
	case errors.Is(err, repositories.ErrSelfReference):
		return apperr.InvalidArg("cannot reference yourself")
	default:
		return apperr.Internal("social storage failure", err)
	}
}
