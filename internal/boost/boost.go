// Package boost sells time-boxed visibility boosts. Status is always derived
// from stored windows and the current time; nothing expires boosts actively.
package boost

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"messaging-service/internal/apperr"
	"messaging-service/internal/ledger"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

const (
	MinDurationMinutes = 1
	MaxDurationMinutes = 7 * 24 * 60
)

// Recorder is the activity sink for boost purchases.
type Recorder interface {
	Record(ctx context.Context, accountID int, actionType, description string) (models.Activity, error)
}

// Effective returns the status implied by boosts at now: boosted while any
// window ends after now, expiring at the latest such end.
func Effective(boosts []models.Boost, now time.Time) models.BoostStatus {
	var latest time.Time
	for _, b := range boosts {
		if b.EndTime.After(now) && b.EndTime.After(latest) {
			latest = b.EndTime
		}
	}
	if latest.IsZero() {
		return models.BoostStatus{}
	}
	return models.BoostStatus{IsBoosted: true, EndTime: &latest}
}

// Activation is the result of a purchase.
type Activation struct {
	EndTime    time.Time    `json:"endTime"`
	NewBalance int64        `json:"newBalance"`
	Boost      models.Boost `json:"boost"`
}

type Scheduler struct {
	ledger   *ledger.Ledger
	repo     repositories.BoostRepository
	recorder Recorder
	now      func() time.Time
}

func NewScheduler(l *ledger.Ledger, repo repositories.BoostRepository, recorder Recorder) *Scheduler {
	return &Scheduler{ledger: l, repo: repo, recorder: recorder, now: time.Now}
}

// Activate charges cost and inserts [now, now+duration]. The payment and the
// window commit together; on insufficient funds neither happens.
func (s *Scheduler) Activate(ctx context.Context, accountID int, durationMinutes int, cost int64) (Activation, error) {
	if durationMinutes < MinDurationMinutes || durationMinutes > MaxDurationMinutes {
		return Activation{}, apperr.InvalidArg(fmt.Sprintf("duration must be between %d and %d minutes", MinDurationMinutes, MaxDurationMinutes))
	}
	if cost <= 0 {
		return Activation{}, apperr.InvalidArg("cost must be positive")
	}

	start := s.now().UTC()
	window := &models.BoostWindow{Start: start, End: start.Add(time.Duration(durationMinutes) * time.Minute)}
	receipt, err := s.ledger.Apply(ctx, repositories.Mutation{
		AccountID: accountID,
		Amount:    -cost,
		Reason:    models.ReasonBoostPurchase,
		Boost:     window,
	})
	if err != nil {
		return Activation{}, err
	}
	observability.IncBoostActivated()

	act := Activation{EndTime: window.End, NewBalance: receipt.Balance}
	if receipt.Boost != nil {
		act.Boost = *receipt.Boost
	}
	// A longer earlier purchase may still outlast this one.
	if status, err := s.Status(ctx, accountID); err == nil && status.EndTime != nil {
		act.EndTime = *status.EndTime
	}

	if s.recorder != nil {
		desc := fmt.Sprintf("boost for %d minutes, %d coins", durationMinutes, cost)
		if _, err := s.recorder.Record(ctx, accountID, models.ActionBoostPurchase, desc); err != nil {
			log.Warn().Err(err).Int("account_id", accountID).Msg("activity record failed")
		}
	}
	return act, nil
}

// Status reports whether the account is boosted right now.
func (s *Scheduler) Status(ctx context.Context, accountID int) (models.BoostStatus, error) {
	now := s.now()
	boosts, err := s.repo.ActiveBoosts(ctx, accountID, now)
	if err != nil {
		return models.BoostStatus{}, apperr.Unavailable("boost status unavailable", err)
	}
	return Effective(boosts, now), nil
}

// ListBoosted returns ids of boosted accounts, latest expiry first.
func (s *Scheduler) ListBoosted(ctx context.Context) ([]int, error) {
	ids, err := s.repo.ListBoostedAccounts(ctx, s.now())
	if err != nil {
		return nil, apperr.Unavailable("boost listing unavailable", err)
	}
	return ids, nil
}

// Purge deletes expired rows. Status never depends on it.
func (s *Scheduler) Purge(ctx context.Context) (int64, error) {
	n, err := s.repo.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, apperr.Internal("boost purge failed", err)
	}
	log.Info().Int64("rows", n).Msg("expired boosts purged")
	return n, nil
}
