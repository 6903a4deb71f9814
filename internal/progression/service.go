package progression

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"messaging-service/internal/apperr"
	"messaging-service/internal/ledger"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// Recorder is the activity sink for purchases and level-ups.
type Recorder interface {
	Record(ctx context.Context, accountID int, actionType, description string) (models.Activity, error)
}

// PurchaseResult is returned by PurchaseXP.
type PurchaseResult struct {
	NewBalance  int64    `json:"newBalance"`
	NewVipXP    int64    `json:"newVipXp"`
	OldVipLevel int      `json:"oldVipLevel"`
	NewVipLevel int      `json:"newVipLevel"`
	LeveledUp   bool     `json:"leveledUp"`
	Progress    Progress `json:"progress"`
}

type Service struct {
	ladder   *Ladder
	ledger   *ledger.Ledger
	accounts repositories.AccountRepository
	recorder Recorder
}

func NewService(ladder *Ladder, l *ledger.Ledger, accounts repositories.AccountRepository, recorder Recorder) *Service {
	return &Service{ladder: ladder, ledger: l, accounts: accounts, recorder: recorder}
}

// PurchaseXP converts coins to XP 1:1. The debit and the XP increment commit together.
func (s *Service) PurchaseXP(ctx context.Context, accountID int, coins int64) (PurchaseResult, error) {
	if coins <= 0 {
		return PurchaseResult{}, apperr.InvalidArg("coins must be positive")
	}

	receipt, err := s.ledger.Apply(ctx, repositories.Mutation{
		AccountID: accountID,
		Amount:    -coins,
		Reason:    models.ReasonVipXPPurchase,
		VipXP:     coins,
	})
	if err != nil {
		return PurchaseResult{}, err
	}

	oldXP := receipt.VipXP - coins
	res := PurchaseResult{
		NewBalance:  receipt.Balance,
		NewVipXP:    receipt.VipXP,
		OldVipLevel: s.ladder.Level(oldXP),
		NewVipLevel: s.ladder.Level(receipt.VipXP),
		Progress:    s.ladder.Progress(receipt.VipXP),
	}
	res.LeveledUp = res.NewVipLevel > res.OldVipLevel

	s.record(ctx, accountID, models.ActionVipXPPurchase, fmt.Sprintf("purchased %d VIP XP", coins))
	if res.LeveledUp {
		observability.IncVipLevelUp(res.NewVipLevel)
		s.record(ctx, accountID, models.ActionVipLevelUp, fmt.Sprintf("reached VIP level %d", res.NewVipLevel))
	}
	return res, nil
}

// Snapshot returns the account's current progress.
func (s *Service) Snapshot(ctx context.Context, accountID int) (Progress, error) {
	acc, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return Progress{}, accountErr(err)
	}
	return s.ladder.Progress(acc.VipXP), nil
}

// OverrideXP sets the counter to xp. It is the only path that may lower it.
func (s *Service) OverrideXP(ctx context.Context, accountID int, xp int64) (Progress, error) {
	if xp < 0 {
		return Progress{}, apperr.InvalidArg("vip_xp must not be negative")
	}
	var acc models.Account
	err := s.ledger.WithAccount(ctx, accountID, func() error {
		var err error
		acc, err = s.accounts.SetVipXP(ctx, accountID, xp)
		return accountErr(err)
	})
	if err != nil {
		return Progress{}, err
	}
	log.Info().Int("account_id", accountID).Int64("vip_xp", xp).Msg("vip xp overridden")
	return s.ladder.Progress(acc.VipXP), nil
}

func (s *Service) record(ctx context.Context, accountID int, action, description string) {
	if s.recorder == nil {
		return
	}
	if _, err := s.recorder.Record(ctx, accountID, action, description); err != nil {
		log.Warn().Err(err).Int("account_id", accountID).Str("action", action).Msg("activity record failed")
	}
}

func accountErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repositories.ErrAccountNotFound) {
		return apperr.NotFound("account not found")
	}
	return apperr.Internal("account storage failure", err)
}
