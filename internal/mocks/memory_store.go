package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// MemoryStore is an in-memory account, ledger and boost store with the same
// guarantees as the Postgres repositories: a mutation commits all of its rows or none.
type MemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	accounts map[int]models.Account
	txs      []models.Transaction
	boosts   []models.Boost
	nextTx   int64
	nextBst  int64

	// FailApply, when set, is returned by the next Apply calls matching its reason.
	FailApply func(m repositories.Mutation) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, accounts: map[int]models.Account{}}
}

// Seed creates or replaces an account. The balance is recorded as a credit so the
// log stays consistent with it.
func (s *MemoryStore) Seed(acc models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc.Role == "" {
		acc.Role = models.RoleUser
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = s.now()
	}
	s.accounts[acc.ID] = acc
	if acc.Balance != 0 {
		s.nextTx++
		s.txs = append(s.txs, models.Transaction{ID: s.nextTx, AccountID: acc.ID, Amount: acc.Balance, Reason: models.ReasonAdminCredit, CreatedAt: s.now()})
	}
}

// AddBoost inserts a boost row directly.
func (s *MemoryStore) AddBoost(accountID int, start, end time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBst++
	s.boosts = append(s.boosts, models.Boost{ID: s.nextBst, AccountID: accountID, StartTime: start, EndTime: end})
}

// Transactions returns every transaction of the account, oldest first.
func (s *MemoryStore) Transactions(accountID int) []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, t := range s.txs {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out
}

func (s *MemoryStore) EnsureAccount(_ context.Context, identity models.Identity) (models.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[identity.ID]
	if !ok {
		acc = models.Account{ID: identity.ID, CreatedAt: s.now()}
	}
	acc.DisplayName = identity.DisplayName
	acc.AvatarURL = identity.AvatarURL
	acc.Role = identity.Role
	s.accounts[acc.ID] = acc
	return acc, !ok, nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id int) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return models.Account{}, repositories.ErrAccountNotFound
	}
	return acc, nil
}

func (s *MemoryStore) SetVIP(_ context.Context, id int, isVIP bool, expiresAt *time.Time) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return models.Account{}, repositories.ErrAccountNotFound
	}
	acc.IsVIP = isVIP
	acc.VipExpireDate = expiresAt
	s.accounts[id] = acc
	return acc, nil
}

func (s *MemoryStore) SetVipXP(_ context.Context, id int, xp int64) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return models.Account{}, repositories.ErrAccountNotFound
	}
	acc.VipXP = xp
	s.accounts[id] = acc
	return acc, nil
}

func (s *MemoryStore) DeleteAccount(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return repositories.ErrAccountNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *MemoryStore) Balance(_ context.Context, accountID int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[accountID]
	if !ok {
		return 0, repositories.ErrAccountNotFound
	}
	return acc.Balance, nil
}

func (s *MemoryStore) Apply(_ context.Context, m repositories.Mutation) (repositories.LedgerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailApply != nil {
		if err := s.FailApply(m); err != nil {
			return repositories.LedgerResult{}, err
		}
	}
	acc, ok := s.accounts[m.AccountID]
	if !ok {
		return repositories.LedgerResult{}, repositories.ErrAccountNotFound
	}
	if acc.Balance+m.Amount < 0 {
		return repositories.LedgerResult{}, repositories.ErrBalanceWouldGoNegative
	}
	if models.IsReversal(m.Reason) {
		for _, t := range s.txs {
			if t.Reason == m.Reason {
				return repositories.LedgerResult{}, repositories.ErrAlreadyReversed
			}
		}
	}

	acc.Balance += m.Amount
	acc.VipXP += m.VipXP
	s.accounts[acc.ID] = acc

	s.nextTx++
	tx := models.Transaction{ID: s.nextTx, AccountID: acc.ID, Amount: m.Amount, Reason: m.Reason, CreatedAt: s.now()}
	s.txs = append(s.txs, tx)

	res := repositories.LedgerResult{Transaction: tx, Balance: acc.Balance, VipXP: acc.VipXP}
	if m.Boost != nil {
		s.nextBst++
		b := models.Boost{ID: s.nextBst, AccountID: acc.ID, StartTime: m.Boost.Start, EndTime: m.Boost.End}
		s.boosts = append(s.boosts, b)
		res.Boost = &b
	}
	return res, nil
}

func (s *MemoryStore) GetTransaction(_ context.Context, id int64) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txs {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Transaction{}, repositories.ErrTransactionNotFound
}

func (s *MemoryStore) ListTransactions(_ context.Context, accountID int, limit int) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Transaction{}
	for i := len(s.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.txs[i].AccountID == accountID {
			out = append(out, s.txs[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) SumTransactions(_ context.Context, accountID int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, t := range s.txs {
		if t.AccountID == accountID {
			sum += t.Amount
		}
	}
	return sum, nil
}

func (s *MemoryStore) HasReason(_ context.Context, accountID int, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txs {
		if t.AccountID == accountID && t.Reason == reason {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ActiveBoosts(_ context.Context, accountID int, now time.Time) ([]models.Boost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Boost{}
	for _, b := range s.boosts {
		if b.AccountID == accountID && b.EndTime.After(now) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListBoostedAccounts(_ context.Context, now time.Time) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := map[int]time.Time{}
	for _, b := range s.boosts {
		if b.EndTime.After(now) && b.EndTime.After(latest[b.AccountID]) {
			latest[b.AccountID] = b.EndTime
		}
	}
	ids := make([]int, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return latest[ids[i]].After(latest[ids[j]]) })
	return ids, nil
}

func (s *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.boosts[:0]
	var purged int64
	for _, b := range s.boosts {
		if b.EndTime.After(now) {
			kept = append(kept, b)
		} else {
			purged++
		}
	}
	s.boosts = kept
	return purged, nil
}
