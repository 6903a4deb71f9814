package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"messaging-service/internal/apperr"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

func newLedger(balance int64) (*Ledger, *mocks.MemoryStore) {
	store := mocks.NewMemoryStore()
	store.Seed(models.Account{ID: 1, Balance: balance})
	return New(store, time.Second), store
}

func TestDebitAndCredit(t *testing.T) {
	l, store := newLedger(100)
	ctx := context.Background()

	receipt, err := l.Debit(ctx, 1, 30, models.ReasonMessage)
	require.NoError(t, err)
	assert.Equal(t, int64(70), receipt.Balance)
	assert.Equal(t, int64(-30), receipt.Amount)
	assert.NotZero(t, receipt.TransactionID)

	receipt, err = l.Credit(ctx, 1, 5, models.ReasonAdminCredit)
	require.NoError(t, err)
	assert.Equal(t, int64(75), receipt.Balance)
	assert.Len(t, store.Transactions(1), 3)
}

func TestDebitInsufficientFunds(t *testing.T) {
	l, store := newLedger(20)
	_, err := l.Debit(context.Background(), 1, 50, models.ReasonMessage)

	funds, ok := apperr.AsInsufficientFunds(err)
	require.True(t, ok)
	assert.Equal(t, int64(50), funds.Required)
	assert.Equal(t, int64(20), funds.Available)
	assert.Len(t, store.Transactions(1), 1)

	balance, err := l.Balance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance)
}

func TestDebitValidation(t *testing.T) {
	l, _ := newLedger(20)
	_, err := l.Debit(context.Background(), 1, 0, models.ReasonMessage)
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	_, err = l.Credit(context.Background(), 1, -3, models.ReasonAdminCredit)
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	_, err = l.Debit(context.Background(), 99, 1, models.ReasonMessage)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestStorageFailureLeavesNothingBehind(t *testing.T) {
	l, store := newLedger(100)
	store.FailApply = func(repositories.Mutation) error { return errors.New("disk full") }

	_, err := l.Debit(context.Background(), 1, 10, models.ReasonMessage)
	assert.Equal(t, apperr.CodeInternal, apperr.CodeOf(err))

	store.FailApply = nil
	rec, err := l.Reconcile(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, int64(100), rec.Balance)
}

func TestReverseOnce(t *testing.T) {
	l, _ := newLedger(100)
	ctx := context.Background()

	spent, err := l.Debit(ctx, 1, 40, models.ReasonMessage)
	require.NoError(t, err)

	reversed, err := l.Reverse(ctx, spent.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), reversed.Balance)

	_, err = l.Reverse(ctx, spent.TransactionID)
	assert.Equal(t, apperr.CodeAlreadyExists, apperr.CodeOf(err))

	_, err = l.Reverse(ctx, reversed.TransactionID)
	assert.Equal(t, apperr.CodeFailedPrecondition, apperr.CodeOf(err))

	_, err = l.Reverse(ctx, 9999)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestReversingSpentCreditFails(t *testing.T) {
	l, _ := newLedger(0)
	ctx := context.Background()
	credit, err := l.Credit(ctx, 1, 50, models.ReasonAdminCredit)
	require.NoError(t, err)
	_, err = l.Debit(ctx, 1, 30, models.ReasonMessage)
	require.NoError(t, err)

	_, err = l.Reverse(ctx, credit.TransactionID)
	_, ok := apperr.AsInsufficientFunds(err)
	assert.True(t, ok)
}

func TestHistoryNewestFirst(t *testing.T) {
	l, _ := newLedger(10)
	ctx := context.Background()
	_, err := l.Debit(ctx, 1, 1, models.ReasonMessage)
	require.NoError(t, err)

	txs, err := l.History(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, models.ReasonMessage, txs[0].Reason)
}

func TestWithAccountTimesOut(t *testing.T) {
	l, _ := newLedger(10)
	l.lockTimeout = 20 * time.Millisecond
	require.NoError(t, l.locks.LockContext(context.Background(), 1, 0))
	defer l.locks.Unlock(1)

	_, err := l.Debit(context.Background(), 1, 1, models.ReasonMessage)
	assert.Equal(t, apperr.CodeUnavailable, apperr.CodeOf(err))
}

func TestConcurrentDebitsNeverDoubleSpend(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		balance := rapid.Int64Range(0, 500).Draw(rt, "balance")
		cost := rapid.Int64Range(1, 60).Draw(rt, "cost")
		workers := rapid.IntRange(1, 40).Draw(rt, "workers")

		l, store := newLedger(balance)
		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded, rejected := 0, 0
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := l.Debit(context.Background(), 1, cost, models.ReasonMessage)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					succeeded++
					return
				}
				if _, ok := apperr.AsInsufficientFunds(err); ok {
					rejected++
				}
			}()
		}
		wg.Wait()

		want := int(balance / cost)
		if want > workers {
			want = workers
		}
		if succeeded != want || succeeded+rejected != workers {
			rt.Fatalf("succeeded=%d rejected=%d want=%d", succeeded, rejected, want)
		}
		final, _ := store.Balance(context.Background(), 1)
		if final != balance-int64(want)*cost || final < 0 {
			rt.Fatalf("final balance %d", final)
		}
	})
}

func TestBalanceMatchesLogAfterAnySequence(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		initial := rapid.Int64Range(0, 1000).Draw(rt, "initial")
		l, _ := newLedger(initial)
		ctx := context.Background()

		ops := rapid.SliceOfN(rapid.Int64Range(-200, 200), 1, 30).Draw(rt, "ops")
		for _, amount := range ops {
			switch {
			case amount > 0:
				_, _ = l.Credit(ctx, 1, amount, models.ReasonAdminCredit)
			case amount < 0:
				_, _ = l.Debit(ctx, 1, -amount, models.ReasonMessage)
			}
		}

		rec, err := l.Reconcile(ctx, 1)
		if err != nil {
			rt.Fatalf("reconcile: %v", err)
		}
		if !rec.Consistent || rec.Balance < 0 {
			rt.Fatalf("inconsistent ledger: %+v", rec)
		}
	})
}
