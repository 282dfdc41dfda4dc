package service

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riteshkumar/funds-transfer/internal/errors"
	"github.com/riteshkumar/funds-transfer/internal/models"
	"github.com/riteshkumar/funds-transfer/internal/repository"
	"github.com/riteshkumar/funds-transfer/internal/repository/memory"
)

var engineNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type accountSpec struct {
	id       int64
	business int64
	number   string
	balance  int64
	limit    int64
	allowed  models.TransactionAllowed
	inactive bool
}

func newMemoryStore(t *testing.T, specs ...accountSpec) *memory.Store {
	t.Helper()
	store := memory.New(memory.WithClock(func() time.Time { return engineNow }))
	for _, s := range specs {
		account := models.Account{
			ID:                   s.id,
			BusinessID:           s.business,
			AccountNumber:        s.number,
			IFSCCode:             "FUND0000001",
			ActivationStatus:     models.ActivationActive,
			TransactionAllowed:   models.AllowBoth,
			Balance:              decimal.NewFromInt(s.balance),
			DailyWithdrawalLimit: models.DefaultDailyWithdrawalLimit,
		}
		if s.limit > 0 {
			account.DailyWithdrawalLimit = decimal.NewFromInt(s.limit)
		}
		if s.allowed != "" {
			account.TransactionAllowed = s.allowed
		}
		if s.inactive {
			account.ActivationStatus = models.ActivationInactive
		}
		require.NoError(t, store.PutAccount(account))
	}
	return store
}

func newEngine(uow repository.UnitOfWork, maxConcurrent int64) *TransferEngine {
	return NewTransferEngine(uow, EngineConfig{MaxConcurrent: maxConcurrent, UnitTimeout: 2 * time.Second}, discardLogger())
}

func balanceOf(t *testing.T, store *memory.Store, id int64) decimal.Decimal {
	t.Helper()
	account, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return account.Balance
}

func entriesOf(t *testing.T, store *memory.Store, id int64) []*models.LedgerEntry {
	t.Helper()
	entries, err := store.ListByAccount(context.Background(), id, 0)
	require.NoError(t, err)
	return entries
}

func transfer(from int64, to string, amount int64) *models.TransferRequest {
	return &models.TransferRequest{AccountID: from, Amount: amountOf(amount), BeneficiaryAccountNumber: to}
}

func TestTransferEngine_Execute(t *testing.T) {
	t.Run("successful transfer moves money and records both legs", func(t *testing.T) {
		store := newMemoryStore(t,
			accountSpec{id: 1, business: 1, number: "A-1", balance: 1000},
			accountSpec{id: 2, business: 2, number: "B-2", balance: 500},
		)
		engine := newEngine(store, 4)

		result, err := engine.Execute(context.Background(), transfer(1, "B-2", 100), 1)

		require.NoError(t, err)
		assert.True(t, result.Sender.BalanceBefore.Equal(decimal.NewFromInt(1000)))
		assert.True(t, result.Sender.Balance.Equal(decimal.NewFromInt(900)))
		assert.True(t, result.Receiver.BalanceBefore.Equal(decimal.NewFromInt(500)))
		assert.True(t, result.Receiver.Balance.Equal(decimal.NewFromInt(600)))

		assert.True(t, balanceOf(t, store, 1).Equal(decimal.NewFromInt(900)))
		assert.True(t, balanceOf(t, store, 2).Equal(decimal.NewFromInt(600)))

		senderEntries := entriesOf(t, store, 1)
		receiverEntries := entriesOf(t, store, 2)
		require.Len(t, senderEntries, 1)
		require.Len(t, receiverEntries, 1)

		assert.Equal(t, models.EntryWithdrawal, senderEntries[0].EntryType)
		assert.True(t, senderEntries[0].Amount.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, models.EntryDeposit, receiverEntries[0].EntryType)
		assert.True(t, receiverEntries[0].Amount.Equal(decimal.NewFromInt(100)))

		assert.Equal(t, result.TransferID, senderEntries[0].TransferID)
		assert.Equal(t, result.TransferID, receiverEntries[0].TransferID)
		assert.Equal(t, senderEntries[0].CreatedAt, receiverEntries[0].CreatedAt)
		assert.Equal(t, senderEntries[0].ID, result.Sender.Entry.ID)
		assert.Equal(t, receiverEntries[0].ID, result.Receiver.Entry.ID)
	})

	t.Run("sub-cent amount is rejected without writes", func(t *testing.T) {
		store := newMemoryStore(t,
			accountSpec{id: 1, business: 1, number: "A-1", balance: 1000},
			accountSpec{id: 2, business: 2, number: "B-2", balance: 500},
		)
		engine := newEngine(store, 4)
		amount := decimal.RequireFromString("0.005")

		_, err := engine.Execute(context.Background(), &models.TransferRequest{
			AccountID: 1, Amount: &amount, BeneficiaryAccountNumber: "B-2",
		}, 1)

		assert.True(t, errors.IsRejection(err, errors.KindInvalidAmount))
		assert.True(t, balanceOf(t, store, 1).Equal(decimal.NewFromInt(1000)))
		assert.True(t, balanceOf(t, store, 2).Equal(decimal.NewFromInt(500)))
		assert.Empty(t, entriesOf(t, store, 1))
	})

	t.Run("daily limit exceeded leaves balances untouched", func(t *testing.T) {
		store := newMemoryStore(t,
			accountSpec{id: 1, business: 1, number: "A-1", balance: 1000, limit: 500},
			accountSpec{id: 2, business: 2, number: "B-2", balance: 500},
		)
		store.PutEntry(models.LedgerEntry{AccountID: 1, EntryType: models.EntryWithdrawal, Amount: decimal.NewFromInt(450)})
		engine := newEngine(store, 4)

		result, err := engine.Execute(context.Background(), transfer(1, "B-2", 100), 1)

		assert.Nil(t, result)
		assert.True(t, errors.IsRejection(err, errors.KindDailyLimitExceeded))
		assert.True(t, balanceOf(t, store, 1).Equal(decimal.NewFromInt(1000)))
		assert.True(t, balanceOf(t, store, 2).Equal(decimal.NewFromInt(500)))
		assert.Len(t, entriesOf(t, store, 1), 1)
		assert.Empty(t, entriesOf(t, store, 2))
	})

	t.Run("withdrawals from yesterday do not count", func(t *testing.T) {
		store := newMemoryStore(t,
			accountSpec{id: 1, business: 1, number: "A-1", balance: 1000, limit: 500},
			accountSpec{id: 2, business: 2, number: "B-2", balance: 0},
		)
		store.PutEntry(models.LedgerEntry{AccountID: 1, EntryType: models.EntryWithdrawal, Amount: decimal.NewFromInt(450), CreatedAt: engineNow.Add(-24 * time.Hour)})
		engine := newEngine(store, 4)

		_, err := engine.Execute(context.Background(), transfer(1, "B-2", 100), 1)
		assert.NoError(t, err)
	})

	t.Run("daily limit accumulates over committed transfers", func(t *testing.T) {
		store := newMemoryStore(t,
			accountSpec{id: 1, business: 1, number: "A-1", balance: 1000, limit: 250},
			accountSpec{id: 2, business: 2, number: "B-2", balance: 0},
		)
		engine := newEngine(store, 4)
		ctx := context.Background()

		_, err := engine.Execute(ctx, transfer(1, "B-2", 100), 1)
		require.NoError(t, err)
		_, err = engine.Execute(ctx, transfer(1, "B-2", 100), 1)
		require.NoError(t, err)
		_, err = engine.Execute(ctx, transfer(1, "B-2", 100), 1)

		assert.True(t, errors.IsRejection(err, errors.KindDailyLimitExceeded))
		assert.True(t, balanceOf(t, store, 1).Equal(decimal.NewFromInt(800)))
	})

	t.Run("credit-only sender is rejected regardless of balance", func(t *testing.T) {
		store := newMemoryStore(t,
			accountSpec{id: 1, business: 1, number: "A-1", balance: 1_000_000, allowed: models.AllowCredit},
			accountSpec{id: 2, business: 2, number: "B-2", balance: 500},
		)
		engine := newEngine(store, 4)

		_, err := engine.Execute(context.Background(), transfer(1, "B-2", 1), 1)

		assert.True(t, errors.IsRejection(err, errors.KindWithdrawalNotAllowed))
		assert.Empty(t, entriesOf(t, store, 1))
	})

	t.Run("first failing check wins", func(t *testing.T) {
		store := newMemoryStore(t,
			accountSpec{id: 1, business: 1, number: "A-1", balance: 1000, inactive: true},
		)
		engine := newEngine(store, 4)

		_, err := engine.Execute(context.Background(), &models.TransferRequest{AccountID: 1, Amount: amountOf(10)}, 1)

		assert.True(t, errors.IsRejection(err, errors.KindMissingFields))
	})

	t.Run("caller must own the sender account", func(t *testing.T) {
		store := newMemoryStore(t,
			accountSpec{id: 1, business: 1, number: "A-1", balance: 1000},
			accountSpec{id: 2, business: 2, number: "B-2", balance: 500},
		)
		engine := newEngine(store, 4)

		_, err := engine.Execute(context.Background(), transfer(1, "B-2", 10), 2)

		assert.True(t, errors.IsRejection(err, errors.KindUnauthorized))
		assert.True(t, balanceOf(t, store, 1).Equal(decimal.NewFromInt(1000)))
	})

	t.Run("unknown beneficiary", func(t *testing.T) {
		store := newMemoryStore(t,
			accountSpec{id: 1, business: 1, number: "A-1", balance: 1000},
		)
		engine := newEngine(store, 4)

		_, err := engine.Execute(context.Background(), transfer(1, "NOPE", 10), 1)

		assert.True(t, errors.IsRejection(err, errors.KindBeneficiaryNotFound))
	})

	t.Run("self transfer does not mint money", func(t *testing.T) {
		store := newMemoryStore(t,
			accountSpec{id: 1, business: 1, number: "A-1", balance: 1000},
		)
		engine := newEngine(store, 4)

		_, err := engine.Execute(context.Background(), transfer(1, "A-1", 10), 1)

		assert.True(t, errors.IsRejection(err, errors.KindSameAccount))
		assert.True(t, balanceOf(t, store, 1).Equal(decimal.NewFromInt(1000)))
	})
}

// hookedUnitOfWork lets tests intercept the stores handed to the engine.
type hookedUnitOfWork struct {
	inner  repository.UnitOfWork
	before func(ctx context.Context)
	wrap   func(repository.Stores) repository.Stores
}

func (h *hookedUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, stores repository.Stores) error) error {
	return h.inner.WithinTx(ctx, func(ctx context.Context, st repository.Stores) error {
		if h.before != nil {
			h.before(ctx)
		}
		if h.wrap != nil {
			st = h.wrap(st)
		}
		return fn(ctx, st)
	})
}

type failingAccounts struct {
	repository.AccountStore
	failID int64
}

func (f failingAccounts) SetBalance(ctx context.Context, id int64, number string, newBalance decimal.Decimal) error {
	if id == f.failID {
		return stderrors.New("disk full")
	}
	return f.AccountStore.SetBalance(ctx, id, number, newBalance)
}

type failingLedger struct {
	repository.LedgerStore
	failType models.EntryType
}

func (f failingLedger) Append(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.EntryType == f.failType {
		return stderrors.New("insert failed")
	}
	return f.LedgerStore.Append(ctx, entry)
}

func TestTransferEngine_AtomicityUnderFailure(t *testing.T) {
	tests := []struct {
		name string
		wrap func(repository.Stores) repository.Stores
	}{
		{
			name: "receiver balance write fails",
			wrap: func(st repository.Stores) repository.Stores {
				st.Accounts = failingAccounts{AccountStore: st.Accounts, failID: 2}
				return st
			},
		},
		{
			name: "deposit entry insert fails",
			wrap: func(st repository.Stores) repository.Stores {
				st.Ledger = failingLedger{LedgerStore: st.Ledger, failType: models.EntryDeposit}
				return st
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore(t,
				accountSpec{id: 1, business: 1, number: "A-1", balance: 1000},
				accountSpec{id: 2, business: 2, number: "B-2", balance: 500},
			)
			engine := newEngine(&hookedUnitOfWork{inner: store, wrap: tt.wrap}, 4)

			result, err := engine.Execute(context.Background(), transfer(1, "B-2", 100), 1)

			assert.Nil(t, result)
			assert.True(t, errors.IsTransferFailed(err))
			_, isRejection := errors.AsRejection(err)
			assert.False(t, isRejection)

			assert.True(t, balanceOf(t, store, 1).Equal(decimal.NewFromInt(1000)))
			assert.True(t, balanceOf(t, store, 2).Equal(decimal.NewFromInt(500)))
			assert.Empty(t, entriesOf(t, store, 1))
			assert.Empty(t, entriesOf(t, store, 2))

			// locks were released by the rollback
			_, err = newEngine(store, 1).Execute(context.Background(), transfer(1, "B-2", 100), 1)
			assert.NoError(t, err)
		})
	}
}

func TestTransferEngine_ConcurrentOverdraw(t *testing.T) {
	store := newMemoryStore(t,
		accountSpec{id: 1, business: 1, number: "A-1", balance: 1000},
		accountSpec{id: 2, business: 2, number: "B-2", balance: 0},
		accountSpec{id: 3, business: 3, number: "C-3", balance: 0},
	)
	engine := newEngine(store, 8)

	const attempts = 25
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := "B-2"
			if i%2 == 0 {
				to = "C-3"
			}
			_, err := engine.Execute(context.Background(), transfer(1, to, 100), 1)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.IsRejection(err, errors.KindInsufficientBalance), "unexpected error: %v", err)
	}

	assert.Equal(t, 10, succeeded)
	assert.True(t, balanceOf(t, store, 1).IsZero())
	total := balanceOf(t, store, 1).Add(balanceOf(t, store, 2)).Add(balanceOf(t, store, 3))
	assert.True(t, total.Equal(decimal.NewFromInt(1000)), total.String())
	assert.Len(t, entriesOf(t, store, 1), 10)
}

func TestTransferEngine_MirrorTransfersDoNotDeadlock(t *testing.T) {
	store := newMemoryStore(t,
		accountSpec{id: 1, business: 1, number: "A-1", balance: 10_000},
		accountSpec{id: 2, business: 2, number: "B-2", balance: 10_000},
	)
	engine := newEngine(store, 16)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := engine.Execute(context.Background(), transfer(1, "B-2", 7), 1)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := engine.Execute(context.Background(), transfer(2, "A-1", 3), 2)
			assert.NoError(t, err)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("mirror transfers did not finish")
	}

	a, b := balanceOf(t, store, 1), balanceOf(t, store, 2)
	assert.True(t, a.Equal(decimal.NewFromInt(10_000-50*7+50*3)), a.String())
	assert.True(t, a.Add(b).Equal(decimal.NewFromInt(20_000)))
}

func TestTransferEngine_Cancellation(t *testing.T) {
	t.Run("cancelled before the unit starts writes nothing", func(t *testing.T) {
		store := newMemoryStore(t,
			accountSpec{id: 1, business: 1, number: "A-1", balance: 1000},
			accountSpec{id: 2, business: 2, number: "B-2", balance: 500},
		)
		engine := newEngine(store, 4)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := engine.Execute(ctx, transfer(1, "B-2", 100), 1)

		assert.ErrorIs(t, err, ErrNotStarted)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, errors.IsTransferFailed(err))
		assert.True(t, balanceOf(t, store, 1).Equal(decimal.NewFromInt(1000)))
	})

	t.Run("cancellation after the unit starts is ignored", func(t *testing.T) {
		store := newMemoryStore(t,
			accountSpec{id: 1, business: 1, number: "A-1", balance: 1000},
			accountSpec{id: 2, business: 2, number: "B-2", balance: 500},
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		uow := &hookedUnitOfWork{inner: store, before: func(unitCtx context.Context) {
			cancel()
			assert.NoError(t, unitCtx.Err())
		}}
		engine := newEngine(uow, 4)

		_, err := engine.Execute(ctx, transfer(1, "B-2", 100), 1)

		require.NoError(t, err)
		assert.True(t, balanceOf(t, store, 1).Equal(decimal.NewFromInt(900)))
	})

	t.Run("waiting for an admission slot honours the caller", func(t *testing.T) {
		store := newMemoryStore(t,
			accountSpec{id: 1, business: 1, number: "A-1", balance: 1000},
			accountSpec{id: 2, business: 2, number: "B-2", balance: 500},
		)
		entered := make(chan struct{})
		release := make(chan struct{})
		uow := &hookedUnitOfWork{inner: store, before: func(context.Context) {
			close(entered)
			<-release
		}}
		engine := newEngine(uow, 1)

		done := make(chan error, 1)
		go func() {
			_, err := engine.Execute(context.Background(), transfer(1, "B-2", 100), 1)
			done <- err
		}()
		<-entered

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := engine.Execute(ctx, transfer(1, "B-2", 100), 1)
		assert.ErrorIs(t, err, ErrNotStarted)

		close(release)
		require.NoError(t, <-done)
		assert.True(t, balanceOf(t, store, 1).Equal(decimal.NewFromInt(900)))
	})
}

func TestTransferEngine_LockWaitTimeoutIsTransferFailed(t *testing.T) {
	store := newMemoryStore(t,
		accountSpec{id: 1, business: 1, number: "A-1", balance: 1000},
		accountSpec{id: 2, business: 2, number: "B-2", balance: 500},
	)
	locked := make(chan struct{})
	release := make(chan struct{})
	holderDone := make(chan error, 1)
	go func() {
		holderDone <- store.WithinTx(context.Background(), func(ctx context.Context, st repository.Stores) error {
			if _, err := st.Accounts.GetByIDForUpdate(ctx, 2); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	engine := NewTransferEngine(store, EngineConfig{MaxConcurrent: 1, UnitTimeout: 30 * time.Millisecond}, discardLogger())
	_, err := engine.Execute(context.Background(), transfer(1, "B-2", 100), 1)

	assert.True(t, errors.IsTransferFailed(err))
	assert.True(t, errors.IsRetryable(err))

	close(release)
	require.NoError(t, <-holderDone)
	assert.True(t, balanceOf(t, store, 1).Equal(decimal.NewFromInt(1000)))
}

func TestTransferEngine_ForeignCallerTakesNoLocks(t *testing.T) {
	store := newMemoryStore(t,
		accountSpec{id: 1, business: 1, number: "A-1", balance: 1000},
		accountSpec{id: 2, business: 2, number: "B-2", balance: 500},
	)
	locked := make(chan struct{})
	release := make(chan struct{})
	holderDone := make(chan error, 1)
	go func() {
		holderDone <- store.WithinTx(context.Background(), func(ctx context.Context, st repository.Stores) error {
			if _, err := st.Accounts.GetByIDForUpdate(ctx, 1); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked
	defer func() {
		close(release)
		require.NoError(t, <-holderDone)
	}()

	engine := NewTransferEngine(store, EngineConfig{MaxConcurrent: 1, UnitTimeout: 30 * time.Millisecond}, discardLogger())

	_, err := engine.Execute(context.Background(), transfer(1, "B-2", 100), 2)
	assert.True(t, errors.IsRejection(err, errors.KindUnauthorized), "unexpected error: %v", err)

	_, err = engine.Execute(context.Background(), transfer(99, "A-1", 100), 2)
	assert.True(t, errors.IsRejection(err, errors.KindSenderNotFound), "unexpected error: %v", err)
}
