// Package memory provides an in-process account and ledger store with
// row-level locking and all-or-nothing units of work.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riteshkumar/funds-transfer/internal/errors"
	"github.com/riteshkumar/funds-transfer/internal/models"
	"github.com/riteshkumar/funds-transfer/internal/repository"
)

var (
	_ repository.AccountReader = (*Store)(nil)
	_ repository.LedgerReader  = (*Store)(nil)
	_ repository.UnitOfWork    = (*Store)(nil)
	_ repository.AccountStore  = (*unit)(nil)
	_ repository.LedgerStore   = (*unit)(nil)
)

// Store keeps committed state behind mu. Row locks are one-slot channels so
// that waiting for a lock can be abandoned when the context ends.
type Store struct {
	mu          sync.RWMutex
	accounts    map[int64]models.Account
	numbers     map[string]int64
	entries     []models.LedgerEntry
	nextEntryID atomic.Int64

	locksMu sync.Mutex
	locks   map[int64]chan struct{}

	now func() time.Time
}

type Option func(*Store)

// WithClock replaces the store clock used for entry timestamps and the daily window.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		accounts: make(map[int64]models.Account),
		numbers:  make(map[string]int64),
		locks:    make(map[int64]chan struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PutAccount seeds an account. Account numbers must be unique.
func (s *Store) PutAccount(account models.Account) error {
	if account.ID <= 0 || account.AccountNumber == "" {
		return fmt.Errorf("account id and number are required")
	}
	if account.Balance.IsNegative() {
		return errors.ErrNegativeBalance
	}
	if !models.HasAmountScale(account.Balance) {
		return errors.ErrAmountScale
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.numbers[account.AccountNumber]; ok && owner != account.ID {
		return fmt.Errorf("account number %s already exists", account.AccountNumber)
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = s.now()
		account.UpdatedAt = account.CreatedAt
	}
	s.accounts[account.ID] = account
	s.numbers[account.AccountNumber] = account.ID
	return nil
}

// PutEntry seeds ledger history. A zero CreatedAt is stamped with the store clock.
func (s *Store) PutEntry(entry models.LedgerEntry) models.LedgerEntry {
	entry.ID = s.nextEntryID.Add(1)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	return entry
}

func (s *Store) GetByID(_ context.Context, id int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	return &account, nil
}

func (s *Store) GetByNumber(_ context.Context, number string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.numbers[number]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	account := s.accounts[id]
	return &account, nil
}

func (s *Store) SumWithdrawalsSince(_ context.Context, accountID int64, since time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sumWithdrawals(s.entries, accountID, since), nil
}

func (s *Store) CurrentDayStart(_ context.Context) (time.Time, error) {
	now := s.now()
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
}

func (s *Store) ListByAccount(_ context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return newestFirst(s.entries, nil, accountID, limit), nil
}

// WithinTx runs fn against a unit that buffers writes until fn returns nil.
// Locks taken inside the unit are released after the writes are published.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, stores repository.Stores) error) error {
	u := &unit{
		store:    s,
		started:  s.now(),
		held:     make(map[int64]chan struct{}),
		balances: make(map[int64]decimal.Decimal),
	}
	defer u.release()

	if err := fn(ctx, repository.Stores{Accounts: u, Ledger: u}); err != nil {
		return err
	}
	u.commit()
	return nil
}

func (s *Store) rowLock(id int64) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

// unit is the transactional view handed to WithinTx callbacks.
type unit struct {
	store    *Store
	started  time.Time
	held     map[int64]chan struct{}
	balances map[int64]decimal.Decimal
	entries  []models.LedgerEntry
}

func (u *unit) lock(ctx context.Context, id int64) error {
	if _, ok := u.held[id]; ok {
		return nil
	}
	ch := u.store.rowLock(id)
	select {
	case ch <- struct{}{}:
		u.held[id] = ch
		return nil
	case <-ctx.Done():
		return &errors.RetryableError{Cause: fmt.Errorf("waiting for lock on account %d: %w", id, ctx.Err())}
	}
}

func (u *unit) release() {
	for id, ch := range u.held {
		<-ch
		delete(u.held, id)
	}
}

func (u *unit) overlay(account *models.Account) *models.Account {
	if balance, ok := u.balances[account.ID]; ok {
		account.Balance = balance
	}
	return account
}

func (u *unit) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	account, err := u.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.overlay(account), nil
}

func (u *unit) GetByNumber(ctx context.Context, number string) (*models.Account, error) {
	account, err := u.store.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return u.overlay(account), nil
}

func (u *unit) GetByIDForUpdate(ctx context.Context, id int64) (*models.Account, error) {
	if _, err := u.store.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := u.lock(ctx, id); err != nil {
		return nil, err
	}
	// re-read: the previous holder may have committed new balances
	return u.GetByID(ctx, id)
}

func (u *unit) SetBalance(ctx context.Context, id int64, number string, newBalance decimal.Decimal) error {
	if newBalance.IsNegative() {
		return errors.ErrNegativeBalance
	}
	if !models.HasAmountScale(newBalance) {
		return errors.ErrAmountScale
	}
	account, err := u.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if account.AccountNumber != number {
		return errors.ErrAccountNotFound
	}
	if err := u.lock(ctx, id); err != nil {
		return err
	}
	u.balances[id] = newBalance
	return nil
}

func (u *unit) Append(_ context.Context, entry *models.LedgerEntry) error {
	if !entry.Amount.IsPositive() {
		return fmt.Errorf("ledger entry amount must be positive")
	}
	if !models.HasAmountScale(entry.Amount) {
		return errors.ErrAmountScale
	}
	entry.ID = u.store.nextEntryID.Add(1)
	entry.CreatedAt = u.started
	u.entries = append(u.entries, *entry)
	return nil
}

func (u *unit) SumWithdrawalsSince(ctx context.Context, accountID int64, since time.Time) (decimal.Decimal, error) {
	committed, err := u.store.SumWithdrawalsSince(ctx, accountID, since)
	if err != nil {
		return decimal.Zero, err
	}
	return committed.Add(sumWithdrawals(u.entries, accountID, since)), nil
}

func (u *unit) CurrentDayStart(ctx context.Context) (time.Time, error) {
	return u.store.CurrentDayStart(ctx)
}

func (u *unit) ListByAccount(_ context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error) {
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()

	return newestFirst(u.store.entries, u.entries, accountID, limit), nil
}

func (u *unit) commit() {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	for id, balance := range u.balances {
		account := u.store.accounts[id]
		account.Balance = balance
		account.UpdatedAt = u.started
		u.store.accounts[id] = account
	}
	u.store.entries = append(u.store.entries, u.entries...)
}

func sumWithdrawals(entries []models.LedgerEntry, accountID int64, since time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		if entry.AccountID == accountID &&
			entry.EntryType == models.EntryWithdrawal &&
			!entry.CreatedAt.Before(since) {
			total = total.Add(entry.Amount)
		}
	}
	return total
}

func newestFirst(committed, pending []models.LedgerEntry, accountID int64, limit int) []*models.LedgerEntry {
	var out []*models.LedgerEntry
	for _, set := range [][]models.LedgerEntry{committed, pending} {
		for i := range set {
			if set[i].AccountID == accountID {
				entry := set[i]
				out = append(out, &entry)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
