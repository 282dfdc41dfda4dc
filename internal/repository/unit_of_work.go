package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresUnitOfWork runs each unit in a READ COMMITTED transaction with a
// bounded lock wait. Rows locked with FOR UPDATE stay locked until commit or
// rollback, and every statement after the lock sees the latest committed
// data.
type PostgresUnitOfWork struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewUnitOfWork(db *sql.DB, lockTimeout time.Duration) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{db: db, lockTimeout: lockTimeout}
}

func (u *PostgresUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error {
	tx, err := u.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Ensure rollback on error
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	if u.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", u.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	stores := Stores{
		Accounts: NewAccountRepository(tx),
		Ledger:   NewLedgerRepository(tx),
	}
	if err := fn(ctx, stores); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}

	// Nullify tx to avoid rollback in defer
	tx = nil
	return nil
}
