package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riteshkumar/funds-transfer/internal/models"
)

type PostgresLedgerRepository struct {
	db DBTX
}

func NewLedgerRepository(db DBTX) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

// Append inserts a ledger entry. created_at is the transaction timestamp, so
// both legs of a transfer carry the same commit-time date.
func (r *PostgresLedgerRepository) Append(ctx context.Context, entry *models.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (transfer_id, account_id, entry_type, amount, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		entry.TransferID,
		entry.AccountID,
		entry.EntryType,
		entry.Amount,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", classify(err))
	}
	return nil
}

func (r *PostgresLedgerRepository) SumWithdrawalsSince(ctx context.Context, accountID int64, since time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE account_id = $1
			AND entry_type = $2
			AND created_at >= $3`

	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, query, accountID, models.EntryWithdrawal, since).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum withdrawals: %w", err)
	}
	return total, nil
}

func (r *PostgresLedgerRepository) CurrentDayStart(ctx context.Context) (time.Time, error) {
	var dayStart time.Time
	err := r.db.QueryRowContext(ctx, `SELECT date_trunc('day', now())`).Scan(&dayStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read store clock: %w", err)
	}
	return dayStart, nil
}

func (r *PostgresLedgerRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error) {
	query := `SELECT id, transfer_id, account_id, entry_type, amount, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries by account ID: %w", err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		entry := &models.LedgerEntry{}
		err := rows.Scan(&entry.ID, &entry.TransferID, &entry.AccountID, &entry.EntryType, &entry.Amount, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over ledger entries: %w", err)
	}
	return entries, nil
}
