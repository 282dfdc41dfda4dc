package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riteshkumar/funds-transfer/internal/models"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type AccountReader interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByNumber(ctx context.Context, number string) (*models.Account, error)
}

// AccountStore is the transactional view of accounts handed out by a UnitOfWork.
type AccountStore interface {
	AccountReader
	// GetByIDForUpdate reads the account and holds an exclusive lock on it
	// until the unit of work ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Account, error)
	SetBalance(ctx context.Context, id int64, number string, newBalance decimal.Decimal) error
}

type LedgerReader interface {
	SumWithdrawalsSince(ctx context.Context, accountID int64, since time.Time) (decimal.Decimal, error)
	// CurrentDayStart returns midnight of the current day on the store clock.
	CurrentDayStart(ctx context.Context) (time.Time, error)
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error)
}

type LedgerStore interface {
	LedgerReader
	// Append inserts the entry and fills in its ID and CreatedAt.
	Append(ctx context.Context, entry *models.LedgerEntry) error
}

// Stores groups the repositories bound to a single unit of work.
type Stores struct {
	Accounts AccountStore
	Ledger   LedgerStore
}

// UnitOfWork runs fn inside one atomic unit. If fn returns an error every
// write made through stores is rolled back.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}
