package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/riteshkumar/funds-transfer/internal/errors"
	"github.com/riteshkumar/funds-transfer/internal/models"
)

const accountColumns = `id, business_id, account_number, ifsc_code, activation_status,
	transaction_allowed, balance, daily_withdrawal_limit, created_at, updated_at`

type PostgresAccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by ID: %w", err)
	}
	return account, nil
}

func (r *PostgresAccountRepository) GetByNumber(ctx context.Context, number string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, number))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by number: %w", err)
	}
	return account, nil
}

func (r *PostgresAccountRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by ID for update: %w", classify(err))
	}
	return account, nil
}

func (r *PostgresAccountRepository) SetBalance(ctx context.Context, id int64, number string, newBalance decimal.Decimal) error {
	if newBalance.IsNegative() {
		return errors.ErrNegativeBalance
	}

	query := `UPDATE accounts SET balance = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND account_number = $3`

	result, err := r.db.ExecContext(ctx, query, newBalance, id, number)
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", classify(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating account balance: %w", err)
	}

	if rowsAffected == 0 {
		return errors.ErrAccountNotFound
	}

	return nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(
		&account.ID,
		&account.BusinessID,
		&account.AccountNumber,
		&account.IFSCCode,
		&account.ActivationStatus,
		&account.TransactionAllowed,
		&account.Balance,
		&account.DailyWithdrawalLimit,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}
