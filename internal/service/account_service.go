package service

import (
	"context"
	"log/slog"

	"github.com/riteshkumar/funds-transfer/internal/errors"
	"github.com/riteshkumar/funds-transfer/internal/models"
	"github.com/riteshkumar/funds-transfer/internal/repository"
)

const (
	DefaultEntriesLimit = 50
	MaxEntriesLimit     = 500
)

type AccountService interface {
	GetBalance(ctx context.Context, accountID, callerBusinessID int64) (*models.BalanceResponse, error)
	ListEntries(ctx context.Context, accountID, callerBusinessID int64, limit int) ([]*models.LedgerEntry, error)
}

type AccountServiceImpl struct {
	accounts repository.AccountReader
	ledger   repository.LedgerReader
	logger   *slog.Logger
}

func NewAccountService(accounts repository.AccountReader, ledger repository.LedgerReader, logger *slog.Logger) *AccountServiceImpl {
	return &AccountServiceImpl{
		accounts: accounts,
		ledger:   ledger,
		logger:   logger,
	}
}

func (s *AccountServiceImpl) GetBalance(ctx context.Context, accountID, callerBusinessID int64) (*models.BalanceResponse, error) {
	account, err := s.ownedAccount(ctx, accountID, callerBusinessID)
	if err != nil {
		return nil, err
	}

	return &models.BalanceResponse{
		AccountID:     account.ID,
		AccountNumber: account.AccountNumber,
		Balance:       account.Balance,
	}, nil
}

// ListEntries returns the newest ledger entries of the account first.
func (s *AccountServiceImpl) ListEntries(ctx context.Context, accountID, callerBusinessID int64, limit int) ([]*models.LedgerEntry, error) {
	if _, err := s.ownedAccount(ctx, accountID, callerBusinessID); err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = DefaultEntriesLimit
	case limit > MaxEntriesLimit:
		limit = MaxEntriesLimit
	}

	entries, err := s.ledger.ListByAccount(ctx, accountID, limit)
	if err != nil {
		s.logger.Error("failed to list ledger entries",
			"account_id", accountID,
			"error", err.Error(),
		)
		return nil, err
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	return entries, nil
}

// ownedAccount hides accounts of other businesses behind ErrAccountNotFound.
func (s *AccountServiceImpl) ownedAccount(ctx context.Context, accountID, callerBusinessID int64) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.IsNotFound(err) {
			s.logger.Warn("account not found",
				"account_id", accountID,
			)
			return nil, err
		}
		s.logger.Error("failed to get account",
			"account_id", accountID,
			"error", err.Error(),
		)
		return nil, err
	}

	if account.BusinessID != callerBusinessID {
		s.logger.Warn("account belongs to another business",
			"account_id", accountID,
			"business_id", callerBusinessID,
		)
		return nil, errors.ErrAccountNotFound
	}
	return account, nil
}
