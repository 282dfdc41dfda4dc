package service

import (
	"context"

	"github.com/riteshkumar/funds-transfer/internal/errors"
	"github.com/riteshkumar/funds-transfer/internal/models"
	"github.com/riteshkumar/funds-transfer/internal/repository"
)

// TransferValidator runs the ordered transfer checks. The first failing check
// decides the rejection kind. It never writes to the stores it reads from.
type TransferValidator struct {
	accounts repository.AccountReader
	limits   *DailyLimitCalculator
}

func NewTransferValidator(accounts repository.AccountReader, ledger repository.LedgerReader) *TransferValidator {
	return &TransferValidator{
		accounts: accounts,
		limits:   NewDailyLimitCalculator(ledger),
	}
}

// Validate returns a plan with both accounts and their post-transfer balances,
// a *errors.RejectionError, or a store error.
func (v *TransferValidator) Validate(ctx context.Context, req *models.TransferRequest, callerBusinessID int64) (*models.TransferPlan, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	amount := *req.Amount

	sender, err := v.accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewRejection(errors.KindSenderNotFound)
		}
		return nil, err
	}
	if sender.BusinessID != callerBusinessID {
		return nil, errors.NewRejection(errors.KindUnauthorized)
	}
	if !sender.IsActive() {
		return nil, errors.NewRejection(errors.KindSenderInactive)
	}
	if sender.TransactionAllowed == models.AllowCredit {
		return nil, errors.NewRejection(errors.KindWithdrawalNotAllowed)
	}
	if sender.Balance.Sub(amount).IsNegative() {
		return nil, errors.NewRejection(errors.KindInsufficientBalance)
	}

	withdrawn, err := v.limits.WithdrawnToday(ctx, sender.ID)
	if err != nil {
		return nil, err
	}
	if withdrawn.Add(amount).GreaterThan(sender.DailyWithdrawalLimit) {
		return nil, errors.NewRejection(errors.KindDailyLimitExceeded)
	}

	receiver, err := v.accounts.GetByNumber(ctx, req.BeneficiaryAccountNumber)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewRejection(errors.KindBeneficiaryNotFound)
		}
		return nil, err
	}
	if !receiver.IsActive() {
		return nil, errors.NewRejection(errors.KindBeneficiaryInactive)
	}
	if receiver.TransactionAllowed == models.AllowDebit {
		return nil, errors.NewRejection(errors.KindDepositNotAllowed)
	}
	if receiver.ID == sender.ID {
		return nil, errors.NewRejection(errors.KindSameAccount)
	}

	return &models.TransferPlan{
		Sender:             sender,
		Receiver:           receiver,
		Amount:             amount,
		SenderNewBalance:   sender.Balance.Sub(amount),
		ReceiverNewBalance: receiver.Balance.Add(amount),
	}, nil
}

// checkRequest covers the checks that need no store access.
func checkRequest(req *models.TransferRequest) error {
	if req == nil || req.AccountID == 0 || req.BeneficiaryAccountNumber == "" ||
		req.Amount == nil || req.Amount.IsZero() {
		return errors.NewRejection(errors.KindMissingFields)
	}
	if !req.Amount.IsPositive() || !models.HasAmountScale(*req.Amount) {
		return errors.NewRejection(errors.KindInvalidAmount)
	}
	return nil
}
