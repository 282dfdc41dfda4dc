package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/riteshkumar/funds-transfer/internal/errors"
	"github.com/riteshkumar/funds-transfer/internal/metrics"
	"github.com/riteshkumar/funds-transfer/internal/models"
	"github.com/riteshkumar/funds-transfer/internal/repository"
)

type TransferExecutor interface {
	Execute(ctx context.Context, req *models.TransferRequest, callerBusinessID int64) (*models.TransferResult, error)
}

// ErrNotStarted is returned when the request context ends before the atomic
// unit begins. Nothing has been written.
var ErrNotStarted = stderrors.New("transfer not started")

type EngineConfig struct {
	// MaxConcurrent bounds the transfers holding a store connection at once.
	MaxConcurrent int64
	// UnitTimeout bounds one atomic unit once it has started.
	UnitTimeout time.Duration
}

type TransferEngine struct {
	uow         repository.UnitOfWork
	slots       *semaphore.Weighted
	unitTimeout time.Duration
	logger      *slog.Logger
}

func NewTransferEngine(uow repository.UnitOfWork, cfg EngineConfig, logger *slog.Logger) *TransferEngine {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.UnitTimeout <= 0 {
		cfg.UnitTimeout = 10 * time.Second
	}
	return &TransferEngine{
		uow:         uow,
		slots:       semaphore.NewWeighted(cfg.MaxConcurrent),
		unitTimeout: cfg.UnitTimeout,
		logger:      logger,
	}
}

// Execute validates the request and applies both balance updates and both
// ledger entries as one atomic unit. It returns a *errors.RejectionError when
// a check fails, a TransactionError (errors.IsTransferFailed) when the unit
// could not be committed, or ErrNotStarted when ctx ended first.
func (e *TransferEngine) Execute(ctx context.Context, req *models.TransferRequest, callerBusinessID int64) (*models.TransferResult, error) {
	start := time.Now()
	result, err := e.execute(ctx, req, callerBusinessID)

	outcome := outcomeOf(err)
	metrics.TransfersTotal.WithLabelValues(outcome).Inc()
	metrics.TransferDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if rejection, ok := errors.AsRejection(err); ok {
		metrics.TransferRejections.WithLabelValues(string(rejection.Kind)).Inc()
	}
	return result, err
}

func (e *TransferEngine) execute(ctx context.Context, req *models.TransferRequest, callerBusinessID int64) (*models.TransferResult, error) {
	if err := checkRequest(req); err != nil {
		e.logRejection(req, err)
		return nil, err
	}

	if err := e.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotStarted, err)
	}
	defer e.slots.Release(1)

	metrics.TransfersInflight.Inc()
	defer metrics.TransfersInflight.Dec()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotStarted, err)
	}

	// Past this point the unit runs to commit or rollback regardless of the caller.
	unitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.unitTimeout)
	defer cancel()

	transferID := uuid.New()
	var result *models.TransferResult
	err := e.uow.WithinTx(unitCtx, func(ctx context.Context, stores repository.Stores) error {
		var err error
		result, err = e.apply(ctx, stores, req, callerBusinessID, transferID)
		return err
	})
	if err != nil {
		if _, ok := errors.AsRejection(err); ok {
			e.logRejection(req, err)
			return nil, err
		}
		e.logger.Error("transfer rolled back",
			"transfer_id", transferID,
			"account_id", req.AccountID,
			"beneficiary_account_number", req.BeneficiaryAccountNumber,
			"amount", req.Amount.String(),
			"retryable", errors.IsRetryable(err),
			"error", err.Error(),
		)
		return nil, errors.NewTransactionError("transfer", err)
	}

	e.logger.Info("transfer committed",
		"transfer_id", transferID,
		"sender_account_id", result.Sender.AccountID,
		"receiver_account_id", result.Receiver.AccountID,
		"amount", result.Amount.String(),
	)
	return result, nil
}

// apply locks both accounts in ascending id order, validates against the
// locked rows and performs the four writes.
func (e *TransferEngine) apply(ctx context.Context, stores repository.Stores, req *models.TransferRequest, callerBusinessID int64, transferID uuid.UUID) (*models.TransferResult, error) {
	validator := NewTransferValidator(stores.Accounts, stores.Ledger)

	// Ownership never changes, so a caller that does not own the sender is
	// rejected before any row is locked.
	owned, err := stores.Accounts.GetByID(ctx, req.AccountID)
	switch {
	case errors.IsNotFound(err), err == nil && owned.BusinessID != callerBusinessID:
		if _, err := validator.Validate(ctx, req, callerBusinessID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("sender %d ownership changed", req.AccountID)
	case err != nil:
		return nil, fmt.Errorf("read sender: %w", err)
	}

	ids := []int64{req.AccountID}
	beneficiary, err := stores.Accounts.GetByNumber(ctx, req.BeneficiaryAccountNumber)
	switch {
	case err == nil:
		if beneficiary.ID != req.AccountID {
			ids = append(ids, beneficiary.ID)
		}
	case errors.IsNotFound(err):
		// rejected by the validator once the sender checks have run
	default:
		return nil, fmt.Errorf("resolve beneficiary: %w", err)
	}

	slices.Sort(ids)
	for _, id := range ids {
		if _, err := stores.Accounts.GetByIDForUpdate(ctx, id); err != nil && !errors.IsNotFound(err) {
			return nil, fmt.Errorf("lock account %d: %w", id, err)
		}
	}

	plan, err := validator.Validate(ctx, req, callerBusinessID)
	if err != nil {
		return nil, err
	}

	sender, receiver := plan.Sender, plan.Receiver
	if err := stores.Accounts.SetBalance(ctx, sender.ID, sender.AccountNumber, plan.SenderNewBalance); err != nil {
		return nil, fmt.Errorf("update sender balance: %w", err)
	}
	if err := stores.Accounts.SetBalance(ctx, receiver.ID, receiver.AccountNumber, plan.ReceiverNewBalance); err != nil {
		return nil, fmt.Errorf("update receiver balance: %w", err)
	}

	withdrawal := &models.LedgerEntry{
		TransferID: transferID,
		AccountID:  sender.ID,
		EntryType:  models.EntryWithdrawal,
		Amount:     plan.Amount,
	}
	if err := stores.Ledger.Append(ctx, withdrawal); err != nil {
		return nil, fmt.Errorf("append withdrawal entry: %w", err)
	}
	deposit := &models.LedgerEntry{
		TransferID: transferID,
		AccountID:  receiver.ID,
		EntryType:  models.EntryDeposit,
		Amount:     plan.Amount,
	}
	if err := stores.Ledger.Append(ctx, deposit); err != nil {
		return nil, fmt.Errorf("append deposit entry: %w", err)
	}

	return &models.TransferResult{
		TransferID: transferID,
		Amount:     plan.Amount,
		Sender: models.TransferLeg{
			AccountID:     sender.ID,
			AccountNumber: sender.AccountNumber,
			BalanceBefore: sender.Balance,
			Balance:       plan.SenderNewBalance,
			Entry:         withdrawal,
		},
		Receiver: models.TransferLeg{
			AccountID:     receiver.ID,
			AccountNumber: receiver.AccountNumber,
			BalanceBefore: receiver.Balance,
			Balance:       plan.ReceiverNewBalance,
			Entry:         deposit,
		},
	}, nil
}

func (e *TransferEngine) logRejection(req *models.TransferRequest, err error) {
	attrs := []any{"error", err.Error()}
	if req != nil {
		attrs = append(attrs,
			"account_id", req.AccountID,
			"beneficiary_account_number", req.BeneficiaryAccountNumber,
		)
		if req.Amount != nil {
			attrs = append(attrs, "amount", req.Amount.String())
		}
	}
	e.logger.Warn("transfer rejected", attrs...)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeCommitted
	case stderrors.Is(err, ErrNotStarted):
		return metrics.OutcomeCancelled
	case errors.IsTransferFailed(err):
		return metrics.OutcomeFailed
	default:
		return metrics.OutcomeRejected
	}
}
