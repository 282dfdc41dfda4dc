package errors

import (
	"errors"
	"fmt"
)

// Domain error type for the funds transfer application
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNegativeBalance = errors.New("balance cannot be negative")
	ErrAmountScale     = errors.New("amount has more than two decimal places")

	// ErrTransferFailed marks a system failure during a transfer. The caller
	// may retry with a fresh request.
	ErrTransferFailed = errors.New("transfer failed")
)

// RejectionKind identifies a business-rule or input failure of a transfer.
type RejectionKind string

const (
	KindMissingFields        RejectionKind = "MISSING_FIELDS"
	KindInvalidAmount        RejectionKind = "INVALID_AMOUNT"
	KindSenderNotFound       RejectionKind = "SENDER_NOT_FOUND"
	KindUnauthorized         RejectionKind = "UNAUTHORIZED"
	KindSenderInactive       RejectionKind = "SENDER_INACTIVE"
	KindWithdrawalNotAllowed RejectionKind = "WITHDRAWAL_NOT_ALLOWED"
	KindInsufficientBalance  RejectionKind = "INSUFFICIENT_BALANCE"
	KindDailyLimitExceeded   RejectionKind = "DAILY_LIMIT_EXCEEDED"
	KindBeneficiaryNotFound  RejectionKind = "BENEFICIARY_NOT_FOUND"
	KindBeneficiaryInactive  RejectionKind = "BENEFICIARY_INACTIVE"
	KindDepositNotAllowed    RejectionKind = "DEPOSIT_NOT_ALLOWED"
	KindSameAccount          RejectionKind = "SAME_ACCOUNT"
)

var rejectionMessages = map[RejectionKind]string{
	KindMissingFields:        "Missing required fields",
	KindInvalidAmount:        "please enter a valid amount",
	KindSenderNotFound:       "Account not found",
	KindUnauthorized:         "unauthorized transactions, account id is not correct",
	KindSenderInactive:       "your account is inactive",
	KindWithdrawalNotAllowed: "withdrawl is not allowed for your account",
	KindInsufficientBalance:  "insufficient balance to transfer",
	KindDailyLimitExceeded:   "daily withdrawl limit reached",
	KindBeneficiaryNotFound:  "Beneficiary Account not found",
	KindBeneficiaryInactive:  "Receiver's account is inactive",
	KindDepositNotAllowed:    "deposit is not allowed for beneficiary's account",
	KindSameAccount:          "source and beneficiary accounts cannot be the same",
}

// RejectionError is returned when a transfer request fails validation.
// It is never retryable without changing the input.
type RejectionError struct {
	Kind    RejectionKind
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("transfer rejected (%s): %s", e.Kind, e.Message)
}

func NewRejection(kind RejectionKind) error {
	return &RejectionError{
		Kind:    kind,
		Message: rejectionMessages[kind],
	}
}

// AsRejection returns the rejection carried by err, if any.
func AsRejection(err error) (*RejectionError, bool) {
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return rejection, true
	}
	return nil, false
}

func IsRejection(err error, kind RejectionKind) bool {
	rejection, ok := AsRejection(err)
	return ok && rejection.Kind == kind
}

type TransactionError struct {
	Operation string
	Cause     error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction error during '%s': %v", e.Operation, e.Cause)
}

func (e *TransactionError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrTransferFailed) match any TransactionError.
func (e *TransactionError) Is(target error) bool {
	return target == ErrTransferFailed
}

func NewTransactionError(operation string, cause error) error {
	return &TransactionError{
		Operation: operation,
		Cause:     cause,
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

func IsTransferFailed(err error) bool {
	return errors.Is(err, ErrTransferFailed)
}

// RetryableError wraps store failures that may succeed on a fresh attempt,
// such as lock timeouts or deadlock aborts.
type RetryableError struct {
	Cause error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable store error: %v", e.Cause)
}

func (e *RetryableError) Unwrap() error {
	return e.Cause
}

func IsRetryable(err error) bool {
	var retryable *RetryableError
	return errors.As(err, &retryable)
}
