package repository

import (
	stderrors "errors"

	"github.com/lib/pq"

	"github.com/riteshkumar/funds-transfer/internal/errors"
)

// PostgreSQL error codes that leave the store consistent and may succeed
// on a fresh attempt.
const (
	codeLockNotAvailable     = "55P03"
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
	codeQueryCanceled        = "57014"
	codeCheckViolation       = "23514"
)

// classify marks retryable driver errors so callers can tell them apart
// from permanent failures. Other errors are returned unchanged.
func classify(err error) error {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure, codeQueryCanceled:
		return &errors.RetryableError{Cause: err}
	case codeCheckViolation:
		if pqErr.Constraint == "accounts_balance_non_negative" {
			return errors.ErrNegativeBalance
		}
	}
	return err
}
