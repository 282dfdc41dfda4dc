package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ActivationStatus string

const (
	ActivationActive   ActivationStatus = "ACTIVE"
	ActivationInactive ActivationStatus = "INACTIVE"
)

// TransactionAllowed restricts which legs an account may take part in.
// CREDIT accounts cannot originate withdrawals and DEBIT accounts cannot
// receive deposits.
type TransactionAllowed string

const (
	AllowCredit TransactionAllowed = "CREDIT"
	AllowDebit  TransactionAllowed = "DEBIT"
	AllowBoth   TransactionAllowed = "BOTH"
)

type EntryType string

const (
	EntryWithdrawal EntryType = "WITHDRAWAL"
	EntryDeposit    EntryType = "DEPOSIT"
)

// AmountScale is the number of decimal places balances and ledger amounts
// are stored with.
const AmountScale = 2

// HasAmountScale reports whether d fits in AmountScale decimal places.
func HasAmountScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountScale))
}

// Defaults applied by account opening.
var (
	DefaultDailyWithdrawalLimit = decimal.RequireFromString("100000.00")
	DefaultBalance              = decimal.Zero
)

type Account struct {
	ID                   int64              `json:"id"`
	BusinessID           int64              `json:"business_id"`
	AccountNumber        string             `json:"account_number"`
	IFSCCode             string             `json:"ifsc_code"`
	ActivationStatus     ActivationStatus   `json:"activation_status"`
	TransactionAllowed   TransactionAllowed `json:"transaction_allowed"`
	Balance              decimal.Decimal    `json:"balance"`
	DailyWithdrawalLimit decimal.Decimal    `json:"daily_withdrawal_limit"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

func (a *Account) IsActive() bool {
	return a.ActivationStatus == ActivationActive
}

// LedgerEntry is one settled leg of a transfer. Entries are append-only.
type LedgerEntry struct {
	ID         int64           `json:"id"`
	TransferID uuid.UUID       `json:"transfer_id"`
	AccountID  int64           `json:"account_id"`
	EntryType  EntryType       `json:"entry_type"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TransferRequest is the caller input for a fund transfer. A nil or zero
// Amount counts as missing.
type TransferRequest struct {
	AccountID                int64            `json:"account_id"`
	Amount                   *decimal.Decimal `json:"amount"`
	BeneficiaryAccountNumber string           `json:"beneficiary_account_number"`
}

// TransferPlan is produced by a successful validation pass.
type TransferPlan struct {
	Sender             *Account
	Receiver           *Account
	Amount             decimal.Decimal
	SenderNewBalance   decimal.Decimal
	ReceiverNewBalance decimal.Decimal
}

// TransferLeg describes one side of a committed transfer.
type TransferLeg struct {
	AccountID     int64           `json:"account_id"`
	AccountNumber string          `json:"account_number"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	Balance       decimal.Decimal `json:"balance"`
	Entry         *LedgerEntry    `json:"entry"`
}

type TransferResult struct {
	TransferID uuid.UUID       `json:"transfer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Sender     TransferLeg     `json:"sender"`
	Receiver   TransferLeg     `json:"receiver"`
}

type BalanceResponse struct {
	AccountID     int64           `json:"account_id"`
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
