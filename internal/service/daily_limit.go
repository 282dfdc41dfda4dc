package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/riteshkumar/funds-transfer/internal/repository"
)

type DailyLimitCalculator struct {
	ledger repository.LedgerReader
}

func NewDailyLimitCalculator(ledger repository.LedgerReader) *DailyLimitCalculator {
	return &DailyLimitCalculator{ledger: ledger}
}

// WithdrawnToday sums the account's WITHDRAWAL entries dated on or after the
// start of the current day on the store clock.
func (c *DailyLimitCalculator) WithdrawnToday(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	dayStart, err := c.ledger.CurrentDayStart(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("daily window: %w", err)
	}

	total, err := c.ledger.SumWithdrawalsSince(ctx, accountID, dayStart)
	if err != nil {
		return decimal.Zero, fmt.Errorf("withdrawn today: %w", err)
	}
	return total, nil
}
