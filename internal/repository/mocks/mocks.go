// Package mocks holds testify mocks of the repository read interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/riteshkumar/funds-transfer/internal/models"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

type MockAccountReader struct {
	mock.Mock
}

func NewMockAccountReader(t testingT) *MockAccountReader {
	m := &MockAccountReader{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAccountReader) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	args := m.Called(ctx, id)
	account, _ := args.Get(0).(*models.Account)
	return account, args.Error(1)
}

func (m *MockAccountReader) GetByNumber(ctx context.Context, number string) (*models.Account, error) {
	args := m.Called(ctx, number)
	account, _ := args.Get(0).(*models.Account)
	return account, args.Error(1)
}

type MockLedgerReader struct {
	mock.Mock
}

func NewMockLedgerReader(t testingT) *MockLedgerReader {
	m := &MockLedgerReader{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockLedgerReader) SumWithdrawalsSince(ctx context.Context, accountID int64, since time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, accountID, since)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerReader) CurrentDayStart(ctx context.Context) (time.Time, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockLedgerReader) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, accountID, limit)
	entries, _ := args.Get(0).([]*models.LedgerEntry)
	return entries, args.Error(1)
}
