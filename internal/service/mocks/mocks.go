// Package mocks holds testify mocks of the service interfaces used by handlers.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/riteshkumar/funds-transfer/internal/models"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

type MockTransferExecutor struct {
	mock.Mock
}

func NewMockTransferExecutor(t testingT) *MockTransferExecutor {
	m := &MockTransferExecutor{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTransferExecutor) Execute(ctx context.Context, req *models.TransferRequest, callerBusinessID int64) (*models.TransferResult, error) {
	args := m.Called(ctx, req, callerBusinessID)
	result, _ := args.Get(0).(*models.TransferResult)
	return result, args.Error(1)
}

type MockAccountService struct {
	mock.Mock
}

func NewMockAccountService(t testingT) *MockAccountService {
	m := &MockAccountService{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAccountService) GetBalance(ctx context.Context, accountID, callerBusinessID int64) (*models.BalanceResponse, error) {
	args := m.Called(ctx, accountID, callerBusinessID)
	balance, _ := args.Get(0).(*models.BalanceResponse)
	return balance, args.Error(1)
}

func (m *MockAccountService) ListEntries(ctx context.Context, accountID, callerBusinessID int64, limit int) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, accountID, callerBusinessID, limit)
	entries, _ := args.Get(0).([]*models.LedgerEntry)
	return entries, args.Error(1)
}
