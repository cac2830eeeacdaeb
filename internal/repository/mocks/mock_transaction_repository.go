package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docmarket/internal/model"
)

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListByOrder(ctx context.Context, orderID string) ([]model.Transaction, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByOrderAndPaymentID(ctx context.Context, orderID, gatewayPaymentID string) (*model.Transaction, error) {
	args := m.Called(ctx, orderID, gatewayPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}
