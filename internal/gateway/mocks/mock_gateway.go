package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docmarket/internal/gateway"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateIntent(ctx context.Context, amount int64, currency, receipt string) (*gateway.Intent, error) {
	args := m.Called(ctx, amount, currency, receipt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Intent), args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, paymentID string, amount int64, reason string) (*gateway.RefundResult, error) {
	args := m.Called(ctx, paymentID, amount, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RefundResult), args.Error(1)
}
