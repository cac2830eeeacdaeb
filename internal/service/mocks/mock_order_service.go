package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docmarket/internal/model"
	"docmarket/internal/pricing"
	"docmarket/internal/service"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Quote(items []pricing.Item) (*pricing.Breakdown, error) {
	args := m.Called(items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.Breakdown), args.Error(1)
}

func (m *MockOrderService) CreateOrder(ctx context.Context, userID string, items []pricing.Item) (*service.CreateOrderResult, error) {
	args := m.Called(ctx, userID, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CreateOrderResult), args.Error(1)
}

func (m *MockOrderService) SettlePayment(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) (*service.SettlementResult, error) {
	args := m.Called(ctx, gatewayOrderID, gatewayPaymentID, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SettlementResult), args.Error(1)
}

func (m *MockOrderService) FailPayment(ctx context.Context, gatewayOrderID, reason string) (*service.SettlementResult, error) {
	args := m.Called(ctx, gatewayOrderID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SettlementResult), args.Error(1)
}

func (m *MockOrderService) CancelOrder(ctx context.Context, userID, orderID string) (*model.Order, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) RefundOrder(ctx context.Context, orderID string, amount int64, reason string) (*service.RefundOrderResult, error) {
	args := m.Called(ctx, orderID, amount, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RefundOrderResult), args.Error(1)
}

func (m *MockOrderService) Get(ctx context.Context, userID, orderID string) (*model.Order, []model.Transaction, error) {
	args := m.Called(ctx, userID, orderID)
	var order *model.Order
	if args.Get(0) != nil {
		order = args.Get(0).(*model.Order)
	}
	var txs []model.Transaction
	if args.Get(1) != nil {
		txs = args.Get(1).([]model.Transaction)
	}
	return order, txs, args.Error(2)
}

func (m *MockOrderService) List(ctx context.Context, userID string, limit, offset int) (*service.OrderListResult, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.OrderListResult), args.Error(1)
}

func (m *MockOrderService) ReapplyDocumentCascades(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
