package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docmarket/internal/model"
	"docmarket/internal/repository"
)

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, o *model.Order) (*model.Order, error) {
	args := m.Called(ctx, o)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id string) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Order, error) {
	args := m.Called(ctx, gatewayOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userID string, pq repository.PageQuery) (*repository.PageResult[model.Order], error) {
	args := m.Called(ctx, userID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Order]), args.Error(1)
}

func (m *MockOrderRepository) SetGatewayOrderID(ctx context.Context, id, gatewayOrderID string) error {
	args := m.Called(ctx, id, gatewayOrderID)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateStatusIfCurrent(ctx context.Context, o *model.Order, from model.OrderStatus) (bool, error) {
	args := m.Called(ctx, o, from)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) FindPaidWithUnpaidDocuments(ctx context.Context, limit int) ([]model.Order, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}
