package repository

import (
	"context"

	"docmarket/internal/model"
)

// OrderRepository defines data access for orders using SQL queries only.
// No business logic here — strictly persistence operations.
type OrderRepository interface {
	// Create inserts a new order row. The order number is assigned by the
	// database from a sequence; the returned order carries it.
	Create(ctx context.Context, o *model.Order) (*model.Order, error)

	// FindByID returns an order by its ID.
	FindByID(ctx context.Context, id string) (*model.Order, error)

	// FindByGatewayOrderID returns the order holding the given gateway
	// payment-intent reference.
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Order, error)

	// ListByUser returns a page of a user's orders, newest first.
	ListByUser(ctx context.Context, userID string, pq PageQuery) (*PageResult[model.Order], error)

	// SetGatewayOrderID records the payment-intent reference on a fresh order.
	SetGatewayOrderID(ctx context.Context, id, gatewayOrderID string) error

	// UpdateStatusIfCurrent persists o's status and settlement fields only if
	// the stored row still has status `from`. It reports whether a row was
	// updated; false means a concurrent writer got there first, and the
	// caller must re-read rather than assume its transition happened.
	UpdateStatusIfCurrent(ctx context.Context, o *model.Order, from model.OrderStatus) (bool, error)

	// FindPaidWithUnpaidDocuments returns paid orders that still have
	// documents not marked paid (a torn cascade from a crashed settlement).
	FindPaidWithUnpaidDocuments(ctx context.Context, limit int) ([]model.Order, error)
}
