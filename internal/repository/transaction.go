package repository

import (
	"context"

	"docmarket/internal/model"
)

// TransactionRepository is the append-only ledger store. There is no update
// or delete: corrections are new rows.
type TransactionRepository interface {
	// Create appends a ledger row.
	Create(ctx context.Context, t *model.Transaction) (*model.Transaction, error)

	// ListByOrder returns all ledger rows for an order, oldest first.
	ListByOrder(ctx context.Context, orderID string) ([]model.Transaction, error)

	// FindByOrderAndPaymentID returns the ledger row recorded for a given
	// order and gateway payment reference, or sql.ErrNoRows.
	FindByOrderAndPaymentID(ctx context.Context, orderID, gatewayPaymentID string) (*model.Transaction, error)
}
