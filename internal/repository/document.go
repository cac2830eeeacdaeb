package repository

import (
	"context"

	"docmarket/internal/model"
)

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here — strictly persistence operations.
type DocumentRepository interface {
	// Create inserts a new document record and returns the stored row.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// FindByIDs returns the documents matching the given ids. Missing ids are
	// simply absent from the result; the caller decides whether that matters.
	FindByIDs(ctx context.Context, ids []string) ([]model.Document, error)

	// ListByUser returns a paginated list of a user's documents.
	ListByUser(ctx context.Context, userID string, pq PageQuery) (*PageResult[model.Document], error)

	// AttachToOrder sets the order back-reference on the given documents.
	AttachToOrder(ctx context.Context, ids []string, orderID string) error

	// UpdatePaymentStatusByOrder cascades a payment status to every document
	// referencing the order. It touches no other document field.
	UpdatePaymentStatusByOrder(ctx context.Context, orderID string, status model.PaymentStatus) error

	// Delete removes a document by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}
