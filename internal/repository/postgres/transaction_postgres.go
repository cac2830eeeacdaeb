package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"docmarket/internal/model"
	"docmarket/internal/repository"
)

// TransactionPostgres is the PostgreSQL ledger store. INSERT and SELECT only;
// ledger rows are immutable once written.
type TransactionPostgres struct {
	db DBTX
}

func NewTransactionPostgres(db DBTX) *TransactionPostgres {
	return &TransactionPostgres{db: db}
}

var _ repository.TransactionRepository = (*TransactionPostgres)(nil)

const transactionColumns = `
	id, user_id, order_id, type, amount, currency, status,
	gateway_order_id, gateway_payment_id, gateway_refund_id,
	description, metadata, processed_at, created_at
`

// Create appends a ledger row and returns the stored record.
func (r *TransactionPostgres) Create(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	const q = `
		INSERT INTO transactions (
			id, user_id, order_id, type, amount, currency, status,
			gateway_order_id, gateway_payment_id, gateway_refund_id,
			description, metadata, processed_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + transactionColumns
	row := r.db.QueryRowContext(ctx, q,
		t.ID,
		t.UserID,
		t.OrderID,
		t.Type,
		t.Amount,
		t.Currency,
		t.Status,
		nullString(t.GatewayOrderID),
		nullString(t.GatewayPaymentID),
		nullString(t.GatewayRefundID),
		t.Description,
		meta,
		t.ProcessedAt,
		t.CreatedAt,
	)
	return scanTransaction(row)
}

// ListByOrder returns an order's ledger rows, oldest first.
func (r *TransactionPostgres) ListByOrder(ctx context.Context, orderID string) ([]model.Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions WHERE order_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Transaction, 0)
	for rows.Next() {
		t, err := scanTransactionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// FindByOrderAndPaymentID returns the row recorded for an order and payment reference.
func (r *TransactionPostgres) FindByOrderAndPaymentID(ctx context.Context, orderID, gatewayPaymentID string) (*model.Transaction, error) {
	const q = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE order_id = $1 AND gateway_payment_id = $2
		ORDER BY created_at
		LIMIT 1
	`
	return scanTransaction(r.db.QueryRowContext(ctx, q, orderID, gatewayPaymentID))
}

func scanTransaction(row *sql.Row) (*model.Transaction, error) {
	return scanTransactionRows(row)
}

func scanTransactionRows(row rowScanner) (*model.Transaction, error) {
	var (
		t        model.Transaction
		meta     []byte
		intentID sql.NullString
		payID    sql.NullString
		refundID sql.NullString
	)
	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.OrderID,
		&t.Type,
		&t.Amount,
		&t.Currency,
		&t.Status,
		&intentID,
		&payID,
		&refundID,
		&t.Description,
		&meta,
		&t.ProcessedAt,
		&t.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	t.GatewayOrderID = intentID.String
	t.GatewayPaymentID = payID.String
	t.GatewayRefundID = refundID.String
	return &t, nil
}
