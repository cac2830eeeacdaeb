package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"docmarket/internal/model"
	"docmarket/internal/repository"
)

// OrderPostgres is a PostgreSQL implementation of repository.OrderRepository.
// It uses database/sql with parameterized queries and contains no business logic.
// Line items are embedded as JSONB; they are not independently addressable.
type OrderPostgres struct {
	db DBTX
}

// NewOrderPostgres creates a new OrderPostgres repository.
func NewOrderPostgres(db DBTX) *OrderPostgres {
	return &OrderPostgres{db: db}
}

var _ repository.OrderRepository = (*OrderPostgres)(nil)

const orderColumns = `
	id, order_number, user_id, items, subtotal, bulk_discount, tax, total,
	currency, status, gateway_order_id, gateway_payment_id, gateway_refund_id,
	refund_amount, failure_reason, paid_at, failed_at, refunded_at,
	created_at, updated_at
`

// Create inserts a new order row. order_number comes from the database
// sequence default so it is unique without coordination.
func (r *OrderPostgres) Create(ctx context.Context, o *model.Order) (*model.Order, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("marshal line items: %w", err)
	}

	const q = `
		INSERT INTO orders (
			id, user_id, items, subtotal, bulk_discount, tax, total,
			currency, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING ` + orderColumns
	row := r.db.QueryRowContext(ctx, q,
		o.ID,
		o.UserID,
		items,
		o.Subtotal,
		o.BulkDiscount,
		o.Tax,
		o.Total,
		o.Currency,
		o.Status,
		o.CreatedAt,
	)
	return scanOrder(row)
}

// FindByID fetches a single order by its ID.
func (r *OrderPostgres) FindByID(ctx context.Context, id string) (*model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(r.db.QueryRowContext(ctx, q, id))
}

// FindByGatewayOrderID fetches the order carrying the given intent reference.
func (r *OrderPostgres) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE gateway_order_id = $1`
	return scanOrder(r.db.QueryRowContext(ctx, q, gatewayOrderID))
}

// ListByUser returns a user's orders using LIMIT/OFFSET pagination and a total count.
func (r *OrderPostgres) ListByUser(ctx context.Context, userID string, pq repository.PageQuery) (*repository.PageResult[model.Order], error) {
	const qCount = `SELECT COUNT(*) FROM orders WHERE user_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, userID).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, userID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Order, 0)
	for rows.Next() {
		o, err := scanOrderRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Order]{Items: items, Total: total}, nil
}

// SetGatewayOrderID records the payment-intent id issued for a fresh order.
func (r *OrderPostgres) SetGatewayOrderID(ctx context.Context, id, gatewayOrderID string) error {
	const q = `UPDATE orders SET gateway_order_id = $2, updated_at = now() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, gatewayOrderID)
	return err
}

// UpdateStatusIfCurrent writes the order's status and settlement fields
// conditionally on the stored status still being `from`. The WHERE clause is
// what serializes racing settlement attempts at the database.
func (r *OrderPostgres) UpdateStatusIfCurrent(ctx context.Context, o *model.Order, from model.OrderStatus) (bool, error) {
	const q = `
		UPDATE orders SET
			status = $3,
			gateway_payment_id = $4,
			gateway_refund_id = $5,
			refund_amount = $6,
			failure_reason = $7,
			paid_at = $8,
			failed_at = $9,
			refunded_at = $10,
			updated_at = now()
		WHERE id = $1 AND status = $2
	`
	res, err := r.db.ExecContext(ctx, q,
		o.ID,
		from,
		o.Status,
		nullString(o.GatewayPaymentID),
		nullString(o.GatewayRefundID),
		o.RefundAmount,
		nullString(o.FailureReason),
		o.PaidAt,
		o.FailedAt,
		o.RefundedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindPaidWithUnpaidDocuments returns paid orders with at least one attached
// document whose payment status lags behind. The documents check lives in an
// EXISTS subquery so the outer select list resolves against orders alone;
// both tables carry id, user_id and created_at columns.
const findPaidWithUnpaidDocumentsQuery = `
	SELECT ` + orderColumns + `
	FROM orders
	WHERE status = 'paid'
	  AND EXISTS (
		SELECT 1 FROM documents d
		WHERE d.order_id = orders.id AND d.payment_status <> 'paid'
	  )
	ORDER BY created_at
	LIMIT $1
`

func (r *OrderPostgres) FindPaidWithUnpaidDocuments(ctx context.Context, limit int) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx, findPaidWithUnpaidDocumentsQuery, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		o, err := scanOrderRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row *sql.Row) (*model.Order, error) {
	return scanOrderRows(row)
}

func scanOrderRows(row rowScanner) (*model.Order, error) {
	var (
		o        model.Order
		items    []byte
		payID    sql.NullString
		intentID sql.NullString
		refundID sql.NullString
		reason   sql.NullString
		paidAt   sql.NullTime
		failedAt sql.NullTime
		refAt    sql.NullTime
	)
	if err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&items,
		&o.Subtotal,
		&o.BulkDiscount,
		&o.Tax,
		&o.Total,
		&o.Currency,
		&o.Status,
		&intentID,
		&payID,
		&refundID,
		&o.RefundAmount,
		&reason,
		&paidAt,
		&failedAt,
		&refAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal line items: %w", err)
		}
	}
	o.GatewayOrderID = intentID.String
	o.GatewayPaymentID = payID.String
	o.GatewayRefundID = refundID.String
	o.FailureReason = reason.String
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}
	if failedAt.Valid {
		o.FailedAt = &failedAt.Time
	}
	if refAt.Valid {
		o.RefundedAt = &refAt.Time
	}
	return &o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
