package model

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

// orderTransitions is the exhaustive set of legal status transitions.
// Anything not listed here is invalid and must be rejected, never coerced.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusRefunded},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderLineItem is one priced entry of an order. Unit and line amounts are
// resolved from the catalog at order creation and frozen; they are never
// re-derived from live catalog prices afterwards.
type OrderLineItem struct {
	DocumentID     string `json:"document_id"`
	DocumentTypeID string `json:"document_type_id"`
	Tier           string `json:"tier"`
	Quantity       int    `json:"quantity"`
	UnitAmount     int64  `json:"unit_amount_minor"`
	LineAmount     int64  `json:"line_amount_minor"`
}

// Order is a user's checkout request with its frozen cost breakdown.
// All monetary amounts are integer minor units (e.g. paise for INR).
type Order struct {
	ID           string          `json:"id"`
	OrderNumber  string          `json:"order_number"`
	UserID       string          `json:"user_id"`
	Items        []OrderLineItem `json:"items"`
	Subtotal     int64           `json:"subtotal_minor"`
	BulkDiscount int64           `json:"bulk_discount_minor"`
	Tax          int64           `json:"tax_minor"`
	Total        int64           `json:"total_minor"`
	Currency     string          `json:"currency"`
	Status       OrderStatus     `json:"status"`
	// GatewayOrderID is the payment intent reference issued by the gateway
	// at creation time. GatewayPaymentID is set only after a verified
	// settlement; GatewayRefundID only after a successful refund.
	GatewayOrderID   string     `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string     `json:"gateway_payment_id,omitempty"`
	GatewayRefundID  string     `json:"gateway_refund_id,omitempty"`
	RefundAmount     int64      `json:"refund_amount_minor,omitempty"`
	FailureReason    string     `json:"failure_reason,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	FailedAt         *time.Time `json:"failed_at,omitempty"`
	RefundedAt       *time.Time `json:"refunded_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// DocumentIDs returns the distinct document ids referenced by the order's
// line items, skipping placeholder (empty) references.
func (o *Order) DocumentIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		if it.DocumentID == "" {
			continue
		}
		if _, ok := seen[it.DocumentID]; ok {
			continue
		}
		seen[it.DocumentID] = struct{}{}
		ids = append(ids, it.DocumentID)
	}
	return ids
}
