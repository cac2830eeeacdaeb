package model

import "time"

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionTypePayment TransactionType = "payment"
	TransactionTypeRefund  TransactionType = "refund"
	TransactionTypeCredit  TransactionType = "credit"
	TransactionTypeDebit   TransactionType = "debit"
)

// TransactionStatus is the outcome recorded for a ledger entry.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Transaction is one append-only ledger row. Rows are never edited after
// creation; corrections are new rows (a refund is a new entry, not an edit
// of the original payment). Amounts are signed integer minor units: payments
// positive, refunds negative.
type Transaction struct {
	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	OrderID          string            `json:"order_id"`
	Type             TransactionType   `json:"type"`
	Amount           int64             `json:"amount_minor"`
	Currency         string            `json:"currency"`
	Status           TransactionStatus `json:"status"`
	GatewayOrderID   string            `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string            `json:"gateway_payment_id,omitempty"`
	GatewayRefundID  string            `json:"gateway_refund_id,omitempty"`
	Description      string            `json:"description"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	ProcessedAt      time.Time         `json:"processed_at"`
	CreatedAt        time.Time         `json:"created_at"`
}
