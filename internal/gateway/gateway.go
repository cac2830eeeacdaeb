package gateway

import (
	"context"
	"errors"
)

var (
	// ErrTimeout covers network-level failures where the remote outcome is
	// unknown; the operation is safe to retry under the same idempotency key.
	ErrTimeout = errors.New("gateway timeout")
	// ErrRejected is an explicit refusal from the gateway; retrying the same
	// request will not succeed.
	ErrRejected = errors.New("gateway rejected request")
	// ErrAmountMismatch means the gateway echoed back a different amount or
	// currency than requested; the intent must not be trusted.
	ErrAmountMismatch = errors.New("gateway echoed mismatched amount")
	// ErrInvalidSignature means a callback signature failed verification.
	ErrInvalidSignature = errors.New("invalid payment signature")
)

// Intent is a remote payment-provider record representing an authorized
// charge amount awaiting completion. Amount is integer minor units.
type Intent struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// RefundResult is the gateway's record of an issued refund.
type RefundResult struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// Gateway wraps the external payment provider. Both operations are network
// calls: they may be slow, may time out, and must never be assumed atomic
// with any local database write that follows them.
type Gateway interface {
	// CreateIntent registers a charge for amount minor units of currency.
	// receipt is a caller-chosen reference attached to the remote intent so
	// it can be traced back to the originating order. Implementations must
	// verify the gateway echoes the exact amount and currency back.
	CreateIntent(ctx context.Context, amount int64, currency, receipt string) (*Intent, error)

	// Refund returns amount minor units of a prior payment. A refund that
	// fails locally (network error) may still have succeeded remotely.
	Refund(ctx context.Context, paymentID string, amount int64, reason string) (*RefundResult, error)
}
