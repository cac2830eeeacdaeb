package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Webhook event kinds the reconciliation service understands. Anything else
// is acknowledged and ignored at the boundary.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

var ErrUnknownEvent = errors.New("unknown gateway event")

// PaymentCaptured reports a completed client-side payment.
type PaymentCaptured struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	Amount           int64
}

// PaymentFailed reports an explicit gateway rejection of a payment attempt.
type PaymentFailed struct {
	GatewayOrderID string
	Reason         string
}

// Event is the tagged union of known gateway webhook payloads. Exactly one
// field is non-nil after a successful ParseEvent.
type Event struct {
	Kind     string
	Captured *PaymentCaptured
	Failed   *PaymentFailed
}

// rawEvent mirrors the gateway's wire shape before narrowing. The payload is
// dynamic JSON on the wire; it never crosses this package boundary untyped.
type rawEvent struct {
	Event   string `json:"event"`
	Payload struct {
		OrderID   string `json:"order_id"`
		PaymentID string `json:"payment_id"`
		Signature string `json:"signature"`
		Amount    int64  `json:"amount"`
		Reason    string `json:"reason"`
	} `json:"payload"`
}

// ParseEvent validates and narrows a webhook body into a typed Event.
func ParseEvent(body []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}

	switch raw.Event {
	case EventPaymentCaptured:
		if raw.Payload.OrderID == "" || raw.Payload.PaymentID == "" || raw.Payload.Signature == "" {
			return nil, fmt.Errorf("%s: order_id, payment_id and signature are required", raw.Event)
		}
		return &Event{
			Kind: EventPaymentCaptured,
			Captured: &PaymentCaptured{
				GatewayOrderID:   raw.Payload.OrderID,
				GatewayPaymentID: raw.Payload.PaymentID,
				Signature:        raw.Payload.Signature,
				Amount:           raw.Payload.Amount,
			},
		}, nil
	case EventPaymentFailed:
		if raw.Payload.OrderID == "" {
			return nil, fmt.Errorf("%s: order_id is required", raw.Event)
		}
		return &Event{
			Kind: EventPaymentFailed,
			Failed: &PaymentFailed{
				GatewayOrderID: raw.Payload.OrderID,
				Reason:         raw.Payload.Reason,
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, raw.Event)
	}
}
