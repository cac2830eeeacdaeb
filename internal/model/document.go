package model

import "time"

// PaymentStatus tracks how far a document has progressed through checkout.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Document represents an uploaded file awaiting processing.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
type Document struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	DocumentTypeID string        `json:"document_type_id"`
	Filename       string        `json:"filename"`
	StoragePath    string        `json:"storage_path"`
	Size           int64         `json:"size"`
	ContentType    string        `json:"content_type"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	// OrderID is a weak back-reference set when the document is included
	// in a checkout; the order does not own the document lifecycle.
	OrderID         string    `json:"order_id,omitempty"`
	AdminDownloaded bool      `json:"admin_downloaded"`
	SignedPath      string    `json:"signed_path,omitempty"`
	UDIN            string    `json:"udin,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
