package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docmarket/internal/catalog"
	"docmarket/internal/gateway"
	"docmarket/internal/http/middleware"
	"docmarket/internal/pricing"
	"docmarket/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError maps service and gateway sentinel errors to HTTP responses.
// Gateway error payloads are never forwarded to clients.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, service.ErrEmptyOrder):
		return writeError(c, fiber.StatusBadRequest, "EMPTY_ORDER", "order must contain at least one item")
	case errors.Is(err, service.ErrDocumentNotFound):
		return writeError(c, fiber.StatusBadRequest, "DOCUMENT_NOT_FOUND", "referenced document does not exist")
	case errors.Is(err, service.ErrDocumentNotOwned):
		return writeError(c, fiber.StatusBadRequest, "DOCUMENT_NOT_OWNED", "referenced document belongs to another user")
	case errors.Is(err, service.ErrDocumentInOrder):
		return writeError(c, fiber.StatusConflict, "DOCUMENT_IN_ORDER", "document is attached to an active order")
	case errors.Is(err, service.ErrInvalidRefundAmount):
		return writeError(c, fiber.StatusBadRequest, "INVALID_REFUND_AMOUNT", "refund amount exceeds order total")
	case errors.Is(err, service.ErrIDRequired):
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "id is required")
	case errors.Is(err, catalog.ErrUnknownDocumentType):
		return writeError(c, fiber.StatusBadRequest, "UNKNOWN_DOCUMENT_TYPE", "unknown document type")
	case errors.Is(err, catalog.ErrUnknownTier):
		return writeError(c, fiber.StatusBadRequest, "UNKNOWN_TIER", "unknown processing tier")
	case errors.Is(err, pricing.ErrInvalidQuantity):
		return writeError(c, fiber.StatusBadRequest, "INVALID_QUANTITY", "quantity must be a positive integer")
	case errors.Is(err, service.ErrInvalidStateTransition):
		return writeError(c, fiber.StatusConflict, "INVALID_STATE", "order state does not permit this operation")
	case errors.Is(err, service.ErrConflictingSettlement):
		return writeError(c, fiber.StatusConflict, "SETTLEMENT_CONFLICT", "order already settled with a different payment")
	case errors.Is(err, gateway.ErrInvalidSignature):
		return writeError(c, fiber.StatusBadRequest, "INVALID_SIGNATURE", "payment signature verification failed")
	case errors.Is(err, gateway.ErrTimeout):
		return writeError(c, fiber.StatusServiceUnavailable, "GATEWAY_UNAVAILABLE", "payment gateway unavailable, retry later")
	case errors.Is(err, gateway.ErrRejected):
		return writeError(c, fiber.StatusPaymentRequired, "PAYMENT_FAILED", "payment failed")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", "authentication required")
		case fiber.StatusForbidden:
			return writeError(c, status, "FORBIDDEN", "insufficient privileges")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
