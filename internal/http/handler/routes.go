package handler

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docmarket/internal/catalog"
	"docmarket/internal/gateway"
	"docmarket/internal/http/middleware"
	"docmarket/internal/pricing"
	"docmarket/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay free of business logic: parse, delegate, translate errors.
func RegisterRoutes(app *fiber.App, db *sql.DB, cat *catalog.Catalog, docSvc service.DocumentService, orderSvc service.OrderService, webhookSecret string) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", Liveness())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", swaggerUI())

	// Catalog is public reference data.
	app.Get("/catalog/document-types", ListDocumentTypes(cat))
	app.Get("/catalog/tiers", ListTiers(cat))

	// Gateway webhooks authenticate with a body signature, not a user.
	app.Post("/payments/webhook", PaymentWebhook(orderSvc, webhookSecret))

	auth := app.Group("", middleware.TrustedIdentity())

	auth.Post("/pricing/quote", Quote(orderSvc))

	auth.Get("/documents", ListDocuments(docSvc))
	auth.Post("/documents", UploadDocument(docSvc))
	auth.Get("/documents/:id", GetDocument(docSvc))
	auth.Delete("/documents/:id", DeleteDocument(docSvc))

	auth.Post("/orders", CreateOrder(orderSvc))
	auth.Get("/orders", ListOrders(orderSvc))
	auth.Get("/orders/:id", GetOrder(orderSvc))
	auth.Post("/orders/:id/cancel", CancelOrder(orderSvc))
	auth.Post("/orders/:id/refund", middleware.RequireAdmin(), RefundOrder(orderSvc))

	auth.Post("/payments/verify", VerifyPayment(orderSvc))
}

// HealthCheck checks DB connectivity only.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// Liveness is a simple liveness probe.
func Liveness() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// ListDocumentTypes exposes the deploy-time document type catalog.
func ListDocumentTypes(cat *catalog.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"data": cat.DocumentTypes()})
	}
}

// ListTiers exposes the pricing tiers.
func ListTiers(cat *catalog.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"data": cat.Tiers()})
	}
}

type quoteRequest struct {
	Items []pricing.Item `json:"items"`
}

// Quote prices an item list without creating anything. The response is
// advisory; order creation recomputes the authoritative total server-side.
func Quote(orderSvc service.OrderService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req quoteRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		}
		b, err := orderSvc.Quote(req.Items)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(b)
	}
}

type createOrderRequest struct {
	Items []pricing.Item `json:"items"`
}

// CreateOrder finalizes checkout for the authenticated user.
func CreateOrder(orderSvc service.OrderService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createOrderRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		}
		res, err := orderSvc.CreateOrder(c.UserContext(), middleware.UserID(c), req.Items)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// ListOrders returns the authenticated user's orders with limit & offset.
func ListOrders(orderSvc service.OrderService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}
		res, err := orderSvc.List(c.UserContext(), middleware.UserID(c), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// GetOrder returns one order with its ledger entries.
func GetOrder(orderSvc service.OrderService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		order, txs, err := orderSvc.Get(c.UserContext(), middleware.UserID(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"order": order, "transactions": txs})
	}
}

// CancelOrder abandons a pending order.
func CancelOrder(orderSvc service.OrderService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		order, err := orderSvc.CancelOrder(c.UserContext(), middleware.UserID(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(order)
	}
}

type refundRequest struct {
	Amount int64  `json:"amount_minor"`
	Reason string `json:"reason"`
}

// RefundOrder issues a gateway refund for a paid order. Admin only.
// A zero amount refunds the full order total.
func RefundOrder(orderSvc service.OrderService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var req refundRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		}
		res, err := orderSvc.RefundOrder(c.UserContext(), id, req.Amount, req.Reason)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

type verifyPaymentRequest struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
}

// VerifyPayment settles an order from the client-side payment callback.
func VerifyPayment(orderSvc service.OrderService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req verifyPaymentRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		}
		if req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.Signature == "" {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "gateway_order_id, gateway_payment_id and signature are required")
		}
		res, err := orderSvc.SettlePayment(c.UserContext(), req.GatewayOrderID, req.GatewayPaymentID, req.Signature)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// PaymentWebhook receives gateway events. The delivery is authenticated with
// an HMAC over the raw body; the payload is narrowed to a typed event before
// any business logic sees it.
func PaymentWebhook(orderSvc service.OrderService, webhookSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := c.Body()
		if err := gateway.VerifyBodySignature(webhookSecret, body, c.Get("X-Webhook-Signature")); err != nil {
			return writeError(c, fiber.StatusUnauthorized, "INVALID_SIGNATURE", "webhook signature mismatch")
		}

		ev, err := gateway.ParseEvent(body)
		if err != nil {
			if errors.Is(err, gateway.ErrUnknownEvent) {
				// Acknowledge kinds we don't handle so the gateway
				// stops redelivering them.
				return c.SendStatus(fiber.StatusOK)
			}
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "malformed webhook payload")
		}

		switch ev.Kind {
		case gateway.EventPaymentCaptured:
			_, err = orderSvc.SettlePayment(c.UserContext(), ev.Captured.GatewayOrderID, ev.Captured.GatewayPaymentID, ev.Captured.Signature)
		case gateway.EventPaymentFailed:
			_, err = orderSvc.FailPayment(c.UserContext(), ev.Failed.GatewayOrderID, ev.Failed.Reason)
		}
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusOK)
	}
}

// ListDocuments returns the user's documents with limit & offset.
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}
		res, err := docSvc.List(c.UserContext(), middleware.UserID(c), limit, offset)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// UploadDocument accepts multipart/form-data with fields file and document_type_id.
func UploadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		typeID := c.FormValue("document_type_id")
		if typeID == "" {
			return writeError(c, fiber.StatusBadRequest, "DOCUMENT_TYPE_REQUIRED", "document_type_id is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		doc, err := docSvc.Upload(c.UserContext(), middleware.UserID(c), typeID, f, fh.Filename, ct, fh.Size)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// GetDocument returns one of the user's documents by ID.
func GetDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := docSvc.Get(c.UserContext(), middleware.UserID(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// DeleteDocument removes one of the user's documents.
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := docSvc.Delete(c.UserContext(), middleware.UserID(c), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func swaggerUI() fiber.Handler {
	return func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	}
}
