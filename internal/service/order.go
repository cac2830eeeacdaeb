package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"docmarket/internal/catalog"
	"docmarket/internal/gateway"
	"docmarket/internal/model"
	"docmarket/internal/pricing"
	"docmarket/internal/repository"
)

var (
	ErrEmptyOrder             = errors.New("order has no items")
	ErrOrderNotFound          = errors.New("order not found")
	ErrDocumentNotFound       = errors.New("referenced document not found")
	ErrDocumentNotOwned       = errors.New("referenced document belongs to another user")
	ErrInvalidStateTransition = errors.New("invalid order state transition")
	ErrConflictingSettlement  = errors.New("order already settled with a different payment")
	ErrInvalidRefundAmount    = errors.New("refund amount exceeds order total")
)

// CreateOrderResult pairs the persisted order with the gateway intent the
// client completes payment against.
type CreateOrderResult struct {
	Order  *model.Order    `json:"order"`
	Intent *gateway.Intent `json:"gateway_intent"`
}

// SettlementResult is the outcome of a settle or fail operation.
type SettlementResult struct {
	Order       *model.Order       `json:"order"`
	Transaction *model.Transaction `json:"transaction"`
}

// RefundOrderResult carries the refunded order, its ledger row, and the
// gateway's refund record.
type RefundOrderResult struct {
	Order         *model.Order          `json:"order"`
	Transaction   *model.Transaction    `json:"transaction"`
	GatewayRefund *gateway.RefundResult `json:"gateway_refund"`
}

// OrderListResult is the service-level DTO for paginated orders.
type OrderListResult struct {
	Items []model.Order `json:"data"`
	Total int           `json:"total"`
}

// OrderService is the pricing and payment-reconciliation engine: it freezes
// an order's cost at creation, drives the order state machine, and keeps the
// order, its documents, and the transaction ledger consistent.
type OrderService interface {
	// Quote prices an item list without persisting anything. Client-side
	// quotes are advisory; CreateOrder recomputes and never trusts a
	// client-submitted total.
	Quote(items []pricing.Item) (*pricing.Breakdown, error)

	// CreateOrder freezes the breakdown for the given items, persists the
	// order as pending, and requests a gateway payment intent for the total.
	CreateOrder(ctx context.Context, userID string, items []pricing.Item) (*CreateOrderResult, error)

	// SettlePayment verifies a gateway callback signature and moves the
	// order pending→paid, cascading to documents and appending exactly one
	// payment ledger row. Idempotent for a repeated (intent, payment) pair.
	SettlePayment(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) (*SettlementResult, error)

	// FailPayment records an explicit gateway rejection: pending→failed,
	// document cascade, and a failed ledger row for audit.
	FailPayment(ctx context.Context, gatewayOrderID, reason string) (*SettlementResult, error)

	// CancelOrder abandons a pending order at the owner's request.
	CancelOrder(ctx context.Context, userID, orderID string) (*model.Order, error)

	// RefundOrder refunds a paid order through the gateway. amount 0 means
	// the full order total. Only paid orders are refundable.
	RefundOrder(ctx context.Context, orderID string, amount int64, reason string) (*RefundOrderResult, error)

	// Get returns one of the user's orders with its ledger rows.
	Get(ctx context.Context, userID, orderID string) (*model.Order, []model.Transaction, error)

	// List returns the user's orders, newest first.
	List(ctx context.Context, userID string, limit, offset int) (*OrderListResult, error)

	// ReapplyDocumentCascades re-marks documents of settled orders whose
	// cascade was torn by a crash. Returns how many orders were repaired.
	ReapplyDocumentCascades(ctx context.Context) (int, error)
}

type orderService struct {
	atomic  repository.Atomic
	repos   repository.Repositories
	calc    *pricing.Calculator
	catalog *catalog.Catalog
	gw      gateway.Gateway
	secret  string
	metrics *Metrics

	locks orderLocks
}

// NewOrderService constructs the reconciliation engine. secret is the
// server-held webhook signing secret, never the publishable client key.
func NewOrderService(atomic repository.Atomic, repos repository.Repositories, cat *catalog.Catalog, gw gateway.Gateway, secret string, metrics *Metrics) OrderService {
	return &orderService{
		atomic:  atomic,
		repos:   repos,
		calc:    pricing.NewCalculator(cat),
		catalog: cat,
		gw:      gw,
		secret:  secret,
		metrics: metrics,
	}
}

// orderLocks serializes settlement attempts per order id within this process.
// The conditional status update in the repository is the real guard; the lock
// keeps duplicate webhook deliveries from both paying the gateway round-trip.
type orderLocks struct {
	mu [64]sync.Mutex
}

func (l *orderLocks) forKey(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &l.mu[h.Sum32()%uint32(len(l.mu))]
}

func (s *orderService) Quote(items []pricing.Item) (*pricing.Breakdown, error) {
	return s.calc.CalculateOrderTotal(items)
}

func (s *orderService) CreateOrder(ctx context.Context, userID string, items []pricing.Item) (*CreateOrderResult, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	breakdown, err := s.calc.CalculateOrderTotal(items)
	if err != nil {
		return nil, err
	}
	if breakdown.Total <= 0 {
		return nil, ErrEmptyOrder
	}

	now := time.Now().UTC()
	order := &model.Order{
		ID:           uuid.New().String(),
		UserID:       userID,
		Items:        make([]model.OrderLineItem, 0, len(breakdown.Lines)),
		Subtotal:     breakdown.Subtotal,
		BulkDiscount: breakdown.BulkDiscount,
		Tax:          breakdown.Tax,
		Total:        breakdown.Total,
		Currency:     breakdown.Currency,
		Status:       model.OrderStatusPending,
		CreatedAt:    now,
	}
	for _, line := range breakdown.Lines {
		order.Items = append(order.Items, model.OrderLineItem{
			DocumentID:     line.DocumentID,
			DocumentTypeID: line.DocumentTypeID,
			Tier:           line.Tier,
			Quantity:       line.Quantity,
			UnitAmount:     line.UnitAmount,
			LineAmount:     line.LineAmount,
		})
	}

	docIDs := order.DocumentIDs()
	if err := s.checkDocumentOwnership(ctx, userID, docIDs); err != nil {
		return nil, err
	}

	var stored *model.Order
	err = s.atomic.WithinTx(ctx, func(r repository.Repositories) error {
		var err error
		stored, err = r.Orders.Create(ctx, order)
		if err != nil {
			return fmt.Errorf("persist order: %w", err)
		}
		if err := r.Documents.AttachToOrder(ctx, docIDs, stored.ID); err != nil {
			return fmt.Errorf("attach documents: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The gateway call is deliberately outside the transaction: it is a slow
	// network operation and cannot be rolled back. The order number travels
	// as the receipt so the remote intent is traceable to this order; a
	// client retry creates a fresh order and a fresh intent.
	intent, err := s.gw.CreateIntent(ctx, stored.Total, stored.Currency, stored.OrderNumber)
	if err != nil {
		if errors.Is(err, gateway.ErrRejected) {
			// Explicit refusal: the order can never be paid, so mark it
			// failed rather than leaving it pending forever.
			if _, failErr := s.transitionToFailed(ctx, stored, "gateway rejected intent creation"); failErr != nil {
				return nil, fmt.Errorf("%w (fail transition: %v)", err, failErr)
			}
			return nil, err
		}
		// Timeout or transport failure: the order stays pending and the
		// whole creation is safe to retry.
		return nil, err
	}

	if err := s.repos.Orders.SetGatewayOrderID(ctx, stored.ID, intent.ID); err != nil {
		return nil, fmt.Errorf("record gateway intent: %w", err)
	}
	stored.GatewayOrderID = intent.ID

	return &CreateOrderResult{Order: stored, Intent: intent}, nil
}

func (s *orderService) checkDocumentOwnership(ctx context.Context, userID string, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}
	docs, err := s.repos.Documents.FindByIDs(ctx, docIDs)
	if err != nil {
		return fmt.Errorf("resolve documents: %w", err)
	}
	found := make(map[string]model.Document, len(docs))
	for _, d := range docs {
		found[d.ID] = d
	}
	attachedStatus := make(map[string]model.OrderStatus)
	for _, id := range docIDs {
		d, ok := found[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
		}
		if d.UserID != userID {
			return fmt.Errorf("%w: %s", ErrDocumentNotOwned, id)
		}
		// A document attached to a live order stays there: AttachToOrder
		// overwrites the back-reference, and a re-pointed document would be
		// missed by the first order's settlement cascade.
		if d.OrderID == "" {
			continue
		}
		status, ok := attachedStatus[d.OrderID]
		if !ok {
			attached, err := s.repos.Orders.FindByID(ctx, d.OrderID)
			if err != nil {
				if !errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("resolve attached order: %w", err)
				}
				attachedStatus[d.OrderID] = ""
				continue
			}
			status = attached.Status
			attachedStatus[d.OrderID] = status
		}
		if status == model.OrderStatusPending || status == model.OrderStatusPaid {
			return fmt.Errorf("%w: %s", ErrDocumentInOrder, id)
		}
	}
	return nil
}

func (s *orderService) SettlePayment(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) (*SettlementResult, error) {
	// Verify before touching any state. A mismatch leaves the order pending
	// so a later legitimate callback can still succeed.
	if err := gateway.VerifySignature(s.secret, gatewayOrderID, gatewayPaymentID, signature); err != nil {
		s.metrics.settlement("invalid_signature")
		return nil, err
	}

	mu := s.locks.forKey(gatewayOrderID)
	mu.Lock()
	defer mu.Unlock()

	order, err := s.findByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}

	if res, done, err := s.settledAlready(ctx, order, gatewayPaymentID); done {
		return res, err
	}
	if order.Status != model.OrderStatusPending {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidStateTransition, order.Status, model.OrderStatusPaid)
	}

	now := time.Now().UTC()
	settled := *order
	settled.Status = model.OrderStatusPaid
	settled.GatewayPaymentID = gatewayPaymentID
	settled.PaidAt = &now

	var (
		txRow     *model.Transaction
		raceLoser bool
	)
	err = s.atomic.WithinTx(ctx, func(r repository.Repositories) error {
		ok, err := r.Orders.UpdateStatusIfCurrent(ctx, &settled, model.OrderStatusPending)
		if err != nil {
			return fmt.Errorf("transition order: %w", err)
		}
		if !ok {
			// A concurrent settlement won the conditional update. Nothing
			// in this unit may proceed; re-evaluate outside the tx.
			raceLoser = true
			return nil
		}
		if err := r.Documents.UpdatePaymentStatusByOrder(ctx, settled.ID, model.PaymentStatusPaid); err != nil {
			return fmt.Errorf("cascade documents: %w", err)
		}
		txRow, err = r.Transactions.Create(ctx, &model.Transaction{
			ID:               uuid.New().String(),
			UserID:           settled.UserID,
			OrderID:          settled.ID,
			Type:             model.TransactionTypePayment,
			Amount:           settled.Total,
			Currency:         settled.Currency,
			Status:           model.TransactionStatusCompleted,
			GatewayOrderID:   gatewayOrderID,
			GatewayPaymentID: gatewayPaymentID,
			Description:      "payment for order " + settled.OrderNumber,
			ProcessedAt:      now,
			CreatedAt:        now,
		})
		if err != nil {
			return fmt.Errorf("append payment transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if raceLoser {
		fresh, err := s.findByGatewayOrderID(ctx, gatewayOrderID)
		if err != nil {
			return nil, err
		}
		if res, done, err := s.settledAlready(ctx, fresh, gatewayPaymentID); done {
			return res, err
		}
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidStateTransition, fresh.Status, model.OrderStatusPaid)
	}

	s.metrics.settlement("paid")
	return &SettlementResult{Order: &settled, Transaction: txRow}, nil
}

// settledAlready handles the idempotent and conflicting re-settlement cases
// for an order that is no longer pending. done reports whether the caller
// should return immediately with the given result/error.
func (s *orderService) settledAlready(ctx context.Context, order *model.Order, gatewayPaymentID string) (*SettlementResult, bool, error) {
	if order.Status != model.OrderStatusPaid {
		return nil, false, nil
	}
	if order.GatewayPaymentID == gatewayPaymentID {
		txRow, err := s.repos.Transactions.FindByOrderAndPaymentID(ctx, order.ID, gatewayPaymentID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, true, fmt.Errorf("load settlement transaction: %w", err)
		}
		return &SettlementResult{Order: order, Transaction: txRow}, true, nil
	}
	s.metrics.settlement("conflict")
	return nil, true, fmt.Errorf("%w: recorded payment %s, got %s",
		ErrConflictingSettlement, order.GatewayPaymentID, gatewayPaymentID)
}

func (s *orderService) FailPayment(ctx context.Context, gatewayOrderID, reason string) (*SettlementResult, error) {
	mu := s.locks.forKey(gatewayOrderID)
	mu.Lock()
	defer mu.Unlock()

	order, err := s.findByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == model.OrderStatusFailed {
		// Duplicate failure notification; nothing new to record.
		return &SettlementResult{Order: order}, nil
	}
	if order.Status != model.OrderStatusPending {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidStateTransition, order.Status, model.OrderStatusFailed)
	}

	return s.transitionToFailed(ctx, order, reason)
}

func (s *orderService) transitionToFailed(ctx context.Context, order *model.Order, reason string) (*SettlementResult, error) {
	now := time.Now().UTC()
	failed := *order
	failed.Status = model.OrderStatusFailed
	failed.FailureReason = reason
	failed.FailedAt = &now

	var txRow *model.Transaction
	err := s.atomic.WithinTx(ctx, func(r repository.Repositories) error {
		ok, err := r.Orders.UpdateStatusIfCurrent(ctx, &failed, model.OrderStatusPending)
		if err != nil {
			return fmt.Errorf("transition order: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: order %s is no longer pending", ErrInvalidStateTransition, order.ID)
		}
		if err := r.Documents.UpdatePaymentStatusByOrder(ctx, failed.ID, model.PaymentStatusFailed); err != nil {
			return fmt.Errorf("cascade documents: %w", err)
		}
		// No money moved; the row exists so the attempt is auditable.
		txRow, err = r.Transactions.Create(ctx, &model.Transaction{
			ID:             uuid.New().String(),
			UserID:         failed.UserID,
			OrderID:        failed.ID,
			Type:           model.TransactionTypePayment,
			Amount:         failed.Total,
			Currency:       failed.Currency,
			Status:         model.TransactionStatusFailed,
			GatewayOrderID: failed.GatewayOrderID,
			Description:    "payment failed for order " + failed.OrderNumber + ": " + reason,
			ProcessedAt:    now,
			CreatedAt:      now,
		})
		if err != nil {
			return fmt.Errorf("append failure transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.settlement("failed")
	return &SettlementResult{Order: &failed, Transaction: txRow}, nil
}

func (s *orderService) CancelOrder(ctx context.Context, userID, orderID string) (*model.Order, error) {
	mu := s.locks.forKey(orderID)
	mu.Lock()
	defer mu.Unlock()

	order, err := s.findByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	if !model.CanTransition(order.Status, model.OrderStatusCancelled) {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidStateTransition, order.Status, model.OrderStatusCancelled)
	}

	cancelled := *order
	cancelled.Status = model.OrderStatusCancelled
	err = s.atomic.WithinTx(ctx, func(r repository.Repositories) error {
		ok, err := r.Orders.UpdateStatusIfCurrent(ctx, &cancelled, model.OrderStatusPending)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %s is no longer pending", ErrInvalidStateTransition, orderID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cancelled, nil
}

func (s *orderService) RefundOrder(ctx context.Context, orderID string, amount int64, reason string) (*RefundOrderResult, error) {
	mu := s.locks.forKey(orderID)
	mu.Lock()
	defer mu.Unlock()

	order, err := s.findByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(order.Status, model.OrderStatusRefunded) {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidStateTransition, order.Status, model.OrderStatusRefunded)
	}

	if amount == 0 {
		amount = order.Total
	}
	if amount < 0 || amount > order.Total {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidRefundAmount, amount, order.Total)
	}

	// Issue the gateway refund before any local write. If the call fails
	// locally but succeeded remotely, the order stays paid and a retried
	// refund is reconciled by the gateway against the same payment id.
	refund, err := s.gw.Refund(ctx, order.GatewayPaymentID, amount, reason)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	refunded := *order
	refunded.Status = model.OrderStatusRefunded
	refunded.GatewayRefundID = refund.ID
	refunded.RefundAmount = amount
	refunded.RefundedAt = &now

	var txRow *model.Transaction
	err = s.atomic.WithinTx(ctx, func(r repository.Repositories) error {
		ok, err := r.Orders.UpdateStatusIfCurrent(ctx, &refunded, model.OrderStatusPaid)
		if err != nil {
			return fmt.Errorf("transition order: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: order %s is no longer paid", ErrInvalidStateTransition, orderID)
		}
		if err := r.Documents.UpdatePaymentStatusByOrder(ctx, refunded.ID, model.PaymentStatusRefunded); err != nil {
			return fmt.Errorf("cascade documents: %w", err)
		}
		// Refunds carry a negative amount: the ledger sums to the net
		// position of the order.
		txRow, err = r.Transactions.Create(ctx, &model.Transaction{
			ID:               uuid.New().String(),
			UserID:           refunded.UserID,
			OrderID:          refunded.ID,
			Type:             model.TransactionTypeRefund,
			Amount:           -amount,
			Currency:         refunded.Currency,
			Status:           model.TransactionStatusCompleted,
			GatewayOrderID:   refunded.GatewayOrderID,
			GatewayPaymentID: refunded.GatewayPaymentID,
			GatewayRefundID:  refund.ID,
			Description:      "refund for order " + refunded.OrderNumber + ": " + reason,
			ProcessedAt:      now,
			CreatedAt:        now,
		})
		if err != nil {
			return fmt.Errorf("append refund transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.settlement("refunded")
	return &RefundOrderResult{Order: &refunded, Transaction: txRow, GatewayRefund: refund}, nil
}

func (s *orderService) Get(ctx context.Context, userID, orderID string) (*model.Order, []model.Transaction, error) {
	order, err := s.findByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order.UserID != userID {
		return nil, nil, ErrOrderNotFound
	}
	txs, err := s.repos.Transactions.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, txs, nil
}

func (s *orderService) List(ctx context.Context, userID string, limit, offset int) (*OrderListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	res, err := s.repos.Orders.ListByUser(ctx, userID, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &OrderListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *orderService) ReapplyDocumentCascades(ctx context.Context) (int, error) {
	const batch = 100
	orders, err := s.repos.Orders.FindPaidWithUnpaidDocuments(ctx, batch)
	if err != nil {
		return 0, err
	}
	repaired := 0
	for _, o := range orders {
		if err := s.repos.Documents.UpdatePaymentStatusByOrder(ctx, o.ID, model.PaymentStatusPaid); err != nil {
			return repaired, fmt.Errorf("repair order %s: %w", o.ID, err)
		}
		repaired++
	}
	return repaired, nil
}

func (s *orderService) findByID(ctx context.Context, id string) (*model.Order, error) {
	order, err := s.repos.Orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *orderService) findByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Order, error) {
	order, err := s.repos.Orders.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}
