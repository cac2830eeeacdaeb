package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docmarket/internal/catalog"
	"docmarket/internal/gateway"
	gwMocks "docmarket/internal/gateway/mocks"
	"docmarket/internal/model"
	"docmarket/internal/pricing"
	"docmarket/internal/repository"
	repoMocks "docmarket/internal/repository/mocks"
)

const testSecret = "whsec_test"

type orderFixture struct {
	svc    OrderService
	orders *repoMocks.MockOrderRepository
	txs    *repoMocks.MockTransactionRepository
	docs   *repoMocks.MockDocumentRepository
	gw     *gwMocks.MockGateway
	atomic *repoMocks.FakeAtomic
}

func newOrderFixture() *orderFixture {
	orders := new(repoMocks.MockOrderRepository)
	txs := new(repoMocks.MockTransactionRepository)
	docs := new(repoMocks.MockDocumentRepository)
	gw := new(gwMocks.MockGateway)

	repos := repository.Repositories{Orders: orders, Transactions: txs, Documents: docs}
	atomic := &repoMocks.FakeAtomic{Repos: repos}

	svc := NewOrderService(atomic, repos, catalog.Default(), gw, testSecret, nil)
	return &orderFixture{svc: svc, orders: orders, txs: txs, docs: docs, gw: gw, atomic: atomic}
}

func pendingOrder() *model.Order {
	return &model.Order{
		ID:          "ord-1",
		OrderNumber: "ORD-2026-000042",
		UserID:      "user-1",
		Items: []model.OrderLineItem{
			{DocumentID: "doc-1", DocumentTypeID: "cert-income", Tier: "Standard", Quantity: 3, UnitAmount: 10000, LineAmount: 30000},
		},
		Subtotal:       30000,
		Tax:            5400,
		Total:          35400,
		Currency:       "INR",
		Status:         model.OrderStatusPending,
		GatewayOrderID: "intent_1",
		CreatedAt:      time.Now().UTC(),
	}
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path freezes breakdown and creates intent", func(t *testing.T) {
		f := newOrderFixture()

		f.docs.On("FindByIDs", ctx, []string{"doc-1"}).Return([]model.Document{
			{ID: "doc-1", UserID: "user-1", DocumentTypeID: "cert-income"},
		}, nil)
		f.orders.On("Create", ctx, mock.MatchedBy(func(o *model.Order) bool {
			return o.Status == model.OrderStatusPending &&
				o.Subtotal == 30000 && o.BulkDiscount == 0 &&
				o.Tax == 5400 && o.Total == 35400 &&
				len(o.Items) == 1 && o.Items[0].UnitAmount == 10000
		})).Return(pendingOrderWithoutIntent(), nil)
		f.docs.On("AttachToOrder", ctx, []string{"doc-1"}, "ord-1").Return(nil)

		// The intent must carry the exact total in minor units.
		f.gw.On("CreateIntent", mock.Anything, int64(35400), "INR", "ORD-2026-000042").
			Return(&gateway.Intent{ID: "intent_1", Amount: 35400, Currency: "INR"}, nil)
		f.orders.On("SetGatewayOrderID", ctx, "ord-1", "intent_1").Return(nil)

		res, err := f.svc.CreateOrder(ctx, "user-1", []pricing.Item{
			{DocumentID: "doc-1", DocumentTypeID: "cert-income", Tier: "Standard", Quantity: 3},
		})
		require.NoError(t, err)
		assert.Equal(t, "intent_1", res.Intent.ID)
		assert.Equal(t, int64(35400), res.Intent.Amount)
		assert.Equal(t, "intent_1", res.Order.GatewayOrderID)
		f.orders.AssertExpectations(t)
		f.docs.AssertExpectations(t)
		f.gw.AssertExpectations(t)
	})

	t.Run("empty order is rejected", func(t *testing.T) {
		f := newOrderFixture()
		_, err := f.svc.CreateOrder(ctx, "user-1", nil)
		assert.ErrorIs(t, err, ErrEmptyOrder)
		assert.Zero(t, f.atomic.Calls)
	})

	t.Run("unknown document type rejects before persistence", func(t *testing.T) {
		f := newOrderFixture()
		_, err := f.svc.CreateOrder(ctx, "user-1", []pricing.Item{
			{DocumentTypeID: "unknown", Tier: "Standard", Quantity: 1},
		})
		assert.ErrorIs(t, err, catalog.ErrUnknownDocumentType)
		assert.Zero(t, f.atomic.Calls)
		f.gw.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing referenced document rejects", func(t *testing.T) {
		f := newOrderFixture()
		f.docs.On("FindByIDs", ctx, []string{"doc-9"}).Return([]model.Document{}, nil)

		_, err := f.svc.CreateOrder(ctx, "user-1", []pricing.Item{
			{DocumentID: "doc-9", DocumentTypeID: "cert-income", Tier: "Standard", Quantity: 1},
		})
		assert.ErrorIs(t, err, ErrDocumentNotFound)
		assert.Zero(t, f.atomic.Calls)
	})

	t.Run("foreign document rejects", func(t *testing.T) {
		f := newOrderFixture()
		f.docs.On("FindByIDs", ctx, []string{"doc-1"}).Return([]model.Document{
			{ID: "doc-1", UserID: "someone-else"},
		}, nil)

		_, err := f.svc.CreateOrder(ctx, "user-1", []pricing.Item{
			{DocumentID: "doc-1", DocumentTypeID: "cert-income", Tier: "Standard", Quantity: 1},
		})
		assert.ErrorIs(t, err, ErrDocumentNotOwned)
	})

	t.Run("document attached to a live order rejects", func(t *testing.T) {
		f := newOrderFixture()
		f.docs.On("FindByIDs", ctx, []string{"doc-1"}).Return([]model.Document{
			{ID: "doc-1", UserID: "user-1", DocumentTypeID: "cert-income", OrderID: "ord-A"},
		}, nil)
		f.orders.On("FindByID", ctx, "ord-A").Return(&model.Order{
			ID: "ord-A", UserID: "user-1", Status: model.OrderStatusPending,
		}, nil)

		_, err := f.svc.CreateOrder(ctx, "user-1", []pricing.Item{
			{DocumentID: "doc-1", DocumentTypeID: "cert-income", Tier: "Standard", Quantity: 1},
		})
		assert.ErrorIs(t, err, ErrDocumentInOrder)
		assert.Zero(t, f.atomic.Calls)
		f.docs.AssertNotCalled(t, "AttachToOrder", mock.Anything, mock.Anything, mock.Anything)
		f.gw.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("document attached to a dead order is reusable", func(t *testing.T) {
		f := newOrderFixture()
		f.docs.On("FindByIDs", ctx, []string{"doc-1"}).Return([]model.Document{
			{ID: "doc-1", UserID: "user-1", DocumentTypeID: "cert-income", OrderID: "ord-A"},
		}, nil)
		f.orders.On("FindByID", ctx, "ord-A").Return(&model.Order{
			ID: "ord-A", UserID: "user-1", Status: model.OrderStatusCancelled,
		}, nil)
		f.orders.On("Create", ctx, mock.Anything).Return(pendingOrderWithoutIntent(), nil)
		f.docs.On("AttachToOrder", ctx, []string{"doc-1"}, "ord-1").Return(nil)
		f.gw.On("CreateIntent", mock.Anything, int64(35400), "INR", "ORD-2026-000042").
			Return(&gateway.Intent{ID: "intent_1", Amount: 35400, Currency: "INR"}, nil)
		f.orders.On("SetGatewayOrderID", ctx, "ord-1", "intent_1").Return(nil)

		_, err := f.svc.CreateOrder(ctx, "user-1", []pricing.Item{
			{DocumentID: "doc-1", DocumentTypeID: "cert-income", Tier: "Standard", Quantity: 3},
		})
		require.NoError(t, err)
		f.docs.AssertExpectations(t)
	})

	t.Run("gateway timeout leaves order pending", func(t *testing.T) {
		f := newOrderFixture()
		f.docs.On("FindByIDs", ctx, mock.Anything).Return([]model.Document{
			{ID: "doc-1", UserID: "user-1"},
		}, nil)
		f.orders.On("Create", ctx, mock.Anything).Return(pendingOrderWithoutIntent(), nil)
		f.docs.On("AttachToOrder", ctx, mock.Anything, "ord-1").Return(nil)
		f.gw.On("CreateIntent", mock.Anything, int64(35400), "INR", "ORD-2026-000042").
			Return(nil, gateway.ErrTimeout)

		_, err := f.svc.CreateOrder(ctx, "user-1", []pricing.Item{
			{DocumentID: "doc-1", DocumentTypeID: "cert-income", Tier: "Standard", Quantity: 3},
		})
		assert.ErrorIs(t, err, gateway.ErrTimeout)
		// No status transition: the order stays pending and retryable.
		f.orders.AssertNotCalled(t, "UpdateStatusIfCurrent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("gateway rejection fails the order", func(t *testing.T) {
		f := newOrderFixture()
		f.docs.On("FindByIDs", ctx, mock.Anything).Return([]model.Document{
			{ID: "doc-1", UserID: "user-1"},
		}, nil)
		f.orders.On("Create", ctx, mock.Anything).Return(pendingOrderWithoutIntent(), nil)
		f.docs.On("AttachToOrder", ctx, mock.Anything, "ord-1").Return(nil)
		f.gw.On("CreateIntent", mock.Anything, int64(35400), "INR", "ORD-2026-000042").
			Return(nil, gateway.ErrRejected)

		f.orders.On("UpdateStatusIfCurrent", ctx, mock.MatchedBy(func(o *model.Order) bool {
			return o.Status == model.OrderStatusFailed
		}), model.OrderStatusPending).Return(true, nil)
		f.docs.On("UpdatePaymentStatusByOrder", ctx, "ord-1", model.PaymentStatusFailed).Return(nil)
		f.txs.On("Create", ctx, mock.MatchedBy(func(tx *model.Transaction) bool {
			return tx.Status == model.TransactionStatusFailed
		})).Return(&model.Transaction{ID: "tx-1"}, nil)

		_, err := f.svc.CreateOrder(ctx, "user-1", []pricing.Item{
			{DocumentID: "doc-1", DocumentTypeID: "cert-income", Tier: "Standard", Quantity: 3},
		})
		assert.ErrorIs(t, err, gateway.ErrRejected)
		f.orders.AssertExpectations(t)
	})
}

func pendingOrderWithoutIntent() *model.Order {
	o := pendingOrder()
	o.GatewayOrderID = ""
	return o
}

func TestSettlePayment(t *testing.T) {
	ctx := context.Background()
	sig := gateway.ComputeSignature(testSecret, "intent_1", "pay_1")

	t.Run("happy path settles order, documents and ledger together", func(t *testing.T) {
		f := newOrderFixture()
		f.orders.On("FindByGatewayOrderID", ctx, "intent_1").Return(pendingOrder(), nil)
		f.orders.On("UpdateStatusIfCurrent", ctx, mock.MatchedBy(func(o *model.Order) bool {
			return o.Status == model.OrderStatusPaid && o.GatewayPaymentID == "pay_1" && o.PaidAt != nil
		}), model.OrderStatusPending).Return(true, nil)
		f.docs.On("UpdatePaymentStatusByOrder", ctx, "ord-1", model.PaymentStatusPaid).Return(nil)
		f.txs.On("Create", ctx, mock.MatchedBy(func(tx *model.Transaction) bool {
			return tx.Type == model.TransactionTypePayment &&
				tx.Amount == 35400 &&
				tx.Status == model.TransactionStatusCompleted &&
				tx.GatewayPaymentID == "pay_1"
		})).Return(&model.Transaction{ID: "tx-1", Amount: 35400}, nil)

		res, err := f.svc.SettlePayment(ctx, "intent_1", "pay_1", sig)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusPaid, res.Order.Status)
		assert.Equal(t, "pay_1", res.Order.GatewayPaymentID)
		assert.Equal(t, int64(35400), res.Transaction.Amount)
		f.orders.AssertExpectations(t)
		f.docs.AssertExpectations(t)
		f.txs.AssertExpectations(t)
	})

	t.Run("tampered signature fails and touches nothing", func(t *testing.T) {
		f := newOrderFixture()

		_, err := f.svc.SettlePayment(ctx, "intent_1", "pay_1", "deadbeef")
		assert.ErrorIs(t, err, gateway.ErrInvalidSignature)
		assert.Zero(t, f.atomic.Calls)
		f.orders.AssertNotCalled(t, "FindByGatewayOrderID", mock.Anything, mock.Anything)
	})

	t.Run("second settlement with same payment id is idempotent", func(t *testing.T) {
		f := newOrderFixture()
		paid := pendingOrder()
		paid.Status = model.OrderStatusPaid
		paid.GatewayPaymentID = "pay_1"
		f.orders.On("FindByGatewayOrderID", ctx, "intent_1").Return(paid, nil)
		f.txs.On("FindByOrderAndPaymentID", ctx, "ord-1", "pay_1").
			Return(&model.Transaction{ID: "tx-1", Amount: 35400}, nil)

		res, err := f.svc.SettlePayment(ctx, "intent_1", "pay_1", sig)
		require.NoError(t, err)
		assert.Equal(t, "tx-1", res.Transaction.ID)
		// Exactly one transaction must ever exist for the pair.
		f.txs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		assert.Zero(t, f.atomic.Calls)
	})

	t.Run("settlement with a different payment id conflicts", func(t *testing.T) {
		f := newOrderFixture()
		paid := pendingOrder()
		paid.Status = model.OrderStatusPaid
		paid.GatewayPaymentID = "pay_other"
		f.orders.On("FindByGatewayOrderID", ctx, "intent_1").Return(paid, nil)

		_, err := f.svc.SettlePayment(ctx, "intent_1", "pay_1", sig)
		assert.ErrorIs(t, err, ErrConflictingSettlement)
		f.txs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("settling a failed order is an invalid transition", func(t *testing.T) {
		f := newOrderFixture()
		failed := pendingOrder()
		failed.Status = model.OrderStatusFailed
		f.orders.On("FindByGatewayOrderID", ctx, "intent_1").Return(failed, nil)

		_, err := f.svc.SettlePayment(ctx, "intent_1", "pay_1", sig)
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("losing the conditional update resolves idempotently", func(t *testing.T) {
		f := newOrderFixture()
		f.orders.On("FindByGatewayOrderID", ctx, "intent_1").Return(pendingOrder(), nil).Once()
		f.orders.On("UpdateStatusIfCurrent", ctx, mock.Anything, model.OrderStatusPending).Return(false, nil)

		settled := pendingOrder()
		settled.Status = model.OrderStatusPaid
		settled.GatewayPaymentID = "pay_1"
		f.orders.On("FindByGatewayOrderID", ctx, "intent_1").Return(settled, nil).Once()
		f.txs.On("FindByOrderAndPaymentID", ctx, "ord-1", "pay_1").
			Return(&model.Transaction{ID: "tx-1"}, nil)

		res, err := f.svc.SettlePayment(ctx, "intent_1", "pay_1", sig)
		require.NoError(t, err)
		assert.Equal(t, "tx-1", res.Transaction.ID)
		f.txs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unknown intent reference", func(t *testing.T) {
		f := newOrderFixture()
		f.orders.On("FindByGatewayOrderID", ctx, "intent_1").Return(nil, sql.ErrNoRows)

		_, err := f.svc.SettlePayment(ctx, "intent_1", "pay_1", sig)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestFailPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("pending order fails with audit row", func(t *testing.T) {
		f := newOrderFixture()
		f.orders.On("FindByGatewayOrderID", ctx, "intent_1").Return(pendingOrder(), nil)
		f.orders.On("UpdateStatusIfCurrent", ctx, mock.MatchedBy(func(o *model.Order) bool {
			return o.Status == model.OrderStatusFailed && o.FailureReason == "card_declined"
		}), model.OrderStatusPending).Return(true, nil)
		f.docs.On("UpdatePaymentStatusByOrder", ctx, "ord-1", model.PaymentStatusFailed).Return(nil)
		f.txs.On("Create", ctx, mock.MatchedBy(func(tx *model.Transaction) bool {
			return tx.Status == model.TransactionStatusFailed && tx.Type == model.TransactionTypePayment
		})).Return(&model.Transaction{ID: "tx-1"}, nil)

		res, err := f.svc.FailPayment(ctx, "intent_1", "card_declined")
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusFailed, res.Order.Status)
		f.txs.AssertExpectations(t)
	})

	t.Run("duplicate failure notification is a no-op", func(t *testing.T) {
		f := newOrderFixture()
		failed := pendingOrder()
		failed.Status = model.OrderStatusFailed
		f.orders.On("FindByGatewayOrderID", ctx, "intent_1").Return(failed, nil)

		res, err := f.svc.FailPayment(ctx, "intent_1", "card_declined")
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusFailed, res.Order.Status)
		assert.Zero(t, f.atomic.Calls)
	})

	t.Run("failing a paid order is an invalid transition", func(t *testing.T) {
		f := newOrderFixture()
		paid := pendingOrder()
		paid.Status = model.OrderStatusPaid
		f.orders.On("FindByGatewayOrderID", ctx, "intent_1").Return(paid, nil)

		_, err := f.svc.FailPayment(ctx, "intent_1", "whatever")
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})
}

func TestRefundOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("paid order refunds fully by default", func(t *testing.T) {
		f := newOrderFixture()
		paid := pendingOrder()
		paid.Status = model.OrderStatusPaid
		paid.GatewayPaymentID = "pay_1"
		f.orders.On("FindByID", ctx, "ord-1").Return(paid, nil)
		f.gw.On("Refund", mock.Anything, "pay_1", int64(35400), "user request").
			Return(&gateway.RefundResult{ID: "rfnd_1", Amount: 35400, Status: "processed"}, nil)
		f.orders.On("UpdateStatusIfCurrent", ctx, mock.MatchedBy(func(o *model.Order) bool {
			return o.Status == model.OrderStatusRefunded && o.GatewayRefundID == "rfnd_1" && o.RefundAmount == 35400
		}), model.OrderStatusPaid).Return(true, nil)
		f.docs.On("UpdatePaymentStatusByOrder", ctx, "ord-1", model.PaymentStatusRefunded).Return(nil)
		f.txs.On("Create", ctx, mock.MatchedBy(func(tx *model.Transaction) bool {
			return tx.Type == model.TransactionTypeRefund && tx.Amount == -35400
		})).Return(&model.Transaction{ID: "tx-2", Amount: -35400}, nil)

		res, err := f.svc.RefundOrder(ctx, "ord-1", 0, "user request")
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusRefunded, res.Order.Status)
		assert.Equal(t, int64(-35400), res.Transaction.Amount)
		assert.Equal(t, "rfnd_1", res.GatewayRefund.ID)
	})

	t.Run("partial refund keeps terminal refund status", func(t *testing.T) {
		f := newOrderFixture()
		paid := pendingOrder()
		paid.Status = model.OrderStatusPaid
		paid.GatewayPaymentID = "pay_1"
		f.orders.On("FindByID", ctx, "ord-1").Return(paid, nil)
		f.gw.On("Refund", mock.Anything, "pay_1", int64(10000), "partial").
			Return(&gateway.RefundResult{ID: "rfnd_1", Amount: 10000}, nil)
		f.orders.On("UpdateStatusIfCurrent", ctx, mock.MatchedBy(func(o *model.Order) bool {
			return o.Status == model.OrderStatusRefunded && o.RefundAmount == 10000
		}), model.OrderStatusPaid).Return(true, nil)
		f.docs.On("UpdatePaymentStatusByOrder", ctx, "ord-1", model.PaymentStatusRefunded).Return(nil)
		f.txs.On("Create", ctx, mock.MatchedBy(func(tx *model.Transaction) bool {
			return tx.Amount == -10000
		})).Return(&model.Transaction{ID: "tx-2", Amount: -10000}, nil)

		res, err := f.svc.RefundOrder(ctx, "ord-1", 10000, "partial")
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusRefunded, res.Order.Status)
	})

	t.Run("refunding a pending order is an invalid transition", func(t *testing.T) {
		f := newOrderFixture()
		f.orders.On("FindByID", ctx, "ord-1").Return(pendingOrder(), nil)

		_, err := f.svc.RefundOrder(ctx, "ord-1", 0, "r")
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
		f.gw.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("refunding a failed order is an invalid transition", func(t *testing.T) {
		f := newOrderFixture()
		failed := pendingOrder()
		failed.Status = model.OrderStatusFailed
		f.orders.On("FindByID", ctx, "ord-1").Return(failed, nil)

		_, err := f.svc.RefundOrder(ctx, "ord-1", 0, "r")
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("amount above total is rejected", func(t *testing.T) {
		f := newOrderFixture()
		paid := pendingOrder()
		paid.Status = model.OrderStatusPaid
		f.orders.On("FindByID", ctx, "ord-1").Return(paid, nil)

		_, err := f.svc.RefundOrder(ctx, "ord-1", 99999999, "r")
		assert.ErrorIs(t, err, ErrInvalidRefundAmount)
	})

	t.Run("gateway failure leaves the order paid", func(t *testing.T) {
		f := newOrderFixture()
		paid := pendingOrder()
		paid.Status = model.OrderStatusPaid
		paid.GatewayPaymentID = "pay_1"
		f.orders.On("FindByID", ctx, "ord-1").Return(paid, nil)
		f.gw.On("Refund", mock.Anything, "pay_1", int64(35400), "r").
			Return(nil, gateway.ErrTimeout)

		_, err := f.svc.RefundOrder(ctx, "ord-1", 0, "r")
		assert.ErrorIs(t, err, gateway.ErrTimeout)
		assert.Zero(t, f.atomic.Calls)
	})
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("pending order cancels", func(t *testing.T) {
		f := newOrderFixture()
		f.orders.On("FindByID", ctx, "ord-1").Return(pendingOrder(), nil)
		f.orders.On("UpdateStatusIfCurrent", ctx, mock.MatchedBy(func(o *model.Order) bool {
			return o.Status == model.OrderStatusCancelled
		}), model.OrderStatusPending).Return(true, nil)

		got, err := f.svc.CancelOrder(ctx, "user-1", "ord-1")
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusCancelled, got.Status)
	})

	t.Run("foreign order is not found", func(t *testing.T) {
		f := newOrderFixture()
		f.orders.On("FindByID", ctx, "ord-1").Return(pendingOrder(), nil)

		_, err := f.svc.CancelOrder(ctx, "other-user", "ord-1")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("paid order cannot cancel", func(t *testing.T) {
		f := newOrderFixture()
		paid := pendingOrder()
		paid.Status = model.OrderStatusPaid
		f.orders.On("FindByID", ctx, "ord-1").Return(paid, nil)

		_, err := f.svc.CancelOrder(ctx, "user-1", "ord-1")
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})
}

func TestReapplyDocumentCascades(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	torn := []model.Order{
		{ID: "ord-1", Status: model.OrderStatusPaid},
		{ID: "ord-2", Status: model.OrderStatusPaid},
	}
	f.orders.On("FindPaidWithUnpaidDocuments", ctx, 100).Return(torn, nil)
	f.docs.On("UpdatePaymentStatusByOrder", ctx, "ord-1", model.PaymentStatusPaid).Return(nil)
	f.docs.On("UpdatePaymentStatusByOrder", ctx, "ord-2", model.PaymentStatusPaid).Return(nil)

	n, err := f.svc.ReapplyDocumentCascades(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	f.docs.AssertExpectations(t)
}

func TestStateTransitionTable(t *testing.T) {
	valid := []struct{ from, to model.OrderStatus }{
		{model.OrderStatusPending, model.OrderStatusPaid},
		{model.OrderStatusPending, model.OrderStatusFailed},
		{model.OrderStatusPending, model.OrderStatusCancelled},
		{model.OrderStatusPaid, model.OrderStatusRefunded},
	}
	for _, tr := range valid {
		assert.True(t, model.CanTransition(tr.from, tr.to), "%s → %s should be valid", tr.from, tr.to)
	}

	all := []model.OrderStatus{
		model.OrderStatusPending, model.OrderStatusPaid, model.OrderStatusFailed,
		model.OrderStatusCancelled, model.OrderStatusRefunded,
	}
	validSet := make(map[[2]model.OrderStatus]bool)
	for _, tr := range valid {
		validSet[[2]model.OrderStatus{tr.from, tr.to}] = true
	}
	for _, from := range all {
		for _, to := range all {
			if validSet[[2]model.OrderStatus{from, to}] {
				continue
			}
			assert.False(t, model.CanTransition(from, to), "%s → %s should be invalid", from, to)
		}
	}
}

func TestSettleErrorPropagation(t *testing.T) {
	ctx := context.Background()
	sig := gateway.ComputeSignature(testSecret, "intent_1", "pay_1")

	f := newOrderFixture()
	f.orders.On("FindByGatewayOrderID", ctx, "intent_1").Return(pendingOrder(), nil)
	f.orders.On("UpdateStatusIfCurrent", ctx, mock.Anything, model.OrderStatusPending).Return(true, nil)
	f.docs.On("UpdatePaymentStatusByOrder", ctx, "ord-1", model.PaymentStatusPaid).Return(nil)
	boom := errors.New("insert failed")
	f.txs.On("Create", ctx, mock.Anything).Return(nil, boom)

	_, err := f.svc.SettlePayment(ctx, "intent_1", "pay_1", sig)
	assert.ErrorIs(t, err, boom)
}
