package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docmarket/internal/catalog"
	"docmarket/internal/model"
	repoMocks "docmarket/internal/repository/mocks"
	"docmarket/internal/storage"
	storeMocks "docmarket/internal/storage/mocks"
)

func newDocumentFixture() (DocumentService, *storeMocks.MockStorage, *repoMocks.MockDocumentRepository, *repoMocks.MockOrderRepository) {
	mStore := new(storeMocks.MockStorage)
	mRepo := new(repoMocks.MockDocumentRepository)
	mOrders := new(repoMocks.MockOrderRepository)
	svc := NewDocumentService(mStore, mRepo, mOrders, catalog.Default())
	return svc, mStore, mRepo, mOrders
}

func TestDocumentService_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		svc, mStore, mRepo, _ := newDocumentFixture()
		r := strings.NewReader("hello world")

		mStore.On("Put", ctx, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "documents/") && strings.HasSuffix(key, ".pdf")
		}), r, storage.PutObjectOptions{
			Size:        11,
			ContentType: "application/pdf",
			Metadata:    map[string]string{"original-filename": "income.pdf"},
		}).Return(storage.ObjectInfo{
			Key:         "documents/uuid.pdf",
			Size:        11,
			ContentType: "application/pdf",
		}, nil)

		mRepo.On("Create", ctx, mock.MatchedBy(func(doc *model.Document) bool {
			return doc.UserID == "user-1" &&
				doc.DocumentTypeID == "cert-income" &&
				doc.PaymentStatus == model.PaymentStatusPending &&
				doc.StoragePath == "documents/uuid.pdf"
		})).Return(&model.Document{ID: "gen-id"}, nil)

		doc, err := svc.Upload(ctx, "user-1", "cert-income", r, "income.pdf", "application/pdf", 11)
		require.NoError(t, err)
		assert.Equal(t, "gen-id", doc.ID)
		mStore.AssertExpectations(t)
		mRepo.AssertExpectations(t)
	})

	t.Run("nil reader", func(t *testing.T) {
		svc, _, _, _ := newDocumentFixture()
		var r io.Reader
		_, err := svc.Upload(ctx, "user-1", "cert-income", r, "a.pdf", "application/pdf", 1)
		assert.ErrorIs(t, err, ErrReaderNil)
	})

	t.Run("unknown document type", func(t *testing.T) {
		svc, mStore, _, _ := newDocumentFixture()
		_, err := svc.Upload(ctx, "user-1", "nope", strings.NewReader("x"), "a.pdf", "application/pdf", 1)
		assert.ErrorIs(t, err, catalog.ErrUnknownDocumentType)
		mStore.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("repository error rolls back storage", func(t *testing.T) {
		svc, mStore, mRepo, _ := newDocumentFixture()
		r := strings.NewReader("hello")

		mStore.On("Put", ctx, mock.Anything, r, mock.Anything).
			Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
				return storage.ObjectInfo{Key: key}
			}, nil)
		mRepo.On("Create", ctx, mock.Anything).Return(nil, errors.New("db fail"))
		mStore.On("Delete", ctx, mock.Anything).Return(nil)

		_, err := svc.Upload(ctx, "user-1", "cert-income", r, "a.pdf", "application/pdf", 5)
		assert.ErrorContains(t, err, "db save failed: db fail")
		mStore.AssertCalled(t, "Delete", ctx, mock.Anything)
	})
}

func TestDocumentService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("found for owner", func(t *testing.T) {
		svc, _, mRepo, _ := newDocumentFixture()
		mRepo.On("FindByID", ctx, "doc-1").Return(&model.Document{ID: "doc-1", UserID: "user-1"}, nil)

		doc, err := svc.Get(ctx, "user-1", "doc-1")
		require.NoError(t, err)
		assert.Equal(t, "doc-1", doc.ID)
	})

	t.Run("foreign document reads as not found", func(t *testing.T) {
		svc, _, mRepo, _ := newDocumentFixture()
		mRepo.On("FindByID", ctx, "doc-1").Return(&model.Document{ID: "doc-1", UserID: "other"}, nil)

		_, err := svc.Get(ctx, "user-1", "doc-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing row", func(t *testing.T) {
		svc, _, mRepo, _ := newDocumentFixture()
		mRepo.On("FindByID", ctx, "doc-1").Return(nil, sql.ErrNoRows)

		_, err := svc.Get(ctx, "user-1", "doc-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty id", func(t *testing.T) {
		svc, _, _, _ := newDocumentFixture()
		_, err := svc.Get(ctx, "user-1", "")
		assert.ErrorIs(t, err, ErrIDRequired)
	})
}

func TestDocumentService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("unattached document deletes from storage then db", func(t *testing.T) {
		svc, mStore, mRepo, _ := newDocumentFixture()
		mRepo.On("FindByID", ctx, "doc-1").Return(&model.Document{
			ID: "doc-1", UserID: "user-1", StoragePath: "documents/a.pdf",
		}, nil)
		mStore.On("Delete", ctx, "documents/a.pdf").Return(nil)
		mRepo.On("Delete", ctx, "doc-1").Return(nil)

		require.NoError(t, svc.Delete(ctx, "user-1", "doc-1"))
		mStore.AssertExpectations(t)
		mRepo.AssertExpectations(t)
	})

	t.Run("document on a pending order is protected", func(t *testing.T) {
		svc, mStore, mRepo, mOrders := newDocumentFixture()
		mRepo.On("FindByID", ctx, "doc-1").Return(&model.Document{
			ID: "doc-1", UserID: "user-1", OrderID: "ord-1",
		}, nil)
		mOrders.On("FindByID", ctx, "ord-1").Return(&model.Order{
			ID: "ord-1", Status: model.OrderStatusPending,
		}, nil)

		err := svc.Delete(ctx, "user-1", "doc-1")
		assert.ErrorIs(t, err, ErrDocumentInOrder)
		mStore.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("document on a cancelled order deletes", func(t *testing.T) {
		svc, mStore, mRepo, mOrders := newDocumentFixture()
		mRepo.On("FindByID", ctx, "doc-1").Return(&model.Document{
			ID: "doc-1", UserID: "user-1", OrderID: "ord-1", StoragePath: "documents/a.pdf",
		}, nil)
		mOrders.On("FindByID", ctx, "ord-1").Return(&model.Order{
			ID: "ord-1", Status: model.OrderStatusCancelled,
		}, nil)
		mStore.On("Delete", ctx, "documents/a.pdf").Return(nil)
		mRepo.On("Delete", ctx, "doc-1").Return(nil)

		require.NoError(t, svc.Delete(ctx, "user-1", "doc-1"))
	})

	t.Run("storage failure keeps db row", func(t *testing.T) {
		svc, mStore, mRepo, _ := newDocumentFixture()
		mRepo.On("FindByID", ctx, "doc-1").Return(&model.Document{
			ID: "doc-1", UserID: "user-1", StoragePath: "documents/a.pdf",
		}, nil)
		mStore.On("Delete", ctx, "documents/a.pdf").Return(errors.New("s3 down"))

		err := svc.Delete(ctx, "user-1", "doc-1")
		assert.ErrorContains(t, err, "delete storage")
		mRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}
