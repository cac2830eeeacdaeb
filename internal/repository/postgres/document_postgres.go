package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"docmarket/internal/model"
	"docmarket/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db DBTX
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db DBTX) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `
	id, user_id, document_type_id, filename, storage_path, size, content_type,
	payment_status, order_id, admin_downloaded, signed_path, udin, created_at
`

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (
			id, user_id, document_type_id, filename, storage_path, size,
			content_type, payment_status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.UserID,
		doc.DocumentTypeID,
		doc.Filename,
		doc.StoragePath,
		doc.Size,
		doc.ContentType,
		doc.PaymentStatus,
		doc.CreatedAt,
	)
	return scanDocument(row)
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanDocument(r.db.QueryRowContext(ctx, q, id))
}

// FindByIDs fetches documents matching the given ids. Ids with no row are
// absent from the result.
func (r *DocumentPostgres) FindByIDs(ctx context.Context, ids []string) ([]model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Document, 0, len(ids))
	for rows.Next() {
		d, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ListByUser returns a user's documents using LIMIT/OFFSET pagination and a total count.
func (r *DocumentPostgres) ListByUser(ctx context.Context, userID string, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	const qCount = `SELECT COUNT(*) FROM documents WHERE user_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, userID).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, userID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{Items: items, Total: total}, nil
}

// AttachToOrder sets the order back-reference on the given documents.
func (r *DocumentPostgres) AttachToOrder(ctx context.Context, ids []string, orderID string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, orderID)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	q := `UPDATE documents SET order_id = $1 WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}

// UpdatePaymentStatusByOrder cascades a payment status to an order's
// documents. Only payment_status changes; review fields are untouched.
func (r *DocumentPostgres) UpdatePaymentStatusByOrder(ctx context.Context, orderID string, status model.PaymentStatus) error {
	const q = `UPDATE documents SET payment_status = $2 WHERE order_id = $1`
	_, err := r.db.ExecContext(ctx, q, orderID, status)
	return err
}

// Delete removes a document by ID. It does not return an error if the row does not exist.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	_, _ = res.RowsAffected()
	return nil
}

func scanDocument(row *sql.Row) (*model.Document, error) {
	return scanDocumentRows(row)
}

func scanDocumentRows(row rowScanner) (*model.Document, error) {
	var (
		d       model.Document
		orderID sql.NullString
		signed  sql.NullString
		udin    sql.NullString
	)
	if err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.DocumentTypeID,
		&d.Filename,
		&d.StoragePath,
		&d.Size,
		&d.ContentType,
		&d.PaymentStatus,
		&orderID,
		&d.AdminDownloaded,
		&signed,
		&udin,
		&d.CreatedAt,
	); err != nil {
		return nil, err
	}
	d.OrderID = orderID.String
	d.SignedPath = signed.String
	d.UDIN = udin.String
	return &d, nil
}
