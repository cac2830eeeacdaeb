package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"docmarket/internal/repository"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx, so the
// same repository code serves both plain calls and transactional units.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wires the Postgres repositories and implements repository.Atomic.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ repository.Atomic = (*Store)(nil)

// Repositories returns repositories bound to the connection pool, for
// operations that do not need transactional coupling.
func (s *Store) Repositories() repository.Repositories {
	return bind(s.db)
}

// WithinTx runs fn with repositories bound to a single database transaction.
// Any error from fn rolls the whole unit back.
func (s *Store) WithinTx(ctx context.Context, fn func(r repository.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(bind(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func bind(db DBTX) repository.Repositories {
	return repository.Repositories{
		Orders:       NewOrderPostgres(db),
		Transactions: NewTransactionPostgres(db),
		Documents:    NewDocumentPostgres(db),
	}
}
