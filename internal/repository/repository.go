package repository

import "context"

// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g. postgres) inside this directory.

// Repositories bundles the stores a unit of work operates over. Inside
// Atomic.WithinTx every repository is bound to the same database transaction.
type Repositories struct {
	Orders       OrderRepository
	Transactions TransactionRepository
	Documents    DocumentRepository
}

// Atomic runs a function whose repository writes must commit together or not
// at all. Settlement touches an order, its documents, and a ledger row; a
// torn write between those is a financial inconsistency, not a nuisance.
type Atomic interface {
	WithinTx(ctx context.Context, fn func(r Repositories) error) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
