package mocks

import (
	"context"

	"docmarket/internal/repository"
)

// FakeAtomic satisfies repository.Atomic for tests by running the unit of
// work against a fixed set of (usually mock) repositories, with no real
// transaction underneath.
type FakeAtomic struct {
	Repos repository.Repositories
	// Err, when set, is returned without invoking the unit of work.
	Err error
	// Calls counts how many units of work ran.
	Calls int
}

func (f *FakeAtomic) WithinTx(ctx context.Context, fn func(r repository.Repositories) error) error {
	if f.Err != nil {
		return f.Err
	}
	f.Calls++
	return fn(f.Repos)
}
