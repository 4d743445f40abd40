// Package tx defines the unit-of-work contract used by domain services.
package tx

import (
	"context"
)

// Manager runs a unit of work atomically.
// Every document state write and every ledger amount write of one
// operation happen inside a single RunInTransaction call.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error, all writes are rolled back.
	// Nested calls reuse the transaction already carried by ctx.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
