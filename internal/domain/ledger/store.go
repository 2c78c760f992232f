package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the append-only ledger. Entries are never updated or deleted;
// a user's balance is the sum of their entry amounts.
type Store interface {
	// WithUserLock runs fn inside a transaction holding an exclusive
	// per-user lock, serializing all writers for that user. The lock is
	// released when the transaction commits or rolls back. Writers for
	// other users proceed concurrently.
	WithUserLock(ctx context.Context, userID uuid.UUID, fn func(tx Tx) error) error

	// SumBalance returns the sum of all entry amounts for the user.
	SumBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)

	// History returns entries ordered by recency.
	History(ctx context.Context, q HistoryQuery) ([]Entry, error)

	// FindByPaymentID looks up the entry bound to an external payment id.
	// Returns ErrEntryNotFound when no entry references it.
	FindByPaymentID(ctx context.Context, paymentID string) (*Entry, error)

	// FindByID looks up a single entry.
	FindByID(ctx context.Context, id uuid.UUID) (*Entry, error)
}

// Tx is the view of the ledger inside a per-user critical section.
type Tx interface {
	// SumBalance returns the locked user's balance as of this transaction.
	SumBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)

	// Append commits a new entry. Returns ErrDuplicatePayment if the
	// entry's external payment id is already taken.
	Append(ctx context.Context, e *Entry) (*Entry, error)

	FindByPaymentID(ctx context.Context, paymentID string) (*Entry, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Entry, error)
}
