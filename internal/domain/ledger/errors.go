package ledger

import "errors"

var (
	// ErrDuplicatePayment is returned when an append references an
	// external payment id that is already bound to a committed entry.
	ErrDuplicatePayment = errors.New("external payment id already allocated")

	// ErrEntryNotFound is returned when a lookup matches no entry.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrInvalidEntry is returned when an entry fails basic shape checks
	// before it reaches the store.
	ErrInvalidEntry = errors.New("invalid ledger entry")

	ErrInternal = errors.New("ledger store failure")
)
