package refund

import "errors"

var (
	// ErrNotFound is returned when no refund request matches the id
	ErrNotFound = errors.New("refund request not found")

	// ErrInvalidTransition is returned when a transition is attempted from
	// a status that does not allow it; concurrent approvals lose with this
	ErrInvalidTransition = errors.New("refund request is not in a state that allows this transition")

	// ErrPaymentNotFound is returned when the refunded payment has no
	// ledger entry
	ErrPaymentNotFound = errors.New("payment has no ledger entry")

	// ErrAlreadyRefunded is returned when a refund entry already
	// references the payment's ledger entry
	ErrAlreadyRefunded = errors.New("payment already refunded")

	// ErrAmountExceedsOriginal is returned when the requested amount is
	// larger than the original payment
	ErrAmountExceedsOriginal = errors.New("refund amount exceeds original payment")

	ErrInternal = errors.New("refund store failure")
)
