package credit

import "errors"

var (
	// ErrInvalidAmount is returned when amount is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrAmountTooLarge is returned when amount exceeds the per-transaction limit
	ErrAmountTooLarge = errors.New("amount exceeds maximum transaction amount")

	// ErrMaxBalanceExceeded is returned when a credit would push the balance over the cap
	ErrMaxBalanceExceeded = errors.New("operation would exceed maximum balance")

	// ErrInsufficientBalance is returned when a debit would drop the balance
	// below the floor and negative balances are not allowed
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOriginalNotFound is returned when a refund references a transaction
	// that does not exist or belongs to another user
	ErrOriginalNotFound = errors.New("original transaction not found")

	// ErrInvalidType is returned when an operation is called with an entry
	// type it does not support
	ErrInvalidType = errors.New("invalid entry type for operation")
)
