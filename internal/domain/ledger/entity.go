package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType defines supported ledger entry types.
type EntryType string

const (
	EntryTypeDeposit        EntryType = "deposit"
	EntryTypePurchase       EntryType = "purchase"
	EntryTypeRefund         EntryType = "refund"
	EntryTypeWithdrawal     EntryType = "withdrawal"
	EntryTypeBonus          EntryType = "bonus"
	EntryTypeRefundReversal EntryType = "refund_reversal"
)

// IsCredit reports whether entries of this type carry a positive amount.
func (t EntryType) IsCredit() bool {
	switch t {
	case EntryTypeDeposit, EntryTypeRefund, EntryTypeBonus:
		return true
	}
	return false
}

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeDeposit, EntryTypePurchase, EntryTypeRefund,
		EntryTypeWithdrawal, EntryTypeBonus, EntryTypeRefundReversal:
		return true
	}
	return false
}

// Entry is one immutable row in the append-only credit ledger.
// Amount is signed: credits positive, debits negative. BalanceBefore and
// BalanceAfter are audit snapshots taken at write time; the current balance
// is always the sum of all entry amounts for the user, never these fields.
type Entry struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	UserID            uuid.UUID       `db:"user_id" json:"user_id"`
	Type              EntryType       `db:"entry_type" json:"type"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	BalanceBefore     decimal.Decimal `db:"balance_before" json:"balance_before"`
	BalanceAfter      decimal.Decimal `db:"balance_after" json:"balance_after"`
	Description       string          `db:"description" json:"description"`
	Metadata          Metadata        `db:"metadata" json:"metadata,omitempty"`
	ExternalPaymentID *string         `db:"external_payment_id" json:"external_payment_id,omitempty"`
	OrderID           *string         `db:"order_id" json:"order_id,omitempty"`
	ProductRef        *string         `db:"product_ref" json:"product_ref,omitempty"`
	Currency          string          `db:"currency" json:"currency,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// Pagination controls simple list pagination.
type Pagination struct {
	Limit  int
	Offset int
}

// HistoryQuery filters ledger history reads.
type HistoryQuery struct {
	UserID   uuid.UUID
	Type     *EntryType
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}
