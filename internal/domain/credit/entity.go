package credit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subkeep/subkeep-api/internal/domain/ledger"
)

// Limits bound every ledger mutation. Zero-valued decimals are replaced by
// defaults in Normalize so a partially filled config still behaves sanely.
type Limits struct {
	MaxTransactionAmount decimal.Decimal
	MaxBalance           decimal.Decimal
	MinBalance           decimal.Decimal
	AllowNegative        bool
}

// Normalize fills in default bounds where the config left zeros.
func (l Limits) Normalize() Limits {
	if l.MaxTransactionAmount.IsZero() {
		l.MaxTransactionAmount = decimal.NewFromInt(100000)
	}
	if l.MaxBalance.IsZero() {
		l.MaxBalance = decimal.NewFromInt(1000000)
	}
	return l
}

// OpContext carries caller-supplied linkage recorded on the ledger entry:
// the external payment id for allocations, order/product references for
// purchases, and the acting admin for back-office operations.
type OpContext struct {
	ExternalPaymentID string
	OrderID           string
	ProductRef        string
	Currency          string
	ActorID           string
	Metadata          map[string]string
}

// Balance is the derived, cacheable aggregate over a user's ledger.
// Available currently always equals Total; Pending is reserved for a
// future holds model.
type Balance struct {
	UserID    uuid.UUID       `json:"user_id"`
	Total     decimal.Decimal `json:"total"`
	Available decimal.Decimal `json:"available"`
	Pending   decimal.Decimal `json:"pending"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Result is returned by every successful credit operation.
type Result struct {
	Entry   *ledger.Entry   `json:"entry"`
	Balance decimal.Decimal `json:"balance"`
}
