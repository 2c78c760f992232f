package checkout

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subkeep/subkeep-api/internal/domain/credit"
	"github.com/subkeep/subkeep-api/internal/domain/ledger"
)

// Order describes one storefront purchase settled from the credit balance.
type Order struct {
	OrderID    string
	ProductRef string
	Currency   string
	TermMonths int
	Amount     decimal.Decimal
}

// Service is the order flow's entry into the ledger. Purchases debit the
// balance with the order context attached as metadata for audit and
// display; reversals credit it back referencing the purchase entry.
type Service struct {
	credits *credit.Service
}

func NewService(credits *credit.Service) *Service {
	return &Service{credits: credits}
}

// Purchase debits the user's balance for an order.
func (s *Service) Purchase(ctx context.Context, userID uuid.UUID, order Order) (*credit.Result, error) {
	meta := map[string]string{}
	if order.TermMonths > 0 {
		meta["term_months"] = strconv.Itoa(order.TermMonths)
	}

	opCtx := credit.OpContext{
		OrderID:    order.OrderID,
		ProductRef: order.ProductRef,
		Currency:   order.Currency,
		Metadata:   meta,
	}

	desc := fmt.Sprintf("purchase %s", order.ProductRef)
	return s.credits.Debit(ctx, userID, order.Amount, ledger.EntryTypePurchase, desc, opCtx)
}

// ReverseOrder refunds a purchase back to the balance, referencing the
// original purchase entry.
func (s *Service) ReverseOrder(ctx context.Context, userID uuid.UUID, purchaseEntryID uuid.UUID, amount decimal.Decimal, reason string) (*credit.Result, error) {
	opCtx := credit.OpContext{
		Metadata: map[string]string{"reversal_reason": reason},
	}
	return s.credits.Refund(ctx, userID, amount, "order reversal", &purchaseEntryID, opCtx)
}
