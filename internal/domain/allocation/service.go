package allocation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/subkeep/subkeep-api/internal/domain/credit"
	"github.com/subkeep/subkeep-api/internal/domain/ledger"
	"github.com/subkeep/subkeep-api/internal/pkg/events"
)

// Allocation is the outcome of converting one external payment event into
// at most one ledger entry. Duplicate marks an at-least-once redelivery
// that was absorbed without re-crediting; Balance is then the balance the
// original allocation produced.
type Allocation struct {
	Entry     *ledger.Entry   `json:"entry"`
	Balance   decimal.Decimal `json:"balance"`
	Duplicate bool            `json:"duplicate"`
}

// PaymentContext describes the external payment being allocated.
type PaymentContext struct {
	Provider string
	Currency string
	Metadata map[string]string
}

// Service maps external payment ids to ledger entries. The uniqueness
// constraint on external_payment_id is the idempotency key: the existence
// check short-circuits the common redelivery, and the insert race between
// two concurrent deliveries is resolved by catching the constraint
// violation and re-reading the winner's entry.
type Service struct {
	credits   *credit.Service
	publisher events.Publisher
}

func NewService(credits *credit.Service, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &Service{credits: credits, publisher: publisher}
}

// AllocateForPayment credits the user for an external payment exactly once.
// Safe to call any number of times with the same payment id.
func (s *Service) AllocateForPayment(ctx context.Context, userID uuid.UUID, paymentID string, amount decimal.Decimal, pctx PaymentContext) (*Allocation, error) {
	if paymentID == "" {
		return nil, ErrMissingPaymentID
	}

	if existing, err := s.credits.FindEntryByPaymentID(ctx, paymentID); err == nil {
		return s.duplicate(ctx, userID, paymentID, existing), nil
	} else if !errors.Is(err, ledger.ErrEntryNotFound) {
		return nil, err
	}

	opCtx := credit.OpContext{
		ExternalPaymentID: paymentID,
		Currency:          pctx.Currency,
		Metadata:          s.meta(pctx),
	}

	result, err := s.credits.AddCredits(ctx, userID, amount, ledger.EntryTypeDeposit, "payment allocation", opCtx)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicatePayment) {
			// Lost the insert race to a concurrent delivery. The winner's
			// entry is committed, so re-read it as a duplicate.
			existing, readErr := s.credits.FindEntryByPaymentID(ctx, paymentID)
			if readErr != nil {
				return nil, readErr
			}
			return s.duplicate(ctx, userID, paymentID, existing), nil
		}
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("payment_id", paymentID).
		Str("amount", amount.String()).
		Str("entry_id", result.Entry.ID.String()).
		Msg("Payment allocated")

	return &Allocation{Entry: result.Entry, Balance: result.Balance}, nil
}

// AllocateManually is the administrative path used when automatic
// reconciliation cannot proceed. It records the approving admin and a
// justification on the entry, then goes through the same dedup guarantee.
func (s *Service) AllocateManually(ctx context.Context, userID uuid.UUID, paymentID string, amount decimal.Decimal, pctx PaymentContext, adminID uuid.UUID, justification string) (*Allocation, error) {
	if justification == "" {
		return nil, ErrMissingJustification
	}

	if pctx.Metadata == nil {
		pctx.Metadata = map[string]string{}
	}
	pctx.Metadata["approved_by"] = adminID.String()
	pctx.Metadata["justification"] = justification
	pctx.Metadata["manual"] = "true"

	alloc, err := s.AllocateForPayment(ctx, userID, paymentID, amount, pctx)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("admin_id", adminID.String()).
		Str("payment_id", paymentID).
		Bool("duplicate", alloc.Duplicate).
		Msg("Manual allocation processed")
	return alloc, nil
}

func (s *Service) duplicate(ctx context.Context, userID uuid.UUID, paymentID string, existing *ledger.Entry) *Allocation {
	s.publisher.Publish(ctx, events.Event{
		Type:      events.TypeAllocationDuplicate,
		UserID:    userID,
		PaymentID: paymentID,
		Amount:    existing.Amount,
	})

	log.Warn().
		Str("user_id", userID.String()).
		Str("payment_id", paymentID).
		Str("entry_id", existing.ID.String()).
		Msg("Duplicate payment delivery detected, not re-crediting")

	return &Allocation{Entry: existing, Balance: existing.BalanceAfter, Duplicate: true}
}

func (s *Service) meta(pctx PaymentContext) map[string]string {
	meta := map[string]string{}
	for k, v := range pctx.Metadata {
		meta[k] = v
	}
	if pctx.Provider != "" {
		meta["provider"] = pctx.Provider
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
