package credit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/subkeep/subkeep-api/internal/domain/ledger"
	"github.com/subkeep/subkeep-api/internal/pkg/cache"
	"github.com/subkeep/subkeep-api/internal/pkg/events"
)

// Service implements the four credit operations. Every mutation funnels
// through the ledger store's per-user lock, so concurrent operations for
// the same user serialize while different users proceed in parallel.
// Validation and conflict failures come back as sentinel errors; callers
// branch with errors.Is rather than catching panics.
type Service struct {
	store     ledger.Store
	balances  *BalanceCache
	publisher events.Publisher
	limits    Limits
}

func NewService(store ledger.Store, c cache.Cache, ttl time.Duration, publisher events.Publisher, limits Limits) *Service {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &Service{
		store:     store,
		balances:  NewBalanceCache(c, ttl),
		publisher: publisher,
		limits:    limits.Normalize(),
	}
}

// AddCredits appends a positive entry of type deposit or bonus and returns
// the new balance.
func (s *Service) AddCredits(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, entryType ledger.EntryType, description string, opCtx OpContext) (*Result, error) {
	if entryType != ledger.EntryTypeDeposit && entryType != ledger.EntryTypeBonus {
		return nil, ErrInvalidType
	}
	return s.credit(ctx, userID, amount, entryType, description, opCtx)
}

// Debit appends a negative entry of type purchase, withdrawal or
// refund_reversal. The amount is normalized to its positive magnitude
// before the sign is applied.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, entryType ledger.EntryType, description string, opCtx OpContext) (*Result, error) {
	switch entryType {
	case ledger.EntryTypePurchase, ledger.EntryTypeWithdrawal, ledger.EntryTypeRefundReversal:
	default:
		return nil, ErrInvalidType
	}

	amount = amount.Abs()
	if err := s.checkAmount(amount); err != nil {
		return nil, err
	}

	var result *Result
	err := s.store.WithUserLock(ctx, userID, func(tx ledger.Tx) error {
		before, err := tx.SumBalance(ctx, userID)
		if err != nil {
			return err
		}

		after := before.Sub(amount)
		if !s.limits.AllowNegative && after.LessThan(s.limits.MinBalance) {
			return ErrInsufficientBalance
		}

		entry, err := tx.Append(ctx, s.buildEntry(userID, amount.Neg(), before, after, entryType, description, opCtx, nil))
		if err != nil {
			return err
		}
		result = &Result{Entry: entry, Balance: after}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, result, nil)
	return result, nil
}

// Refund appends a positive refund entry. When originalTxID is given the
// referenced entry must exist and belong to the same user; its id is
// recorded in the refund's metadata.
func (s *Service) Refund(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string, originalTxID *uuid.UUID, opCtx OpContext) (*Result, error) {
	if err := s.checkAmount(amount); err != nil {
		return nil, err
	}

	var result *Result
	err := s.store.WithUserLock(ctx, userID, func(tx ledger.Tx) error {
		extra := map[string]string{}
		if originalTxID != nil {
			original, err := tx.FindByID(ctx, *originalTxID)
			if err != nil || original.UserID != userID {
				return ErrOriginalNotFound
			}
			extra["original_transaction_id"] = original.ID.String()
		}

		before, err := tx.SumBalance(ctx, userID)
		if err != nil {
			return err
		}

		after := before.Add(amount)
		if after.GreaterThan(s.limits.MaxBalance) {
			return ErrMaxBalanceExceeded
		}

		entry, err := tx.Append(ctx, s.buildEntry(userID, amount, before, after, ledger.EntryTypeRefund, description, opCtx, extra))
		if err != nil {
			return err
		}
		result = &Result{Entry: entry, Balance: after}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, result, nil)
	return result, nil
}

// ReverseCredits undoes a previously applied refund, e.g. after a failed
// chargeback dispute. It is a debit with type refund_reversal.
func (s *Service) ReverseCredits(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string, opCtx OpContext) (*Result, error) {
	return s.Debit(ctx, userID, amount, ledger.EntryTypeRefundReversal, description, opCtx)
}

// GetBalance reads the user's balance through the cache. The ledger is
// authoritative; a cached value is at most one TTL stale.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	if b, ok := s.balances.Get(ctx, userID); ok {
		return b, nil
	}

	total, err := s.store.SumBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	b := &Balance{
		UserID:    userID,
		Total:     total,
		Available: total,
		Pending:   decimal.Zero,
		UpdatedAt: time.Now().UTC(),
	}
	s.balances.Set(ctx, b)
	return b, nil
}

// History returns the user's ledger entries, newest first.
func (s *Service) History(ctx context.Context, q ledger.HistoryQuery) ([]ledger.Entry, error) {
	return s.store.History(ctx, q)
}

// FindEntryByPaymentID exposes the dedup lookup to the allocation layer.
func (s *Service) FindEntryByPaymentID(ctx context.Context, paymentID string) (*ledger.Entry, error) {
	return s.store.FindByPaymentID(ctx, paymentID)
}

func (s *Service) credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, entryType ledger.EntryType, description string, opCtx OpContext) (*Result, error) {
	if err := s.checkAmount(amount); err != nil {
		return nil, err
	}

	var result *Result
	err := s.store.WithUserLock(ctx, userID, func(tx ledger.Tx) error {
		before, err := tx.SumBalance(ctx, userID)
		if err != nil {
			return err
		}

		after := before.Add(amount)
		if after.GreaterThan(s.limits.MaxBalance) {
			return ErrMaxBalanceExceeded
		}

		entry, err := tx.Append(ctx, s.buildEntry(userID, amount, before, after, entryType, description, opCtx, nil))
		if err != nil {
			return err
		}
		result = &Result{Entry: entry, Balance: after}
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := &events.Event{
		Type:      events.TypeCredited,
		UserID:    userID,
		PaymentID: opCtx.ExternalPaymentID,
		Amount:    amount,
	}
	s.afterWrite(ctx, result, event)
	return result, nil
}

func (s *Service) checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(s.limits.MaxTransactionAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

func (s *Service) buildEntry(userID uuid.UUID, signedAmount, before, after decimal.Decimal, entryType ledger.EntryType, description string, opCtx OpContext, extra map[string]string) *ledger.Entry {
	meta := ledger.Metadata{}
	for k, v := range opCtx.Metadata {
		meta[k] = v
	}
	for k, v := range extra {
		meta[k] = v
	}
	if opCtx.ActorID != "" {
		meta["actor_id"] = opCtx.ActorID
	}
	if len(meta) == 0 {
		meta = nil
	}

	e := &ledger.Entry{
		UserID:        userID,
		Type:          entryType,
		Amount:        signedAmount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   description,
		Metadata:      meta,
		Currency:      opCtx.Currency,
	}
	if opCtx.ExternalPaymentID != "" {
		pid := opCtx.ExternalPaymentID
		e.ExternalPaymentID = &pid
	}
	if opCtx.OrderID != "" {
		oid := opCtx.OrderID
		e.OrderID = &oid
	}
	if opCtx.ProductRef != "" {
		ref := opCtx.ProductRef
		e.ProductRef = &ref
	}
	return e
}

// afterWrite runs the post-commit side effects shared by every operation:
// cache invalidation, optional event publication and the audit line.
func (s *Service) afterWrite(ctx context.Context, r *Result, event *events.Event) {
	s.balances.Invalidate(ctx, r.Entry.UserID)

	if event != nil {
		s.publisher.Publish(ctx, *event)
	}

	log.Info().
		Str("user_id", r.Entry.UserID.String()).
		Str("entry_id", r.Entry.ID.String()).
		Str("type", string(r.Entry.Type)).
		Str("amount", r.Entry.Amount.String()).
		Str("balance_before", r.Entry.BalanceBefore.String()).
		Str("balance_after", r.Entry.BalanceAfter.String()).
		Msg("Ledger entry committed")
}
