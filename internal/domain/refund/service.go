package refund

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

// Service drives the refund state machine:
//
//	pending -> approved -> processing -> completed
//	pending -> rejected
//	pending -> cancelled
//	processing -> failed
//
// Approval processes the ledger reversal synchronously, so a request never
// sits in processing indefinitely: it resolves to completed or failed
// before ApproveRefund returns.
type Service struct {
	repo      Repository
	credits   *credit.Service
	publisher events.Publisher
}

func NewService(repo Repository, credits *credit.Service, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &Service{repo: repo, credits: credits, publisher: publisher}
}

// InitiateRefund validates eligibility and creates a pending request.
func (s *Service) InitiateRefund(ctx context.Context, paymentID string, userID uuid.UUID, amount decimal.Decimal, reason, requestedBy string) (*Request, error) {
	if !amount.IsPositive() {
		return nil, credit.ErrInvalidAmount
	}

	entry, err := s.credits.FindEntryByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, ledger.ErrEntryNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if entry.UserID != userID {
		return nil, ErrPaymentNotFound
	}
	if amount.GreaterThan(entry.Amount) {
		return nil, ErrAmountExceedsOriginal
	}

	taken, err := s.repo.ExistsForPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrAlreadyRefunded
	}

	req := &Request{
		PaymentID:   paymentID,
		UserID:      userID,
		Amount:      amount,
		Reason:      reason,
		RequestedBy: requestedBy,
		Metadata:    ledger.Metadata{"original_entry_id": entry.ID.String()},
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, err
	}

	log.Info().
		Str("refund_id", req.ID.String()).
		Str("payment_id", paymentID).
		Str("user_id", userID.String()).
		Str("amount", amount.String()).
		Msg("Refund request created")
	return req, nil
}

// ApproveRefund transitions pending -> approved -> processing, applies the
// ledger refund, and resolves to completed or failed.
func (s *Service) ApproveRefund(ctx context.Context, id uuid.UUID, approver, note string) (*Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, id, StatusPending, Transition{To: StatusApproved, Actor: approver, Note: note}); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusApproved, Transition{To: StatusProcessing}); err != nil {
		return nil, err
	}

	var originalID *uuid.UUID
	if raw, ok := req.Metadata["original_entry_id"]; ok {
		if parsed, parseErr := uuid.Parse(raw); parseErr == nil {
			originalID = &parsed
		}
	}

	opCtx := credit.OpContext{
		ActorID: approver,
		Metadata: map[string]string{
			"refund_request_id": req.ID.String(),
			"payment_id":        req.PaymentID,
		},
	}

	result, err := s.credits.Refund(ctx, req.UserID, req.Amount, "refund: "+req.Reason, originalID, opCtx)
	if err != nil {
		if failErr := s.repo.UpdateStatus(ctx, id, StatusProcessing, Transition{To: StatusFailed, FailureReason: err.Error()}); failErr != nil {
			log.Error().Err(failErr).Str("refund_id", id.String()).Msg("Failed to mark refund request failed")
		}
		s.publisher.Publish(ctx, events.Event{
			Type:      events.TypeRefundFailed,
			UserID:    req.UserID,
			PaymentID: req.PaymentID,
			Amount:    req.Amount,
		})
		log.Error().Err(err).Str("refund_id", id.String()).Msg("Refund ledger reversal failed")
		return s.repo.GetByID(ctx, id)
	}

	if err := s.repo.UpdateStatus(ctx, id, StatusProcessing, Transition{To: StatusCompleted}); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.Event{
		Type:      events.TypeRefundCompleted,
		UserID:    req.UserID,
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
	})
	log.Info().
		Str("refund_id", req.ID.String()).
		Str("approver", approver).
		Str("entry_id", result.Entry.ID.String()).
		Str("balance", result.Balance.String()).
		Msg("Refund completed")

	return s.repo.GetByID(ctx, id)
}

// RejectRefund is a terminal transition with no ledger effect.
func (s *Service) RejectRefund(ctx context.Context, id uuid.UUID, approver, reason string) (*Request, error) {
	if err := s.repo.UpdateStatus(ctx, id, StatusPending, Transition{To: StatusRejected, Actor: approver, Note: reason}); err != nil {
		return nil, err
	}
	log.Info().Str("refund_id", id.String()).Str("approver", approver).Msg("Refund rejected")
	return s.repo.GetByID(ctx, id)
}

// CancelRefund withdraws a request. Only valid while still pending.
func (s *Service) CancelRefund(ctx context.Context, id uuid.UUID, actor string) (*Request, error) {
	if err := s.repo.UpdateStatus(ctx, id, StatusPending, Transition{To: StatusCancelled, Actor: actor}); err != nil {
		return nil, err
	}
	log.Info().Str("refund_id", id.String()).Msg("Refund cancelled")
	return s.repo.GetByID(ctx, id)
}

// GetByID returns one refund request.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByStatus returns refund requests in a given state, newest first.
func (s *Service) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Request, error) {
	return s.repo.ListByStatus(ctx, status, limit, offset)
}

// ListByUser returns a user's refund requests, newest first.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Request, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}
