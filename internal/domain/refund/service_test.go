package refund_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subkeep/subkeep-api/internal/domain/credit"
	"github.com/subkeep/subkeep-api/internal/domain/ledger"
	"github.com/subkeep/subkeep-api/internal/domain/refund"
	"github.com/subkeep/subkeep-api/internal/pkg/cache"
)

type fixture struct {
	refunds *refund.Service
	credits *credit.Service
	userID  uuid.UUID
}

// newFixture seeds one user with a 20-credit payment allocation under
// paymentID "pay-1" so refund requests have something to reference.
func newFixture(t *testing.T, limits credit.Limits) *fixture {
	t.Helper()

	credits := credit.NewService(ledger.NewMemoryStore(), cache.NewMemoryCache(), time.Minute, nil, limits)
	svc := refund.NewService(refund.NewMemoryRepository(), credits, nil)
	userID := uuid.New()

	_, err := credits.AddCredits(context.Background(), userID, decimal.NewFromInt(20), ledger.EntryTypeDeposit, "payment allocation", credit.OpContext{
		ExternalPaymentID: "pay-1",
	})
	if err != nil {
		t.Fatalf("seed allocation failed: %v", err)
	}
	return &fixture{refunds: svc, credits: credits, userID: userID}
}

func TestInitiateRefund(t *testing.T) {
	f := newFixture(t, credit.Limits{})
	ctx := context.Background()

	req, err := f.refunds.InitiateRefund(ctx, "pay-1", f.userID, decimal.NewFromInt(20), "service unavailable", f.userID.String())
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if req.Status != refund.StatusPending {
		t.Fatalf("expected pending, got %s", req.Status)
	}
	if req.Metadata["original_entry_id"] == "" {
		t.Fatal("request must reference the original ledger entry")
	}
}

func TestInitiateRefundValidation(t *testing.T) {
	f := newFixture(t, credit.Limits{})
	ctx := context.Background()

	if _, err := f.refunds.InitiateRefund(ctx, "pay-1", f.userID, decimal.Zero, "", "u"); !errors.Is(err, credit.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := f.refunds.InitiateRefund(ctx, "pay-missing", f.userID, decimal.NewFromInt(5), "", "u"); !errors.Is(err, refund.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
	if _, err := f.refunds.InitiateRefund(ctx, "pay-1", uuid.New(), decimal.NewFromInt(5), "", "u"); !errors.Is(err, refund.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound for foreign user, got %v", err)
	}
	if _, err := f.refunds.InitiateRefund(ctx, "pay-1", f.userID, decimal.NewFromInt(25), "", "u"); !errors.Is(err, refund.ErrAmountExceedsOriginal) {
		t.Fatalf("expected ErrAmountExceedsOriginal, got %v", err)
	}
}

func TestInitiateRefundBlocksActiveDuplicate(t *testing.T) {
	f := newFixture(t, credit.Limits{})
	ctx := context.Background()

	first, err := f.refunds.InitiateRefund(ctx, "pay-1", f.userID, decimal.NewFromInt(10), "", "u")
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if _, err := f.refunds.InitiateRefund(ctx, "pay-1", f.userID, decimal.NewFromInt(10), "", "u"); !errors.Is(err, refund.ErrAlreadyRefunded) {
		t.Fatalf("expected ErrAlreadyRefunded, got %v", err)
	}

	// A cancelled request frees the payment for a new attempt.
	if _, err := f.refunds.CancelRefund(ctx, first.ID, "u"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := f.refunds.InitiateRefund(ctx, "pay-1", f.userID, decimal.NewFromInt(10), "", "u"); err != nil {
		t.Fatalf("initiate after cancel failed: %v", err)
	}
}

func TestApproveRefundCompletesAndCredits(t *testing.T) {
	f := newFixture(t, credit.Limits{})
	ctx := context.Background()

	req, err := f.refunds.InitiateRefund(ctx, "pay-1", f.userID, decimal.NewFromInt(20), "cancelled order", f.userID.String())
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	approved, err := f.refunds.ApproveRefund(ctx, req.ID, "admin-1", "verified")
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Status != refund.StatusCompleted {
		t.Fatalf("expected completed, got %s", approved.Status)
	}
	if approved.ReviewedBy == nil || *approved.ReviewedBy != "admin-1" {
		t.Fatalf("approver not recorded: %+v", approved)
	}
	if approved.ProcessedAt == nil {
		t.Fatal("processed_at not set")
	}

	b, err := f.credits.GetBalance(ctx, f.userID)
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	if !b.Total.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected balance 40 after refund, got %s", b.Total)
	}

	refundType := ledger.EntryTypeRefund
	entries, err := f.credits.History(ctx, ledger.HistoryQuery{UserID: f.userID, Type: &refundType})
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one refund entry, got %d", len(entries))
	}
	if entries[0].Metadata["refund_request_id"] != req.ID.String() {
		t.Fatalf("refund entry not linked to request: %v", entries[0].Metadata)
	}
}

func TestApproveRefundTwiceRejected(t *testing.T) {
	f := newFixture(t, credit.Limits{})
	ctx := context.Background()

	req, err := f.refunds.InitiateRefund(ctx, "pay-1", f.userID, decimal.NewFromInt(20), "", "u")
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if _, err := f.refunds.ApproveRefund(ctx, req.ID, "admin-1", ""); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	if _, err := f.refunds.ApproveRefund(ctx, req.ID, "admin-2", ""); !errors.Is(err, refund.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on double approve, got %v", err)
	}

	// The second approval must not have credited again.
	b, _ := f.credits.GetBalance(ctx, f.userID)
	if !b.Total.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected balance 40, got %s", b.Total)
	}
}

func TestApproveRefundLedgerFailureMarksFailed(t *testing.T) {
	// MaxBalance 30 makes the 20-credit reversal overflow the seeded 20.
	f := newFixture(t, credit.Limits{MaxBalance: decimal.NewFromInt(30)})
	ctx := context.Background()

	req, err := f.refunds.InitiateRefund(ctx, "pay-1", f.userID, decimal.NewFromInt(20), "", "u")
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	failed, err := f.refunds.ApproveRefund(ctx, req.ID, "admin-1", "")
	if err != nil {
		t.Fatalf("approve should resolve the request, not fail: %v", err)
	}
	if failed.Status != refund.StatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
	if failed.FailureReason == nil {
		t.Fatal("failure reason not recorded")
	}

	b, _ := f.credits.GetBalance(ctx, f.userID)
	if !b.Total.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("failed refund must not move the balance, got %s", b.Total)
	}
}

func TestRejectAndCancelTransitions(t *testing.T) {
	f := newFixture(t, credit.Limits{})
	ctx := context.Background()

	req, err := f.refunds.InitiateRefund(ctx, "pay-1", f.userID, decimal.NewFromInt(10), "", "u")
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	rejected, err := f.refunds.RejectRefund(ctx, req.ID, "admin-1", "not eligible")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != refund.StatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}

	if _, err := f.refunds.CancelRefund(ctx, req.ID, "u"); !errors.Is(err, refund.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition cancelling a rejected request, got %v", err)
	}
	if _, err := f.refunds.ApproveRefund(ctx, req.ID, "admin-1", ""); !errors.Is(err, refund.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition approving a rejected request, got %v", err)
	}
}

func TestListByStatusAndUser(t *testing.T) {
	f := newFixture(t, credit.Limits{})
	ctx := context.Background()

	first, err := f.refunds.InitiateRefund(ctx, "pay-1", f.userID, decimal.NewFromInt(5), "", "u")
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if _, err := f.refunds.RejectRefund(ctx, first.ID, "admin-1", "no"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	second, err := f.refunds.InitiateRefund(ctx, "pay-1", f.userID, decimal.NewFromInt(5), "", "u")
	if err != nil {
		t.Fatalf("second initiate failed: %v", err)
	}

	pending, err := f.refunds.ListByStatus(ctx, refund.StatusPending, 0, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("expected only the second request pending, got %+v", pending)
	}

	mine, err := f.refunds.ListByUser(ctx, f.userID, 0, 0)
	if err != nil {
		t.Fatalf("list by user failed: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(mine))
	}
	if mine[0].ID != second.ID {
		t.Fatal("expected newest request first")
	}
}
