package credit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subkeep/subkeep-api/internal/domain/credit"
	"github.com/subkeep/subkeep-api/internal/domain/ledger"
	"github.com/subkeep/subkeep-api/internal/pkg/cache"
)

func newTestService(limits credit.Limits) *credit.Service {
	return credit.NewService(ledger.NewMemoryStore(), cache.NewMemoryCache(), time.Minute, nil, limits)
}

func mustBalance(t *testing.T, svc *credit.Service, userID uuid.UUID, want int64) {
	t.Helper()
	b, err := svc.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	if !b.Total.Equal(decimal.NewFromInt(want)) {
		t.Fatalf("expected balance %d, got %s", want, b.Total)
	}
}

func TestCreditLifecycle(t *testing.T) {
	svc := newTestService(credit.Limits{})
	userID := uuid.New()
	ctx := context.Background()

	// Start the user at 50, then deposit, purchase and refund.
	if _, err := svc.AddCredits(ctx, userID, decimal.NewFromInt(50), ledger.EntryTypeBonus, "welcome", credit.OpContext{}); err != nil {
		t.Fatalf("bonus failed: %v", err)
	}
	mustBalance(t, svc, userID, 50)

	if _, err := svc.AddCredits(ctx, userID, decimal.NewFromInt(50), ledger.EntryTypeDeposit, "top-up", credit.OpContext{}); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	mustBalance(t, svc, userID, 100)

	purchase, err := svc.Debit(ctx, userID, decimal.NewFromInt(30), ledger.EntryTypePurchase, "subscription slot", credit.OpContext{})
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	mustBalance(t, svc, userID, 70)

	refund, err := svc.Refund(ctx, userID, decimal.NewFromInt(30), "order cancelled", &purchase.Entry.ID, credit.OpContext{})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	mustBalance(t, svc, userID, 100)

	if got := refund.Entry.Metadata["original_transaction_id"]; got != purchase.Entry.ID.String() {
		t.Fatalf("refund must reference the purchase entry, got %q", got)
	}
}

func TestAddCreditsRejectsDebitTypes(t *testing.T) {
	svc := newTestService(credit.Limits{})
	_, err := svc.AddCredits(context.Background(), uuid.New(), decimal.NewFromInt(10), ledger.EntryTypePurchase, "", credit.OpContext{})
	if !errors.Is(err, credit.ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestAmountBounds(t *testing.T) {
	svc := newTestService(credit.Limits{
		MaxTransactionAmount: decimal.NewFromInt(100),
		MaxBalance:           decimal.NewFromInt(150),
	})
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.AddCredits(ctx, userID, decimal.NewFromInt(-5), ledger.EntryTypeDeposit, "", credit.OpContext{}); !errors.Is(err, credit.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative amount, got %v", err)
	}
	if _, err := svc.AddCredits(ctx, userID, decimal.Zero, ledger.EntryTypeDeposit, "", credit.OpContext{}); !errors.Is(err, credit.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero amount, got %v", err)
	}
	if _, err := svc.AddCredits(ctx, userID, decimal.NewFromInt(101), ledger.EntryTypeDeposit, "", credit.OpContext{}); !errors.Is(err, credit.ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}

	if _, err := svc.AddCredits(ctx, userID, decimal.NewFromInt(100), ledger.EntryTypeDeposit, "", credit.OpContext{}); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if _, err := svc.AddCredits(ctx, userID, decimal.NewFromInt(100), ledger.EntryTypeDeposit, "", credit.OpContext{}); !errors.Is(err, credit.ErrMaxBalanceExceeded) {
		t.Fatalf("expected ErrMaxBalanceExceeded, got %v", err)
	}
	mustBalance(t, svc, userID, 100)
}

func TestInsufficientBalanceLeavesLedgerUntouched(t *testing.T) {
	svc := newTestService(credit.Limits{})
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.AddCredits(ctx, userID, decimal.NewFromInt(20), ledger.EntryTypeDeposit, "", credit.OpContext{}); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	_, err := svc.Debit(ctx, userID, decimal.NewFromInt(30), ledger.EntryTypePurchase, "", credit.OpContext{})
	if !errors.Is(err, credit.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	mustBalance(t, svc, userID, 20)

	entries, err := svc.History(ctx, ledger.HistoryQuery{UserID: userID})
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("failed debit must not append an entry, got %d entries", len(entries))
	}
}

func TestNegativeBalanceAllowed(t *testing.T) {
	svc := newTestService(credit.Limits{AllowNegative: true})
	userID := uuid.New()

	if _, err := svc.Debit(context.Background(), userID, decimal.NewFromInt(30), ledger.EntryTypeWithdrawal, "", credit.OpContext{}); err != nil {
		t.Fatalf("overdraft debit failed: %v", err)
	}
	mustBalance(t, svc, userID, -30)
}

func TestRefundRequiresExistingOriginal(t *testing.T) {
	svc := newTestService(credit.Limits{})
	userID := uuid.New()
	ctx := context.Background()

	missing := uuid.New()
	if _, err := svc.Refund(ctx, userID, decimal.NewFromInt(10), "", &missing, credit.OpContext{}); !errors.Is(err, credit.ErrOriginalNotFound) {
		t.Fatalf("expected ErrOriginalNotFound, got %v", err)
	}

	// An entry belonging to another user is equally invalid.
	other := uuid.New()
	deposit, err := svc.AddCredits(ctx, other, decimal.NewFromInt(10), ledger.EntryTypeDeposit, "", credit.OpContext{})
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if _, err := svc.Refund(ctx, userID, decimal.NewFromInt(10), "", &deposit.Entry.ID, credit.OpContext{}); !errors.Is(err, credit.ErrOriginalNotFound) {
		t.Fatalf("expected ErrOriginalNotFound for foreign entry, got %v", err)
	}
}

func TestRefundReverseRoundTrip(t *testing.T) {
	svc := newTestService(credit.Limits{})
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.AddCredits(ctx, userID, decimal.NewFromInt(100), ledger.EntryTypeDeposit, "", credit.OpContext{}); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if _, err := svc.Refund(ctx, userID, decimal.NewFromInt(40), "chargeback", nil, credit.OpContext{}); err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	mustBalance(t, svc, userID, 140)

	if _, err := svc.ReverseCredits(ctx, userID, decimal.NewFromInt(40), "chargeback lost", credit.OpContext{}); err != nil {
		t.Fatalf("reverse failed: %v", err)
	}
	mustBalance(t, svc, userID, 100)
}

func TestConcurrentOperationsNoLostUpdates(t *testing.T) {
	svc := newTestService(credit.Limits{})
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.AddCredits(ctx, userID, decimal.NewFromInt(100), ledger.EntryTypeDeposit, "seed", credit.OpContext{}); err != nil {
		t.Fatalf("seed deposit failed: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AddCredits(ctx, userID, decimal.NewFromInt(5), ledger.EntryTypeDeposit, "", credit.OpContext{}); err != nil {
				t.Errorf("concurrent deposit failed: %v", err)
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Debit(ctx, userID, decimal.NewFromInt(5), ledger.EntryTypePurchase, "", credit.OpContext{}); err != nil {
				t.Errorf("concurrent debit failed: %v", err)
			}
		}()
	}
	wg.Wait()

	// Deposits and debits cancel out exactly when none are lost.
	mustBalance(t, svc, userID, 100)
}

func TestBalanceCacheInvalidatedOnWrite(t *testing.T) {
	svc := newTestService(credit.Limits{})
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.AddCredits(ctx, userID, decimal.NewFromInt(50), ledger.EntryTypeDeposit, "", credit.OpContext{}); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	mustBalance(t, svc, userID, 50) // primes the cache

	if _, err := svc.Debit(ctx, userID, decimal.NewFromInt(20), ledger.EntryTypePurchase, "", credit.OpContext{}); err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	// The write invalidated the cached 50, so this read sees 30.
	mustBalance(t, svc, userID, 30)
}

func TestDebitNormalizesSign(t *testing.T) {
	svc := newTestService(credit.Limits{})
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.AddCredits(ctx, userID, decimal.NewFromInt(50), ledger.EntryTypeDeposit, "", credit.OpContext{}); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	result, err := svc.Debit(ctx, userID, decimal.NewFromInt(-20), ledger.EntryTypePurchase, "", credit.OpContext{})
	if err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if !result.Entry.Amount.Equal(decimal.NewFromInt(-20)) {
		t.Fatalf("expected ledger amount -20, got %s", result.Entry.Amount)
	}
	mustBalance(t, svc, userID, 30)
}
