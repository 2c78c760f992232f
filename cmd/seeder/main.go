package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subkeep/subkeep-api/internal/domain/allocation"
	"github.com/subkeep/subkeep-api/internal/domain/credit"
	"github.com/subkeep/subkeep-api/internal/domain/ledger"
	"github.com/subkeep/subkeep-api/internal/pkg/cache"
	"github.com/subkeep/subkeep-api/internal/pkg/events"
)

// Runs a full credit lifecycle against the in-memory store: deposit,
// purchase, refund and a deliberately duplicated payment allocation.
// Useful as a smoke check without PostgreSQL or Redis around.
func main() {
	ctx := context.Background()

	store := ledger.NewMemoryStore()
	credits := credit.NewService(store, cache.NewMemoryCache(), 30*time.Second, events.LogPublisher{}, credit.Limits{})
	allocations := allocation.NewService(credits, events.LogPublisher{})

	userID := uuid.New()
	log.Printf("--- Seeding ledger for user %s ---", userID)

	mustBalance := func(step string) {
		balance, err := credits.GetBalance(ctx, userID)
		if err != nil {
			log.Fatalf("%s: balance lookup failed: %v", step, err)
		}
		log.Printf("%-28s balance=%s", step, balance.Total)
	}

	if _, err := credits.AddCredits(ctx, userID, decimal.NewFromInt(50), ledger.EntryTypeBonus, "welcome credit", credit.OpContext{}); err != nil {
		log.Fatalf("welcome credit failed: %v", err)
	}
	mustBalance("after welcome credit")

	if _, err := credits.AddCredits(ctx, userID, decimal.NewFromInt(50), ledger.EntryTypeDeposit, "top-up", credit.OpContext{}); err != nil {
		log.Fatalf("deposit failed: %v", err)
	}
	mustBalance("after deposit")

	purchase, err := credits.Debit(ctx, userID, decimal.NewFromInt(30), ledger.EntryTypePurchase, "netflix 1-month slot", credit.OpContext{
		OrderID:    "ord-demo-1",
		ProductRef: "netflix-1m",
	})
	if err != nil {
		log.Fatalf("purchase failed: %v", err)
	}
	mustBalance("after purchase")

	if _, err := credits.Refund(ctx, userID, decimal.NewFromInt(30), "order cancelled", &purchase.Entry.ID, credit.OpContext{}); err != nil {
		log.Fatalf("refund failed: %v", err)
	}
	mustBalance("after refund")

	// Same payment id twice: the second call must dedupe, not double-credit.
	first, err := allocations.AllocateForPayment(ctx, userID, "pay-demo-1", decimal.NewFromInt(20), allocation.PaymentContext{Provider: "demo"})
	if err != nil {
		log.Fatalf("allocation failed: %v", err)
	}
	second, err := allocations.AllocateForPayment(ctx, userID, "pay-demo-1", decimal.NewFromInt(20), allocation.PaymentContext{Provider: "demo"})
	if err != nil {
		log.Fatalf("repeat allocation failed: %v", err)
	}
	log.Printf("allocation dedup: first duplicate=%v second duplicate=%v", first.Duplicate, second.Duplicate)
	mustBalance("after payment allocation")

	entries, err := credits.History(ctx, ledger.HistoryQuery{UserID: userID})
	if err != nil {
		log.Fatalf("history failed: %v", err)
	}
	log.Printf("--- %d ledger entries ---", len(entries))
	for _, e := range entries {
		log.Printf("%-16s %8s  balance %s -> %s  %s", e.Type, e.Amount, e.BalanceBefore, e.BalanceAfter, e.Description)
	}
}
