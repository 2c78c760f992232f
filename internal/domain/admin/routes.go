package admin

import (
	"github.com/go-chi/chi/v5"

	"github.com/subkeep/subkeep-api/internal/middleware"
)

// Routes returns the back-office routes. The whole subtree requires an
// acting admin identity.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.AdminActor)

	r.Post("/allocations", h.ManualAllocation)
	r.Post("/credits/grant", h.GrantBonus)

	r.Post("/refunds/{id}/approve", h.ApproveRefund)
	r.Post("/refunds/{id}/reject", h.RejectRefund)
	r.Get("/refunds", h.ListRefunds)

	r.Get("/users/{userID}/balance", h.UserBalance)
	r.Get("/ledger", h.SearchLedger)
	r.Get("/monitor/metrics", h.MonitorMetrics)

	return r
}
