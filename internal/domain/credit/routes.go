package credit

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns the user-facing balance and ledger routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{userID}/balance", h.Balance)
	r.Get("/{userID}/ledger", h.History)
	return r
}
