package monitor

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subkeep/subkeep-api/internal/pkg/response"
	"github.com/subkeep/subkeep-api/internal/pkg/validator"
)

type Handler struct {
	monitor *Monitor
}

func NewHandler(m *Monitor) *Handler {
	return &Handler{monitor: m}
}

type pendingRequest struct {
	PaymentID string `json:"payment_id" validate:"required,min=1,max=128"`
	UserID    string `json:"user_id" validate:"required,uuid"`
	Amount    string `json:"amount" validate:"required,money"`
	Provider  string `json:"provider" validate:"max=64"`
}

type webhookRequest struct {
	PaymentID string `json:"payment_id" validate:"required,min=1,max=128"`
	UserID    string `json:"user_id" validate:"required,uuid"`
	Amount    string `json:"amount" validate:"required,money"`
	Status    string `json:"status" validate:"required"`
	Currency  string `json:"currency" validate:"max=3"`
	Provider  string `json:"provider" validate:"max=64"`
}

// AddPending handles POST /payments/pending: registers a payment for
// reconciliation once checkout hands the user off to the provider.
func (h *Handler) AddPending(w http.ResponseWriter, r *http.Request) {
	var req pendingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	userID, _ := uuid.Parse(req.UserID)
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.BadRequest(w, "Invalid amount")
		return
	}

	h.monitor.AddPendingPayment(PendingPayment{
		PaymentID: req.PaymentID,
		UserID:    userID,
		Amount:    amount,
		Provider:  req.Provider,
	})
	response.Created(w, map[string]string{"payment_id": req.PaymentID})
}

// Webhook handles POST /payments/webhook: a pushed provider status goes
// through the same resolution path as the polling loop, so redeliveries
// are absorbed by allocation's idempotency.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	userID, _ := uuid.Parse(req.UserID)
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.BadRequest(w, "Invalid amount")
		return
	}

	p := PendingPayment{
		PaymentID: req.PaymentID,
		UserID:    userID,
		Amount:    amount,
		Provider:  req.Provider,
	}
	st := PaymentStatus{Status: Status(req.Status), Amount: amount, Currency: req.Currency}

	alloc, err := h.monitor.ResolveStatus(r.Context(), p, st)
	if err != nil {
		// Persistence failure; the provider will redeliver.
		response.InternalError(w)
		return
	}
	if alloc == nil {
		response.OK(w, map[string]interface{}{"status": req.Status, "terminal": st.Status.Terminal()})
		return
	}
	response.OK(w, alloc)
}

// Routes returns the payment intake routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/pending", h.AddPending)
	r.Post("/webhook", h.Webhook)
	return r
}
