package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subkeep/subkeep-api/internal/domain/credit"
	"github.com/subkeep/subkeep-api/internal/pkg/response"
	"github.com/subkeep/subkeep-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type purchaseRequest struct {
	UserID     string `json:"user_id" validate:"required,uuid"`
	OrderID    string `json:"order_id" validate:"required,min=1,max=128"`
	ProductRef string `json:"product_ref" validate:"required,min=1,max=128"`
	Currency   string `json:"currency" validate:"required,len=3"`
	TermMonths int    `json:"term_months" validate:"gte=0,lte=36"`
	Amount     string `json:"amount" validate:"required,money"`
}

type reverseRequest struct {
	UserID          string `json:"user_id" validate:"required,uuid"`
	PurchaseEntryID string `json:"purchase_entry_id" validate:"required,uuid"`
	Amount          string `json:"amount" validate:"required,money"`
	Reason          string `json:"reason" validate:"required,min=3,max=500"`
}

// Purchase handles POST /checkout/purchase
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
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

	result, err := h.svc.Purchase(r.Context(), userID, Order{
		OrderID:    req.OrderID,
		ProductRef: req.ProductRef,
		Currency:   req.Currency,
		TermMonths: req.TermMonths,
		Amount:     amount,
	})
	if err != nil {
		writeCreditError(w, err)
		return
	}
	response.Created(w, result)
}

// Reverse handles POST /checkout/reverse
func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	var req reverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	userID, _ := uuid.Parse(req.UserID)
	entryID, _ := uuid.Parse(req.PurchaseEntryID)
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.BadRequest(w, "Invalid amount")
		return
	}

	result, err := h.svc.ReverseOrder(r.Context(), userID, entryID, amount, req.Reason)
	if err != nil {
		writeCreditError(w, err)
		return
	}
	response.OK(w, result)
}

// Routes returns the checkout routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/purchase", h.Purchase)
	r.Post("/reverse", h.Reverse)
	return r
}

// writeCreditError maps credit operation failures onto HTTP statuses.
// Validation and conflict failures get specific messages; persistence
// failures get a generic retry-later with the cause logged upstream.
func writeCreditError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, credit.ErrInvalidAmount):
		response.BadRequest(w, "amount must be greater than zero")
	case errors.Is(err, credit.ErrAmountTooLarge):
		response.BadRequest(w, "amount exceeds the per-transaction limit")
	case errors.Is(err, credit.ErrMaxBalanceExceeded):
		response.Conflict(w, "operation would exceed the maximum balance")
	case errors.Is(err, credit.ErrInsufficientBalance):
		response.Conflict(w, "insufficient balance")
	case errors.Is(err, credit.ErrOriginalNotFound):
		response.NotFound(w, "original transaction not found")
	default:
		response.InternalError(w)
	}
}
