package refund

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

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

type initiateRequest struct {
	PaymentID string `json:"payment_id" validate:"required,min=1,max=128"`
	UserID    string `json:"user_id" validate:"required,uuid"`
	Amount    string `json:"amount" validate:"required,money"`
	Reason    string `json:"reason" validate:"required,min=3,max=500"`
}

// Initiate handles POST /refunds
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
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

	request, err := h.svc.InitiateRefund(r.Context(), req.PaymentID, userID, amount, req.Reason, userID.String())
	if err != nil {
		writeRefundError(w, err)
		return
	}
	response.Created(w, request)
}

// Get handles GET /refunds/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid refund ID")
		return
	}

	request, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeRefundError(w, err)
		return
	}
	response.OK(w, request)
}

// Cancel handles POST /refunds/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid refund ID")
		return
	}

	request, err := h.svc.CancelRefund(r.Context(), id, "user")
	if err != nil {
		writeRefundError(w, err)
		return
	}
	response.OK(w, request)
}

// ListByUser handles GET /refunds/user/{userID}
func (h *Handler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	requests, err := h.svc.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"requests": requests})
}

// Routes returns the user-facing refund routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Initiate)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/cancel", h.Cancel)
	r.Get("/user/{userID}", h.ListByUser)
	return r
}

func writeRefundError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "refund request not found")
	case errors.Is(err, ErrPaymentNotFound):
		response.NotFound(w, "payment has no ledger entry")
	case errors.Is(err, ErrAlreadyRefunded):
		response.Conflict(w, "payment already refunded")
	case errors.Is(err, ErrAmountExceedsOriginal):
		response.BadRequest(w, "refund amount exceeds original payment")
	case errors.Is(err, ErrInvalidTransition):
		response.Conflict(w, "refund request is not in a state that allows this action")
	case errors.Is(err, credit.ErrInvalidAmount):
		response.BadRequest(w, "amount must be greater than zero")
	default:
		response.InternalError(w)
	}
}
