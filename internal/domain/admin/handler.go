package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subkeep/subkeep-api/internal/domain/allocation"
	"github.com/subkeep/subkeep-api/internal/domain/credit"
	"github.com/subkeep/subkeep-api/internal/domain/ledger"
	"github.com/subkeep/subkeep-api/internal/domain/monitor"
	"github.com/subkeep/subkeep-api/internal/domain/refund"
	"github.com/subkeep/subkeep-api/internal/middleware"
	"github.com/subkeep/subkeep-api/internal/pkg/response"
	"github.com/subkeep/subkeep-api/internal/pkg/validator"
)

// Handler exposes the back office: manual allocation, refund review,
// ledger search and monitor metrics. Every route runs behind the
// AdminActor middleware so the acting admin id is always attached.
type Handler struct {
	allocations *allocation.Service
	credits     *credit.Service
	refunds     *refund.Service
	monitor     *monitor.Monitor
}

func NewHandler(allocations *allocation.Service, credits *credit.Service, refunds *refund.Service, m *monitor.Monitor) *Handler {
	return &Handler{
		allocations: allocations,
		credits:     credits,
		refunds:     refunds,
		monitor:     m,
	}
}

type manualAllocationRequest struct {
	UserID        string `json:"user_id" validate:"required,uuid"`
	PaymentID     string `json:"payment_id" validate:"required,min=1,max=128"`
	Amount        string `json:"amount" validate:"required,money"`
	Currency      string `json:"currency" validate:"max=3"`
	Provider      string `json:"provider" validate:"max=64"`
	Justification string `json:"justification" validate:"required,min=3,max=500"`
}

// ManualAllocation handles POST /admin/allocations. Used when automatic
// reconciliation cannot proceed, e.g. during a provider API outage.
func (h *Handler) ManualAllocation(w http.ResponseWriter, r *http.Request) {
	var req manualAllocationRequest
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
	adminID := middleware.GetAdminID(r.Context())

	alloc, err := h.allocations.AllocateManually(r.Context(), userID, req.PaymentID, amount, allocation.PaymentContext{
		Provider: req.Provider,
		Currency: req.Currency,
	}, adminID, req.Justification)
	if err != nil {
		writeAllocationError(w, err)
		return
	}
	if alloc.Duplicate {
		response.OK(w, alloc)
		return
	}
	response.Created(w, alloc)
}

type grantRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Amount string `json:"amount" validate:"required,money"`
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// GrantBonus handles POST /admin/credits/grant: a goodwill bonus credit
// with the acting admin recorded on the entry.
func (h *Handler) GrantBonus(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
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
	adminID := middleware.GetAdminID(r.Context())

	result, err := h.credits.AddCredits(r.Context(), userID, amount, ledger.EntryTypeBonus, req.Reason, credit.OpContext{
		ActorID: adminID.String(),
	})
	if err != nil {
		writeAllocationError(w, err)
		return
	}
	response.Created(w, result)
}

type reviewRequest struct {
	Note string `json:"note" validate:"max=500"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// ApproveRefund handles POST /admin/refunds/{id}/approve.
func (h *Handler) ApproveRefund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid refund ID")
		return
	}

	// An empty body is fine for approvals without a note.
	var req reviewRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	adminID := middleware.GetAdminID(r.Context())

	request, err := h.refunds.ApproveRefund(r.Context(), id, adminID.String(), req.Note)
	if err != nil {
		writeRefundError(w, err)
		return
	}
	response.OK(w, request)
}

// RejectRefund handles POST /admin/refunds/{id}/reject.
func (h *Handler) RejectRefund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid refund ID")
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	adminID := middleware.GetAdminID(r.Context())

	request, err := h.refunds.RejectRefund(r.Context(), id, adminID.String(), req.Reason)
	if err != nil {
		writeRefundError(w, err)
		return
	}
	response.OK(w, request)
}

// ListRefunds handles GET /admin/refunds?status=pending.
func (h *Handler) ListRefunds(w http.ResponseWriter, r *http.Request) {
	status := refund.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = refund.StatusPending
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	requests, err := h.refunds.ListByStatus(r.Context(), status, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"requests": requests})
}

// UserBalance handles GET /admin/users/{userID}/balance.
func (h *Handler) UserBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	balance, err := h.credits.GetBalance(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, balance)
}

// SearchLedger handles GET /admin/ledger?user_id=...&type=...
func (h *Handler) SearchLedger(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		response.BadRequest(w, "user_id query parameter is required")
		return
	}

	q := ledger.HistoryQuery{UserID: userID}
	if raw := r.URL.Query().Get("type"); raw != "" {
		entryType := ledger.EntryType(raw)
		if !entryType.Valid() {
			response.BadRequest(w, "Invalid entry type")
			return
		}
		q.Type = &entryType
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, "Invalid 'from' timestamp, expected RFC3339")
			return
		}
		q.DateFrom = &from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, "Invalid 'to' timestamp, expected RFC3339")
			return
		}
		q.DateTo = &to
	}
	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	q.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.credits.History(r.Context(), q)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"entries": entries})
}

// MonitorMetrics handles GET /admin/monitor/metrics.
func (h *Handler) MonitorMetrics(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.monitor.Metrics())
}

func writeAllocationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, allocation.ErrMissingPaymentID):
		response.BadRequest(w, "payment id is required")
	case errors.Is(err, allocation.ErrMissingJustification):
		response.BadRequest(w, "justification is required")
	case errors.Is(err, credit.ErrInvalidAmount):
		response.BadRequest(w, "amount must be greater than zero")
	case errors.Is(err, credit.ErrAmountTooLarge):
		response.BadRequest(w, "amount exceeds the per-transaction limit")
	case errors.Is(err, credit.ErrMaxBalanceExceeded):
		response.Conflict(w, "operation would exceed the maximum balance")
	default:
		response.InternalError(w)
	}
}

func writeRefundError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, refund.ErrNotFound):
		response.NotFound(w, "refund request not found")
	case errors.Is(err, refund.ErrInvalidTransition):
		response.Conflict(w, "refund request is not in a state that allows this action")
	default:
		response.InternalError(w)
	}
}
