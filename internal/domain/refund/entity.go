package refund

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subkeep/subkeep-api/internal/domain/ledger"
)

// Status is a refund request's position in the workflow.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Request tracks one refund from initiation through approval or rejection
// to the ledger reversal. Every transition records its actor and time.
type Request struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	PaymentID     string          `db:"payment_id" json:"payment_id"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Reason        string          `db:"reason" json:"reason"`
	Status        Status          `db:"status" json:"status"`
	RequestedBy   string          `db:"requested_by" json:"requested_by"`
	RequestedAt   time.Time       `db:"requested_at" json:"requested_at"`
	ReviewedBy    *string         `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time      `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNote    *string         `db:"review_note" json:"review_note,omitempty"`
	ProcessedAt   *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	FailureReason *string         `db:"failure_reason" json:"failure_reason,omitempty"`
	Metadata      ledger.Metadata `db:"metadata" json:"metadata,omitempty"`
}
