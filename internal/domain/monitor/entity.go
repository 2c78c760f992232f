package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the last-known external state of a payment.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// Terminal reports whether no further transitions are expected from the
// provider for this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// PaymentStatus is what a provider reports for one payment.
type PaymentStatus struct {
	Status   Status          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	PaidAt   *time.Time      `json:"paid_at,omitempty"`
}

// StatusSource abstracts the external payment providers, push and poll
// alike. Wire formats are the caller's problem; the loop only needs this.
type StatusSource interface {
	GetStatus(ctx context.Context, paymentID string) (*PaymentStatus, error)
}

// PendingPayment identifies one payment the loop is reconciling.
type PendingPayment struct {
	PaymentID string          `json:"payment_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Provider  string          `json:"provider,omitempty"`
}

// record is the loop's operational state per payment. It is superseded
// once the payment reaches a terminal external status.
type record struct {
	payment    PendingPayment
	addedAt    time.Time
	lastStatus Status
	checks     int
}
