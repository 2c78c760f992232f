package refund

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Transition mutates a request's workflow fields alongside the status
// change so the whole transition lands in one UPDATE.
type Transition struct {
	To            Status
	Actor         string
	Note          string
	FailureReason string
}

// Repository persists refund requests.
type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	// UpdateStatus applies t only if the request is currently in `from`;
	// returns ErrInvalidTransition otherwise. This is the guard that makes
	// concurrent approvals lose cleanly.
	UpdateStatus(ctx context.Context, id uuid.UUID, from Status, t Transition) error
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Request, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Request, error)
	ExistsForPayment(ctx context.Context, paymentID string) (bool, error)
}

// PostgresRepository stores refund requests in the refund_requests table.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const requestColumns = `id, payment_id, user_id, amount, reason, status, requested_by, requested_at,
	reviewed_by, reviewed_at, review_note, processed_at, failure_reason, metadata`

func (r *PostgresRepository) Create(ctx context.Context, req *Request) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.Status = StatusPending

	err := r.db.QueryRowxContext(ctx2, `
		INSERT INTO refund_requests (id, payment_id, user_id, amount, reason, status, requested_by, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING requested_at
	`, req.ID, req.PaymentID, req.UserID, req.Amount, req.Reason, string(req.Status), req.RequestedBy, req.Metadata).
		Scan(&req.RequestedAt)
	if err != nil {
		return fmt.Errorf("%w: insert request", ErrInternal)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var req Request
	err := r.db.GetContext(ctx2, &req, `SELECT `+requestColumns+` FROM refund_requests WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get request", ErrInternal)
	}
	return &req, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from Status, t Transition) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `UPDATE refund_requests SET status = $3`
	args := []interface{}{id, string(from), string(t.To)}
	idx := 4

	if t.Actor != "" {
		query += fmt.Sprintf(", reviewed_by = $%d, reviewed_at = NOW()", idx)
		args = append(args, t.Actor)
		idx++
	}
	if t.Note != "" {
		query += fmt.Sprintf(", review_note = $%d", idx)
		args = append(args, t.Note)
		idx++
	}
	if t.FailureReason != "" {
		query += fmt.Sprintf(", failure_reason = $%d", idx)
		args = append(args, t.FailureReason)
		idx++
	}
	if t.To == StatusCompleted || t.To == StatusFailed {
		query += ", processed_at = NOW()"
	}
	query += ` WHERE id = $1 AND status = $2`

	result, err := r.db.ExecContext(ctx2, query, args...)
	if err != nil {
		return fmt.Errorf("%w: update status", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		// Either the id is unknown or another actor transitioned it first.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrInvalidTransition
	}
	return nil
}

func (r *PostgresRepository) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Request, error) {
	return r.list(ctx, `WHERE status = $1`, string(status), limit, offset)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Request, error) {
	return r.list(ctx, `WHERE user_id = $1`, userID, limit, offset)
}

func (r *PostgresRepository) list(ctx context.Context, where string, arg interface{}, limit, offset int) ([]Request, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	requests := make([]Request, 0)
	err := r.db.SelectContext(ctx2, &requests, `
		SELECT `+requestColumns+`
		FROM refund_requests `+where+`
		ORDER BY requested_at DESC
		LIMIT $2 OFFSET $3
	`, arg, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list requests", ErrInternal)
	}
	return requests, nil
}

func (r *PostgresRepository) ExistsForPayment(ctx context.Context, paymentID string) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	err := r.db.GetContext(ctx2, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM refund_requests
			WHERE payment_id = $1 AND status NOT IN ('rejected', 'cancelled', 'failed')
		)
	`, paymentID)
	if err != nil {
		return false, fmt.Errorf("%w: exists for payment", ErrInternal)
	}
	return exists, nil
}
