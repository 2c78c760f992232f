package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const queryTimeout = 3 * time.Second

const entryColumns = `id, user_id, entry_type, amount, balance_before, balance_after,
	description, metadata, external_payment_id, order_id, product_ref, currency, created_at`

// PostgresStore persists ledger entries in the ledger_entries table.
// A partial unique index on external_payment_id enforces at most one
// entry per external payment.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// WithUserLock serializes writers per user id via a transaction-scoped
// advisory lock. pg_advisory_xact_lock releases automatically on commit
// or rollback, so fn never has to manage the lock itself.
func (s *PostgresStore) WithUserLock(ctx context.Context, userID uuid.UUID, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID.String()); err != nil {
		return fmt.Errorf("%w: acquire user lock", ErrInternal)
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return nil
}

func (s *PostgresStore) SumBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return sumBalance(ctx2, s.db, userID)
}

func (s *PostgresStore) History(ctx context.Context, q HistoryQuery) ([]Entry, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	base := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE user_id = $1`
	args := []interface{}{q.UserID}
	idx := 2

	if q.Type != nil && *q.Type != "" {
		base += fmt.Sprintf(" AND entry_type = $%d", idx)
		args = append(args, string(*q.Type))
		idx++
	}
	if q.DateFrom != nil {
		base += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, *q.DateFrom)
		idx++
	}
	if q.DateTo != nil {
		base += fmt.Sprintf(" AND created_at <= $%d", idx)
		args = append(args, *q.DateTo)
		idx++
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	base += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, q.Offset)

	entries := make([]Entry, 0)
	if err := s.db.SelectContext(ctx2, &entries, base, args...); err != nil {
		return nil, fmt.Errorf("%w: history", ErrInternal)
	}
	return entries, nil
}

func (s *PostgresStore) FindByPaymentID(ctx context.Context, paymentID string) (*Entry, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return findByPaymentID(ctx2, s.db, paymentID)
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return findByID(ctx2, s.db, id)
}

// pgTx is the in-transaction view handed to WithUserLock callbacks.
type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) SumBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return sumBalance(ctx, t.tx, userID)
}

func (t *pgTx) FindByPaymentID(ctx context.Context, paymentID string) (*Entry, error) {
	return findByPaymentID(ctx, t.tx, paymentID)
}

func (t *pgTx) FindByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return findByID(ctx, t.tx, id)
}

func (t *pgTx) Append(ctx context.Context, e *Entry) (*Entry, error) {
	if !e.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown entry type %q", ErrInvalidEntry, e.Type)
	}

	committed := *e
	if committed.ID == uuid.Nil {
		committed.ID = uuid.New()
	}

	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO ledger_entries (
			id, user_id, entry_type, amount, balance_before, balance_after,
			description, metadata, external_payment_id, order_id, product_ref, currency
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`,
		committed.ID, committed.UserID, string(committed.Type), committed.Amount,
		committed.BalanceBefore, committed.BalanceAfter, committed.Description,
		committed.Metadata, committed.ExternalPaymentID, committed.OrderID,
		committed.ProductRef, committed.Currency,
	).Scan(&committed.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicatePayment
		}
		return nil, fmt.Errorf("%w: insert entry", ErrInternal)
	}
	return &committed, nil
}

type queryer interface {
	sqlx.QueryerContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func sumBalance(ctx context.Context, q queryer, userID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := q.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: sum balance", ErrInternal)
	}
	return sum, nil
}

func findByPaymentID(ctx context.Context, q queryer, paymentID string) (*Entry, error) {
	var e Entry
	err := q.GetContext(ctx, &e, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE external_payment_id = $1
	`, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("%w: find by payment id", ErrInternal)
	}
	return &e, nil
}

func findByID(ctx context.Context, q queryer, id uuid.UUID) (*Entry, error) {
	var e Entry
	err := q.GetContext(ctx, &e, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("%w: find by id", ErrInternal)
	}
	return &e, nil
}
