package refund

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository backs the unit tests with the same transition guard
// semantics as the Postgres repository.
type MemoryRepository struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*Request
	order    []uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{requests: make(map[uuid.UUID]*Request)}
}

func (r *MemoryRepository) Create(ctx context.Context, req *Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.Status = StatusPending
	req.RequestedAt = time.Now().UTC()

	stored := *req
	r.requests[req.ID] = &stored
	r.order = append(r.order, req.ID)
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *req
	return &out, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from Status, t Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return ErrNotFound
	}
	if req.Status != from {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	req.Status = t.To
	if t.Actor != "" {
		actor := t.Actor
		req.ReviewedBy = &actor
		req.ReviewedAt = &now
	}
	if t.Note != "" {
		note := t.Note
		req.ReviewNote = &note
	}
	if t.FailureReason != "" {
		reason := t.FailureReason
		req.FailureReason = &reason
	}
	if t.To == StatusCompleted || t.To == StatusFailed {
		req.ProcessedAt = &now
	}
	return nil
}

func (r *MemoryRepository) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Request, error) {
	return r.filter(func(req *Request) bool { return req.Status == status }, limit, offset), nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Request, error) {
	return r.filter(func(req *Request) bool { return req.UserID == userID }, limit, offset), nil
}

func (r *MemoryRepository) ExistsForPayment(ctx context.Context, paymentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if req.PaymentID != paymentID {
			continue
		}
		switch req.Status {
		case StatusRejected, StatusCancelled, StatusFailed:
		default:
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) filter(keep func(*Request) bool, limit, offset int) []Request {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	matched := make([]Request, 0)
	// Newest first.
	for i := len(r.order) - 1; i >= 0; i-- {
		req := r.requests[r.order[i]]
		if keep(req) {
			matched = append(matched, *req)
		}
	}
	if offset >= len(matched) {
		return []Request{}
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}
