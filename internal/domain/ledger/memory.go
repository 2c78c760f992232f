package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Store with the same semantics as the
// Postgres store: per-user write serialization, atomic appends and a
// global uniqueness guarantee on external payment ids. It backs the unit
// tests and the demo seeder.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   []Entry
	byID      map[uuid.UUID]int
	byPayment map[string]int
	reserved  map[string]struct{}

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:      make(map[uuid.UUID]int),
		byPayment: make(map[string]int),
		reserved:  make(map[string]struct{}),
		locks:     make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *MemoryStore) userLock(userID uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

func (s *MemoryStore) WithUserLock(ctx context.Context, userID uuid.UUID, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	tx := &memTx{store: s, userID: userID}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) SumBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sumLocked(userID, nil), nil
}

func (s *MemoryStore) History(ctx context.Context, q HistoryQuery) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Entry, 0)
	for _, e := range s.entries {
		if e.UserID != q.UserID {
			continue
		}
		if q.Type != nil && *q.Type != "" && e.Type != *q.Type {
			continue
		}
		if q.DateFrom != nil && e.CreatedAt.Before(*q.DateFrom) {
			continue
		}
		if q.DateTo != nil && e.CreatedAt.After(*q.DateTo) {
			continue
		}
		matched = append(matched, e)
	}

	// Newest first; appends are ordered so reversing insertion order is
	// equivalent to ORDER BY created_at DESC.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if q.Offset >= len(matched) {
		return []Entry{}, nil
	}
	matched = matched[q.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemoryStore) FindByPaymentID(ctx context.Context, paymentID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.byPayment[paymentID]; ok {
		e := s.entries[i]
		return &e, nil
	}
	return nil, ErrEntryNotFound
}

func (s *MemoryStore) FindByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.byID[id]; ok {
		e := s.entries[i]
		return &e, nil
	}
	return nil, ErrEntryNotFound
}

func (s *MemoryStore) sumLocked(userID uuid.UUID, extra []Entry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range s.entries {
		if e.UserID == userID {
			sum = sum.Add(e.Amount)
		}
	}
	for _, e := range extra {
		if e.UserID == userID {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// memTx buffers appends until the enclosing WithUserLock call returns,
// emulating transaction commit/rollback. External payment ids are reserved
// at append time so a concurrent writer for another user cannot claim the
// same id while this transaction is open.
type memTx struct {
	store   *MemoryStore
	userID  uuid.UUID
	pending []Entry
}

func (t *memTx) SumBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.sumLocked(userID, t.pending), nil
}

func (t *memTx) FindByPaymentID(ctx context.Context, paymentID string) (*Entry, error) {
	for i := range t.pending {
		if t.pending[i].ExternalPaymentID != nil && *t.pending[i].ExternalPaymentID == paymentID {
			e := t.pending[i]
			return &e, nil
		}
	}
	return t.store.FindByPaymentID(ctx, paymentID)
}

func (t *memTx) FindByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	for i := range t.pending {
		if t.pending[i].ID == id {
			e := t.pending[i]
			return &e, nil
		}
	}
	return t.store.FindByID(ctx, id)
}

func (t *memTx) Append(ctx context.Context, e *Entry) (*Entry, error) {
	if !e.Type.Valid() {
		return nil, ErrInvalidEntry
	}

	committed := *e
	if committed.ID == uuid.Nil {
		committed.ID = uuid.New()
	}
	committed.CreatedAt = time.Now().UTC()
	committed.Metadata = e.Metadata.Clone()

	if committed.ExternalPaymentID != nil {
		pid := *committed.ExternalPaymentID
		t.store.mu.Lock()
		_, taken := t.store.byPayment[pid]
		if !taken {
			_, taken = t.store.reserved[pid]
		}
		if taken {
			t.store.mu.Unlock()
			return nil, ErrDuplicatePayment
		}
		t.store.reserved[pid] = struct{}{}
		t.store.mu.Unlock()
	}

	t.pending = append(t.pending, committed)
	return &committed, nil
}

func (t *memTx) commit() {
	if len(t.pending) == 0 {
		return
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, e := range t.pending {
		idx := len(t.store.entries)
		t.store.entries = append(t.store.entries, e)
		t.store.byID[e.ID] = idx
		if e.ExternalPaymentID != nil {
			t.store.byPayment[*e.ExternalPaymentID] = idx
			delete(t.store.reserved, *e.ExternalPaymentID)
		}
	}
	t.pending = nil
}

func (t *memTx) rollback() {
	if len(t.pending) == 0 {
		return
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, e := range t.pending {
		if e.ExternalPaymentID != nil {
			delete(t.store.reserved, *e.ExternalPaymentID)
		}
	}
	t.pending = nil
}
