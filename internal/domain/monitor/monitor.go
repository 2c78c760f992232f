package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/subkeep/subkeep-api/internal/domain/allocation"
	"github.com/subkeep/subkeep-api/internal/pkg/events"
)

// Config bounds the loop's timing. Zero values fall back to defaults.
type Config struct {
	Interval     time.Duration
	CheckTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = 10 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
	return c
}

// Monitor reconciles pending payments against the external provider's
// authoritative status. A single ticker goroutine fans out status checks
// per tick; because allocation is idempotent, re-checking and
// re-submitting the same payment across ticks can never double-credit.
// Payments that never reach a terminal status stay in the working set
// until removed explicitly.
type Monitor struct {
	source    StatusSource
	allocator *allocation.Service
	publisher events.Publisher
	cfg       Config
	metrics   *metrics

	mu      sync.Mutex
	tracked map[string]*record
	active  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(source StatusSource, allocator *allocation.Service, publisher events.Publisher, cfg Config, reg prometheus.Registerer) *Monitor {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &Monitor{
		source:    source,
		allocator: allocator,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		metrics:   newMetrics(reg),
		tracked:   make(map[string]*record),
	}
}

// Start launches the background loop. Calling Start on an active monitor
// is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.active = true

	go m.run(loopCtx)
	log.Info().Dur("interval", m.cfg.Interval).Msg("Payment monitor started")
}

// Stop halts the loop and waits for the in-flight tick to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	m.active = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
	log.Info().Msg("Payment monitor stopped")
}

func (m *Monitor) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// AddPendingPayment places a payment in the working set. Re-adding a
// tracked payment id is a no-op.
func (m *Monitor) AddPendingPayment(p PendingPayment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tracked[p.PaymentID]; ok {
		return
	}
	m.tracked[p.PaymentID] = &record{
		payment:    p,
		addedAt:    time.Now().UTC(),
		lastStatus: StatusPending,
	}
	m.metrics.paymentTracked()
	log.Info().Str("payment_id", p.PaymentID).Str("user_id", p.UserID.String()).Msg("Payment added to monitor")
}

// RemovePendingPayment drops a payment from the working set.
func (m *Monitor) RemovePendingPayment(paymentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tracked[paymentID]; !ok {
		return
	}
	delete(m.tracked, paymentID)
	m.metrics.paymentRemoved()
}

// Metrics returns a point-in-time snapshot of the loop's counters.
func (m *Monitor) Metrics() Snapshot {
	m.mu.Lock()
	active := len(m.tracked)
	m.mu.Unlock()
	return m.metrics.snapshot(active)
}

// ResolveStatus applies an externally delivered terminal status to a
// payment. It is the shared path between the polling tick and the webhook
// push handler, so both converge on the same allocation guarantees. A
// non-terminal status only updates the record.
func (m *Monitor) ResolveStatus(ctx context.Context, p PendingPayment, st PaymentStatus) (*allocation.Allocation, error) {
	if !st.Status.Terminal() {
		m.mu.Lock()
		if rec, ok := m.tracked[p.PaymentID]; ok {
			rec.lastStatus = st.Status
		}
		m.mu.Unlock()
		return nil, nil
	}

	if st.Status == StatusSucceeded {
		amount := p.Amount
		if !st.Amount.IsZero() {
			amount = st.Amount
		}
		alloc, err := m.allocator.AllocateForPayment(ctx, p.UserID, p.PaymentID, amount, allocation.PaymentContext{
			Provider: p.Provider,
			Currency: st.Currency,
		})
		if err != nil {
			// Persistence failure: keep the payment tracked so the next
			// tick retries the allocation.
			log.Error().Err(err).Str("payment_id", p.PaymentID).Msg("Allocation failed, will retry")
			return nil, err
		}
		m.finish(p.PaymentID, true)
		return alloc, nil
	}

	// failed or expired
	m.publisher.Publish(ctx, events.Event{
		Type:      events.TypePaymentFailed,
		UserID:    p.UserID,
		PaymentID: p.PaymentID,
		Amount:    p.Amount,
		Metadata:  map[string]string{"status": string(st.Status)},
	})
	log.Warn().
		Str("payment_id", p.PaymentID).
		Str("user_id", p.UserID.String()).
		Str("status", string(st.Status)).
		Msg("Payment reached terminal failure status")
	m.finish(p.PaymentID, false)
	return nil, nil
}

func (m *Monitor) finish(paymentID string, succeeded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tracked[paymentID]; ok {
		delete(m.tracked, paymentID)
		m.metrics.paymentRemoved()
	}
	if succeeded {
		m.metrics.paymentSucceeded()
	} else {
		m.metrics.paymentFailed()
	}
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick checks every tracked payment once. Exported so tests and manual
// re-drives can advance the loop without waiting on the ticker.
func (m *Monitor) Tick(ctx context.Context) {
	m.mu.Lock()
	batch := make([]PendingPayment, 0, len(m.tracked))
	for _, rec := range m.tracked {
		rec.checks++
		batch = append(batch, rec.payment)
	}
	m.mu.Unlock()

	for _, p := range batch {
		if ctx.Err() != nil {
			return
		}
		st, err := m.checkWithRetry(ctx, p.PaymentID)
		if err != nil {
			// Transient provider failure: give up on this tick only, the
			// payment stays in the working set for the next one.
			log.Warn().Err(err).Str("payment_id", p.PaymentID).Msg("Status check failed this tick")
			continue
		}
		if _, err := m.ResolveStatus(ctx, p, *st); err != nil {
			continue
		}
	}
}

// checkWithRetry queries the provider with a bounded timeout and bounded
// retries with backoff. Exceeding the budget abandons the tick, never the
// payment.
func (m *Monitor) checkWithRetry(ctx context.Context, paymentID string) (*PaymentStatus, error) {
	var lastErr error
	for attempt := 0; attempt < m.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(m.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}

		checkCtx, cancel := context.WithTimeout(ctx, m.cfg.CheckTimeout)
		start := time.Now()
		st, err := m.source.GetStatus(checkCtx, paymentID)
		m.metrics.observeCheck(time.Since(start))
		cancel()

		if err == nil {
			return st, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
