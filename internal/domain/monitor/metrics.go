package monitor

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is the point-in-time metrics view returned by Monitor.Metrics.
type Snapshot struct {
	TotalMonitored  int64         `json:"total_monitored"`
	Succeeded       int64         `json:"succeeded"`
	Failed          int64         `json:"failed"`
	CurrentlyActive int           `json:"currently_monitoring"`
	AvgCheckLatency time.Duration `json:"avg_check_latency"`
}

// metrics keeps both the prometheus collectors and the plain counters that
// back the snapshot endpoint.
type metrics struct {
	checksTotal  prometheus.Counter
	succeeded    prometheus.Counter
	failed       prometheus.Counter
	tracked      prometheus.Gauge
	checkLatency prometheus.Histogram

	mu            sync.Mutex
	totalTracked  int64
	totalSuccess  int64
	totalFailed   int64
	checkCount    int64
	totalDuration time.Duration
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		checksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subkeep",
			Subsystem: "monitor",
			Name:      "status_checks_total",
			Help:      "Total external payment status checks performed.",
		}),
		succeeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subkeep",
			Subsystem: "monitor",
			Name:      "payments_succeeded_total",
			Help:      "Payments that reached a terminal success status.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subkeep",
			Subsystem: "monitor",
			Name:      "payments_failed_total",
			Help:      "Payments that reached a terminal failure status.",
		}),
		tracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "subkeep",
			Subsystem: "monitor",
			Name:      "payments_tracked",
			Help:      "Payments currently in the monitoring working set.",
		}),
		checkLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "subkeep",
			Subsystem: "monitor",
			Name:      "status_check_duration_seconds",
			Help:      "Latency of external payment status checks.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.checksTotal, m.succeeded, m.failed, m.tracked, m.checkLatency)
	}
	return m
}

func (m *metrics) observeCheck(d time.Duration) {
	m.checksTotal.Inc()
	m.checkLatency.Observe(d.Seconds())

	m.mu.Lock()
	m.checkCount++
	m.totalDuration += d
	m.mu.Unlock()
}

func (m *metrics) paymentTracked() {
	m.tracked.Inc()
	m.mu.Lock()
	m.totalTracked++
	m.mu.Unlock()
}

func (m *metrics) paymentRemoved() {
	m.tracked.Dec()
}

func (m *metrics) paymentSucceeded() {
	m.succeeded.Inc()
	m.mu.Lock()
	m.totalSuccess++
	m.mu.Unlock()
}

func (m *metrics) paymentFailed() {
	m.failed.Inc()
	m.mu.Lock()
	m.totalFailed++
	m.mu.Unlock()
}

func (m *metrics) snapshot(active int) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var avg time.Duration
	if m.checkCount > 0 {
		avg = m.totalDuration / time.Duration(m.checkCount)
	}
	return Snapshot{
		TotalMonitored:  m.totalTracked,
		Succeeded:       m.totalSuccess,
		Failed:          m.totalFailed,
		CurrentlyActive: active,
		AvgCheckLatency: avg,
	}
}
