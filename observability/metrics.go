package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records survey ledger activity segmented by action and
// outcome, plus the cross-chain transfer lifecycle transitions.
type LedgerMetrics struct {
	actions   *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	transfers *prometheus.CounterVec
	recovery  prometheus.Counter
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// Ledger returns the lazily-initialised ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			actions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "surveychain",
				Subsystem: "ledger",
				Name:      "actions_total",
				Help:      "Total ledger actions segmented by action and outcome.",
			}, []string{"action", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "surveychain",
				Subsystem: "ledger",
				Name:      "action_duration_seconds",
				Help:      "Duration of ledger actions in seconds.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"action"}),
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "surveychain",
				Subsystem: "transfer",
				Name:      "lifecycle_total",
				Help:      "Cross-chain transfer lifecycle transitions segmented by status.",
			}, []string{"status"}),
			recovery: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "surveychain",
				Subsystem: "transfer",
				Name:      "recovery_entries_total",
				Help:      "Recovery ledger entries appended for failed or timed-out transfers.",
			}),
		}
		prometheus.MustRegister(ledgerRegistry.actions, ledgerRegistry.latency, ledgerRegistry.transfers, ledgerRegistry.recovery)
	})
	return ledgerRegistry
}

// ObserveAction records one ledger action with its outcome and duration.
func (m *LedgerMetrics) ObserveAction(action, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, outcome).Inc()
	m.latency.WithLabelValues(action).Observe(seconds)
}

// ObserveTransfer records one lifecycle transition.
func (m *LedgerMetrics) ObserveTransfer(status string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(status).Inc()
}

// ObserveRecovery records one recovery ledger append.
func (m *LedgerMetrics) ObserveRecovery() {
	if m == nil {
		return
	}
	m.recovery.Inc()
}
