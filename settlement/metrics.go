package settlement

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for validation and settlement.
type Metrics struct {
	ValidationsTotal  prometheus.Counter
	ValidationsPassed prometheus.Counter
	ValidationsFailed prometheus.Counter

	SettlementsConfirmed *prometheus.CounterVec
	SettlementsFailed    *prometheus.CounterVec
	SettlementRetries    prometheus.Counter
	SettlementsQueued    prometheus.Counter
	QueueDepth           prometheus.Gauge

	PaymentsProcessed   *prometheus.CounterVec
	TreasuryWithdrawals prometheus.Counter
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics creates and registers settlement metrics (singleton pattern)
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			ValidationsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "settle",
					Subsystem: "settlement",
					Name:      "validations_total",
					Help:      "Total pre-settlement validations attempted",
				},
			),
			ValidationsPassed: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "settle",
					Subsystem: "settlement",
					Name:      "validations_passed_total",
					Help:      "Validations where the stored proof verified",
				},
			),
			ValidationsFailed: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "settle",
					Subsystem: "settlement",
					Name:      "validations_failed_total",
					Help:      "Validations that failed or could not run",
				},
			),
			SettlementsConfirmed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "settle",
					Subsystem: "settlement",
					Name:      "confirmed_total",
					Help:      "Settlements confirmed on chain",
				},
				[]string{"chain_id"},
			),
			SettlementsFailed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "settle",
					Subsystem: "settlement",
					Name:      "failed_total",
					Help:      "Settlements that failed permanently",
				},
				[]string{"chain_id", "reason"},
			),
			SettlementRetries: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "settle",
					Subsystem: "settlement",
					Name:      "retries_total",
					Help:      "Settlement attempts retried after transient failures",
				},
			),
			SettlementsQueued: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "settle",
					Subsystem: "settlement",
					Name:      "queued_total",
					Help:      "Settlements deferred to the retry queue",
				},
			),
			QueueDepth: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "settle",
					Subsystem: "settlement",
					Name:      "queue_depth",
					Help:      "Settlements currently waiting in the queue",
				},
			),
			PaymentsProcessed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "settle",
					Subsystem: "settlement",
					Name:      "payments_processed_total",
					Help:      "Payments recorded per chain",
				},
				[]string{"chain_id", "token"},
			),
			TreasuryWithdrawals: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "settle",
					Subsystem: "settlement",
					Name:      "treasury_withdrawals_total",
					Help:      "Treasury fee withdrawals",
				},
			),
		}
	})
	return metrics
}
