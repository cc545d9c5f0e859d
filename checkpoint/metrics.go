package checkpoint

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for checkpoint tracking.
type Metrics struct {
	TokensTracked        prometheus.Counter
	CheckpointsSubmitted prometheus.Counter
	CheckpointsFailed    prometheus.Counter
	Rollbacks            prometheus.Counter
	SubmissionsInFlight  prometheus.Gauge
	TrackedJobs          prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics creates and registers checkpoint metrics (singleton pattern)
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			TokensTracked: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "settle",
					Subsystem: "checkpoint",
					Name:      "tokens_tracked_total",
					Help:      "Total tokens recorded across all jobs",
				},
			),
			CheckpointsSubmitted: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "settle",
					Subsystem: "checkpoint",
					Name:      "submitted_total",
					Help:      "Total checkpoints confirmed on chain",
				},
			),
			CheckpointsFailed: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "settle",
					Subsystem: "checkpoint",
					Name:      "failed_total",
					Help:      "Total checkpoint submissions that failed",
				},
			),
			Rollbacks: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "settle",
					Subsystem: "checkpoint",
					Name:      "rollbacks_total",
					Help:      "Total checkpoint state rollbacks after failed submissions",
				},
			),
			SubmissionsInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "settle",
					Subsystem: "checkpoint",
					Name:      "submissions_in_flight",
					Help:      "Checkpoint submissions currently awaiting confirmation",
				},
			),
			TrackedJobs: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "settle",
					Subsystem: "checkpoint",
					Name:      "tracked_jobs",
					Help:      "Jobs with active token tracking state",
				},
			),
		}
	})
	return metrics
}
