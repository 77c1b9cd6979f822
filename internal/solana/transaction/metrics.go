// internal/solana/transaction/metrics.go
package transaction

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts confirmation outcomes and times the submit-to-terminal span.
// A nil *Metrics is a no-op, so callers that do not scrape can leave it unset.
type Metrics struct {
	successCounter    prometheus.Counter
	failureCounter    prometheus.Counter
	durationHistogram prometheus.Histogram
}

// NewMetrics registers the lifecycle collectors with reg. Register once per
// process; a registerer rejects duplicate collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	successCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swap_tx_success_total",
		Help: "Total number of confirmed transactions",
	})
	failureCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swap_tx_failure_total",
		Help: "Total number of failed or timed out transactions",
	})
	durationHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swap_tx_duration_seconds",
		Help:    "Submit-to-terminal confirmation duration in seconds",
		Buckets: prometheus.LinearBuckets(0, 0.1, 10),
	})

	reg.MustRegister(successCounter, failureCounter, durationHistogram)

	return &Metrics{
		successCounter:    successCounter,
		failureCounter:    failureCounter,
		durationHistogram: durationHistogram,
	}
}

// TrackTransaction observes the elapsed time since start.
func (tm *Metrics) TrackTransaction(start time.Time) {
	if tm == nil {
		return
	}
	tm.durationHistogram.Observe(time.Since(start).Seconds())
}

// RecordOutcome counts one terminal confirmation result.
func (tm *Metrics) RecordOutcome(confirmed bool) {
	if tm == nil {
		return
	}
	if confirmed {
		tm.successCounter.Inc()
	} else {
		tm.failureCounter.Inc()
	}
}
