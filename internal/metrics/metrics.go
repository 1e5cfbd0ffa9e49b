// Package metrics registers the Prometheus collectors for the swap pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SwapsTotal counts terminal swap attempts by outcome and error code.
	SwapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intentswap_swaps_total",
		Help: "Terminal swap attempts by outcome",
	}, []string{"outcome", "code"})

	SubmissionAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intentswap_submission_attempts",
		Help:    "Broadcast attempts per swap transaction",
		Buckets: []float64{1, 2, 3, 4, 5},
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "intentswap_stage_duration_seconds",
		Help:    "Time spent in each execution stage",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"stage"})

	ApprovalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intentswap_approvals_total",
		Help: "Allowance checks by result",
	}, []string{"result"})

	QuoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intentswap_quote_requests_total",
		Help: "0x price and quote requests by kind and status",
	}, []string{"kind", "status"})

	BalanceReadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intentswap_balance_read_failures_total",
		Help: "Balance reads that fell back to zero",
	})

	GasUsed = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "intentswap_gas_used",
		Help:    "Gas used by mined transactions",
		Buckets: prometheus.ExponentialBuckets(21000, 2, 8),
	}, []string{"kind"})

	InFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intentswap_swaps_in_flight",
		Help: "Swap attempts currently executing",
	})
)
