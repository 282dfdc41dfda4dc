package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transfer outcomes
const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

var (
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funds_transfers_total",
		Help: "Fund transfers processed, labeled by outcome",
	}, []string{"outcome"})

	TransferRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funds_transfer_rejections_total",
		Help: "Rejected fund transfers, labeled by rejection kind",
	}, []string{"kind"})

	TransferDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "funds_transfer_duration_seconds",
		Help:    "Latency distribution of fund transfers",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"outcome"})

	TransfersInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "funds_transfer_inflight",
		Help: "Fund transfers holding an admission slot",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funds_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "funds_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "route"})
)

// Handler serves the default registry.
var Handler = promhttp.Handler
