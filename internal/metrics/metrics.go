// Package metrics holds the daemon-wide Prometheus series that don't
// belong to a single subsystem's own collector (internal/stat.Metrics
// owns per-entry execution telemetry; these cover pool occupancy, the
// scheduler, and the admin HTTP surface).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pool occupancy

	RPoolEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "usched",
		Name:      "rpool_entries",
		Help:      "Entries currently in flight on a connection, awaiting admission.",
	})

	APoolEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "usched",
		Name:      "apool_entries",
		Help:      "Entries currently armed in the active pool.",
	})

	// Scheduler

	SchedulerArmTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "usched",
		Name:      "scheduler_arm_total",
		Help:      "Total scheduler handles armed since startup.",
	})

	SchedulerDisarmTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "usched",
		Name:      "scheduler_disarm_total",
		Help:      "Total scheduler handles disarmed since startup.",
	})

	SchedulerDriftSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "usched",
		Name:      "scheduler_drift_seconds",
		Help:      "Observed clock drift applied by the drift monitor's compensation pass.",
		Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
	})

	// Daemon lifecycle

	DaemonStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "usched",
		Name:      "daemon_start_time_seconds",
		Help:      "Unix timestamp when the daemon started.",
	})

	// Admin/ops HTTP surface

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "usched",
		Name:      "http_request_duration_seconds",
		Help:      "Admin HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "usched",
		Name:      "http_requests_total",
		Help:      "Total admin HTTP requests.",
	}, []string{"method", "path", "status"})
)

// Register registers every series in this package against the default
// Prometheus registry. internal/stat.NewMetrics registers its own series
// separately against whatever registerer the caller supplies.
func Register() {
	prometheus.MustRegister(
		RPoolEntries,
		APoolEntries,
		SchedulerArmTotal,
		SchedulerDisarmTotal,
		SchedulerDriftSeconds,
		DaemonStartTime,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer builds the standalone /metrics HTTP server, separate from the
// admin HTTP surface so scraping never needs admin credentials.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
