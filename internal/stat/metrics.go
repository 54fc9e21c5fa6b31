package stat

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the stat collector's running counters as Prometheus
// series, following the teacher's internal/metrics.go Namespace/gauge-vec
// convention.
type Metrics struct {
	execTotal    *prometheus.CounterVec
	execDuration *prometheus.HistogramVec
	entriesTotal prometheus.Gauge
}

// NewMetrics builds and registers the stat package's series against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		execTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usched",
			Name:      "exec_total",
			Help:      "Total entry executions reported by the executor, by outcome.",
		}, []string{"outcome"}),
		execDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "usched",
			Name:      "exec_duration_seconds",
			Help:      "Wall-clock duration of reported entry executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		entriesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "usched",
			Name:      "stat_entries_tracked",
			Help:      "Number of entries the stat collector currently holds history for.",
		}),
	}
	reg.MustRegister(m.execTotal, m.execDuration, m.entriesTotal)
	return m
}

func (m *Metrics) observe(_ uint64, ex Exec) {
	outcome := "ok"
	if ex.Status != 0 {
		outcome = "fail"
	}
	m.execTotal.WithLabelValues(outcome).Inc()
	if !ex.End.IsZero() && !ex.Start.IsZero() {
		m.execDuration.WithLabelValues(outcome).Observe(ex.End.Sub(ex.Start).Seconds())
	}
}

// SetTrackedCount updates the gauge tracking how many entries currently
// have stat history, called by the collector's owner after each stat
// report it records.
func (m *Metrics) SetTrackedCount(n int) {
	if m == nil {
		return
	}
	m.entriesTotal.Set(float64(n))
}
