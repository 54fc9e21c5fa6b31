// Package health exposes liveness/readiness probes for the daemon,
// generalizing the teacher's single hardcoded Postgres ping into a set of
// named dependency checks (the persistence file, the admin store's base
// directory, and anything else wired in via AddCheck).
package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckFunc probes one dependency, returning a non-nil error if it is
// unreachable or otherwise unhealthy.
type CheckFunc func(ctx context.Context) error

// CheckResult represents the health of a single dependency.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResult is the top-level health response.
type HealthResult struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Checker runs a set of named readiness probes and tracks their outcome in
// a Prometheus gauge, mirroring the teacher's health_check_up series.
type Checker struct {
	checks map[string]CheckFunc
	logger *slog.Logger
	gauge  *prometheus.GaugeVec
}

// NewChecker creates an empty health checker and registers its gauge.
func NewChecker(logger *slog.Logger, reg prometheus.Registerer) *Checker {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "usched",
		Name:      "health_check_up",
		Help:      "Whether a dependency is reachable. 1 = up, 0 = down.",
	}, []string{"dependency"})
	reg.MustRegister(gauge)

	return &Checker{
		checks: make(map[string]CheckFunc),
		logger: logger.With("component", "health"),
		gauge:  gauge,
	}
}

// AddCheck registers a named readiness probe, run on every Readiness call.
func (c *Checker) AddCheck(name string, fn CheckFunc) {
	c.checks[name] = fn
}

// Liveness returns a simple "up" response if the process is running.
func (c *Checker) Liveness(_ context.Context) HealthResult {
	return HealthResult{Status: "up"}
}

// Readiness runs every registered check and reports per-dependency status.
func (c *Checker) Readiness(ctx context.Context) HealthResult {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	result := HealthResult{Status: "up", Checks: make(map[string]CheckResult)}

	for name, fn := range c.checks {
		if err := fn(checkCtx); err != nil {
			c.logger.Warn("dependency check failed", "dependency", name, "error", err)
			result.Status = "down"
			result.Checks[name] = CheckResult{Status: "down", Error: err.Error()}
			c.gauge.WithLabelValues(name).Set(0)
		} else {
			result.Checks[name] = CheckResult{Status: "up"}
			c.gauge.WithLabelValues(name).Set(1)
		}
	}

	return result
}
