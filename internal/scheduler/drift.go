package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// DriftMonitor watches for wall-clock changes relative to a monotonic
// reference and compensates armed triggers, per spec.md §4.3's clock-drift
// rule: already-fired (TRIGGERED) entries are only shifted for negative
// drift (clock moved backward); relative-trigger entries are always
// compensated.
type DriftMonitor struct {
	sched    *Scheduler
	logger   *slog.Logger
	interval time.Duration

	lastWall time.Time
	lastMono time.Time
}

func NewDriftMonitor(sched *Scheduler, logger *slog.Logger, interval time.Duration) *DriftMonitor {
	now := time.Now()
	return &DriftMonitor{
		sched:    sched,
		logger:   logger.With("component", "drift-monitor"),
		interval: interval,
		lastWall: now,
		lastMono: now,
	}
}

// Drift reports the current delta between the observed wall clock and the
// expected wall clock derived from the monotonic reference: positive means
// the clock jumped forward, negative means it jumped backward.
func (m *DriftMonitor) Drift() time.Duration {
	// Round(0) strips the monotonic reading so the comparison uses wall time.
	expectedWall := m.lastWall.Round(0).Add(time.Since(m.lastMono))
	return time.Now().Round(0).Sub(expectedWall)
}

// Start runs the periodic detection loop until ctx is canceled.
func (m *DriftMonitor) Start(ctx context.Context, compensate func(delta time.Duration)) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("drift monitor started", "interval", m.interval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("drift monitor shutting down")
			return
		case <-ticker.C:
			delta := m.Drift()
			m.lastWall = time.Now()
			m.lastMono = m.lastWall
			if delta != 0 {
				m.logger.Warn("clock drift detected", "delta", delta)
				compensate(delta)
			}
		}
	}
}

// CompensateEntry applies drift to one handle's trigger, observing the
// TRIGGERED-aware negative-drift rule: an entry that has already fired at
// least once is only shifted when delta is negative (clock moved
// backward); an entry using a relative trigger is always shifted;
// untriggered absolute entries are left alone (the clock, not the trigger,
// moved — the absolute wall time is still correct).
func CompensateEntry(trigger time.Time, delta time.Duration, alreadyTriggered, relative bool) time.Time {
	if relative {
		return trigger.Add(delta)
	}
	if alreadyTriggered && delta < 0 {
		return trigger.Add(delta)
	}
	return trigger
}
