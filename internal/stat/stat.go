// Package stat aggregates per-entry execution outcomes reported by the
// executor over the executor→stat IPC channel (§11), exposing them both as
// queryable records and as Prometheus gauges/counters.
package stat

import (
	"sync"
	"time"
)

// Exec is one reported execution outcome, mirroring
// original_source/include/stat.h's usched_stat_exec.
type Exec struct {
	UID      uint32
	GID      uint32
	PID      int32
	Status   int32
	Trigger  time.Time
	Start    time.Time
	End      time.Time
	OutData  []byte
}

// Entry is the running aggregate for one scheduler entry, mirroring
// usched_stat_entry: the most recent successful execution, the most recent
// failing one, and running counters.
type Entry struct {
	ID      uint64
	Current Exec
	Error   Exec
	NrExec  uint32
	NrOK    uint32
	NrFail  uint32
}

// zero resets an entry's counters and last-seen executions, mirroring
// stat_zero.
func (e *Entry) zero() {
	*e = Entry{ID: e.ID}
}

// Collector holds the in-memory stat table, keyed by entry id, guarded by a
// single mutex (the table is small and read/written far less often than the
// pools it reports on).
type Collector struct {
	mu      sync.Mutex
	entries map[uint64]*Entry
	metrics *Metrics
}

// NewCollector builds an empty collector. metrics may be nil to skip
// Prometheus reporting (e.g. in tests).
func NewCollector(metrics *Metrics) *Collector {
	return &Collector{
		entries: make(map[uint64]*Entry),
		metrics: metrics,
	}
}

// Record folds one reported execution outcome into the entry's running
// aggregate, per stat_compare/stat_dup's update semantics: the current
// execution always replaces Current, and Error is updated only on non-zero
// status.
func (c *Collector) Record(id uint64, ex Exec) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		e = &Entry{ID: id}
		c.entries[id] = e
	}

	e.Current = ex
	e.NrExec++
	if ex.Status == 0 {
		e.NrOK++
	} else {
		e.NrFail++
		e.Error = ex
	}

	if c.metrics != nil {
		c.metrics.observe(id, ex)
	}
}

// Get returns a copy of the entry's aggregate, or false if nothing has been
// recorded for id yet.
func (c *Collector) Get(id uint64) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Forget drops an entry's aggregate, called when the owning entry is
// deleted from the active pool.
func (c *Collector) Forget(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Reset zeroes an entry's counters in place without forgetting it, mirroring
// stat_zero — used when an admin operator clears history without deleting
// the scheduled entry itself.
func (c *Collector) Reset(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		e.zero()
	}
}

// Snapshot returns a copy of every tracked entry, for report dumps.
func (c *Collector) Snapshot() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	return out
}
