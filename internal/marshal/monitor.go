package marshal

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Monitor periodically snapshots the active pool on its ticker, and once
// more when its context is canceled. Signal requests an extra snapshot
// through a size-1 buffered channel, so requests made while one is already
// pending coalesce. No caller in this tree invokes Signal: the dispatcher
// does not signal after a mutation, so a mutation reaches disk at the next
// tick or at shutdown.
type Monitor struct {
	store    *Store
	collect  func() []PersistedEntry
	logger   *slog.Logger
	interval time.Duration

	signal chan struct{}
	once   sync.Once
}

func NewMonitor(store *Store, collect func() []PersistedEntry, logger *slog.Logger, interval time.Duration) *Monitor {
	return &Monitor{
		store:    store,
		collect:  collect,
		logger:   logger.With("component", "marshal-monitor"),
		interval: interval,
		signal:   make(chan struct{}, 1),
	}
}

// Signal requests an out-of-band snapshot at the next opportunity, coalesced
// with any already-pending request.
func (m *Monitor) Signal() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// Start runs until ctx is canceled, snapshotting on its ticker and on every
// Signal.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("marshal monitor started", "interval", m.interval)
	for {
		select {
		case <-ctx.Done():
			m.snapshotNow()
			m.logger.Info("marshal monitor shutting down")
			return
		case <-ticker.C:
			m.snapshotNow()
		case <-m.signal:
			m.snapshotNow()
		}
	}
}

func (m *Monitor) snapshotNow() {
	entries := m.collect()
	if err := m.store.Snapshot(entries); err != nil {
		m.logger.Error("snapshot failed", "error", err)
	}
}
