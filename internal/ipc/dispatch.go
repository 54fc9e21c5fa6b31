package ipc

import (
	"fmt"
	"log/slog"
)

// Dispatcher sends DispatchMessage requests to the executor queue,
// generalizing entry_pmq_dispatch's authorized-entry-only mq_send call.
type Dispatcher struct {
	queue  *Queue
	logger *slog.Logger
}

// NewDispatcher wraps an already-dialed executor queue.
func NewDispatcher(queue *Queue, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{queue: queue, logger: logger.With("component", "ipc.dispatcher")}
}

// Dispatch sends one entry's command for execution. Callers are expected
// to have already checked the entry carries FlagAuthorized, matching the
// original's entry_pmq_dispatch guard.
func (d *Dispatcher) Dispatch(msg DispatchMessage) error {
	buf, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("ipc: encode dispatch message: %w", err)
	}
	if err := d.queue.Send(buf); err != nil {
		d.logger.Warn("dispatch send failed", "entry_id", msg.EntryID, "error", err)
		return err
	}
	return nil
}
