package stat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ReportMode selects how Reporter delivers a dump, mirroring the
// stat_admin_report_mode_* property from original_source/include/stat.h.
type ReportMode int

const (
	// ReportModeFile overwrites ReportPath with each dump (atomic rename).
	ReportModeFile ReportMode = iota
	// ReportModeFIFO writes each dump to a named pipe, blocking until a
	// reader drains it; ReportPath is created as a FIFO on first use.
	ReportModeFIFO
)

// Reporter periodically dumps a Collector's snapshot to disk, standing in
// for the original daemon's stat_admin_report_file/report_freq pairing.
type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	path      string
	mode      ReportMode
	interval  time.Duration
}

// NewReporter builds a reporter; interval <= 0 disables periodic dumping
// (Dump can still be called directly, e.g. from an admin command).
func NewReporter(collector *Collector, logger *slog.Logger, path string, mode ReportMode, interval time.Duration) *Reporter {
	return &Reporter{
		collector: collector,
		logger:    logger.With("component", "stat.reporter"),
		path:      path,
		mode:      mode,
		interval:  interval,
	}
}

// Start runs the periodic dump loop until ctx is cancelled.
func (r *Reporter) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Dump(); err != nil {
				r.logger.Warn("report dump failed", "error", err)
			}
		}
	}
}

// Dump writes the collector's current snapshot to the configured path.
func (r *Reporter) Dump() error {
	entries := r.collector.Snapshot()
	buf, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("stat: marshal report: %w", err)
	}

	switch r.mode {
	case ReportModeFIFO:
		return r.dumpFIFO(buf)
	default:
		return r.dumpFile(buf)
	}
}

func (r *Reporter) dumpFile(buf []byte) error {
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o640); err != nil {
		return fmt.Errorf("stat: write temp report: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("stat: rename report into place: %w", err)
	}
	return nil
}

// dumpFIFO writes to a named pipe, creating it if absent. The write blocks
// until a reader opens the other end, matching POSIX FIFO semantics —
// callers running this from Start should expect a slow consumer to stall
// the reporter.
func (r *Reporter) dumpFIFO(buf []byte) error {
	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		if err := unix.Mkfifo(r.path, 0o640); err != nil {
			return fmt.Errorf("stat: create report fifo: %w", err)
		}
	}
	f, err := os.OpenFile(r.path, os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("stat: open report fifo: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("stat: write report fifo: %w", err)
	}
	return nil
}
