package stat

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCollector_RecordTracksOKAndFailCounts(t *testing.T) {
	c := NewCollector(nil)
	c.Record(1, Exec{Status: 0})
	c.Record(1, Exec{Status: 1})
	c.Record(1, Exec{Status: 0})

	e, ok := c.Get(1)
	if !ok {
		t.Fatalf("expected entry to exist")
	}
	if e.NrExec != 3 || e.NrOK != 2 || e.NrFail != 1 {
		t.Fatalf("got %+v", e)
	}
}

func TestCollector_RecordKeepsLastErrorSeparateFromCurrent(t *testing.T) {
	c := NewCollector(nil)
	c.Record(1, Exec{Status: 1, PID: 100})
	c.Record(1, Exec{Status: 0, PID: 200})

	e, _ := c.Get(1)
	if e.Current.PID != 200 {
		t.Fatalf("current PID = %d, want 200", e.Current.PID)
	}
	if e.Error.PID != 100 {
		t.Fatalf("error PID = %d, want 100 (preserved from last failure)", e.Error.PID)
	}
}

func TestCollector_GetMissingReturnsFalse(t *testing.T) {
	c := NewCollector(nil)
	if _, ok := c.Get(999); ok {
		t.Fatalf("expected missing entry to report false")
	}
}

func TestCollector_ForgetRemovesEntry(t *testing.T) {
	c := NewCollector(nil)
	c.Record(1, Exec{})
	c.Forget(1)
	if _, ok := c.Get(1); ok {
		t.Fatalf("expected entry to be forgotten")
	}
}

func TestCollector_ResetZeroesCountersButKeepsEntry(t *testing.T) {
	c := NewCollector(nil)
	c.Record(1, Exec{Status: 0})
	c.Reset(1)

	e, ok := c.Get(1)
	if !ok {
		t.Fatalf("expected entry to still exist after reset")
	}
	if e.NrExec != 0 || e.NrOK != 0 || e.NrFail != 0 {
		t.Fatalf("expected zeroed counters, got %+v", e)
	}
}

func TestCollector_SnapshotReturnsAllEntries(t *testing.T) {
	c := NewCollector(nil)
	c.Record(1, Exec{})
	c.Record(2, Exec{})
	snap := c.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(snap))
	}
}

func TestReporter_DumpFileWritesJSON(t *testing.T) {
	c := NewCollector(nil)
	c.Record(1, Exec{Status: 0, Start: time.Now(), End: time.Now()})

	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")
	r := NewReporter(c, discardLogger(), path, ReportModeFile, 0)

	if err := r.Dump(); err != nil {
		t.Fatalf("dump error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty report")
	}
}
