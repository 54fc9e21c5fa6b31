package marshal

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/usched-go/usched/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStore_SnapshotLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usched.marshal")

	s, err := Open(path, discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	entries := []PersistedEntry{
		{
			ID:        1,
			Flags:     domain.FlagNew,
			UID:       1000,
			GID:       1000,
			Trigger:   time.Now().Add(time.Hour).Truncate(time.Second),
			Step:      0,
			Triggered: false,
			Subj:      "echo hello",
		},
		{
			ID:        2,
			Flags:     domain.FlagNew,
			UID:       1000,
			GID:       1000,
			Trigger:   time.Now().Add(2 * time.Hour).Truncate(time.Second),
			Step:      time.Hour,
			Triggered: true,
			Subj:      "echo recurring",
		},
	}

	if err := s.Snapshot(entries); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(loaded))
	}
	if loaded[1].Triggered != true {
		t.Fatalf("expected second entry's triggered byte to round-trip true")
	}
	if loaded[1].Subj != "echo recurring" {
		t.Fatalf("subject did not round-trip: got %q", loaded[1].Subj)
	}
}

func TestStore_SerializationIdempotence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usched.marshal")

	s, err := Open(path, discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	entries := []PersistedEntry{{
		ID:      1,
		Flags:   domain.FlagNew,
		UID:     1,
		GID:     1,
		Trigger: time.Unix(2000000000, 0),
		Subj:    "echo a",
	}}

	if err := s.Snapshot(entries); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Snapshot(loaded); err != nil {
		t.Fatalf("second Snapshot: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(first) != string(second) {
		t.Fatalf("serialize -> deserialize -> serialize was not idempotent")
	}
}

func TestStore_DropsLapsedOneShotOnLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usched.marshal")

	s, err := Open(path, discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	entries := []PersistedEntry{
		{ID: 1, Flags: domain.FlagNew, Trigger: time.Now().Add(-time.Hour), Subj: "lapsed"},
		{ID: 2, Flags: domain.FlagNew, Trigger: time.Now().Add(time.Hour), Subj: "future"},
	}
	if err := s.Snapshot(entries); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != 2 {
		t.Fatalf("expected only the future entry to survive reload, got %+v", loaded)
	}
}

func TestStore_SecondOpenFailsWhileLocked(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usched.marshal")

	s, err := Open(path, discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := Open(path, discardLogger()); err == nil {
		t.Fatalf("expected second Open against a locked file to fail")
	}
}

func TestFromEntryToEntryRoundTrip(t *testing.T) {
	e := domain.NewEntry(domain.FlagNew)
	e.ID = 42
	e.UID = 5
	e.GID = 6
	e.Trigger = time.Now().Truncate(time.Second)
	e.Subj = "echo round trip"
	e.Flags.Set(domain.FlagTriggered)

	p := FromEntry(e)
	back := p.ToEntry()

	if back.ID != e.ID || back.Subj != e.Subj || !back.Flags.Has(domain.FlagTriggered) {
		t.Fatalf("round trip through PersistedEntry lost data: %+v", back)
	}
}
