package marshal

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// magic is the 4-byte prefix of the marshal file; the uint32 format version
// and the uint32 entry count follow it.
var magic = [4]byte{'u', 's', 'c', 'h'}

// Store owns the exclusive lock on a single marshal file for the daemon's
// lifetime, per spec.md §4.7. The lock is acquired once at Open and held
// until Close.
type Store struct {
	mu   sync.Mutex
	path string
	f    *os.File

	backupDir   string
	backupEvery int

	logger *slog.Logger
}

// Option configures a Store at Open time.
type Option func(*Store)

// WithBackupRotation enables timestamped backups, one written after every
// snapshot, keeping at most `keep` of them (none are pruned when keep <= 0).
func WithBackupRotation(dir string, keep int) Option {
	return func(s *Store) {
		s.backupDir = dir
		s.backupEvery = keep
	}
}

// Open acquires the exclusive advisory lock on path, creating it if
// missing. The lock is held until Close.
func Open(path string, logger *slog.Logger, opts ...Option) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("marshal: open %s: %w", path, err)
	}
	if err := flockExclusiveNonBlocking(f); err != nil {
		_ = f.Close()
		return nil, err
	}

	s := &Store{
		path:   path,
		f:      f,
		logger: logger.With("component", "marshal"),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close releases the lock and closes the underlying file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = flockUnlock(s.f)
	return s.f.Close()
}

// Snapshot writes every entry in entries to the marshal file atomically —
// to a temp file in the same directory, then renamed over the original, so
// a crash mid-write never corrupts the last-good snapshot.
func (s *Store) Snapshot(entries []PersistedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	buf.Write(magic[:])
	_ = binary.Write(&buf, binary.LittleEndian, uint32(FormatVersion))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(entries)))
	for _, e := range entries {
		if err := WriteRecord(&buf, e); err != nil {
			return fmt.Errorf("marshal: encode entry %d: %w", e.ID, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".usched-marshal-*.tmp")
	if err != nil {
		return fmt.Errorf("marshal: create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("marshal: write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("marshal: sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("marshal: close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("marshal: rename temp snapshot over %s: %w", s.path, err)
	}
	// The rename replaced the inode; move the handle and the lock onto it.
	nf, err := os.OpenFile(s.path, os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("marshal: reopen %s after snapshot: %w", s.path, err)
	}
	if err := flockExclusiveNonBlocking(nf); err != nil {
		_ = nf.Close()
		return fmt.Errorf("marshal: relock %s after snapshot: %w", s.path, err)
	}
	_ = flockUnlock(s.f)
	_ = s.f.Close()
	s.f = nf

	s.logger.Debug("snapshot written", "entries", len(entries))
	s.maybeRotateBackup()
	return nil
}

func (s *Store) maybeRotateBackup() {
	if s.backupDir == "" {
		return
	}
	if err := os.MkdirAll(s.backupDir, 0700); err != nil {
		s.logger.Warn("backup directory unavailable", "error", err)
		return
	}
	name := filepath.Join(s.backupDir, fmt.Sprintf("usched-%d.bak", nowUnix()))
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Warn("backup read failed", "error", err)
		return
	}
	if err := os.WriteFile(name, data, 0600); err != nil {
		s.logger.Warn("backup write failed", "error", err)
		return
	}
	s.pruneBackups()
}

func (s *Store) pruneBackups() {
	if s.backupEvery <= 0 {
		return
	}
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return
	}
	if len(entries) <= s.backupEvery {
		return
	}
	excess := len(entries) - s.backupEvery
	for i := 0; i < excess; i++ {
		_ = os.Remove(filepath.Join(s.backupDir, entries[i].Name()))
	}
}

var nowUnix = func() int64 { return time.Now().Unix() }

// Load reads every persisted entry, dropping lapsed one-shots (a one-shot
// whose expire, or whose trigger in the absence of an expire, has already
// passed) and recurring entries whose expire has passed, per spec.md §4.7.
func (s *Store) Load() ([]PersistedEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	r := bufio.NewReader(s.f)

	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("marshal: read magic: %w", err)
	}
	if hdr != magic {
		return nil, fmt.Errorf("marshal: %s is not a usched marshal file", s.path)
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("marshal: read version: %w", err)
	}
	if version == 0 || version > FormatVersion {
		return nil, ErrUnknownVersion
	}
	if version < FormatVersion {
		s.logger.Warn("reading legacy marshal file without a triggered byte; defaulting triggered=false", "version", version)
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("marshal: read count: %w", err)
	}

	out := make([]PersistedEntry, 0, count)
	now := time.Now()
	for i := uint32(0); i < count; i++ {
		p, err := ReadRecord(r, int(version))
		if err != nil {
			return nil, fmt.Errorf("marshal: record %d: %w", i, err)
		}
		if isLapsedOneShot(p, now) {
			s.logger.Info("dropping lapsed one-shot entry on reload", "id", p.ID)
			continue
		}
		if !p.Expire.IsZero() && p.Expire.Before(now) {
			s.logger.Info("dropping expired entry on reload", "id", p.ID)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func isLapsedOneShot(p PersistedEntry, now time.Time) bool {
	if p.Step > 0 {
		return false
	}
	bound := p.Expire
	if bound.IsZero() {
		bound = p.Trigger
	}
	return bound.Before(now)
}
