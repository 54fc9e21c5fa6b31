package adminstore

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/usched-go/usched/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadManifest_AllCategoriesPresent(t *testing.T) {
	m, err := LoadManifest()
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	for _, cat := range domain.AllCategories {
		if _, err := m.Category(cat); err != nil {
			t.Fatalf("category %s missing from manifest: %v", cat, err)
		}
	}
}

func TestStore_ShowFallsBackToSchemaDefault(t *testing.T) {
	m, err := LoadManifest()
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	s, err := Open(t.TempDir(), m, discardLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	got, err := s.Show(domain.CategoryExec, "shell")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if got != "/bin/sh" {
		t.Fatalf("got %q, want default /bin/sh", got)
	}
}

func TestStore_StageThenCommitUpdatesShow(t *testing.T) {
	m, _ := LoadManifest()
	s, _ := Open(t.TempDir(), m, discardLogger())

	if err := s.Stage(domain.CategoryExec, "shell", "/bin/bash"); err != nil {
		t.Fatalf("stage: %v", err)
	}
	// Show still reflects the committed (default) value before commit.
	if got, _ := s.Show(domain.CategoryExec, "shell"); got != "/bin/sh" {
		t.Fatalf("expected uncommitted show to return default, got %q", got)
	}
	if err := s.Commit(domain.CategoryExec); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, err := s.Show(domain.CategoryExec, "shell")
	if err != nil {
		t.Fatalf("show after commit: %v", err)
	}
	if got != "/bin/bash" {
		t.Fatalf("got %q, want /bin/bash", got)
	}
}

func TestStore_CommitWithNoStagedChangesErrors(t *testing.T) {
	m, _ := LoadManifest()
	s, _ := Open(t.TempDir(), m, discardLogger())
	if err := s.Commit(domain.CategoryExec); err != domain.ErrNoStagedChange {
		t.Fatalf("expected ErrNoStagedChange, got %v", err)
	}
}

func TestStore_CommitRejectedWhilePIDFileExists(t *testing.T) {
	m, _ := LoadManifest()
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "usched.pid")
	if err := os.WriteFile(pidPath, []byte("1234"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	s, err := Open(t.TempDir(), m, discardLogger(), WithPIDFile(domain.CategoryExec, pidPath))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	_ = s.Stage(domain.CategoryExec, "shell", "/bin/zsh")
	if err := s.Commit(domain.CategoryExec); err != domain.ErrPIDFileActive {
		t.Fatalf("expected ErrPIDFileActive, got %v", err)
	}
}

func TestStore_RollbackRevertsStagedToCommitted(t *testing.T) {
	m, _ := LoadManifest()
	s, _ := Open(t.TempDir(), m, discardLogger())

	_ = s.Stage(domain.CategoryExec, "shell", "/bin/bash")
	_ = s.Commit(domain.CategoryExec)

	_ = s.Stage(domain.CategoryExec, "shell", "/bin/zsh")
	if err := s.Rollback(domain.CategoryExec); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	staged, ok, err := s.Staged(domain.CategoryExec, "shell")
	if err != nil {
		t.Fatalf("staged: %v", err)
	}
	if !ok || staged != "/bin/bash" {
		t.Fatalf("expected staged value reverted to /bin/bash, got %q (ok=%v)", staged, ok)
	}
}

func TestUserStore_AddThenLookupSucceeds(t *testing.T) {
	us, err := NewUserStore(t.TempDir())
	if err != nil {
		t.Fatalf("new user store: %v", err)
	}
	if err := us.Add("alice", 1000, 1000, "correct horse"); err != nil {
		t.Fatalf("add: %v", err)
	}

	uid, gid, hash, err := us.Lookup("alice")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if uid != 1000 || gid != 1000 || len(hash) == 0 {
		t.Fatalf("unexpected lookup result: uid=%d gid=%d hash_len=%d", uid, gid, len(hash))
	}
}

func TestUserStore_AddDuplicateRejected(t *testing.T) {
	us, _ := NewUserStore(t.TempDir())
	_ = us.Add("alice", 1000, 1000, "pw")
	if err := us.Add("alice", 1000, 1000, "pw2"); err != domain.ErrDuplicateEntry {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
}

func TestUserStore_ChangeUpdatesHash(t *testing.T) {
	us, _ := NewUserStore(t.TempDir())
	_ = us.Add("alice", 1000, 1000, "old-password")
	before, _ := us.Show("alice")

	if err := us.Change("alice", "new-password"); err != nil {
		t.Fatalf("change: %v", err)
	}
	after, _ := us.Show("alice")
	if string(before.Hash) == string(after.Hash) {
		t.Fatalf("expected hash to change")
	}
	if before.Salt != after.Salt {
		t.Fatalf("expected salt to remain stable across password changes")
	}
}

func TestUserStore_DeleteThenLookupFails(t *testing.T) {
	us, _ := NewUserStore(t.TempDir())
	_ = us.Add("alice", 1000, 1000, "pw")
	if err := us.Delete("alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, _, err := us.Lookup("alice"); err != domain.ErrUserRecordNotFound {
		t.Fatalf("expected ErrUserRecordNotFound, got %v", err)
	}
}
