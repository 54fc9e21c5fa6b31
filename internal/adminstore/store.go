// Package adminstore implements the category/property configuration store
// uSched's admin tooling edits: a staged value is written first, then
// committed (or discarded) as an atomic, PID-file-gated operation per
// category, mirroring original_source/src/usa/ipc.c's
// commit/rollback/show trio generalized across all seven categories named
// in original_source/include/category.h.
package adminstore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/usched-go/usched/internal/domain"
)

// Store holds the on-disk property tree under baseDir, one subdirectory
// per category, one committed file (the property name) and one staged
// file (a dot-prefixed property name) per property.
type Store struct {
	manifest Manifest
	baseDir  string
	pidFiles map[domain.AdminCategory]string
	logger   *slog.Logger
}

// Option customizes Store construction.
type Option func(*Store)

// WithPIDFile registers the PID file whose existence gates commits to cat,
// mirroring CONFIG_USCHED_*_PID_FILE in the original.
func WithPIDFile(cat domain.AdminCategory, path string) Option {
	return func(s *Store) { s.pidFiles[cat] = path }
}

// Open builds a Store rooted at baseDir, creating any missing category
// subdirectories.
func Open(baseDir string, manifest Manifest, logger *slog.Logger, opts ...Option) (*Store, error) {
	s := &Store{
		manifest: manifest,
		baseDir:  baseDir,
		pidFiles: make(map[domain.AdminCategory]string),
		logger:   logger.With("component", "adminstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, cat := range domain.AllCategories {
		if err := os.MkdirAll(filepath.Join(baseDir, string(cat)), 0o750); err != nil {
			return nil, fmt.Errorf("adminstore: create category dir %s: %w", cat, err)
		}
	}
	return s, nil
}

func (s *Store) committedPath(cat domain.AdminCategory, prop string) string {
	return filepath.Join(s.baseDir, string(cat), prop)
}

func (s *Store) stagedPath(cat domain.AdminCategory, prop string) string {
	return filepath.Join(s.baseDir, string(cat), "."+prop)
}

// Show returns a property's committed value, falling back to the schema
// default if no committed file exists yet.
func (s *Store) Show(cat domain.AdminCategory, prop string) (string, error) {
	schema, err := s.manifest.Property(cat, prop)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.committedPath(cat, prop))
	if os.IsNotExist(err) {
		return schema.Default, nil
	}
	if err != nil {
		return "", fmt.Errorf("adminstore: read %s/%s: %w", cat, prop, err)
	}
	return string(data), nil
}

// Stage validates value against the property's schema and writes it to the
// staged (dot-prefixed) file, without yet affecting the committed value.
func (s *Store) Stage(cat domain.AdminCategory, prop, value string) error {
	if _, err := s.manifest.Property(cat, prop); err != nil {
		return err
	}
	if err := os.WriteFile(s.stagedPath(cat, prop), []byte(value), 0o640); err != nil {
		return fmt.Errorf("adminstore: stage %s/%s: %w", cat, prop, err)
	}
	return nil
}

// Staged returns a property's staged value and whether one exists.
func (s *Store) Staged(cat domain.AdminCategory, prop string) (string, bool, error) {
	if _, err := s.manifest.Property(cat, prop); err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(s.stagedPath(cat, prop))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("adminstore: read staged %s/%s: %w", cat, prop, err)
	}
	return string(data), true, nil
}

// Commit applies every staged property in cat to its committed file,
// refusing if the category is PID-gated and its daemon PID file still
// exists (mirroring ipc_admin_commit's EBUSY guard).
func (s *Store) Commit(cat domain.AdminCategory) error {
	schema, err := s.manifest.Category(cat)
	if err != nil {
		return err
	}
	if schema.PIDGated {
		if pidPath, ok := s.pidFiles[cat]; ok {
			if _, statErr := os.Stat(pidPath); statErr == nil {
				return domain.ErrPIDFileActive
			}
		}
	}

	committed := 0
	for prop := range schema.Properties {
		value, staged, err := s.Staged(cat, prop)
		if err != nil {
			return err
		}
		if !staged {
			continue
		}
		if err := os.WriteFile(s.committedPath(cat, prop), []byte(value), 0o640); err != nil {
			return fmt.Errorf("adminstore: commit %s/%s: %w", cat, prop, err)
		}
		committed++
	}
	if committed == 0 {
		return domain.ErrNoStagedChange
	}
	s.logger.Info("committed category", "category", cat, "properties", committed)
	return nil
}

// Rollback discards staged edits in cat by overwriting each staged file
// with its last-committed value, mirroring ipc_admin_rollback's reversed
// fsop_cp direction.
func (s *Store) Rollback(cat domain.AdminCategory) error {
	schema, err := s.manifest.Category(cat)
	if err != nil {
		return err
	}

	reverted := 0
	for prop := range schema.Properties {
		committedData, err := os.ReadFile(s.committedPath(cat, prop))
		if os.IsNotExist(err) {
			_ = os.Remove(s.stagedPath(cat, prop))
			continue
		}
		if err != nil {
			return fmt.Errorf("adminstore: read committed %s/%s: %w", cat, prop, err)
		}
		if err := os.WriteFile(s.stagedPath(cat, prop), committedData, 0o640); err != nil {
			return fmt.Errorf("adminstore: rollback %s/%s: %w", cat, prop, err)
		}
		reverted++
	}
	s.logger.Info("rolled back category", "category", cat, "properties", reverted)
	return nil
}
