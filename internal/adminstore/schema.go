package adminstore

import (
	_ "embed"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/usched-go/usched/internal/domain"
)

//go:embed manifest.toml
var manifestTOML []byte

// PropertySchema describes one admin-configurable property's type and
// default value.
type PropertySchema struct {
	Type    string `toml:"type"`
	Default string `toml:"default"`
}

// CategorySchema describes one category's PID-gating rule and property
// set.
type CategorySchema struct {
	PIDGated   bool                      `toml:"pid_gated"`
	Properties map[string]PropertySchema `toml:"properties"`
}

// Manifest is the full static schema, keyed by category name.
type Manifest map[string]CategorySchema

// LoadManifest parses the embedded schema manifest.
func LoadManifest() (Manifest, error) {
	var m Manifest
	if _, err := toml.Decode(string(manifestTOML), &m); err != nil {
		return nil, fmt.Errorf("adminstore: decode manifest: %w", err)
	}
	return m, nil
}

// Category looks up a category's schema, validating it against
// domain.AllCategories.
func (m Manifest) Category(cat domain.AdminCategory) (CategorySchema, error) {
	sch, ok := m[string(cat)]
	if !ok {
		return CategorySchema{}, domain.ErrUnknownCategory
	}
	return sch, nil
}

// Property looks up one property's schema within a category.
func (m Manifest) Property(cat domain.AdminCategory, name string) (PropertySchema, error) {
	sch, err := m.Category(cat)
	if err != nil {
		return PropertySchema{}, err
	}
	prop, ok := sch.Properties[name]
	if !ok {
		return PropertySchema{}, domain.ErrUnknownProperty
	}
	return prop, nil
}
