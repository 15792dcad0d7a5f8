package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultRowColor is used for rows whose layout entry has no colour.
const DefaultRowColor = "#000000"

// Layout describes the physical hall: its rows and work tables.
type Layout struct {
	Rows   []RowLayout   `yaml:"rows"`
	Tables []TableLayout `yaml:"tables"`
}

// RowLayout is one row of the hall.
type RowLayout struct {
	Name     string `yaml:"name"`
	Color    string `yaml:"color"`
	Capacity int    `yaml:"capacity"`
}

// TableLayout is one work table.
type TableLayout struct {
	Name string `yaml:"name"`
}

// LoadLayout reads and validates the layout file at path.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	return ParseLayout(data)
}

// ParseLayout decodes a YAML layout.  Names are trimmed and must be unique
// per kind; capacities must be positive.
func ParseLayout(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	rows := make(map[string]bool, len(l.Rows))
	for i := range l.Rows {
		r := &l.Rows[i]
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			return nil, fmt.Errorf("layout row %d: name is required", i)
		}
		if rows[r.Name] {
			return nil, fmt.Errorf("layout row %q: duplicate name", r.Name)
		}
		rows[r.Name] = true
		if r.Capacity < 1 {
			return nil, fmt.Errorf("layout row %q: capacity must be positive", r.Name)
		}
		if r.Color = strings.TrimSpace(r.Color); r.Color == "" {
			r.Color = DefaultRowColor
		}
	}

	tables := make(map[string]bool, len(l.Tables))
	for i := range l.Tables {
		t := &l.Tables[i]
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			return nil, fmt.Errorf("layout table %d: name is required", i)
		}
		if tables[t.Name] {
			return nil, fmt.Errorf("layout table %q: duplicate name", t.Name)
		}
		tables[t.Name] = true
	}
	return &l, nil
}

// LayoutPathFromEnv returns HALL_LAYOUT or hall.yaml.
func LayoutPathFromEnv() string {
	return getenv("HALL_LAYOUT", "hall.yaml")
}
