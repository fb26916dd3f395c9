package tables

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/pos-dashboard/internal/model"
)

type layoutFile struct {
	Tables []model.Table `yaml:"tables"`
}

// DefaultLayout is the floor used when no layout file is configured.
func DefaultLayout() []model.Table {
	caps := []int{2, 2, 4, 4, 4, 6, 6, 8}
	out := make([]model.Table, len(caps))
	for i, c := range caps {
		out[i] = model.Table{
			ID:       fmt.Sprintf("T%d", i+1),
			Name:     fmt.Sprintf("Table %d", i+1),
			Capacity: c,
		}
	}
	return out
}

// ParseLayout reads a YAML floor plan:
//
//	tables:
//	  - {id: T1, name: Window, capacity: 2}
func ParseLayout(data []byte) ([]model.Table, error) {
	var f layoutFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse table layout: %w", err)
	}
	if len(f.Tables) == 0 {
		return nil, fmt.Errorf("parse table layout: no tables")
	}
	seen := map[string]bool{}
	for i, tb := range f.Tables {
		if tb.ID == "" {
			return nil, fmt.Errorf("parse table layout: table %d has no id", i)
		}
		if seen[tb.ID] {
			return nil, fmt.Errorf("parse table layout: duplicate id %q", tb.ID)
		}
		if tb.Capacity <= 0 {
			return nil, fmt.Errorf("parse table layout: table %q capacity must be positive", tb.ID)
		}
		if tb.Name == "" {
			f.Tables[i].Name = tb.ID
		}
		seen[tb.ID] = true
	}
	return f.Tables, nil
}

// LoadLayout reads path, or returns DefaultLayout when path is empty.
func LoadLayout(path string) ([]model.Table, error) {
	if path == "" {
		return DefaultLayout(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseLayout(data)
}
