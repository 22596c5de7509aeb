package mapping

import (
	_ "embed"
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTables []byte

// Tables are the lookup tables the mapper consults. A present key with an
// empty code is an intentional "no code".
type Tables struct {
	Categories  map[string]string `yaml:"categories"`
	Departments map[string]string `yaml:"departments"`
	Majors      map[string]string `yaml:"majors"`
}

func DefaultTables() (*Tables, error) {
	var tables Tables
	if err := yaml.Unmarshal(defaultTables, &tables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedded tables: %w", err)
	}
	return &tables, nil
}

// LoadTables returns the embedded tables with the entries of the file at
// path layered on top. An empty path yields the embedded tables.
func LoadTables(path string) (*Tables, error) {
	tables, err := DefaultTables()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return tables, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables file: %w", err)
	}

	var override Tables
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tables file: %w", err)
	}

	tables.merge(&override)
	return tables, nil
}

func (t *Tables) merge(other *Tables) {
	if t.Categories == nil {
		t.Categories = make(map[string]string)
	}
	if t.Departments == nil {
		t.Departments = make(map[string]string)
	}
	if t.Majors == nil {
		t.Majors = make(map[string]string)
	}
	maps.Copy(t.Categories, other.Categories)
	maps.Copy(t.Departments, other.Departments)
	maps.Copy(t.Majors, other.Majors)
}

func (t *Tables) IsDepartment(name string) bool {
	_, ok := t.Departments[name]
	return ok
}
