package table

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Columns is the fixed, ordered set of field names every row conforms to.
// It is established once at startup; every Row.Data key set equals it.
type Columns []string

// DefaultColumns covers the common fields of receipts and invoices when no
// column file is configured.
var DefaultColumns = Columns{"date", "merchant", "description", "category", "amount", "currency"}

type columnsFile struct {
	Columns []string `yaml:"columns"`
}

// LoadColumns reads a column set from a YAML file of the form:
//
//	columns:
//	  - date
//	  - merchant
func LoadColumns(path string) (Columns, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading columns file: %w", err)
	}

	var cf columnsFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing columns file: %w", err)
	}

	cols := Columns(cf.Columns)
	if err := cols.Validate(); err != nil {
		return nil, fmt.Errorf("columns file %s: %w", path, err)
	}
	return cols, nil
}

// Validate checks the column set is usable: non-empty, no blank names, no
// duplicates.
func (c Columns) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("no columns defined")
	}
	seen := make(map[string]struct{}, len(c))
	for _, name := range c {
		if name == "" {
			return fmt.Errorf("empty column name")
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
