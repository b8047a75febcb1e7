// Package schema aligns decoded tables with a declared target schema.
//
// A Schema is an ordered list of column descriptors. Enforce reshapes any
// table to exactly that column list and applies the per-column NOT NULL
// policy; ValidateTable is the pipeline gate that rejects empty or
// null-containing results without touching them.
package schema

import (
	"github.com/ajitpratap0/ingest/pkg/errors"
)

// Column describes one target column.
type Column struct {
	Name           string `mapstructure:"name" yaml:"name" json:"name"`
	EnforceNotNull bool   `mapstructure:"enforce_not_null" yaml:"enforce_not_null" json:"enforce_not_null"`
}

// Schema is the flat target shape for one run.
type Schema struct {
	ExpectedColumns []Column `mapstructure:"expected_columns" yaml:"expected_columns" json:"expected_columns"`
}

// NotNullDefault replaces nulls in columns flagged EnforceNotNull.
const NotNullDefault = ""

// New builds a schema from columns.
func New(columns ...Column) Schema {
	return Schema{ExpectedColumns: columns}
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.ExpectedColumns))
	for i, c := range s.ExpectedColumns {
		names[i] = c.Name
	}
	return names
}

// Validate checks that the schema declares at least one column and that names
// are non-empty and unique.
func (s Schema) Validate() error {
	if len(s.ExpectedColumns) == 0 {
		return errors.New(errors.ErrorTypeConfig, "schema declares no columns")
	}

	seen := make(map[string]struct{}, len(s.ExpectedColumns))
	for i, c := range s.ExpectedColumns {
		if c.Name == "" {
			return errors.New(errors.ErrorTypeConfig, "schema column name is empty").
				WithDetail("position", i)
		}
		if _, dup := seen[c.Name]; dup {
			return errors.Newf(errors.ErrorTypeConfig, "duplicate schema column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}
