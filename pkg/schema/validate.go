package schema

import (
	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/table"
)

// ValidateTable is the gate between parsing and downstream use. It fails with a
// validation error when t has no rows or any null cell, and returns true
// otherwise. It never modifies t.
func ValidateTable(t *table.Table) (bool, error) {
	if t == nil || t.NumRows() == 0 {
		return false, errors.New(errors.ErrorTypeValidation, "no data processed")
	}

	columns := t.Columns()
	err := t.Each(func(r int, row []table.Value) error {
		for c, v := range row {
			if v == nil {
				return errors.Newf(errors.ErrorTypeValidation, "null value in column %q", columns[c]).
					WithDetail("column", columns[c]).
					WithDetail("row", r)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return true, nil
}
