package schema

import (
	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/table"
)

// Enforce reshapes t to s:
//
//  1. schema columns missing from t are added, null on every row;
//  2. columns are selected and reordered to schema order, everything else dropped;
//  3. nulls in EnforceNotNull columns become NotNullDefault.
//
// The output column list is exactly s.Names(). Enforce(Enforce(t, s), s) equals
// Enforce(t, s).
func Enforce(t *table.Table, s Schema) (*table.Table, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	out, err := t.Select(s.Names())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to align columns")
	}

	for _, c := range s.ExpectedColumns {
		if !c.EnforceNotNull {
			continue
		}
		out = out.MapColumn(c.Name, fillNull)
	}

	return out, nil
}

func fillNull(v table.Value) table.Value {
	if v == nil {
		return NotNullDefault
	}
	return v
}
