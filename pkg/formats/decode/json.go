package decode

import (
	"bytes"
	"io"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/table"
)

type member struct {
	key   string
	value any
}

// decodeJSON accepts two shapes:
//
//	[{"id": 1, "name": "a"}, {"id": 2}]           array of records
//	{"id": [1, 2], "name": ["a", null]}           object of columns
//	{"id": {"0": 1, "1": 2}, "name": {"0": "a"}}  object of indexed columns
//
// Columns are the union of keys in first-seen order. The document is read as a
// token stream so that key order survives.
func decodeJSON(data []byte, log *zap.Logger) (*Decoded, error) {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDecode, "invalid JSON payload")
	}

	var t *table.Table
	switch tok {
	case gojson.Delim('['):
		t, err = readRecords(dec)
	case gojson.Delim('{'):
		t, err = readColumns(dec)
	default:
		return nil, errors.New(errors.ErrorTypeDecode, "JSON payload must be an array or an object")
	}
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New(errors.ErrorTypeDecode, "unexpected data after JSON document")
	}

	log.Info("JSON file processed", zap.Int("records", t.NumRows()))
	return &Decoded{Table: t}, nil
}

func readRecords(dec *gojson.Decoder) (*table.Table, error) {
	var columns []string
	index := make(map[string]int)
	var records [][]member

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDecode, "invalid JSON payload")
		}
		if tok != gojson.Delim('{') {
			return nil, errors.New(errors.ErrorTypeDecode, "JSON array element is not an object").
				WithDetail("element", len(records))
		}

		members, err := readObject(dec)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if _, ok := index[m.key]; !ok {
				index[m.key] = len(columns)
				columns = append(columns, m.key)
			}
		}
		records = append(records, members)
	}
	if err := closeDelim(dec); err != nil {
		return nil, err
	}

	rows := make([][]table.Value, len(records))
	for r, members := range records {
		row := make([]table.Value, len(columns))
		for _, m := range members {
			row[index[m.key]] = m.value
		}
		rows[r] = row
	}

	return buildTable(columns, rows)
}

func readColumns(dec *gojson.Decoder) (*table.Table, error) {
	var columns []string
	var arrays [][]any
	var objects [][]member

	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}

		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDecode, "invalid JSON payload")
		}

		switch tok {
		case gojson.Delim('['):
			var values []any
			for dec.More() {
				var v any
				if err := dec.Decode(&v); err != nil {
					return nil, errors.Wrap(err, errors.ErrorTypeDecode, "invalid JSON payload")
				}
				values = append(values, normalize(v))
			}
			if err := closeDelim(dec); err != nil {
				return nil, err
			}
			arrays = append(arrays, values)
		case gojson.Delim('{'):
			members, err := readObject(dec)
			if err != nil {
				return nil, err
			}
			objects = append(objects, members)
		default:
			return nil, errors.Newf(errors.ErrorTypeDecode, "JSON column %q is a scalar; expected an array or object", key)
		}
		columns = append(columns, key)
	}
	if err := closeDelim(dec); err != nil {
		return nil, err
	}

	switch {
	case len(arrays) > 0 && len(objects) > 0:
		return nil, errors.New(errors.ErrorTypeDecode, "JSON columns mix arrays and objects")
	case len(objects) > 0:
		return indexedColumns(columns, objects)
	default:
		return arrayColumns(columns, arrays)
	}
}

func arrayColumns(columns []string, arrays [][]any) (*table.Table, error) {
	n := 0
	for i, values := range arrays {
		if i == 0 {
			n = len(values)
		} else if len(values) != n {
			return nil, errors.New(errors.ErrorTypeDecode, "JSON column arrays must all be the same length").
				WithDetail("column", columns[i])
		}
	}

	rows := make([][]table.Value, n)
	for r := range rows {
		row := make([]table.Value, len(columns))
		for c := range columns {
			row[c] = arrays[c][r]
		}
		rows[r] = row
	}
	return buildTable(columns, rows)
}

func indexedColumns(columns []string, objects [][]member) (*table.Table, error) {
	var keys []string
	pos := make(map[string]int)
	for _, members := range objects {
		for _, m := range members {
			if _, ok := pos[m.key]; !ok {
				pos[m.key] = len(keys)
				keys = append(keys, m.key)
			}
		}
	}

	rows := make([][]table.Value, len(keys))
	for r := range rows {
		rows[r] = make([]table.Value, len(columns))
	}
	for c, members := range objects {
		for _, m := range members {
			rows[pos[m.key]][c] = m.value
		}
	}
	return buildTable(columns, rows)
}

// readObject reads members up to and including the closing brace. The opening
// brace has already been consumed.
func readObject(dec *gojson.Decoder) ([]member, error) {
	var members []member
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDecode, "invalid JSON payload")
		}
		members = append(members, member{key: key, value: normalize(v)})
	}
	return members, closeDelim(dec)
}

func readKey(dec *gojson.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeDecode, "invalid JSON payload")
	}
	key, ok := tok.(string)
	if !ok {
		return "", errors.New(errors.ErrorTypeDecode, "invalid JSON object key")
	}
	return key, nil
}

func closeDelim(dec *gojson.Decoder) error {
	if _, err := dec.Token(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeDecode, "invalid JSON payload")
	}
	return nil
}

// normalize turns json.Number into int64 when integral and float64 otherwise,
// recursing into composite values.
func normalize(v any) any {
	switch x := v.(type) {
	case gojson.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	default:
		return v
	}
}

func buildTable(columns []string, rows [][]table.Value) (*table.Table, error) {
	t, err := table.New(columns, rows)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to build table from JSON")
	}
	return t, nil
}
