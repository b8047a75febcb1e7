package encode

import (
	"bytes"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/ingest/pkg/table"
)

// Object is an ordered JSON object: keys marshal in the order they were given.
// It is a valid table.Value, so a row snapshot can itself be stored in a cell.
type Object struct {
	keys   []string
	values []table.Value
}

// RowObject captures row as an Object keyed by columns. Both slices are copied.
func RowObject(columns []string, row []table.Value) Object {
	o := Object{
		keys:   make([]string, len(columns)),
		values: make([]table.Value, len(columns)),
	}
	copy(o.keys, columns)
	copy(o.values, row)
	return o
}

// Keys returns the object's keys in order.
func (o Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Get returns the value stored under key, or nil.
func (o Object) Get(key string) table.Value {
	for i, k := range o.keys {
		if k == key {
			return o.values[i]
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeObject(&buf, o.keys, o.values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeObject(buf *bytes.Buffer, keys []string, values []table.Value) error {
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := gojson.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := marshalValue(values[i])
		if err != nil {
			return err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return nil
}

// marshalValue renders times as RFC 3339 in UTC; everything else goes through
// the JSON encoder.
func marshalValue(v table.Value) ([]byte, error) {
	if t, ok := v.(time.Time); ok {
		return gojson.Marshal(t.UTC().Format(time.RFC3339))
	}
	return gojson.Marshal(v)
}
