// Package columnar converts between canonical tables and Apache Parquet using
// the Arrow Go implementation.
package columnar

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet/compress"
	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/ingest/pkg/table"
)

// WriterConfig configures the Parquet writer
type WriterConfig struct {
	Compression    string
	PageSize       int
	EnableDict     bool
	TimestampUnit  arrow.TimeUnit
	RowGroupLength int64
}

// DefaultWriterConfig returns default writer configuration
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		Compression:    "snappy",
		PageSize:       1024 * 1024,
		EnableDict:     true,
		TimestampUnit:  arrow.Microsecond,
		RowGroupLength: 64 * 1024,
	}
}

// InferSchema derives an Arrow schema for t. Each column takes the narrowest of
// int64, float64, bool and timestamp that fits every non-null value; anything
// else, including all-null columns, is a string. Every field is nullable.
func InferSchema(t *table.Table, unit arrow.TimeUnit) *arrow.Schema {
	columns := t.Columns()
	fields := make([]arrow.Field, len(columns))
	for i, name := range columns {
		fields[i] = arrow.Field{
			Name:     name,
			Type:     inferType(t.Column(name), unit),
			Nullable: true,
		}
	}
	return arrow.NewSchema(fields, nil)
}

type kind int

const (
	kindNone kind = iota
	kindInt
	kindFloat
	kindBool
	kindTime
	kindString
)

func inferType(values []table.Value, unit arrow.TimeUnit) arrow.DataType {
	k := kindNone
	for _, v := range values {
		if v == nil {
			continue
		}
		k = widen(k, kindOf(v))
		if k == kindString {
			break
		}
	}

	switch k {
	case kindInt:
		return arrow.PrimitiveTypes.Int64
	case kindFloat:
		return arrow.PrimitiveTypes.Float64
	case kindBool:
		return arrow.FixedWidthTypes.Boolean
	case kindTime:
		return &arrow.TimestampType{Unit: unit, TimeZone: "UTC"}
	default:
		return arrow.BinaryTypes.String
	}
}

func kindOf(v table.Value) kind {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return kindInt
	case float32, float64:
		return kindFloat
	case bool:
		return kindBool
	case time.Time:
		return kindTime
	default:
		return kindString
	}
}

func widen(cur, next kind) kind {
	switch {
	case cur == kindNone || cur == next:
		return next
	case (cur == kindInt && next == kindFloat) || (cur == kindFloat && next == kindInt):
		return kindFloat
	default:
		return kindString
	}
}

// Stringify renders a non-null value the way string columns store it.
// Composite values (decoded JSON objects and arrays, or anything that marshals
// itself) become JSON text.
func Stringify(v table.Value) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case gojson.Marshaler:
		b, err := gojson.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	case fmt.Stringer:
		return x.String()
	case map[string]any, []any:
		b, err := gojson.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func getParquetCompression(name string) compress.Compression {
	switch name {
	case "none", "uncompressed", "":
		return compress.Codecs.Uncompressed
	case "gzip":
		return compress.Codecs.Gzip
	case "zstd":
		return compress.Codecs.Zstd
	case "lz4":
		return compress.Codecs.Lz4Raw
	case "brotli":
		return compress.Codecs.Brotli
	default:
		return compress.Codecs.Snappy
	}
}
