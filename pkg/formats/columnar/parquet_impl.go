package columnar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/ingest/pkg/table"
)

// ReadParquet decodes a complete Parquet file into a table. Column names and
// order come from the schema embedded in the file.
func ReadParquet(data []byte) (*table.Table, error) {
	mem := memory.NewGoAllocator()

	tbl, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(data),
		parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("failed to read Parquet data: %w", err)
	}
	defer tbl.Release()

	ncols := int(tbl.NumCols())
	nrows := int(tbl.NumRows())

	columns := make([]string, ncols)
	rows := make([][]table.Value, nrows)
	for r := range rows {
		rows[r] = make([]table.Value, ncols)
	}

	for c := 0; c < ncols; c++ {
		col := tbl.Column(c)
		columns[c] = col.Name()

		r := 0
		for _, chunk := range col.Data().Chunks() {
			for i := 0; i < chunk.Len(); i++ {
				rows[r][c] = getColumnValue(chunk, i)
				r++
			}
		}
	}

	return table.New(columns, rows)
}

// WriteParquet encodes t as a single Parquet file on w.
func WriteParquet(w io.Writer, t *table.Table, config *WriterConfig) error {
	if config == nil {
		config = DefaultWriterConfig()
	}

	mem := memory.NewGoAllocator()
	schema := InferSchema(t, config.TimestampUnit)

	props := parquet.NewWriterProperties(
		parquet.WithCompression(getParquetCompression(config.Compression)),
		parquet.WithDictionaryDefault(config.EnableDict),
		parquet.WithDataPageSize(int64(config.PageSize)),
		parquet.WithMaxRowGroupLength(config.RowGroupLength),
		parquet.WithAllocator(mem),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(mem))

	fw, err := pqarrow.NewFileWriter(schema, w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create Parquet writer: %w", err)
	}

	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	err = t.Each(func(_ int, row []table.Value) error {
		for i, v := range row {
			if err := appendValue(builder.Field(i), v); err != nil {
				return fmt.Errorf("column %s: %w", schema.Field(i).Name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = fw.Close()
		return err
	}

	record := builder.NewRecord()
	defer record.Release()

	if record.NumRows() > 0 {
		if err := fw.Write(record); err != nil {
			_ = fw.Close()
			return fmt.Errorf("failed to write record batch: %w", err)
		}
	}

	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close Parquet writer: %w", err)
	}
	return nil
}

func appendValue(builder array.Builder, value table.Value) error {
	if value == nil {
		builder.AppendNull()
		return nil
	}

	switch b := builder.(type) {
	case *array.BooleanBuilder:
		v, _ := value.(bool)
		b.Append(v)

	case *array.Int64Builder:
		v, ok := toInt64(value)
		if !ok {
			return fmt.Errorf("cannot store %T as int64", value)
		}
		b.Append(v)

	case *array.Float64Builder:
		if f, ok := value.(float64); ok {
			b.Append(f)
		} else if f, ok := value.(float32); ok {
			b.Append(float64(f))
		} else if i, ok := toInt64(value); ok {
			b.Append(float64(i))
		} else {
			return fmt.Errorf("cannot store %T as float64", value)
		}

	case *array.TimestampBuilder:
		v, ok := value.(time.Time)
		if !ok {
			return fmt.Errorf("cannot store %T as timestamp", value)
		}
		ts, err := arrow.TimestampFromTime(v, b.Type().(*arrow.TimestampType).Unit)
		if err != nil {
			return err
		}
		b.Append(ts)

	case *array.StringBuilder:
		b.Append(Stringify(value))

	default:
		return fmt.Errorf("unsupported builder type: %T", builder)
	}

	return nil
}

func toInt64(value table.Value) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	default:
		return 0, false
	}
}

func getColumnValue(col arrow.Array, rowIdx int) table.Value {
	if col.IsNull(rowIdx) {
		return nil
	}

	switch c := col.(type) {
	case *array.Boolean:
		return c.Value(rowIdx)
	case *array.Int8:
		return int64(c.Value(rowIdx))
	case *array.Int16:
		return int64(c.Value(rowIdx))
	case *array.Int32:
		return int64(c.Value(rowIdx))
	case *array.Int64:
		return c.Value(rowIdx)
	case *array.Uint8:
		return int64(c.Value(rowIdx))
	case *array.Uint16:
		return int64(c.Value(rowIdx))
	case *array.Uint32:
		return int64(c.Value(rowIdx))
	case *array.Float32:
		return float64(c.Value(rowIdx))
	case *array.Float64:
		return c.Value(rowIdx)
	case *array.String:
		return c.Value(rowIdx)
	case *array.LargeString:
		return c.Value(rowIdx)
	case *array.Binary:
		return string(c.Value(rowIdx))
	case *array.LargeBinary:
		return string(c.Value(rowIdx))
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		return c.Value(rowIdx).ToTime(unit).UTC()
	case *array.Date32:
		return c.Value(rowIdx).ToTime().UTC()
	case *array.Date64:
		return c.Value(rowIdx).ToTime().UTC()
	default:
		return col.ValueStr(rowIdx)
	}
}
