package encode

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/ajitpratap0/ingest/pkg/formats/columnar"
	"github.com/ajitpratap0/ingest/pkg/table"
)

// writeJSON writes a JSON array with one ordered object per row.
func writeJSON(t *table.Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	columns := t.Columns()

	var buf bytes.Buffer
	buf.WriteByte('[')
	err = t.Each(func(r int, row []table.Value) error {
		if r > 0 {
			buf.WriteByte(',')
		}
		if err := writeObject(&buf, columns, row); err != nil {
			return err
		}
		_, err := w.Write(buf.Bytes())
		buf.Reset()
		return err
	})
	if err != nil {
		return err
	}
	buf.WriteString("]\n")
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// writeCSV writes a header row then one record per row. Nulls are empty fields.
func writeCSV(t *table.Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns()); err != nil {
		return err
	}

	record := make([]string, t.NumColumns())
	err = t.Each(func(_ int, row []table.Value) error {
		for i, v := range row {
			record[i] = ""
			if v != nil {
				record[i] = columnar.Stringify(v)
			}
		}
		return w.Write(record)
	})
	if err != nil {
		return err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func parquetWriter(cfg *columnar.WriterConfig) Writer {
	return func(t *table.Table, path string) error {
		var buf bytes.Buffer
		if err := columnar.WriteParquet(&buf, t, cfg); err != nil {
			return err
		}
		return os.WriteFile(path, buf.Bytes(), 0o644)
	}
}

const excelSheet = "Sheet1"

// writeExcel writes a single-sheet workbook with a header row. Scalars keep
// their cell types; composite values are stored as JSON text.
func writeExcel(t *table.Table, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(excelSheet)
	if err != nil {
		return err
	}

	columns := t.Columns()
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	cells := make([]any, len(columns))
	err = t.Each(func(r int, row []table.Value) error {
		for i, v := range row {
			cells[i] = excelCell(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		return sw.SetRow(cell, cells)
	})
	if err != nil {
		return err
	}

	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}

func excelCell(v table.Value) any {
	switch v.(type) {
	case nil, string, bool, int, int8, int16, int32, int64, uint8, uint16, uint32, float32, float64:
		return v
	default:
		return columnar.Stringify(v)
	}
}
