package decode

import (
	"bytes"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/table"
)

// decodeExcel reads every sheet of an .xlsx workbook. The first row of a sheet
// is its header; header cells that are blank or repeated get positional names.
// Cells excelize reports as empty are null.
func decodeExcel(data []byte, log *zap.Logger) (*Decoded, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to process Excel file")
	}
	defer f.Close()

	names := f.GetSheetList()
	sheets := make([]Sheet, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to read Excel sheet").
				WithDetail("sheet", name)
		}

		t, err := sheetTable(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to build table from Excel sheet").
				WithDetail("sheet", name)
		}
		sheets = append(sheets, Sheet{Name: name, Table: t})
	}

	d := &Decoded{Sheets: sheets}
	log.Info("Excel file processed", zap.Strings("sheets", d.SheetNames()))
	return d, nil
}

func sheetTable(rows [][]string) (*table.Table, error) {
	if len(rows) == 0 {
		return table.Empty(), nil
	}

	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}

	columns := make([]string, width)
	seen := make(map[string]struct{}, width)
	for i := range columns {
		name := ""
		if i < len(rows[0]) {
			name = rows[0][i]
		}
		if _, dup := seen[name]; dup || name == "" {
			continue
		}
		seen[name] = struct{}{}
		columns[i] = name
	}
	for i, name := range columns {
		if name == "" {
			columns[i] = positionalName(i, seen)
		}
	}

	data := make([][]table.Value, 0, len(rows)-1)
	for _, r := range rows[1:] {
		row := make([]table.Value, width)
		for i, cell := range r {
			if cell != "" {
				row[i] = cell
			}
		}
		data = append(data, row)
	}

	return table.New(columns, data)
}
