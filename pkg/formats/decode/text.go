package decode

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/table"
)

// positionalName names column n (0-based) after its position, moving right
// past names already in seen, and records the name it picks.
func positionalName(n int, seen map[string]struct{}) string {
	for ; ; n++ {
		name := fmt.Sprintf("column_%d", n+1)
		if _, taken := seen[name]; !taken {
			seen[name] = struct{}{}
			return name
		}
	}
}

// decodeText reads header-plus-rows delimited text. The header line supplies
// column names and is not data. Rows are not validated against the header:
// short rows are padded with nulls and fields past the header get positional
// column names, null in every row that lacks them. Blank lines are ignored.
func decodeText(data []byte, delimiter rune, log *zap.Logger) (*Decoded, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = false

	header, err := r.Read()
	if err == io.EOF {
		log.Info("TXT file processed", zap.Int("records", 0))
		return &Decoded{Table: table.Empty()}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to read text header")
	}

	columns := make([]string, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
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

	var rows [][]table.Value
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to read text row").
				WithDetail("row", len(rows)+1)
		}

		for len(columns) < len(record) {
			columns = append(columns, positionalName(len(columns), seen))
		}

		row := make([]table.Value, len(record))
		for i, field := range record {
			row[i] = field
		}
		rows = append(rows, row)
	}

	t, err := table.New(columns, rows)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to build table from text")
	}

	log.Info("TXT file processed", zap.Int("records", t.NumRows()))
	return &Decoded{Table: t}, nil
}
