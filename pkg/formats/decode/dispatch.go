package decode

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/formats"
	"github.com/ajitpratap0/ingest/pkg/formats/logblock"
	"github.com/ajitpratap0/ingest/pkg/logger"
	"github.com/ajitpratap0/ingest/pkg/table"
)

// Dispatcher hands out the decoder for a declared file type. It holds no
// mutable state and may be shared between runs.
type Dispatcher struct {
	decoders map[formats.FileType]Decoder
}

// NewDispatcher builds a dispatcher over the supported file types.
func NewDispatcher(opts Options, log *zap.Logger) *Dispatcher {
	log = logger.OrNop(log).Named("decode")
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}

	var text Decoder
	switch opts.TextLayout {
	case LayoutLogBlock:
		parser := logblock.NewParser(opts.LogBlock, log)
		text = func(data []byte) (*Decoded, error) {
			t, stats := parser.Parse(string(data))
			return &Decoded{Table: t, Skipped: stats.Skipped}, nil
		}
	default:
		delim := opts.Delimiter
		text = func(data []byte) (*Decoded, error) {
			return decodeText(data, delim, log)
		}
	}

	return &Dispatcher{
		decoders: map[formats.FileType]Decoder{
			formats.Text:    text,
			formats.JSON:    func(data []byte) (*Decoded, error) { return decodeJSON(data, log) },
			formats.Parquet: func(data []byte) (*Decoded, error) { return decodeParquet(data, log) },
			formats.Excel:   func(data []byte) (*Decoded, error) { return decodeExcel(data, log) },
		},
	}
}

// Dispatch returns the decoder for fileType, or an unsupported-format error
// naming it.
func (d *Dispatcher) Dispatch(fileType string) (Decoder, error) {
	ft, err := formats.ParseFileType(fileType)
	if err != nil {
		return nil, err
	}
	dec, ok := d.decoders[ft]
	if !ok {
		return nil, errors.UnsupportedFormat("file type", fileType)
	}
	return dec, nil
}

// Decode dispatches on fileType and decodes data in one step.
func (d *Dispatcher) Decode(fileType string, data []byte) (*Decoded, error) {
	dec, err := d.Dispatch(fileType)
	if err != nil {
		return nil, err
	}
	return dec(data)
}

// Flatten turns any Decoded into one table. Workbooks are stacked sheet by
// sheet with the union of their columns, and sheetColumn, when non-empty,
// records which sheet each row came from.
func Flatten(d *Decoded, sheetColumn string) *table.Table {
	if !d.IsWorkbook() {
		return d.Table
	}

	parts := make([]*table.Table, len(d.Sheets))
	for i, s := range d.Sheets {
		t := s.Table
		if sheetColumn != "" {
			t = t.WithConstant(sheetColumn, s.Name)
		}
		parts[i] = t
	}
	return table.Concat(parts...)
}
