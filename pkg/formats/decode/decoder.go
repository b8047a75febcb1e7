// Package decode turns raw input bytes into canonical tables.
//
// Each supported file type has one decoder. The Dispatcher maps a declared file
// type to its decoder and refuses anything outside the closed set in
// pkg/formats.
package decode

import (
	"github.com/ajitpratap0/ingest/pkg/formats/logblock"
	"github.com/ajitpratap0/ingest/pkg/table"
)

// Sheet is one worksheet of a decoded workbook.
type Sheet struct {
	Name  string
	Table *table.Table
}

// Decoded is the result of a decoder. Exactly one of Table and Sheets is set:
// spreadsheets yield one table per sheet, every other format a single table.
type Decoded struct {
	Table  *table.Table
	Sheets []Sheet
	// Skipped counts input lines a tolerant decoder dropped
	Skipped int
}

// IsWorkbook reports whether d holds per-sheet tables.
func (d *Decoded) IsWorkbook() bool {
	return d.Table == nil
}

// SheetNames returns the sheet names in workbook order.
func (d *Decoded) SheetNames() []string {
	names := make([]string, len(d.Sheets))
	for i, s := range d.Sheets {
		names[i] = s.Name
	}
	return names
}

// Decoder converts raw bytes into a Decoded result.
type Decoder func(data []byte) (*Decoded, error)

// TextLayout selects what backs the txt file type.
type TextLayout string

const (
	// LayoutDelimited is header-plus-delimited-rows text
	LayoutDelimited TextLayout = "delimited"
	// LayoutLogBlock is a block-cadenced access log export
	LayoutLogBlock TextLayout = "logblock"
)

// Options configures the decoders a Dispatcher hands out.
type Options struct {
	// Delimiter separates text fields. Defaults to ','.
	Delimiter rune
	// TextLayout picks the txt decoder. Defaults to LayoutDelimited.
	TextLayout TextLayout
	// LogBlock tunes the log-block parser when TextLayout is LayoutLogBlock.
	LogBlock logblock.Options
}

// DefaultOptions returns the decoder defaults
func DefaultOptions() Options {
	return Options{
		Delimiter:  ',',
		TextLayout: LayoutDelimited,
	}
}
