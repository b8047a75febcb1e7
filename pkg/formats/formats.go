// Package formats defines the closed sets of input file types and output
// formats the engine understands.
package formats

import (
	"os"
	"path/filepath"

	"github.com/ajitpratap0/ingest/pkg/errors"
)

// DefaultOutputPath is the artifact path base used when none is configured.
// The output format's extension is appended to it.
func DefaultOutputPath() string {
	return filepath.Join(os.TempDir(), "default_output")
}

// FileType is a declared input encoding
type FileType string

const (
	// Text is line-oriented delimited text (or a repeating-block access log)
	Text FileType = "txt"
	// JSON is a JSON array of objects or object of arrays
	JSON FileType = "json"
	// Parquet is Apache Parquet
	Parquet FileType = "parquet"
	// Excel is an .xlsx workbook; every sheet is decoded
	Excel FileType = "excel"
)

// FileTypes lists every supported input type
func FileTypes() []FileType {
	return []FileType{Text, JSON, Parquet, Excel}
}

// ParseFileType validates s as a FileType
func ParseFileType(s string) (FileType, error) {
	switch ft := FileType(s); ft {
	case Text, JSON, Parquet, Excel:
		return ft, nil
	default:
		return "", errors.UnsupportedFormat("file type", s)
	}
}

// OutputFormat is a serialization target
type OutputFormat string

const (
	// OutputJSON writes a JSON array of records
	OutputJSON OutputFormat = "json"
	// OutputParquet writes Apache Parquet
	OutputParquet OutputFormat = "parquet"
	// OutputCSV writes comma-separated values with a header
	OutputCSV OutputFormat = "csv"
	// OutputExcel writes a single-sheet .xlsx workbook
	OutputExcel OutputFormat = "excel"
)

// OutputFormats lists every supported output format
func OutputFormats() []OutputFormat {
	return []OutputFormat{OutputJSON, OutputParquet, OutputCSV, OutputExcel}
}

// ParseOutputFormat validates s as an OutputFormat
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch of := OutputFormat(s); of {
	case OutputJSON, OutputParquet, OutputCSV, OutputExcel:
		return of, nil
	default:
		return "", errors.UnsupportedFormat("output format", s)
	}
}

// Extension returns the file extension, with its dot, written for f
func (f OutputFormat) Extension() string {
	switch f {
	case OutputJSON:
		return ".json"
	case OutputParquet:
		return ".parquet"
	case OutputCSV:
		return ".csv"
	case OutputExcel:
		return ".xlsx"
	default:
		return ""
	}
}

// ContentType returns the MIME type used when the artifact is uploaded
func (f OutputFormat) ContentType() string {
	switch f {
	case OutputJSON:
		return "application/json"
	case OutputParquet:
		return "application/x-parquet"
	case OutputCSV:
		return "text/csv"
	case OutputExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
