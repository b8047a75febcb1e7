// Package encode persists canonical tables in the supported output formats.
package encode

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/formats"
	"github.com/ajitpratap0/ingest/pkg/formats/columnar"
	"github.com/ajitpratap0/ingest/pkg/logger"
	"github.com/ajitpratap0/ingest/pkg/table"
)

// Writer persists t at path, which already carries the format's extension.
type Writer func(t *table.Table, path string) error

// Registry maps output formats to writers. It is immutable once built.
type Registry struct {
	writers map[formats.OutputFormat]Writer
	log     *zap.Logger
}

// Option customizes a Registry
type Option func(*Registry)

// WithParquetConfig sets the Parquet writer configuration
func WithParquetConfig(cfg *columnar.WriterConfig) Option {
	return func(r *Registry) {
		r.writers[formats.OutputParquet] = parquetWriter(cfg)
	}
}

// NewRegistry returns a registry with a writer for every output format
func NewRegistry(log *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		writers: map[formats.OutputFormat]Writer{
			formats.OutputJSON:    writeJSON,
			formats.OutputParquet: parquetWriter(nil),
			formats.OutputCSV:     writeCSV,
			formats.OutputExcel:   writeExcel,
		},
		log: logger.OrNop(log).Named("encode"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Serialize writes t to outputPath plus the format's extension and returns the
// path written. Missing parent directories are created. A failed write may
// leave a partial file behind.
func (r *Registry) Serialize(t *table.Table, format, outputPath string) (string, error) {
	of, err := formats.ParseOutputFormat(format)
	if err != nil {
		return "", err
	}
	w, ok := r.writers[of]
	if !ok {
		return "", errors.UnsupportedFormat("output format", format)
	}

	path := outputPath + of.Extension()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeIO, "failed to create output directory").
			WithDetail("path", path)
	}

	if err := w(t, path); err != nil {
		if errors.IsType(err, errors.ErrorTypeIO) {
			return "", err
		}
		return "", errors.Wrap(err, errors.ErrorTypeIO, "failed to write "+string(of)+" output").
			WithDetail("path", path)
	}

	r.log.Info("table serialized",
		zap.String("format", string(of)),
		zap.String("path", path),
		zap.Int("records", t.NumRows()))
	return path, nil
}
