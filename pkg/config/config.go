package config

import (
	"unicode/utf8"

	"github.com/ajitpratap0/ingest/pkg/compression"
	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/formats"
	"github.com/ajitpratap0/ingest/pkg/formats/columnar"
	"github.com/ajitpratap0/ingest/pkg/formats/decode"
	"github.com/ajitpratap0/ingest/pkg/formats/logblock"
	"github.com/ajitpratap0/ingest/pkg/logger"
	"github.com/ajitpratap0/ingest/pkg/schema"
	"github.com/ajitpratap0/ingest/pkg/storage"
	"github.com/ajitpratap0/ingest/pkg/warehouse"
)

// RunConfig is one ingestion run: where the file comes from, how it is
// decoded and shaped, and where the artifact goes.
type RunConfig struct {
	// Name identifies the run in logs and metrics
	Name string `mapstructure:"name" yaml:"name"`

	Log           logger.Config       `mapstructure:"log" yaml:"log"`
	Source        SourceConfig        `mapstructure:"source" yaml:"source"`
	Transform     TransformConfig     `mapstructure:"transform" yaml:"transform"`
	Schema        schema.Schema       `mapstructure:"schema" yaml:"schema"`
	Staging       StagingConfig       `mapstructure:"staging" yaml:"staging"`
	Warehouse     warehouse.Config    `mapstructure:"warehouse" yaml:"warehouse"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
}

// SourceConfig locates the input object.
type SourceConfig struct {
	Store  storage.Config `mapstructure:"store" yaml:"store"`
	Bucket string         `mapstructure:"bucket" yaml:"bucket"`
	Key    string         `mapstructure:"key" yaml:"key"`
	// Compression is "auto" (detect by magic bytes), "none", or an algorithm
	Compression string `mapstructure:"compression" yaml:"compression"`
	// MaxSize bounds the decompressed payload in bytes
	MaxSize int64 `mapstructure:"max_size" yaml:"max_size"`
}

// TransformConfig drives decode, enrichment and serialization.
type TransformConfig struct {
	FileType        string          `mapstructure:"file_type" yaml:"file_type"`
	Delimiter       string          `mapstructure:"delimiter" yaml:"delimiter"`
	TextLayout      string          `mapstructure:"text_layout" yaml:"text_layout"`
	LogBlock        LogBlockConfig  `mapstructure:"log_block" yaml:"log_block"`
	OutputFormat    string          `mapstructure:"output_format" yaml:"output_format"`
	OutputDirectory string          `mapstructure:"output_directory" yaml:"output_directory"`
	Filename        string          `mapstructure:"filename" yaml:"filename"`
	ValidateData    bool            `mapstructure:"validate" yaml:"validate"`
	Parquet         ParquetSettings `mapstructure:"parquet" yaml:"parquet"`
}

// LogBlockConfig tunes the access-log parser. Zero BlockSize and nil SkipSize
// keep the parser defaults independently of each other.
type LogBlockConfig struct {
	BlockSize int      `mapstructure:"block_size" yaml:"block_size"`
	SkipSize  *int     `mapstructure:"skip_size" yaml:"skip_size,omitempty"`
	Statuses  []string `mapstructure:"statuses" yaml:"statuses,omitempty"`
}

// ParquetSettings tunes parquet output
type ParquetSettings struct {
	Compression  string `mapstructure:"compression" yaml:"compression"`
	RowGroupSize int64  `mapstructure:"row_group_size" yaml:"row_group_size"`
}

// StagingConfig is where the artifact is uploaded for the warehouse. An empty
// Bucket disables staging. A store without a provider reuses the source store.
type StagingConfig struct {
	Store       storage.Config `mapstructure:"store" yaml:"store"`
	Bucket      string         `mapstructure:"bucket" yaml:"bucket"`
	Key         string         `mapstructure:"key" yaml:"key"`
	Compression string         `mapstructure:"compression" yaml:"compression"`
}

// ObservabilityConfig controls metrics and tracing output
type ObservabilityConfig struct {
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`
	Trace       bool   `mapstructure:"trace" yaml:"trace"`
}

// Default returns a RunConfig holding the defaults Load starts from.
func Default() *RunConfig {
	return &RunConfig{
		Log: logger.DefaultConfig(),
		Source: SourceConfig{
			Compression: "auto",
			MaxSize:     compression.DefaultMaxSize,
		},
		Transform: TransformConfig{
			Delimiter:       ",",
			TextLayout:      string(decode.LayoutDelimited),
			OutputFormat:    string(formats.OutputJSON),
			OutputDirectory: formats.DefaultOutputPath(),
			Parquet: ParquetSettings{
				Compression:  "snappy",
				RowGroupSize: 128 * 1024,
			},
		},
	}
}

// Enabled reports whether the artifact is uploaded
func (s StagingConfig) Enabled() bool {
	return s.Bucket != ""
}

// StoreConfig returns the staging store, falling back to source.
func (s StagingConfig) StoreConfig(source storage.Config) storage.Config {
	if s.Store.Provider == "" {
		return source
	}
	return s.Store
}

// DecodeOptions converts the transform settings into decoder options. Call
// Validate first; an invalid delimiter falls back to ','.
func (t TransformConfig) DecodeOptions() decode.Options {
	opts := decode.DefaultOptions()
	if r, size := utf8.DecodeRuneInString(t.Delimiter); size == len(t.Delimiter) && r != utf8.RuneError {
		opts.Delimiter = r
	}
	if t.TextLayout != "" {
		opts.TextLayout = decode.TextLayout(t.TextLayout)
	}
	opts.LogBlock = logblock.Options{
		BlockSize: t.LogBlock.BlockSize,
		SkipSize:  -1,
		Statuses:  t.LogBlock.Statuses,
	}
	if t.LogBlock.SkipSize != nil {
		opts.LogBlock.SkipSize = *t.LogBlock.SkipSize
	}
	return opts
}

// WriterConfig converts the parquet settings, keeping writer defaults for
// anything unset.
func (t TransformConfig) WriterConfig() *columnar.WriterConfig {
	cfg := columnar.DefaultWriterConfig()
	if t.Parquet.Compression != "" {
		cfg.Compression = t.Parquet.Compression
	}
	if t.Parquet.RowGroupSize > 0 {
		cfg.RowGroupLength = t.Parquet.RowGroupSize
	}
	return cfg
}

// Validate checks the transform settings on their own, as the transform
// command needs them.
func (t TransformConfig) Validate() error {
	if _, err := formats.ParseFileType(t.FileType); err != nil {
		return err
	}
	if _, err := formats.ParseOutputFormat(t.OutputFormat); err != nil {
		return err
	}
	if utf8.RuneCountInString(t.Delimiter) != 1 {
		return errors.Newf(errors.ErrorTypeConfig, "delimiter must be a single character, got %q", t.Delimiter)
	}
	switch decode.TextLayout(t.TextLayout) {
	case "", decode.LayoutDelimited, decode.LayoutLogBlock:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported text layout: %q", t.TextLayout)
	}
	if t.LogBlock.BlockSize < 0 || (t.LogBlock.SkipSize != nil && *t.LogBlock.SkipSize < 0) {
		return errors.New(errors.ErrorTypeConfig, "log_block sizes must not be negative")
	}
	if t.OutputDirectory == "" {
		return errors.New(errors.ErrorTypeConfig, "output_directory is required")
	}
	return nil
}

// Validate checks the whole run.
func (c *RunConfig) Validate() error {
	if err := c.Source.Store.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "source.store")
	}
	if c.Source.Bucket == "" || c.Source.Key == "" {
		return errors.New(errors.ErrorTypeConfig, "source bucket and key are required")
	}
	if c.Source.Compression != "auto" {
		if _, err := compression.ParseAlgorithm(c.Source.Compression); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "source.compression")
		}
	}
	if err := c.Transform.Validate(); err != nil {
		return err
	}
	if err := c.Schema.Validate(); err != nil {
		return err
	}

	if c.Staging.Enabled() {
		if err := c.Staging.StoreConfig(c.Source.Store).Validate(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "staging.store")
		}
		if _, err := compression.ParseAlgorithm(c.Staging.Compression); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "staging.compression")
		}
	}

	if err := c.Warehouse.Validate(); err != nil {
		return err
	}
	if c.Warehouse.Enabled() && !c.Staging.Enabled() {
		return errors.New(errors.ErrorTypeConfig, "warehouse loading requires a staging bucket")
	}
	return nil
}
