// Package pipeline composes the ingestion stages into runs.
//
// # Overview
//
// A Transformer turns one input file into one output artifact:
//
//	decode → (validate) → enrich → enforce → serialize
//
// The artifact is written to OutputDirectory plus the format's extension.
//
// Enrichment adds the provenance columns:
//   - filename: the source file name, constant for the run
//   - received_at: the run's wall-clock time
//   - payload: an ordered JSON object of the decoded fields of the row
//
// A Runner wraps a Transformer with the object-store fetch before it and the
// staging upload and warehouse load after it.
//
// # Basic Usage
//
//	tr := pipeline.NewTransformer(logger,
//	    pipeline.WithMetrics(collector),
//	)
//	path, err := tr.Transform(ctx, pipeline.RunContext{
//	    FilePath:        "in/events.json",
//	    FileType:        "json",
//	    Schema:          schema.New(schema.Column{Name: "id"}),
//	    OutputFormat:    "parquet",
//	    OutputDirectory: "out/events",
//	})
//
// Every error is returned as produced by the failing stage; nothing is retried.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/formats"
	"github.com/ajitpratap0/ingest/pkg/formats/columnar"
	"github.com/ajitpratap0/ingest/pkg/formats/decode"
	"github.com/ajitpratap0/ingest/pkg/formats/encode"
	"github.com/ajitpratap0/ingest/pkg/logger"
	"github.com/ajitpratap0/ingest/pkg/metrics"
	"github.com/ajitpratap0/ingest/pkg/observability"
	"github.com/ajitpratap0/ingest/pkg/schema"
	"github.com/ajitpratap0/ingest/pkg/table"
)

// Provenance columns added to every decoded table
const (
	FilenameColumn   = "filename"
	ReceivedAtColumn = "received_at"
	PayloadColumn    = "payload"
	// SheetColumn records the source sheet of workbook rows
	SheetColumn = "sheet"
)

// RunContext describes one transform. It is read-only once built.
type RunContext struct {
	FilePath        string
	FileType        string
	Schema          schema.Schema
	OutputFormat    string
	// OutputDirectory is the artifact path without its extension. The format's
	// extension is appended, so the artifact is OutputDirectory + ".json" and
	// so on (".xlsx" for excel). Empty selects formats.DefaultOutputPath.
	OutputDirectory string
	// Filename is the source name written to the filename column. Transform
	// defaults it to the base name of FilePath.
	Filename string
	// Validate gates the decoded table through schema.ValidateTable. Log-block
	// text is always gated, since a log with no matching lines is an error.
	Validate bool
}

func (rc RunContext) check() error {
	if _, err := formats.ParseFileType(rc.FileType); err != nil {
		return err
	}
	if _, err := formats.ParseOutputFormat(rc.OutputFormat); err != nil {
		return err
	}
	if rc.Filename == "" {
		return errors.New(errors.ErrorTypeConfig, "filename is required")
	}
	return rc.Schema.Validate()
}

// artifactBase is the output path without its extension. OutputDirectory is
// used as the path base itself, so "out/visits" with csv writes out/visits.csv.
func (rc RunContext) artifactBase() string {
	if rc.OutputDirectory == "" {
		return formats.DefaultOutputPath()
	}
	return rc.OutputDirectory
}

// Transformer runs the decode-to-serialize stages. It holds no per-run state
// and is safe for concurrent use.
type Transformer struct {
	dispatcher *decode.Dispatcher
	registry   *encode.Registry
	clock      func() time.Time
	log        *zap.Logger
	metrics    *metrics.Collector
	tracer     trace.Tracer

	decodeOpts  decode.Options
	parquetOpts *columnar.WriterConfig
}

// Option configures a Transformer
type Option func(*Transformer)

// WithClock sets the source of received_at timestamps
func WithClock(clock func() time.Time) Option {
	return func(t *Transformer) { t.clock = clock }
}

// WithMetrics records stage and record metrics on c
func WithMetrics(c *metrics.Collector) Option {
	return func(t *Transformer) { t.metrics = c }
}

// WithTracer traces stages with tracer instead of the global provider
func WithTracer(tracer trace.Tracer) Option {
	return func(t *Transformer) { t.tracer = tracer }
}

// WithDecodeOptions sets the decoder options (text delimiter and layout)
func WithDecodeOptions(opts decode.Options) Option {
	return func(t *Transformer) { t.decodeOpts = opts }
}

// WithParquetConfig sets the Parquet writer configuration
func WithParquetConfig(cfg *columnar.WriterConfig) Option {
	return func(t *Transformer) { t.parquetOpts = cfg }
}

// NewTransformer builds a Transformer. log may be nil.
func NewTransformer(log *zap.Logger, opts ...Option) *Transformer {
	t := &Transformer{
		clock:      time.Now,
		log:        logger.OrNop(log).Named("pipeline"),
		decodeOpts: decode.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.dispatcher = decode.NewDispatcher(t.decodeOpts, log)
	var encodeOpts []encode.Option
	if t.parquetOpts != nil {
		encodeOpts = append(encodeOpts, encode.WithParquetConfig(t.parquetOpts))
	}
	t.registry = encode.NewRegistry(log, encodeOpts...)
	return t
}

// Transform reads rc.FilePath and runs TransformBytes on its content.
func (t *Transformer) Transform(ctx context.Context, rc RunContext) (string, error) {
	if rc.Filename == "" {
		rc.Filename = filepath.Base(rc.FilePath)
	}

	data, err := os.ReadFile(rc.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrap(err, errors.ErrorTypeNotFound, "input file not found").
				WithDetail("path", rc.FilePath)
		}
		return "", errors.Wrap(err, errors.ErrorTypeIO, "failed to read input file").
			WithDetail("path", rc.FilePath)
	}

	return t.TransformBytes(ctx, rc, data)
}

// TransformBytes runs the stages over already-fetched content and returns the
// path of the artifact written.
func (t *Transformer) TransformBytes(ctx context.Context, rc RunContext, data []byte) (path string, err error) {
	if err := rc.check(); err != nil {
		return "", err
	}

	ctx = logger.NewRunContext(ctx, rc.FileType, rc.Filename)
	log := logger.WithContext(ctx, t.log)
	st := observability.NewStageTracer(t.tracer, t.metrics)

	ctx, span := st.Start(ctx, "transform",
		attribute.String("file_type", rc.FileType),
		attribute.String("output_format", rc.OutputFormat),
		attribute.String("filename", rc.Filename))
	timer := metrics.NewTimer()
	defer func() {
		observability.EndWithError(span, err)
		span.End()
		t.metrics.ObserveRun(rc.FileType, rc.OutputFormat, metrics.Status(err), timer.Stop())
	}()

	log.Info("starting transform", zap.Int("bytes", len(data)))

	var tbl *table.Table
	err = st.Trace(ctx, "decode", func(context.Context) error {
		decoded, err := t.dispatcher.Decode(rc.FileType, data)
		if err != nil {
			return err
		}
		if decoded.IsWorkbook() {
			log.Debug("flattening workbook", zap.Strings("sheets", decoded.SheetNames()))
		}
		tbl = decode.Flatten(decoded, SheetColumn)
		t.metrics.AddSkippedLines(decoded.Skipped)
		return nil
	})
	if err != nil {
		return "", err
	}
	t.metrics.AddRecords("decode", rc.FileType, tbl.NumRows())

	if rc.Validate || t.isLogBlock(rc.FileType) {
		err = st.Trace(ctx, "validate", func(context.Context) error {
			_, err := schema.ValidateTable(tbl)
			return err
		})
		if err != nil {
			return "", err
		}
	}

	tbl = t.enrich(tbl, rc.Filename)

	err = st.Trace(ctx, "enforce", func(context.Context) error {
		var err error
		tbl, err = schema.Enforce(tbl, rc.Schema)
		return err
	})
	if err != nil {
		return "", err
	}

	err = st.Trace(ctx, "serialize", func(context.Context) error {
		var err error
		path, err = t.registry.Serialize(tbl, rc.OutputFormat, rc.artifactBase())
		return err
	})
	if err != nil {
		return "", err
	}
	t.metrics.AddRecords("serialize", rc.FileType, tbl.NumRows())

	log.Info("transform complete",
		zap.String("artifact", path),
		zap.Int("records", tbl.NumRows()),
		zap.Strings("columns", tbl.Columns()))
	return path, nil
}

func (t *Transformer) isLogBlock(fileType string) bool {
	return formats.FileType(fileType) == formats.Text && t.decodeOpts.TextLayout == decode.LayoutLogBlock
}

// enrich adds the provenance columns. payload is taken from the decoded
// columns only, so it never contains filename or received_at.
func (t *Transformer) enrich(tbl *table.Table, filename string) *table.Table {
	columns := tbl.Columns()
	payloads := make([]table.Value, tbl.NumRows())
	_ = tbl.Each(func(r int, row []table.Value) error {
		payloads[r] = encode.RowObject(columns, row)
		return nil
	})

	return tbl.
		WithConstant(FilenameColumn, filename).
		WithConstant(ReceivedAtColumn, t.clock().UTC()).
		WithColumn(PayloadColumn, func(r int, _ []table.Value) table.Value { return payloads[r] })
}
