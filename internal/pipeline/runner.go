package pipeline

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/ingest/pkg/compression"
	"github.com/ajitpratap0/ingest/pkg/config"
	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/logger"
	"github.com/ajitpratap0/ingest/pkg/metrics"
	"github.com/ajitpratap0/ingest/pkg/observability"
	"github.com/ajitpratap0/ingest/pkg/storage"
	"github.com/ajitpratap0/ingest/pkg/warehouse"
)

// RunResult summarizes a completed run.
type RunResult struct {
	Source      string                `json:"source"`
	Compression compression.Algorithm `json:"compression"`
	BytesIn     int                   `json:"bytes_in"`
	Artifact    string                `json:"artifact"`
	// StagedKey is empty when staging is disabled
	StagedKey string        `json:"staged_key,omitempty"`
	Loaded    bool          `json:"loaded"`
	Duration  time.Duration `json:"duration_ns"`
}

// Runner drives a whole run: fetch the source object, transform it, stage the
// artifact and load it into the warehouse. Each step is fail-fast.
type Runner struct {
	source  storage.Store
	staging storage.Store
	loader  warehouse.Loader
	log     *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer

	transformOpts []Option
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithStaging sets the store artifacts are uploaded to
func WithStaging(store storage.Store) RunnerOption {
	return func(r *Runner) { r.staging = store }
}

// WithLoader sets the warehouse loader
func WithLoader(loader warehouse.Loader) RunnerOption {
	return func(r *Runner) { r.loader = loader }
}

// WithTransformOptions passes options to the Transformer of each run. The
// runner's own metrics and tracer are passed as well.
func WithTransformOptions(opts ...Option) RunnerOption {
	return func(r *Runner) { r.transformOpts = append(r.transformOpts, opts...) }
}

// WithRunMetrics records fetch and stage metrics on c
func WithRunMetrics(c *metrics.Collector) RunnerOption {
	return func(r *Runner) { r.metrics = c }
}

// WithRunTracer traces run steps with tracer
func WithRunTracer(tracer trace.Tracer) RunnerOption {
	return func(r *Runner) { r.tracer = tracer }
}

// NewRunner builds a Runner reading from source.
func NewRunner(source storage.Store, log *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		source: source,
		log:    logger.OrNop(log),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cfg. The config is validated first.
func (r *Runner) Run(ctx context.Context, cfg *config.RunConfig) (result *RunResult, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Staging.Enabled() && r.staging == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "staging is configured but no staging store was provided")
	}
	if cfg.Warehouse.Enabled() && r.loader == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "warehouse is configured but no loader was provided")
	}

	start := time.Now()
	src := cfg.Source
	result = &RunResult{Source: src.Bucket + "/" + src.Key}
	log := r.log.Named("runner").With(zap.String("run", cfg.Name), zap.String("source", result.Source))
	st := observability.NewStageTracer(r.tracer, r.metrics)

	ctx, span := st.Start(ctx, "run", attribute.String("source", result.Source))
	defer func() {
		observability.EndWithError(span, err)
		span.End()
	}()

	var data []byte
	err = st.Trace(ctx, "fetch", func(ctx context.Context) error {
		raw, err := r.source.Fetch(ctx, src.Bucket, src.Key)
		if err != nil {
			return err
		}
		result.BytesIn = len(raw)
		r.metrics.AddBytesFetched(len(raw))

		data, result.Compression, err = decompress(src, raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info("source fetched",
		zap.Int("bytes", result.BytesIn),
		zap.String("compression", string(result.Compression)),
		zap.Int("decompressed_bytes", len(data)))

	opts := append([]Option{
		WithDecodeOptions(cfg.Transform.DecodeOptions()),
		WithParquetConfig(cfg.Transform.WriterConfig()),
		WithMetrics(r.metrics),
		WithTracer(r.tracer),
	}, r.transformOpts...)
	transformer := NewTransformer(r.log, opts...)

	rc := RunContext{
		FileType:        cfg.Transform.FileType,
		Schema:          cfg.Schema,
		OutputFormat:    cfg.Transform.OutputFormat,
		OutputDirectory: cfg.Transform.OutputDirectory,
		Filename:        sourceFilename(cfg),
		Validate:        cfg.Transform.ValidateData,
	}
	result.Artifact, err = transformer.TransformBytes(ctx, rc, data)
	if err != nil {
		return nil, err
	}

	if cfg.Staging.Enabled() {
		err = st.Trace(ctx, "stage", func(ctx context.Context) error {
			var err error
			result.StagedKey, err = r.stage(ctx, cfg.Staging, result.Artifact)
			return err
		})
		if err != nil {
			return nil, err
		}
		log.Info("artifact staged", zap.String("bucket", cfg.Staging.Bucket), zap.String("key", result.StagedKey))
	}

	if cfg.Warehouse.Enabled() {
		req := cfg.Warehouse.Request(cfg.Staging.Bucket, result.StagedKey, cfg.Transform.OutputFormat)
		err = st.Trace(ctx, "load", func(ctx context.Context) error {
			return r.loader.Load(ctx, req)
		}, attribute.String("table", req.TableName))
		if err != nil {
			return nil, err
		}
		result.Loaded = true
	}

	result.Duration = time.Since(start)
	log.Info("run complete",
		zap.String("artifact", result.Artifact),
		zap.Bool("loaded", result.Loaded),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// stage uploads the artifact, compressing it first when configured, and
// returns the key it was stored under.
func (r *Runner) stage(ctx context.Context, cfg config.StagingConfig, artifact string) (string, error) {
	alg, err := compression.ParseAlgorithm(cfg.Compression)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConfig, "staging.compression")
	}

	upload := artifact
	if alg != compression.None {
		upload, err = compressFile(alg, artifact)
		if err != nil {
			return "", err
		}
		defer os.Remove(upload)
	}

	key := cfg.Key
	if key == "" {
		key = filepath.Base(upload)
	} else if alg != compression.None && compression.FromExtension(key) == compression.None {
		key += alg.Extension()
	}

	if err := r.staging.Upload(ctx, cfg.Bucket, key, upload); err != nil {
		return "", err
	}
	return key, nil
}

func decompress(src config.SourceConfig, raw []byte) ([]byte, compression.Algorithm, error) {
	var (
		data []byte
		alg  compression.Algorithm
		err  error
	)
	if src.Compression == "auto" || src.Compression == "" {
		data, alg, err = compression.Decompress(raw, src.MaxSize)
	} else {
		alg, err = compression.ParseAlgorithm(src.Compression)
		if err != nil {
			return nil, "", errors.Wrap(err, errors.ErrorTypeConfig, "source.compression")
		}
		data, err = compression.DecompressAs(alg, raw, src.MaxSize)
	}
	if err != nil {
		return nil, alg, errors.Wrap(err, errors.ErrorTypeDecode, "failed to decompress source object").
			WithDetail("compression", string(alg))
	}
	return data, alg, nil
}

func compressFile(alg compression.Algorithm, path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeIO, "failed to open artifact").WithDetail("path", path)
	}
	defer in.Close()

	outPath := path + alg.Extension()
	out, err := os.Create(outPath)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeIO, "failed to create compressed artifact").WithDetail("path", outPath)
	}
	if err := compression.CompressStream(alg, out, in); err != nil {
		_ = out.Close()
		return "", errors.Wrap(err, errors.ErrorTypeIO, "failed to compress artifact").WithDetail("path", outPath)
	}
	if err := out.Close(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeIO, "failed to close compressed artifact").WithDetail("path", outPath)
	}
	return outPath, nil
}

// sourceFilename is the configured filename, or the object's base name
// without any compression extension.
func sourceFilename(cfg *config.RunConfig) string {
	if cfg.Transform.Filename != "" {
		return cfg.Transform.Filename
	}
	return path.Base(compression.TrimExtension(cfg.Source.Key))
}
