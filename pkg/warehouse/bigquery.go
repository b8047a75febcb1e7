package warehouse

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/logger"
)

const loadJobTimeout = 10 * time.Minute

// BigQueryLoader loads objects from Cloud Storage into BigQuery tables.
type BigQueryLoader struct {
	client  *bigquery.Client
	dataset string
	log     *zap.Logger
}

// NewBigQueryLoader creates a BigQuery client for cfg.Project.
func NewBigQueryLoader(ctx context.Context, cfg Config, log *zap.Logger) (*BigQueryLoader, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, cfg.Project, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create BigQuery client")
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}

	return &BigQueryLoader{
		client:  client,
		dataset: cfg.Dataset,
		log:     logger.OrNop(log).Named("bigquery"),
	}, nil
}

// Load submits a load job for gs://bucket/key and waits for it.
func (l *BigQueryLoader) Load(ctx context.Context, req LoadRequest) error {
	ref, err := GCSReference(req)
	if err != nil {
		return err
	}

	loader := l.client.Dataset(l.dataset).Table(req.TableName).LoaderFrom(ref)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.Labels = map[string]string{"source": "ingest"}

	job, err := loader.Run(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to submit BigQuery load job").
			WithDetail("table", req.TableName)
	}

	jobCtx, cancel := context.WithTimeout(ctx, loadJobTimeout)
	defer cancel()

	status, err := job.Wait(jobCtx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "load job failed or timed out").
			WithDetail("job_id", job.ID())
	}
	if status.Err() != nil {
		for i, jobErr := range status.Errors {
			l.log.Error("load job error detail",
				zap.Int("error_index", i),
				zap.String("message", jobErr.Message),
				zap.String("reason", jobErr.Reason),
				zap.String("location", jobErr.Location))
		}
		return errors.Wrap(status.Err(), errors.ErrorTypeConnection, "BigQuery load job failed").
			WithDetail("job_id", job.ID())
	}

	fields := []zap.Field{zap.String("job_id", job.ID()), zap.String("table", req.TableName)}
	if stats, ok := status.Statistics.Details.(*bigquery.LoadStatistics); ok {
		fields = append(fields,
			zap.Int64("input_file_bytes", stats.InputFileBytes),
			zap.Int64("output_rows", stats.OutputRows))
	}
	l.log.Info("load job completed", fields...)
	return nil
}

// Close closes the client
func (l *BigQueryLoader) Close() error {
	return l.client.Close()
}

// GCSReference builds the load source for req. Only csv and parquet artifacts
// can be loaded: BigQuery reads newline-delimited JSON, not JSON arrays.
func GCSReference(req LoadRequest) (*bigquery.GCSReference, error) {
	if req.Bucket == "" || req.Key == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "bucket and key are required")
	}

	ref := bigquery.NewGCSReference("gs://" + req.Bucket + "/" + strings.TrimPrefix(req.Key, "/"))
	switch strings.ToLower(req.FileFormat) {
	case "csv":
		ref.SourceFormat = bigquery.CSV
		ref.SkipLeadingRows = 1
		ref.AutoDetect = true
	case "parquet":
		ref.SourceFormat = bigquery.Parquet
	default:
		return nil, errors.UnsupportedFormat("bigquery source format", req.FileFormat)
	}
	return ref, nil
}
