package storage

import (
	"context"
	stderrors "errors"
	"io"
	"os"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/logger"
)

// GCSStore reads and writes objects in Google Cloud Storage.
type GCSStore struct {
	client *gcs.Client
	log    *zap.Logger
}

// NewGCSStore creates a client using cfg.CredentialsFile when set, otherwise
// application default credentials.
func NewGCSStore(ctx context.Context, cfg Config, log *zap.Logger) (*GCSStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}
	return &GCSStore{client: client, log: logger.OrNop(log).Named("gcs")}, nil
}

// Fetch reads bucket/key into memory.
func (s *GCSStore) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if stderrors.Is(err, gcs.ErrObjectNotExist) || stderrors.Is(err, gcs.ErrBucketNotExist) {
			return nil, notFound(err, bucket, key)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open object").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read object").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}

	s.log.Info("object fetched",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)))
	return data, nil
}

// Upload copies the file at path to bucket/key.
func (s *GCSStore) Upload(ctx context.Context, bucket, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to open artifact").
			WithDetail("path", path)
	}
	defer f.Close()

	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType(path)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload artifact").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to finalize upload").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}

	s.log.Info("artifact uploaded", zap.String("bucket", bucket), zap.String("key", key))
	return nil
}

// Close releases the client
func (s *GCSStore) Close() error {
	return s.client.Close()
}
