package storage

import (
	"context"
	stderrors "errors"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/logger"
)

const (
	defaultPartSize    = 10 * 1024 * 1024
	defaultConcurrency = 5
	defaultRegion      = "us-east-1"
)

// S3Store reads and writes objects through the S3 API.
type S3Store struct {
	client     *s3.Client
	downloader *manager.Downloader
	uploader   *manager.Uploader
	log        *zap.Logger
}

// NewS3Store loads the AWS configuration and builds an S3 store. Static keys
// in cfg take precedence over the default credential chain. A custom endpoint
// targets S3-compatible stores.
func NewS3Store(ctx context.Context, cfg Config, log *zap.Logger) (*S3Store, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3StoreFromClient(client, cfg, log), nil
}

// NewS3StoreFromClient wraps an existing client.
func NewS3StoreFromClient(client *s3.Client, cfg Config, log *zap.Logger) *S3Store {
	partSize := cfg.PartSize
	if partSize <= 0 {
		partSize = defaultPartSize
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &S3Store{
		client: client,
		downloader: manager.NewDownloader(client, func(d *manager.Downloader) {
			d.PartSize = partSize
			d.Concurrency = concurrency
		}),
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = partSize
			u.Concurrency = concurrency
		}),
		log: logger.OrNop(log).Named("s3"),
	}
}

// Fetch downloads bucket/key into memory.
func (s *S3Store) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	n, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, notFound(err, bucket, key)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to download object").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}

	s.log.Info("object fetched",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int64("bytes", n))
	return buf.Bytes(), nil
}

// Upload streams the file at path to bucket/key, using multipart uploads for
// large files.
func (s *S3Store) Upload(ctx context.Context, bucket, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to open artifact").
			WithDetail("path", path)
	}
	defer f.Close()

	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(path)),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload artifact").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}

	s.log.Info("artifact uploaded",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.String("location", out.Location))
	return nil
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if stderrors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if stderrors.As(err, &nf) {
		return true
	}
	var nsb *types.NoSuchBucket
	return stderrors.As(err, &nsb)
}
