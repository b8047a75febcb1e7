// Package storage fetches input objects from, and uploads artifacts to, object
// stores. S3 (and S3-compatible stores such as MinIO), Google Cloud Storage and
// the local filesystem are supported behind one interface.
package storage

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/ingest/pkg/errors"
)

// Store is an object store.
type Store interface {
	// Fetch returns the full content of bucket/key. A missing object is a
	// not_found error.
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
	// Upload stores the local file at path as bucket/key.
	Upload(ctx context.Context, bucket, key, path string) error
}

// Provider names a Store implementation
type Provider string

const (
	// ProviderS3 is Amazon S3 or an S3-compatible endpoint
	ProviderS3 Provider = "s3"
	// ProviderMinIO is S3 with path-style addressing forced on
	ProviderMinIO Provider = "minio"
	// ProviderGCS is Google Cloud Storage
	ProviderGCS Provider = "gcs"
	// ProviderLocal maps buckets to directories under Config.Root
	ProviderLocal Provider = "local"
)

// Config selects and configures a Store.
type Config struct {
	Provider Provider `mapstructure:"provider" yaml:"provider" json:"provider"`

	// S3
	Region          string `mapstructure:"region" yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty" json:"-"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty" json:"-"`
	UsePathStyle    bool   `mapstructure:"use_path_style" yaml:"use_path_style,omitempty" json:"use_path_style,omitempty"`
	PartSize        int64  `mapstructure:"part_size" yaml:"part_size,omitempty" json:"part_size,omitempty"`
	Concurrency     int    `mapstructure:"concurrency" yaml:"concurrency,omitempty" json:"concurrency,omitempty"`

	// GCS
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file,omitempty" json:"credentials_file,omitempty"`

	// Local
	Root string `mapstructure:"root" yaml:"root,omitempty" json:"root,omitempty"`
}

// Validate checks the fields the selected provider needs
func (c Config) Validate() error {
	p := c.provider()
	switch p {
	case ProviderS3, ProviderMinIO:
		if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
			return errors.New(errors.ErrorTypeConfig, "access_key_id and secret_access_key must be set together")
		}
		if p == ProviderMinIO && c.Endpoint == "" {
			return errors.New(errors.ErrorTypeConfig, "minio requires an endpoint")
		}
	case ProviderGCS:
	case ProviderLocal:
		if c.Root == "" {
			return errors.New(errors.ErrorTypeConfig, "local storage requires a root directory")
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported storage provider: %q", c.Provider)
	}
	return nil
}

func (c Config) provider() Provider {
	return Provider(strings.ToLower(string(c.Provider)))
}

// New builds the Store selected by cfg.Provider.
func New(ctx context.Context, cfg Config, log *zap.Logger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.provider() {
	case ProviderS3:
		return NewS3Store(ctx, cfg, log)
	case ProviderMinIO:
		cfg.UsePathStyle = true
		return NewS3Store(ctx, cfg, log)
	case ProviderGCS:
		return NewGCSStore(ctx, cfg, log)
	default:
		return NewLocalStore(cfg.Root, log), nil
	}
}

func notFound(err error, bucket, key string) error {
	return errors.Wrap(err, errors.ErrorTypeNotFound, "object not found").
		WithDetail("bucket", bucket).
		WithDetail("key", key)
}
