// Package warehouse loads staged artifacts into a data warehouse.
package warehouse

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/ingest/pkg/errors"
)

// LoadRequest describes one staged artifact to load.
type LoadRequest struct {
	TableName  string
	StageName  string
	FileFormat string
	Bucket     string
	Key        string
}

// Loader loads a staged object into a warehouse table.
type Loader interface {
	Load(ctx context.Context, req LoadRequest) error
	Close() error
}

// Type names a Loader implementation
type Type string

const (
	// TypeNone disables loading
	TypeNone Type = ""
	// TypeSnowflake issues COPY INTO against a named stage
	TypeSnowflake Type = "snowflake"
	// TypeBigQuery runs a load job from Cloud Storage
	TypeBigQuery Type = "bigquery"
)

// Config selects and configures a Loader and names the load target.
type Config struct {
	Type       Type   `mapstructure:"type" yaml:"type,omitempty" json:"type,omitempty"`
	TableName  string `mapstructure:"table_name" yaml:"table_name,omitempty" json:"table_name,omitempty"`
	StageName  string `mapstructure:"stage_name" yaml:"stage_name,omitempty" json:"stage_name,omitempty"`
	FileFormat string `mapstructure:"file_format" yaml:"file_format,omitempty" json:"file_format,omitempty"`

	// Snowflake
	DSN string `mapstructure:"dsn" yaml:"dsn,omitempty" json:"-"`

	// BigQuery
	Project         string `mapstructure:"project" yaml:"project,omitempty" json:"project,omitempty"`
	Dataset         string `mapstructure:"dataset" yaml:"dataset,omitempty" json:"dataset,omitempty"`
	Location        string `mapstructure:"location" yaml:"location,omitempty" json:"location,omitempty"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file,omitempty" json:"credentials_file,omitempty"`
}

// Enabled reports whether a loader is configured
func (c Config) Enabled() bool {
	return c.kind() != TypeNone
}

func (c Config) kind() Type {
	return Type(strings.ToLower(string(c.Type)))
}

// Validate checks the fields the selected loader needs.
func (c Config) Validate() error {
	switch c.kind() {
	case TypeNone:
		return nil
	case TypeSnowflake:
		if c.DSN == "" {
			return errors.New(errors.ErrorTypeConfig, "snowflake loader requires a dsn")
		}
		if c.StageName == "" {
			return errors.New(errors.ErrorTypeConfig, "snowflake loader requires a stage_name")
		}
	case TypeBigQuery:
		if c.Project == "" || c.Dataset == "" {
			return errors.New(errors.ErrorTypeConfig, "bigquery loader requires project and dataset")
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported warehouse type: %q", c.Type)
	}
	if c.TableName == "" {
		return errors.New(errors.ErrorTypeConfig, "warehouse table_name is required")
	}
	return nil
}

// Request builds the LoadRequest for an artifact staged at bucket/key. An
// empty FileFormat falls back to fallbackFormat.
func (c Config) Request(bucket, key, fallbackFormat string) LoadRequest {
	format := c.FileFormat
	if format == "" {
		format = fallbackFormat
	}
	return LoadRequest{
		TableName:  c.TableName,
		StageName:  c.StageName,
		FileFormat: format,
		Bucket:     bucket,
		Key:        key,
	}
}

// New builds the Loader selected by cfg.Type. It returns nil, nil when
// loading is disabled.
func New(ctx context.Context, cfg Config, log *zap.Logger) (Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.kind() {
	case TypeSnowflake:
		return NewSnowflakeLoader(cfg.DSN, log)
	case TypeBigQuery:
		return NewBigQueryLoader(ctx, cfg, log)
	default:
		return nil, nil
	}
}
