package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/formats/decode"
	"github.com/ajitpratap0/ingest/pkg/schema"
	"github.com/ajitpratap0/ingest/pkg/storage"
	"github.com/ajitpratap0/ingest/pkg/warehouse"
)

const runYAML = `
name: badge-access
source:
  store:
    provider: minio
    endpoint: ${TEST_MINIO_ENDPOINT}
    access_key_id: ${TEST_MINIO_KEY:-minioadmin}
    secret_access_key: minioadmin
  bucket: raw
  key: exports/access.txt.gz
transform:
  file_type: txt
  text_layout: logblock
  delimiter: "|"
  log_block:
    block_size: 4
    skip_size: 2
  output_format: csv
  output_directory: /tmp/ingest
schema:
  expected_columns:
    - name: status
      enforce_not_null: true
    - name: name
staging:
  bucket: staging
  key: access/access.csv
warehouse:
  type: snowflake
  dsn: user:pass@acct/db/schema
  table_name: RAW.PUBLIC.ACCESS_LOGS
  stage_name: raw_stage
  file_format: csv_format
`

func writeRunFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_MINIO_ENDPOINT", "http://minio:9000")

	cfg, err := Load(writeRunFile(t, runYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "badge-access", cfg.Name)
	assert.Equal(t, storage.ProviderMinIO, cfg.Source.Store.Provider)
	assert.Equal(t, "http://minio:9000", cfg.Source.Store.Endpoint)
	assert.Equal(t, "minioadmin", cfg.Source.Store.AccessKeyID)
	assert.Equal(t, "exports/access.txt.gz", cfg.Source.Key)
	assert.Equal(t, "auto", cfg.Source.Compression)

	assert.Equal(t, "txt", cfg.Transform.FileType)
	assert.Equal(t, "csv", cfg.Transform.OutputFormat)
	assert.Equal(t, 4, cfg.Transform.LogBlock.BlockSize)
	require.NotNil(t, cfg.Transform.LogBlock.SkipSize)
	assert.Equal(t, 2, *cfg.Transform.LogBlock.SkipSize)

	assert.Equal(t, schema.New(
		schema.Column{Name: "status", EnforceNotNull: true},
		schema.Column{Name: "name"},
	), cfg.Schema)

	assert.Equal(t, warehouse.TypeSnowflake, cfg.Warehouse.Type)
	assert.Equal(t, "raw_stage", cfg.Warehouse.StageName)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TEST_MINIO_ENDPOINT", "http://minio:9000")
	t.Setenv("INGEST_TRANSFORM_OUTPUT_FORMAT", "parquet")
	t.Setenv("INGEST_LOG_LEVEL", "debug")

	cfg, err := Load(writeRunFile(t, runYAML))
	require.NoError(t, err)

	assert.Equal(t, "parquet", cfg.Transform.OutputFormat)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("transform: [unclosed"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("TEST_MINIO_ENDPOINT", "http://minio:9000")
	cfg, err := Load(writeRunFile(t, runYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, Save(path, cfg))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Source, reloaded.Source)
	assert.Equal(t, cfg.Transform, reloaded.Transform)
	assert.Equal(t, cfg.Schema, reloaded.Schema)
	assert.Equal(t, cfg.Warehouse, reloaded.Warehouse)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("INGEST_TEST_SET", "value")

	tests := []struct {
		in, want string
	}{
		{"a: ${INGEST_TEST_SET}", "a: value"},
		{"a: ${INGEST_TEST_UNSET}", "a: "},
		{"a: ${INGEST_TEST_UNSET:-fallback}", "a: fallback"},
		{"a: ${INGEST_TEST_SET:-fallback}", "a: value"},
		{"a: ${INGEST_TEST_SET}-${INGEST_TEST_SET}", "a: value-value"},
		{"a: ${unterminated", "a: ${unterminated"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, substituteEnvVars(tt.in), tt.in)
	}
}

func validRun() *RunConfig {
	cfg := Default()
	cfg.Source.Store = storage.Config{Provider: storage.ProviderLocal, Root: "/data"}
	cfg.Source.Bucket = "raw"
	cfg.Source.Key = "data.json"
	cfg.Transform.FileType = "json"
	cfg.Schema = schema.New(schema.Column{Name: "id"})
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RunConfig)
		errType errors.ErrorType
	}{
		{"valid", func(*RunConfig) {}, ""},
		{"negative skip size", func(c *RunConfig) { n := -1; c.Transform.LogBlock.SkipSize = &n }, errors.ErrorTypeConfig},
		{"missing key", func(c *RunConfig) { c.Source.Key = "" }, errors.ErrorTypeConfig},
		{"bad store", func(c *RunConfig) { c.Source.Store.Provider = "ftp" }, errors.ErrorTypeConfig},
		{"bad compression", func(c *RunConfig) { c.Source.Compression = "brotli" }, errors.ErrorTypeConfig},
		{"bad file type", func(c *RunConfig) { c.Transform.FileType = "xml" }, errors.ErrorTypeUnsupportedFormat},
		{"bad output", func(c *RunConfig) { c.Transform.OutputFormat = "avro" }, errors.ErrorTypeUnsupportedFormat},
		{"long delimiter", func(c *RunConfig) { c.Transform.Delimiter = "||" }, errors.ErrorTypeConfig},
		{"bad layout", func(c *RunConfig) { c.Transform.TextLayout = "fixed" }, errors.ErrorTypeConfig},
		{"empty schema", func(c *RunConfig) { c.Schema = schema.Schema{} }, errors.ErrorTypeConfig},
		{"staging reuses source", func(c *RunConfig) { c.Staging.Bucket = "staging" }, ""},
		{"bad staging compression", func(c *RunConfig) {
			c.Staging.Bucket = "staging"
			c.Staging.Compression = "brotli"
		}, errors.ErrorTypeConfig},
		{"warehouse without staging", func(c *RunConfig) {
			c.Warehouse = warehouse.Config{Type: warehouse.TypeBigQuery, Project: "p", Dataset: "d", TableName: "t"}
		}, errors.ErrorTypeConfig},
		{"warehouse with staging", func(c *RunConfig) {
			c.Staging.Bucket = "staging"
			c.Warehouse = warehouse.Config{Type: warehouse.TypeBigQuery, Project: "p", Dataset: "d", TableName: "t"}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validRun()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errType == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.errType, errors.TypeOf(err))
		})
	}
}

func TestDecodeOptions(t *testing.T) {
	tc := TransformConfig{Delimiter: "\t", TextLayout: "logblock", LogBlock: LogBlockConfig{BlockSize: 3}}
	opts := tc.DecodeOptions()
	assert.Equal(t, '\t', opts.Delimiter)
	assert.Equal(t, decode.LayoutLogBlock, opts.TextLayout)
	assert.Equal(t, 3, opts.LogBlock.BlockSize)
	assert.Equal(t, -1, opts.LogBlock.SkipSize, "unset skip keeps the parser default")

	zero := 0
	tc.LogBlock.SkipSize = &zero
	assert.Equal(t, 0, tc.DecodeOptions().LogBlock.SkipSize)

	opts = TransformConfig{Delimiter: "||"}.DecodeOptions()
	assert.Equal(t, ',', opts.Delimiter)
	assert.Equal(t, decode.LayoutDelimited, opts.TextLayout)
}

func TestWriterConfig(t *testing.T) {
	wc := TransformConfig{Parquet: ParquetSettings{Compression: "zstd", RowGroupSize: 10}}.WriterConfig()
	assert.Equal(t, "zstd", wc.Compression)
	assert.Equal(t, int64(10), wc.RowGroupLength)

	wc = TransformConfig{}.WriterConfig()
	assert.Equal(t, "snappy", wc.Compression)
}
