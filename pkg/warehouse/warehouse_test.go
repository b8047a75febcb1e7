package warehouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/ingest/pkg/errors"
)

func TestCopyIntoSQL(t *testing.T) {
	tests := []struct {
		name string
		req  LoadRequest
		want string
	}{
		{
			name: "named format",
			req:  LoadRequest{TableName: "RAW.PUBLIC.ACCESS_LOGS", StageName: "@raw_stage", FileFormat: "csv_format", Key: "exports/data.csv"},
			want: "COPY INTO RAW.PUBLIC.ACCESS_LOGS FROM @raw_stage/ FILES = ('exports/data.csv') FILE_FORMAT = (FORMAT_NAME = 'csv_format')",
		},
		{
			name: "inline format",
			req:  LoadRequest{TableName: "events", StageName: "stage", FileFormat: "(TYPE = PARQUET)", Key: "data.parquet"},
			want: "COPY INTO events FROM @stage/ FILES = ('data.parquet') FILE_FORMAT = (TYPE = PARQUET)",
		},
		{
			name: "no format",
			req:  LoadRequest{TableName: "events", StageName: "stage", Key: "it's.json"},
			want: "COPY INTO events FROM @stage/ FILES = ('it''s.json')",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CopyIntoSQL(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCopyIntoSQLRejectsBadIdentifiers(t *testing.T) {
	for _, req := range []LoadRequest{
		{TableName: "events; DROP TABLE x", StageName: "stage", Key: "k"},
		{TableName: "events", StageName: "stage name", Key: "k"},
		{TableName: "events", StageName: "stage", Key: ""},
		{TableName: "events", StageName: "stage", Key: "k", FileFormat: "csv' OR 1=1"},
	} {
		_, err := CopyIntoSQL(req)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	}
}

func TestGCSReference(t *testing.T) {
	ref, err := GCSReference(LoadRequest{Bucket: "staging", Key: "/out/data.csv", FileFormat: "CSV"})
	require.NoError(t, err)
	assert.Equal(t, []string{"gs://staging/out/data.csv"}, ref.URIs)
	assert.Equal(t, bigquery.CSV, ref.SourceFormat)
	assert.Equal(t, int64(1), ref.SkipLeadingRows)

	ref, err = GCSReference(LoadRequest{Bucket: "staging", Key: "data.parquet", FileFormat: "parquet"})
	require.NoError(t, err)
	assert.Equal(t, bigquery.Parquet, ref.SourceFormat)

	for _, format := range []string{"json", "excel", ""} {
		_, err = GCSReference(LoadRequest{Bucket: "staging", Key: "data", FileFormat: format})
		assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedFormat), format)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{}, false},
		{"snowflake", Config{Type: "Snowflake", DSN: "u:p@acct/db/schema", StageName: "s", TableName: "t"}, false},
		{"snowflake without dsn", Config{Type: TypeSnowflake, StageName: "s", TableName: "t"}, true},
		{"snowflake without stage", Config{Type: TypeSnowflake, DSN: "dsn", TableName: "t"}, true},
		{"bigquery", Config{Type: TypeBigQuery, Project: "p", Dataset: "d", TableName: "t"}, false},
		{"bigquery without dataset", Config{Type: TypeBigQuery, Project: "p", TableName: "t"}, true},
		{"missing table", Config{Type: TypeBigQuery, Project: "p", Dataset: "d"}, true},
		{"unknown", Config{Type: "redshift"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			assert.NoError(t, err)
		})
	}

	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Type: TypeSnowflake}.Enabled())
}

func TestConfigRequest(t *testing.T) {
	cfg := Config{TableName: "events", StageName: "stage"}
	req := cfg.Request("bucket", "key.csv", "csv")
	assert.Equal(t, LoadRequest{TableName: "events", StageName: "stage", FileFormat: "csv", Bucket: "bucket", Key: "key.csv"}, req)

	cfg.FileFormat = "my_format"
	assert.Equal(t, "my_format", cfg.Request("bucket", "key.csv", "csv").FileFormat)
}

func TestNewDisabled(t *testing.T) {
	loader, err := New(context.Background(), Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Nil(t, loader)
}

// recordingDriver is a database/sql driver that records executed statements.
type recordingDriver struct {
	mu    sync.Mutex
	stmts []string
}

func (d *recordingDriver) Open(string) (driver.Conn, error) { return &recordingConn{d: d}, nil }

func (d *recordingDriver) executed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.stmts...)
}

type recordingConn struct{ d *recordingDriver }

func (c *recordingConn) Prepare(string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (c *recordingConn) Close() error                        { return nil }
func (c *recordingConn) Begin() (driver.Tx, error)           { return nil, driver.ErrSkip }

func (c *recordingConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.d.mu.Lock()
	c.d.stmts = append(c.d.stmts, query)
	c.d.mu.Unlock()
	return driver.RowsAffected(3), nil
}

var recorder = &recordingDriver{}

func init() {
	sql.Register("ingest-recording", recorder)
}

func TestSnowflakeLoaderLoad(t *testing.T) {
	db, err := sql.Open("ingest-recording", "")
	require.NoError(t, err)

	loader := NewSnowflakeLoaderFromDB(db, zaptest.NewLogger(t))
	defer loader.Close()

	req := LoadRequest{TableName: "events", StageName: "stage", FileFormat: "json_format", Key: "out/data.json"}
	require.NoError(t, loader.Load(context.Background(), req))

	assert.Contains(t, recorder.executed(),
		"COPY INTO events FROM @stage/ FILES = ('out/data.json') FILE_FORMAT = (FORMAT_NAME = 'json_format')")

	err = loader.Load(context.Background(), LoadRequest{TableName: "bad name", StageName: "stage", Key: "k"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
