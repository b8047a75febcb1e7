package warehouse

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"time"

	_ "github.com/snowflakedb/gosnowflake" // registers the "snowflake" driver
	"go.uber.org/zap"

	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/logger"
)

// identifier matches an optionally database- and schema-qualified name.
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*){0,2}$`)

// SnowflakeLoader copies staged files into Snowflake tables.
type SnowflakeLoader struct {
	db  *sql.DB
	log *zap.Logger
}

// NewSnowflakeLoader opens a connection pool for dsn
// (user:password@account/database/schema?warehouse=wh).
func NewSnowflakeLoader(dsn string, log *zap.Logger) (*SnowflakeLoader, error) {
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open snowflake connection")
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return NewSnowflakeLoaderFromDB(db, log), nil
}

// NewSnowflakeLoaderFromDB wraps an open database handle.
func NewSnowflakeLoaderFromDB(db *sql.DB, log *zap.Logger) *SnowflakeLoader {
	return &SnowflakeLoader{db: db, log: logger.OrNop(log).Named("snowflake")}
}

// Load runs COPY INTO for the staged key.
func (l *SnowflakeLoader) Load(ctx context.Context, req LoadRequest) error {
	stmt, err := CopyIntoSQL(req)
	if err != nil {
		return err
	}

	l.log.Debug("executing copy", zap.String("sql", stmt))
	res, err := l.db.ExecContext(ctx, stmt)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "COPY INTO failed").
			WithDetail("table", req.TableName).
			WithDetail("key", req.Key)
	}

	fields := []zap.Field{
		zap.String("table", req.TableName),
		zap.String("stage", req.StageName),
		zap.String("key", req.Key),
	}
	if n, err := res.RowsAffected(); err == nil {
		fields = append(fields, zap.Int64("rows_loaded", n))
	}
	l.log.Info("staged file loaded", fields...)
	return nil
}

// Close closes the connection pool
func (l *SnowflakeLoader) Close() error {
	return l.db.Close()
}

// CopyIntoSQL renders the COPY INTO statement for req. FileFormat is either a
// named file format or an inline "(TYPE = ...)" clause.
func CopyIntoSQL(req LoadRequest) (string, error) {
	stage := strings.TrimPrefix(req.StageName, "@")
	if !identifier.MatchString(req.TableName) {
		return "", errors.Newf(errors.ErrorTypeConfig, "invalid table name: %q", req.TableName)
	}
	if !identifier.MatchString(stage) {
		return "", errors.Newf(errors.ErrorTypeConfig, "invalid stage name: %q", req.StageName)
	}
	if req.Key == "" {
		return "", errors.New(errors.ErrorTypeConfig, "staged key is required")
	}

	var b strings.Builder
	b.WriteString("COPY INTO ")
	b.WriteString(req.TableName)
	b.WriteString(" FROM @")
	b.WriteString(stage)
	b.WriteString("/ FILES = ('")
	b.WriteString(strings.ReplaceAll(req.Key, "'", "''"))
	b.WriteString("')")

	switch format := strings.TrimSpace(req.FileFormat); {
	case format == "":
	case strings.HasPrefix(format, "("):
		b.WriteString(" FILE_FORMAT = ")
		b.WriteString(format)
	case identifier.MatchString(format):
		b.WriteString(" FILE_FORMAT = (FORMAT_NAME = '")
		b.WriteString(format)
		b.WriteString("')")
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "invalid file format: %q", req.FileFormat)
	}
	return b.String(), nil
}
