// Package testutil provides fixtures for ingestion tests: input files, local
// object-store layouts, workbooks and access-log lines.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/ingest/pkg/compression"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext returns a context with a 30-second timeout, cancelled when the
// test completes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// FixedClock returns a clock that always reads ts
func FixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

// WriteFile writes content to dir/name, creating parent directories, and
// returns the path.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

// PutObject stores content where a local store rooted at root serves
// bucket/key.
func PutObject(t *testing.T, root, bucket, key string, content []byte) string {
	t.Helper()
	return WriteFile(t, filepath.Join(root, bucket), key, content)
}

// Compress compresses data with alg.
func Compress(t *testing.T, alg compression.Algorithm, data []byte) []byte {
	t.Helper()
	out, err := compression.Compress(alg, data)
	require.NoError(t, err)
	return out
}

// Sheet is one worksheet of a fixture workbook. The first row is the header.
type Sheet struct {
	Name string
	Rows [][]any
}

// Workbook builds an .xlsx file holding sheets in order.
func Workbook(t *testing.T, sheets ...Sheet) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.Name))
		} else {
			_, err := f.NewSheet(s.Name)
			require.NoError(t, err)
		}
		for r, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			row := row
			require.NoError(t, f.SetSheetRow(s.Name, cell, &row))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// AccessLogLine formats one badge-reader event the way access-control
// exports write it.
func AccessLogLine(status, name string, card int, location, direction, timestamp string) string {
	return fmt.Sprintf("%s '%s [Default]' (Card: %d) at '%s [ROK]' (%s).,%s",
		status, name, card, location, direction, timestamp)
}
