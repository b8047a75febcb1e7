package encode

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/formats"
	"github.com/ajitpratap0/ingest/pkg/formats/decode"
	"github.com/ajitpratap0/ingest/pkg/table"
)

func sample() *table.Table {
	return table.MustNew([]string{"id", "name", "value"}, [][]table.Value{
		{int64(1), "test", int64(100)},
		{int64(2), nil, 2.5},
	})
}

func TestSerializeExtensions(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	dir := t.TempDir()

	for _, of := range formats.OutputFormats() {
		t.Run(string(of), func(t *testing.T) {
			base := filepath.Join(dir, "nested", "out_"+string(of))
			path, err := r.Serialize(sample(), string(of), base)
			require.NoError(t, err)
			assert.Equal(t, base+of.Extension(), path)

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))
		})
	}
}

func TestSerializeUnknownFormat(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	dir := t.TempDir()

	_, err := r.Serialize(sample(), "xml", filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedFormat))
	assert.Contains(t, err.Error(), "xml")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSerializeIOError(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	dir := t.TempDir()

	// A regular file where a directory is needed.
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := r.Serialize(sample(), "csv", filepath.Join(blocker, "out"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
}

func TestSerializeJSON(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	ts := time.Date(2024, 3, 14, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	tbl := table.MustNew([]string{"z", "a", "at", "nested"}, [][]table.Value{
		{int64(1), nil, ts, RowObject([]string{"y", "x"}, []table.Value{"b", int64(2)})},
	})

	path, err := r.Serialize(tbl, "json", filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"z":1,"a":null,"at":"2024-03-14T08:30:00Z","nested":{"y":"b","x":2}}]`, string(data))
	assert.Contains(t, string(data), `{"z":1,"a":null,"at":`, "keys keep column order")
	assert.Contains(t, string(data), `{"y":"b","x":2}`)
}

func TestSerializeJSONEmpty(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	path, err := r.Serialize(table.Empty("a"), "json", filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []any
	require.NoError(t, gojson.Unmarshal(data, &got))
	assert.Empty(t, got)
}

func TestSerializeCSV(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	path, err := r.Serialize(sample(), "csv", filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,name,value\n1,test,100\n2,,2.5\n", string(data))
}

func TestRoundTrip(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	d := decode.NewDispatcher(decode.DefaultOptions(), zaptest.NewLogger(t))
	dir := t.TempDir()

	t.Run("parquet", func(t *testing.T) {
		path, err := r.Serialize(sample(), "parquet", filepath.Join(dir, "rt"))
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		got, err := d.Decode("parquet", data)
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name", "value"}, got.Table.Columns())
		assert.Equal(t, int64(1), got.Table.Value(0, "id"))
		assert.Nil(t, got.Table.Value(1, "name"))
		// int64 and float64 in one column widen to float64.
		assert.Equal(t, 100.0, got.Table.Value(0, "value"))
		assert.Equal(t, 2.5, got.Table.Value(1, "value"))
	})

	t.Run("excel", func(t *testing.T) {
		path, err := r.Serialize(sample(), "excel", filepath.Join(dir, "rt"))
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		got, err := d.Decode("excel", data)
		require.NoError(t, err)
		require.Equal(t, []string{"Sheet1"}, got.SheetNames())
		sheet := got.Sheets[0].Table
		assert.Equal(t, []string{"id", "name", "value"}, sheet.Columns())
		require.Equal(t, 2, sheet.NumRows())
		assert.Equal(t, "test", sheet.Value(0, "name"))
		assert.Nil(t, sheet.Value(1, "name"))
		assert.Equal(t, "2.5", sheet.Value(1, "value"))
	})

	t.Run("csv", func(t *testing.T) {
		path, err := r.Serialize(sample(), "csv", filepath.Join(dir, "rt"))
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		got, err := d.Decode("txt", data)
		require.NoError(t, err)
		want := table.MustNew([]string{"id", "name", "value"}, [][]table.Value{
			{"1", "test", "100"},
			{"2", "", "2.5"},
		})
		assert.True(t, table.Equal(want, got.Table))
	})
}

func TestRowObject(t *testing.T) {
	cols := []string{"b", "a"}
	row := []table.Value{int64(1), "x"}
	o := RowObject(cols, row)

	cols[0] = "changed"
	row[1] = "changed"
	assert.Equal(t, []string{"b", "a"}, o.Keys())
	assert.Equal(t, "x", o.Get("a"))
	assert.Nil(t, o.Get("missing"))

	b, err := o.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,"a":"x"}`, string(b))
}
