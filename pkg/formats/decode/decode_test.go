package decode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/formats"
	"github.com/ajitpratap0/ingest/pkg/formats/columnar"
	"github.com/ajitpratap0/ingest/pkg/formats/logblock"
	"github.com/ajitpratap0/ingest/pkg/table"
	"github.com/ajitpratap0/ingest/pkg/testutil"
)

func TestDispatchTotality(t *testing.T) {
	d := NewDispatcher(DefaultOptions(), zaptest.NewLogger(t))

	for _, ft := range formats.FileTypes() {
		dec, err := d.Dispatch(string(ft))
		require.NoError(t, err, ft)
		assert.NotNil(t, dec, ft)
	}

	for _, bad := range []string{"xml", "", "TXT", "csv"} {
		dec, err := d.Dispatch(bad)
		assert.Nil(t, dec)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedFormat), bad)
		assert.Contains(t, err.Error(), bad)
	}
}

func TestDecodeText(t *testing.T) {
	d := NewDispatcher(DefaultOptions(), zaptest.NewLogger(t))

	tests := []struct {
		name    string
		input   string
		columns []string
		rows    [][]table.Value
	}{
		{
			name:    "header and rows",
			input:   "id,name\n1,alice\n2,bob\n",
			columns: []string{"id", "name"},
			rows:    [][]table.Value{{"1", "alice"}, {"2", "bob"}},
		},
		{
			name:    "no trailing newline",
			input:   "id,name\n1,alice",
			columns: []string{"id", "name"},
			rows:    [][]table.Value{{"1", "alice"}},
		},
		{
			name:    "short row padded",
			input:   "a,b,c\n1\n",
			columns: []string{"a", "b", "c"},
			rows:    [][]table.Value{{"1", nil, nil}},
		},
		{
			name:    "extra fields get positional columns",
			input:   "a,b\n1,2,3\n4,5\n",
			columns: []string{"a", "b", "column_3"},
			rows:    [][]table.Value{{"1", "2", "3"}, {"4", "5", nil}},
		},
		{
			name:    "positional column skips a header name",
			input:   "a,b,column_4\n1,2,3,4\n",
			columns: []string{"a", "b", "column_4", "column_5"},
			rows:    [][]table.Value{{"1", "2", "3", "4"}},
		},
		{
			name:    "blank header does not take a later header name",
			input:   "a,,column_2\n1,2,3\n",
			columns: []string{"a", "column_3", "column_2"},
			rows:    [][]table.Value{{"1", "2", "3"}},
		},
		{
			name:    "quoted delimiter",
			input:   "a,b\n\"x,y\",z\n",
			columns: []string{"a", "b"},
			rows:    [][]table.Value{{"x,y", "z"}},
		},
		{
			name:    "blank lines skipped",
			input:   "a\n1\n\n2\n\n",
			columns: []string{"a"},
			rows:    [][]table.Value{{"1"}, {"2"}},
		},
		{
			name:    "byte order mark and blank header",
			input:   "\ufeffa,,a\n1,2,3\n",
			columns: []string{"a", "column_2", "column_3"},
			rows:    [][]table.Value{{"1", "2", "3"}},
		},
		{
			name:    "header only",
			input:   "a,b\n",
			columns: []string{"a", "b"},
		},
		{
			name: "empty input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Decode("txt", []byte(tt.input))
			require.NoError(t, err)
			require.False(t, got.IsWorkbook())
			want := table.MustNew(tt.columns, tt.rows)
			assert.True(t, table.Equal(want, got.Table), "got columns %v rows %d", got.Table.Columns(), got.Table.NumRows())
		})
	}
}

func TestDecodeTextDelimiter(t *testing.T) {
	opts := DefaultOptions()
	opts.Delimiter = '\t'
	d := NewDispatcher(opts, zaptest.NewLogger(t))

	got, err := d.Decode("txt", []byte("a\tb\n1\t2\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Table.Columns())
	assert.Equal(t, "2", got.Table.Value(0, "b"))
}

func TestDecodeTextLogBlock(t *testing.T) {
	opts := DefaultOptions()
	opts.TextLayout = LayoutLogBlock
	opts.LogBlock = logblock.Options{BlockSize: 2, SkipSize: 1}
	d := NewDispatcher(opts, zaptest.NewLogger(t))

	line := "Admitted 'Jane Doe [Default]' (Card: 42) at 'Lobby [ROK]' (IN).,2024-03-14 09:30:00"
	input := "header\n" + line + "\n" + line + "\nfooter\n" + line + "\n"

	got, err := d.Decode("txt", []byte(input))
	require.NoError(t, err)
	assert.Equal(t, logblock.Columns, got.Table.Columns())
	require.Equal(t, 3, got.Table.NumRows())
	assert.Equal(t, "Jane Doe", got.Table.Value(0, "Name"))
	assert.Equal(t, "42", got.Table.Value(2, "Card"))
}

func TestDecodeJSON(t *testing.T) {
	d := NewDispatcher(DefaultOptions(), zaptest.NewLogger(t))

	tests := []struct {
		name    string
		input   string
		columns []string
		rows    [][]table.Value
	}{
		{
			name:    "array of records",
			input:   `[{"id": 1, "name": "a"}, {"id": 2, "score": 1.5}]`,
			columns: []string{"id", "name", "score"},
			rows:    [][]table.Value{{int64(1), "a", nil}, {int64(2), nil, 1.5}},
		},
		{
			name:    "object of arrays",
			input:   `{"id": [1, 2], "name": ["a", null]}`,
			columns: []string{"id", "name"},
			rows:    [][]table.Value{{int64(1), "a"}, {int64(2), nil}},
		},
		{
			name:    "object of indexed columns",
			input:   `{"id": {"0": 1, "1": 2}, "name": {"0": "a"}}`,
			columns: []string{"id", "name"},
			rows:    [][]table.Value{{int64(1), "a"}, {int64(2), nil}},
		},
		{
			name:    "key order preserved",
			input:   `[{"z": true, "a": false}]`,
			columns: []string{"z", "a"},
			rows:    [][]table.Value{{true, false}},
		},
		{
			name:  "empty array",
			input: `[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Decode("json", []byte(tt.input))
			require.NoError(t, err)
			want := table.MustNew(tt.columns, tt.rows)
			assert.True(t, table.Equal(want, got.Table), "got columns %v rows %d", got.Table.Columns(), got.Table.NumRows())
		})
	}
}

func TestDecodeJSONNested(t *testing.T) {
	d := NewDispatcher(DefaultOptions(), zaptest.NewLogger(t))

	got, err := d.Decode("json", []byte(`[{"id": 1, "tags": ["x", 2], "meta": {"n": 3}}]`))
	require.NoError(t, err)
	assert.Equal(t, []any{"x", int64(2)}, got.Table.Value(0, "tags"))
	assert.Equal(t, map[string]any{"n": int64(3)}, got.Table.Value(0, "meta"))
}

func TestDecodeJSONErrors(t *testing.T) {
	d := NewDispatcher(DefaultOptions(), zaptest.NewLogger(t))

	for name, input := range map[string]string{
		"malformed":        `[{"id": 1`,
		"scalar document":  `42`,
		"scalar column":    `{"id": 1}`,
		"non-object row":   `[1, 2]`,
		"ragged columns":   `{"a": [1, 2], "b": [1]}`,
		"mixed columns":    `{"a": [1], "b": {"0": 1}}`,
		"trailing content": `[] []`,
		"empty input":      ``,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := d.Decode("json", []byte(input))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeDecode), err.Error())
		})
	}
}

func TestDecodeParquet(t *testing.T) {
	d := NewDispatcher(DefaultOptions(), zaptest.NewLogger(t))

	src := table.MustNew([]string{"id", "name"}, [][]table.Value{
		{int64(1), "a"},
		{int64(2), nil},
	})
	var buf bytes.Buffer
	require.NoError(t, columnar.WriteParquet(&buf, src, nil))

	got, err := d.Decode("parquet", buf.Bytes())
	require.NoError(t, err)
	assert.True(t, table.Equal(src, got.Table))

	_, err = d.Decode("parquet", []byte("not parquet"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDecode))
}

func workbook(t *testing.T) []byte {
	return testutil.Workbook(t,
		testutil.Sheet{Name: "Sheet1", Rows: [][]any{{"id", "name"}, {"1", "alice"}, {"2"}}},
		testutil.Sheet{Name: "Visits", Rows: [][]any{{"id", "room"}, {"1", "lobby"}}},
	)
}

func TestDecodeExcel(t *testing.T) {
	d := NewDispatcher(DefaultOptions(), zaptest.NewLogger(t))

	got, err := d.Decode("excel", workbook(t))
	require.NoError(t, err)
	require.True(t, got.IsWorkbook())
	assert.Equal(t, []string{"Sheet1", "Visits"}, got.SheetNames())

	first := got.Sheets[0].Table
	assert.Equal(t, []string{"id", "name"}, first.Columns())
	require.Equal(t, 2, first.NumRows())
	assert.Equal(t, "alice", first.Value(0, "name"))
	assert.Nil(t, first.Value(1, "name"))

	second := got.Sheets[1].Table
	assert.Equal(t, "lobby", second.Value(0, "room"))

	_, err = d.Decode("excel", []byte("not a workbook"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDecode))
}

func TestDecodeExcelPositionalColumns(t *testing.T) {
	d := NewDispatcher(DefaultOptions(), zaptest.NewLogger(t))

	book := testutil.Workbook(t, testutil.Sheet{
		Name: "Sheet1",
		Rows: [][]any{{"a", "b", "column_4"}, {"1", "2", "3", "4"}},
	})
	got, err := d.Decode("excel", book)
	require.NoError(t, err)

	sheet := got.Sheets[0].Table
	assert.Equal(t, []string{"a", "b", "column_4", "column_5"}, sheet.Columns())
	assert.Equal(t, "3", sheet.Value(0, "column_4"))
	assert.Equal(t, "4", sheet.Value(0, "column_5"))
}

func TestFlatten(t *testing.T) {
	d := NewDispatcher(DefaultOptions(), zaptest.NewLogger(t))

	got, err := d.Decode("excel", workbook(t))
	require.NoError(t, err)

	flat := Flatten(got, "sheet")
	assert.Equal(t, []string{"id", "name", "sheet", "room"}, flat.Columns())
	require.Equal(t, 3, flat.NumRows())
	assert.Equal(t, "Sheet1", flat.Value(0, "sheet"))
	assert.Equal(t, "Visits", flat.Value(2, "sheet"))
	assert.Equal(t, "lobby", flat.Value(2, "room"))
	assert.Nil(t, flat.Value(0, "room"))

	single := &Decoded{Table: table.Empty("a")}
	assert.Same(t, single.Table, Flatten(single, "sheet"))
}
