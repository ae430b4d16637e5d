package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/structds/internal/frame"
	"github.com/zjrosen/structds/internal/literal"
	"github.com/zjrosen/structds/internal/structured"
	"github.com/zjrosen/structds/internal/testutil"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    Location
		wantErr bool
	}{
		{uri: "sqlite:///tmp/data.db?table=people", want: Location{Path: "/tmp/data.db", Table: "people"}},
		{uri: "sqlite://local.db?table=t_1", want: Location{Path: "local.db", Table: "t_1"}},
		{uri: "sqlite://dir/local.db?table=x", want: Location{Path: "dir/local.db", Table: "x"}},
		{uri: "sqlite:///tmp/data.db", wantErr: true},
		{uri: "sqlite:///tmp/data.db?table=drop;--", wantErr: true},
		{uri: "file:///tmp/data.db?table=x", wantErr: true},
		{uri: "sqlite://?table=x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := ParseURI(got.URI())
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	f := testutil.NewBuilder(t).WithStandardPeople().Frame()

	sd, err := NewEncoder(Options{Dir: dir}).Encode(ctx, structured.NewDataset(f))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sd.URI, "sqlite://"+filepath.Join(dir, "structds.db")+"?table=t_"))
	assert.Equal(t, []string{"id", "name", "score", "active"}, sd.Schema().ColumnNames())

	res, err := NewDecoder(Options{}).Decode(ctx, sd)
	require.NoError(t, err)
	got, err := structured.As[*frame.Frame](res)
	require.NoError(t, err)

	assert.Equal(t, f.Columns(), got.Columns())
	require.Equal(t, f.NumRows(), got.NumRows())
	for i := range f.NumRows() {
		assert.Equal(t, f.Row(i), got.Row(i), "row %d", i)
	}
}

func TestEncode_ReplacesExistingTable(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	uri := Location{Path: filepath.Join(dir, "x.db"), Table: "people"}.URI()
	enc := NewEncoder(Options{})

	first := testutil.NewBuilder(t).WithStandardPeople().Frame()
	_, err := enc.Encode(ctx, structured.NewDataset(first, structured.WithURI(uri)))
	require.NoError(t, err)

	second := frame.MustNew(frame.Column{Name: "label", Type: frame.String})
	require.NoError(t, second.AppendRow("only"))
	sd, err := enc.Encode(ctx, structured.NewDataset(second, structured.WithURI(uri)))
	require.NoError(t, err)
	assert.Equal(t, uri, sd.URI)

	res, err := NewDecoder(Options{}).Decode(ctx, sd)
	require.NoError(t, err)
	got, err := structured.As[*frame.Frame](res)
	require.NoError(t, err)
	assert.Equal(t, second.Columns(), got.Columns())
	assert.Equal(t, 1, got.NumRows())
}

func TestDecode_ForeignTableUsesDeclaredTypes(t *testing.T) {
	db, path := testutil.NewTestDB(t)
	want := testutil.NewBuilder(t).WithStandardPeople().Insert(db).Frame()

	uri := Location{Path: path, Table: "people"}.URI()
	res, err := NewDecoder(Options{}).Decode(context.Background(), &literal.StructuredDataset{URI: uri})
	require.NoError(t, err)
	got, err := structured.As[*frame.Frame](res)
	require.NoError(t, err)

	assert.Equal(t, testutil.PeopleColumns, got.Columns())
	for i := range want.NumRows() {
		assert.Equal(t, want.Row(i), got.Row(i), "row %d", i)
	}
}

func TestDecode_StreamAndProjection(t *testing.T) {
	db, path := testutil.NewTestDB(t)
	testutil.NewBuilder(t).WithStandardPeople().Insert(db)

	sd := &literal.StructuredDataset{
		URI:      Location{Path: path, Table: "people"}.URI(),
		Metadata: &literal.Metadata{Schema: &literal.Schema{Columns: []literal.Column{{Name: "name"}, {Name: "id"}}}},
	}
	res, err := NewDecoder(Options{ChunkRows: 2, Stream: true}).Decode(context.Background(), sd)
	require.NoError(t, err)
	require.True(t, res.IsStream())

	chunks, err := structured.Collect[*frame.Frame](res)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, []frame.Column{{Name: "name", Type: frame.String}, {Name: "id", Type: frame.Int64}}, chunks[0].Columns())
	assert.Equal(t, []any{"barbara, l", int64(5)}, chunks[2].Row(0))
}

func TestDecode_Errors(t *testing.T) {
	_, path := testutil.NewTestDB(t)
	dec := NewDecoder(Options{})
	ctx := context.Background()

	_, err := dec.Decode(ctx, &literal.StructuredDataset{URI: Location{Path: path, Table: "missing"}.URI()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = dec.Decode(ctx, &literal.StructuredDataset{
		URI:      Location{Path: path, Table: "people"}.URI(),
		Metadata: &literal.Metadata{Schema: &literal.Schema{Columns: []literal.Column{{Name: "nope"}}}},
	})
	require.ErrorIs(t, err, frame.ErrUnknownColumn)
}

func TestBinding_IsWildcardFormat(t *testing.T) {
	assert.Equal(t, structured.Key{Type: frame.Type, Protocol: "sqlite", Format: ""}, NewEncoder(Options{}).Key())
	assert.Equal(t, "", NewDecoder(Options{}).SupportedFormat())
}

func TestColumnTypeOf(t *testing.T) {
	assert.Equal(t, frame.Int64, columnTypeOf("INTEGER"))
	assert.Equal(t, frame.Int64, columnTypeOf("bigint"))
	assert.Equal(t, frame.Float64, columnTypeOf("DOUBLE PRECISION"))
	assert.Equal(t, frame.Float64, columnTypeOf("real"))
	assert.Equal(t, frame.Bool, columnTypeOf("BOOLEAN"))
	assert.Equal(t, frame.String, columnTypeOf("VARCHAR(20)"))
	assert.Equal(t, frame.String, columnTypeOf(""))
}

func TestEncode_RecordsSQLiteFormat(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewBuilder(t).WithStandardPeople().Frame()

	sd, err := NewEncoder(Options{Dir: t.TempDir()}).Encode(ctx, structured.NewDataset(f, structured.WithFormat("parquet")))
	require.NoError(t, err)
	assert.Equal(t, Format, sd.Format(), "table is not labelled with the requested format")
}
