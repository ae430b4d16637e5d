package parquet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/structds/internal/frame"
	"github.com/zjrosen/structds/internal/literal"
	"github.com/zjrosen/structds/internal/storage"
	"github.com/zjrosen/structds/internal/structured"
)

func sample(t *testing.T, rows int) *frame.Frame {
	t.Helper()
	f := frame.MustNew(
		frame.Column{Name: "zeta", Type: frame.String},
		frame.Column{Name: "alpha", Type: frame.Int64},
		frame.Column{Name: "score", Type: frame.Float64},
		frame.Column{Name: "ok", Type: frame.Bool},
	)
	for i := range rows {
		var name any = "row"
		if i%3 == 2 {
			name = nil
		}
		require.NoError(t, f.AppendRow(name, i, float64(i)/2, i%2 == 0))
	}
	return f
}

func TestRoundTrip_PreservesColumnOrderAndNulls(t *testing.T) {
	store := storage.NewMemory(0)
	ctx := context.Background()
	f := sample(t, 5)

	sd, err := NewEncoder(store, Options{RowGroupRows: 2}).Encode(ctx, structured.NewDataset(f))
	require.NoError(t, err)
	assert.Equal(t, Format, sd.Format())
	assert.Equal(t, []string{"zeta", "alpha", "score", "ok"}, sd.Schema().ColumnNames())

	res, err := NewDecoder(store, Options{}).Decode(ctx, sd)
	require.NoError(t, err)
	got, err := structured.As[*frame.Frame](res)
	require.NoError(t, err)

	assert.Equal(t, f.Columns(), got.Columns())
	require.Equal(t, f.NumRows(), got.NumRows())
	for i := range f.NumRows() {
		assert.Equal(t, f.Row(i), got.Row(i), "row %d", i)
	}
}

func TestEncode_UsesGivenURI(t *testing.T) {
	store, err := storage.NewLocal(t.TempDir(), 0)
	require.NoError(t, err)
	ctx := context.Background()

	sd, err := NewEncoder(store, Options{}).Encode(ctx, structured.NewDataset(sample(t, 3), structured.WithURI("out/data.parquet")))
	require.NoError(t, err)
	assert.Equal(t, "out/data.parquet", sd.URI)

	ok, err := store.Exists(ctx, "out/data.parquet")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDecode_Stream(t *testing.T) {
	store := storage.NewMemory(0)
	ctx := context.Background()

	sd, err := NewEncoder(store, Options{RowGroupRows: 4}).Encode(ctx, structured.NewDataset(sample(t, 5)))
	require.NoError(t, err)

	res, err := NewDecoder(store, Options{RowGroupRows: 2, Stream: true}).Decode(ctx, sd)
	require.NoError(t, err)
	require.True(t, res.IsStream())

	chunks, err := structured.Collect[*frame.Frame](res)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, 2, chunks[0].NumRows())
	assert.Equal(t, 2, chunks[1].NumRows())
	assert.Equal(t, 1, chunks[2].NumRows())
	assert.Equal(t, int64(4), chunks[2].Value(0, 1))
}

func TestDecode_SelectsSchemaColumns(t *testing.T) {
	store := storage.NewMemory(0)
	ctx := context.Background()

	sd, err := NewEncoder(store, Options{}).Encode(ctx, structured.NewDataset(sample(t, 2)))
	require.NoError(t, err)
	sd.Metadata.Schema = &literal.Schema{Columns: []literal.Column{{Name: "score", Type: "float64"}, {Name: "alpha", Type: "int64"}}}

	res, err := NewDecoder(store, Options{}).Decode(ctx, sd)
	require.NoError(t, err)
	got, err := structured.As[*frame.Frame](res)
	require.NoError(t, err)
	assert.Equal(t, []frame.Column{{Name: "score", Type: frame.Float64}, {Name: "alpha", Type: frame.Int64}}, got.Columns())
	assert.Equal(t, []any{0.5, int64(1)}, got.Row(1))
}

func TestDecode_EmptyFrame(t *testing.T) {
	store := storage.NewMemory(0)
	ctx := context.Background()

	sd, err := NewEncoder(store, Options{}).Encode(ctx, structured.NewDataset(sample(t, 0)))
	require.NoError(t, err)

	res, err := NewDecoder(store, Options{}).Decode(ctx, sd)
	require.NoError(t, err)
	got, err := structured.As[*frame.Frame](res)
	require.NoError(t, err)
	assert.Equal(t, 0, got.NumRows())
	assert.Equal(t, 4, got.NumCols())
}

func TestDecode_MissingObject(t *testing.T) {
	_, err := NewDecoder(storage.NewMemory(0), Options{}).Decode(context.Background(), &literal.StructuredDataset{URI: "mem://nope/data.parquet"})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEncode_WrongDataframe(t *testing.T) {
	_, err := NewEncoder(storage.NewMemory(0), Options{}).Encode(context.Background(), structured.NewDataset("not a frame"))
	require.ErrorIs(t, err, structured.ErrTypeMismatch)
}

func TestBinding(t *testing.T) {
	enc := NewEncoder(storage.NewMemory(0), Options{})
	assert.Equal(t, structured.Key{Type: frame.Type, Protocol: "mem", Format: "parquet"}, enc.Key())
}

func TestColumnsMetadata(t *testing.T) {
	cols := []frame.Column{
		{Name: "a:b", Type: frame.String},
		{Name: "a,b", Type: frame.Int64},
		{Name: `q"`, Type: frame.Bool},
	}
	raw, err := encodeColumns(cols)
	require.NoError(t, err)
	got, err := decodeColumns(raw)
	require.NoError(t, err)
	assert.Equal(t, cols, got)

	_, err = decodeColumns("")
	require.Error(t, err)
	_, err = decodeColumns("x:int64")
	require.Error(t, err)
	_, err = decodeColumns(`[{"name":"x","type":"decimal"}]`)
	require.ErrorIs(t, err, frame.ErrUnknownType)
}

func TestRoundTrip_ColumnNamesWithSeparators(t *testing.T) {
	store := storage.NewMemory(0)
	ctx := context.Background()
	f := frame.MustNew(
		frame.Column{Name: "a,b", Type: frame.Int64},
		frame.Column{Name: "c", Type: frame.String},
	)
	require.NoError(t, f.AppendRow(int64(1), "x"))
	require.NoError(t, f.AppendRow(nil, "y"))

	sd, err := NewEncoder(store, Options{}).Encode(ctx, structured.NewDataset(f))
	require.NoError(t, err)
	res, err := NewDecoder(store, Options{}).Decode(ctx, sd)
	require.NoError(t, err)
	got, err := structured.As[*frame.Frame](res)
	require.NoError(t, err)
	assert.Equal(t, f.Columns(), got.Columns())
	assert.Equal(t, []any{nil, "y"}, got.Row(1))
}
