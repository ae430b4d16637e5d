package handlers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/structds/internal/frame"
	"github.com/zjrosen/structds/internal/literal"
	"github.com/zjrosen/structds/internal/storage"
	"github.com/zjrosen/structds/internal/structured"
	"github.com/zjrosen/structds/internal/testutil"
)

func newEngine(t *testing.T, opts Options) (*structured.Engine, *storage.Local) {
	t.Helper()
	local, err := storage.NewLocal(t.TempDir(), 0)
	require.NoError(t, err)
	opts.SQLiteDir = t.TempDir()

	reg, err := structured.NewBuilder(Registrar(Deps{
		Router:  storage.NewRouter(local, storage.NewMemory(0)),
		Options: opts,
	})).Build()
	require.NoError(t, err)
	return structured.NewEngine(reg), local
}

func TestRegister_DefaultIsFileParquet(t *testing.T) {
	engine, _ := newEngine(t, DefaultOptions())
	reg := engine.Registry()

	assert.Equal(t, "file", reg.DefaultProtocol(frame.Type))
	assert.Equal(t, "parquet", reg.DefaultFormat(frame.Type))
	// (file, mem) x (parquet, csv) x (enc, dec) + sqlite (enc, dec)
	assert.Len(t, reg.Entries(), 10)
}

func TestRegister_CSVOnly(t *testing.T) {
	engine, _ := newEngine(t, Options{CSV: true})
	reg := engine.Registry()

	assert.Equal(t, "file", reg.DefaultProtocol(frame.Type))
	assert.Equal(t, "csv", reg.DefaultFormat(frame.Type))
	assert.Len(t, reg.Entries(), 4)
}

func TestRegister_NothingEnabled(t *testing.T) {
	engine, _ := newEngine(t, Options{})
	assert.Empty(t, engine.Registry().Entries())
	assert.Empty(t, engine.Registry().Types())
}

func TestEngine_RoundTripEveryFormat(t *testing.T) {
	engine, local := newEngine(t, DefaultOptions())
	ctx := context.Background()
	f := testutil.NewBuilder(t).WithStandardPeople().Frame()

	tests := []struct {
		name string
		ds   *structured.Dataset
	}{
		{name: "default file parquet", ds: structured.NewDataset(f)},
		{name: "file csv", ds: structured.NewDataset(f, structured.WithFormat("csv"))},
		{name: "mem parquet", ds: structured.NewDataset(f, structured.WithURI("mem://run/out.parquet"))},
		{name: "mem csv", ds: structured.NewDataset(f, structured.WithURI("mem://run/out.csv"), structured.WithFormat("csv"))},
		{name: "schemeless path", ds: structured.NewDataset(f, structured.WithURI(filepath.Join(local.Root(), "plain.parquet")))},
		{name: "sqlite any format", ds: structured.NewDataset(f, structured.WithURI("sqlite://"+filepath.Join(t.TempDir(), "x.db")+"?table=people"), structured.WithFormat("table"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lit, err := engine.ToLiteral(ctx, structured.Wrapped(tt.ds), literal.LiteralType{})
			require.NoError(t, err)

			res, err := engine.ToFrame(ctx, lit, frame.Type)
			require.NoError(t, err)
			got, err := structured.As[*frame.Frame](res)
			require.NoError(t, err)

			assert.Equal(t, f.SchemaString(), got.SchemaString())
			require.Equal(t, f.NumRows(), got.NumRows())
			for i := range f.NumRows() {
				assert.Equal(t, f.Row(i), got.Row(i))
			}
		})
	}
}

func TestEngine_BareFrameUsesSchemaHint(t *testing.T) {
	engine, _ := newEngine(t, DefaultOptions())
	ctx := context.Background()
	f := testutil.NewBuilder(t).WithStandardPeople().Frame()

	lit, err := engine.ToLiteral(ctx, structured.Bare(f), literal.LiteralType{
		StructuredDataset: &literal.Schema{Columns: []literal.Column{{Name: "name", Type: "string"}}},
	})
	require.NoError(t, err)

	sd, err := lit.StructuredDataset()
	require.NoError(t, err)
	assert.Equal(t, "parquet", sd.Format())

	lazy, err := engine.ToDataset(ctx, lit)
	require.NoError(t, err)
	res, err := engine.Open(ctx, lazy, frame.Type)
	require.NoError(t, err)
	got, err := structured.As[*frame.Frame](res)
	require.NoError(t, err)
	assert.Equal(t, f.NumRows(), got.NumRows())
}

func TestEngine_StreamingDecode(t *testing.T) {
	opts := DefaultOptions()
	opts.ChunkRows = 2
	opts.Stream = true
	engine, _ := newEngine(t, opts)
	ctx := context.Background()
	f := testutil.NewBuilder(t).WithStandardPeople().Frame()

	lit, err := engine.ToLiteral(ctx, structured.Wrapped(structured.NewDataset(f)), literal.LiteralType{})
	require.NoError(t, err)
	res, err := engine.ToFrame(ctx, lit, frame.Type)
	require.NoError(t, err)
	require.True(t, res.IsStream())

	chunks, err := structured.Collect[*frame.Frame](res)
	require.NoError(t, err)
	joined, err := frame.Concat(chunks...)
	require.NoError(t, err)
	assert.Equal(t, f.NumRows(), joined.NumRows())
	assert.Len(t, chunks, 3)
}

func TestEngine_UnknownProtocol(t *testing.T) {
	engine, _ := newEngine(t, DefaultOptions())
	_, err := engine.ToLiteral(context.Background(),
		structured.Wrapped(structured.NewDataset(frame.MustNew(), structured.WithURI("gs://bucket/key"))), literal.LiteralType{})

	var nf *structured.HandlerNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, structured.LevelProtocol, nf.Level)
	assert.Equal(t, "gs", nf.Key.Protocol)
}
