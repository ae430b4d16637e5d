// Package parquet encodes *frame.Frame values as Parquet objects in a byte store.
package parquet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	pq "github.com/parquet-go/parquet-go"

	"github.com/zjrosen/structds/internal/frame"
	"github.com/zjrosen/structds/internal/literal"
	"github.com/zjrosen/structds/internal/log"
	"github.com/zjrosen/structds/internal/storage"
	"github.com/zjrosen/structds/internal/structured"
)

// Format is the format tag handled by this package.
const Format = "parquet"

// DefaultRowGroupRows is the row group size used when none is configured.
const DefaultRowGroupRows = 1024

// Options tune encoding and decoding.
type Options struct {
	// RowGroupRows caps the rows per row group on encode and the rows per
	// chunk when streaming.
	RowGroupRows int
	// Stream makes the decoder return a chunk stream instead of one frame.
	Stream bool
}

func (o Options) rowGroupRows() int {
	if o.RowGroupRows <= 0 {
		return DefaultRowGroupRows
	}
	return o.RowGroupRows
}

// Encoder writes frames as Parquet to store.
type Encoder struct {
	structured.Binding
	store storage.Store
	opts  Options
}

// NewEncoder binds an encoder to the store's protocol.
func NewEncoder(store storage.Store, opts Options) *Encoder {
	return &Encoder{Binding: structured.Bind(frame.Type, store.Protocol(), Format), store: store, opts: opts}
}

func (e *Encoder) Encode(ctx context.Context, ds *structured.Dataset) (*literal.StructuredDataset, error) {
	f, ok := ds.Dataframe().(*frame.Frame)
	if !ok {
		return nil, &structured.TypeMismatchError{Expected: frame.Type.String(), Actual: fmt.Sprintf("%T", ds.Dataframe())}
	}
	codec, err := newRowCodec(f.Columns())
	if err != nil {
		return nil, err
	}

	catalog, err := encodeColumns(f.Columns())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := pq.NewWriter(&buf, codec.Schema(), pq.KeyValueMetadata(columnsKey, catalog))
	for _, chunk := range f.Chunks(e.opts.rowGroupRows()) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows := make([]pq.Row, chunk.NumRows())
		for i := range rows {
			rows[i] = codec.Deconstruct(nil, chunk.Row(i))
		}
		if _, err := w.WriteRows(rows); err != nil {
			return nil, fmt.Errorf("parquet: write rows: %w", err)
		}
		if err := w.Flush(); err != nil {
			return nil, fmt.Errorf("parquet: flush row group: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("parquet: close writer: %w", err)
	}

	uri := ds.URI()
	if uri == "" {
		uri = e.store.NewURI("data.parquet")
	}
	if err := e.store.Put(ctx, uri, buf.Bytes()); err != nil {
		return nil, err
	}
	log.Debug(log.CatHandler, "Encoded parquet", "uri", uri, "rows", f.NumRows(), "bytes", buf.Len())

	return &literal.StructuredDataset{
		URI: uri,
		Metadata: &literal.Metadata{
			Format: Format,
			Schema: &literal.Schema{Columns: f.LiteralColumns(), Format: Format},
		},
	}, nil
}

// Decoder reads Parquet objects from store into frames.
type Decoder struct {
	structured.Binding
	store storage.Store
	opts  Options
}

// NewDecoder binds a decoder to the store's protocol.
func NewDecoder(store storage.Store, opts Options) *Decoder {
	return &Decoder{Binding: structured.Bind(frame.Type, store.Protocol(), Format), store: store, opts: opts}
}

func (d *Decoder) Decode(ctx context.Context, sd *literal.StructuredDataset) (structured.Result, error) {
	data, err := d.store.Get(ctx, sd.URI)
	if err != nil {
		return structured.Result{}, err
	}
	f, err := pq.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return structured.Result{}, fmt.Errorf("parquet: open %s: %w", sd.URI, err)
	}
	raw, _ := f.Lookup(columnsKey)
	cols, err := decodeColumns(raw)
	if err != nil {
		return structured.Result{}, err
	}
	codec, err := newRowCodec(cols)
	if err != nil {
		return structured.Result{}, err
	}
	selected := sd.Schema().ColumnNames()

	chunks := d.chunks(ctx, f, codec, selected)
	if d.opts.Stream {
		return structured.Stream(chunks), nil
	}

	var parts []*frame.Frame
	for chunk, err := range chunks {
		if err != nil {
			return structured.Result{}, err
		}
		parts = append(parts, chunk.(*frame.Frame))
	}
	if len(parts) == 0 {
		empty, err := frame.MustNew(cols...).Select(selected...)
		if err != nil {
			return structured.Result{}, err
		}
		return structured.Single(empty), nil
	}
	out, err := frame.Concat(parts...)
	if err != nil {
		return structured.Result{}, err
	}
	return structured.Single(out), nil
}

// chunks yields frames of at most RowGroupRows rows across every row group.
func (d *Decoder) chunks(ctx context.Context, f *pq.File, codec *rowCodec, selected []string) iter.Seq2[any, error] {
	size := d.opts.rowGroupRows()
	return func(yield func(any, error) bool) {
		cur := frame.MustNew(codec.cols...)
		emit := func() bool {
			out, err := cur.Select(selected...)
			cur = frame.MustNew(codec.cols...)
			if err != nil {
				yield(nil, err)
				return false
			}
			return yield(out, nil)
		}

		buf := make([]pq.Row, 128)
		for _, rg := range f.RowGroups() {
			rows := rg.Rows()
			for {
				if err := ctx.Err(); err != nil {
					_ = rows.Close()
					yield(nil, err)
					return
				}
				n, err := rows.ReadRows(buf)
				for _, row := range buf[:n] {
					vals, rerr := codec.Reconstruct(row)
					if rerr == nil {
						rerr = cur.AppendRow(vals...)
					}
					if rerr != nil {
						_ = rows.Close()
						yield(nil, rerr)
						return
					}
					if cur.NumRows() == size && !emit() {
						_ = rows.Close()
						return
					}
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					_ = rows.Close()
					yield(nil, fmt.Errorf("parquet: read rows: %w", err))
					return
				}
			}
			_ = rows.Close()
		}
		if cur.NumRows() > 0 {
			emit()
		}
	}
}
