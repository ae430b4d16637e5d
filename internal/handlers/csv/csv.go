// Package csv encodes *frame.Frame values as CSV objects with typed
// "name:type" headers.
package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/zjrosen/structds/internal/frame"
	"github.com/zjrosen/structds/internal/literal"
	"github.com/zjrosen/structds/internal/log"
	"github.com/zjrosen/structds/internal/storage"
	"github.com/zjrosen/structds/internal/structured"
)

// Format is the format tag handled by this package.
const Format = "csv"

// DefaultChunkRows is the streaming chunk size used when none is configured.
const DefaultChunkRows = 1024

// Options tune decoding.
type Options struct {
	ChunkRows int
	Stream    bool
}

// Header renders the typed header row for cols.
func Header(cols []frame.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name + ":" + string(c.Type)
	}
	return out
}

// ParseHeader parses a typed header row. A cell without ":type" is a string column.
func ParseHeader(record []string) ([]frame.Column, error) {
	cols := make([]frame.Column, len(record))
	for i, cell := range record {
		name, typ := cell, frame.String
		if j := strings.LastIndexByte(cell, ':'); j > 0 {
			name, typ = cell[:j], frame.ColumnType(cell[j+1:])
		}
		if !typ.Valid() {
			return nil, fmt.Errorf("csv: column %q: %w: %q", name, frame.ErrUnknownType, typ)
		}
		cols[i] = frame.Column{Name: name, Type: typ}
	}
	return cols, nil
}

// emptyRecord is a single empty field. Readers skip blank lines, so a
// one-column row holding null is written quoted.
const emptyRecord = "\"\"\n"

// Write renders f as CSV with a typed header. Null and "" both render as an
// empty field and read back as null.
func Write(w io.Writer, f *frame.Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(f.Columns())); err != nil {
		return err
	}
	record := make([]string, f.NumCols())
	for r := range f.NumRows() {
		for c := range record {
			record[c] = frame.FormatValue(f.Value(r, c))
		}
		if len(record) == 1 && record[0] == "" {
			cw.Flush()
			if err := cw.Error(); err != nil {
				return err
			}
			if _, err := io.WriteString(w, emptyRecord); err != nil {
				return err
			}
			continue
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read parses a whole CSV document with a typed header.
func Read(r io.Reader) (*frame.Frame, error) {
	var out *frame.Frame
	var cols []frame.Column
	for chunk, err := range readChunks(context.Background(), r, 0, &cols) {
		if err != nil {
			return nil, err
		}
		out = chunk
	}
	if out == nil {
		return frame.New(cols...)
	}
	return out, nil
}

// readChunks yields frames of at most size rows; size <= 0 yields one frame.
// cols receives the parsed header.
func readChunks(ctx context.Context, r io.Reader, size int, cols *[]frame.Column) iter.Seq2[*frame.Frame, error] {
	return func(yield func(*frame.Frame, error) bool) {
		cr := csv.NewReader(r)
		cr.ReuseRecord = true
		header, err := cr.Read()
		if errors.Is(err, io.EOF) {
			yield(nil, fmt.Errorf("csv: missing header"))
			return
		}
		if err != nil {
			yield(nil, fmt.Errorf("csv: read header: %w", err))
			return
		}
		parsed, err := ParseHeader(header)
		if err != nil {
			yield(nil, err)
			return
		}
		*cols = parsed

		cur, err := frame.New(parsed...)
		if err != nil {
			yield(nil, err)
			return
		}
		line := 1
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			record, err := cr.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			line++
			if err != nil {
				yield(nil, fmt.Errorf("csv: line %d: %w", line, err))
				return
			}
			vals := make([]any, len(record))
			for i, cell := range record {
				v, err := frame.ParseValue(parsed[i].Type, cell)
				if err != nil {
					yield(nil, fmt.Errorf("csv: line %d column %q: %w", line, parsed[i].Name, err))
					return
				}
				vals[i] = v
			}
			if err := cur.AppendRow(vals...); err != nil {
				yield(nil, fmt.Errorf("csv: line %d: %w", line, err))
				return
			}
			if size > 0 && cur.NumRows() == size {
				if !yield(cur, nil) {
					return
				}
				cur = frame.MustNew(parsed...)
			}
		}
		if cur.NumRows() > 0 || size <= 0 {
			yield(cur, nil)
		}
	}
}

// Encoder writes frames as CSV to store.
type Encoder struct {
	structured.Binding
	store storage.Store
}

// NewEncoder binds an encoder to the store's protocol.
func NewEncoder(store storage.Store) *Encoder {
	return &Encoder{Binding: structured.Bind(frame.Type, store.Protocol(), Format), store: store}
}

func (e *Encoder) Encode(ctx context.Context, ds *structured.Dataset) (*literal.StructuredDataset, error) {
	f, ok := ds.Dataframe().(*frame.Frame)
	if !ok {
		return nil, &structured.TypeMismatchError{Expected: frame.Type.String(), Actual: fmt.Sprintf("%T", ds.Dataframe())}
	}
	var buf bytes.Buffer
	if err := Write(&buf, f); err != nil {
		return nil, fmt.Errorf("csv: encode: %w", err)
	}
	uri := ds.URI()
	if uri == "" {
		uri = e.store.NewURI("data.csv")
	}
	if err := e.store.Put(ctx, uri, buf.Bytes()); err != nil {
		return nil, err
	}
	log.Debug(log.CatHandler, "Encoded csv", "uri", uri, "rows", f.NumRows())
	return &literal.StructuredDataset{
		URI: uri,
		Metadata: &literal.Metadata{
			Format: Format,
			Schema: &literal.Schema{Columns: f.LiteralColumns(), Format: Format},
		},
	}, nil
}

// Decoder reads CSV objects from store into frames.
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
	selected := sd.Schema().ColumnNames()

	if !d.opts.Stream {
		f, err := Read(bytes.NewReader(data))
		if err != nil {
			return structured.Result{}, err
		}
		f, err = f.Select(selected...)
		if err != nil {
			return structured.Result{}, err
		}
		return structured.Single(f), nil
	}

	size := d.opts.ChunkRows
	if size <= 0 {
		size = DefaultChunkRows
	}
	return structured.Stream(func(yield func(any, error) bool) {
		var cols []frame.Column
		for chunk, err := range readChunks(ctx, bytes.NewReader(data), size, &cols) {
			if err != nil {
				yield(nil, err)
				return
			}
			sel, err := chunk.Select(selected...)
			if !yield(sel, err) || err != nil {
				return
			}
		}
	}), nil
}
