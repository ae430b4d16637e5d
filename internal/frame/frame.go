// Package frame is the in-memory tabular type the bundled handlers convert.
//
// A Frame has an ordered list of typed columns and row-major values. A nil
// value is a null. Frames are not safe for concurrent mutation.
package frame

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/zjrosen/structds/internal/literal"
)

// ColumnType is the logical type of a column.
type ColumnType string

const (
	String  ColumnType = "string"
	Int64   ColumnType = "int64"
	Float64 ColumnType = "float64"
	Bool    ColumnType = "bool"
)

// Valid reports whether t is a supported column type.
func (t ColumnType) Valid() bool {
	switch t {
	case String, Int64, Float64, Bool:
		return true
	}
	return false
}

// Type is the dataframe type under which frame handlers register.
var Type = reflect.TypeFor[*Frame]()

var (
	ErrUnknownColumn  = errors.New("unknown column")
	ErrUnknownType    = errors.New("unknown column type")
	ErrArity          = errors.New("row arity does not match columns")
	ErrValueType      = errors.New("value does not match column type")
	ErrSchemaMismatch = errors.New("frames have different schemas")
)

// Column is a named, typed column.
type Column struct {
	Name string
	Type ColumnType
}

// Frame is an ordered set of typed columns with row-major values.
type Frame struct {
	cols []Column
	rows [][]any
}

// New creates an empty frame. Column types must be valid and names unique.
func New(cols ...Column) (*Frame, error) {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if !c.Type.Valid() {
			return nil, fmt.Errorf("column %q: %w: %q", c.Name, ErrUnknownType, c.Type)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
	}
	return &Frame{cols: slices.Clone(cols)}, nil
}

// MustNew is New that panics on error. Intended for fixtures.
func MustNew(cols ...Column) *Frame {
	f, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

// Columns returns a copy of the column list.
func (f *Frame) Columns() []Column { return slices.Clone(f.cols) }

// NumRows returns the row count.
func (f *Frame) NumRows() int { return len(f.rows) }

// NumCols returns the column count.
func (f *Frame) NumCols() int { return len(f.cols) }

// AppendRow appends one row. Ints are widened to int64 and float32 to float64.
func (f *Frame) AppendRow(vals ...any) error {
	if len(vals) != len(f.cols) {
		return fmt.Errorf("%w: got %d values for %d columns", ErrArity, len(vals), len(f.cols))
	}
	row := make([]any, len(vals))
	for i, v := range vals {
		nv, err := normalize(f.cols[i].Type, v)
		if err != nil {
			return fmt.Errorf("column %q: %w", f.cols[i].Name, err)
		}
		row[i] = nv
	}
	f.rows = append(f.rows, row)
	return nil
}

func normalize(t ColumnType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Int64:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		}
	case Float64:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		}
	case Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %T is not %s", ErrValueType, v, t)
}

// Row returns a copy of row i.
func (f *Frame) Row(i int) []any { return slices.Clone(f.rows[i]) }

// Value returns the value at (row, col).
func (f *Frame) Value(row, col int) any { return f.rows[row][col] }

// Slice returns rows [start, end) as a new frame sharing row storage.
func (f *Frame) Slice(start, end int) *Frame {
	start = max(0, min(start, len(f.rows)))
	end = max(start, min(end, len(f.rows)))
	return &Frame{cols: f.cols, rows: f.rows[start:end:end]}
}

// Chunks splits the frame into frames of at most n rows. An empty frame
// yields one empty chunk.
func (f *Frame) Chunks(n int) []*Frame {
	if n <= 0 || len(f.rows) <= n {
		return []*Frame{f}
	}
	out := make([]*Frame, 0, (len(f.rows)+n-1)/n)
	for start := 0; start < len(f.rows); start += n {
		out = append(out, f.Slice(start, start+n))
	}
	return out
}

// Concat appends the rows of every frame into a new frame. All frames must
// share the same schema.
func Concat(frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return &Frame{}, nil
	}
	out := &Frame{cols: slices.Clone(frames[0].cols)}
	for i, fr := range frames {
		if !slices.Equal(fr.cols, out.cols) {
			return nil, fmt.Errorf("frame %d: %w", i, ErrSchemaMismatch)
		}
		out.rows = append(out.rows, fr.rows...)
	}
	return out, nil
}

// Select returns a frame with only the named columns, in the given order.
// No names selects every column.
func (f *Frame) Select(names ...string) (*Frame, error) {
	if len(names) == 0 {
		return f, nil
	}
	idx := make([]int, len(names))
	cols := make([]Column, len(names))
	for i, name := range names {
		j := slices.IndexFunc(f.cols, func(c Column) bool { return c.Name == name })
		if j < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		idx[i], cols[i] = j, f.cols[j]
	}
	out := &Frame{cols: cols, rows: make([][]any, len(f.rows))}
	for r, row := range f.rows {
		sel := make([]any, len(idx))
		for i, j := range idx {
			sel[i] = row[j]
		}
		out.rows[r] = sel
	}
	return out, nil
}

// SchemaString renders one "name:type" line per column.
func (f *Frame) SchemaString() string {
	var b strings.Builder
	for _, c := range f.cols {
		fmt.Fprintf(&b, "%s:%s\n", c.Name, c.Type)
	}
	return b.String()
}

// LiteralColumns converts the schema to literal columns.
func (f *Frame) LiteralColumns() []literal.Column {
	out := make([]literal.Column, len(f.cols))
	for i, c := range f.cols {
		out[i] = literal.Column{Name: c.Name, Type: string(c.Type)}
	}
	return out
}

// FromLiteralColumns converts literal columns back to frame columns.
func FromLiteralColumns(cols []literal.Column) ([]Column, error) {
	out := make([]Column, len(cols))
	for i, c := range cols {
		t := ColumnType(c.Type)
		if !t.Valid() {
			return nil, fmt.Errorf("column %q: %w: %q", c.Name, ErrUnknownType, c.Type)
		}
		out[i] = Column{Name: c.Name, Type: t}
	}
	return out, nil
}

// ParseValue parses text as a value of type t. The empty string is null.
func ParseValue(t ColumnType, text string) (any, error) {
	if text == "" {
		return nil, nil
	}
	switch t {
	case String:
		return text, nil
	case Int64:
		return strconv.ParseInt(text, 10, 64)
	case Float64:
		return strconv.ParseFloat(text, 64)
	case Bool:
		return strconv.ParseBool(text)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

// FormatValue renders v for text output. Null renders as "".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
