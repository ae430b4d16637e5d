package parquet

import (
	"encoding/json"
	"fmt"
	"slices"

	pq "github.com/parquet-go/parquet-go"

	"github.com/zjrosen/structds/internal/frame"
	"github.com/zjrosen/structds/internal/literal"
)

// columnsKey is the key/value metadata entry that preserves column order and
// logical types; parquet groups order their fields by name.
const columnsKey = "structds.columns"

// rowCodec converts frame rows to and from parquet rows for one schema.
type rowCodec struct {
	cols   []frame.Column
	schema *pq.Schema
	// leaf[i] is the parquet column index of frame column i.
	leaf []int
}

func newRowCodec(cols []frame.Column) (*rowCodec, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("parquet: frame has no columns")
	}
	group := make(pq.Group, len(cols))
	for _, c := range cols {
		node, err := nodeFor(c.Type)
		if err != nil {
			return nil, fmt.Errorf("parquet: column %q: %w", c.Name, err)
		}
		group[c.Name] = pq.Optional(node)
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	leaf := make([]int, len(cols))
	for i, name := range names {
		leaf[i], _ = slices.BinarySearch(sorted, name)
	}

	return &rowCodec{cols: cols, schema: pq.NewSchema("frame", group), leaf: leaf}, nil
}

func nodeFor(t frame.ColumnType) (pq.Node, error) {
	switch t {
	case frame.String:
		return pq.String(), nil
	case frame.Int64:
		return pq.Int(64), nil
	case frame.Float64:
		return pq.Leaf(pq.DoubleType), nil
	case frame.Bool:
		return pq.Leaf(pq.BooleanType), nil
	default:
		return nil, fmt.Errorf("%w: %q", frame.ErrUnknownType, t)
	}
}

func (c *rowCodec) Schema() *pq.Schema { return c.schema }

// Deconstruct appends the parquet form of a frame row to row.
func (c *rowCodec) Deconstruct(row pq.Row, vals []any) pq.Row {
	out := make(pq.Row, len(vals))
	for i, v := range vals {
		col := c.leaf[i]
		if v == nil {
			out[col] = pq.NullValue().Level(0, 0, col)
			continue
		}
		out[col] = pq.ValueOf(v).Level(0, 1, col)
	}
	return append(row, out...)
}

// Reconstruct converts a parquet row back to frame values.
func (c *rowCodec) Reconstruct(row pq.Row) ([]any, error) {
	byLeaf := make(map[int]pq.Value, len(row))
	for _, v := range row {
		byLeaf[v.Column()] = v
	}
	vals := make([]any, len(c.cols))
	for i, col := range c.cols {
		v, ok := byLeaf[c.leaf[i]]
		if !ok || v.IsNull() {
			continue
		}
		switch col.Type {
		case frame.String:
			vals[i] = string(v.ByteArray())
		case frame.Int64:
			vals[i] = v.Int64()
		case frame.Float64:
			vals[i] = v.Double()
		case frame.Bool:
			vals[i] = v.Boolean()
		default:
			return nil, fmt.Errorf("%w: %q", frame.ErrUnknownType, col.Type)
		}
	}
	return vals, nil
}

// encodeColumns renders the column catalog as a JSON array of {name, type}.
func encodeColumns(cols []frame.Column) (string, error) {
	entries := make([]literal.Column, len(cols))
	for i, c := range cols {
		entries[i] = literal.Column{Name: c.Name, Type: string(c.Type)}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("parquet: encode %s metadata: %w", columnsKey, err)
	}
	return string(raw), nil
}

func decodeColumns(raw string) ([]frame.Column, error) {
	if raw == "" {
		return nil, fmt.Errorf("parquet: missing %s metadata", columnsKey)
	}
	var entries []literal.Column
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("parquet: malformed %s metadata: %w", columnsKey, err)
	}
	cols, err := frame.FromLiteralColumns(entries)
	if err != nil {
		return nil, fmt.Errorf("parquet: %w", err)
	}
	return cols, nil
}
