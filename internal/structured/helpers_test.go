package structured

import (
	"context"
	"reflect"
	"sync/atomic"

	"github.com/zjrosen/structds/internal/literal"
)

// table is a stand-in dataframe type.
type table struct {
	cols []literal.Column
	rows int
}

var tableType = reflect.TypeFor[*table]()

type otherFrame struct{}

var otherType = reflect.TypeFor[*otherFrame]()

// countingEncoder records how often it is invoked.
type countingEncoder struct {
	Binding
	calls atomic.Int32
	err   error
}

func (c *countingEncoder) Encode(_ context.Context, ds *Dataset) (*literal.StructuredDataset, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	uri := ds.URI()
	if uri == "" {
		uri = c.Protocol() + "://generated/object"
	}
	var schema *literal.Schema
	if tb, ok := ds.Dataframe().(*table); ok {
		schema = &literal.Schema{Columns: tb.cols}
	}
	return &literal.StructuredDataset{URI: uri, Metadata: &literal.Metadata{Schema: schema}}, nil
}

// countingDecoder returns a table carrying the literal's schema.
type countingDecoder struct {
	Binding
	calls atomic.Int32
}

func (c *countingDecoder) Decode(_ context.Context, sd *literal.StructuredDataset) (Result, error) {
	c.calls.Add(1)
	var cols []literal.Column
	if s := sd.Schema(); s != nil {
		cols = s.Columns
	}
	return Single(&table{cols: cols}), nil
}

// codec implements both capabilities.
type codec struct {
	Binding
}

func (codec) Encode(context.Context, *Dataset) (*literal.StructuredDataset, error) {
	return &literal.StructuredDataset{URI: "mem://x"}, nil
}

func (codec) Decode(context.Context, *literal.StructuredDataset) (Result, error) {
	return Single(&table{}), nil
}

// bareHandler implements neither capability.
type bareHandler struct {
	Binding
}

func newEncoder(protocol, format string) *countingEncoder {
	return &countingEncoder{Binding: Bind(tableType, protocol, format)}
}

func newDecoder(protocol, format string) *countingDecoder {
	return &countingDecoder{Binding: Bind(tableType, protocol, format)}
}

func sampleTable() *table {
	return &table{cols: []literal.Column{{Name: "id", Type: "int64"}, {Name: "name", Type: "string"}}, rows: 3}
}
