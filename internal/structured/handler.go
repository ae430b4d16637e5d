package structured

import (
	"context"
	"reflect"
	"strings"

	"github.com/zjrosen/structds/internal/literal"
)

// Handler is the identity every encoder and decoder carries.
type Handler interface {
	DataframeType() reflect.Type
	Protocol() string
	SupportedFormat() string
}

// Encoder turns a Dataset into a structured-dataset literal payload.
type Encoder interface {
	Handler
	Encode(ctx context.Context, ds *Dataset) (*literal.StructuredDataset, error)
}

// Decoder turns a structured-dataset literal payload into a dataframe or a
// stream of dataframe chunks.
type Decoder interface {
	Handler
	Decode(ctx context.Context, sd *literal.StructuredDataset) (Result, error)
}

// Binding implements Handler; embed it in concrete handlers.
type Binding struct {
	dfType   reflect.Type
	protocol string
	format   string
}

// Bind creates a binding. Protocols are case-insensitive and stored lower-case;
// an empty format is the wildcard.
func Bind(t reflect.Type, protocol, format string) Binding {
	return Binding{dfType: t, protocol: strings.ToLower(protocol), format: format}
}

func (b Binding) DataframeType() reflect.Type { return b.dfType }
func (b Binding) Protocol() string            { return b.protocol }
func (b Binding) SupportedFormat() string     { return b.format }

// Key returns the registry key of the binding.
func (b Binding) Key() Key { return KeyOf(b) }

// KeyOf returns the registry key of any handler.
func KeyOf(h Handler) Key {
	return Key{Type: h.DataframeType(), Protocol: h.Protocol(), Format: h.SupportedFormat()}
}

// EncodeFunc is the function form of Encoder.Encode.
type EncodeFunc func(ctx context.Context, ds *Dataset) (*literal.StructuredDataset, error)

// DecodeFunc is the function form of Decoder.Decode.
type DecodeFunc func(ctx context.Context, sd *literal.StructuredDataset) (Result, error)

type funcEncoder struct {
	Binding
	fn EncodeFunc
}

func (e funcEncoder) Encode(ctx context.Context, ds *Dataset) (*literal.StructuredDataset, error) {
	return e.fn(ctx, ds)
}

type funcDecoder struct {
	Binding
	fn DecodeFunc
}

func (d funcDecoder) Decode(ctx context.Context, sd *literal.StructuredDataset) (Result, error) {
	return d.fn(ctx, sd)
}

// NewEncoder adapts fn into an Encoder bound to b.
func NewEncoder(b Binding, fn EncodeFunc) Encoder {
	return funcEncoder{Binding: b, fn: fn}
}

// NewDecoder adapts fn into a Decoder bound to b.
func NewDecoder(b Binding, fn DecodeFunc) Decoder {
	return funcDecoder{Binding: b, fn: fn}
}
