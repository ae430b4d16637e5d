package structured

import (
	"context"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/structds/internal/literal"
	"github.com/zjrosen/structds/internal/log"
	"github.com/zjrosen/structds/internal/pubsub"
)

// Engine dispatches conversions between dataframes and literals through a
// registry. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	reg    RegistryProvider
	tracer trace.Tracer
	events pubsub.Publisher[Event]
	strict bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithTracer records a span per dispatch.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithEvents publishes an Event after every dispatch.
func WithEvents(p pubsub.Publisher[Event]) Option {
	return func(e *Engine) { e.events = p }
}

// WithStrictScheme makes a non-empty URI without a "scheme://" prefix an
// error instead of falling back to the type's default protocol.
func WithStrictScheme(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// NewEngine creates an engine over reg. A *Registry is sealed first.
func NewEngine(reg RegistryProvider, opts ...Option) *Engine {
	if r, ok := reg.(*Registry); ok {
		r.Seal()
	}
	e := &Engine{
		reg:    reg,
		tracer: noop.NewTracerProvider().Tracer("structds"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's registry.
func (e *Engine) Registry() RegistryProvider { return e.reg }

// ToLiteral converts in to a structured-dataset literal. expected carries
// the schema hint used when in is a bare dataframe.
func (e *Engine) ToLiteral(ctx context.Context, in Input, expected literal.LiteralType) (*literal.Literal, error) {
	ds, t, err := e.wrap(in, expected)
	if err != nil {
		return nil, err
	}
	protocol, err := e.ResolveProtocol(ds.URI(), t)
	if err != nil {
		return nil, err
	}
	format := ds.DeclaredFormat()
	if format == "" {
		format = e.reg.DefaultFormat(t)
	}
	sd, err := e.Encode(ctx, ds, t, protocol, format)
	if err != nil {
		return nil, err
	}
	return literal.NewLiteral(sd), nil
}

// wrap turns the tagged input into a dataset and its dataframe type.
func (e *Engine) wrap(in Input, expected literal.LiteralType) (*Dataset, reflect.Type, error) {
	switch in.kind {
	case InputWrapped:
		ds := in.dataset
		if ds == nil {
			return nil, nil, &TypeMismatchError{Expected: DatasetType.String(), Actual: "<nil>"}
		}
		if err := ds.Validate(); err != nil {
			return nil, nil, err
		}
		t := ds.Type()
		if t == nil {
			return nil, nil, &TypeMismatchError{Expected: "dataset holding a dataframe", Actual: "dataset without dataframe type"}
		}
		return ds, t, nil

	case InputBare:
		v, t := in.value, in.declared
		if v == nil {
			return nil, nil, mismatch("dataframe of type "+TypeName(t), nil)
		}
		if _, isDataset := v.(*Dataset); isDataset {
			return nil, nil, &TypeMismatchError{Expected: "bare dataframe", Actual: DatasetType.String()}
		}
		if t == nil || reflect.TypeOf(v) != t {
			return nil, nil, mismatch(TypeName(t), v)
		}
		format := e.reg.DefaultFormat(t)
		md := &literal.Metadata{Format: format, Schema: expected.StructuredDataset.Clone()}
		return NewDataset(v, WithFormat(format), WithMetadata(md)), t, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown input kind %d", ErrTypeMismatch, in.kind)
	}
}

// ResolveProtocol returns the protocol for uri: its "scheme://" prefix when
// present, otherwise the default protocol of t.
func (e *Engine) ResolveProtocol(uri string, t reflect.Type) (string, error) {
	if uri == "" {
		return e.reg.DefaultProtocol(t), nil
	}
	if p, ok := InferProtocol(uri); ok {
		return p, nil
	}
	if e.strict {
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedScheme, uri)
	}
	p := e.reg.DefaultProtocol(t)
	log.Debug(log.CatDispatch, "URI has no scheme, using type default", "uri", uri, "protocol", p)
	return p, nil
}

// Encode resolves the encoder at (t, protocol, format) and invokes it once.
// Errors from the encoder are returned unchanged.
func (e *Engine) Encode(ctx context.Context, ds *Dataset, t reflect.Type, protocol, format string) (*literal.StructuredDataset, error) {
	if ds == nil {
		return nil, &TypeMismatchError{Expected: DatasetType.String(), Actual: "<nil>"}
	}
	key := Key{Type: t, Protocol: protocol, Format: format}
	ctx, d := e.begin(ctx, OpEncode, key, ds.URI())

	enc, err := e.reg.LookupEncoder(t, protocol, format)
	if err != nil {
		e.end(d, ResultSingle, err)
		return nil, err
	}
	d.resolved(enc)

	sd, err := enc.Encode(ctx, ds)
	d.invoked()
	if err != nil {
		e.end(d, ResultSingle, err)
		return nil, err
	}
	if sd == nil {
		err = fmt.Errorf("encoder for %s returned no dataset", key)
		e.end(d, ResultSingle, err)
		return nil, err
	}

	out := &literal.StructuredDataset{URI: sd.URI, Metadata: sd.Metadata.Clone()}
	if out.Metadata == nil {
		out.Metadata = &literal.Metadata{}
	}
	if out.Metadata.Format == "" {
		out.Metadata.Format = format
	}
	e.end(d, ResultSingle, nil)
	return out, nil
}

// ToDataset builds a lazy wrapper from lit. It performs no handler lookup
// and no storage access; the dataframe type is left unset.
func (e *Engine) ToDataset(_ context.Context, lit *literal.Literal) (*Dataset, error) {
	sd, err := lit.StructuredDataset()
	if err != nil {
		return nil, err
	}
	md := sd.Metadata.Clone()
	return NewDataset(nil, WithURI(sd.URI), WithFormat(sd.Format()), WithMetadata(md)), nil
}

// ToFrame decodes lit into dataframe type t. Passing DatasetType yields a
// lazy wrapper as ToDataset does.
func (e *Engine) ToFrame(ctx context.Context, lit *literal.Literal, t reflect.Type) (Result, error) {
	if t == DatasetType {
		ds, err := e.ToDataset(ctx, lit)
		if err != nil {
			return Result{}, err
		}
		return Single(ds), nil
	}
	sd, err := lit.StructuredDataset()
	if err != nil {
		return Result{}, err
	}
	return e.decodeAs(ctx, sd, sd.Format(), t)
}

// Open materializes a lazy wrapper as dataframe type t. A wrapper that
// already holds a dataframe of type t is returned without decoding.
func (e *Engine) Open(ctx context.Context, ds *Dataset, t reflect.Type) (Result, error) {
	if ds == nil {
		return Result{}, &TypeMismatchError{Expected: DatasetType.String(), Actual: "<nil>"}
	}
	if err := ds.Validate(); err != nil {
		return Result{}, err
	}
	if df := ds.Dataframe(); df != nil {
		if reflect.TypeOf(df) == t {
			return Single(df), nil
		}
		if ds.URI() == "" {
			return Result{}, mismatch(TypeName(t), df)
		}
	}
	md := ds.Metadata().Clone()
	if md == nil {
		md = &literal.Metadata{}
	}
	md.Format = ds.DeclaredFormat()
	sd := &literal.StructuredDataset{URI: ds.URI(), Metadata: md}
	return e.decodeAs(ctx, sd, ds.DeclaredFormat(), t)
}

func (e *Engine) decodeAs(ctx context.Context, sd *literal.StructuredDataset, format string, t reflect.Type) (Result, error) {
	protocol, err := e.ResolveProtocol(sd.URI, t)
	if err != nil {
		return Result{}, err
	}
	if format == "" {
		format = e.reg.DefaultFormat(t)
	}
	return e.Decode(ctx, sd, t, protocol, format)
}

// Decode resolves the decoder at (t, protocol, format) and invokes it once.
// Errors from the decoder are returned unchanged.
func (e *Engine) Decode(ctx context.Context, sd *literal.StructuredDataset, t reflect.Type, protocol, format string) (Result, error) {
	if sd == nil {
		return Result{}, &TypeMismatchError{Expected: "structured dataset literal", Actual: "<nil>"}
	}
	key := Key{Type: t, Protocol: protocol, Format: format}
	ctx, d := e.begin(ctx, OpDecode, key, sd.URI)

	dec, err := e.reg.LookupDecoder(t, protocol, format)
	if err != nil {
		e.end(d, ResultSingle, err)
		return Result{}, err
	}
	d.resolved(dec)

	res, err := dec.Decode(ctx, sd)
	d.invoked()
	e.end(d, res.Kind(), err)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// LiteralType returns the literal type for any dataframe type: a structured
// dataset with an empty column list.
func (e *Engine) LiteralType(reflect.Type) literal.LiteralType {
	return literal.LiteralType{StructuredDataset: &literal.Schema{Columns: []literal.Column{}}}
}

// GuessType maps a structured-dataset literal type to DatasetType.
func (e *Engine) GuessType(lt literal.LiteralType) (reflect.Type, error) {
	if !lt.IsStructuredDataset() {
		return nil, literal.ErrNotStructuredDataset
	}
	return DatasetType, nil
}
