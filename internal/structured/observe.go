package structured

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/structds/internal/log"
	"github.com/zjrosen/structds/internal/pubsub"
	"github.com/zjrosen/structds/internal/tracing"
)

// Dispatch operations reported in Event.Op.
const (
	OpEncode = "encode"
	OpDecode = "decode"
)

// Event describes one completed dispatch. Published when the engine has an
// events publisher.
type Event struct {
	Op       string
	Key      Key
	URI      string
	Result   ResultKind
	Err      error
	Duration time.Duration
}

// dispatch tracks one encode or decode call for tracing, logging and events.
type dispatch struct {
	op    string
	kind  HandlerKind
	key   Key
	uri   string
	start time.Time
	span  trace.Span
}

func (e *Engine) begin(ctx context.Context, op string, key Key, uri string) (context.Context, *dispatch) {
	name := tracing.SpanDispatchEncode
	kind := KindEncoder
	if op == OpDecode {
		name = tracing.SpanDispatchDecode
		kind = KindDecoder
	}
	ctx, span := e.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(tracing.AttrDataframeType, TypeName(key.Type)),
			attribute.String(tracing.AttrProtocol, key.Protocol),
			attribute.String(tracing.AttrFormat, key.Format),
			attribute.String(tracing.AttrURI, uri),
			attribute.String(tracing.AttrHandlerKind, kind.String()),
		),
	)
	return ctx, &dispatch{op: op, kind: kind, key: key, uri: uri, start: time.Now(), span: span}
}

func (d *dispatch) resolved(h Handler) {
	d.span.AddEvent(tracing.EventHandlerResolved, trace.WithAttributes(
		attribute.String(tracing.AttrFormat, h.SupportedFormat()),
	))
}

func (d *dispatch) invoked() {
	d.span.AddEvent(tracing.EventHandlerInvoked)
}

func (e *Engine) end(d *dispatch, rk ResultKind, err error) {
	defer d.span.End()
	elapsed := time.Since(d.start)

	if err != nil {
		d.span.RecordError(err)
		d.span.SetAttributes(
			attribute.String(tracing.AttrErrorMessage, err.Error()),
			attribute.String(tracing.AttrErrorType, fmt.Sprintf("%T", err)),
		)
		d.span.SetStatus(codes.Error, err.Error())
		log.ErrorErr(log.CatDispatch, "Dispatch failed", err, "op", d.op, "key", d.key.String(), "uri", d.uri)
	} else {
		d.span.SetAttributes(attribute.String(tracing.AttrResultKind, rk.String()))
		d.span.SetStatus(codes.Ok, "")
		log.Debug(log.CatDispatch, "Dispatch completed", "op", d.op, "key", d.key.String(), "uri", d.uri, "duration", elapsed)
	}

	if e.events == nil {
		return
	}
	evType := pubsub.EncodedEvent
	switch {
	case err != nil:
		evType = pubsub.FailedEvent
	case d.op == OpDecode:
		evType = pubsub.DecodedEvent
	}
	e.events.Publish(evType, Event{
		Op:       d.op,
		Key:      d.key,
		URI:      d.uri,
		Result:   rk,
		Err:      err,
		Duration: elapsed,
	})
}
