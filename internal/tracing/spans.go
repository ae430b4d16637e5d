package tracing

// Span attribute keys for dispatch tracing.
const (
	AttrDataframeType = "dataset.dataframe_type"
	AttrProtocol      = "dataset.protocol"
	AttrFormat        = "dataset.format"
	AttrURI           = "dataset.uri"
	AttrHandlerKind   = "dataset.handler_kind"
	AttrResultKind    = "dataset.result_kind"

	AttrErrorMessage = "error.message"
	AttrErrorType    = "error.type"
)

// Span names.
const (
	SpanDispatchEncode = "dispatch.encode"
	SpanDispatchDecode = "dispatch.decode"
)

// Event names recorded on dispatch spans.
const (
	EventHandlerResolved = "handler.resolved"
	EventHandlerInvoked  = "handler.invoked"
)
