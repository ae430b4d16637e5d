package structured

import (
	"errors"
	"fmt"
	"reflect"
)

// Sentinel errors; the typed errors below match them with errors.Is.
var (
	ErrDuplicateHandler   = errors.New("handler already registered")
	ErrHandlerNotFound    = errors.New("handler not found")
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrInvalidHandler     = errors.New("invalid handler")
	ErrRegistrySealed     = errors.New("registry is sealed")
	ErrEmptyDataset       = errors.New("dataset has neither a dataframe nor a uri")
	ErrUnrecognizedScheme = errors.New("uri has no recognizable scheme")
	ErrStreamConsumed     = errors.New("stream already consumed")
)

// HandlerKind distinguishes the encoder and decoder tables.
type HandlerKind int

const (
	KindEncoder HandlerKind = iota
	KindDecoder
)

func (k HandlerKind) String() string {
	switch k {
	case KindEncoder:
		return "encoder"
	case KindDecoder:
		return "decoder"
	default:
		return "unknown"
	}
}

// Level names the registry key level at which a lookup failed.
type Level int

const (
	LevelType Level = iota
	LevelProtocol
	LevelFormat
)

func (l Level) String() string {
	switch l {
	case LevelType:
		return "type"
	case LevelProtocol:
		return "protocol"
	case LevelFormat:
		return "format"
	default:
		return "unknown"
	}
}

// Key is the (dataframe type, protocol, format) registry key.
type Key struct {
	Type     reflect.Type
	Protocol string
	Format   string
}

func (k Key) String() string {
	return fmt.Sprintf("(%s, %q, %q)", TypeName(k.Type), k.Protocol, k.Format)
}

// TypeName renders a dataframe type for messages and listings.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// DuplicateHandlerError reports a registration at an occupied key.
type DuplicateHandlerError struct {
	Kind HandlerKind
	Key  Key
}

func (e *DuplicateHandlerError) Error() string {
	return fmt.Sprintf("%s already registered for %s", e.Kind, e.Key)
}

func (e *DuplicateHandlerError) Is(target error) bool {
	return target == ErrDuplicateHandler
}

// HandlerNotFoundError reports a lookup miss. Level is the first key level
// that did not resolve; Key holds the full requested triple.
type HandlerNotFoundError struct {
	Kind  HandlerKind
	Key   Key
	Level Level
}

func (e *HandlerNotFoundError) Error() string {
	switch e.Level {
	case LevelType:
		return fmt.Sprintf("no %s registered for dataframe type %s (requested %s)", e.Kind, TypeName(e.Key.Type), e.Key)
	case LevelProtocol:
		return fmt.Sprintf("no %s registered for protocol %q of dataframe type %s (requested %s)", e.Kind, e.Key.Protocol, TypeName(e.Key.Type), e.Key)
	default:
		return fmt.Sprintf("no %s registered for format %q (requested %s)", e.Kind, e.Key.Format, e.Key)
	}
}

func (e *HandlerNotFoundError) Is(target error) bool {
	return target == ErrHandlerNotFound
}

// TypeMismatchError reports a value whose runtime shape contradicts the
// declared input variant.
type TypeMismatchError struct {
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Actual)
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

func mismatch(expected string, actual any) *TypeMismatchError {
	got := "<nil>"
	if actual != nil {
		got = reflect.TypeOf(actual).String()
	}
	return &TypeMismatchError{Expected: expected, Actual: got}
}
