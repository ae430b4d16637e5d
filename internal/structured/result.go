package structured

import (
	"fmt"
	"iter"
	"reflect"
	"sync/atomic"
)

// ResultKind tells a single materialized value from a chunk stream.
type ResultKind int

const (
	ResultSingle ResultKind = iota
	ResultStream
)

func (k ResultKind) String() string {
	if k == ResultStream {
		return "stream"
	}
	return "single"
}

// Result is what a decoder returns: Single(v) or Stream(chunks).
// A stream may be infinite and is single-pass; ranging over it a second
// time yields ErrStreamConsumed.
type Result struct {
	kind   ResultKind
	value  any
	stream *chunkStream
}

type chunkStream struct {
	seq  iter.Seq2[any, error]
	used atomic.Bool
}

// Single wraps one materialized dataframe.
func Single(v any) Result {
	return Result{kind: ResultSingle, value: v}
}

// Stream wraps a lazy sequence of dataframe chunks.
func Stream(seq iter.Seq2[any, error]) Result {
	return Result{kind: ResultStream, stream: &chunkStream{seq: seq}}
}

// Kind reports which variant r holds.
func (r Result) Kind() ResultKind { return r.kind }

// IsStream reports whether r holds a chunk stream.
func (r Result) IsStream() bool { return r.kind == ResultStream }

// Value returns the single dataframe; ok is false for streams.
func (r Result) Value() (any, bool) {
	if r.kind != ResultSingle {
		return nil, false
	}
	return r.value, true
}

// Chunks iterates the result uniformly: a single value yields once, a stream
// yields each chunk. Iteration stops after the first error.
func (r Result) Chunks() iter.Seq2[any, error] {
	if r.kind == ResultSingle {
		return func(yield func(any, error) bool) {
			yield(r.value, nil)
		}
	}
	s := r.stream
	return func(yield func(any, error) bool) {
		if s == nil || s.seq == nil {
			return
		}
		if !s.used.CompareAndSwap(false, true) {
			yield(nil, ErrStreamConsumed)
			return
		}
		for v, err := range s.seq {
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// As returns the single dataframe typed as T.
func As[T any](r Result) (T, error) {
	var zero T
	want := reflect.TypeFor[T]().String()
	if r.kind != ResultSingle {
		return zero, &TypeMismatchError{Expected: want, Actual: "chunk stream"}
	}
	v, ok := r.value.(T)
	if !ok {
		return zero, mismatch(want, r.value)
	}
	return v, nil
}

// Collect drains r into a slice of T. For a single result the slice has one element.
func Collect[T any](r Result) ([]T, error) {
	want := reflect.TypeFor[T]().String()
	var out []T
	for v, err := range r.Chunks() {
		if err != nil {
			return out, err
		}
		chunk, ok := v.(T)
		if !ok {
			return out, fmt.Errorf("chunk %d: %w", len(out), mismatch(want, v))
		}
		out = append(out, chunk)
	}
	return out, nil
}
