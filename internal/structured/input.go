package structured

import "reflect"

// InputKind discriminates the dispatch input variants.
type InputKind int

const (
	InputWrapped InputKind = iota
	InputBare
)

// Input is the tagged encode-path input. The variant is chosen by the caller
// with Wrapped, Bare or BareAs and never re-derived from the value.
type Input struct {
	kind     InputKind
	dataset  *Dataset
	value    any
	declared reflect.Type
}

// Wrapped marks ds as a wrapper input.
func Wrapped(ds *Dataset) Input {
	return Input{kind: InputWrapped, dataset: ds}
}

// Bare marks v as a raw dataframe handle; its dataframe type is its runtime type.
func Bare(v any) Input {
	var t reflect.Type
	if v != nil {
		t = reflect.TypeOf(v)
	}
	return Input{kind: InputBare, value: v, declared: t}
}

// BareAs marks v as a raw dataframe handle of declared type t.
func BareAs(t reflect.Type, v any) Input {
	return Input{kind: InputBare, value: v, declared: t}
}

// Kind reports the input variant.
func (in Input) Kind() InputKind { return in.kind }
