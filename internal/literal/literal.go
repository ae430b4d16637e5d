// Package literal models the portable, storage-referencing value that carries a
// structured dataset across execution-step boundaries.
//
// Only the structured-dataset variant of the literal union is modelled. The
// package owns the in-memory shape and a YAML/JSON file form used by the CLI;
// it does not define any storage format.
package literal

import (
	"errors"
	"slices"
)

// ErrNotStructuredDataset is returned when a literal or literal type does not
// carry the structured-dataset variant.
var ErrNotStructuredDataset = errors.New("literal does not hold a structured dataset")

// Column is a single (name, type) pair of a schema descriptor.
type Column struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// Schema is the structured dataset type: an ordered column list plus an
// optional format hint. An empty column list means "any columns".
type Schema struct {
	Columns []Column `yaml:"columns" json:"columns"`
	Format  string   `yaml:"format,omitempty" json:"format,omitempty"`
}

// Clone returns a deep copy. A nil schema clones to nil.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	return &Schema{Columns: slices.Clone(s.Columns), Format: s.Format}
}

// ColumnNames returns the column names in order.
func (s *Schema) ColumnNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Metadata describes how the bytes behind a URI are encoded.
type Metadata struct {
	Format string  `yaml:"format" json:"format"`
	Schema *Schema `yaml:"schema,omitempty" json:"schema,omitempty"`
}

// Clone returns a deep copy. A nil metadata clones to nil.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	return &Metadata{Format: m.Format, Schema: m.Schema.Clone()}
}

// StructuredDataset is the literal payload: where the data lives and how it is encoded.
type StructuredDataset struct {
	URI      string    `yaml:"uri" json:"uri"`
	Metadata *Metadata `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Format returns the metadata format, or "" when no metadata is attached.
func (sd *StructuredDataset) Format() string {
	if sd == nil || sd.Metadata == nil {
		return ""
	}
	return sd.Metadata.Format
}

// Schema returns the metadata schema, or nil.
func (sd *StructuredDataset) Schema() *Schema {
	if sd == nil || sd.Metadata == nil {
		return nil
	}
	return sd.Metadata.Schema
}

// Scalar is the scalar arm of the literal union.
type Scalar struct {
	StructuredDataset *StructuredDataset `yaml:"structured_dataset,omitempty" json:"structured_dataset,omitempty"`
}

// Literal is the outward-facing value produced by encoding and consumed by decoding.
type Literal struct {
	Scalar *Scalar `yaml:"scalar,omitempty" json:"scalar,omitempty"`
}

// NewLiteral wraps a structured dataset in the literal union.
func NewLiteral(sd *StructuredDataset) *Literal {
	return &Literal{Scalar: &Scalar{StructuredDataset: sd}}
}

// StructuredDataset returns the structured-dataset variant.
func (l *Literal) StructuredDataset() (*StructuredDataset, error) {
	if l == nil || l.Scalar == nil || l.Scalar.StructuredDataset == nil {
		return nil, ErrNotStructuredDataset
	}
	return l.Scalar.StructuredDataset, nil
}

// LiteralType is the type-level descriptor referenced by task interfaces.
type LiteralType struct {
	StructuredDataset *Schema `yaml:"structured_dataset_type,omitempty" json:"structured_dataset_type,omitempty"`
}

// IsStructuredDataset reports whether the type carries the structured-dataset tag.
func (t LiteralType) IsStructuredDataset() bool {
	return t.StructuredDataset != nil
}
