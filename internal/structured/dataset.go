package structured

import (
	"reflect"
	"slices"

	"github.com/zjrosen/structds/internal/literal"
)

// DefaultFormat is the canonical format reported by a Dataset with no declared format.
const DefaultFormat = "parquet"

// DatasetType is the dataframe-type identity of the wrapper itself.
var DatasetType = reflect.TypeFor[*Dataset]()

// Dataset pairs an optional in-memory dataframe with an optional storage
// location, a declared format and optional metadata. It has no behavior of its
// own; the Engine reads it.
type Dataset struct {
	dataframe any
	dfType    reflect.Type
	uri       string
	format    string
	metadata  *literal.Metadata
}

// DatasetOption configures a Dataset.
type DatasetOption func(*Dataset)

// WithURI sets the storage location.
func WithURI(uri string) DatasetOption {
	return func(d *Dataset) { d.uri = uri }
}

// WithFormat declares the encoding format.
func WithFormat(format string) DatasetOption {
	return func(d *Dataset) { d.format = format }
}

// WithMetadata attaches literal metadata (schema, format hint).
func WithMetadata(m *literal.Metadata) DatasetOption {
	return func(d *Dataset) { d.metadata = m }
}

// WithType records the dataframe type for a dataset that holds no dataframe yet.
func WithType(t reflect.Type) DatasetOption {
	return func(d *Dataset) { d.dfType = t }
}

// NewDataset wraps dataframe, which may be nil for a URI-only dataset.
func NewDataset(dataframe any, opts ...DatasetOption) *Dataset {
	d := &Dataset{dataframe: dataframe}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dataframe returns the in-memory handle, or nil.
func (d *Dataset) Dataframe() any { return d.dataframe }

// URI returns the storage location, or "".
func (d *Dataset) URI() string { return d.uri }

// Metadata returns the attached metadata, or nil.
func (d *Dataset) Metadata() *literal.Metadata { return d.metadata }

// Format returns the declared format, or DefaultFormat when none was declared.
func (d *Dataset) Format() string {
	if d.format == "" {
		return DefaultFormat
	}
	return d.format
}

// DeclaredFormat returns only an explicitly declared format.
func (d *Dataset) DeclaredFormat() string { return d.format }

// Type returns the runtime type of the dataframe, else the recorded type, else nil.
func (d *Dataset) Type() reflect.Type {
	if d.dataframe != nil {
		return reflect.TypeOf(d.dataframe)
	}
	return d.dfType
}

// Columns returns the schema columns from the metadata, if any.
func (d *Dataset) Columns() []literal.Column {
	if d.metadata == nil || d.metadata.Schema == nil {
		return nil
	}
	return slices.Clone(d.metadata.Schema.Columns)
}

// Validate checks that a conversion has something to work with.
func (d *Dataset) Validate() error {
	if d.dataframe == nil && d.uri == "" {
		return ErrEmptyDataset
	}
	return nil
}
