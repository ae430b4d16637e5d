package literal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleLiteral() *Literal {
	return NewLiteral(&StructuredDataset{
		URI: "s3://bucket/key.parquet",
		Metadata: &Metadata{
			Format: "parquet",
			Schema: &Schema{Columns: []Column{{Name: "id", Type: "int64"}, {Name: "name", Type: "string"}}},
		},
	})
}

func TestLiteral_StructuredDataset(t *testing.T) {
	sd, err := sampleLiteral().StructuredDataset()
	require.NoError(t, err)
	require.Equal(t, "s3://bucket/key.parquet", sd.URI)
	require.Equal(t, "parquet", sd.Format())
	require.Equal(t, []string{"id", "name"}, sd.Schema().ColumnNames())
}

func TestLiteral_StructuredDataset_Missing(t *testing.T) {
	tests := []struct {
		name string
		lit  *Literal
	}{
		{"nil literal", nil},
		{"no scalar", &Literal{}},
		{"empty scalar", &Literal{Scalar: &Scalar{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.lit.StructuredDataset()
			require.ErrorIs(t, err, ErrNotStructuredDataset)
		})
	}
}

func TestStructuredDataset_NilMetadata(t *testing.T) {
	sd := &StructuredDataset{URI: "/tmp/x"}
	require.Equal(t, "", sd.Format())
	require.Nil(t, sd.Schema())
}

func TestMetadata_CloneIsDeep(t *testing.T) {
	m := sampleLiteral().Scalar.StructuredDataset.Metadata
	c := m.Clone()
	c.Schema.Columns[0].Name = "changed"
	require.Equal(t, "id", m.Schema.Columns[0].Name)
	require.Nil(t, (*Metadata)(nil).Clone())
}

func TestWriteFileReadFile_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"lit.yaml", "lit.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "nested", name)
			require.NoError(t, WriteFile(path, sampleLiteral()))

			got, err := ReadFile(path)
			require.NoError(t, err)
			require.Equal(t, sampleLiteral(), got)
		})
	}
}

func TestUnmarshal_RejectsMissingURI(t *testing.T) {
	_, err := Unmarshal([]byte("scalar:\n  structured_dataset:\n    metadata:\n      format: csv\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no uri")

	_, err = Unmarshal([]byte("scalar: {}\n"))
	require.ErrorIs(t, err, ErrNotStructuredDataset)
}

func TestLiteralType_IsStructuredDataset(t *testing.T) {
	require.False(t, LiteralType{}.IsStructuredDataset())
	require.True(t, LiteralType{StructuredDataset: &Schema{}}.IsStructuredDataset())
}
