package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/structds/internal/frame"
	"github.com/zjrosen/structds/internal/handlers/csv"
	"github.com/zjrosen/structds/internal/literal"
	"github.com/zjrosen/structds/internal/presentation"
	"github.com/zjrosen/structds/internal/structured"
)

var errRoundTripChanged = errors.New("round trip changed the dataset")

var (
	encodeURI    string
	encodeFormat string
	encodeOut    string

	decodeColumns []string
)

var literalTypeCmd = &cobra.Command{
	Use:   "literal:type [type]",
	Short: "Print the literal type of a dataframe type",
	Long: `Print the structured-dataset literal type a task interface would declare
for a dataframe type. The column list is always empty, meaning "any columns".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := frame.Type.String()
		if len(args) == 1 {
			name = args[0]
		}
		t, err := current.resolveType(name)
		if err != nil {
			return err
		}
		return formatter(cmd).FormatLiteralType(current.engine.LiteralType(t))
	},
}

var datasetEncodeCmd = &cobra.Command{
	Use:   "dataset:encode <file.csv>",
	Short: "Encode a CSV file into a structured dataset literal",
	Long: `Read a CSV file with a "name:type" header, encode it through the registry
and print the resulting literal.

Without --uri the type's default protocol picks a location. Without --format
the type's default format is used.

Examples:
  structds dataset:encode people.csv
  structds dataset:encode people.csv --uri mem://scratch/people --format csv
  structds dataset:encode people.csv --uri 'sqlite:///tmp/people.db?table=people' -o people.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := readCSVFile(args[0])
		if err != nil {
			return err
		}
		lit, err := encodeFrame(cmd.Context(), f, encodeURI, encodeFormat)
		if err != nil {
			return err
		}
		if encodeOut != "" {
			if err := literal.WriteFile(encodeOut, lit); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), encodeOut)
			return err
		}
		return formatter(cmd).FormatLiteral(lit)
	},
}

var datasetDecodeCmd = &cobra.Command{
	Use:   "dataset:decode <literal.yaml>",
	Short: "Decode a structured dataset literal and print it as CSV",
	Long: `Decode the dataset a literal file points at into a frame and print it as
CSV (or JSON with --json).

--stream makes the decoder return chunks, which are printed as they arrive.
--columns asks the decoder for a subset of columns.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lit, err := literal.ReadFile(args[0])
		if err != nil {
			return err
		}
		if len(decodeColumns) > 0 {
			project(lit, decodeColumns)
		}
		res, err := current.engine.ToFrame(cmd.Context(), lit, frame.Type)
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), res)
	},
}

var datasetRoundTripCmd = &cobra.Command{
	Use:   "dataset:roundtrip <file.csv>",
	Short: "Encode then decode a CSV file and diff the result",
	Long: `Encode a CSV file, decode the literal back and compare both frames as CSV
text. The schema recorded in the literal must also describe the source frame.
Exits non-zero and prints a line diff when they differ.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		before, err := readCSVFile(args[0])
		if err != nil {
			return err
		}
		lit, err := encodeFrame(cmd.Context(), before, encodeURI, encodeFormat)
		if err != nil {
			return err
		}
		res, err := current.engine.ToFrame(cmd.Context(), lit, frame.Type)
		if err != nil {
			return err
		}
		after, err := collectFrame(res)
		if err != nil {
			return err
		}

		lines, err := diffFrames(before, after)
		if err != nil {
			return err
		}
		sd, _ := lit.StructuredDataset()
		if err := checkLiteralSchema(sd, before); err != nil {
			return err
		}
		if !presentation.Changed(lines) {
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok %s (%s, %d rows)\n", sd.URI, sd.Format(), after.NumRows())
			return err
		}
		if err := formatter(cmd).FormatDiff(lines); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", errRoundTripChanged, sd.URI)
	},
}

func init() {
	for _, c := range []*cobra.Command{datasetEncodeCmd, datasetRoundTripCmd} {
		c.Flags().StringVar(&encodeURI, "uri", "", "target URI (default: generated by the default protocol)")
		c.Flags().StringVar(&encodeFormat, "format", "", "storage format (default: the type's default format)")
	}
	datasetEncodeCmd.Flags().StringVarP(&encodeOut, "out", "o", "", "write the literal to a file (.json or .yaml)")
	datasetDecodeCmd.Flags().Bool("stream", false, "decode as a stream of chunks")
	datasetDecodeCmd.Flags().StringSliceVar(&decodeColumns, "columns", nil, "decode only these columns")

	rootCmd.AddCommand(literalTypeCmd)
	rootCmd.AddCommand(datasetEncodeCmd)
	rootCmd.AddCommand(datasetDecodeCmd)
	rootCmd.AddCommand(datasetRoundTripCmd)
}

func readCSVFile(path string) (*frame.Frame, error) {
	file, err := os.Open(path) //nolint:gosec // G304: user-supplied input file
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()
	f, err := csv.Read(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return f, nil
}

// encodeFrame encodes f as a bare frame, or as a wrapped dataset when a URI
// or format is given.
func encodeFrame(ctx context.Context, f *frame.Frame, uri, format string) (*literal.Literal, error) {
	in := structured.Bare(f)
	if uri != "" || format != "" {
		in = structured.Wrapped(structured.NewDataset(f,
			structured.WithURI(uri),
			structured.WithFormat(format),
		))
	}
	return current.engine.ToLiteral(ctx, in, current.engine.LiteralType(frame.Type))
}

// project narrows the literal schema so decoders read only names.
func project(lit *literal.Literal, names []string) {
	sd, err := lit.StructuredDataset()
	if err != nil {
		return
	}
	if sd.Metadata == nil {
		sd.Metadata = &literal.Metadata{}
	}
	cols := make([]literal.Column, len(names))
	for i, n := range names {
		cols[i] = literal.Column{Name: strings.TrimSpace(n)}
	}
	sd.Metadata.Schema = &literal.Schema{Columns: cols, Format: sd.Metadata.Format}
}

func writeResult(w io.Writer, res structured.Result) error {
	out := presentation.NewFormatter(w, jsonOut)
	i := 0
	for v, err := range res.Chunks() {
		if err != nil {
			return err
		}
		f, ok := v.(*frame.Frame)
		if !ok {
			return &structured.TypeMismatchError{Expected: frame.Type.String(), Actual: fmt.Sprintf("%T", v)}
		}
		i++
		if jsonOut {
			dto := presentation.FromFrame(f, 0)
			if res.IsStream() {
				dto.Chunk = i
			}
			if err := out.FormatFrame(dto); err != nil {
				return err
			}
			continue
		}
		if err := writeCSV(w, f, i > 1); err != nil {
			return err
		}
	}
	return nil
}

// writeCSV renders f, dropping the header line for follow-up chunks.
func writeCSV(w io.Writer, f *frame.Frame, skipHeader bool) error {
	var buf bytes.Buffer
	if err := csv.Write(&buf, f); err != nil {
		return err
	}
	data := buf.Bytes()
	if skipHeader {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			data = data[i+1:]
		}
	}
	_, err := w.Write(data)
	return err
}

func collectFrame(res structured.Result) (*frame.Frame, error) {
	if !res.IsStream() {
		return structured.As[*frame.Frame](res)
	}
	chunks, err := structured.Collect[*frame.Frame](res)
	if err != nil {
		return nil, err
	}
	return frame.Concat(chunks...)
}

// checkLiteralSchema verifies the schema the encoder recorded describes f.
func checkLiteralSchema(sd *literal.StructuredDataset, f *frame.Frame) error {
	schema := sd.Schema()
	if schema == nil || len(schema.Columns) == 0 {
		return nil
	}
	cols, err := frame.FromLiteralColumns(schema.Columns)
	if err != nil {
		return fmt.Errorf("literal schema: %w", err)
	}
	if !slices.Equal(cols, f.Columns()) {
		return fmt.Errorf("%w: literal schema %v does not match frame %v", errRoundTripChanged, schema.ColumnNames(), f.Columns())
	}
	return nil
}

// diffFrames compares schemas first; content is only diffed when they agree.
func diffFrames(before, after *frame.Frame) ([]presentation.DiffLine, error) {
	if lines := presentation.Diff(before.SchemaString(), after.SchemaString()); presentation.Changed(lines) {
		return lines, nil
	}
	var a, b bytes.Buffer
	if err := csv.Write(&a, before); err != nil {
		return nil, err
	}
	if err := csv.Write(&b, after); err != nil {
		return nil, err
	}
	return presentation.Diff(a.String(), b.String()), nil
}
