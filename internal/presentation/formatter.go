package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/zjrosen/structds/internal/frame"
	"github.com/zjrosen/structds/internal/literal"
)

// maxCellWidth bounds frame preview cells; longer values are truncated.
const maxCellWidth = 40

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	defaultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	deletedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	cellStyle    = lipgloss.NewStyle().PaddingRight(2)
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
	json   bool
}

// NewFormatter creates a new formatter. With asJSON set every method writes
// indented JSON instead of a styled table.
func NewFormatter(writer io.Writer, asJSON bool) *Formatter {
	return &Formatter{
		writer: writer,
		json:   asJSON,
	}
}

func (f *Formatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatEntries formats the registered handlers.
func (f *Formatter) FormatEntries(entries []EntryDTO) error {
	if f.json {
		return f.encode(entries)
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(f.writer, mutedStyle.Render("no handlers registered"))
		return err
	}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		format := e.Format
		if format == "" {
			format = "*"
		}
		def := ""
		if e.Default {
			def = defaultStyle.Render("default")
		}
		rows[i] = []string{e.Type, e.Protocol, format, e.Kind, def}
	}
	return f.table([]string{"TYPE", "PROTOCOL", "FORMAT", "KIND", ""}, rows)
}

// FormatFrame formats a frame preview.
func (f *Formatter) FormatFrame(dto FrameDTO) error {
	if f.json {
		return f.encode(dto)
	}
	header := make([]string, len(dto.Columns))
	for i, c := range dto.Columns {
		header[i] = c.Name + ":" + c.Type
	}
	rows := make([][]string, len(dto.Rows))
	for i, r := range dto.Rows {
		rows[i] = make([]string, len(r))
		for j, v := range r {
			if v == nil {
				rows[i][j] = mutedStyle.Render("null")
				continue
			}
			rows[i][j] = runewidth.Truncate(frame.FormatValue(v), maxCellWidth, "…")
		}
	}
	if dto.Chunk > 0 {
		if _, err := fmt.Fprintln(f.writer, mutedStyle.Render(fmt.Sprintf("chunk %d", dto.Chunk))); err != nil {
			return err
		}
	}
	if err := f.table(header, rows); err != nil {
		return err
	}
	if len(dto.Rows) < dto.TotalRows {
		_, err := fmt.Fprintln(f.writer, mutedStyle.Render(fmt.Sprintf("... %d more rows", dto.TotalRows-len(dto.Rows))))
		return err
	}
	return nil
}

// FormatLiteral writes a literal as YAML, or JSON in JSON mode.
func (f *Formatter) FormatLiteral(l *literal.Literal) error {
	if f.json {
		return f.encode(l)
	}
	data, err := literal.Marshal(l)
	if err != nil {
		return err
	}
	_, err = f.writer.Write(data)
	return err
}

// FormatLiteralType writes a literal type descriptor.
func (f *Formatter) FormatLiteralType(t literal.LiteralType) error {
	if f.json {
		return f.encode(t)
	}
	if t.StructuredDataset == nil || len(t.StructuredDataset.Columns) == 0 {
		_, err := fmt.Fprintln(f.writer, headerStyle.Render("structured_dataset_type")+" "+mutedStyle.Render("(any columns)"))
		return err
	}
	rows := make([][]string, len(t.StructuredDataset.Columns))
	for i, c := range t.StructuredDataset.Columns {
		rows[i] = []string{c.Name, c.Type}
	}
	return f.table([]string{"COLUMN", "TYPE"}, rows)
}

// FormatEvent writes one dispatch event as a single line.
func (f *Formatter) FormatEvent(ev EventDTO) error {
	if f.json {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(f.writer, "%s\n", data)
		return err
	}
	status := defaultStyle.Render(ev.Result)
	if ev.Error != "" {
		status = errorStyle.Render(ev.Error)
	}
	_, err := fmt.Fprintf(f.writer, "%s %s %s://%s %s %s\n",
		headerStyle.Render(ev.Op), ev.Type, ev.Protocol, ev.Format, status,
		mutedStyle.Render(fmt.Sprintf("%dms", ev.DurationMS)))
	return err
}

// FormatError writes a command failure.
func (f *Formatter) FormatError(dto ErrorDTO) error {
	if f.json {
		return f.encode(dto)
	}
	_, err := fmt.Fprintln(f.writer, errorStyle.Render("error: "+dto.Error))
	return err
}

// FormatDiff writes a line diff; equal lines are dimmed.
func (f *Formatter) FormatDiff(lines []DiffLine) error {
	if f.json {
		return f.encode(lines)
	}
	var b strings.Builder
	for _, l := range lines {
		switch l.Op {
		case DiffAdded:
			b.WriteString(addedStyle.Render("+ " + l.Text))
		case DiffDeleted:
			b.WriteString(deletedStyle.Render("- " + l.Text))
		default:
			b.WriteString(mutedStyle.Render("  " + l.Text))
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(f.writer, b.String())
	return err
}

// table renders left-aligned columns sized to the widest cell.
func (f *Formatter) table(header []string, rows [][]string) error {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, c := range r {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(c))
			}
		}
	}

	var b strings.Builder
	line := func(cells []string, style *lipgloss.Style) {
		parts := make([]string, len(cells))
		for i, c := range cells {
			if style != nil {
				c = style.Render(c)
			}
			parts[i] = cellStyle.Width(widths[i] + 2).Render(c)
		}
		b.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, parts...), " "))
		b.WriteByte('\n')
	}
	line(header, &headerStyle)
	for _, r := range rows {
		line(r, nil)
	}
	_, err := io.WriteString(f.writer, b.String())
	return err
}
