package presentation

import (
	"errors"

	"github.com/zjrosen/structds/internal/frame"
	"github.com/zjrosen/structds/internal/structured"
)

// EntryDTO represents one registered handler for presentation
type EntryDTO struct {
	Type     string `json:"type"`
	Protocol string `json:"protocol"`
	Format   string `json:"format"` // "" is the wildcard format
	Kind     string `json:"kind"`
	Default  bool   `json:"default"`
}

// FromEntry converts a registry entry to a DTO
func FromEntry(e structured.Entry) EntryDTO {
	return EntryDTO{
		Type:     structured.TypeName(e.Key.Type),
		Protocol: e.Key.Protocol,
		Format:   e.Key.Format,
		Kind:     e.Kind.String(),
		Default:  e.IsDefault,
	}
}

// FromEntries converts registry entries to DTOs, keeping their order
func FromEntries(entries []structured.Entry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = FromEntry(e)
	}
	return dtos
}

// ColumnDTO is a (name, type) pair.
type ColumnDTO struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// FrameDTO is a frame preview. Rows holds at most the requested limit.
type FrameDTO struct {
	Columns   []ColumnDTO `json:"columns"`
	Rows      [][]any     `json:"rows"`
	TotalRows int         `json:"total_rows"`
	Chunk     int         `json:"chunk,omitempty"` // 1-based index when decoded as a stream
}

// FromFrame previews up to limit rows of f. limit <= 0 keeps every row.
func FromFrame(f *frame.Frame, limit int) FrameDTO {
	cols := f.Columns()
	dto := FrameDTO{
		Columns:   make([]ColumnDTO, len(cols)),
		TotalRows: f.NumRows(),
	}
	for i, c := range cols {
		dto.Columns[i] = ColumnDTO{Name: c.Name, Type: string(c.Type)}
	}
	n := f.NumRows()
	if limit > 0 && limit < n {
		n = limit
	}
	dto.Rows = make([][]any, n)
	for i := range n {
		dto.Rows[i] = f.Row(i)
	}
	return dto
}

// EventDTO represents a completed dispatch.
type EventDTO struct {
	Op         string `json:"op"`
	Type       string `json:"type"`
	Protocol   string `json:"protocol"`
	Format     string `json:"format"`
	URI        string `json:"uri,omitempty"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// FromEvent converts a dispatch event to a DTO
func FromEvent(ev structured.Event) EventDTO {
	dto := EventDTO{
		Op:         ev.Op,
		Type:       structured.TypeName(ev.Key.Type),
		Protocol:   ev.Key.Protocol,
		Format:     ev.Key.Format,
		URI:        ev.URI,
		DurationMS: ev.Duration.Milliseconds(),
	}
	if ev.Err != nil {
		dto.Error = ev.Err.Error()
	} else {
		dto.Result = ev.Result.String()
	}
	return dto
}

// ErrorDTO is the JSON shape of a failed command.
type ErrorDTO struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Level string `json:"level,omitempty"`
}

// FromError classifies err by the structured error kinds.
func FromError(err error) ErrorDTO {
	dto := ErrorDTO{Error: err.Error()}
	var (
		notFound  *structured.HandlerNotFoundError
		duplicate *structured.DuplicateHandlerError
		mismatch  *structured.TypeMismatchError
	)
	switch {
	case errors.As(err, &notFound):
		dto.Kind = "handler_not_found"
		dto.Level = notFound.Level.String()
	case errors.As(err, &duplicate):
		dto.Kind = "duplicate_handler"
	case errors.As(err, &mismatch):
		dto.Kind = "type_mismatch"
	case errors.Is(err, structured.ErrUnrecognizedScheme):
		dto.Kind = "unrecognized_scheme"
	case errors.Is(err, structured.ErrEmptyDataset):
		dto.Kind = "empty_dataset"
	}
	return dto
}
