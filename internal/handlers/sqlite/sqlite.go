// Package sqlite stores *frame.Frame values as tables in SQLite databases.
//
// Column names and logical types are kept in a catalog table next to the
// data so decoding restores the exact schema. Tables created by other tools
// are decoded using their declared SQL column types.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/structds/internal/frame"
	"github.com/zjrosen/structds/internal/literal"
	"github.com/zjrosen/structds/internal/log"
	"github.com/zjrosen/structds/internal/structured"
)

// Format is the tag recorded in literals written by this package. Handlers
// are registered for every format of the sqlite protocol.
const Format = "sqlite"

const catalogTable = "_structds_columns"

const catalogSchema = `
CREATE TABLE IF NOT EXISTS ` + catalogTable + ` (
	table_name TEXT NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	PRIMARY KEY (table_name, position)
)`

// DefaultChunkRows is the streaming chunk size used when none is configured.
const DefaultChunkRows = 1024

// Options configure both directions.
type Options struct {
	// Dir holds the database used for generated URIs.
	Dir string
	// Database is the file name inside Dir, "structds.db" when empty.
	Database  string
	ChunkRows int
	Stream    bool
}

func (o Options) database() string {
	name := o.Database
	if name == "" {
		name = "structds.db"
	}
	return filepath.Join(o.Dir, name)
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	return db, nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func sqlType(t frame.ColumnType) string {
	switch t {
	case frame.Int64:
		return "INTEGER"
	case frame.Float64:
		return "REAL"
	case frame.Bool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// columnTypeOf maps a declared SQL type to a frame type using SQLite's
// affinity rules.
func columnTypeOf(declared string) frame.ColumnType {
	d := strings.ToUpper(declared)
	switch {
	case strings.Contains(d, "BOOL"):
		return frame.Bool
	case strings.Contains(d, "INT"):
		return frame.Int64
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"):
		return frame.Float64
	default:
		return frame.String
	}
}

// Encoder writes frames as SQLite tables. It binds the wildcard format.
type Encoder struct {
	structured.Binding
	opts Options
}

// NewEncoder creates the sqlite encoder.
func NewEncoder(opts Options) *Encoder {
	return &Encoder{Binding: structured.Bind(frame.Type, Protocol, ""), opts: opts}
}

func (e *Encoder) Encode(ctx context.Context, ds *structured.Dataset) (*literal.StructuredDataset, error) {
	f, ok := ds.Dataframe().(*frame.Frame)
	if !ok {
		return nil, &structured.TypeMismatchError{Expected: frame.Type.String(), Actual: fmt.Sprintf("%T", ds.Dataframe())}
	}
	if f.NumCols() == 0 {
		return nil, fmt.Errorf("sqlite: frame has no columns")
	}

	loc := Location{Path: e.opts.database(), Table: "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")}
	if ds.URI() != "" {
		var err error
		if loc, err = ParseURI(ds.URI()); err != nil {
			return nil, err
		}
	}

	db, err := open(loc.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	if err := writeTable(ctx, db, loc.Table, f); err != nil {
		return nil, fmt.Errorf("sqlite: write %s: %w", loc.URI(), err)
	}
	log.Debug(log.CatHandler, "Encoded sqlite table", "uri", loc.URI(), "rows", f.NumRows())

	return &literal.StructuredDataset{
		URI:      loc.URI(),
		Metadata: &literal.Metadata{Format: Format, Schema: &literal.Schema{Columns: f.LiteralColumns()}},
	}, nil
}

func writeTable(ctx context.Context, db *sql.DB, table string, f *frame.Frame) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, catalogSchema); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+quote(table)); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM `+catalogTable+` WHERE table_name = ?`, table); err != nil {
		return err
	}

	cols := f.Columns()
	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = quote(c.Name) + " " + sqlType(c.Type)
		names[i] = quote(c.Name)
		marks[i] = "?"
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO `+catalogTable+` (table_name, position, name, type) VALUES (?, ?, ?, ?)`,
			table, i, c.Name, string(c.Type)); err != nil {
			return err
		}
	}
	//nolint:gosec // G202: identifiers are quoted, values are bound
	if _, err = tx.ExecContext(ctx, `CREATE TABLE `+quote(table)+` (`+strings.Join(defs, ", ")+`)`); err != nil {
		return err
	}

	//nolint:gosec // G202: identifiers are quoted, values are bound
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+quote(table)+` (`+strings.Join(names, ", ")+`) VALUES (`+strings.Join(marks, ", ")+`)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, len(cols))
	for r := range f.NumRows() {
		for c := range args {
			v := f.Value(r, c)
			if b, ok := v.(bool); ok {
				if b {
					v = int64(1)
				} else {
					v = int64(0)
				}
			}
			args[c] = v
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Decoder reads SQLite tables into frames. It binds the wildcard format.
type Decoder struct {
	structured.Binding
	opts Options
}

// NewDecoder creates the sqlite decoder.
func NewDecoder(opts Options) *Decoder {
	return &Decoder{Binding: structured.Bind(frame.Type, Protocol, ""), opts: opts}
}

func (d *Decoder) Decode(ctx context.Context, sd *literal.StructuredDataset) (structured.Result, error) {
	loc, err := ParseURI(sd.URI)
	if err != nil {
		return structured.Result{}, err
	}
	db, err := open(loc.Path)
	if err != nil {
		return structured.Result{}, err
	}
	cols, err := tableColumns(ctx, db, loc.Table)
	if err == nil {
		cols, err = project(cols, sd.Schema().ColumnNames())
	}
	if err != nil {
		_ = db.Close()
		return structured.Result{}, err
	}

	if !d.opts.Stream {
		defer func() { _ = db.Close() }()
		var out *frame.Frame
		for chunk, err := range readRows(ctx, db, loc.Table, cols, 0) {
			if err != nil {
				return structured.Result{}, err
			}
			out = chunk
		}
		return structured.Single(out), nil
	}
	_ = db.Close()

	size := d.opts.ChunkRows
	if size <= 0 {
		size = DefaultChunkRows
	}
	return structured.Stream(func(yield func(any, error) bool) {
		db, err := open(loc.Path)
		if err != nil {
			yield(nil, err)
			return
		}
		defer func() { _ = db.Close() }()
		for chunk, err := range readRows(ctx, db, loc.Table, cols, size) {
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}), nil
}

// project narrows cols to names, in the given order. No names keeps every column.
func project(cols []frame.Column, names []string) ([]frame.Column, error) {
	if len(names) == 0 {
		return cols, nil
	}
	out := make([]frame.Column, len(names))
	for i, name := range names {
		found := false
		for _, c := range cols {
			if c.Name == name {
				out[i], found = c, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("sqlite: %w: %q", frame.ErrUnknownColumn, name)
		}
	}
	return out, nil
}

// tableColumns reads the catalog, falling back to the table's declared types.
func tableColumns(ctx context.Context, db *sql.DB, table string) ([]frame.Column, error) {
	var cols []frame.Column
	var hasCatalog int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, catalogTable).Scan(&hasCatalog)
	if err != nil {
		return nil, fmt.Errorf("sqlite: inspect catalog: %w", err)
	}
	if hasCatalog > 0 {
		rows, err := db.QueryContext(ctx, `SELECT name, type FROM `+catalogTable+` WHERE table_name = ? ORDER BY position`, table)
		if err != nil {
			return nil, fmt.Errorf("sqlite: read catalog: %w", err)
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var name, typ string
			if err := rows.Scan(&name, &typ); err != nil {
				return nil, err
			}
			ct := frame.ColumnType(typ)
			if !ct.Valid() {
				return nil, fmt.Errorf("sqlite: catalog column %q: %w: %q", name, frame.ErrUnknownType, typ)
			}
			cols = append(cols, frame.Column{Name: name, Type: ct})
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		if len(cols) > 0 {
			return cols, nil
		}
	}

	rows, err := db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: table info: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var name, declared string
		if err := rows.Scan(&name, &declared); err != nil {
			return nil, err
		}
		cols = append(cols, frame.Column{Name: name, Type: columnTypeOf(declared)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("sqlite: table %q not found", table)
	}
	return cols, nil
}

// readRows yields frames of at most size rows in rowid order; size <= 0
// yields a single frame.
func readRows(ctx context.Context, db *sql.DB, table string, cols []frame.Column, size int) iter.Seq2[*frame.Frame, error] {
	return func(yield func(*frame.Frame, error) bool) {
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = quote(c.Name)
		}
		//nolint:gosec // G202: identifiers are quoted
		rows, err := db.QueryContext(ctx, `SELECT `+strings.Join(names, ", ")+` FROM `+quote(table)+` ORDER BY rowid`)
		if err != nil {
			yield(nil, fmt.Errorf("sqlite: query %s: %w", table, err))
			return
		}
		defer func() { _ = rows.Close() }()

		cur := frame.MustNew(cols...)
		for rows.Next() {
			targets := scanTargets(cols)
			if err := rows.Scan(targets...); err != nil {
				yield(nil, fmt.Errorf("sqlite: scan %s: %w", table, err))
				return
			}
			if err := cur.AppendRow(scanValues(targets)...); err != nil {
				yield(nil, err)
				return
			}
			if size > 0 && cur.NumRows() == size {
				if !yield(cur, nil) {
					return
				}
				cur = frame.MustNew(cols...)
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("sqlite: read %s: %w", table, err))
			return
		}
		if cur.NumRows() > 0 || size <= 0 {
			yield(cur, nil)
		}
	}
}

func scanTargets(cols []frame.Column) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		switch c.Type {
		case frame.Int64:
			out[i] = new(sql.NullInt64)
		case frame.Float64:
			out[i] = new(sql.NullFloat64)
		case frame.Bool:
			out[i] = new(sql.NullBool)
		default:
			out[i] = new(sql.NullString)
		}
	}
	return out
}

func scanValues(targets []any) []any {
	out := make([]any, len(targets))
	for i, t := range targets {
		switch v := t.(type) {
		case *sql.NullInt64:
			if v.Valid {
				out[i] = v.Int64
			}
		case *sql.NullFloat64:
			if v.Valid {
				out[i] = v.Float64
			}
		case *sql.NullBool:
			if v.Valid {
				out[i] = v.Bool
			}
		case *sql.NullString:
			if v.Valid {
				out[i] = v.String
			}
		}
	}
	return out
}
