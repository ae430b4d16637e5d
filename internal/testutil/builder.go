package testutil

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/structds/internal/frame"
)

// PeopleColumns is the frame schema matching the people table.
var PeopleColumns = []frame.Column{
	{Name: "id", Type: frame.Int64},
	{Name: "name", Type: frame.String},
	{Name: "score", Type: frame.Float64},
	{Name: "active", Type: frame.Bool},
}

// Builder accumulates people rows and writes them to a database, a frame, or both.
type Builder struct {
	t      *testing.T
	people []personData
}

// NewBuilder creates an empty builder.
func NewBuilder(t *testing.T) *Builder {
	t.Helper()
	return &Builder{t: t}
}

// WithPerson adds a row. Unset columns are null.
func (b *Builder) WithPerson(id int64, opts ...PersonOption) *Builder {
	p := personData{id: id}
	for _, opt := range opts {
		opt(&p)
	}
	b.people = append(b.people, p)
	return b
}

// Insert writes the rows into the people table of db.
func (b *Builder) Insert(db *sql.DB) *Builder {
	b.t.Helper()
	for _, p := range b.people {
		var active any
		if p.active != nil {
			active = 0
			if *p.active {
				active = 1
			}
		}
		_, err := db.Exec(`INSERT INTO people (id, name, score, active) VALUES (?, ?, ?, ?)`,
			p.id, deref(p.name), deref(p.score), active)
		require.NoError(b.t, err)
	}
	return b
}

// Frame returns the rows as a frame with PeopleColumns.
func (b *Builder) Frame() *frame.Frame {
	b.t.Helper()
	f := frame.MustNew(PeopleColumns...)
	for _, p := range b.people {
		require.NoError(b.t, f.AppendRow(p.id, deref(p.name), deref(p.score), deref(p.active)))
	}
	return f
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
