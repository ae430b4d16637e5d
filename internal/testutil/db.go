// Package testutil provides fixtures shared by handler and CLI tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/require"
)

// Schema creates a table written by some other tool: declared SQL types
// only, no structds catalog.
const Schema = `
CREATE TABLE people (
	id INTEGER PRIMARY KEY,
	name TEXT,
	score REAL,
	active BOOLEAN
);
`

// NewTestDB creates a file-backed SQLite database with Schema applied and
// returns it with its path. The database is closed when the test ends.
func NewTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(Schema)
	require.NoError(t, err)
	return db, path
}
