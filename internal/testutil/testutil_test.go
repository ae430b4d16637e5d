package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTestDB_CreatesSchema(t *testing.T) {
	db, path := NewTestDB(t)
	require.FileExists(t, path)

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='people'`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestBuilder_InsertMatchesFrame(t *testing.T) {
	db, _ := NewTestDB(t)
	b := NewBuilder(t).WithStandardPeople().Insert(db)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM people`).Scan(&count))

	f := b.Frame()
	require.Equal(t, f.NumRows(), count)
	require.Equal(t, []any{int64(3), nil, 3.0, nil}, f.Row(2))

	var nullNames int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM people WHERE name IS NULL`).Scan(&nullNames))
	require.Equal(t, 1, nullNames)
}
