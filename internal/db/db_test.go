package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenForTesting(t *testing.T) {
	db, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	var tableName string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='identifications'").Scan(&tableName)
	require.NoError(t, err)
	assert.Equal(t, "identifications", tableName)
}

func TestOpenForTestingIsolated(t *testing.T) {
	a, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	b, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, err = a.Exec(`INSERT INTO identifications (session_id, outcome) VALUES ('s', 'failed')`)
	require.NoError(t, err)

	var n int
	require.NoError(t, b.QueryRow(`SELECT COUNT(*) FROM identifications`).Scan(&n))
	assert.Zero(t, n)
}

func TestOpenFileRerunsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plantid.db")

	first, err := Open(path)
	require.NoError(t, err)
	_, err = first.Exec(`INSERT INTO identifications (session_id, outcome) VALUES ('s', 'identified')`)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err, "reopening must treat applied migrations as no change")
	t.Cleanup(func() { _ = second.Close() })

	var n int
	require.NoError(t, second.QueryRow(`SELECT COUNT(*) FROM identifications`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOutcomeConstraint(t *testing.T) {
	db, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`INSERT INTO identifications (session_id, outcome) VALUES ('s', 'maybe')`)
	assert.Error(t, err)
}
