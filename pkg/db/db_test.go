package db_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docentgo/pkg/db"
)

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "db_test.db")

	d, err := db.Init(path)
	require.NoError(t, err)
	defer d.Close()

	for _, table := range []string{"persistent_state", "cache", "video_overrides", "prize_submissions"} {
		var name string
		err := d.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, table)
	}

	// Migrations are idempotent.
	d.Close()
	d, err = db.Init(path)
	require.NoError(t, err)
	d.Close()
}

func TestPruneCache(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "prune.db"))
	require.NoError(t, err)
	defer d.Close()

	old := time.Now().Add(-48 * time.Hour).UTC().Format(db.TimeLayout)
	fresh := time.Now().UTC().Format(db.TimeLayout)
	_, err = d.Exec("INSERT INTO cache (key, value, created_at) VALUES (?, ?, ?), (?, ?, ?)",
		"old", []byte("x"), old, "fresh", []byte("y"), fresh)
	require.NoError(t, err)

	n, err := d.PruneCache(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var count int
	require.NoError(t, d.QueryRow("SELECT count(*) FROM cache").Scan(&count))
	assert.Equal(t, 1, count)
}
