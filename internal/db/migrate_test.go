package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertGoal(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO goals (id, title, created_at, updated_at)
		VALUES (?, 'Read', '2023-05-01T00:00:00Z', '2023-05-01T00:00:00Z')`, id)
	require.NoError(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	// Running migrations a second time is a no-op.
	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))
}

func TestMigrate_CreatesTablesAndIndexes(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []string{"goals", "occurrences"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
	for _, idx := range []string{"idx_occurrences_goal_date", "idx_occurrences_date", "ux_occurrences_generated_date"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='index' AND name=?`, idx).Scan(&name)
		require.NoError(t, err, "index %s should exist", idx)
	}
}

func TestMigrate_ForeignKeysEnabled(t *testing.T) {
	db := openTestDB(t)

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk, "foreign keys should be enabled")
}

func TestMigrate_GeneratedDatesUniquePerGoal(t *testing.T) {
	db := openTestDB(t)
	insertGoal(t, db, "g1")

	insert := func(id, origin string) error {
		_, err := db.Exec(`INSERT INTO occurrences (id, goal_id, date, original_date, origin, created_at, updated_at)
			VALUES (?, 'g1', '2023-05-01', '2023-05-01', ?, '2023-05-01T00:00:00Z', '2023-05-01T00:00:00Z')`, id, origin)
		return err
	}
	require.NoError(t, insert("o1", "generated"))
	assert.Error(t, insert("o2", "generated"), "second generated row on the same date must be rejected")
	assert.NoError(t, insert("o3", "exception"), "an exception may share the date")
	assert.Error(t, insert("o4", "bogus"), "origin CHECK constraint")
}

func TestMigrate_CascadeDeletesOccurrences(t *testing.T) {
	db := openTestDB(t)
	insertGoal(t, db, "g1")
	_, err := db.Exec(`INSERT INTO occurrences (id, goal_id, date, original_date, created_at, updated_at)
		VALUES ('o1', 'g1', '2023-05-01', '2023-05-01', '2023-05-01T00:00:00Z', '2023-05-01T00:00:00Z')`)
	require.NoError(t, err)

	_, err = db.Exec(`DELETE FROM goals WHERE id = 'g1'`)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM occurrences`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestMigrate_OccurrenceColumns(t *testing.T) {
	db := openTestDB(t)

	rows, err := db.Query(`SELECT name, "notnull" FROM pragma_table_info('occurrences')`)
	require.NoError(t, err)
	defer rows.Close()
	notNull := map[string]bool{}
	for rows.Next() {
		var name string
		var nn int
		require.NoError(t, rows.Scan(&name, &nn))
		notNull[name] = nn == 1
	}
	require.NoError(t, rows.Err())

	assert.Len(t, notNull, 10)
	assert.True(t, notNull["original_date"])
	assert.True(t, notNull["skipped"])
	assert.False(t, notNull["notes"])

	// A row without an original slot is rejected.
	insertGoal(t, db, "g1")
	_, err = db.Exec(`INSERT INTO occurrences (id, goal_id, date, created_at, updated_at)
		VALUES ('o1', 'g1', '2023-05-01', '2023-05-01T00:00:00Z', '2023-05-01T00:00:00Z')`)
	assert.Error(t, err)
}

func TestOpenDB_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cadence.db")
	db, err := OpenDB(path)
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}
