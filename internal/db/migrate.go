package db

import (
	"database/sql"
	"fmt"
)

// Migrate runs all schema migrations. Every statement is idempotent, so
// it is safe to call on each open.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS goals (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		rrule       TEXT,
		horizon     TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,

	// original_date is the rule slot an occurrence was generated for; it
	// differs from date once the occurrence is rescheduled. Cancelled
	// occurrences stay as skipped rows so regeneration cannot revive them.
	`CREATE TABLE IF NOT EXISTS occurrences (
		id            TEXT PRIMARY KEY,
		goal_id       TEXT NOT NULL REFERENCES goals(id) ON DELETE CASCADE,
		date          TEXT NOT NULL,
		original_date TEXT NOT NULL,
		completed     INTEGER NOT NULL DEFAULT 0,
		skipped       INTEGER NOT NULL DEFAULT 0,
		notes         TEXT,
		origin        TEXT NOT NULL DEFAULT 'generated'
		              CHECK(origin IN ('generated','exception')),
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_occurrences_goal_date ON occurrences(goal_id, date)`,
	`CREATE INDEX IF NOT EXISTS idx_occurrences_date ON occurrences(date)`,

	// At most one generated row per goal and date.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_occurrences_generated_date
		ON occurrences(goal_id, date) WHERE origin = 'generated'`,
}
