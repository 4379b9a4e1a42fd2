package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of schema migrations for local sqlite
// stores. MySQL and Postgres tables are managed outside burstkit.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "annotations table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS annotations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created DATETIME NOT NULL,
    user TEXT NOT NULL,
    label TEXT NOT NULL,
    time DATETIME NOT NULL,
    public INTEGER NOT NULL DEFAULT 0,
    corpus TEXT NOT NULL,
    series TEXT,
    value REAL
);

CREATE INDEX IF NOT EXISTS idx_annotations_series ON annotations(series);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "annotation enabled flag",
		Up: func(tx *sql.Tx) error {
			exists, err := annotationsColumn(tx, "enabled")
			if err != nil || exists {
				return err
			}
			_, err = tx.Exec(`ALTER TABLE annotations ADD COLUMN enabled INTEGER NOT NULL DEFAULT 1`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
