package database

import (
	"database/sql"
	"fmt"
	"log"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

// schemaVersion reads PRAGMA user_version.
func schemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// annotationsColumn reports whether the annotations table has column. A
// missing table has no columns.
func annotationsColumn(q queryer, column string) (bool, error) {
	var n int
	err := q.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info('annotations') WHERE name = ?", column,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking annotations.%s: %w", column, err)
	}
	return n > 0, nil
}

// inferVersion matches an unversioned file against the migrations. Tables
// copied in from a MySQL dump carry no user_version; those with an enabled
// column already match version 2, the rest version 1.
func inferVersion(conn *sql.DB) (int, error) {
	hasID, err := annotationsColumn(conn, "id")
	if err != nil || !hasID {
		return 0, err
	}
	hasEnabled, err := annotationsColumn(conn, "enabled")
	if err != nil {
		return 0, err
	}
	if hasEnabled {
		return 2, nil
	}
	return 1, nil
}

// migrate applies every migration newer than the stored user_version.
func migrate(conn *sql.DB) error {
	current, err := schemaVersion(conn)
	if err != nil {
		return err
	}

	if current == 0 {
		inferred, err := inferVersion(conn)
		if err != nil {
			return err
		}
		if inferred > 0 {
			log.Printf("found unversioned annotations table, stamping as version %d", inferred)
			if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", inferred)); err != nil {
				return fmt.Errorf("stamping version %d: %w", inferred, err)
			}
			current = inferred
		}
	}

	if current >= latestVersion() {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(conn, m); err != nil {
			return err
		}
	}
	return nil
}

func apply(conn *sql.DB, m Migration) error {
	log.Printf("applying migration %d: %s", m.Version, m.Description)

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}

	// modernc/sqlite cannot set user_version inside the transaction. Every
	// migration is idempotent, so a crash before this line just re-runs it.
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("setting version %d: %w", m.Version, err)
	}
	return nil
}
