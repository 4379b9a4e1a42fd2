package database

import (
	"context"
	"fmt"
	"log"
)

// ToolUser is stored as the user of every annotation burstkit writes.
const ToolUser = "burstkit"

// ReplaceSeries swaps the stored rows of series for rows. The delete and all
// inserts run in one transaction: a failed insert rolls everything back and
// the previous series stays as it was. Created, User and Series are filled
// in on each row.
func (db *DB) ReplaceSeries(ctx context.Context, series string, rows []Annotation) (*ReplaceResult, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace: %w", err)
	}

	log.Printf("Deleting existing annotations in series %s", series)
	res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM annotations WHERE series = ?"), series)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("deleting series %s: %w", series, err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("counting deleted rows: %w", err)
	}
	log.Printf("Removed %d rows", deleted)

	log.Printf("Inserting %d bursts", len(rows))
	insert := fmt.Sprintf(
		`INSERT INTO annotations (created, %s, label, %s, public, corpus, series, value)
		VALUES (:created, :user, :label, :time, :public, :corpus, :series, :value)`,
		db.quote("user"), db.quote("time"),
	)
	created := db.now().UTC()
	result := &ReplaceResult{Deleted: deleted}
	for i := range rows {
		a := rows[i]
		a.Created = created
		a.User = ToolUser
		a.Series = series
		a.Time = a.Time.UTC()
		if _, err := tx.NamedExecContext(ctx, insert, &a); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("inserting %q at row %d: %w", a.Label, i+1, err)
		}
		result.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace: %w", err)
	}

	log.Println("Checking...")
	count, err := db.CountSeries(ctx, series)
	if err != nil {
		return nil, err
	}
	result.Count = count
	log.Printf("%d annotations in series %s", count, series)
	return result, nil
}

// CountSeries returns how many rows the series holds.
func (db *DB) CountSeries(ctx context.Context, series string) (int, error) {
	var count int
	err := db.conn.GetContext(ctx, &count, db.conn.Rebind("SELECT COUNT(*) FROM annotations WHERE series = ?"), series)
	if err != nil {
		return 0, fmt.Errorf("counting series %s: %w", series, err)
	}
	return count, nil
}

// GetSeries returns the enabled annotations of a series within scope,
// ordered by time.
func (db *DB) GetSeries(ctx context.Context, scope Scope, series string) ([]Annotation, error) {
	query := fmt.Sprintf(
		`SELECT id, created, %s, label, %s, public, corpus, series, value
		FROM annotations
		WHERE series = ? AND corpus = ? AND public = ? AND enabled = 1
		ORDER BY %s, id`,
		db.quote("user"), db.quote("time"), db.quote("time"),
	)

	var out []Annotation
	if err := db.conn.SelectContext(ctx, &out, db.conn.Rebind(query), series, scope.Corpus, scope.Public); err != nil {
		return nil, fmt.Errorf("getting series %s: %w", series, err)
	}
	return out, nil
}

// ListSeries returns every named series with its row count and time range.
func (db *DB) ListSeries(ctx context.Context) ([]SeriesSummary, error) {
	query := fmt.Sprintf(
		`SELECT series, COUNT(*) AS count, MIN(%[1]s) AS first_time, MAX(%[1]s) AS last_time
		FROM annotations WHERE series IS NOT NULL GROUP BY series ORDER BY series`,
		db.quote("time"),
	)

	var out []SeriesSummary
	if err := db.conn.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("listing series: %w", err)
	}
	return out, nil
}
