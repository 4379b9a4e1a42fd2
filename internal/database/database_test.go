package database

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/burstkit/internal/config"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var testScope = Scope{Corpus: "superbowl", Public: 1}

func batch(labels ...string) []Annotation {
	base := time.Date(2013, 2, 3, 0, 40, 0, 0, time.UTC)
	out := make([]Annotation, len(labels))
	for i, l := range labels {
		out[i] = Annotation{
			Label:  l,
			Time:   base.Add(time.Duration(i) * 20 * time.Minute),
			Public: 1,
			Corpus: "superbowl",
			Value:  float64(i) / float64(len(labels)),
		}
	}
	return out
}

func TestReplaceSeriesInsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	res, err := db.ReplaceSeries(ctx, "top", batch("watt", "blackout", "lights"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Deleted != 0 {
		t.Errorf("expected 0 deleted, got %d", res.Deleted)
	}
	if res.Inserted != 3 || res.Count != 3 {
		t.Errorf("expected 3 inserted and counted, got %d/%d", res.Inserted, res.Count)
	}

	rows, err := db.GetSeries(ctx, testScope, "top")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	first := rows[0]
	if first.Label != "watt" || first.User != ToolUser || first.Series != "top" {
		t.Errorf("unexpected first row %+v", first)
	}
	if first.Time.Unix() != 1359852000 {
		t.Errorf("expected time 1359852000, got %d", first.Time.Unix())
	}
	if rows[2].Value < 0.66 || rows[2].Value > 0.67 {
		t.Errorf("expected value 2/3, got %f", rows[2].Value)
	}
}

func TestReplaceSeriesTwiceLeavesOnlySecond(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ReplaceSeries(ctx, "top", batch("a", "b", "c", "d", "e")); err != nil {
		t.Fatalf("first load: %v", err)
	}
	res, err := db.ReplaceSeries(ctx, "top", batch("x", "y"))
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if res.Deleted != 5 {
		t.Errorf("expected 5 deleted, got %d", res.Deleted)
	}
	if res.Count != 2 {
		t.Errorf("expected 2 rows after reload, got %d", res.Count)
	}

	rows, _ := db.GetSeries(ctx, testScope, "top")
	for _, r := range rows {
		if r.Label != "x" && r.Label != "y" {
			t.Errorf("residual row from first load: %q", r.Label)
		}
	}
}

func TestReplaceSeriesLeavesOtherSeries(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.ReplaceSeries(ctx, "one", batch("a", "b"))
	db.ReplaceSeries(ctx, "two", batch("c"))
	db.ReplaceSeries(ctx, "one", batch("d"))

	n, err := db.CountSeries(ctx, "two")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected series two untouched, got %d rows", n)
	}
}

func TestReplaceSeriesRollsBackOnInsertFailure(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ReplaceSeries(ctx, "top", batch("a", "b", "c")); err != nil {
		t.Fatalf("first load: %v", err)
	}

	_, err := db.conn.Exec(`CREATE TRIGGER reject_boom BEFORE INSERT ON annotations
		WHEN NEW.label = 'boom' BEGIN SELECT RAISE(ABORT, 'boom rejected'); END`)
	if err != nil {
		t.Fatalf("creating trigger: %v", err)
	}

	_, err = db.ReplaceSeries(ctx, "top", batch("x", "boom", "z"))
	if err == nil {
		t.Fatal("expected insert failure")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected error to name the failing row, got %v", err)
	}

	rows, _ := db.GetSeries(ctx, testScope, "top")
	if len(rows) != 3 {
		t.Fatalf("expected previous 3 rows to survive, got %d", len(rows))
	}
	if rows[0].Label != "a" {
		t.Errorf("expected original rows, got %q first", rows[0].Label)
	}
}

func TestReplaceSeriesEmptyBatch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.ReplaceSeries(ctx, "top", batch("a"))
	res, err := db.ReplaceSeries(ctx, "top", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Count != 0 {
		t.Errorf("expected series cleared, got %d", res.Count)
	}
}

func TestReplaceSeriesCreatedTime(t *testing.T) {
	db := openTestDB(t)
	fixed := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return fixed }

	db.ReplaceSeries(context.Background(), "top", batch("a"))
	rows, _ := db.GetSeries(context.Background(), testScope, "top")
	if len(rows) != 1 || !rows[0].Created.Equal(fixed) {
		t.Errorf("expected created %v, got %+v", fixed, rows)
	}
}

func TestGetSeriesSkipsDisabled(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.ReplaceSeries(ctx, "top", batch("a", "b"))
	db.conn.Exec("UPDATE annotations SET enabled = 0 WHERE label = 'a'")

	rows, _ := db.GetSeries(ctx, testScope, "top")
	if len(rows) != 1 || rows[0].Label != "b" {
		t.Errorf("expected only enabled row 'b', got %+v", rows)
	}
}

func TestGetSeriesFiltersScope(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rows := batch("a", "b", "c")
	rows[1].Corpus = "oscars"
	rows[2].Public = 0
	db.ReplaceSeries(ctx, "top", rows)

	got, err := db.GetSeries(ctx, testScope, "top")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Label != "a" {
		t.Errorf("expected only public superbowl row 'a', got %+v", got)
	}

	got, _ = db.GetSeries(ctx, Scope{Corpus: "oscars", Public: 1}, "top")
	if len(got) != 1 || got[0].Label != "b" {
		t.Errorf("expected only oscars row 'b', got %+v", got)
	}
}

func TestListSeries(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.ReplaceSeries(ctx, "beta", batch("a"))
	db.ReplaceSeries(ctx, "alpha", batch("a", "b", "c"))

	list, err := db.ListSeries(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 series, got %d", len(list))
	}
	if list[0].Series != "alpha" || list[0].Count != 3 {
		t.Errorf("unexpected first summary %+v", list[0])
	}

	first := time.Date(2013, 2, 3, 0, 40, 0, 0, time.UTC)
	if !list[0].First.Equal(first) {
		t.Errorf("expected first %v, got %v", first, list[0].First)
	}
	if last := first.Add(40 * time.Minute); !list[0].Last.Equal(last) {
		t.Errorf("expected last %v, got %v", last, list[0].Last)
	}
	if !list[1].First.Equal(list[1].Last.Time) {
		t.Errorf("expected single-row range, got %v..%v", list[1].First, list[1].Last)
	}
}

func TestTimestampJSON(t *testing.T) {
	ts := Timestamp{time.Unix(1359852000, 0)}
	b, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != "1359852000000" {
		t.Errorf("expected epoch ms, got %s", b)
	}

	var back Timestamp
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !back.Equal(ts.Time) {
		t.Errorf("expected %v, got %v", ts.Time, back.Time)
	}
}

func TestTimestampScanText(t *testing.T) {
	var ts Timestamp
	if err := ts.Scan("2013-02-03 00:40:00+00:00"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Unix() != 1359852000 {
		t.Errorf("expected 1359852000, got %d", ts.Unix())
	}
	if err := ts.Scan(42); err == nil {
		t.Error("expected error scanning an int")
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open("oracle", "x"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(config.DB{Host: "db", Port: 3306, User: "u", Password: "p", Schema: "bursts"})
	if !strings.HasPrefix(dsn, "u:p@tcp(db:3306)/bursts?") {
		t.Errorf("unexpected dsn %q", dsn)
	}
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("expected parseTime in dsn %q", dsn)
	}
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DB{Host: "pg", Port: 5432, User: "u", Password: "it's", Schema: "bursts"})
	if !strings.Contains(dsn, `password='it\'s'`) {
		t.Errorf("expected quoted password in %q", dsn)
	}
	if !strings.Contains(dsn, "dbname=bursts") {
		t.Errorf("expected dbname in %q", dsn)
	}
}

func TestConnectSQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{DB: config.DB{Driver: "sqlite", Path: filepath.Join(dir, "c.db")}}

	db, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer db.Close()
	if db.Driver() != "sqlite" {
		t.Errorf("expected sqlite driver, got %q", db.Driver())
	}
}
