package database

import (
	"fmt"
	"strconv"
	"time"
)

// Annotation is one stored annotation row.
type Annotation struct {
	ID      int64     `db:"id"`
	Created time.Time `db:"created"`
	User    string    `db:"user"`
	Label   string    `db:"label"`
	Time    time.Time `db:"time"`
	Public  int       `db:"public"`
	Corpus  string    `db:"corpus"`
	Series  string    `db:"series"`
	Value   float64   `db:"value"`
}

// Scope selects the annotations of one corpus at one visibility level.
type Scope struct {
	Corpus string
	Public int
}

// SeriesSummary describes one stored annotation series.
type SeriesSummary struct {
	Series string    `db:"series" json:"series"`
	Count  int       `db:"count" json:"count"`
	First  Timestamp `db:"first_time" json:"first"`
	Last   Timestamp `db:"last_time" json:"last"`
}

// Timestamp is a time read back from an aggregate column. SQLite returns
// those as text, the other drivers as time.Time. In JSON it is epoch
// milliseconds.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// Scan implements sql.Scanner.
func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("cannot scan %T into Timestamp", src)
}

func (t *Timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v.UTC()
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, t.UnixMilli(), 10), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}

// ReplaceResult holds the row counts of a series replacement.
type ReplaceResult struct {
	Deleted  int64
	Inserted int64
	// Count is the number of rows found for the series after commit.
	Count int
}
