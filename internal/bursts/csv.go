package bursts

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jszwec/csvutil"
)

// Header is the column header of burst CSV files.
var Header = []string{
	"mid_point",
	"window_size",
	"term",
	"before_count",
	"after_count",
	"count_delta",
	"count_percent_delta",
	"before_rate",
	"after_rate",
	"rate_delta",
	"rate_percent_delta",
}

// LegacyHeader is the header older prep runs produced: rate_delta and
// rate_percent_delta ran together into one label, leaving 10 labels over 11
// data columns. Some downstream sheets still key on it.
var LegacyHeader = []string{
	"mid_point",
	"window_size",
	"term",
	"before_count",
	"after_count",
	"count_delta",
	"count_percent_delta",
	"before_rate",
	"after_rate",
	"rate_deltarate_percent_delta",
}

// row is the CSV shape of a Burst. Field order defines column order.
type row struct {
	MidPoint          string `csv:"mid_point"`
	WindowSize        string `csv:"window_size"`
	Term              string `csv:"term"`
	BeforeCount       string `csv:"before_count"`
	AfterCount        string `csv:"after_count"`
	CountDelta        string `csv:"count_delta"`
	CountPercentDelta string `csv:"count_percent_delta"`
	BeforeRate        string `csv:"before_rate"`
	AfterRate         string `csv:"after_rate"`
	RateDelta         string `csv:"rate_delta"`
	RatePercentDelta  string `csv:"rate_percent_delta"`
}

func toRow(b Burst) row {
	return row{
		MidPoint:          Epoch(b.MidPoint),
		WindowSize:        b.WindowSize,
		Term:              b.Term,
		BeforeCount:       b.BeforeCount,
		AfterCount:        b.AfterCount,
		CountDelta:        b.CountDelta,
		CountPercentDelta: b.CountPercentDelta,
		BeforeRate:        b.BeforeRate,
		AfterRate:         b.AfterRate,
		RateDelta:         b.RateDelta,
		RatePercentDelta:  b.RatePercentDelta,
	}
}

// Writer writes bursts as CSV rows. The header goes out once, ahead of the
// first row, no matter how many files feed the same Writer.
type Writer struct {
	csv     *csv.Writer
	enc     *csvutil.Encoder
	header  []string
	started bool
	rows    int
}

// NewWriter returns a Writer on w. With legacy set it emits LegacyHeader.
func NewWriter(w io.Writer, legacy bool) *Writer {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	enc.AutoHeader = false

	header := Header
	if legacy {
		header = LegacyHeader
	}
	return &Writer{csv: cw, enc: enc, header: header}
}

// WriteHeader writes the header if it has not been written yet.
func (w *Writer) WriteHeader() error {
	if w.started {
		return nil
	}
	w.started = true
	if err := w.csv.Write(w.header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

// Write appends one row per burst.
func (w *Writer) Write(bursts ...Burst) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	for _, b := range bursts {
		r := toRow(b)
		if err := w.enc.Encode(&r); err != nil {
			return fmt.Errorf("writing burst %q: %w", b.Term, err)
		}
		w.rows++
	}
	return nil
}

// Rows returns how many bursts have been written.
func (w *Writer) Rows() int {
	return w.rows
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}
