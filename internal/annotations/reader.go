package annotations

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/xuri/excelize/v2"

	"github.com/TobiSchelling/burstkit/internal/bursts"
)

// ExpectedHeader is the only header annotation files may carry.
var ExpectedHeader = []string{"Timestamp", "LABEL", "RANK"}

// ErrHeaderMismatch is returned when an input's header differs from
// ExpectedHeader in names, order or case.
var ErrHeaderMismatch = errors.New("headers do not match [Timestamp LABEL RANK]")

// Row is one ranked, timestamped label from an annotation file.
type Row struct {
	Time  time.Time `csv:"Timestamp"`
	Label string    `csv:"LABEL"`
	Rank  int       `csv:"RANK"`
}

// Read decodes an annotation file. Files ending in .xlsx are read from their
// first sheet; anything else is delimiter-separated text. A bad header, an
// unparseable timestamp or a non-integer rank fails the whole read.
func Read(name string, data []byte, delimiter rune) ([]Row, error) {
	var src csvutil.Reader
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		records, err := sheetRecords(data)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		src = &recordReader{records: records}
	} else {
		r := csv.NewReader(bytes.NewReader(data))
		r.Comma = delimiter
		src = r
	}

	rows, err := decode(src)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	log.Printf("Read %d bursts from %s", len(rows), name)
	return rows, nil
}

func decode(src csvutil.Reader) ([]Row, error) {
	dec, err := csvutil.NewDecoder(src)
	if err == io.EOF {
		return nil, fmt.Errorf("%w: file is empty", ErrHeaderMismatch)
	}
	if err != nil {
		return nil, err
	}
	if !equalHeader(dec.Header(), ExpectedHeader) {
		return nil, fmt.Errorf("%w: got %v", ErrHeaderMismatch, dec.Header())
	}
	dec.Register(func(data []byte, t *time.Time) error {
		parsed, err := bursts.ParseTime(string(data))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	})

	var rows []Row
	for line := 2; ; line++ {
		var r Row
		err := dec.Decode(&r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func equalHeader(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// sheetRecords returns the rows of the first sheet in an xlsx workbook.
func sheetRecords(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}

	// GetRows drops trailing empty cells; pad to the header width so every
	// record has the same shape as a CSV line.
	if len(records) > 0 {
		width := len(records[0])
		for i, rec := range records {
			for len(rec) < width {
				rec = append(rec, "")
			}
			records[i] = rec
		}
	}
	return records, nil
}

// recordReader feeds in-memory records to csvutil.
type recordReader struct {
	records [][]string
	next    int
}

func (r *recordReader) Read() ([]string, error) {
	if r.next >= len(r.records) {
		return nil, io.EOF
	}
	rec := r.records[r.next]
	r.next++
	return rec, nil
}
