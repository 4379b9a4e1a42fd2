package bursts

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// TimeLayout is the timestamp format of burst window logs and annotation
// CSVs, e.g. "20130203 00:20:00 +0000". The offset is always zero.
const TimeLayout = "20060102 15:04:05 +0000"

// DefaultLines is how many lines of each window file are scanned by default.
const DefaultLines = 10

const (
	termRX     = `(?P<term>[\w ]+)`
	durationRX = `(?P<duration>\d+)`
	dateTimeRX = `\d+ \d\d:\d\d:\d\d \+\d+`
	fpRX       = `\d*\.\d*`

	aggregatesRX = `(?P<countDelta>\d+),(?P<rateDelta>` + fpRX + `),(?P<countPercentDelta>` + fpRX + `),(?P<ratePercentDelta>` + fpRX + `)`
	binOneRX     = `\[(?P<timeOne>` + dateTimeRX + `),(?P<countOne>\d+),(?P<rateOne>` + fpRX + `)\]`
	binTwoRX     = `\[(?P<timeTwo>` + dateTimeRX + `),(?P<countTwo>\d+),(?P<rateTwo>` + fpRX + `)\]`
)

// lineRX matches one burst window line:
//
//	watt	{1200,[20130203 00:20:00 +0000,5,0.0042][20130203 00:40:00 +0000,821,0.6842],816,0.68,16320.0,16320.0}	1
//
// Only the start is anchored; anything after the trailing digit is ignored.
var lineRX = regexp.MustCompile(`^` + termRX + "\t" + `\{` + durationRX + `,` + binOneRX + binTwoRX + `,` + aggregatesRX + `\}\s+\d`)

// Burst is one term whose arrival rate spiked between two adjacent windows.
// Numeric fields keep the literal text captured from the log line.
type Burst struct {
	Term       string
	WindowSize string

	// MidPoint is the timestamp of the second window and is the time a burst
	// is reported at. WindowStart is the first window's timestamp.
	MidPoint    time.Time
	WindowStart time.Time

	BeforeCount       string
	AfterCount        string
	CountDelta        string
	CountPercentDelta string

	BeforeRate       string
	AfterRate        string
	RateDelta        string
	RatePercentDelta string
}

// ParseLine extracts a Burst from a single log line. It reports false when
// the line does not follow the burst window grammar.
func ParseLine(line string) (Burst, bool) {
	m := lineRX.FindStringSubmatch(line)
	if m == nil {
		return Burst{}, false
	}
	group := func(name string) string {
		return m[lineRX.SubexpIndex(name)]
	}

	// The grammar restricts both timestamps to digits and separators, but the
	// calendar can still reject them (month 13, day 32).
	start, err := ParseTime(group("timeOne"))
	if err != nil {
		return Burst{}, false
	}
	mid, err := ParseTime(group("timeTwo"))
	if err != nil {
		return Burst{}, false
	}

	return Burst{
		Term:              group("term"),
		WindowSize:        group("duration"),
		MidPoint:          mid,
		WindowStart:       start,
		BeforeCount:       group("countOne"),
		AfterCount:        group("countTwo"),
		CountDelta:        group("countDelta"),
		CountPercentDelta: group("countPercentDelta"),
		BeforeRate:        group("rateOne"),
		AfterRate:         group("rateTwo"),
		RateDelta:         group("rateDelta"),
		RatePercentDelta:  group("ratePercentDelta"),
	}, true
}

// ParseTime parses a timestamp in TimeLayout as UTC.
func ParseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return t, nil
}

// FormatTime renders t in TimeLayout after converting it to UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Epoch returns the Unix timestamp of t as a decimal string.
func Epoch(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
