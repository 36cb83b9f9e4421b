package usage

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SchemaError reports that a required column is absent from the input.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("input must contain %s column(s)", quoteJoin(e.Missing))
}

func quoteJoin(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = strconv.Quote(n)
	}
	return strings.Join(quoted, " and ")
}

// Report summarizes an ingestion call. Dropped rows are only counted.
type Report struct {
	RawRows   int `json:"raw_rows"`
	CleanRows int `json:"clean_rows"`
	Dropped   int `json:"dropped"`
}

// dateLayouts are tried in order when coercing string dates.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
	"02.01.2006",
}

// Ingest validates and cleans a raw table into a Series.
//
// It fails with *SchemaError if the date or usage column is missing. Values
// that cannot be coerced to a date or a finite number are treated as missing
// and their rows are dropped. A table with no valid rows yields an empty
// Series and no error.
func Ingest(t Table, cols Columns) (Series, error) {
	s, _, err := IngestWithReport(t, cols)
	return s, err
}

// IngestWithReport is Ingest plus row counts for callers that audit drops.
func IngestWithReport(t Table, cols Columns) (Series, Report, error) {
	cols = cols.withDefaults()

	var missing []string
	if !t.HasColumn(cols.Date) {
		missing = append(missing, cols.Date)
	}
	if !t.HasColumn(cols.Usage) {
		missing = append(missing, cols.Usage)
	}
	if len(missing) > 0 {
		return nil, Report{}, &SchemaError{Missing: missing}
	}

	series := make(Series, 0, len(t.Rows))
	for _, row := range t.Rows {
		date, ok := ParseDate(row[cols.Date])
		if !ok {
			continue
		}
		value, ok := ParseUsage(row[cols.Usage])
		if !ok {
			continue
		}
		series = append(series, Record{Date: date, Usage: value})
	}

	report := Report{
		RawRows:   len(t.Rows),
		CleanRows: len(series),
		Dropped:   len(t.Rows) - len(series),
	}
	return series, report, nil
}

// ParseDate coerces a raw cell to a calendar date.
func ParseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			return time.Time{}, false
		}
		return Day(d), true
	case *time.Time:
		if d == nil || d.IsZero() {
			return time.Time{}, false
		}
		return Day(*d), true
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return Day(t), true
			}
		}
		return time.Time{}, false
	case []byte:
		return ParseDate(string(d))
	default:
		return time.Time{}, false
	}
}

// ParseUsage coerces a raw cell to a finite float.
func ParseUsage(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case []byte:
		return ParseUsage(string(n))
	case fmt.Stringer:
		// decimal column types from SQL drivers
		return ParseUsage(n.String())
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
