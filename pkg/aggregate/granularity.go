// Package aggregate buckets a usage series into calendar periods.
//
// Week boundaries follow the ISO 8601 week-numbering calendar: a week runs
// Monday to Sunday and belongs to the ISO year that contains its Thursday.
// The same rule is used by the statistics package so bucket boundaries and
// weekly averages always agree.
package aggregate

import (
	"fmt"
	"strings"
	"time"
)

// Granularity selects the calendar resampling frequency.
type Granularity int

const (
	Daily Granularity = iota
	Weekly
	Monthly
	Yearly
)

// Granularities lists every supported granularity in ascending period length.
var Granularities = []Granularity{Daily, Weekly, Monthly, Yearly}

// String returns the presentation token (Daily, Weekly, Monthly, Yearly).
func (g Granularity) String() string {
	switch g {
	case Daily:
		return "Daily"
	case Weekly:
		return "Weekly"
	case Monthly:
		return "Monthly"
	case Yearly:
		return "Yearly"
	default:
		return fmt.Sprintf("Granularity(%d)", int(g))
	}
}

// Rule returns the calendar resampling rule code: D, W, M or Y.
func (g Granularity) Rule() string {
	switch g {
	case Daily:
		return "D"
	case Weekly:
		return "W"
	case Monthly:
		return "M"
	case Yearly:
		return "Y"
	default:
		return ""
	}
}

// ParseGranularity accepts a presentation token or a rule code, case-insensitively.
//
// Examples:
//   - "Weekly" → Weekly
//   - "w"      → Weekly
//   - "month"  → Monthly
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day", "d":
		return Daily, nil
	case "weekly", "week", "w":
		return Weekly, nil
	case "monthly", "month", "m":
		return Monthly, nil
	case "yearly", "year", "y":
		return Yearly, nil
	default:
		return 0, fmt.Errorf("unknown granularity %q (must be Daily, Weekly, Monthly or Yearly)", s)
	}
}

// MarshalText encodes the presentation token.
func (g Granularity) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText decodes a token or rule code.
func (g *Granularity) UnmarshalText(text []byte) error {
	parsed, err := ParseGranularity(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// PeriodStart returns the first day of the period of granularity g that
// contains t, at midnight UTC.
func PeriodStart(t time.Time, g Granularity) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch g {
	case Weekly:
		// ISO weeks start on Monday.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case Monthly:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	case Yearly:
		return time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}
