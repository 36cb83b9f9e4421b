package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/HatiCode/ecovision/pkg/usage"
)

// Comparison selects how usage is grouped for period-over-period charts.
type Comparison string

const (
	YearOverYear   Comparison = "Year-over-Year"
	MonthOverMonth Comparison = "Month-over-Month"
	WeekOverWeek   Comparison = "Week-over-Week"
	DayOverDay     Comparison = "Day-over-Day"
)

// Comparisons lists every comparison, longest period first.
var Comparisons = []Comparison{YearOverYear, MonthOverMonth, WeekOverWeek, DayOverDay}

// ParseComparison accepts the display name or a short alias (yoy, mom, wow, dod).
func ParseComparison(s string) (Comparison, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "year-over-year", "yoy", "year":
		return YearOverYear, nil
	case "month-over-month", "mom", "month":
		return MonthOverMonth, nil
	case "week-over-week", "wow", "week":
		return WeekOverWeek, nil
	case "day-over-day", "dod", "day":
		return DayOverDay, nil
	default:
		return "", fmt.Errorf("unknown comparison %q", s)
	}
}

// Point is one group of a comparison. Key is the year, month number (1-12),
// ISO week number (1-53) or date, rendered as a string.
type Point struct {
	Key   string  `json:"key"`
	Usage float64 `json:"usage_kWh"`
}

// comparisonKey returns a sortable key and its display form.
func comparisonKey(r usage.Record, c Comparison) (int, string) {
	switch c {
	case YearOverYear:
		return r.Date.Year(), fmt.Sprintf("%d", r.Date.Year())
	case MonthOverMonth:
		m := int(r.Date.Month())
		return m, fmt.Sprintf("%d", m)
	case WeekOverWeek:
		_, w := r.Date.ISOWeek()
		return w, fmt.Sprintf("%d", w)
	default:
		d := usage.Day(r.Date)
		return int(d.Unix() / 86400), d.Format("2006-01-02")
	}
}

// Compare groups the series by the comparison key and sums usage per group,
// sorted by key. Month and week keys ignore the year, so the same month of
// different years falls into one group.
func Compare(s usage.Series, c Comparison) []Point {
	type group struct {
		label string
		total float64
	}
	groups := make(map[int]*group)
	for _, r := range s {
		k, label := comparisonKey(r, c)
		g, ok := groups[k]
		if !ok {
			g = &group{label: label}
			groups[k] = g
		}
		g.total += r.Usage
	}

	keys := make([]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	points := make([]Point, len(keys))
	for i, k := range keys {
		points[i] = Point{Key: groups[k].label, Usage: groups[k].total}
	}
	return points
}

// AvailableComparisons returns the comparisons that have more than one
// distinct group in the series, in the order of Comparisons.
func AvailableComparisons(s usage.Series) []Comparison {
	var available []Comparison
	for _, c := range Comparisons {
		seen := make(map[int]struct{})
		for _, r := range s {
			k, _ := comparisonKey(r, c)
			seen[k] = struct{}{}
		}
		if len(seen) > 1 {
			available = append(available, c)
		}
	}
	return available
}

func isoWeekLabel(year, week int) string {
	return fmt.Sprintf("%04d-W%02d", year, week)
}
