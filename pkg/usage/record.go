// Package usage holds the cleaned electricity usage series and the ingestion
// step that produces it from raw tabular input.
//
// A Series is the single input of every downstream analytics component
// (aggregation, statistics, forecasting). Records carry a calendar date with no
// time of day and a finite usage value in kWh. Duplicate dates are kept as
// separate records; merging happens only when a consumer buckets the series.
package usage

import (
	"sort"
	"time"
)

// Record is a single dated usage observation.
type Record struct {
	Date  time.Time `json:"date"`
	Usage float64   `json:"usage_kWh"`
}

// Series is an insertion-ordered collection of cleaned records.
type Series []Record

// Day normalizes t to midnight UTC of its own calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Len returns the number of records.
func (s Series) Len() int { return len(s) }

// Total sums all usage values. The total of an empty series is 0.
func (s Series) Total() float64 {
	total := 0.0
	for _, r := range s {
		total += r.Usage
	}
	return total
}

// Values returns the usage values in insertion order.
func (s Series) Values() []float64 {
	values := make([]float64, len(s))
	for i, r := range s {
		values[i] = r.Usage
	}
	return values
}

// DistinctDates returns the number of different calendar dates in the series.
func (s Series) DistinctDates() int {
	seen := make(map[time.Time]struct{}, len(s))
	for _, r := range s {
		seen[Day(r.Date)] = struct{}{}
	}
	return len(seen)
}

// Sorted returns a copy of the series ordered by date. Records sharing a date
// keep their insertion order.
func (s Series) Sorted() Series {
	out := make(Series, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Span returns the earliest and latest dates. ok is false for an empty series.
func (s Series) Span() (first, last time.Time, ok bool) {
	if len(s) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last = s[0].Date, s[0].Date
	for _, r := range s[1:] {
		if r.Date.Before(first) {
			first = r.Date
		}
		if r.Date.After(last) {
			last = r.Date
		}
	}
	return first, last, true
}

// Between returns the records whose date falls within [from, to], inclusive.
// A zero from or to leaves that side of the range open.
func (s Series) Between(from, to time.Time) Series {
	out := make(Series, 0, len(s))
	for _, r := range s {
		if !from.IsZero() && r.Date.Before(Day(from)) {
			continue
		}
		if !to.IsZero() && r.Date.After(Day(to)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Head returns at most the first n records. n <= 0 returns the series unchanged.
func (s Series) Head(n int) Series {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

// DailyTotals collapses the series to one record per date, summing duplicate
// dates, ordered chronologically.
func (s Series) DailyTotals() Series {
	acc := make(map[time.Time]float64, len(s))
	for _, r := range s {
		acc[Day(r.Date)] += r.Usage
	}
	out := make(Series, 0, len(acc))
	for d, v := range acc {
		out = append(out, Record{Date: d, Usage: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
