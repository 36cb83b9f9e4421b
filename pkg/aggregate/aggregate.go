package aggregate

import (
	"sort"
	"time"

	"github.com/HatiCode/ecovision/pkg/usage"
)

// Bucket is the summed usage of one occupied calendar period.
type Bucket struct {
	Start time.Time `json:"date"`
	Usage float64   `json:"usage_kWh"`
}

// Label formats the bucket start for display at granularity g.
// Weekly buckets use ISO notation, e.g. "2024-W01".
func (b Bucket) Label(g Granularity) string {
	switch g {
	case Weekly:
		year, week := b.Start.ISOWeek()
		return isoWeekLabel(year, week)
	case Monthly:
		return b.Start.Format("2006-01")
	case Yearly:
		return b.Start.Format("2006")
	default:
		return b.Start.Format("2006-01-02")
	}
}

// Aggregate groups the series by the calendar period containing each record
// and sums usage per period. Buckets are emitted only for occupied periods,
// in chronological order. An empty series yields an empty slice.
func Aggregate(s usage.Series, g Granularity) []Bucket {
	acc := make(map[time.Time]float64)
	for _, r := range s {
		acc[PeriodStart(r.Date, g)] += r.Usage
	}

	buckets := make([]Bucket, 0, len(acc))
	for start, total := range acc {
		buckets = append(buckets, Bucket{Start: start, Usage: total})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})
	return buckets
}

// Sum returns the total usage across buckets.
func Sum(buckets []Bucket) float64 {
	total := 0.0
	for _, b := range buckets {
		total += b.Usage
	}
	return total
}
