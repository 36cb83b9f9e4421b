// Package stats computes scalar summaries of a usage series.
//
// Every per-granularity average is reported twice: the calendar average is
// the mean of the per-period sums, and the actual average divides the total
// by the number of occupied periods. The two are derived on separate paths
// and agree within floating-point tolerance.
package stats

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/HatiCode/ecovision/pkg/aggregate"
	"github.com/HatiCode/ecovision/pkg/usage"
)

// Summary keys.
const (
	Total   = "total"
	Average = "average"
	Peak    = "peak"

	AverageDaily   = "average_daily"
	AverageWeekly  = "average_weekly"
	AverageMonthly = "average_monthly"
	AverageYearly  = "average_yearly"

	AverageDailyActual   = "average_daily_actual"
	AverageWeeklyActual  = "average_weekly_actual"
	AverageMonthlyActual = "average_monthly_actual"
	AverageYearlyActual  = "average_yearly_actual"
)

// Keys lists every summary key in presentation order.
var Keys = []string{
	Total, Average, Peak,
	AverageDaily, AverageWeekly, AverageMonthly, AverageYearly,
	AverageDailyActual, AverageWeeklyActual, AverageMonthlyActual, AverageYearlyActual,
}

// Summary maps a metric name to its value. Average and Peak are NaN for an
// empty series; every other key is always finite.
type Summary map[string]float64

// MarshalJSON writes keys in sorted order and encodes non-finite values as null.
func (s Summary) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		v := s[k]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Compute returns the summary for s. It never fails; an empty series yields
// zero total and zero averages, with Average and Peak set to NaN.
func Compute(s usage.Series) Summary {
	total := s.Total()
	out := Summary{
		Total:   total,
		Average: math.NaN(),
		Peak:    math.NaN(),
	}

	if len(s) > 0 {
		peak := math.Inf(-1)
		for _, r := range s {
			peak = math.Max(peak, r.Usage)
		}
		out[Average] = total / float64(len(s))
		out[Peak] = peak
		out[AverageDaily] = out[Average]
	} else {
		out[AverageDaily] = 0
	}

	out[AverageWeekly] = calendarAverage(s, aggregate.Weekly)
	out[AverageMonthly] = calendarAverage(s, aggregate.Monthly)
	out[AverageYearly] = calendarAverage(s, aggregate.Yearly)

	out[AverageDailyActual] = actualAverage(total, countDistinct(s, dayKey))
	out[AverageWeeklyActual] = actualAverage(total, countDistinct(s, isoWeekKey))
	out[AverageMonthlyActual] = actualAverage(total, countDistinct(s, monthKey))
	out[AverageYearlyActual] = actualAverage(total, countDistinct(s, yearKey))

	return out
}

// calendarAverage is the mean of the per-period sums.
func calendarAverage(s usage.Series, g aggregate.Granularity) float64 {
	buckets := aggregate.Aggregate(s, g)
	if len(buckets) == 0 {
		return 0
	}
	return aggregate.Sum(buckets) / float64(len(buckets))
}

func actualAverage(total float64, groups int) float64 {
	if groups == 0 {
		return 0
	}
	return total / float64(groups)
}

type periodKey struct {
	year, index int
}

func dayKey(t time.Time) periodKey {
	return periodKey{t.Year(), t.YearDay()}
}

func isoWeekKey(t time.Time) periodKey {
	y, w := t.ISOWeek()
	return periodKey{y, w}
}

func monthKey(t time.Time) periodKey {
	return periodKey{t.Year(), int(t.Month())}
}

func yearKey(t time.Time) periodKey {
	return periodKey{t.Year(), 0}
}

func countDistinct(s usage.Series, key func(time.Time) periodKey) int {
	seen := make(map[periodKey]struct{}, len(s))
	for _, r := range s {
		seen[key(r.Date)] = struct{}{}
	}
	return len(seen)
}
