package models

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/HatiCode/ecovision/pkg/usage"
)

// AdditiveModel decomposes daily usage into trend + weekly + yearly terms.
//
// Algorithm:
//  1. Trend: ordinary least squares line over the day index of every record
//     (repeated dates count as repeated observations).
//  2. Weekly: mean detrended residual per weekday, centered to sum to zero.
//     A weekday needs at least 2 observations to contribute.
//  3. Yearly: mean residual per calendar month after removing the weekly
//     term, learned only when the history spans at least a year.
//  4. Interval: residual standard deviation scaled by the z-score of the
//     configured width, widening with the projection step.
//
// No clamping is applied; negative usage in the input can yield negative
// predictions.
type AdditiveModel struct {
	width float64

	trained   bool
	origin    time.Time
	last      time.Time
	dates     []time.Time
	intercept float64
	slope     float64
	weekly    [7]float64
	monthly   [12]float64
	stdDev    float64
}

// NewAdditiveModel creates an untrained additive model.
func NewAdditiveModel(width float64) *AdditiveModel {
	return &AdditiveModel{width: width}
}

// Name returns the model identifier.
func (m *AdditiveModel) Name() string {
	return KindAdditive
}

// Train fits trend and seasonality to history.
//
// Returns an error if history has fewer than two distinct dates.
func (m *AdditiveModel) Train(ctx context.Context, history usage.Series) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	dates, _ := dailyMeans(history)
	if len(dates) < 2 {
		return fmt.Errorf("need at least 2 distinct dates to fit a trend, got %d", len(dates))
	}
	origin := dates[0]

	xs := make([]float64, len(history))
	ys := make([]float64, len(history))
	for i, r := range history {
		xs[i] = dayIndex(origin, r.Date)
		ys[i] = r.Usage
	}

	intercept, slope, err := fitLine(xs, ys)
	if err != nil {
		return err
	}

	residuals := make([]float64, len(ys))
	for i := range ys {
		residuals[i] = ys[i] - (intercept + slope*xs[i])
	}

	var weekly [7]float64
	var weeklyLearned [7]bool
	weekdayValues := make(map[int][]float64)
	for i, r := range history {
		wd := int(r.Date.Weekday())
		weekdayValues[wd] = append(weekdayValues[wd], residuals[i])
	}
	for wd, values := range weekdayValues {
		if len(values) >= 2 {
			weekly[wd] = computeMean(values)
			weeklyLearned[wd] = true
		}
	}
	center(weekly[:], weeklyLearned[:])

	for i, r := range history {
		residuals[i] -= weekly[int(r.Date.Weekday())]
	}

	var monthly [12]float64
	var monthlyLearned [12]bool
	if dates[len(dates)-1].Sub(origin) >= 365*24*time.Hour {
		monthValues := make(map[int][]float64)
		for i, r := range history {
			mo := int(r.Date.Month()) - 1
			monthValues[mo] = append(monthValues[mo], residuals[i])
		}
		for mo, values := range monthValues {
			if len(values) >= 2 {
				monthly[mo] = computeMean(values)
				monthlyLearned[mo] = true
			}
		}
		center(monthly[:], monthlyLearned[:])

		for i, r := range history {
			residuals[i] -= monthly[int(r.Date.Month())-1]
		}
	}

	m.trained = true
	m.origin = origin
	m.last = dates[len(dates)-1]
	m.dates = dates
	m.intercept = intercept
	m.slope = slope
	m.weekly = weekly
	m.monthly = monthly
	m.stdDev = residualStdDev(residuals, 2)

	return nil
}

// Predict returns fitted values for every trained date and periods days of
// projection after the last one.
func (m *AdditiveModel) Predict(ctx context.Context, periods int) (Forecast, error) {
	if ctx.Err() != nil {
		return Forecast{}, ctx.Err()
	}
	if !m.trained {
		return Forecast{}, errors.New("model not trained, call Train() first")
	}
	if periods <= 0 {
		return Forecast{}, fmt.Errorf("periods must be positive, got %d", periods)
	}

	z := zScore(m.width)

	fitted := make([]Point, len(m.dates))
	for i, d := range m.dates {
		fitted[i] = band(Point{Date: d, Value: m.at(d)}, z*m.stdDev)
	}

	future := make([]Point, periods)
	for i, d := range futureDates(m.last, periods) {
		future[i] = band(Point{Date: d, Value: m.at(d)}, z*m.stdDev*horizonFactor(i+1))
	}

	return Forecast{Model: m.Name(), Fitted: fitted, Future: future}, nil
}

func (m *AdditiveModel) at(d time.Time) float64 {
	return m.intercept + m.slope*dayIndex(m.origin, d) +
		m.weekly[int(d.Weekday())] + m.monthly[int(d.Month())-1]
}

func dayIndex(origin, t time.Time) float64 {
	return math.Round(usage.Day(t).Sub(origin).Hours() / 24)
}

// fitLine returns the least squares intercept and slope of ys against xs.
func fitLine(xs, ys []float64) (float64, float64, error) {
	n := float64(len(xs))
	var sumX, sumY, sumXY, sumX2 float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumX2 += xs[i] * xs[i]
	}

	denominator := n*sumX2 - sumX*sumX
	if denominator == 0 {
		return 0, 0, errors.New("degenerate trend: all observations share one date")
	}
	slope := (n*sumXY - sumX*sumY) / denominator
	intercept := (sumY - slope*sumX) / n
	return intercept, slope, nil
}

// center shifts the learned effects so they average to zero. Unlearned
// slots stay at zero.
func center(effects []float64, learned []bool) {
	sum, count := 0.0, 0
	for i, e := range effects {
		if learned[i] {
			sum += e
			count++
		}
	}
	if count == 0 {
		return
	}
	mean := sum / float64(count)
	for i := range effects {
		if learned[i] {
			effects[i] -= mean
		}
	}
}
