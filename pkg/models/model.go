// Package models provides daily usage forecasting models.
//
// A Model is trained on a usage series and then produces fitted values for
// every historical date plus a daily projection of a requested length. Each
// point carries an uncertainty interval whose width is governed by the
// model's interval width (the fraction of outcomes the band should cover).
package models

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/HatiCode/ecovision/pkg/usage"
)

// Point is one forecast row.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
	Lower float64   `json:"lower"`
	Upper float64   `json:"upper"`
}

// Forecast holds the in-sample fit and the projection.
type Forecast struct {
	Model  string  `json:"model"`
	Fitted []Point `json:"fitted"`
	Future []Point `json:"future"`
}

// Model is a trainable daily forecaster.
//
// Train must be called before Predict. Implementations keep state between
// the two calls, so a Model is used for a single series and then discarded.
type Model interface {
	Name() string
	Train(ctx context.Context, history usage.Series) error
	Predict(ctx context.Context, periods int) (Forecast, error)
}

// Model kinds accepted by New.
const (
	KindAdditive = "additive"
	KindARIMA    = "arima"
	KindSARIMA   = "sarima"
	KindBYOM     = "byom"
)

// Kinds lists every supported model kind.
var Kinds = []string{KindAdditive, KindARIMA, KindSARIMA, KindBYOM}

// DefaultIntervalWidth is the band coverage used when none is configured.
const DefaultIntervalWidth = 0.80

// Options configures model construction.
type Options struct {
	// Kind selects the model; empty means additive.
	Kind string
	// IntervalWidth is the coverage of the uncertainty band, in (0, 1).
	IntervalWidth float64

	// ARIMA orders. Zero selects the default of 1 for P and Q and 1 for D.
	P, D, Q int
	// SeasonalPeriod is the seasonal differencing lag used by the sarima kind.
	SeasonalPeriod int

	// Endpoint is the prediction URL of the byom kind.
	Endpoint string
	// Timeout bounds a byom request; zero means 30s.
	Timeout time.Duration
}

// New returns a fresh, untrained model for opts.
func New(opts Options) (Model, error) {
	width := opts.IntervalWidth
	if width == 0 {
		width = DefaultIntervalWidth
	}
	if width <= 0 || width >= 1 {
		return nil, fmt.Errorf("interval width %v out of range (0, 1)", width)
	}

	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", KindAdditive, "prophet":
		return NewAdditiveModel(width), nil
	case KindARIMA:
		return NewARIMAModel(opts.P, opts.D, opts.Q, 0, width)
	case KindSARIMA:
		period := opts.SeasonalPeriod
		if period == 0 {
			period = 7
		}
		return NewARIMAModel(opts.P, opts.D, opts.Q, period, width)
	case KindBYOM:
		if opts.Endpoint == "" {
			return nil, fmt.Errorf("byom model requires an endpoint")
		}
		return NewBYOMModel(opts.Endpoint, width, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown model %q (must be one of %s)", opts.Kind, strings.Join(Kinds, ", "))
	}
}

// dailyMeans collapses the series to one value per distinct date, averaging
// repeated observations, in chronological order.
func dailyMeans(s usage.Series) ([]time.Time, []float64) {
	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for _, r := range s {
		d := usage.Day(r.Date)
		sums[d] += r.Usage
		counts[d]++
	}

	dates := make([]time.Time, 0, len(sums))
	for d := range sums {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	values := make([]float64, len(dates))
	for i, d := range dates {
		values[i] = sums[d] / float64(counts[d])
	}
	return dates, values
}

// futureDates returns the n days following last.
func futureDates(last time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = last.AddDate(0, 0, i+1)
	}
	return out
}
