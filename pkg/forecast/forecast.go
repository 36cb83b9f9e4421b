// Package forecast projects daily usage forward with a pluggable model and
// enforces the shape of the result: one fitted row per historical date,
// exactly the requested number of future days, and ordered bounds on every
// row.
package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/HatiCode/ecovision/pkg/models"
	"github.com/HatiCode/ecovision/pkg/usage"
)

// DefaultPeriods is the horizon used when the caller does not choose one.
const DefaultPeriods = 7

// ForecastError reports insufficient or degenerate history, a non-positive horizon,
// or a model failure.
type ForecastError struct {
	Reason string
	Err    error
}

func (e *ForecastError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("forecast: %s: %v", e.Reason, e.Err)
	}
	return "forecast: " + e.Reason
}

func (e *ForecastError) Unwrap() error {
	return e.Err
}

// Row is one output row.
type Row = models.Point

// Result holds the fitted history and the projection.
type Result struct {
	Model   string `json:"model"`
	History []Row  `json:"history"`
	Future  []Row  `json:"future"`
}

// All returns history followed by future rows.
func (r Result) All() []Row {
	out := make([]Row, 0, len(r.History)+len(r.Future))
	out = append(out, r.History...)
	return append(out, r.Future...)
}

// Last returns the final projected row.
func (r Result) Last() (Row, bool) {
	if len(r.Future) == 0 {
		return Row{}, false
	}
	return r.Future[len(r.Future)-1], true
}

// Run trains a fresh model built from opts on s and projects periods days
// past the last historical date.
//
// Returns *ForecastError if s has fewer than two distinct dates, periods <= 0, the
// model cannot be built or fails, or its output violates the result shape.
func Run(ctx context.Context, s usage.Series, periods int, opts models.Options) (Result, error) {
	if periods <= 0 {
		return Result{}, &ForecastError{Reason: fmt.Sprintf("periods must be positive, got %d", periods)}
	}
	if n := s.DistinctDates(); n < 2 {
		return Result{}, &ForecastError{Reason: fmt.Sprintf("need at least 2 distinct dates, got %d", n)}
	}

	model, err := models.New(opts)
	if err != nil {
		return Result{}, &ForecastError{Reason: "invalid model configuration", Err: err}
	}
	return RunModel(ctx, s, periods, model)
}

// RunModel is Run with a caller-supplied untrained model.
func RunModel(ctx context.Context, s usage.Series, periods int, model models.Model) (Result, error) {
	if periods <= 0 {
		return Result{}, &ForecastError{Reason: fmt.Sprintf("periods must be positive, got %d", periods)}
	}
	if n := s.DistinctDates(); n < 2 {
		return Result{}, &ForecastError{Reason: fmt.Sprintf("need at least 2 distinct dates, got %d", n)}
	}

	sorted := s.Sorted()
	if err := model.Train(ctx, sorted); err != nil {
		return Result{}, &ForecastError{Reason: model.Name() + " training failed", Err: err}
	}
	fc, err := model.Predict(ctx, periods)
	if err != nil {
		return Result{}, &ForecastError{Reason: model.Name() + " prediction failed", Err: err}
	}

	_, last, _ := sorted.Span()
	if err := checkFuture(fc.Future, usage.Day(last), periods); err != nil {
		return Result{}, &ForecastError{Reason: "model output rejected", Err: err}
	}
	if err := checkHistory(fc.Fitted, sorted); err != nil {
		return Result{}, &ForecastError{Reason: "model output rejected", Err: err}
	}

	history := make([]Row, len(fc.Fitted))
	for i, p := range fc.Fitted {
		history[i] = orderBounds(p)
	}
	future := make([]Row, len(fc.Future))
	for i, p := range fc.Future {
		future[i] = orderBounds(p)
	}

	return Result{Model: fc.Model, History: history, Future: future}, nil
}

func checkFuture(future []models.Point, last time.Time, periods int) error {
	if len(future) != periods {
		return fmt.Errorf("expected %d future rows, got %d", periods, len(future))
	}
	for i, p := range future {
		want := last.AddDate(0, 0, i+1)
		if !usage.Day(p.Date).Equal(want) {
			return fmt.Errorf("future row %d dated %s, want %s", i, p.Date.Format("2006-01-02"), want.Format("2006-01-02"))
		}
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return fmt.Errorf("future row %d has non-finite value", i)
		}
	}
	return nil
}

// checkHistory requires exactly one fitted row per distinct historical date.
func checkHistory(fitted []models.Point, s usage.Series) error {
	if want := s.DistinctDates(); len(fitted) != want {
		return fmt.Errorf("expected %d fitted rows, got %d", want, len(fitted))
	}
	seen := make(map[time.Time]struct{}, len(fitted))
	for i, p := range fitted {
		d := usage.Day(p.Date)
		if _, dup := seen[d]; dup {
			return fmt.Errorf("fitted row %d repeats date %s", i, d.Format("2006-01-02"))
		}
		seen[d] = struct{}{}
	}
	for _, r := range s {
		if _, ok := seen[usage.Day(r.Date)]; !ok {
			return fmt.Errorf("no fitted row for %s", r.Date.Format("2006-01-02"))
		}
	}
	return nil
}

// orderBounds guarantees Lower <= Value <= Upper. A missing or non-finite
// bound collapses onto the value.
func orderBounds(p Row) Row {
	lo, hi := p.Lower, p.Upper
	if math.IsNaN(lo) || math.IsInf(lo, 0) {
		lo = p.Value
	}
	if math.IsNaN(hi) || math.IsInf(hi, 0) {
		hi = p.Value
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	p.Lower = math.Min(lo, p.Value)
	p.Upper = math.Max(hi, p.Value)
	return p
}
