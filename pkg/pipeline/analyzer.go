// Package pipeline wires ingestion, aggregation, statistics and forecasting
// into one analysis pass:
//
//	ingest → cap → filter → stats → aggregate → comparisons → forecast
//
// A forecast failure does not fail the pass; it is reported next to the other
// results so the summary stays usable with short histories.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/HatiCode/ecovision/pkg/aggregate"
	"github.com/HatiCode/ecovision/pkg/forecast"
	"github.com/HatiCode/ecovision/pkg/models"
	"github.com/HatiCode/ecovision/pkg/stats"
	"github.com/HatiCode/ecovision/pkg/usage"
)

// DefaultMaxRows caps the cleaned series kept for analysis.
const DefaultMaxRows = 10000

// Recorder receives timings and outcomes. *metrics.Metrics in cmd/dashboard
// implements it.
type Recorder interface {
	RecordIngest(seconds float64, dropped int)
	RecordStats(seconds float64)
	RecordForecast(seconds float64)
	SetNextForecast(value float64)
	RecordError(component, reason string)
}

type nopRecorder struct{}

func (nopRecorder) RecordIngest(float64, int)  {}
func (nopRecorder) RecordStats(float64)        {}
func (nopRecorder) RecordForecast(float64)     {}
func (nopRecorder) SetNextForecast(float64)    {}
func (nopRecorder) RecordError(string, string) {}

// Options controls one analysis pass.
type Options struct {
	Granularity  aggregate.Granularity
	Periods      int // forecast horizon in days, must be > 0
	Model        models.Options
	From, To     time.Time
	SkipForecast bool
}

// Dataset is a cleaned, capped series with its ingestion counts.
type Dataset struct {
	Series    usage.Series
	Report    usage.Report
	Truncated bool
}

// Report is the outcome of Analyze.
type Report struct {
	Rows          int                    `json:"rows"`
	Dropped       int                    `json:"dropped"`
	Truncated     bool                   `json:"truncated"`
	Granularity   aggregate.Granularity  `json:"granularity"`
	Stats         stats.Summary          `json:"stats"`
	Buckets       []aggregate.Bucket     `json:"buckets"`
	Comparisons   []aggregate.Comparison `json:"comparisons"`
	Forecast      *forecast.Result       `json:"forecast,omitempty"`
	ForecastError string                 `json:"forecastError,omitempty"`
}

// Analyzer runs analysis passes. It holds no per-request state and is safe
// for concurrent use.
type Analyzer struct {
	maxRows  int
	recorder Recorder
	logger   *slog.Logger
}

// New returns an Analyzer. maxRows <= 0 selects DefaultMaxRows; recorder and
// logger may be nil.
func New(maxRows int, recorder Recorder, logger *slog.Logger) *Analyzer {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{maxRows: maxRows, recorder: recorder, logger: logger}
}

// Load cleans t and keeps at most the configured number of rows.
func (a *Analyzer) Load(t usage.Table, cols usage.Columns) (Dataset, error) {
	start := time.Now()
	s, report, err := usage.IngestWithReport(t, cols)
	if err != nil {
		var schemaErr *usage.SchemaError
		if errors.As(err, &schemaErr) {
			a.recorder.RecordError("ingest", "schema")
		} else {
			a.recorder.RecordError("ingest", "failed")
		}
		return Dataset{}, err
	}
	a.recorder.RecordIngest(time.Since(start).Seconds(), report.Dropped)

	ds := Dataset{Series: s, Report: report}
	if len(s) > a.maxRows {
		ds.Series = s.Head(a.maxRows)
		ds.Truncated = true
		a.logger.Warn("dataset truncated", "rows", len(s), "max_rows", a.maxRows)
	}
	a.logger.Debug("dataset loaded",
		"raw_rows", report.RawRows,
		"clean_rows", report.CleanRows,
		"dropped", report.Dropped,
	)
	return ds, nil
}

// Analyze computes every view of ds.
func (a *Analyzer) Analyze(ctx context.Context, ds Dataset, opts Options) Report {
	s := ds.Series.Between(opts.From, opts.To)

	start := time.Now()
	rep := Report{
		Rows:        len(s),
		Dropped:     ds.Report.Dropped,
		Truncated:   ds.Truncated,
		Granularity: opts.Granularity,
		Stats:       stats.Compute(s),
		Buckets:     aggregate.Aggregate(s, opts.Granularity),
		Comparisons: aggregate.AvailableComparisons(s),
	}
	a.recorder.RecordStats(time.Since(start).Seconds())

	if opts.SkipForecast {
		return rep
	}
	res, err := a.Forecast(ctx, s, opts)
	if err != nil {
		rep.ForecastError = err.Error()
		return rep
	}
	rep.Forecast = &res
	return rep
}

// Forecast runs the configured model on s for opts.Periods days. Callers
// fill in forecast.DefaultPeriods themselves; a zero horizon is a
// *forecast.ForecastError like any other non-positive one.
func (a *Analyzer) Forecast(ctx context.Context, s usage.Series, opts Options) (forecast.Result, error) {
	start := time.Now()
	res, err := forecast.Run(ctx, s, opts.Periods, opts.Model)
	if err != nil {
		a.recorder.RecordError("forecast", reason(err))
		a.logger.Info("forecast unavailable", "error", err)
		return forecast.Result{}, err
	}
	a.recorder.RecordForecast(time.Since(start).Seconds())
	if len(res.Future) > 0 {
		a.recorder.SetNextForecast(res.Future[0].Value)
	}
	a.logger.Debug("forecast complete", "model", res.Model, "periods", opts.Periods)
	return res, nil
}

func reason(err error) string {
	var fe *forecast.ForecastError
	if errors.As(err, &fe) && fe.Err != nil {
		return "model_failed"
	}
	return "invalid_input"
}
