// Package metrics provides Prometheus instrumentation for the dashboard.
//
// Metrics exposed:
//   - ecovision_ingest_seconds: Histogram of ingestion and cleaning duration
//   - ecovision_rows_dropped_total: Counter of rows dropped during cleaning
//   - ecovision_stats_seconds: Histogram of statistics and aggregation duration
//   - ecovision_forecast_seconds: Histogram of model training and prediction duration
//   - ecovision_next_day_forecast_kwh: Gauge of the most recent first-day forecast
//   - ecovision_tips_requests_total: Counter of tips and ask calls by kind and outcome
//   - ecovision_errors_total: Counter of errors by component and reason
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all dashboard metrics. It implements pipeline.Recorder.
type Metrics struct {
	IngestSeconds   prometheus.Histogram
	RowsDropped     prometheus.Counter
	StatsSeconds    prometheus.Histogram
	ForecastSeconds prometheus.Histogram
	NextDayForecast prometheus.Gauge
	TipsRequests    *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
}

// New creates the metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer to expose them on promhttp.Handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		IngestSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecovision_ingest_seconds",
			Help:    "Time spent validating and cleaning uploaded usage data",
			Buckets: prometheus.DefBuckets,
		}),

		RowsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "ecovision_rows_dropped_total",
			Help: "Rows dropped because of a missing or unparsable date or usage value",
		}),

		StatsSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecovision_stats_seconds",
			Help:    "Time spent computing statistics, buckets and comparisons",
			Buckets: prometheus.DefBuckets,
		}),

		ForecastSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecovision_forecast_seconds",
			Help:    "Time spent training and predicting a forecast",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),

		NextDayForecast: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ecovision_next_day_forecast_kwh",
			Help: "Forecast usage for the first day after the most recent analyzed history",
		}),

		TipsRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ecovision_tips_requests_total",
			Help: "Language-model requests by kind (tips, ask) and outcome (ok, placeholder)",
		}, []string{"kind", "outcome"}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ecovision_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),
	}
}

// RecordIngest records one ingestion.
func (m *Metrics) RecordIngest(seconds float64, dropped int) {
	m.IngestSeconds.Observe(seconds)
	if dropped > 0 {
		m.RowsDropped.Add(float64(dropped))
	}
}

// RecordStats records the time spent on statistics.
func (m *Metrics) RecordStats(seconds float64) {
	m.StatsSeconds.Observe(seconds)
}

// RecordForecast records the time spent forecasting.
func (m *Metrics) RecordForecast(seconds float64) {
	m.ForecastSeconds.Observe(seconds)
}

// SetNextForecast sets the first-day forecast gauge.
func (m *Metrics) SetNextForecast(value float64) {
	m.NextDayForecast.Set(value)
}

// RecordTips counts one language-model request.
func (m *Metrics) RecordTips(kind, outcome string) {
	m.TipsRequests.WithLabelValues(kind, outcome).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
