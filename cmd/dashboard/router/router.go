// Package router configures the dashboard's HTTP API.
//
// Every analysis endpoint accepts the usage table in the request body, either
// as CSV (the default) or as a JSON array of objects when Content-Type is
// application/json. Column names default to date and usage_kWh and can be
// overridden per request with date_col and usage_col.
//
// Routes configured:
//   - POST /api/analyze?granularity=&periods=&model=&from=&to= - Full report
//   - POST /api/stats - Summary statistics
//   - POST /api/aggregate?granularity= - Usage buckets
//   - POST /api/compare?kind= - Period-over-period groups, or the available kinds
//   - POST /api/forecast?periods=&model=&interval_width= - Forecast (+ cost when a tariff is set)
//   - POST /api/tips - Efficiency tips
//   - POST /api/ask?q= - Free-form question answered over the data
//   - POST /api/chart/usage.png, /api/chart/compare.png, /api/chart/forecast.png - PNG charts
//   - GET /api/source/report - Latest report from the configured source
//   - GET /healthz - Health check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
//
// Schema errors map to 400, forecast errors to 422, oversized bodies to 413.
// An explicit periods=0 is a forecast error, not a request for the default.
package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/ecovision/pkg/aggregate"
	"github.com/HatiCode/ecovision/pkg/charts"
	"github.com/HatiCode/ecovision/pkg/cost"
	"github.com/HatiCode/ecovision/pkg/forecast"
	"github.com/HatiCode/ecovision/pkg/httpx"
	"github.com/HatiCode/ecovision/pkg/insights"
	"github.com/HatiCode/ecovision/pkg/models"
	"github.com/HatiCode/ecovision/pkg/pipeline"
	"github.com/HatiCode/ecovision/pkg/usage"
)

// TipsRecorder counts language-model requests.
type TipsRecorder interface {
	RecordTips(kind, outcome string)
}

// Dependencies are the collaborators behind the routes. Watcher, Tariff and
// Tips metrics are optional.
type Dependencies struct {
	Analyzer     *pipeline.Analyzer
	Insights     *insights.Client
	Charts       *charts.Renderer
	Watcher      *pipeline.Watcher
	Tariff       *cost.Tariff
	TipsMetrics  TipsRecorder
	Columns      usage.Columns
	Defaults     pipeline.Options
	MaxBodyBytes int64
	StaleAfter   time.Duration
}

type handlers struct {
	Dependencies
	logger *slog.Logger
}

// SetupRoutes configures HTTP endpoints for the dashboard.
func SetupRoutes(deps Dependencies, logger *slog.Logger) *http.ServeMux {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Charts == nil {
		deps.Charts = charts.New()
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = 32 << 20
	}
	if deps.Defaults.Periods <= 0 {
		deps.Defaults.Periods = forecast.DefaultPeriods
	}
	h := &handlers{Dependencies: deps, logger: logger}

	mux := http.NewServeMux()

	mux.Handle("GET /healthz", httpx.HealthHandler())
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/analyze", h.withDataset(h.analyze))
	mux.HandleFunc("POST /api/stats", h.withDataset(h.stats))
	mux.HandleFunc("POST /api/aggregate", h.withDataset(h.aggregate))
	mux.HandleFunc("POST /api/compare", h.withDataset(h.compare))
	mux.HandleFunc("POST /api/forecast", h.withDataset(h.forecast))
	mux.HandleFunc("POST /api/tips", h.withDataset(h.tips))
	mux.HandleFunc("POST /api/ask", h.withDataset(h.ask))
	mux.HandleFunc("POST /api/chart/usage.png", h.withDataset(h.usageChart))
	mux.HandleFunc("POST /api/chart/compare.png", h.withDataset(h.compareChart))
	mux.HandleFunc("POST /api/chart/forecast.png", h.withDataset(h.forecastChart))

	mux.HandleFunc("GET /api/source/report", h.sourceReport)

	return mux
}

type datasetHandler func(w http.ResponseWriter, r *http.Request, ds pipeline.Dataset, opts pipeline.Options)

// withDataset reads the body into a cleaned dataset and the query into
// analysis options before calling next.
func (h *handlers) withDataset(next datasetHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := h.options(r)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
		table, err := readTable(r)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httpx.WriteErrorMessage(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
				return
			}
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		ds, err := h.Analyzer.Load(table, h.columns(r))
		if err != nil {
			writeAnalysisError(w, err)
			return
		}
		next(w, r, ds, opts)
	}
}

func (h *handlers) columns(r *http.Request) usage.Columns {
	cols := h.Columns
	q := r.URL.Query()
	if v := q.Get("date_col"); v != "" {
		cols.Date = v
	}
	if v := q.Get("usage_col"); v != "" {
		cols.Usage = v
	}
	return cols
}

func (h *handlers) options(r *http.Request) (pipeline.Options, error) {
	opts := h.Defaults
	q := r.URL.Query()

	if v := q.Get("granularity"); v != "" {
		g, err := aggregate.ParseGranularity(v)
		if err != nil {
			return opts, err
		}
		opts.Granularity = g
	}
	if v := q.Get("periods"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid periods %q", v)
		}
		opts.Periods = n
	}
	if v := q.Get("model"); v != "" {
		opts.Model.Kind = v
	}
	if v := q.Get("interval_width"); v != "" {
		width, err := models.ParseIntervalWidth(v)
		if err != nil {
			return opts, err
		}
		opts.Model.IntervalWidth = width
	}
	for name, dst := range map[string]*time.Time{"from": &opts.From, "to": &opts.To} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, ok := usage.ParseDate(v)
		if !ok {
			return opts, fmt.Errorf("invalid %s date %q", name, v)
		}
		*dst = t
	}
	return opts, nil
}

// readTable parses a CSV body, or a JSON array of row objects.
func readTable(r *http.Request) (usage.Table, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return usage.ReadCSV(r.Body)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return usage.Table{}, err
	}
	var rows []map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return usage.Table{}, fmt.Errorf("invalid JSON body: %w", err)
	}

	seen := make(map[string]bool)
	table := usage.Table{Rows: make([]usage.Row, len(rows))}
	for i, row := range rows {
		table.Rows[i] = usage.Row(row)
		for k := range row {
			if !seen[k] {
				seen[k] = true
				table.Columns = append(table.Columns, k)
			}
		}
	}
	sort.Strings(table.Columns)
	return table, nil
}

func writeAnalysisError(w http.ResponseWriter, err error) {
	var schemaErr *usage.SchemaError
	var forecastErr *forecast.ForecastError
	switch {
	case errors.As(err, &schemaErr):
		httpx.WriteError(w, http.StatusBadRequest, err)
	case errors.As(err, &forecastErr):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, charts.ErrNoData):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err)
	}
}

func (h *handlers) writeJSON(w http.ResponseWriter, v any) {
	if err := httpx.WriteJSON(w, http.StatusOK, v); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

func (h *handlers) analyze(w http.ResponseWriter, r *http.Request, ds pipeline.Dataset, opts pipeline.Options) {
	h.writeJSON(w, h.Analyzer.Analyze(r.Context(), ds, opts))
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request, ds pipeline.Dataset, opts pipeline.Options) {
	opts.SkipForecast = true
	rep := h.Analyzer.Analyze(r.Context(), ds, opts)
	h.writeJSON(w, map[string]any{
		"rows":      rep.Rows,
		"dropped":   rep.Dropped,
		"truncated": rep.Truncated,
		"stats":     rep.Stats,
	})
}

type bucketView struct {
	Label string    `json:"label"`
	Date  time.Time `json:"date"`
	Usage float64   `json:"usage_kWh"`
}

func (h *handlers) aggregate(w http.ResponseWriter, r *http.Request, ds pipeline.Dataset, opts pipeline.Options) {
	s := ds.Series.Between(opts.From, opts.To)
	buckets := aggregate.Aggregate(s, opts.Granularity)
	views := make([]bucketView, len(buckets))
	for i, b := range buckets {
		views[i] = bucketView{Label: b.Label(opts.Granularity), Date: b.Start, Usage: b.Usage}
	}
	h.writeJSON(w, map[string]any{
		"granularity": opts.Granularity,
		"rule":        opts.Granularity.Rule(),
		"buckets":     views,
	})
}

func (h *handlers) compare(w http.ResponseWriter, r *http.Request, ds pipeline.Dataset, opts pipeline.Options) {
	s := ds.Series.Between(opts.From, opts.To)
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		h.writeJSON(w, map[string]any{"available": aggregate.AvailableComparisons(s)})
		return
	}
	c, err := aggregate.ParseComparison(kind)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}
	h.writeJSON(w, map[string]any{"comparison": c, "points": aggregate.Compare(s, c)})
}

func (h *handlers) forecast(w http.ResponseWriter, r *http.Request, ds pipeline.Dataset, opts pipeline.Options) {
	res, err := h.Analyzer.Forecast(r.Context(), ds.Series.Between(opts.From, opts.To), opts)
	if err != nil {
		writeAnalysisError(w, err)
		return
	}
	resp := map[string]any{"forecast": res}
	if h.Tariff != nil {
		resp["cost"] = cost.Project(res, *h.Tariff)
	}
	h.writeJSON(w, resp)
}

func (h *handlers) tips(w http.ResponseWriter, r *http.Request, ds pipeline.Dataset, opts pipeline.Options) {
	tips := h.Insights.Tips(r.Context(), ds.Series.Between(opts.From, opts.To))
	placeholder := insights.IsPlaceholder(tips)
	h.recordTips("tips", placeholder)
	h.writeJSON(w, map[string]any{"tips": tips, "placeholder": placeholder})
}

func (h *handlers) ask(w http.ResponseWriter, r *http.Request, ds pipeline.Dataset, opts pipeline.Options) {
	question := strings.TrimSpace(r.URL.Query().Get("q"))
	if question == "" {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "q parameter required")
		return
	}
	answer := h.Insights.Ask(r.Context(), question, ds.Series.Between(opts.From, opts.To))
	placeholder := insights.IsPlaceholder([]string{answer})
	h.recordTips("ask", placeholder)
	h.writeJSON(w, map[string]any{"question": question, "answer": answer, "placeholder": placeholder})
}

func (h *handlers) recordTips(kind string, placeholder bool) {
	if h.TipsMetrics == nil {
		return
	}
	outcome := "ok"
	if placeholder {
		outcome = "placeholder"
	}
	h.TipsMetrics.RecordTips(kind, outcome)
}

func (h *handlers) usageChart(w http.ResponseWriter, r *http.Request, ds pipeline.Dataset, opts pipeline.Options) {
	buckets := aggregate.Aggregate(ds.Series.Between(opts.From, opts.To), opts.Granularity)
	png, err := h.Charts.Usage(buckets, opts.Granularity)
	if err != nil {
		writeAnalysisError(w, err)
		return
	}
	httpx.WritePNG(w, png)
}

func (h *handlers) compareChart(w http.ResponseWriter, r *http.Request, ds pipeline.Dataset, opts pipeline.Options) {
	c, err := aggregate.ParseComparison(r.URL.Query().Get("kind"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}
	png, err := h.Charts.Comparison(aggregate.Compare(ds.Series.Between(opts.From, opts.To), c), c)
	if err != nil {
		writeAnalysisError(w, err)
		return
	}
	httpx.WritePNG(w, png)
}

func (h *handlers) forecastChart(w http.ResponseWriter, r *http.Request, ds pipeline.Dataset, opts pipeline.Options) {
	res, err := h.Analyzer.Forecast(r.Context(), ds.Series.Between(opts.From, opts.To), opts)
	if err != nil {
		writeAnalysisError(w, err)
		return
	}
	png, err := h.Charts.Forecast(res)
	if err != nil {
		writeAnalysisError(w, err)
		return
	}
	httpx.WritePNG(w, png)
}

func (h *handlers) sourceReport(w http.ResponseWriter, r *http.Request) {
	if h.Watcher == nil {
		httpx.WriteErrorMessage(w, http.StatusNotFound, "no source configured")
		return
	}
	snap, ok := h.Watcher.Latest()
	if !ok {
		httpx.WriteErrorMessage(w, http.StatusServiceUnavailable, "source report not ready")
		return
	}
	if h.StaleAfter > 0 && time.Since(snap.GeneratedAt) > h.StaleAfter {
		w.Header().Set("X-EcoVision-Stale", "true")
	}
	h.writeJSON(w, snap)
}
