package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/HatiCode/ecovision/pkg/adapters"
	"github.com/HatiCode/ecovision/pkg/forecast"
	"github.com/HatiCode/ecovision/pkg/stats"
	"github.com/HatiCode/ecovision/pkg/usage"
)

// Sink receives every fresh report. *publisher.Publisher implements it.
type Sink interface {
	PublishSummary(rows int, summary stats.Summary) error
	PublishForecast(res forecast.Result) error
}

// Snapshot is the latest report produced by a Watcher.
type Snapshot struct {
	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generatedAt"`
	Report      Report    `json:"report"`
}

// Watcher periodically collects a source, analyzes it and keeps the latest
// snapshot: collect → load → analyze → publish → store.
type Watcher struct {
	source   adapters.Source
	analyzer *Analyzer
	columns  usage.Columns
	opts     Options
	sink     Sink
	logger   *slog.Logger

	mu     sync.RWMutex
	latest *Snapshot
}

// NewWatcher returns a Watcher. sink and logger may be nil.
func NewWatcher(source adapters.Source, analyzer *Analyzer, cols usage.Columns, opts Options, sink Sink, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		source:   source,
		analyzer: analyzer,
		columns:  cols,
		opts:     opts,
		sink:     sink,
		logger:   logger.With("source", source.Name()),
	}
}

// Run ticks immediately and then every interval until ctx is canceled.
func (w *Watcher) Run(ctx context.Context, interval time.Duration) error {
	w.logger.Info("starting source refresh loop", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := w.Tick(ctx); err != nil {
		w.logger.Error("initial refresh failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("source refresh loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil {
				w.logger.Error("refresh failed", "error", err)
			}
		}
	}
}

// Tick performs one refresh.
func (w *Watcher) Tick(ctx context.Context) error {
	start := time.Now()

	table, err := w.source.Collect(ctx)
	if err != nil {
		w.analyzer.recorder.RecordError("source", "collect_failed")
		return fmt.Errorf("collect: %w", err)
	}
	ds, err := w.analyzer.Load(table, w.columns)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	rep := w.analyzer.Analyze(ctx, ds, w.opts)

	if w.sink != nil {
		if err := w.sink.PublishSummary(rep.Rows, rep.Stats); err != nil {
			w.analyzer.recorder.RecordError("publisher", "summary_failed")
			w.logger.Error("failed to publish summary", "error", err)
		}
		if rep.Forecast != nil {
			if err := w.sink.PublishForecast(*rep.Forecast); err != nil {
				w.analyzer.recorder.RecordError("publisher", "forecast_failed")
				w.logger.Error("failed to publish forecast", "error", err)
			}
		}
	}

	snap := &Snapshot{Source: w.source.Name(), GeneratedAt: time.Now().UTC(), Report: rep}
	w.mu.Lock()
	w.latest = snap
	w.mu.Unlock()

	w.logger.Info("refresh complete",
		"rows", rep.Rows,
		"dropped", rep.Dropped,
		"forecast", rep.Forecast != nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Latest returns the most recent snapshot.
func (w *Watcher) Latest() (Snapshot, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.latest == nil {
		return Snapshot{}, false
	}
	return *w.latest, true
}
