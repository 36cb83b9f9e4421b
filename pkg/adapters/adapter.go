// Package adapters provides EcoVision data source connectors that retrieve
// electricity usage from external systems and normalize it into a raw
// usage.Table for ingestion.
//
// Each source implements the Source interface. Available sources:
//   - CSVSource        - a CSV file on disk
//   - HTTPSource       - any REST API with JSON responses (gjson paths)
//   - PrometheusSource - a PromQL/MetricsQL range query against Prometheus
//     or VictoriaMetrics
//   - SQLSource        - a query against SQLite, PostgreSQL or ClickHouse
//
// Sources only fetch and shape. Coercion, validation and row dropping happen
// in usage.Ingest, so every source is held to the same cleaning rules.
package adapters

import (
	"context"
	"time"

	"github.com/HatiCode/ecovision/pkg/usage"
)

// Source fetches raw usage rows.
//
// Collect is synchronous and must respect context cancellation and deadlines.
// The returned table carries the default "date" and "usage_kWh" columns
// unless the source was configured to pass columns through unchanged.
type Source interface {
	Collect(ctx context.Context) (usage.Table, error)

	// Name returns a short identifier, e.g. "csv", "prometheus".
	Name() string
}

// DefaultWindowDays is the look-back used by time-windowed sources.
const DefaultWindowDays = 90

// window returns the [start, end] range covering the last days days,
// ending now.
func window(days int) (time.Time, time.Time) {
	if days <= 0 {
		days = DefaultWindowDays
	}
	end := time.Now().UTC().Truncate(time.Second)
	return end.AddDate(0, 0, -days), end
}

func usageTable(rows []usage.Row) usage.Table {
	cols := usage.DefaultColumns()
	return usage.Table{Columns: []string{cols.Date, cols.Usage}, Rows: rows}
}

func usageRow(date, value any) usage.Row {
	cols := usage.DefaultColumns()
	return usage.Row{cols.Date: date, cols.Usage: value}
}
