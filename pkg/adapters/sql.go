package adapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/HatiCode/ecovision/pkg/usage"
)

// DefaultSQLQuery reads the usage_data table written by meter scrapers,
// summing interval readings into daily totals.
const DefaultSQLQuery = `SELECT date, SUM(kwh) AS usage_kWh FROM usage_data GROUP BY date ORDER BY date`

// SQLSource runs a query and returns every selected column. The query must
// select the date and usage columns expected by ingestion, aliasing them if
// needed.
type SQLSource struct {
	// Driver is "sqlite", "postgres" or "clickhouse".
	Driver string
	// DSN is the connection string: a file path for sqlite, a lib/pq URL or
	// key=value string for postgres, a clickhouse:// URL for clickhouse.
	DSN string
	// Query defaults to DefaultSQLQuery.
	Query string
}

func (s *SQLSource) Name() string { return "sql:" + s.Driver }

// Open returns a database handle for the configured driver.
func (s *SQLSource) Open() (*sql.DB, error) {
	switch s.Driver {
	case "sqlite", "postgres":
		db, err := sql.Open(s.Driver, s.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening %s database: %w", s.Driver, err)
		}
		return db, nil
	case "clickhouse":
		opts, err := clickhouse.ParseDSN(s.DSN)
		if err != nil {
			return nil, fmt.Errorf("parsing clickhouse DSN: %w", err)
		}
		return clickhouse.OpenDB(opts), nil
	default:
		return nil, fmt.Errorf("unknown sql driver %q (must be sqlite, postgres, or clickhouse)", s.Driver)
	}
}

// Collect implements Source.
func (s *SQLSource) Collect(ctx context.Context) (usage.Table, error) {
	if s.DSN == "" {
		return usage.Table{}, errors.New("sql source: DSN is required")
	}

	db, err := s.Open()
	if err != nil {
		return usage.Table{}, err
	}
	defer db.Close()

	query := s.Query
	if query == "" {
		query = DefaultSQLQuery
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return usage.Table{}, fmt.Errorf("querying usage: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return usage.Table{}, fmt.Errorf("reading columns: %w", err)
	}

	t := usage.Table{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return usage.Table{}, fmt.Errorf("scanning row: %w", err)
		}

		row := make(usage.Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return usage.Table{}, fmt.Errorf("iterating rows: %w", err)
	}

	return t, nil
}
