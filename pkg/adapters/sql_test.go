package adapters

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/HatiCode/ecovision/pkg/usage"
)

func TestSQLSource_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "usage.db")
	src := &SQLSource{Driver: "sqlite", DSN: dsn}

	db, err := src.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE usage_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			start_time TEXT,
			kwh REAL NOT NULL,
			service TEXT NOT NULL
		);
		INSERT INTO usage_data (date, start_time, kwh, service) VALUES
			('2024-01-01', '2024-01-01T00:00:00Z', 1.5, 'NYSEG'),
			('2024-01-01', '2024-01-01T01:00:00Z', 2.0, 'NYSEG'),
			('2024-01-02', '2024-01-02T00:00:00Z', 4.0, 'NYSEG');
	`)
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	db.Close()

	table, err := src.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 daily rows, got %d", len(table.Rows))
	}

	series, err := usage.Ingest(table, usage.DefaultColumns())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if len(series) != 2 || series[0].Usage != 3.5 || series[1].Usage != 4 {
		t.Errorf("unexpected series: %+v", series)
	}
}

func TestSQLSource_CustomQuery(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "custom.db")
	src := &SQLSource{Driver: "sqlite", DSN: dsn, Query: "SELECT day AS date, total AS usage_kWh FROM readings"}

	db, err := src.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE readings (day TEXT, total REAL); INSERT INTO readings VALUES ('2024-02-01', 7.25)`); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	db.Close()

	table, err := src.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if !table.HasColumn("date") || !table.HasColumn("usage_kWh") || len(table.Rows) != 1 {
		t.Errorf("unexpected table: %+v", table)
	}
}

func TestSQLSource_Errors(t *testing.T) {
	if _, err := (&SQLSource{Driver: "oracle", DSN: "x"}).Open(); err == nil {
		t.Error("expected error for unknown driver")
	}
	if _, err := (&SQLSource{Driver: "sqlite"}).Collect(context.Background()); err == nil {
		t.Error("expected error for empty DSN")
	}
	src := &SQLSource{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "empty.db")}
	if _, err := src.Collect(context.Background()); err == nil {
		t.Error("expected error querying a missing table")
	}
}
