package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HatiCode/ecovision/pkg/aggregate"
	"github.com/HatiCode/ecovision/pkg/forecast"
	"github.com/HatiCode/ecovision/pkg/usage"
)

// writeUsage writes 14 days of 10 kWh starting 2024-01-01.
func writeUsage(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,usage_kWh\n")
	for d := 1; d <= 14; d++ {
		fmt.Fprintf(&b, "2024-01-%02d,10\n", d)
	}
	path := filepath.Join(t.TempDir(), "usage.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "missing.yaml")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyze(t *testing.T) {
	out, err := run(t, nil, "analyze", "-f", writeUsage(t), "-g", "Weekly")
	if err != nil {
		t.Fatalf("analyze error = %v", err)
	}
	for _, want := range []string{"Rows: 14", "Statistics", "140.00 kWh", "Weekly usage", "Forecast"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAggregateJSON(t *testing.T) {
	out, err := run(t, nil, "aggregate", "-f", writeUsage(t), "--from", "2024-01-08", "--json")
	if err != nil {
		t.Fatalf("aggregate error = %v", err)
	}
	var buckets []aggregate.Bucket
	if err := json.Unmarshal([]byte(out), &buckets); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(buckets) != 7 {
		t.Fatalf("got %d buckets, want 7", len(buckets))
	}
	if got := aggregate.Sum(buckets); got != 70 {
		t.Errorf("sum = %v, want 70", got)
	}
}

func TestAggregateCompare(t *testing.T) {
	out, err := run(t, nil, "aggregate", "-f", writeUsage(t), "--compare", "mom")
	if err != nil {
		t.Fatalf("aggregate error = %v", err)
	}
	if !strings.Contains(out, "Month-over-Month") {
		t.Errorf("output missing comparison title:\n%s", out)
	}

	if _, err := run(t, nil, "aggregate", "-f", writeUsage(t), "--compare", "hourly"); err == nil {
		t.Error("expected error for unknown comparison")
	}
}

func TestStdinInput(t *testing.T) {
	in := strings.NewReader("date,usage_kWh\n2024-01-01,1.5\n2024-01-02,2.5\nbad,3\n")
	out, err := run(t, in, "aggregate", "-f", "-")
	if err != nil {
		t.Fatalf("aggregate error = %v", err)
	}
	if !strings.Contains(out, "4.00 kWh") {
		t.Errorf("expected total 4.00 kWh:\n%s", out)
	}
}

func TestCost(t *testing.T) {
	out, err := run(t, nil, "cost", "-f", writeUsage(t), "--rate", "0.25", "--standing", "0.50", "--currency", "GBP")
	if err != nil {
		t.Fatalf("cost error = %v", err)
	}
	if !strings.Contains(out, "Historical cost (14 days): 42.00 GBP") {
		t.Errorf("unexpected historical cost:\n%s", out)
	}
}

func TestChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.png")
	out, err := run(t, nil, "chart", "-f", writeUsage(t), "--kind", "usage", "-g", "Weekly", "-o", path)
	if err != nil {
		t.Fatalf("chart error = %v", err)
	}
	if !strings.HasPrefix(out, "Wrote "+path) {
		t.Errorf("output = %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("chart is not a PNG")
	}
}

func TestTipsWithoutKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	out, err := run(t, nil, "tips", "-f", writeUsage(t))
	if err != nil {
		t.Fatalf("tips error = %v", err)
	}
	if !strings.HasPrefix(out, "AI insights unavailable") {
		t.Errorf("output = %q, want placeholder", out)
	}
}

func TestForecastPeriods(t *testing.T) {
	file := writeUsage(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"default horizon", []string{"forecast", "-f", file, "--json"}, forecast.DefaultPeriods},
		{"explicit horizon", []string{"forecast", "-f", file, "--json", "--periods", "3"}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, nil, tt.args...)
			if err != nil {
				t.Fatalf("forecast error = %v", err)
			}
			var res forecast.Result
			if err := json.Unmarshal([]byte(out), &res); err != nil {
				t.Fatalf("decode: %v\n%s", err, out)
			}
			if len(res.Future) != tt.want {
				t.Errorf("future rows = %d, want %d", len(res.Future), tt.want)
			}
		})
	}
}

func TestCommandErrors(t *testing.T) {
	file := writeUsage(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no input", []string{"analyze"}},
		{"file and source", []string{"analyze", "-f", file, "--source"}},
		{"source not configured", []string{"analyze", "--source"}},
		{"missing file", []string{"analyze", "-f", filepath.Join(t.TempDir(), "nope.csv")}},
		{"bad granularity", []string{"aggregate", "-f", file, "-g", "hourly"}},
		{"bad from date", []string{"aggregate", "-f", file, "--from", "yesterday"}},
		{"bad log level", []string{"--log-level", "loud", "analyze", "-f", file}},
		{"cost without rate", []string{"cost", "-f", file}},
		{"negative rate", []string{"cost", "-f", file, "--rate=-1"}},
		{"unknown chart kind", []string{"chart", "-f", file, "--kind", "pie", "-o", filepath.Join(t.TempDir(), "x.png")}},
		{"publish without broker", []string{"publish", "-f", file}},
		{"unknown model", []string{"forecast", "-f", file, "--model", "lstm"}},
		{"zero periods", []string{"forecast", "-f", file, "--periods", "0"}},
		{"negative periods", []string{"forecast", "-f", file, "--periods=-3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, nil, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSchemaError(t *testing.T) {
	in := strings.NewReader("day,kwh\n2024-01-01,1\n")
	_, err := run(t, in, "analyze", "-f", "-")
	var schemaErr *usage.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("error = %v, want *usage.SchemaError", err)
	}
}

func TestCustomColumns(t *testing.T) {
	in := strings.NewReader("day,kwh\n2024-01-01,1\n2024-01-02,2\n")
	out, err := run(t, in, "aggregate", "-f", "-", "--date-col", "day", "--usage-col", "kwh")
	if err != nil {
		t.Fatalf("aggregate error = %v", err)
	}
	if !strings.Contains(out, "3.00 kWh") {
		t.Errorf("expected total 3.00 kWh:\n%s", out)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1234.5, "1,234.50 kWh"},
		{0, "0.00 kWh"},
		{math.NaN(), "n/a"},
		{math.Inf(1), "n/a"},
	}
	for _, tt := range tests {
		if got := kwh(tt.in); got != tt.want {
			t.Errorf("kwh(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := count(12345); got != "12,345" {
		t.Errorf("count(12345) = %q", got)
	}
}
