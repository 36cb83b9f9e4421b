package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HatiCode/ecovision/pkg/usage"
)

func TestHTTPSource_BasicGET(t *testing.T) {
	body := `{
        "readings": [
            {"day": "2025-01-01", "kwh": 10.5},
            {"day": "2025-01-02", "kwh": "11.25"},
            {"day": "2025-01-03", "kwh": "n/a"}
        ]
    }`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("expected Accept: application/json header")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	src := &HTTPSource{
		URL:       server.URL,
		DatePath:  "readings.#.day",
		UsagePath: "readings.#.kwh",
	}

	table, err := src.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("expected 3 raw rows, got %d", len(table.Rows))
	}

	series, report, err := usage.IngestWithReport(table, usage.DefaultColumns())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if len(series) != 2 || report.Dropped != 1 {
		t.Errorf("expected 2 clean rows and 1 dropped, got %d / %+v", len(series), report)
	}
	if series[1].Usage != 11.25 {
		t.Errorf("series[1].Usage = %v, want 11.25", series[1].Usage)
	}
}

func TestHTTPSource_POST_WithTemplates(t *testing.T) {
	var receivedBody, receivedAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		b, _ := io.ReadAll(r.Body)
		receivedBody = string(b)
		receivedAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"data": [{"d": "2024-01-01", "v": 1}]}`)
	}))
	defer server.Close()

	src := &HTTPSource{
		URL:          server.URL,
		Method:       http.MethodPost,
		Headers:      map[string]string{"Authorization": "Bearer {{.Token}}"},
		Body:         `{"days": {{.Days}}, "to": "{{.EndDate}}"}`,
		DatePath:     "data.#.d",
		UsagePath:    "data.#.v",
		Days:         14,
		TemplateVars: map[string]string{"Token": "s3cret"},
	}

	table, err := src.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(table.Rows))
	}
	if receivedAuth != "Bearer s3cret" {
		t.Errorf("Authorization = %q", receivedAuth)
	}
	today := time.Now().UTC().Format("2006-01-02")
	if !strings.Contains(receivedBody, `"days": 14`) || !strings.Contains(receivedBody, today) {
		t.Errorf("body not rendered: %s", receivedBody)
	}
}

func TestHTTPSource_UnixDates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ts": [1704067200000, 1704153600000], "v": [1, 2]}`)
	}))
	defer server.Close()

	src := &HTTPSource{URL: server.URL, DatePath: "ts", UsagePath: "v", DateFormat: "unix_milli"}
	table, err := src.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}

	series, err := usage.Ingest(table, usage.DefaultColumns())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	want := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	if len(series) != 2 || !series[1].Date.Equal(want) {
		t.Errorf("unexpected series: %+v", series)
	}
}

func TestHTTPSource_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		src     HTTPSource
	}{
		{
			name: "status error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusUnauthorized)
			},
			src: HTTPSource{DatePath: "d", UsagePath: "v"},
		},
		{
			name: "missing path",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"d": ["2024-01-01"]}`)
			},
			src: HTTPSource{DatePath: "d", UsagePath: "v"},
		},
		{
			name: "mismatched lengths",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"d": ["2024-01-01", "2024-01-02"], "v": [1]}`)
			},
			src: HTTPSource{DatePath: "d", UsagePath: "v"},
		},
		{
			name: "invalid config",
			handler: func(w http.ResponseWriter, r *http.Request) {
				t.Error("request should not be sent")
			},
			src: HTTPSource{DatePath: "d"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			src := tt.src
			src.URL = server.URL
			if _, err := src.Collect(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHTTPSource_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	src := &HTTPSource{URL: server.URL, DatePath: "d", UsagePath: "v"}
	if _, err := src.Collect(ctx); err == nil {
		t.Error("expected context error")
	}
}
