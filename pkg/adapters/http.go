package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/tidwall/gjson"

	"github.com/HatiCode/ecovision/pkg/usage"
)

// HTTPSource calls a REST endpoint and extracts daily usage using gjson
// path expressions, e.g. a utility provider's usage API.
//
// Example configuration:
//
//	src := &HTTPSource{
//	    URL:    "https://api.example.com/usage",
//	    Method: "POST",
//	    Headers: map[string]string{
//	        "Authorization": "Bearer {{.Token}}",
//	    },
//	    Body:      `{"from": "{{.StartDate}}", "to": "{{.EndDate}}"}`,
//	    DatePath:  "readings.#.day",
//	    UsagePath: "readings.#.kwh",
//	}
type HTTPSource struct {
	// URL is the endpoint to call (required).
	URL string

	// Method is the HTTP method. Defaults to GET.
	Method string

	// Headers are extra request headers. Values may use template variables.
	Headers map[string]string

	// Body is the request body template. Supports variables:
	//   {{.Days}}      - the look-back window in days
	//   {{.Start}}     - window start as Unix seconds
	//   {{.End}}       - window end as Unix seconds
	//   {{.StartDate}} - window start as YYYY-MM-DD
	//   {{.EndDate}}   - window end as YYYY-MM-DD
	Body string

	// DatePath is the gjson path to the dates, e.g. "data.#.date".
	DatePath string

	// UsagePath is the gjson path to the usage values. Must yield as many
	// elements as DatePath.
	UsagePath string

	// DateFormat selects how dates are read:
	//   "date"       - any layout accepted by ingestion (default)
	//   "unix"       - Unix seconds
	//   "unix_milli" - Unix milliseconds
	DateFormat string

	// Days is the look-back window (defaults to DefaultWindowDays).
	Days int

	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client

	// TemplateVars are extra variables for Body and Headers templates.
	TemplateVars map[string]string
}

func (h *HTTPSource) Name() string { return "http" }

// Collect implements Source. Values are passed through as decoded JSON so
// ingestion applies its usual coercion; unparseable entries are dropped
// there, not here.
func (h *HTTPSource) Collect(ctx context.Context) (usage.Table, error) {
	if err := h.ValidateConfig(); err != nil {
		return usage.Table{}, fmt.Errorf("http source: %w", err)
	}

	start, end := window(h.Days)
	days := h.Days
	if days <= 0 {
		days = DefaultWindowDays
	}

	templateData := map[string]any{
		"Days":      days,
		"Start":     start.Unix(),
		"End":       end.Unix(),
		"StartDate": start.Format("2006-01-02"),
		"EndDate":   end.Format("2006-01-02"),
	}
	for k, v := range h.TemplateVars {
		templateData[k] = v
	}

	method := h.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if h.Body != "" {
		renderedBody, err := renderTemplate(h.Body, templateData)
		if err != nil {
			return usage.Table{}, fmt.Errorf("render body template: %w", err)
		}
		bodyReader = bytes.NewBufferString(renderedBody)
	}

	cli := h.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, method, h.URL, bodyReader)
	if err != nil {
		return usage.Table{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	for key, value := range h.Headers {
		rendered, err := renderTemplate(value, templateData)
		if err != nil {
			return usage.Table{}, fmt.Errorf("render header %s: %w", key, err)
		}
		req.Header.Set(key, rendered)
	}

	resp, err := cli.Do(req)
	if err != nil {
		return usage.Table{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return usage.Table{}, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return usage.Table{}, fmt.Errorf("read response: %w", err)
	}

	dates := gjson.GetBytes(respBody, h.DatePath)
	values := gjson.GetBytes(respBody, h.UsagePath)

	if !dates.Exists() {
		return usage.Table{}, fmt.Errorf("date path %q not found in response", h.DatePath)
	}
	if !values.Exists() {
		return usage.Table{}, fmt.Errorf("usage path %q not found in response", h.UsagePath)
	}

	dateArray := dates.Array()
	valArray := values.Array()
	if len(dateArray) != len(valArray) {
		return usage.Table{}, fmt.Errorf("date count (%d) != usage count (%d)", len(dateArray), len(valArray))
	}

	rows := make([]usage.Row, 0, len(valArray))
	for i := range valArray {
		rows = append(rows, usageRow(h.parseDate(dateArray[i]), valArray[i].Value()))
	}
	return usageTable(rows), nil
}

// parseDate returns a time.Time for Unix formats and the raw JSON value
// otherwise.
func (h *HTTPSource) parseDate(value gjson.Result) any {
	switch h.DateFormat {
	case "unix":
		if value.Type != gjson.Number {
			return nil
		}
		return time.Unix(value.Int(), 0).UTC()
	case "unix_milli":
		if value.Type != gjson.Number {
			return nil
		}
		return time.UnixMilli(value.Int()).UTC()
	default:
		return value.Value()
	}
}

// ValidateConfig checks that the required fields are set.
func (h *HTTPSource) ValidateConfig() error {
	if h.URL == "" {
		return errors.New("url is required")
	}
	if h.DatePath == "" {
		return errors.New("datePath is required")
	}
	if h.UsagePath == "" {
		return errors.New("usagePath is required")
	}

	switch h.DateFormat {
	case "", "date", "unix", "unix_milli":
		return nil
	default:
		return fmt.Errorf("invalid dateFormat: %s (must be date, unix, or unix_milli)", h.DateFormat)
	}
}

func renderTemplate(tmplStr string, data map[string]any) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
