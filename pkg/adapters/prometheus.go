package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/HatiCode/ecovision/pkg/usage"
)

// PrometheusSource reads daily usage from the Prometheus HTTP API or any
// compatible backend (VictoriaMetrics). It issues a /api/v1/query_range call
// at a one-day step, e.g. for the query
//
//	sum(increase(smartmeter_energy_kwh_total[1d]))
//
// If multiple series are returned, values with the same timestamp are SUMMED.
type PrometheusSource struct {
	// ServerURL is the base URL, e.g. http://prometheus:9090 or http://victoria-metrics:8428.
	ServerURL string
	// Query is the PromQL/MetricsQL expression to evaluate.
	Query string
	// Days is the look-back window (defaults to DefaultWindowDays).
	Days int
	// StepSeconds controls the resolution (defaults to one day if <= 0).
	StepSeconds int
	// Flavor names the backend for logs and metrics; defaults to "prometheus".
	Flavor string
	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

func (p *PrometheusSource) Name() string {
	if p.Flavor != "" {
		return p.Flavor
	}
	return "prometheus"
}

// Collect implements Source.
func (p *PrometheusSource) Collect(ctx context.Context) (usage.Table, error) {
	if p.ServerURL == "" || p.Query == "" {
		return usage.Table{}, fmt.Errorf("%s source: ServerURL and Query are required", p.Name())
	}
	step := p.StepSeconds
	if step <= 0 {
		step = 86400
	}
	start, end := window(p.Days)

	u, err := url.Parse(p.ServerURL)
	if err != nil {
		return usage.Table{}, fmt.Errorf("invalid ServerURL: %w", err)
	}
	u.Path = "/api/v1/query_range"

	q := u.Query()
	q.Set("query", p.Query)
	q.Set("start", strconv.FormatInt(start.Unix(), 10))
	q.Set("end", strconv.FormatInt(end.Unix(), 10))
	q.Set("step", strconv.Itoa(step))
	u.RawQuery = q.Encode()

	cli := p.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return usage.Table{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cli.Do(req)
	if err != nil {
		return usage.Table{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return usage.Table{}, fmt.Errorf("%s: status %d", p.Name(), resp.StatusCode)
	}

	var pr RangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return usage.Table{}, fmt.Errorf("decode %s response: %w", p.Name(), err)
	}
	if pr.Status != "success" {
		return usage.Table{}, fmt.Errorf("%s status: %s", p.Name(), pr.Status)
	}

	rows, err := SumRangeResult(pr.Data.Result)
	if err != nil {
		return usage.Table{}, err
	}
	return usageTable(rows), nil
}

// RangeResponse is a Prometheus-compatible query_range response.
type RangeResponse struct {
	Status string    `json:"status"`
	Data   RangeData `json:"data"`
}

// RangeData contains the result of a range query.
type RangeData struct {
	ResultType string        `json:"resultType"`
	Result     []RangeSeries `json:"result"`
}

// RangeSeries is a single series in a range result.
type RangeSeries struct {
	Metric map[string]string `json:"metric"`
	// Values is an array of [ <unix_time_float>, "<value_string>" ]
	Values [][]any `json:"values"`
}

// SumRangeResult sums all series per timestamp and returns rows sorted by
// date, each date truncated to the UTC day.
func SumRangeResult(series []RangeSeries) ([]usage.Row, error) {
	acc := make(map[int64]float64)
	for _, s := range series {
		for _, pair := range s.Values {
			if len(pair) != 2 {
				return nil, fmt.Errorf("invalid value pair length: %d", len(pair))
			}

			var tsSec int64
			switch v := pair[0].(type) {
			case float64:
				tsSec = int64(v)
			case json.Number:
				f, _ := v.Float64()
				tsSec = int64(f)
			default:
				return nil, fmt.Errorf("unexpected timestamp type %T", v)
			}

			var val float64
			switch vv := pair[1].(type) {
			case string:
				f, err := strconv.ParseFloat(vv, 64)
				if err != nil {
					return nil, fmt.Errorf("parse value: %w", err)
				}
				val = f
			case float64:
				val = vv
			case json.Number:
				f, _ := vv.Float64()
				val = f
			default:
				return nil, fmt.Errorf("unexpected value type %T", vv)
			}
			acc[tsSec] += val
		}
	}

	stamps := make([]int64, 0, len(acc))
	for ts := range acc {
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	rows := make([]usage.Row, 0, len(stamps))
	for _, ts := range stamps {
		rows = append(rows, usageRow(usage.Day(time.Unix(ts, 0).UTC()), acc[ts]))
	}
	return rows, nil
}
