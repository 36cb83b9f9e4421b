package models

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/HatiCode/ecovision/pkg/usage"
)

// BYOMModel delegates fitting and prediction to an external HTTP service,
// such as a Prophet sidecar.
//
// Request (POST, JSON):
//
//	{"history": [{"ds": "2024-01-01", "y": 12.5}, ...], "periods": 7, "interval_width": 0.8}
//
// Response (JSON): one row per historical date followed by one row per
// projected day.
//
//	{"forecast": [{"ds": "2024-01-01", "yhat": 12.1, "yhat_lower": 10.2, "yhat_upper": 14.0}, ...]}
type BYOMModel struct {
	endpoint string
	width    float64
	client   *http.Client

	history []byomObservation
	last    time.Time
}

type byomObservation struct {
	DS string  `json:"ds"`
	Y  float64 `json:"y"`
}

type byomRequest struct {
	History       []byomObservation `json:"history"`
	Periods       int               `json:"periods"`
	IntervalWidth float64           `json:"interval_width"`
}

type byomRow struct {
	DS    string   `json:"ds"`
	YHat  float64  `json:"yhat"`
	Lower *float64 `json:"yhat_lower"`
	Upper *float64 `json:"yhat_upper"`
}

type byomResponse struct {
	Forecast []byomRow `json:"forecast"`
}

// NewBYOMModel creates a model that calls endpoint. A zero timeout means 30s.
func NewBYOMModel(endpoint string, width float64, timeout time.Duration) *BYOMModel {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BYOMModel{
		endpoint: endpoint,
		width:    width,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		},
	}
}

// Name returns the model identifier.
func (m *BYOMModel) Name() string {
	return KindBYOM
}

// Train records the daily history to send with the prediction request.
func (m *BYOMModel) Train(ctx context.Context, history usage.Series) error {
	dates, values := dailyMeans(history)
	if len(dates) < 2 {
		return fmt.Errorf("byom: need at least 2 distinct dates, got %d", len(dates))
	}

	m.history = make([]byomObservation, len(dates))
	for i, d := range dates {
		m.history[i] = byomObservation{DS: d.Format("2006-01-02"), Y: values[i]}
	}
	m.last = dates[len(dates)-1]
	return nil
}

// Predict calls the external service and splits its rows into fitted and
// projected points. The service must return exactly periods rows after the
// last historical date.
func (m *BYOMModel) Predict(ctx context.Context, periods int) (Forecast, error) {
	if m.history == nil {
		return Forecast{}, errors.New("byom: model not trained, call Train() first")
	}
	if periods <= 0 {
		return Forecast{}, fmt.Errorf("byom: periods must be positive, got %d", periods)
	}

	body, err := json.Marshal(byomRequest{
		History:       m.history,
		Periods:       periods,
		IntervalWidth: m.width,
	})
	if err != nil {
		return Forecast{}, fmt.Errorf("byom: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return Forecast{}, fmt.Errorf("byom: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return Forecast{}, fmt.Errorf("byom: http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Forecast{}, fmt.Errorf("byom: http %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var byomResp byomResponse
	if err := json.NewDecoder(resp.Body).Decode(&byomResp); err != nil {
		return Forecast{}, fmt.Errorf("byom: decode response: %w", err)
	}

	var out Forecast
	out.Model = m.Name()
	for _, row := range byomResp.Forecast {
		d, ok := usage.ParseDate(row.DS)
		if !ok {
			return Forecast{}, fmt.Errorf("byom: invalid date %q in response", row.DS)
		}
		p := Point{Date: d, Value: row.YHat, Lower: row.YHat, Upper: row.YHat}
		if row.Lower != nil {
			p.Lower = *row.Lower
		}
		if row.Upper != nil {
			p.Upper = *row.Upper
		}
		if d.After(m.last) {
			out.Future = append(out.Future, p)
		} else {
			out.Fitted = append(out.Fitted, p)
		}
	}

	if len(out.Future) != periods {
		return Forecast{}, fmt.Errorf("byom: expected %d future rows, got %d", periods, len(out.Future))
	}
	return out, nil
}
