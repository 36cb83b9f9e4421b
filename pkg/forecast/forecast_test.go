package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/HatiCode/ecovision/pkg/models"
	"github.com/HatiCode/ecovision/pkg/usage"
)

var start = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

func makeSeries(values ...float64) usage.Series {
	s := make(usage.Series, len(values))
	for i, v := range values {
		s[i] = usage.Record{Date: start.AddDate(0, 0, i), Usage: v}
	}
	return s
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		series  usage.Series
		periods int
		opts    models.Options
	}{
		{"zero periods", makeSeries(1, 2, 3), 0, models.Options{}},
		{"negative periods", makeSeries(1, 2, 3), -4, models.Options{}},
		{"empty series", usage.Series{}, 7, models.Options{}},
		{"single date", makeSeries(5), 7, models.Options{}},
		{"single date repeated", append(makeSeries(5), makeSeries(6)...), 7, models.Options{}},
		{"unknown model", makeSeries(1, 2, 3), 7, models.Options{Kind: "lstm"}},
		{"arima too short", makeSeries(1, 2, 3), 7, models.Options{Kind: "arima"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), tt.series, tt.periods, tt.opts)
			var fe *ForecastError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *forecast.ForecastError, got %v", err)
			}
		})
	}
}

func TestRun_Shape(t *testing.T) {
	values := make([]float64, 45)
	for i := range values {
		values[i] = 20 + float64(i%7) + 0.1*float64(i)
	}
	s := makeSeries(values...)
	// Shuffle order and add a duplicate date; Run sorts internally.
	s[0], s[10] = s[10], s[0]
	s = append(s, usage.Record{Date: start.AddDate(0, 0, 3), Usage: 4})

	for _, kind := range []string{models.KindAdditive, models.KindARIMA, models.KindSARIMA} {
		t.Run(kind, func(t *testing.T) {
			res, err := Run(context.Background(), s, 30, models.Options{Kind: kind})
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if len(res.History) != 45 {
				t.Errorf("expected 45 history rows, got %d", len(res.History))
			}
			if len(res.Future) != 30 {
				t.Fatalf("expected 30 future rows, got %d", len(res.Future))
			}
			if !res.Future[0].Date.Equal(start.AddDate(0, 0, 45)) {
				t.Errorf("first future date = %s", res.Future[0].Date)
			}
			for i, r := range res.All() {
				if !(r.Lower <= r.Value && r.Value <= r.Upper) {
					t.Errorf("row %d violates bounds: %+v", i, r)
				}
			}
			if last, ok := res.Last(); !ok || !last.Date.Equal(start.AddDate(0, 0, 74)) {
				t.Errorf("Last() = %+v, %v", last, ok)
			}
		})
	}
}

func TestRun_TwoDates(t *testing.T) {
	res, err := Run(context.Background(), makeSeries(10, 12), DefaultPeriods, models.Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Future) != DefaultPeriods {
		t.Errorf("expected %d future rows, got %d", DefaultPeriods, len(res.Future))
	}
	if math.Abs(res.Future[0].Value-14) > 1e-9 {
		t.Errorf("future[0] = %v, want 14", res.Future[0].Value)
	}
}

// stubModel returns a canned forecast.
type stubModel struct {
	fc       models.Forecast
	trainErr error
}

func (m *stubModel) Name() string { return "stub" }

func (m *stubModel) Train(ctx context.Context, history usage.Series) error { return m.trainErr }

func (m *stubModel) Predict(ctx context.Context, periods int) (models.Forecast, error) {
	return m.fc, nil
}

func TestRunModel_OrdersBounds(t *testing.T) {
	d := start.AddDate(0, 0, 2)
	m := &stubModel{fc: models.Forecast{
		Model: "stub",
		Future: []models.Point{
			{Date: d, Value: 5, Lower: 7, Upper: 3},
		},
		Fitted: []models.Point{
			{Date: start, Value: 1, Lower: math.NaN(), Upper: 0.5},
			{Date: start.AddDate(0, 0, 1), Value: 2, Lower: 1, Upper: 3},
		},
	}}

	res, err := RunModel(context.Background(), makeSeries(1, 2), 1, m)
	if err != nil {
		t.Fatalf("RunModel failed: %v", err)
	}
	if f := res.Future[0]; f.Lower != 3 || f.Upper != 7 {
		t.Errorf("future bounds not reordered: %+v", f)
	}
	if h := res.History[0]; h.Lower != 0.5 || h.Upper != 1 {
		t.Errorf("history bounds not repaired: %+v", h)
	}
}

func TestRunModel_RejectsBadOutput(t *testing.T) {
	tests := []struct {
		name string
		m    *stubModel
	}{
		{"wrong length", &stubModel{fc: models.Forecast{Future: nil}}},
		{"wrong date", &stubModel{fc: models.Forecast{Future: []models.Point{{Date: start, Value: 1}}}}},
		{"nan value", &stubModel{fc: models.Forecast{Future: []models.Point{{Date: start.AddDate(0, 0, 2), Value: math.NaN()}}}}},
		{"train error", &stubModel{trainErr: errors.New("boom")}},
		{"missing fitted rows", &stubModel{fc: models.Forecast{
			Future: []models.Point{{Date: start.AddDate(0, 0, 2), Value: 1}},
			Fitted: []models.Point{{Date: start, Value: 1}},
		}}},
		{"extra fitted rows", &stubModel{fc: models.Forecast{
			Future: []models.Point{{Date: start.AddDate(0, 0, 2), Value: 1}},
			Fitted: []models.Point{
				{Date: start.AddDate(0, 0, -1), Value: 1},
				{Date: start, Value: 1},
				{Date: start.AddDate(0, 0, 1), Value: 2},
			},
		}}},
		{"repeated fitted date", &stubModel{fc: models.Forecast{
			Future: []models.Point{{Date: start.AddDate(0, 0, 2), Value: 1}},
			Fitted: []models.Point{{Date: start, Value: 1}, {Date: start, Value: 1}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RunModel(context.Background(), makeSeries(1, 2), 1, tt.m)
			var fe *ForecastError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *forecast.ForecastError, got %v", err)
			}
		})
	}
}
