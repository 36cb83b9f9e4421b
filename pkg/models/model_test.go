package models

import (
	"math"
	"testing"
	"time"

	"github.com/HatiCode/ecovision/pkg/usage"
)

var start = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC) // a Monday

func makeSeries(values []float64) usage.Series {
	s := make(usage.Series, len(values))
	for i, v := range values {
		s[i] = usage.Record{Date: start.AddDate(0, 0, i), Usage: v}
	}
	return s
}

func checkBounds(t *testing.T, points []Point) {
	t.Helper()
	for i, p := range points {
		if !(p.Lower <= p.Value && p.Value <= p.Upper) {
			t.Errorf("point %d: lower=%v value=%v upper=%v", i, p.Lower, p.Value, p.Upper)
		}
		if math.IsNaN(p.Value) {
			t.Errorf("point %d: NaN value", i)
		}
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		wantName string
		wantErr  bool
	}{
		{"default", Options{}, "additive", false},
		{"prophet alias", Options{Kind: "Prophet"}, "additive", false},
		{"arima", Options{Kind: "arima", P: 2, D: 1, Q: 1}, "arima(2,1,1)", false},
		{"sarima default season", Options{Kind: "sarima"}, "sarima(1,1,1)(0,1,0,7)", false},
		{"byom", Options{Kind: "byom", Endpoint: "http://localhost:8082/predict"}, "byom", false},
		{"byom without endpoint", Options{Kind: "byom"}, "", true},
		{"unknown", Options{Kind: "lstm"}, "", true},
		{"bad width", Options{IntervalWidth: 1.5}, "", true},
		{"bad d", Options{Kind: "arima", D: 3}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && m.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", m.Name(), tt.wantName)
			}
		})
	}
}

func TestDailyMeans(t *testing.T) {
	s := usage.Series{
		{Date: start.AddDate(0, 0, 1), Usage: 4},
		{Date: start, Usage: 1},
		{Date: start.AddDate(0, 0, 1), Usage: 6},
	}
	dates, values := dailyMeans(s)
	if len(dates) != 2 || !dates[0].Equal(start) {
		t.Fatalf("dates = %v", dates)
	}
	if values[0] != 1 || values[1] != 5 {
		t.Errorf("values = %v, want [1 5]", values)
	}
}

func TestFutureDates(t *testing.T) {
	got := futureDates(start, 3)
	if len(got) != 3 || !got[0].Equal(start.AddDate(0, 0, 1)) || !got[2].Equal(start.AddDate(0, 0, 3)) {
		t.Errorf("futureDates = %v", got)
	}
}
