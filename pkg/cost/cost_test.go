package cost

import (
	"testing"
	"time"

	"github.com/HatiCode/ecovision/pkg/forecast"
	"github.com/HatiCode/ecovision/pkg/usage"
	"github.com/shopspring/decimal"
)

func TestParseTariff(t *testing.T) {
	tests := []struct {
		name     string
		rate     string
		standing string
		wantErr  bool
	}{
		{"rate only", "0.245", "", false},
		{"with standing", "0.245", "0.60", false},
		{"padded", " 0.3 ", " 0.5 ", false},
		{"bad rate", "abc", "", true},
		{"negative rate", "-0.1", "", true},
		{"bad standing", "0.2", "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTariff(tt.rate, tt.standing, "GBP")
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseTariff() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProject(t *testing.T) {
	tariff, err := ParseTariff("0.25", "0.50", "GBP")
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	res := forecast.Result{
		History: []forecast.Row{{Date: start, Value: 99, Lower: 99, Upper: 99}},
		Future: []forecast.Row{
			{Date: start.AddDate(0, 0, 1), Value: 10, Lower: 8, Upper: 12},
			{Date: start.AddDate(0, 0, 2), Value: 10.1, Lower: 8, Upper: 12.2},
		},
	}

	p := Project(res, tariff)
	if len(p.Days) != 2 {
		t.Fatalf("len(Days) = %d, want 2", len(p.Days))
	}
	if got := p.Days[0].Cost.String(); got != "3" {
		t.Errorf("Days[0].Cost = %s, want 3", got)
	}
	if got := p.Days[1].Cost.StringFixed(2); got != "3.03" {
		t.Errorf("Days[1].Cost = %s, want 3.03", got)
	}
	if got := p.Total.StringFixed(2); got != "6.03" {
		t.Errorf("Total = %s, want 6.03", got)
	}
	if got := p.LowerCost.StringFixed(2); got != "5.00" {
		t.Errorf("LowerCost = %s, want 5.00", got)
	}
	if got := p.UpperCost.StringFixed(2); got != "7.05" {
		t.Errorf("UpperCost = %s, want 7.05", got)
	}
	if p.TotalKWh < 20.09 || p.TotalKWh > 20.11 {
		t.Errorf("TotalKWh = %v, want 20.1", p.TotalKWh)
	}
	if p.Currency != "GBP" {
		t.Errorf("Currency = %q", p.Currency)
	}
}

func TestProject_Empty(t *testing.T) {
	p := Project(forecast.Result{}, Tariff{Rate: decimal.NewFromFloat(0.3)})
	if len(p.Days) != 0 || !p.Total.IsZero() {
		t.Errorf("Project(empty) = %+v", p)
	}
}

func TestHistorical(t *testing.T) {
	d := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	s := usage.Series{
		{Date: d, Usage: 4},
		{Date: d, Usage: 6},
		{Date: d.AddDate(0, 0, 1), Usage: 10},
	}
	tariff, _ := ParseTariff("0.2", "1", "")
	if got := Historical(s, tariff).StringFixed(2); got != "6.00" {
		t.Errorf("Historical() = %s, want 6.00", got)
	}
}
