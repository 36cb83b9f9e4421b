// Package cost prices historical and forecast usage against a flat tariff.
// Arithmetic is decimal and amounts are rounded to cents only when reported.
package cost

import (
	"fmt"
	"strings"
	"time"

	"github.com/HatiCode/ecovision/pkg/forecast"
	"github.com/HatiCode/ecovision/pkg/usage"
	"github.com/shopspring/decimal"
)

// Tariff is a unit rate per kWh plus an optional daily standing charge.
type Tariff struct {
	Rate     decimal.Decimal `json:"rate" yaml:"rate"`
	Standing decimal.Decimal `json:"standing" yaml:"standing"`
	Currency string          `json:"currency" yaml:"currency"`
}

// ParseTariff builds a tariff from decimal strings. An empty standing charge is zero.
func ParseTariff(rate, standing, currency string) (Tariff, error) {
	r, err := decimal.NewFromString(strings.TrimSpace(rate))
	if err != nil {
		return Tariff{}, fmt.Errorf("invalid rate %q: %w", rate, err)
	}
	if r.IsNegative() {
		return Tariff{}, fmt.Errorf("rate must not be negative, got %s", r)
	}
	t := Tariff{Rate: r, Standing: decimal.Zero, Currency: currency}
	if strings.TrimSpace(standing) != "" {
		s, err := decimal.NewFromString(strings.TrimSpace(standing))
		if err != nil {
			return Tariff{}, fmt.Errorf("invalid standing charge %q: %w", standing, err)
		}
		t.Standing = s
	}
	return t, nil
}

// Day prices one calendar day.
func (t Tariff) Day(kwh float64) decimal.Decimal {
	return decimal.NewFromFloat(kwh).Mul(t.Rate).Add(t.Standing)
}

// DayCost is one priced forecast day.
type DayCost struct {
	Date  time.Time       `json:"date"`
	KWh   float64         `json:"usage_kWh"`
	Cost  decimal.Decimal `json:"cost"`
	Lower decimal.Decimal `json:"lower"`
	Upper decimal.Decimal `json:"upper"`
}

// Projection is the priced forecast horizon.
type Projection struct {
	Currency  string          `json:"currency,omitempty"`
	Days      []DayCost       `json:"days"`
	TotalKWh  float64         `json:"total_kWh"`
	Total     decimal.Decimal `json:"total"`
	LowerCost decimal.Decimal `json:"lower"`
	UpperCost decimal.Decimal `json:"upper"`
}

// Project prices every future row of res.
func Project(res forecast.Result, t Tariff) Projection {
	p := Projection{
		Currency:  t.Currency,
		Days:      make([]DayCost, 0, len(res.Future)),
		Total:     decimal.Zero,
		LowerCost: decimal.Zero,
		UpperCost: decimal.Zero,
	}
	for _, row := range res.Future {
		d := DayCost{
			Date:  row.Date,
			KWh:   row.Value,
			Cost:  t.Day(row.Value),
			Lower: t.Day(row.Lower),
			Upper: t.Day(row.Upper),
		}
		p.TotalKWh += row.Value
		p.Total = p.Total.Add(d.Cost)
		p.LowerCost = p.LowerCost.Add(d.Lower)
		p.UpperCost = p.UpperCost.Add(d.Upper)

		d.Cost = d.Cost.Round(2)
		d.Lower = d.Lower.Round(2)
		d.Upper = d.Upper.Round(2)
		p.Days = append(p.Days, d)
	}
	p.Total = p.Total.Round(2)
	p.LowerCost = p.LowerCost.Round(2)
	p.UpperCost = p.UpperCost.Round(2)
	return p
}

// Historical prices the recorded usage. The standing charge applies once per
// distinct date.
func Historical(s usage.Series, t Tariff) decimal.Decimal {
	total := decimal.NewFromFloat(s.Total()).Mul(t.Rate)
	standing := t.Standing.Mul(decimal.NewFromInt(int64(s.DistinctDates())))
	return total.Add(standing).Round(2)
}
