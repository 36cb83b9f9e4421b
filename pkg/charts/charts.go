// Package charts renders usage buckets, comparisons and forecasts as PNG
// images.
package charts

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/HatiCode/ecovision/pkg/aggregate"
	"github.com/HatiCode/ecovision/pkg/forecast"
	charts "github.com/vicanso/go-charts/v2"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("charts: no data to plot")

// Renderer holds the shared look of every chart.
type Renderer struct {
	Theme  string
	Width  int
	Height int
}

// New returns a dark 1200x400 renderer.
func New() *Renderer {
	return &Renderer{Theme: "dark", Width: 1200, Height: 400}
}

func (r *Renderer) common(title string, labels, legend []string) []charts.OptionFunc {
	return []charts.OptionFunc{
		charts.TitleTextOptionFunc(title),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc(legend, charts.PositionRight),
		charts.ThemeOptionFunc(r.Theme),
		charts.WidthOptionFunc(r.Width),
		charts.HeightOptionFunc(r.Height),
		charts.PaddingOptionFunc(charts.Box{
			Top:    20,
			Right:  20,
			Bottom: 20,
			Left:   20,
		}),
	}
}

// Usage draws aggregated usage as a line chart.
func (r *Renderer) Usage(buckets []aggregate.Bucket, g aggregate.Granularity) ([]byte, error) {
	if len(buckets) == 0 {
		return nil, ErrNoData
	}
	labels := make([]string, len(buckets))
	values := make([]float64, len(buckets))
	for i, b := range buckets {
		labels[i] = b.Label(g)
		values[i] = b.Usage
	}

	title := fmt.Sprintf("%s Usage", g)
	p, err := charts.LineRender(
		[][]float64{values},
		r.common(title, labels, []string{"Usage (kWh)"})...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render usage chart: %w", err)
	}
	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

// Comparison draws grouped usage as a bar chart.
func (r *Renderer) Comparison(points []aggregate.Point, c aggregate.Comparison) ([]byte, error) {
	if len(points) == 0 {
		return nil, ErrNoData
	}
	labels := make([]string, len(points))
	values := make([]float64, len(points))
	for i, p := range points {
		labels[i] = p.Key
		values[i] = p.Usage
	}

	p, err := charts.BarRender(
		[][]float64{values},
		r.common(string(c), labels, []string{"Usage (kWh)"})...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render comparison chart: %w", err)
	}
	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

// Forecast draws the fitted history and projection with its bounds.
func (r *Renderer) Forecast(res forecast.Result) ([]byte, error) {
	rows := res.All()
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	labels := make([]string, len(rows))
	value := make([]float64, len(rows))
	lower := make([]float64, len(rows))
	upper := make([]float64, len(rows))
	for i, row := range rows {
		labels[i] = row.Date.Format("Jan 2")
		value[i] = row.Value
		lower[i] = row.Lower
		upper[i] = row.Upper
	}

	title := "Usage Forecast"
	if res.Model != "" {
		title = fmt.Sprintf("Usage Forecast (%s)", res.Model)
	}
	p, err := charts.LineRender(
		[][]float64{value, lower, upper},
		r.common(title, labels, []string{"Forecast (kWh)", "Lower", "Upper"})...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render forecast chart: %w", err)
	}
	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

// Base64 encodes a rendered chart for embedding in HTML or JSON.
func Base64(png []byte) string {
	return base64.StdEncoding.EncodeToString(png)
}
