package charts

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/HatiCode/ecovision/pkg/aggregate"
	"github.com/HatiCode/ecovision/pkg/forecast"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func buckets() []aggregate.Bucket {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]aggregate.Bucket, 5)
	for i := range out {
		out[i] = aggregate.Bucket{Start: start.AddDate(0, 0, i), Usage: float64(10 + i)}
	}
	return out
}

func TestRenderer_Usage(t *testing.T) {
	buf, err := New().Usage(buckets(), aggregate.Daily)
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if !bytes.HasPrefix(buf, pngMagic) {
		t.Errorf("Usage() did not produce a PNG")
	}
}

func TestRenderer_Comparison(t *testing.T) {
	points := []aggregate.Point{{Key: "2023", Usage: 1200}, {Key: "2024", Usage: 1100}}
	buf, err := New().Comparison(points, aggregate.YearOverYear)
	if err != nil {
		t.Fatalf("Comparison() error = %v", err)
	}
	if !bytes.HasPrefix(buf, pngMagic) {
		t.Errorf("Comparison() did not produce a PNG")
	}
}

func TestRenderer_Forecast(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	res := forecast.Result{Model: "additive"}
	for i := 0; i < 3; i++ {
		res.History = append(res.History, forecast.Row{Date: start.AddDate(0, 0, i), Value: 10, Lower: 9, Upper: 11})
	}
	for i := 3; i < 6; i++ {
		res.Future = append(res.Future, forecast.Row{Date: start.AddDate(0, 0, i), Value: 12, Lower: 10, Upper: 14})
	}

	buf, err := New().Forecast(res)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if !bytes.HasPrefix(buf, pngMagic) {
		t.Errorf("Forecast() did not produce a PNG")
	}
}

func TestRenderer_NoData(t *testing.T) {
	r := New()
	if _, err := r.Usage(nil, aggregate.Weekly); !errors.Is(err, ErrNoData) {
		t.Errorf("Usage(nil) error = %v, want ErrNoData", err)
	}
	if _, err := r.Comparison(nil, aggregate.DayOverDay); !errors.Is(err, ErrNoData) {
		t.Errorf("Comparison(nil) error = %v, want ErrNoData", err)
	}
	if _, err := r.Forecast(forecast.Result{}); !errors.Is(err, ErrNoData) {
		t.Errorf("Forecast(empty) error = %v, want ErrNoData", err)
	}
}

func TestBase64(t *testing.T) {
	got := Base64([]byte("chart"))
	raw, err := base64.StdEncoding.DecodeString(got)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw) != "chart" {
		t.Errorf("round trip = %q", raw)
	}
}
