package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/HatiCode/ecovision/pkg/pipeline"
)

var _ pipeline.Recorder = (*Metrics)(nil)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordIngest(0.01, 3)
	m.RecordIngest(0.02, 0)
	if got := testutil.ToFloat64(m.RowsDropped); got != 3 {
		t.Errorf("RowsDropped = %v, want 3", got)
	}

	m.SetNextForecast(12.5)
	if got := testutil.ToFloat64(m.NextDayForecast); got != 12.5 {
		t.Errorf("NextDayForecast = %v, want 12.5", got)
	}

	m.RecordTips("tips", "ok")
	m.RecordTips("tips", "ok")
	m.RecordTips("ask", "placeholder")
	if got := testutil.ToFloat64(m.TipsRequests.WithLabelValues("tips", "ok")); got != 2 {
		t.Errorf("tips ok = %v, want 2", got)
	}

	m.RecordError("forecast", "invalid_input")
	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("forecast", "invalid_input")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
}

func TestNew_SeparateRegistries(t *testing.T) {
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
