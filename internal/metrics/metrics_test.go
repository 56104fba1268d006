package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestSourceLabel(t *testing.T) {
	tests := map[string]string{
		"pie":       "pie",
		"api":       "api",
		"":          "unknown",
		"something": "other",
	}
	for in, expected := range tests {
		if got := SourceLabel(in); got != expected {
			t.Errorf("SourceLabel(%q): expected %q, got %q", in, expected, got)
		}
	}
}

func TestChartUpdatesCounter(t *testing.T) {
	before := counterValue(t, "bar")
	ChartUpdates.WithLabelValues("bar").Inc()

	if got := counterValue(t, "bar"); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}

func counterValue(t *testing.T, chart string) float64 {
	t.Helper()
	var m dto.Metric
	if err := ChartUpdates.WithLabelValues(chart).Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}
