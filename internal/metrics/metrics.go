// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DatasetRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "carviz_dataset_records",
		Help: "Number of records in the loaded dataset",
	})

	DatasetLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "carviz_dataset_load_duration_seconds",
		Help:    "Time taken to load the dataset at startup",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
	})

	SelectionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carviz_selection_changes_total",
		Help: "Selection writes applied, by originating chart or API",
	}, []string{"source"})

	ChartUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carviz_chart_updates_total",
		Help: "Chart updates applied after a selection change or zoom",
	}, []string{"chart"})

	ChartUpdateErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carviz_chart_update_errors_total",
		Help: "Chart updates that failed and kept the previous render",
	}, []string{"chart"})

	ChartUpdateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carviz_chart_update_duration_seconds",
		Help:    "Time to recompute and reconcile one chart",
		Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}, []string{"chart"})

	Gestures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carviz_gestures_total",
		Help: "User gestures received, by chart and kind",
	}, []string{"chart", "gesture"})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "carviz_ws_clients",
		Help: "Currently connected websocket clients",
	})

	WSMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carviz_ws_messages_total",
		Help: "Messages broadcast to websocket clients",
	})

	WSDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carviz_ws_dropped_total",
		Help: "Messages dropped because a client or the broadcast buffer was full",
	})
)

// SourceLabel keeps the selection source label bounded
func SourceLabel(source string) string {
	switch source {
	case "pie", "bar", "line", "api", "ws":
		return source
	case "":
		return "unknown"
	default:
		return "other"
	}
}
