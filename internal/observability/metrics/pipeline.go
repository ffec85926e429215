package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains metrics for the identification pipeline stages.
type PipelineMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	predictionsTotal  *prometheus.CounterVec
	imageBytes        prometheus.Histogram
}

// NewPipelineMetrics creates and registers pipeline metrics.
func NewPipelineMetrics(registry prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birdsong_operations_total",
			Help: "Total number of pipeline operations by outcome.",
		},
		[]string{"operation", "status"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "birdsong_operation_duration_seconds",
			Help:    "Duration of pipeline operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birdsong_errors_total",
			Help: "Total number of pipeline errors by category.",
		},
		[]string{"operation", "error_type"},
	)

	m.predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birdsong_predictions_total",
			Help: "Total number of identifications by predicted species code.",
		},
		[]string{"species"},
	)

	m.imageBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "birdsong_image_fetch_bytes",
		Help:    "Size of fetched species images in bytes.",
		Buckets: prometheus.ExponentialBuckets(4096, 2, 12),
	})
}

// RecordOperation implements Recorder.
func (m *PipelineMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *PipelineMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *PipelineMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordPrediction counts a decoded species.
func (m *PipelineMetrics) RecordPrediction(speciesCode string) {
	m.predictionsTotal.WithLabelValues(speciesCode).Inc()
}

// ObserveImageBytes records the size of a fetched image.
func (m *PipelineMetrics) ObserveImageBytes(n int) {
	m.imageBytes.Observe(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
	m.errorsTotal.Describe(ch)
	m.predictionsTotal.Describe(ch)
	m.imageBytes.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
	m.errorsTotal.Collect(ch)
	m.predictionsTotal.Collect(ch)
	m.imageBytes.Collect(ch)
}
