// Package metrics provides custom Prometheus metrics for birdsong components.
package metrics

// Recorder defines a minimal interface for recording metrics, so components
// depend on an abstraction rather than concrete collectors.
type Recorder interface {
	// RecordOperation records an operation outcome, e.g. ("prediction", "success").
	RecordOperation(operation, status string)

	// RecordDuration records how long an operation took in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error by category, e.g. ("image_lookup", "image-lookup").
	RecordError(operation, errorType string)
}

// NoOpRecorder discards everything.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordOperation(string, string) {}
func (NoOpRecorder) RecordDuration(string, float64) {}
func (NoOpRecorder) RecordError(string, string) {}
