package testutils

import (
	"sync"
	"time"

	"github.com/ahrav/go-quorum/internal/ports"
)

// MetricObservation is one recorded metric call.
type MetricObservation struct {
	// Metric is the metric name the caller supplied.
	Metric string
	// Value is the observed value; for latencies it is the duration in
	// seconds.
	Value float64
	// Labels is the label set attached to the observation.
	Labels map[string]string
}

// MetricsRecorder implements ports.MetricsCollector by recording every
// call for assertion. All methods are safe for concurrent use.
type MetricsRecorder struct {
	mu         sync.Mutex
	latencies  []MetricObservation
	counters   []MetricObservation
	histograms []MetricObservation
}

// NewMetricsRecorder creates an empty recorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

// RecordLatency implements ports.MetricsCollector.
func (r *MetricsRecorder) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	r.record(&r.latencies, operation, duration.Seconds(), labels)
}

// RecordCounter implements ports.MetricsCollector.
func (r *MetricsRecorder) RecordCounter(metric string, value float64, labels map[string]string) {
	r.record(&r.counters, metric, value, labels)
}

// RecordHistogram implements ports.MetricsCollector.
func (r *MetricsRecorder) RecordHistogram(metric string, value float64, labels map[string]string) {
	r.record(&r.histograms, metric, value, labels)
}

// Latencies returns a copy of the recorded latency observations in
// arrival order.
func (r *MetricsRecorder) Latencies() []MetricObservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MetricObservation(nil), r.latencies...)
}

// Counters returns a copy of the recorded counter observations.
func (r *MetricsRecorder) Counters() []MetricObservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MetricObservation(nil), r.counters...)
}

// Histograms returns a copy of the recorded histogram observations.
func (r *MetricsRecorder) Histograms() []MetricObservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MetricObservation(nil), r.histograms...)
}

func (r *MetricsRecorder) record(dst *[]MetricObservation, metric string, value float64, labels map[string]string) {
	copied := make(map[string]string, len(labels))
	for k, v := range labels {
		copied[k] = v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	*dst = append(*dst, MetricObservation{Metric: metric, Value: value, Labels: copied})
}

// Verify interface compliance at compile time.
var _ ports.MetricsCollector = (*MetricsRecorder)(nil)
