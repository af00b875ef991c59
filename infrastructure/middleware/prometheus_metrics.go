// Package middleware provides cross-cutting concerns for the quorum engine.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-quorum/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It tracks bot request throughput, token consumption,
// stage latency and the peer-score distribution for the orchestration
// engine.
type PrometheusMetrics struct {
	requestCounter *prometheus.CounterVec
	tokenCounter   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	stageLatency   *prometheus.HistogramVec
	scoreHistogram *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and
// registers all required metrics in the global Prometheus registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		requestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_requests_total",
				Help: "Total number of requests issued to bot backends.",
			},
			[]string{"model", "status"},
		),
		tokenCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_tokens_total",
				Help: "Total number of tokens exchanged with bot backends.",
			},
			[]string{"model", "direction"},
		),
		requestLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bot_request_duration_seconds",
				Help:    "Latency of individual bot requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "status"},
		),
		stageLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quorum_stage_duration_seconds",
				Help:    "Execution time of each orchestration stage.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		scoreHistogram: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quorum_peer_scores",
				Help:    "Distribution of peer evaluation scores.",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
			[]string{"round"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	if stage, ok := labels["stage"]; ok {
		pm.stageLatency.WithLabelValues(stage).Observe(duration.Seconds())
		return
	}

	status, ok := labels["status"]
	if !ok {
		status = "unknown"
	}
	pm.requestLatency.WithLabelValues(labels["model"], status).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case "bot_requests_total":
		status, ok := labels["status"]
		if !ok {
			status = "unknown"
		}
		pm.requestCounter.WithLabelValues(labels["model"], status).Add(value)
	case "bot_tokens_total":
		direction, ok := labels["direction"]
		if !ok {
			direction = "unknown"
		}
		pm.tokenCounter.WithLabelValues(labels["model"], direction).Add(value)
	default:
		pm.requestCounter.WithLabelValues(labels["model"], metric).Add(value)
	}
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case "quorum_peer_scores":
		round, ok := labels["round"]
		if !ok {
			round = "unknown"
		}
		pm.scoreHistogram.WithLabelValues(round).Observe(value)
	default:
		pm.stageLatency.WithLabelValues(metric).Observe(value)
	}
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
