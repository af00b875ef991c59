package llm

import (
	"context"
	"time"

	"github.com/ahrav/go-quorum/internal/ports"
)

// metricsBot records request latency, outcomes, and token consumption
// for every call that reaches the provider.
type metricsBot struct {
	next    CoreBot
	metrics ports.MetricsCollector
}

// MetricsMiddleware creates middleware that reports per-request metrics
// through the given collector.
func MetricsMiddleware(metrics ports.MetricsCollector) Middleware {
	return func(next CoreBot) CoreBot {
		return &metricsBot{next: next, metrics: metrics}
	}
}

// DoRequest executes the request and records its outcome.
func (m *metricsBot) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, prompt, opts)

	labels := map[string]string{
		"model":  m.next.Model(),
		"status": "success",
	}
	if err != nil {
		labels["status"] = "error"
	}

	m.metrics.RecordLatency("bot_request_duration_seconds", time.Since(start), labels)
	m.metrics.RecordCounter("bot_requests_total", 1, labels)

	if err == nil {
		tokenLabels := map[string]string{"model": m.next.Model(), "direction": "input"}
		m.metrics.RecordCounter("bot_tokens_total", float64(tokensIn), tokenLabels)
		tokenLabels = map[string]string{"model": m.next.Model(), "direction": "output"}
		m.metrics.RecordCounter("bot_tokens_total", float64(tokensOut), tokenLabels)
	}

	return response, tokensIn, tokensOut, err
}

// Model returns the model name from the wrapped implementation.
func (m *metricsBot) Model() string { return m.next.Model() }
