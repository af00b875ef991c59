package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-quorum/internal/domain"
)

// BotClient is the engine's only view of a bot backend: send a prompt,
// get text back. Implementations own authentication, request formatting
// and response parsing for their protocol.
type BotClient interface {
	// Ask sends a prompt to the backend and returns the reply text.
	// The options map carries per-call settings; the conventional keys
	// are "max_tokens" (int) and "temperature" (float64).
	// Implementations bound the call with their configured timeout and
	// respect context cancellation.
	Ask(ctx context.Context, prompt string, options map[string]any) (string, error)

	// AskWithUsage is Ask with token accounting: it additionally returns
	// the input and output token counts for the call. Implementations
	// estimate the counts when the backend reports none.
	AskWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error)

	// Model returns the backend model identifier, for spans and metrics.
	Model() string
}

// BotSet maps each configured bot to its client. The engine treats the
// set as immutable for the duration of one orchestration run.
type BotSet map[domain.BotID]BotClient

// MetricsCollector is the interface for operational metrics.
// Implementations integrate with Prometheus or other monitoring systems.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
