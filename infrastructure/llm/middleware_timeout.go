package llm

import (
	"context"
	"time"
)

// timeoutBot bounds every request with a deadline so a single
// unresponsive backend cannot stall an orchestration round.
type timeoutBot struct {
	next    CoreBot
	timeout time.Duration
}

// TimeoutMiddleware creates middleware that enforces a per-request
// timeout. An exceeded deadline surfaces as a context error, which the
// responder treats as a bot failure like any other.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreBot) CoreBot {
		return &timeoutBot{next: next, timeout: timeout}
	}
}

// DoRequest executes the request under a timeout context.
func (t *timeoutBot) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoRequest(ctx, prompt, opts)
}

// Model returns the model name from the wrapped implementation.
func (t *timeoutBot) Model() string { return t.next.Model() }
