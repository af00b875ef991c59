package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// retryBot retries transient failures with exponential backoff.
// Retrying lives below the orchestration layer: the pipeline itself
// never re-issues a failed call, but the transport may.
type retryBot struct {
	next       CoreBot
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware creates middleware that retries retryable failures
// with exponential backoff and jitter. Non-retryable failures (bad
// requests, rejected credentials) fail immediately.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreBot) CoreBot {
		return &retryBot{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

// DoRequest executes the request, retrying while the failure is
// transient and the context remains live.
func (r *retryBot) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		response, tokensIn, tokensOut, err := r.next.DoRequest(ctx, prompt, opts)
		if err == nil {
			return response, tokensIn, tokensOut, nil
		}
		lastErr = err

		if errors.Is(err, ErrCircuitOpen) || ctx.Err() != nil || !isRetryable(err) {
			break
		}
		if attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		case <-time.After(r.delay(attempt)):
		}
	}

	return "", 0, 0, fmt.Errorf("request failed after retries: %w", lastErr)
}

// isRetryable reports whether a failure is worth retrying. Classified
// provider errors answer for themselves; unclassified errors are assumed
// transient.
func isRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.IsRetryable()
	}
	return true
}

func (r *retryBot) delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	// #nosec G115 - attempt is bounded between 0 and 30
	delay := time.Duration(float64(r.baseDelay) * float64(uint64(1)<<uint(attempt)))

	// Jitter of up to ±25% spreads concurrent retries apart.
	// #nosec G404 - a weak RNG is fine for jitter
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - delay/4

	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}

// Model returns the model name from the wrapped implementation.
func (r *retryBot) Model() string { return r.next.Model() }
