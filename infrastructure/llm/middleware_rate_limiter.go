package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimiterBot throttles outbound requests with a token bucket.
// Peer evaluation multiplies a handful of bots into N*(N-1) calls per
// round, so per-bot throttling keeps the fan-out inside provider quotas.
type rateLimiterBot struct {
	next    CoreBot
	limiter *rate.Limiter
}

// RateLimiterMiddleware creates middleware that limits request
// throughput to rps requests per second with the given burst capacity.
func RateLimiterMiddleware(rps float64, burst int) Middleware {
	return func(next CoreBot) CoreBot {
		return &rateLimiterBot{
			next:    next,
			limiter: rate.NewLimiter(rate.Limit(rps), burst),
		}
	}
}

// DoRequest waits for rate limit clearance before executing the request.
func (r *rateLimiterBot) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", 0, 0, fmt.Errorf("rate limiter wait: %w", err)
	}
	return r.next.DoRequest(ctx, prompt, opts)
}

// Model returns the model name from the wrapped implementation.
func (r *rateLimiterBot) Model() string { return r.next.Model() }
