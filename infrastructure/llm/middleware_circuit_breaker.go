package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen indicates the circuit breaker is rejecting requests
// because the provider has failed repeatedly.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState represents the state of the circuit breaker.
type CircuitState int

const (
	// CircuitClosed allows requests through normally.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects all requests until the cooldown elapses.
	CircuitOpen
	// CircuitHalfOpen allows a probe request through to test recovery.
	CircuitHalfOpen
)

// circuitBreakerBot stops hammering a provider that keeps failing.
// After maxFailures consecutive failures the circuit opens and requests
// fail fast until resetTimeout elapses, at which point a single probe
// decides whether the provider has recovered.
type circuitBreakerBot struct {
	next         CoreBot
	maxFailures  int
	resetTimeout time.Duration

	mu          sync.Mutex
	state       CircuitState
	failures    int
	lastFailure time.Time
}

// CircuitBreakerMiddleware creates middleware that fails fast when the
// underlying provider is persistently unavailable.
func CircuitBreakerMiddleware(maxFailures int, resetTimeout time.Duration) Middleware {
	return func(next CoreBot) CoreBot {
		return &circuitBreakerBot{
			next:         next,
			maxFailures:  maxFailures,
			resetTimeout: resetTimeout,
			state:        CircuitClosed,
		}
	}
}

// DoRequest executes the request unless the circuit is open.
func (c *circuitBreakerBot) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if !c.allow() {
		return "", 0, 0, ErrCircuitOpen
	}

	response, tokensIn, tokensOut, err := c.next.DoRequest(ctx, prompt, opts)
	c.record(err)
	if err != nil {
		return "", 0, 0, err
	}
	return response, tokensIn, tokensOut, nil
}

// allow reports whether a request may proceed, transitioning the
// circuit from open to half-open once the cooldown has elapsed.
func (c *circuitBreakerBot) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		if time.Since(c.lastFailure) >= c.resetTimeout {
			c.state = CircuitHalfOpen
			return true
		}
		return false
	}
	return false
}

// record updates breaker state from the outcome of a request.
func (c *circuitBreakerBot) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.state = CircuitClosed
		c.failures = 0
		return
	}

	c.failures++
	c.lastFailure = time.Now()
	if c.state == CircuitHalfOpen || c.failures >= c.maxFailures {
		c.state = CircuitOpen
	}
}

// Model returns the model name from the wrapped implementation.
func (c *circuitBreakerBot) Model() string { return c.next.Model() }
