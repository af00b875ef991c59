// Package testutils provides test doubles for the quorum engine.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/go-quorum/internal/ports"
)

// MockBotClient implements ports.BotClient with deterministic,
// scriptable behavior. Responses are selected by substring pattern
// matching against the prompt, with an optional per-pattern failure,
// so one mock can answer questions, rate peers, and simulate broken
// backends in the same test.
//
// The mock records every prompt it receives for assertion.
type MockBotClient struct {
	model string

	mu        sync.Mutex
	responses []MockResponse
	failAll   error
	prompts   []string
}

// MockResponse defines a pre-configured response pattern for the mock.
type MockResponse struct {
	// Pattern is matched against prompts by substring. The empty
	// pattern matches everything and acts as the default.
	Pattern string
	// Response is the text returned for matching prompts.
	Response string
	// Err, when set, is returned instead of the response.
	Err error
	// TokensUsed is the reported output token count for this response.
	TokensUsed int
}

// NewMockBotClient creates a mock with no configured responses.
// Unmatched prompts get a generic reply so tests only script what they
// assert on.
func NewMockBotClient(model string) *MockBotClient {
	return &MockBotClient{model: model}
}

// AddResponse appends a response pattern. Patterns are checked in the
// order they were added; the first match wins.
func (m *MockBotClient) AddResponse(r MockResponse) *MockBotClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
	return m
}

// FailWith makes every call fail with err until reset with nil.
func (m *MockBotClient) FailWith(err error) *MockBotClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = err
	return m
}

// Ask implements ports.BotClient.
func (m *MockBotClient) Ask(ctx context.Context, prompt string, options map[string]any) (string, error) {
	text, _, _, err := m.AskWithUsage(ctx, prompt, options)
	return text, err
}

// AskWithUsage implements ports.BotClient with deterministic responses
// based on prompt pattern matching.
func (m *MockBotClient) AskWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	if ctx.Err() != nil {
		return "", 0, 0, ctx.Err()
	}
	if prompt == "" {
		return "", 0, 0, fmt.Errorf("prompt cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)

	if m.failAll != nil {
		return "", 0, 0, m.failAll
	}

	tokensIn := estimate(prompt)
	for _, r := range m.responses {
		if r.Pattern == "" || strings.Contains(prompt, r.Pattern) {
			if r.Err != nil {
				return "", 0, 0, r.Err
			}
			tokensOut := r.TokensUsed
			if tokensOut == 0 {
				tokensOut = estimate(r.Response)
			}
			return r.Response, tokensIn, tokensOut, nil
		}
	}

	reply := "Mock response for testing purposes."
	return reply, tokensIn, estimate(reply), nil
}

// Model implements ports.BotClient.
func (m *MockBotClient) Model() string { return m.model }

// Prompts returns a copy of every prompt the mock has received, in
// arrival order.
func (m *MockBotClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Reset clears recorded prompts, configured responses, and any failure.
func (m *MockBotClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = nil
	m.responses = nil
	m.failAll = nil
}

func estimate(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

// Verify interface compliance at compile time.
var _ ports.BotClient = (*MockBotClient)(nil)
