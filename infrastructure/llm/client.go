// Package llm provides the bot transport for the quorum engine: a unified
// client over LLM-style question-answering backends with built-in support
// for timeouts, retries, rate limiting, circuit breaking and metrics.
//
// A backend is abstracted behind the CoreBot interface; cross-cutting
// concerns compose around it through a middleware chain. The default
// provider speaks the legacy completions wire format (Bearer credential,
// {"prompt", "max_tokens"} request, {"choices":[{"text"}]} response);
// adapters for Anthropic and Google backends are also registered.
//
// Basic usage:
//
//	client, err := llm.NewClient("completions", llm.ClientConfig{
//	    APIKey:  cfg.Credential,
//	    BaseURL: cfg.URL,
//	    Model:   cfg.Model,
//	})
//	reply, err := client.Ask(ctx, "What is a quorum?", nil)
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-quorum/internal/ports"
)

// CoreBot is the minimal interface a backend provider must implement.
// Middleware wraps any conforming implementation without knowing its
// protocol.
type CoreBot interface {
	// DoRequest sends a prompt to the backend and returns the reply text
	// together with input and output token counts.
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// Model returns the configured model identifier.
	Model() string
}

// Middleware wraps a CoreBot to add cross-cutting behavior. Middleware
// composes: the first entry in ClientConfig.Middleware becomes the
// outermost wrapper.
type Middleware func(CoreBot) CoreBot

// TokenEstimator provides pluggable token estimation when a backend does
// not report usage.
type TokenEstimator interface {
	// EstimateTokens returns an approximate token count for text.
	EstimateTokens(text string) int
}

// ClientConfig holds the settings for creating a bot client.
type ClientConfig struct {
	// APIKey is the credential sent to the backend. The completions
	// provider sends it as a Bearer token.
	APIKey string

	// Model selects the backend model. Providers apply their own default
	// when empty.
	Model string

	// BaseURL overrides the provider's default endpoint. The completions
	// provider requires it: each bot has its own URL.
	BaseURL string

	// Timeout bounds each individual request. Zero means no client-side
	// timeout beyond the caller's context.
	Timeout time.Duration

	// TokenEstimator supplies custom token counting for providers whose
	// backend reports no usage; a character-based estimator is used when
	// nil.
	TokenEstimator TokenEstimator

	// Middleware is applied in order, first entry outermost.
	Middleware []Middleware
}

// Client implements ports.BotClient by wrapping a provider-specific
// CoreBot with the configured middleware chain.
type Client struct {
	core CoreBot
}

var _ ports.BotClient = (*Client)(nil)

// NewClient assembles a bot client for the named provider type.
// It validates configuration, builds the provider and applies the
// middleware chain before returning a ready-to-use client.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	// Apply middleware in reverse so the first entry is outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	return &Client{core: core}, nil
}

// Ask sends a prompt and returns the reply text, discarding token usage.
func (c *Client) Ask(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.AskWithUsage(ctx, prompt, options)
	return response, err
}

// AskWithUsage sends a prompt and returns the reply text with input and
// output token counts for budget accounting. Failures are wrapped in a
// ports.TransportError so callers can inspect them without knowing the
// provider.
func (c *Client) AskWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	response, tokensIn, tokensOut, err := c.core.DoRequest(ctx, prompt, options)
	if err != nil {
		return "", 0, 0, &ports.TransportError{
			Model:     c.core.Model(),
			Operation: "ask",
			Err:       err,
		}
	}
	return response, tokensIn, tokensOut, nil
}

// Model returns the model identifier of the underlying provider.
func (c *Client) Model() string { return c.core.Model() }

// estimatorOrDefault returns the configured token estimator, falling
// back to the character heuristic.
func estimatorOrDefault(config ClientConfig) TokenEstimator {
	if config.TokenEstimator != nil {
		return config.TokenEstimator
	}
	return &CharTokenEstimator{}
}

// CharTokenEstimator approximates tokens at four characters per token,
// a reasonable heuristic for English text.
type CharTokenEstimator struct{}

// EstimateTokens returns an approximate token count for text.
func (e *CharTokenEstimator) EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// ProviderFactory builds a CoreBot from configuration. The registry keyed
// by provider type lets configuration select protocols without the engine
// knowing any provider package directly.
type ProviderFactory func(ClientConfig) (CoreBot, error)

var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a provider under a type name.
// Built-in providers register themselves in init; additional providers
// can be added the same way.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
