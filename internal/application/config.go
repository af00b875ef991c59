// Package application wires the orchestration stages into a runnable
// consensus engine and owns its configuration surface.
package application

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-quorum/infrastructure/llm"
	"github.com/ahrav/go-quorum/internal/domain"
	"github.com/ahrav/go-quorum/internal/ports"
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// Config is the complete configuration for one engine instance. It is
// an explicit value threaded through the engine's entry point, so
// concurrent runs with different configurations stay isolated.
type Config struct {
	// Bots lists the backends to orchestrate. At least one is required;
	// names must be unique.
	Bots []BotConfig `yaml:"bots" validate:"required,min=1,dive"`

	// Orchestration tunes the stage-level behavior of a run.
	Orchestration OrchestrationConfig `yaml:"orchestration"`

	// Transport tunes the per-request middleware chain shared by all bots.
	Transport TransportConfig `yaml:"transport"`
}

// BotConfig identifies one backend and how to reach it.
type BotConfig struct {
	// Name is the bot's identifier within a run. It must be unique.
	Name string `yaml:"name" validate:"required,min=1,max=100"`

	// Provider selects the wire protocol. Defaults to "completions".
	Provider string `yaml:"provider" validate:"omitempty,oneof=completions anthropic google"`

	// URL is the backend endpoint. Required by the completions provider;
	// the SDK-backed providers use their own defaults when empty.
	// Environment variable references are expanded.
	URL string `yaml:"url" validate:"omitempty,url"`

	// Credential is the bot's API key. Environment variable references
	// are expanded, so configs can say credential: ${BOT_A_KEY}.
	Credential string `yaml:"credential" validate:"required"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`
}

// OrchestrationConfig tunes the orchestration stages.
type OrchestrationConfig struct {
	// AnswerMaxTokens caps initial answers and clarifications.
	AnswerMaxTokens int `yaml:"answer_max_tokens" validate:"omitempty,min=1,max=16000"`

	// EvalMaxTokens caps peer evaluation replies. Scoring needs only a
	// digit, so this stays small.
	EvalMaxTokens int `yaml:"eval_max_tokens" validate:"omitempty,min=1,max=16000"`

	// Temperature controls randomness in bot generation.
	Temperature float64 `yaml:"temperature" validate:"min=0.0,max=1.0"`

	// StageTimeout bounds each stage, covering all of its bot calls.
	StageTimeout time.Duration `yaml:"stage_timeout" validate:"omitempty,min=1s,max=600s"`

	// MaxConcurrency limits concurrent bot calls within one stage.
	MaxConcurrency int `yaml:"max_concurrency" validate:"omitempty,min=1,max=50"`
}

// TransportConfig tunes the middleware chain applied to every bot client.
type TransportConfig struct {
	// RequestTimeout bounds each individual bot request.
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"omitempty,min=1s,max=300s"`

	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int `yaml:"max_retries" validate:"min=0,max=10"`

	// RetryBaseDelay is the starting backoff delay.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" validate:"omitempty,min=1ms,max=1m"`

	// RetryMaxDelay caps the backoff delay.
	RetryMaxDelay time.Duration `yaml:"retry_max_delay" validate:"omitempty,min=1ms,max=5m"`

	// RateLimit is the per-bot request rate in requests per second.
	// Zero disables rate limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"min=0"`

	// RateBurst is the token bucket burst size when rate limiting.
	RateBurst int `yaml:"rate_burst" validate:"omitempty,min=1,max=1000"`

	// BreakerMaxFailures opens the circuit after this many consecutive
	// failures. Zero disables circuit breaking.
	BreakerMaxFailures int `yaml:"breaker_max_failures" validate:"min=0,max=100"`

	// BreakerResetTimeout is the cooldown before the circuit re-probes.
	BreakerResetTimeout time.Duration `yaml:"breaker_reset_timeout" validate:"omitempty,min=1s,max=10m"`
}

// DefaultConfig returns a Config with every tunable set to its default.
// Bots must still be supplied.
func DefaultConfig() Config {
	return Config{
		Orchestration: OrchestrationConfig{
			AnswerMaxTokens: 150,
			EvalMaxTokens:   50,
			Temperature:     0.7,
			StageTimeout:    60 * time.Second,
			MaxConcurrency:  5,
		},
		Transport: TransportConfig{
			RequestTimeout:      30 * time.Second,
			MaxRetries:          2,
			RetryBaseDelay:      500 * time.Millisecond,
			RetryMaxDelay:       10 * time.Second,
			RateLimit:           5,
			RateBurst:           10,
			BreakerMaxFailures:  5,
			BreakerResetTimeout: 30 * time.Second,
		},
	}
}

// LoadConfig reads a YAML configuration file, applies defaults for
// omitted tunables, and validates the result. Unknown fields are
// rejected so typos are not silently ignored.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates YAML configuration bytes.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config (check for typos): %w", err)
	}

	for i := range cfg.Bots {
		cfg.Bots[i].URL = os.ExpandEnv(cfg.Bots[i].URL)
		cfg.Bots[i].Credential = os.ExpandEnv(cfg.Bots[i].Credential)
		if cfg.Bots[i].Provider == "" {
			cfg.Bots[i].Provider = "completions"
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	seen := make(map[string]struct{}, len(cfg.Bots))
	for _, b := range cfg.Bots {
		if _, dup := seen[b.Name]; dup {
			return Config{}, fmt.Errorf("%w: %s", domain.ErrDuplicateBot, b.Name)
		}
		seen[b.Name] = struct{}{}
	}

	return cfg, nil
}

// BuildBotSet constructs one configured client per bot, each wrapped in
// the transport middleware chain. The metrics collector may be nil, in
// which case request metrics are not recorded.
func BuildBotSet(cfg Config, metrics ports.MetricsCollector) (ports.BotSet, error) {
	bots := make(ports.BotSet, len(cfg.Bots))
	for _, b := range cfg.Bots {
		client, err := llm.NewClient(b.Provider, llm.ClientConfig{
			APIKey:     b.Credential,
			Model:      b.Model,
			BaseURL:    b.URL,
			Middleware: buildMiddleware(cfg.Transport, metrics),
		})
		if err != nil {
			return nil, fmt.Errorf("bot %s: %w", b.Name, err)
		}
		bots[domain.BotID(b.Name)] = client
	}
	return bots, nil
}

// buildMiddleware assembles the per-request chain, outermost first.
// Retries sit outside so every attempt passes through the rate limiter
// and the circuit breaker, each attempt gets its own timeout, and
// metrics record every attempt that reaches the provider.
func buildMiddleware(t TransportConfig, metrics ports.MetricsCollector) []llm.Middleware {
	var chain []llm.Middleware
	if t.MaxRetries > 0 {
		chain = append(chain, llm.RetryMiddleware(t.MaxRetries, t.RetryBaseDelay, t.RetryMaxDelay))
	}
	if t.RateLimit > 0 {
		chain = append(chain, llm.RateLimiterMiddleware(t.RateLimit, t.RateBurst))
	}
	if t.BreakerMaxFailures > 0 {
		chain = append(chain, llm.CircuitBreakerMiddleware(t.BreakerMaxFailures, t.BreakerResetTimeout))
	}
	if t.RequestTimeout > 0 {
		chain = append(chain, llm.TimeoutMiddleware(t.RequestTimeout))
	}
	if metrics != nil {
		chain = append(chain, llm.MetricsMiddleware(metrics))
	}
	return chain
}
