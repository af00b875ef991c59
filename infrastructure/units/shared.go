// Package units provides the orchestration stages that implement the
// ports.Unit interface for the go-quorum consensus engine.
package units

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

// Default configuration values shared across orchestration stages.
const (
	// DefaultMaxConcurrency is the default number of concurrent bot calls.
	DefaultMaxConcurrency = 5
	// DefaultAnswerMaxTokens caps the length of answers and clarifications.
	DefaultAnswerMaxTokens = 150
	// DefaultEvalMaxTokens caps the length of peer evaluation replies.
	DefaultEvalMaxTokens = 50
	// DefaultTimeoutSeconds is the default timeout for one stage in seconds.
	DefaultTimeoutSeconds = 60
)

// Sentinel errors for clear, testable error conditions.
var (
	ErrQuestionMissing  = errors.New("question not found in state")
	ErrResponsesMissing = errors.New("responses not found in state")
	ErrScoresMissing    = errors.New("score table not found in state")
	ErrUnitNameEmpty    = errors.New("unit name cannot be empty")
	ErrBotSetEmpty      = errors.New("bot set cannot be empty")
	ErrConfigValidation = errors.New("configuration validation failed")
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// StageConfig holds the knobs common to every network-bound stage.
type StageConfig struct {
	// MaxTokens limits the length of each generated reply.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens" validate:"required,min=1,max=16000"`

	// Temperature controls randomness in bot generation (0.0-1.0).
	Temperature float64 `yaml:"temperature" json:"temperature" validate:"min=0.0,max=1.0"`

	// Timeout bounds the whole stage, covering every bot call it makes.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"required,min=1s,max=600s"`

	// MaxConcurrency limits the number of concurrent bot calls.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency" validate:"required,min=1,max=50"`
}

// DefaultStageConfig returns a StageConfig with sensible defaults for
// answer generation.
func DefaultStageConfig() StageConfig {
	return StageConfig{
		MaxTokens:      DefaultAnswerMaxTokens,
		Temperature:    0.7,
		Timeout:        DefaultTimeoutSeconds * time.Second,
		MaxConcurrency: DefaultMaxConcurrency,
	}
}

// callOptions builds the per-call options map from a stage config.
func (c StageConfig) callOptions() map[string]any {
	return map[string]any{
		"max_tokens":  c.MaxTokens,
		"temperature": c.Temperature,
	}
}
