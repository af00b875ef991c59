package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicDefaultModel is the default Claude model for anthropic bots.
const AnthropicDefaultModel = "claude-3-5-sonnet-20241022"

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider adapts Anthropic's Messages API to the CoreBot
// interface so a Claude backend can serve as a quorum bot.
type anthropicProvider struct {
	client         anthropic.Client
	model          string
	tokenEstimator TokenEstimator
}

func newAnthropicProvider(config ClientConfig) (CoreBot, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithBaseURL(validatedURL))
	}

	return &anthropicProvider{
		client:         anthropic.NewClient(opts...),
		model:          model,
		tokenEstimator: estimatorOrDefault(config),
	}, nil
}

// DoRequest sends one message request and concatenates the text blocks
// of the reply.
func (p *anthropicProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.model)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(options.Model),
		MaxTokens: int64(options.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if options.Temperature != nil {
		params.Temperature = anthropic.Float(clamp(*options.Temperature, 0.0, 1.0))
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", 0, 0, p.wrapError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(content.Text)
		}
	}
	reply := text.String()
	if reply == "" {
		return "", 0, 0, ErrEmptyResponse
	}

	tokensIn := int(message.Usage.InputTokens)
	tokensOut := int(message.Usage.OutputTokens)
	if tokensIn <= 0 {
		tokensIn = p.tokenEstimator.EstimateTokens(prompt)
	}
	if tokensOut <= 0 {
		tokensOut = p.tokenEstimator.EstimateTokens(reply)
	}

	return reply, tokensIn, tokensOut, nil
}

func (p *anthropicProvider) wrapError(err error) error {
	classifier := &ErrorClassifier{Provider: "anthropic"}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return classifier.ClassifyHTTPError(anthropicErr.StatusCode, "", err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return classifier.ClassifyContextError(err)
	}

	return NewProviderError("anthropic", ErrorTypeUnknown, 0, fmt.Sprintf("request failed: %v", err), err)
}

// Model returns the configured Claude model name.
func (p *anthropicProvider) Model() string { return p.model }
