package llm

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// CompletionsDefaultModel is used when a completions bot does not name a
// model. The wire format itself carries no model semantics; the field is
// only required by the request schema.
const CompletionsDefaultModel = "gpt-3.5-turbo-instruct"

func init() {
	RegisterProviderFactory("completions", newCompletionsProvider)
}

// completionsProvider speaks the legacy completions wire format every
// stock bot backend implements: POST with a Bearer credential and a JSON
// body {"prompt": ..., "max_tokens": ...}, answered with
// {"choices":[{"text": ...}]}. Only choices[0].text is consumed.
type completionsProvider struct {
	client          *openai.Client
	model           string
	tokenEstimator  TokenEstimator
	errorClassifier *ErrorClassifier
}

// newCompletionsProvider builds the provider for one bot endpoint.
// Each bot has its own URL, so BaseURL is mandatory here even though
// other providers can fall back to their service default.
func newCompletionsProvider(config ClientConfig) (CoreBot, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.BaseURL == "" {
		return nil, ErrEmptyBaseURL
	}

	model := config.Model
	if model == "" {
		model = CompletionsDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	validatedURL, err := ValidateBaseURL(config.BaseURL)
	if err != nil {
		return nil, err
	}
	clientConfig.BaseURL = validatedURL

	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &completionsProvider{
		client:          openai.NewClientWithConfig(clientConfig),
		model:           model,
		tokenEstimator:  estimatorOrDefault(config),
		errorClassifier: &ErrorClassifier{Provider: "completions"},
	}, nil
}

// DoRequest sends one completion request and returns the first choice's
// text with token usage.
func (p *completionsProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.model)

	req := openai.CompletionRequest{
		Model:     options.Model,
		Prompt:    prompt,
		MaxTokens: options.MaxTokens,
	}
	if options.Temperature != nil {
		req.Temperature = float32(clamp(*options.Temperature, 0.0, 2.0))
	}

	resp, err := p.client.CreateCompletion(ctx, req)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	if len(resp.Choices) == 0 {
		return "", 0, 0, ErrNoResponseChoice
	}
	text := resp.Choices[0].Text

	var promptTokens, completionTokens int
	if resp.Usage != nil {
		promptTokens = resp.Usage.PromptTokens
		completionTokens = resp.Usage.CompletionTokens
	}
	tokensIn := p.tokenCount(promptTokens, prompt)
	tokensOut := p.tokenCount(completionTokens, text)

	return text, tokensIn, tokensOut, nil
}

// tokenCount prefers the backend's reported usage, estimating only when
// the count is absent.
func (p *completionsProvider) tokenCount(actual int, text string) int {
	if actual > 0 {
		return actual
	}
	return p.tokenEstimator.EstimateTokens(text)
}

func (p *completionsProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	return NewProviderError("completions", ErrorTypeNetwork, 0, "request failed", err)
}

// Model returns the configured model identifier.
func (p *completionsProvider) Model() string { return p.model }
