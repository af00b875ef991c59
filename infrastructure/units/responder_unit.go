package units

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-quorum/internal/domain"
	"github.com/ahrav/go-quorum/internal/ports"
)

var _ ports.Unit = (*ResponderUnit)(nil)

// ResponderUnit fans the question out to every configured bot
// concurrently and records one tagged outcome per bot. A single bot's
// failure never cancels or blocks its siblings; the failure is captured
// in that bot's Response and the stage succeeds as long as the fan-out
// itself completed.
//
// The unit is stateless and thread-safe for concurrent execution.
type ResponderUnit struct {
	name   string
	config StageConfig
	bots   ports.BotSet
	tracer trace.Tracer
}

// NewResponderUnit creates a ResponderUnit over the given bot set.
// Returns an error if the name is empty, the bot set is empty, or the
// configuration fails validation.
func NewResponderUnit(name string, bots ports.BotSet, config StageConfig) (*ResponderUnit, error) {
	if name == "" {
		return nil, ErrUnitNameEmpty
	}
	if len(bots) == 0 {
		return nil, ErrBotSetEmpty
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}

	return &ResponderUnit{
		name:   name,
		config: config,
		bots:   bots,
		tracer: otel.Tracer("responder-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (ru *ResponderUnit) Name() string { return ru.name }

// Execute asks every bot the question from the state and stores a
// ResponseSet with exactly one entry per configured bot.
func (ru *ResponderUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := ru.tracer.Start(ctx, "ResponderUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "responder"),
			attribute.String("unit.id", ru.name),
			attribute.Int("bots.count", len(ru.bots)),
		),
	)
	defer span.End()

	question, ok := domain.Get(state, domain.KeyQuestion)
	if !ok {
		span.RecordError(ErrQuestionMissing)
		return state, ErrQuestionMissing
	}
	if question == "" {
		span.RecordError(domain.ErrQuestionEmpty)
		return state, domain.ErrQuestionEmpty
	}

	ctx, cancel := context.WithTimeout(ctx, ru.config.Timeout)
	defer cancel()

	responses, usage := ru.askAll(ctx, question)

	live := 0
	for _, r := range responses {
		if r.OK() {
			live++
		}
	}
	span.SetAttributes(attribute.Int("bots.live", live))

	state = domain.With(state, domain.KeyResponses, responses)
	return addUsage(state, usage), nil
}

// askAll issues one concurrent request per bot and joins them all,
// regardless of individual failures. Every requested bot appears in the
// result exactly once.
func (ru *ResponderUnit) askAll(ctx context.Context, prompt string) (domain.ResponseSet, domain.Usage) {
	options := ru.config.callOptions()

	var mu sync.Mutex
	responses := make(domain.ResponseSet, len(ru.bots))
	var usage domain.Usage

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ru.config.MaxConcurrency)

	for id, client := range ru.bots {
		g.Go(func() error {
			text, tokensIn, tokensOut, err := client.AskWithUsage(ctx, prompt, options)

			mu.Lock()
			defer mu.Unlock()
			usage.Calls++
			usage.Tokens += tokensIn + tokensOut
			if err != nil {
				responses[id] = domain.Response{
					Err: domain.NewBotError(id, "answer", err),
				}
				return nil
			}
			responses[id] = domain.Response{
				Answer: domain.Answer{Bot: id, Content: text},
			}
			return nil
		})
	}

	// Goroutines absorb their own failures, so Wait only reports a
	// broken errgroup invariant, which cannot happen here.
	_ = g.Wait()

	return responses, usage
}

// Validate checks if the unit is properly configured and ready for execution.
func (ru *ResponderUnit) Validate() error {
	if len(ru.bots) == 0 {
		return ErrBotSetEmpty
	}
	if err := validate.Struct(ru.config); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}
	return nil
}

// addUsage accumulates a stage's resource consumption into the state.
func addUsage(state domain.State, delta domain.Usage) domain.State {
	total, _ := domain.Get(state, domain.KeyUsage)
	total.Tokens += delta.Tokens
	total.Calls += delta.Calls
	return domain.With(state, domain.KeyUsage, total)
}
