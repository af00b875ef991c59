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

var _ ports.Unit = (*ClarifyUnit)(nil)

// ClarifyUnit runs the targeted re-query round. For every bot B with a
// row in the initial score table it finds the peer P that B rated
// worst, derives a clarification question from P's answer, and re-asks
// B that question. The cross-wiring is deliberate: B clarifies about
// P's content, it is not P who gets re-asked.
//
// Results are keyed by the bot that was re-asked. A failed re-query is
// recorded as that bot's failure, which drops it from the final round.
type ClarifyUnit struct {
	name   string
	config StageConfig
	bots   ports.BotSet
	tracer trace.Tracer
}

// NewClarifyUnit creates a ClarifyUnit over the given bot set.
func NewClarifyUnit(name string, bots ports.BotSet, config StageConfig) (*ClarifyUnit, error) {
	if name == "" {
		return nil, ErrUnitNameEmpty
	}
	if len(bots) == 0 {
		return nil, ErrBotSetEmpty
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}

	return &ClarifyUnit{
		name:   name,
		config: config,
		bots:   bots,
		tracer: otel.Tracer("clarify-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (cu *ClarifyUnit) Name() string { return cu.name }

// Execute derives one clarification question per scored bot and issues
// the re-queries concurrently. It stores the clarified responses and
// the question each bot was asked.
func (cu *ClarifyUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := cu.tracer.Start(ctx, "ClarifyUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "clarify"),
			attribute.String("unit.id", cu.name),
		),
	)
	defer span.End()

	responses, ok := domain.Get(state, domain.KeyResponses)
	if !ok {
		span.RecordError(ErrResponsesMissing)
		return state, ErrResponsesMissing
	}
	scores, ok := domain.Get(state, domain.KeyScores)
	if !ok {
		span.RecordError(ErrScoresMissing)
		return state, ErrScoresMissing
	}

	ctx, cancel := context.WithTimeout(ctx, cu.config.Timeout)
	defer cancel()

	questions := cu.deriveQuestions(responses, scores)
	span.SetAttributes(attribute.Int("clarifications.count", len(questions)))

	clarified, usage := cu.askAll(ctx, questions)

	state = domain.With(state, domain.KeyClarifications, clarified)
	state = domain.With(state, domain.KeyClarifyQuestions, questions)
	return addUsage(state, usage), nil
}

// deriveQuestions builds the per-bot clarification questions from each
// scored bot's worst-rated peer answer.
func (cu *ClarifyUnit) deriveQuestions(
	responses domain.ResponseSet,
	scores domain.ScoreTable,
) map[domain.BotID]string {
	questions := make(map[domain.BotID]string, len(scores))
	for evaluator := range scores {
		worst, ok := scores.LowestSubject(evaluator)
		if !ok {
			continue
		}
		questions[evaluator] = domain.ClarificationQuestion(responses[worst].Answer.Content)
	}
	return questions
}

// askAll re-asks each bot its own clarification question, joining all
// calls regardless of individual failures.
func (cu *ClarifyUnit) askAll(
	ctx context.Context,
	questions map[domain.BotID]string,
) (domain.ResponseSet, domain.Usage) {
	options := cu.config.callOptions()

	var mu sync.Mutex
	clarified := make(domain.ResponseSet, len(questions))
	var usage domain.Usage

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cu.config.MaxConcurrency)

	for id, question := range questions {
		g.Go(func() error {
			text, tokensIn, tokensOut, err := cu.bots[id].AskWithUsage(ctx, question, options)

			mu.Lock()
			defer mu.Unlock()
			usage.Calls++
			usage.Tokens += tokensIn + tokensOut
			if err != nil {
				clarified[id] = domain.Response{
					Err: domain.NewBotError(id, "clarify", err),
				}
				return nil
			}
			clarified[id] = domain.Response{
				Answer: domain.Answer{Bot: id, Content: text},
			}
			return nil
		})
	}

	_ = g.Wait()

	return clarified, usage
}

// Validate checks if the unit is properly configured and ready for execution.
func (cu *ClarifyUnit) Validate() error {
	if len(cu.bots) == 0 {
		return ErrBotSetEmpty
	}
	if err := validate.Struct(cu.config); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}
	return nil
}
