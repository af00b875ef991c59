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

var _ ports.Unit = (*PeerEvalUnit)(nil)

// PeerEvalUnit asks every live bot to score every other live bot's
// answer on a 1 to 5 scale. It reads a ResponseSet from one state key
// and writes a ScoreTable to another, so the same unit serves both the
// initial and the clarification round.
//
// Failures are absorbed: a transport error or an unparseable reply
// yields the neutral score instead of failing the stage, so a flaky
// evaluator degrades score accuracy but never availability. The output
// never contains a self-pair and never references a bot that failed in
// the round being scored.
type PeerEvalUnit struct {
	name      string
	config    StageConfig
	bots      ports.BotSet
	responses domain.Key[domain.ResponseSet]
	scores    domain.Key[domain.ScoreTable]
	round     domain.RoundKind
	metrics   ports.MetricsCollector
	tracer    trace.Tracer
}

// NewPeerEvalUnit creates a PeerEvalUnit that scores the responses
// stored under the responses key and writes the table under the scores
// key. The round kind only labels spans and metrics. A nil metrics
// collector disables score recording.
func NewPeerEvalUnit(
	name string,
	bots ports.BotSet,
	config StageConfig,
	responses domain.Key[domain.ResponseSet],
	scores domain.Key[domain.ScoreTable],
	round domain.RoundKind,
	metrics ports.MetricsCollector,
) (*PeerEvalUnit, error) {
	if name == "" {
		return nil, ErrUnitNameEmpty
	}
	if len(bots) == 0 {
		return nil, ErrBotSetEmpty
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}

	return &PeerEvalUnit{
		name:      name,
		config:    config,
		bots:      bots,
		responses: responses,
		scores:    scores,
		round:     round,
		metrics:   metrics,
		tracer:    otel.Tracer("peer-eval-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (pu *PeerEvalUnit) Name() string { return pu.name }

// Execute builds the pairwise score table for the round's live bots.
func (pu *PeerEvalUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := pu.tracer.Start(ctx, "PeerEvalUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "peer_eval"),
			attribute.String("unit.id", pu.name),
			attribute.String("round", string(pu.round)),
		),
	)
	defer span.End()

	responses, ok := domain.Get(state, pu.responses)
	if !ok {
		span.RecordError(ErrResponsesMissing)
		return state, ErrResponsesMissing
	}

	ctx, cancel := context.WithTimeout(ctx, pu.config.Timeout)
	defer cancel()

	live := responses.Live()
	span.SetAttributes(
		attribute.Int("bots.live", len(live)),
		attribute.Int("pairs.count", len(live)*(len(live)-1)),
	)

	table, usage := pu.scoreAll(ctx, live, responses)

	state = domain.With(state, pu.scores, table)
	return addUsage(state, usage), nil
}

// scoreAll evaluates every ordered live pair. Evaluators run
// concurrently; within one evaluator the subjects are scored in
// sequence, in lexicographic order.
func (pu *PeerEvalUnit) scoreAll(
	ctx context.Context,
	live []domain.BotID,
	responses domain.ResponseSet,
) (domain.ScoreTable, domain.Usage) {
	table := make(domain.ScoreTable, len(live))
	options := pu.config.callOptions()

	var mu sync.Mutex
	var usage domain.Usage

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pu.config.MaxConcurrency)

	for _, evaluator := range live {
		g.Go(func() error {
			row := make(map[domain.BotID]int, len(live)-1)
			var rowUsage domain.Usage

			for _, subject := range live {
				if subject == evaluator {
					continue
				}
				prompt := domain.EvaluationPrompt(responses[subject].Answer.Content)

				score := domain.NeutralScore
				reply, tokensIn, tokensOut, err := pu.bots[evaluator].AskWithUsage(ctx, prompt, options)
				rowUsage.Calls++
				rowUsage.Tokens += tokensIn + tokensOut
				if err == nil {
					if parsed, ok := domain.ParseScore(reply); ok {
						score = parsed
					}
				}
				row[subject] = score
				if pu.metrics != nil {
					pu.metrics.RecordHistogram("quorum_peer_scores", float64(score),
						map[string]string{"round": string(pu.round)})
				}
			}

			mu.Lock()
			defer mu.Unlock()
			if len(row) > 0 {
				table[evaluator] = row
			}
			usage.Tokens += rowUsage.Tokens
			usage.Calls += rowUsage.Calls
			return nil
		})
	}

	_ = g.Wait()

	return table, usage
}

// Validate checks if the unit is properly configured and ready for execution.
func (pu *PeerEvalUnit) Validate() error {
	if len(pu.bots) == 0 {
		return ErrBotSetEmpty
	}
	if err := validate.Struct(pu.config); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}
	return nil
}
