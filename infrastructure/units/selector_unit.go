package units

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-quorum/internal/domain"
	"github.com/ahrav/go-quorum/internal/ports"
)

var _ ports.Unit = (*SelectorUnit)(nil)

// SelectorUnit reduces the final score table to the single best
// clarified answer. A bot is a candidate only if it has at least one
// scored peer in the final round and its own clarified answer
// succeeded; candidates are ranked by the arithmetic mean of their row,
// with ties broken by the lexicographically smallest BotID so repeated
// runs over identical tables pick the same winner.
type SelectorUnit struct {
	name   string
	tracer trace.Tracer
}

// NewSelectorUnit creates a SelectorUnit. The selector is pure
// aggregation and needs no bot access.
func NewSelectorUnit(name string) (*SelectorUnit, error) {
	if name == "" {
		return nil, ErrUnitNameEmpty
	}
	return &SelectorUnit{
		name:   name,
		tracer: otel.Tracer("selector-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (su *SelectorUnit) Name() string { return su.name }

// Execute picks the winning clarified answer and stores the Consensus.
// It returns ErrNoAnswer when no bot has both a clarified answer and a
// valid peer score in the final round.
func (su *SelectorUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := su.tracer.Start(ctx, "SelectorUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "selector"),
			attribute.String("unit.id", su.name),
		),
	)
	defer span.End()

	clarified, ok := domain.Get(state, domain.KeyClarifications)
	if !ok {
		span.RecordError(ErrResponsesMissing)
		return state, ErrResponsesMissing
	}
	finalScores, ok := domain.Get(state, domain.KeyFinalScores)
	if !ok {
		span.RecordError(ErrScoresMissing)
		return state, ErrScoresMissing
	}

	winner, mean, found := selectBest(clarified, finalScores)
	if !found {
		span.RecordError(domain.ErrNoAnswer)
		return state, domain.ErrNoAnswer
	}

	span.SetAttributes(
		attribute.String("consensus.winner", string(winner)),
		attribute.Float64("consensus.score", mean),
	)

	usage, _ := domain.Get(state, domain.KeyUsage)
	consensus := &domain.Consensus{
		Winner:         winner,
		Answer:         clarified[winner].Answer,
		AggregateScore: mean,
		Trace:          buildTrace(state, clarified),
		Usage:          usage,
		Timestamp:      time.Now().UTC(),
	}

	return domain.With(state, domain.KeyConsensus, consensus), nil
}

// selectBest returns the candidate with the highest row mean. Ties go
// to the lexicographically smallest BotID. The third return value is
// false when no bot qualifies.
func selectBest(
	clarified domain.ResponseSet,
	scores domain.ScoreTable,
) (domain.BotID, float64, bool) {
	// Live() returns bots in lexicographic order, which is what makes
	// the tie-break deterministic.
	candidates := clarified.Live()

	var (
		winner domain.BotID
		best   float64
		found  bool
	)
	for _, id := range candidates {
		mean, ok := scores.Mean(id)
		if !ok {
			// No scored peers in the final round; excluded rather
			// than treated as a zero score.
			continue
		}
		if !found || mean > best {
			winner, best, found = id, mean, true
		}
	}
	return winner, best, found
}

// buildTrace assembles per-bot execution detail from the run's state.
func buildTrace(state domain.State, clarified domain.ResponseSet) []domain.BotTrace {
	initial, _ := domain.Get(state, domain.KeyResponses)
	initialScores, _ := domain.Get(state, domain.KeyScores)
	finalScores, _ := domain.Get(state, domain.KeyFinalScores)
	questions, _ := domain.Get(state, domain.KeyClarifyQuestions)

	bots := clarified.Live()
	traces := make([]domain.BotTrace, 0, len(bots))
	for _, id := range bots {
		t := domain.BotTrace{
			Bot:                   id,
			ClarificationQuestion: questions[id],
		}
		if mean, ok := initialScores.Mean(id); ok {
			t.InitialScore = mean
		}
		if mean, ok := finalScores.Mean(id); ok {
			t.FinalScore = mean
		}
		if first, ok := initial[id]; ok && first.OK() {
			t.ClarificationGain = 1.0 - similarity(first.Answer.Content, clarified[id].Answer.Content)
		}
		traces = append(traces, t)
	}
	return traces
}

// Validate checks if the unit is properly configured and ready for execution.
func (su *SelectorUnit) Validate() error {
	if su.name == "" {
		return fmt.Errorf("%w", ErrUnitNameEmpty)
	}
	return nil
}
