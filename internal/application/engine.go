package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-quorum/infrastructure/units"
	"github.com/ahrav/go-quorum/internal/domain"
	"github.com/ahrav/go-quorum/internal/ports"
)

// ErrConsensusMissing indicates the pipeline completed without storing
// a consensus, which means a stage broke its contract.
var ErrConsensusMissing = errors.New("consensus not found in state")

// Engine drives the two-round orchestration protocol over a fixed bot
// set: initial answers, initial peer scores, targeted clarification,
// re-scoring, then selection. The five stages run strictly in sequence;
// a later stage never starts before the previous one finished.
//
// The engine holds no state between runs. Each Run builds a fresh state
// and discards it once the consensus is returned, so a single Engine is
// safe for concurrent runs.
type Engine struct {
	stages  []ports.Unit
	tracer  trace.Tracer
	metrics ports.MetricsCollector
}

// NewEngine assembles the stage pipeline for the given configuration
// and bot set. A nil metrics collector disables metric recording.
func NewEngine(cfg Config, bots ports.BotSet, metrics ports.MetricsCollector) (*Engine, error) {
	answerCfg := units.StageConfig{
		MaxTokens:      cfg.Orchestration.AnswerMaxTokens,
		Temperature:    cfg.Orchestration.Temperature,
		Timeout:        cfg.Orchestration.StageTimeout,
		MaxConcurrency: cfg.Orchestration.MaxConcurrency,
	}
	evalCfg := answerCfg
	evalCfg.MaxTokens = cfg.Orchestration.EvalMaxTokens

	responder, err := units.NewResponderUnit("responder", bots, answerCfg)
	if err != nil {
		return nil, fmt.Errorf("responder: %w", err)
	}
	initialEval, err := units.NewPeerEvalUnit(
		"initial_eval", bots, evalCfg,
		domain.KeyResponses, domain.KeyScores, domain.RoundInitial, metrics,
	)
	if err != nil {
		return nil, fmt.Errorf("initial_eval: %w", err)
	}
	clarify, err := units.NewClarifyUnit("clarify", bots, answerCfg)
	if err != nil {
		return nil, fmt.Errorf("clarify: %w", err)
	}
	finalEval, err := units.NewPeerEvalUnit(
		"final_eval", bots, evalCfg,
		domain.KeyClarifications, domain.KeyFinalScores, domain.RoundClarification, metrics,
	)
	if err != nil {
		return nil, fmt.Errorf("final_eval: %w", err)
	}
	selector, err := units.NewSelectorUnit("selector")
	if err != nil {
		return nil, fmt.Errorf("selector: %w", err)
	}

	return &Engine{
		stages:  []ports.Unit{responder, initialEval, clarify, finalEval, selector},
		tracer:  otel.Tracer("quorum-engine"),
		metrics: metrics,
	}, nil
}

// Run executes one full orchestration for the question and returns the
// consensus. It returns domain.ErrNoAnswer when no bot produced a
// scorable clarified answer; every other error indicates an engine
// level fault rather than backend flakiness, which the stages absorb.
func (e *Engine) Run(ctx context.Context, question string) (*domain.Consensus, error) {
	if question == "" {
		return nil, domain.ErrQuestionEmpty
	}

	ctx, span := e.tracer.Start(ctx, "Engine.Run",
		trace.WithAttributes(
			attribute.Int("question.length", len(question)),
			attribute.Int("stages.count", len(e.stages)),
		),
	)
	defer span.End()

	state := domain.With(domain.NewState(), domain.KeyQuestion, question)

	for _, stage := range e.stages {
		start := time.Now()
		next, err := stage.Execute(ctx, state)
		if err != nil {
			span.RecordError(err)
			if errors.Is(err, domain.ErrNoAnswer) {
				return nil, err
			}
			return nil, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
		elapsed := time.Since(start)
		span.AddEvent("stage completed", trace.WithAttributes(
			attribute.String("stage", stage.Name()),
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
		))
		if e.metrics != nil {
			e.metrics.RecordLatency("quorum_stage_duration_seconds", elapsed,
				map[string]string{"stage": stage.Name()})
		}
		state = next
	}

	consensus, ok := domain.Get(state, domain.KeyConsensus)
	if !ok || consensus == nil {
		span.RecordError(ErrConsensusMissing)
		return nil, ErrConsensusMissing
	}

	span.SetAttributes(
		attribute.String("consensus.winner", string(consensus.Winner)),
		attribute.Float64("consensus.score", consensus.AggregateScore),
	)
	return consensus, nil
}

// Validate checks every stage's configuration without executing.
func (e *Engine) Validate() error {
	for _, stage := range e.stages {
		if err := stage.Validate(); err != nil {
			return fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
	}
	return nil
}
