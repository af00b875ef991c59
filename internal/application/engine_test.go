package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-quorum/internal/domain"
	"github.com/ahrav/go-quorum/internal/ports"
	"github.com/ahrav/go-quorum/internal/testutils"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Orchestration.StageTimeout = 10 * time.Second
	return cfg
}

// scriptedBot builds a mock that answers the question, replies to
// clarifications, and hands out a fixed score when asked to evaluate.
func scriptedBot(answer, clarified, score string) *testutils.MockBotClient {
	return testutils.NewMockBotClient("mock").
		AddResponse(testutils.MockResponse{Pattern: "Please evaluate", Response: score}).
		AddResponse(testutils.MockResponse{Pattern: "Can you", Response: clarified}).
		AddResponse(testutils.MockResponse{Response: answer})
}

// TestEngine_RunSelectsBestClarifiedAnswer drives the full five-stage
// protocol with two bots and verifies the bot whose clarified answer
// averages higher wins.
func TestEngine_RunSelectsBestClarifiedAnswer(t *testing.T) {
	bots := ports.BotSet{
		"alpha": scriptedBot("alpha's initial answer", "alpha's clarified answer", "5"),
		"bravo": scriptedBot("bravo's initial answer", "bravo's clarified answer", "2"),
	}
	engine, err := NewEngine(testConfig(), bots, nil)
	require.NoError(t, err)
	require.NoError(t, engine.Validate())

	consensus, err := engine.Run(context.Background(), "what is the meaning of life")
	require.NoError(t, err)

	assert.Equal(t, domain.BotID("alpha"), consensus.Winner)
	assert.Equal(t, "alpha's clarified answer", consensus.Answer.Content)
	assert.InDelta(t, 5.0, consensus.AggregateScore, 1e-9)
	assert.Len(t, consensus.Trace, 2)

	// 2 initial answers + 2 initial evals + 2 clarifications +
	// 2 final evals.
	assert.Equal(t, 8, consensus.Usage.Calls)
	assert.Positive(t, consensus.Usage.Tokens)
}

// TestEngine_RunAllBotsFail verifies total exhaustion surfaces the
// defined failure, not a crash or a partial result.
func TestEngine_RunAllBotsFail(t *testing.T) {
	bots := ports.BotSet{
		"alpha": testutils.NewMockBotClient("mock").FailWith(errors.New("unreachable")),
		"bravo": testutils.NewMockBotClient("mock").FailWith(errors.New("unreachable")),
	}
	engine, err := NewEngine(testConfig(), bots, nil)
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), "anyone there")
	assert.ErrorIs(t, err, domain.ErrNoAnswer)
}

// TestEngine_RunSingleLiveBot verifies that with fewer than two live
// bots there are no peers to score, so no consensus can form.
func TestEngine_RunSingleLiveBot(t *testing.T) {
	bots := ports.BotSet{
		"alpha": scriptedBot("alpha's answer", "alpha clarified", "4"),
		"bravo": testutils.NewMockBotClient("mock").FailWith(errors.New("down")),
	}
	engine, err := NewEngine(testConfig(), bots, nil)
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrNoAnswer)
}

func TestEngine_RunEmptyQuestion(t *testing.T) {
	bots := ports.BotSet{"alpha": testutils.NewMockBotClient("mock")}
	engine, err := NewEngine(testConfig(), bots, nil)
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrQuestionEmpty)
}

// TestEngine_RunsAreIsolated verifies an engine can serve concurrent
// runs without state bleeding between them.
func TestEngine_RunsAreIsolated(t *testing.T) {
	bots := ports.BotSet{
		"alpha": scriptedBot("answer a", "clarified a", "5"),
		"bravo": scriptedBot("answer b", "clarified b", "2"),
	}
	engine, err := NewEngine(testConfig(), bots, nil)
	require.NoError(t, err)

	results := make(chan error, 4)
	for range 4 {
		go func() {
			consensus, err := engine.Run(context.Background(), "same question")
			if err == nil && consensus.Winner != "alpha" {
				err = errors.New("unexpected winner")
			}
			results <- err
		}()
	}
	for range 4 {
		assert.NoError(t, <-results)
	}
}

// TestEngine_RunRecordsMetrics verifies a run reports every stage's
// latency and each handed-out peer score through the collector.
func TestEngine_RunRecordsMetrics(t *testing.T) {
	bots := ports.BotSet{
		"alpha": scriptedBot("answer a", "clarified a", "5"),
		"bravo": scriptedBot("answer b", "clarified b", "2"),
	}
	recorder := testutils.NewMetricsRecorder()
	engine, err := NewEngine(testConfig(), bots, recorder)
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), "what is the meaning of life")
	require.NoError(t, err)

	stages := make(map[string]int)
	for _, obs := range recorder.Latencies() {
		require.Equal(t, "quorum_stage_duration_seconds", obs.Metric)
		assert.GreaterOrEqual(t, obs.Value, 0.0)
		stages[obs.Labels["stage"]]++
	}
	assert.Equal(t, map[string]int{
		"responder":    1,
		"initial_eval": 1,
		"clarify":      1,
		"final_eval":   1,
		"selector":     1,
	}, stages)

	// Two bots score one peer each per round.
	rounds := make(map[string]int)
	for _, obs := range recorder.Histograms() {
		require.Equal(t, "quorum_peer_scores", obs.Metric)
		assert.GreaterOrEqual(t, obs.Value, 1.0)
		assert.LessOrEqual(t, obs.Value, 5.0)
		rounds[obs.Labels["round"]]++
	}
	assert.Equal(t, map[string]int{"initial": 2, "clarification": 2}, rounds)
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Orchestration.AnswerMaxTokens = 0

	_, err := NewEngine(cfg, ports.BotSet{"a": testutils.NewMockBotClient("mock")}, nil)
	assert.Error(t, err)
}

func TestNewEngine_EmptyBotSet(t *testing.T) {
	_, err := NewEngine(testConfig(), ports.BotSet{}, nil)
	assert.Error(t, err)
}
