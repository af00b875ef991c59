package units

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-quorum/internal/domain"
	"github.com/ahrav/go-quorum/internal/ports"
	"github.com/ahrav/go-quorum/internal/testutils"
)

func newPeerEvalForTest(t *testing.T, bots ports.BotSet) *PeerEvalUnit {
	t.Helper()
	unit, err := NewPeerEvalUnit(
		"initial_eval", bots, testStageConfig(),
		domain.KeyResponses, domain.KeyScores, domain.RoundInitial, nil,
	)
	require.NoError(t, err)
	return unit
}

func responsesState(responses domain.ResponseSet) domain.State {
	return domain.With(domain.NewState(), domain.KeyResponses, responses)
}

// TestPeerEvalUnit_NoSelfPairs verifies the table never contains an
// evaluator scoring itself and covers every other live ordered pair.
func TestPeerEvalUnit_NoSelfPairs(t *testing.T) {
	bots := ports.BotSet{
		"alpha":   testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Pattern: "evaluate", Response: "4"}),
		"bravo":   testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Pattern: "evaluate", Response: "I rate it 2"}),
		"charlie": testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Pattern: "evaluate", Response: "5"}),
	}
	responses := domain.ResponseSet{
		"alpha":   {Answer: domain.Answer{Bot: "alpha", Content: "answer a"}},
		"bravo":   {Answer: domain.Answer{Bot: "bravo", Content: "answer b"}},
		"charlie": {Answer: domain.Answer{Bot: "charlie", Content: "answer c"}},
	}
	unit := newPeerEvalForTest(t, bots)

	state, err := unit.Execute(context.Background(), responsesState(responses))
	require.NoError(t, err)

	scores, ok := domain.Get(state, domain.KeyScores)
	require.True(t, ok)
	require.Len(t, scores, 3)
	for evaluator, row := range scores {
		assert.NotContains(t, row, evaluator, "self-pair for %s", evaluator)
		assert.Len(t, row, 2, "evaluator %s must score both peers", evaluator)
		for subject, score := range row {
			assert.GreaterOrEqual(t, score, 1, "%s->%s", evaluator, subject)
			assert.LessOrEqual(t, score, 5, "%s->%s", evaluator, subject)
		}
	}

	// Each evaluator's configured reply drives the scores it hands out.
	assert.Equal(t, 4, scores["alpha"]["bravo"])
	assert.Equal(t, 2, scores["bravo"]["alpha"])
	assert.Equal(t, 5, scores["charlie"]["alpha"])
}

// TestPeerEvalUnit_MalformedAndFailedRepliesDefaultToNeutral verifies
// score parsing tolerance: no extractable digit, or a failed call, both
// yield exactly the neutral score.
func TestPeerEvalUnit_MalformedAndFailedRepliesDefaultToNeutral(t *testing.T) {
	bots := ports.BotSet{
		"alpha": testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Pattern: "evaluate", Response: "wonderful stuff, no number here"}),
		"bravo": testutils.NewMockBotClient("m").FailWith(errors.New("rate limited")),
	}
	responses := domain.ResponseSet{
		"alpha": {Answer: domain.Answer{Bot: "alpha", Content: "answer a"}},
		"bravo": {Answer: domain.Answer{Bot: "bravo", Content: "answer b"}},
	}
	unit := newPeerEvalForTest(t, bots)

	state, err := unit.Execute(context.Background(), responsesState(responses))
	require.NoError(t, err, "evaluator failures are absorbed, never propagated")

	scores, ok := domain.Get(state, domain.KeyScores)
	require.True(t, ok)
	assert.Equal(t, domain.NeutralScore, scores["alpha"]["bravo"], "unparseable reply")
	assert.Equal(t, domain.NeutralScore, scores["bravo"]["alpha"], "failed evaluation call")
}

// TestPeerEvalUnit_OnlyLivePairs verifies bots that failed in the round
// appear nowhere in the table, neither as evaluator nor as subject.
func TestPeerEvalUnit_OnlyLivePairs(t *testing.T) {
	bots := ports.BotSet{
		"alpha":   testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Pattern: "evaluate", Response: "4"}),
		"bravo":   testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Pattern: "evaluate", Response: "4"}),
		"charlie": testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Pattern: "evaluate", Response: "4"}),
	}
	responses := domain.ResponseSet{
		"alpha":   {Answer: domain.Answer{Bot: "alpha", Content: "answer a"}},
		"bravo":   {Err: errors.New("timed out")},
		"charlie": {Answer: domain.Answer{Bot: "charlie", Content: "answer c"}},
	}
	unit := newPeerEvalForTest(t, bots)

	state, err := unit.Execute(context.Background(), responsesState(responses))
	require.NoError(t, err)

	scores, ok := domain.Get(state, domain.KeyScores)
	require.True(t, ok)
	assert.NotContains(t, scores, domain.BotID("bravo"))
	assert.NotContains(t, scores["alpha"], domain.BotID("bravo"))
	assert.NotContains(t, scores["charlie"], domain.BotID("bravo"))
	assert.Len(t, scores["alpha"], 1)
	assert.Len(t, scores["charlie"], 1)
}

// TestPeerEvalUnit_FewerThanTwoLive verifies a round with no scorable
// pairs yields an empty table rather than an error; selection handles
// the exhaustion.
func TestPeerEvalUnit_FewerThanTwoLive(t *testing.T) {
	bots := ports.BotSet{
		"alpha": testutils.NewMockBotClient("m"),
		"bravo": testutils.NewMockBotClient("m"),
	}
	responses := domain.ResponseSet{
		"alpha": {Answer: domain.Answer{Bot: "alpha", Content: "only me"}},
		"bravo": {Err: errors.New("down")},
	}
	unit := newPeerEvalForTest(t, bots)

	state, err := unit.Execute(context.Background(), responsesState(responses))
	require.NoError(t, err)

	scores, ok := domain.Get(state, domain.KeyScores)
	require.True(t, ok)
	assert.Empty(t, scores)
}

func TestPeerEvalUnit_MissingResponses(t *testing.T) {
	bots := ports.BotSet{"a": testutils.NewMockBotClient("m")}
	unit := newPeerEvalForTest(t, bots)

	_, err := unit.Execute(context.Background(), domain.NewState())
	assert.ErrorIs(t, err, ErrResponsesMissing)
}

// TestPeerEvalUnit_RecordsScoreDistribution verifies every score in the
// table, defaulted or parsed, reaches the collector with the round label.
func TestPeerEvalUnit_RecordsScoreDistribution(t *testing.T) {
	bots := ports.BotSet{
		"alpha": testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Pattern: "evaluate", Response: "4"}),
		"bravo": testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Pattern: "evaluate", Response: "no digit here"}),
	}
	responses := domain.ResponseSet{
		"alpha": {Answer: domain.Answer{Bot: "alpha", Content: "answer a"}},
		"bravo": {Answer: domain.Answer{Bot: "bravo", Content: "answer b"}},
	}
	recorder := testutils.NewMetricsRecorder()
	unit, err := NewPeerEvalUnit(
		"final_eval", bots, testStageConfig(),
		domain.KeyResponses, domain.KeyScores, domain.RoundClarification, recorder,
	)
	require.NoError(t, err)

	_, err = unit.Execute(context.Background(), responsesState(responses))
	require.NoError(t, err)

	observed := recorder.Histograms()
	require.Len(t, observed, 2)
	values := make([]float64, 0, len(observed))
	for _, obs := range observed {
		assert.Equal(t, "quorum_peer_scores", obs.Metric)
		assert.Equal(t, string(domain.RoundClarification), obs.Labels["round"])
		values = append(values, obs.Value)
	}
	assert.ElementsMatch(t, []float64{4, float64(domain.NeutralScore)}, values)
}

// TestPeerEvalUnit_EvaluationPromptCarriesSubjectAnswer verifies the
// evaluator is shown the subject's answer text in the fixed rating
// instruction.
func TestPeerEvalUnit_EvaluationPromptCarriesSubjectAnswer(t *testing.T) {
	alpha := testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Pattern: "evaluate", Response: "3"})
	bots := ports.BotSet{
		"alpha": alpha,
		"bravo": testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Pattern: "evaluate", Response: "3"}),
	}
	responses := domain.ResponseSet{
		"alpha": {Answer: domain.Answer{Bot: "alpha", Content: "alpha's take"}},
		"bravo": {Answer: domain.Answer{Bot: "bravo", Content: "bravo's unmistakable answer"}},
	}
	unit := newPeerEvalForTest(t, bots)

	_, err := unit.Execute(context.Background(), responsesState(responses))
	require.NoError(t, err)

	prompts := alpha.Prompts()
	require.Len(t, prompts, 1)
	assert.Equal(t,
		"Please evaluate the following response on a scale of 1 to 5 for quality and relevance: bravo's unmistakable answer",
		prompts[0])
}
