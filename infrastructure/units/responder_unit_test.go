package units

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

func testStageConfig() StageConfig {
	return StageConfig{
		MaxTokens:      150,
		Temperature:    0.7,
		Timeout:        10 * time.Second,
		MaxConcurrency: 5,
	}
}

func questionState(q string) domain.State {
	return domain.With(domain.NewState(), domain.KeyQuestion, q)
}

func TestNewResponderUnit_Validation(t *testing.T) {
	bots := ports.BotSet{"a": testutils.NewMockBotClient("mock")}

	_, err := NewResponderUnit("", bots, testStageConfig())
	assert.ErrorIs(t, err, ErrUnitNameEmpty)

	_, err = NewResponderUnit("responder", ports.BotSet{}, testStageConfig())
	assert.ErrorIs(t, err, ErrBotSetEmpty)

	bad := testStageConfig()
	bad.MaxTokens = 0
	_, err = NewResponderUnit("responder", bots, bad)
	assert.ErrorIs(t, err, ErrConfigValidation)
}

// TestResponderUnit_OneEntryPerBot verifies the fan-out returns exactly
// one tagged outcome per configured bot when every bot succeeds.
func TestResponderUnit_OneEntryPerBot(t *testing.T) {
	bots := ports.BotSet{
		"alpha":   testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Response: "answer from alpha"}),
		"bravo":   testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Response: "answer from bravo"}),
		"charlie": testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Response: "answer from charlie"}),
	}
	unit, err := NewResponderUnit("responder", bots, testStageConfig())
	require.NoError(t, err)

	state, err := unit.Execute(context.Background(), questionState("what is a quorum"))
	require.NoError(t, err)

	responses, ok := domain.Get(state, domain.KeyResponses)
	require.True(t, ok)
	require.Len(t, responses, 3)
	for id := range bots {
		r, present := responses[id]
		require.True(t, present, "bot %s missing from result", id)
		assert.True(t, r.OK())
		assert.Equal(t, id, r.Answer.Bot)
		assert.NotEmpty(t, r.Answer.Content)
	}
}

// TestResponderUnit_FailureNeverCancelsSiblings verifies partial
// failure tolerance: one broken bot does not disturb the others, and
// its failure is recorded rather than propagated.
func TestResponderUnit_FailureNeverCancelsSiblings(t *testing.T) {
	boom := errors.New("transport exploded")
	bots := ports.BotSet{
		"alpha":   testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Response: "alpha's real answer"}),
		"bravo":   testutils.NewMockBotClient("m").FailWith(boom),
		"charlie": testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Response: "charlie's real answer"}),
	}
	unit, err := NewResponderUnit("responder", bots, testStageConfig())
	require.NoError(t, err)

	state, err := unit.Execute(context.Background(), questionState("what is a quorum"))
	require.NoError(t, err, "a single bot failure must not fail the stage")

	responses, ok := domain.Get(state, domain.KeyResponses)
	require.True(t, ok)
	require.Len(t, responses, 3)

	assert.True(t, responses["alpha"].OK())
	assert.Equal(t, "alpha's real answer", responses["alpha"].Answer.Content)
	assert.True(t, responses["charlie"].OK())
	assert.Equal(t, "charlie's real answer", responses["charlie"].Answer.Content)

	require.False(t, responses["bravo"].OK())
	assert.ErrorIs(t, responses["bravo"].Err, boom)
	var botErr *domain.BotError
	require.ErrorAs(t, responses["bravo"].Err, &botErr)
	assert.Equal(t, domain.BotID("bravo"), botErr.Bot)

	assert.Equal(t, []domain.BotID{"alpha", "charlie"}, responses.Live())
}

func TestResponderUnit_AllBotsFail(t *testing.T) {
	bots := ports.BotSet{
		"alpha": testutils.NewMockBotClient("m").FailWith(errors.New("down")),
		"bravo": testutils.NewMockBotClient("m").FailWith(errors.New("down")),
	}
	unit, err := NewResponderUnit("responder", bots, testStageConfig())
	require.NoError(t, err)

	state, err := unit.Execute(context.Background(), questionState("anyone home"))
	require.NoError(t, err, "total bot failure surfaces later, at selection")

	responses, ok := domain.Get(state, domain.KeyResponses)
	require.True(t, ok)
	assert.Len(t, responses, 2)
	assert.Empty(t, responses.Live())
}

func TestResponderUnit_MissingQuestion(t *testing.T) {
	bots := ports.BotSet{"a": testutils.NewMockBotClient("m")}
	unit, err := NewResponderUnit("responder", bots, testStageConfig())
	require.NoError(t, err)

	_, err = unit.Execute(context.Background(), domain.NewState())
	assert.ErrorIs(t, err, ErrQuestionMissing)

	_, err = unit.Execute(context.Background(), questionState(""))
	assert.ErrorIs(t, err, domain.ErrQuestionEmpty)
}

func TestResponderUnit_AccumulatesUsage(t *testing.T) {
	bots := ports.BotSet{
		"alpha": testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Response: "four token reply", TokensUsed: 4}),
		"bravo": testutils.NewMockBotClient("m").AddResponse(testutils.MockResponse{Response: "four token reply", TokensUsed: 4}),
	}
	unit, err := NewResponderUnit("responder", bots, testStageConfig())
	require.NoError(t, err)

	state, err := unit.Execute(context.Background(), questionState("count me"))
	require.NoError(t, err)

	usage, ok := domain.Get(state, domain.KeyUsage)
	require.True(t, ok)
	assert.Equal(t, 2, usage.Calls)
	assert.Positive(t, usage.Tokens)
}
