package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_GetMissingKey(t *testing.T) {
	s := NewState()

	_, ok := Get(s, KeyQuestion)
	assert.False(t, ok)

	usage, ok := Get(s, KeyUsage)
	assert.False(t, ok)
	assert.Zero(t, usage)
}

func TestState_WithLeavesOriginalUnchanged(t *testing.T) {
	s1 := NewState()
	s2 := With(s1, KeyQuestion, "why is the sky blue")

	_, ok := Get(s1, KeyQuestion)
	assert.False(t, ok, "original state must not see the write")

	q, ok := Get(s2, KeyQuestion)
	require.True(t, ok)
	assert.Equal(t, "why is the sky blue", q)
}

// TestState_ContainerValuesAreCloned verifies copy-on-write isolation:
// mutating a map after storing it, or after reading it back, must not
// affect what the state holds.
func TestState_ContainerValuesAreCloned(t *testing.T) {
	responses := ResponseSet{
		"a": {Answer: Answer{Bot: "a", Content: "original"}},
	}
	s := With(NewState(), KeyResponses, responses)

	// Mutation of the caller's map after the write is invisible.
	responses["a"] = Response{Answer: Answer{Bot: "a", Content: "mutated"}}

	got, ok := Get(s, KeyResponses)
	require.True(t, ok)
	assert.Equal(t, "original", got["a"].Answer.Content)

	// Mutation of a read-back copy is invisible too.
	got["a"] = Response{Answer: Answer{Bot: "a", Content: "mutated again"}}
	again, _ := Get(s, KeyResponses)
	assert.Equal(t, "original", again["a"].Answer.Content)
}

func TestState_ScoreTableRowsAreCloned(t *testing.T) {
	table := ScoreTable{"a": {"b": 4}}
	s := With(NewState(), KeyScores, table)

	table["a"]["b"] = 1

	got, ok := Get(s, KeyScores)
	require.True(t, ok)
	assert.Equal(t, 4, got["a"]["b"])
}

func TestState_ConsensusTraceIsCloned(t *testing.T) {
	c := &Consensus{
		Winner: "a",
		Trace:  []BotTrace{{Bot: "a", FinalScore: 4.5}},
	}
	s := With(NewState(), KeyConsensus, c)

	c.Trace[0].FinalScore = 1.0

	got, ok := Get(s, KeyConsensus)
	require.True(t, ok)
	assert.InDelta(t, 4.5, got.Trace[0].FinalScore, 1e-9)
}

func TestState_Keys(t *testing.T) {
	s := With(NewState(), KeyQuestion, "q")
	s = With(s, KeyUsage, Usage{Tokens: 10, Calls: 1})

	assert.ElementsMatch(t, []string{"question", "usage"}, s.Keys())
}
