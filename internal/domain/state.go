package domain

import (
	"fmt"
	"maps"
)

// Key is a type-safe key for accessing values in State. The type
// parameter pins the value type at compile time so callers never need a
// runtime type assertion.
type Key[T any] struct{ name string }

// NewKey creates a Key with the given name for use outside this package.
func NewKey[T any](name string) Key[T] { return Key[T]{name: name} }

// State keys threaded through one orchestration run. Each key is strongly
// typed; a run writes each key at most once as it advances through the
// pipeline.
var (
	// KeyQuestion holds the user's original question.
	KeyQuestion = Key[string]{"question"}

	// KeyResponses holds the initial-round tagged responses.
	KeyResponses = Key[ResponseSet]{"responses"}

	// KeyScores holds the initial-round peer score table.
	KeyScores = Key[ScoreTable]{"scores"}

	// KeyClarifications holds the clarification-round responses, keyed by
	// the bot that was re-asked.
	KeyClarifications = Key[ResponseSet]{"clarifications"}

	// KeyClarifyQuestions holds the follow-up question each bot received.
	KeyClarifyQuestions = Key[map[BotID]string]{"clarify_questions"}

	// KeyFinalScores holds the clarification-round peer score table.
	KeyFinalScores = Key[ScoreTable]{"final_scores"}

	// KeyConsensus holds the selected best answer.
	KeyConsensus = Key[*Consensus]{"consensus"}

	// KeyUsage accumulates token and call consumption across the run.
	KeyUsage = Key[Usage]{"usage"}
)

// State is an immutable collection of orchestration data that flows
// through the pipeline. Writes return a new State via copy-on-write, so a
// State value can be shared across goroutines without locking.
type State struct {
	data map[string]any
}

// NewState creates an empty State ready for use.
func NewState() State {
	return State{data: make(map[string]any)}
}

// Get retrieves a value with compile-time type safety. The boolean
// reports whether the key exists with a value of the expected type.
// Container values are cloned so callers cannot mutate stored state.
func Get[T any](s State, key Key[T]) (T, bool) {
	var zero T
	value, exists := s.data[key.name]
	if !exists {
		return zero, false
	}
	val, ok := cloneValue(value).(T)
	if !ok {
		return zero, false
	}
	return val, ok
}

// With returns a new State with the key set to value, leaving the
// receiver unchanged.
func With[T any](s State, key Key[T], value T) State {
	newData := maps.Clone(s.data)
	if newData == nil {
		newData = make(map[string]any, 1)
	}
	newData[key.name] = cloneValue(value)
	return State{data: newData}
}

// Keys returns the names of all keys present in the State. The slice is
// owned by the caller.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// String renders the State for debugging.
func (s State) String() string { return fmt.Sprintf("State%v", s.data) }

// cloneValue deep-copies the container types this package stores in
// State. Value types pass through unchanged; pointers to Consensus are
// copied one level deep, which is sufficient because Consensus holds only
// values and a slice cloned here.
func cloneValue(value any) any {
	switch v := value.(type) {
	case ResponseSet:
		return maps.Clone(v)
	case ScoreTable:
		out := make(ScoreTable, len(v))
		for evaluator, row := range v {
			out[evaluator] = maps.Clone(row)
		}
		return out
	case map[BotID]string:
		return maps.Clone(v)
	case *Consensus:
		if v == nil {
			return v
		}
		copied := *v
		copied.Trace = append([]BotTrace(nil), v.Trace...)
		return &copied
	default:
		return value
	}
}
