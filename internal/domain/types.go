// Package domain contains pure, dependency-free domain models and types
// for the quorum orchestration engine.
package domain

import (
	"sort"
	"time"
)

// BotID is the opaque identifier of a configured bot backend.
// The set of BotIDs is fixed for the lifetime of one orchestration run
// and every BotID in that set is unique.
type BotID string

// Answer is the text a bot produced for a question.
type Answer struct {
	// Bot identifies which backend produced this answer.
	Bot BotID `json:"bot"`

	// Content contains the answer text.
	Content string `json:"content"`
}

// Response is the tagged outcome of asking a single bot a question:
// either an Answer or a recorded failure, never both and never neither.
// Downstream stages exclude failed responses explicitly instead of
// scoring an error string as if it were content.
type Response struct {
	// Answer holds the bot's answer when the call succeeded.
	Answer Answer `json:"answer"`

	// Err records why the call failed. A nil Err means Answer is valid.
	Err error `json:"-"`
}

// OK reports whether this response carries a usable answer.
func (r Response) OK() bool { return r.Err == nil }

// ResponseSet maps every requested BotID to its tagged outcome.
// Exactly one entry exists per bot that was asked.
type ResponseSet map[BotID]Response

// Live returns the bots whose call succeeded, sorted lexicographically
// so iteration order is reproducible across runs.
func (rs ResponseSet) Live() []BotID {
	ids := make([]BotID, 0, len(rs))
	for id, r := range rs {
		if r.OK() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ScoreTable maps evaluator -> subject -> integer score in [1,5].
// Entries exist only for ordered pairs where both bots succeeded in the
// round being scored, and never for an evaluator scoring itself.
type ScoreTable map[BotID]map[BotID]int

// LowestSubject returns the subject the evaluator rated worst.
// Ties are broken by the lexicographically smallest subject BotID so the
// result is deterministic regardless of map iteration order.
// The second return value is false when the evaluator scored no peers.
func (st ScoreTable) LowestSubject(evaluator BotID) (BotID, bool) {
	row, ok := st[evaluator]
	if !ok || len(row) == 0 {
		return "", false
	}

	subjects := make([]BotID, 0, len(row))
	for s := range row {
		subjects = append(subjects, s)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i] < subjects[j] })

	worst := subjects[0]
	for _, s := range subjects[1:] {
		if row[s] < row[worst] {
			worst = s
		}
	}
	return worst, true
}

// Mean returns the arithmetic mean of the evaluator's row.
// The second return value is false when the row is empty, which callers
// must treat as a defined "unscored" condition rather than an error.
func (st ScoreTable) Mean(evaluator BotID) (float64, bool) {
	row, ok := st[evaluator]
	if !ok || len(row) == 0 {
		return 0, false
	}
	var sum int
	for _, score := range row {
		sum += score
	}
	return float64(sum) / float64(len(row)), true
}

// RoundKind names the two peer-scored phases of an orchestration run.
type RoundKind string

const (
	// RoundInitial is the first fan-out of the user's question.
	RoundInitial RoundKind = "initial"

	// RoundClarification is the targeted re-query round.
	RoundClarification RoundKind = "clarification"
)

// BotTrace captures per-bot execution detail for one orchestration run,
// surfaced so callers can see how the consensus was reached.
type BotTrace struct {
	// Bot identifies the backend this trace describes.
	Bot BotID `json:"bot"`

	// InitialScore is the bot's mean peer score in the initial round.
	// Zero when the bot had no scored peers in that round.
	InitialScore float64 `json:"initial_score"`

	// FinalScore is the bot's mean peer score in the clarification round.
	FinalScore float64 `json:"final_score"`

	// ClarificationQuestion is the follow-up the bot was re-asked.
	ClarificationQuestion string `json:"clarification_question,omitempty"`

	// ClarificationGain is a similarity complement in [0,1] between the
	// bot's initial and clarified answers: 0 means the re-query changed
	// nothing, 1 means a completely different answer.
	ClarificationGain float64 `json:"clarification_gain"`
}

// Usage tracks cumulative resource consumption across one run.
type Usage struct {
	// Tokens is the cumulative token count across all bot calls.
	Tokens int `json:"tokens"`

	// Calls is the number of bot API calls made.
	Calls int `json:"calls"`
}

// Consensus is the final outcome of an orchestration run: the winning
// clarified answer with its aggregate score and per-bot trace.
type Consensus struct {
	// Winner is the bot whose clarified answer was selected.
	Winner BotID `json:"winner"`

	// Answer is the selected clarified answer.
	Answer Answer `json:"answer"`

	// AggregateScore is the winner's mean peer score in the final round.
	AggregateScore float64 `json:"aggregate_score"`

	// Trace contains per-bot execution detail, omitted when empty.
	Trace []BotTrace `json:"trace,omitempty"`

	// Usage reports the run's total token and call consumption.
	Usage Usage `json:"usage"`

	// Timestamp records when the consensus was produced.
	Timestamp time.Time `json:"timestamp"`
}
