package domain

import (
	"regexp"
	"strings"
)

// questionFragment matches the shortest run of text ending in a question
// mark, after a naive sentence split on '.', '!' and '?'.
var questionFragment = regexp.MustCompile(`([^.!?]*\?)`)

// clarifyFallbackRunes bounds how much of a question-free answer is
// echoed back in the fallback clarification prompt.
const clarifyFallbackRunes = 100

// ClarificationQuestion derives a follow-up question from an answer's
// text. If the answer contains a question-like fragment, the first one is
// quoted back; otherwise the bot is asked to elaborate on the answer's
// opening. The function is pure: same input, same output, no I/O.
func ClarificationQuestion(answerText string) string {
	if m := strings.TrimSpace(questionFragment.FindString(answerText)); m != "" {
		return "Can you clarify the following: " + m
	}

	head := answerText
	if runes := []rune(answerText); len(runes) > clarifyFallbackRunes {
		head = string(runes[:clarifyFallbackRunes])
	}
	return "Can you provide more details about: " + head
}

// EvaluationPrompt builds the instruction a peer evaluator receives when
// rating another bot's answer on the fixed 1-5 scale.
func EvaluationPrompt(answerText string) string {
	var b strings.Builder
	b.WriteString("Please evaluate the following response on a scale of 1 to 5 for quality and relevance: ")
	b.WriteString(answerText)
	return b.String()
}

// scoreDigit matches the first standalone digit 1-5 in an evaluator's
// reply. Digits embedded in larger numbers do not count.
var scoreDigit = regexp.MustCompile(`\b[1-5]\b`)

// NeutralScore is the fallback used when an evaluator's reply carries no
// extractable score, or the evaluation call failed. A fixed neutral
// default keeps a single flaky evaluator from skewing the table.
const NeutralScore = 3

// ParseScore extracts a 1-5 score from an evaluator's reply text.
// When no standalone digit in range is present it returns NeutralScore
// and false.
func ParseScore(reply string) (int, bool) {
	m := scoreDigit.FindString(reply)
	if m == "" {
		return NeutralScore, false
	}
	// The pattern guarantees a single ASCII digit 1-5.
	return int(m[0] - '0'), true
}
