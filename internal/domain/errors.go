package domain

import (
	"errors"
	"fmt"
)

// Common domain errors surfaced by the orchestration pipeline.
var (
	// ErrNoAnswer indicates total exhaustion: no bot produced a usable
	// answer, or no bot had both an answer and a valid peer score in the
	// final round. This is the only failure an orchestration run surfaces
	// to its caller; individual bot failures are absorbed.
	ErrNoAnswer = errors.New("no answer available")

	// ErrQuestionEmpty indicates the caller supplied an empty question.
	ErrQuestionEmpty = errors.New("question cannot be empty")

	// ErrDuplicateBot indicates two configured bots share a BotID.
	ErrDuplicateBot = errors.New("duplicate bot id")
)

// BotError wraps a failure from a single bot backend with the identity of
// the bot and the operation that failed. It is recorded inside a tagged
// Response and never interrupts the pipeline.
type BotError struct {
	// Bot identifies the failing backend.
	Bot BotID

	// Operation names the call that failed ("answer", "evaluate",
	// "clarify").
	Operation string

	// Err is the underlying transport or protocol error.
	Err error
}

// Error implements the error interface.
func (e *BotError) Error() string {
	return fmt.Sprintf("bot %s: %s failed: %v", e.Bot, e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is / errors.As.
func (e *BotError) Unwrap() error { return e.Err }

// NewBotError creates a BotError for the given bot and operation.
func NewBotError(bot BotID, operation string, err error) *BotError {
	return &BotError{Bot: bot, Operation: operation, Err: err}
}
