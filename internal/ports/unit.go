// Package ports defines the interfaces that form the contract between the
// domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the engine testable.
package ports

import (
	"context"

	"github.com/ahrav/go-quorum/internal/domain"
)

// Unit is one stage of the orchestration pipeline. Each Unit reads from
// the run's State and returns a new State with its results added.
// Units are stateless and safe for concurrent execution.
type Unit interface {
	// Name returns a unique identifier for this unit, used for spans,
	// metrics and error messages.
	Name() string

	// Execute performs the unit's transformation on the provided State
	// and returns a new State; the input State is never modified.
	// Units respect context cancellation and return promptly when the
	// context is done.
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// Validate checks that the unit is properly configured and ready to
	// execute. It is called during pipeline construction.
	Validate() error
}
