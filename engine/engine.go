package engine

import (
	"context"
	"errors"
)

// Errors for engine operations.
var (
	// ErrClosed indicates the interpreter process has terminated or the
	// engine was closed; the owning session must be restarted.
	ErrClosed = errors.New("engine closed")

	// ErrExecutableNotFound indicates no interpreter executable could be
	// resolved from configuration, environment, or PATH.
	ErrExecutableNotFound = errors.New("interpreter executable not found")
)

// Engine is the external interpreter collaborator: a line-oriented
// evaluate loop over one live process.
//
// Contract:
// - Concurrency: one Evaluate at a time; Evaluate serializes internally,
//   but callers should not rely on queuing order across goroutines.
// - Context: Evaluate honors cancellation and deadlines and returns
//   ctx.Err() wrapped when it fires mid-statement.
// - Errors: an end-of-stream condition returns an error matching
//   ErrClosed; the engine is unusable afterwards.
// - Close is idempotent.
type Engine interface {
	// Evaluate writes one statement to the interpreter and returns the
	// text output captured before the interpreter prompted again.
	Evaluate(ctx context.Context, stmt string) (string, error)

	// SetStreamHandler routes each captured output line to fn as it
	// arrives, before Evaluate returns. A nil fn disables routing.
	SetStreamHandler(fn func(line string))

	// Interrupt aborts the currently running statement without
	// terminating the process.
	Interrupt() error

	// Close terminates the interpreter process.
	Close() error
}
