// Package store provides persistence for decoder checkpoints, used for
// offline inspection, audit, and debugging of a decode run. The decoder
// never reads from a Store during normal operation - persistence here is a
// write-only side channel, never a resumption mechanism (the spec's
// non-goals exclude recovery after a break, and reading a checkpoint mid-run
// would reintroduce the kind of cross-run state sharing that single-sequence,
// single-goroutine decoding rules out).
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested (runID, step) checkpoint, or the
// latest checkpoint for a runID, does not exist.
var ErrNotFound = errors.New("not found")

// Checkpoint is a persisted snapshot of decoder state at a given run and
// step: the committed forward message, the candidate list that produced it,
// and whether the run had broken by that point.
type Checkpoint[S comparable] struct {
	RunID          string        `json:"run_id"`
	StepID         int           `json:"step_id"`
	Message        map[S]float64 `json:"message"`
	PrevCandidates []S           `json:"prev_candidates"`
	Broken         bool          `json:"broken"`
	IdempotencyKey string        `json:"idempotency_key"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Store persists decoder checkpoints. Implementations: MemStore (testing),
// SQLiteStore (local single-file persistence), MySQLStore (shared/durable
// persistence for a service decoding many sequences).
//
// Type parameter S is the decoder's state type, which must be
// JSON-serializable.
type Store[S comparable] interface {
	// SaveCheckpoint persists a checkpoint. A duplicate IdempotencyKey is
	// silently treated as already-saved rather than an error, since the
	// caller is the decoder's own best-effort checkpoint-after-every-step
	// loop, not a mechanism that must detect misuse.
	SaveCheckpoint(ctx context.Context, cp Checkpoint[S]) error

	// LoadCheckpoint retrieves the checkpoint for a specific run and step.
	// Returns ErrNotFound if none exists.
	LoadCheckpoint(ctx context.Context, runID string, step int) (Checkpoint[S], error)

	// LatestCheckpoint retrieves the highest-step checkpoint for a run.
	// Returns ErrNotFound if the run has no checkpoints.
	LatestCheckpoint(ctx context.Context, runID string) (Checkpoint[S], error)

	// Close releases any resources (database connections) held by the store.
	Close() error
}
