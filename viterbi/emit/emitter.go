// Package emit provides event emission and observability for a decode run.
package emit

import "context"

// Emitter receives and processes observability events from a decode run.
//
// Emitters enable pluggable observability backends:
// - Logging: stdout, files.
// - Distributed tracing: OpenTelemetry.
// - In-memory buffering, for tests and interactive inspection.
//
// Implementations should be:
// - Non-blocking: avoid slowing down the forward pass.
// - Thread-safe: a decoder only calls its emitter from one goroutine, but
//   callers may share one Emitter across several decoders.
// - Resilient: handle failures gracefully (don't crash the decode run).
type Emitter interface {
	// Emit sends an observability event to the configured backend.
	//
	// Emit should not block the forward pass and should not panic. Errors
	// should be logged internally.
	Emit(event Event)

	// EmitBatch sends multiple events in a single operation.
	//
	// Implementations should process events in order (preserving
	// happened-before relationships) and should not panic on errors.
	//
	// Returns error only on catastrophic failures (e.g. configuration
	// errors). Individual event failures should be logged but not returned.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush ensures all buffered events are sent to the backend. Safe to
	// call multiple times.
	Flush(ctx context.Context) error
}
