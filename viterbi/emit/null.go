package emit

import "context"

// NullEmitter implements Emitter by discarding all events.
//
// This is a no-op emitter for environments where event logging is not
// desired.
//
// Use cases:
//   - Production deployments where observability overhead is unwanted
//   - Testing scenarios where event capture is not needed
//   - Disabling event emission without changing code
//
// Example usage:
//
//	decoder := viterbi.NewDecoder[Weather, Umbrella, Label](viterbi.WithEmitter(emit.NewNullEmitter()))
type NullEmitter struct{}

// NewNullEmitter creates a new NullEmitter.
//
// Returns a NullEmitter that discards all events without any processing.
// This is safe for concurrent use and has zero overhead.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event without any processing.
func (n *NullEmitter) Emit(event Event) {
	// No-op: discard the event
}

// EmitBatch discards the events without any processing.
func (n *NullEmitter) EmitBatch(ctx context.Context, events []Event) error {
	return nil
}

// Flush is a no-op; NullEmitter buffers nothing.
func (n *NullEmitter) Flush(ctx context.Context) error {
	return nil
}
