package emit

// Event represents an observability event emitted during a decode run.
//
// Events provide insight into decoder behavior:
//   - Step start/end
//   - HMM breaks
//   - Missing emission log-probabilities
//
// Events are emitted to an Emitter which can:
//   - Log to stdout/stderr
//   - Send to OpenTelemetry
//   - Buffer in memory for later inspection
type Event struct {
	// RunID identifies the decode run that emitted this event.
	RunID string

	// Step is the sequential forward-step number (0 for the initial
	// observation, 1-indexed thereafter).
	Step int

	// Msg is a short machine-stable name for the event. The decoder emits
	// "step_start", "step_end", "hmm_break" and "emission_missing".
	Msg string

	// Meta contains additional structured data specific to this event.
	// Keys set by the decoder:
	//   - "frontier_size": number of surviving extended-state nodes (step_end)
	//   - "error": error details (emission_missing)
	Meta map[string]interface{}
}
