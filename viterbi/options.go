package viterbi

import (
	"github.com/tilematch/viterbi-go/viterbi/emit"
	"github.com/tilematch/viterbi-go/viterbi/store"
)

// Option configures a Decoder at construction time. See NewDecoder.
//
// Construction-time options cover the ambient collaborators (observability,
// metrics, persistence) that apply uniformly for the run's lifetime, plus
// WithKeepMessageHistory for the initial history setting. The
// SetKeepMessageHistory method can still change that setting after
// construction, up until the first successful Start* call freezes it.
type Option func(*decoderConfig)

type decoderConfig struct {
	runID       string
	emitter     emit.Emitter
	metrics     *Metrics
	store       interface{} // store.Store[S], type-asserted in NewDecoder
	keepHistory bool
}

func newConfig() *decoderConfig {
	return &decoderConfig{
		emitter: emit.NewNullEmitter(),
	}
}

// WithRunID sets the run identifier attached to every emitted event and
// checkpoint. If omitted, a random identifier is generated.
func WithRunID(runID string) Option {
	return func(cfg *decoderConfig) {
		cfg.runID = runID
	}
}

// WithEmitter wires an observability sink. The default is a NullEmitter,
// so observability has zero overhead unless explicitly configured.
func WithEmitter(emitter emit.Emitter) Option {
	return func(cfg *decoderConfig) {
		cfg.emitter = emitter
	}
}

// WithMetrics wires a Prometheus metrics collector.
func WithMetrics(metrics *Metrics) Option {
	return func(cfg *decoderConfig) {
		cfg.metrics = metrics
	}
}

// WithStore wires a persistence layer that receives a best-effort
// checkpoint after every committed step, for offline inspection or audit.
// The type parameter must match the Decoder's state type S; a mismatched
// store is silently ignored (checkpointing is a debugging aid, never a
// correctness requirement - see SPEC_FULL.md §4.6).
func WithStore[S State[S]](s store.Store[S]) Option {
	return func(cfg *decoderConfig) {
		cfg.store = s
	}
}

// WithKeepMessageHistory is a construction-time equivalent of calling
// SetKeepMessageHistory(true) before the first Start* call, provided for
// symmetry with the rest of the option set.
func WithKeepMessageHistory(flag bool) Option {
	return func(cfg *decoderConfig) {
		cfg.keepHistory = flag
	}
}
