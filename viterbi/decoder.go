package viterbi

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tilematch/viterbi-go/viterbi/emit"
	"github.com/tilematch/viterbi-go/viterbi/store"
)

// negInf is the log-probability of an impossible state or transition.
const negInf = math.Inf(-1)

// Decoder runs a time-inhomogeneous Viterbi decode over a sequence of
// observations. A candidate state set and a fresh transition model are
// supplied at every step; the decoder keeps only the running forward
// message and a back-pointer forest, so memory use tracks the candidate
// set sizes rather than the full observation history.
//
// A Decoder is not safe for concurrent use. Each observation sequence
// requires its own instance, run start to finish by a single goroutine.
type Decoder[S State[S], O any, D any] struct {
	runID   string
	emitter emit.Emitter
	metrics *Metrics
	store   store.Store[S]

	keepHistory    bool
	historyFrozen  bool
	currentMessage map[S]float64
	prevCandidates []S
	frontier       map[S]*ExtendedState[S, O, D]
	messageHistory []map[S]float64
	committedSteps int
	broken         bool
}

// NewDecoder constructs a Decoder ready to accept a Start* call.
func NewDecoder[S State[S], O any, D any](opts ...Option) *Decoder[S, O, D] {
	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	runID := cfg.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	var st store.Store[S]
	if cfg.store != nil {
		st, _ = cfg.store.(store.Store[S])
	}

	return &Decoder[S, O, D]{
		runID:       runID,
		emitter:     cfg.emitter,
		metrics:     cfg.metrics,
		store:       st,
		keepHistory: cfg.keepHistory,
	}
}

// SetKeepMessageHistory toggles whether committed messages are retained for
// later retrieval via MessageHistory. It must be called before processing
// starts; once ProcessingStarted reports true, the call is a silent no-op -
// the setting is frozen for the lifetime of the run rather than reset, so a
// caller cannot accidentally discard history already collected.
func (d *Decoder[S, O, D]) SetKeepMessageHistory(flag bool) {
	if d.historyFrozen {
		return
	}
	d.keepHistory = flag
}

// ProcessingStarted reports whether a Start* call has successfully run.
func (d *Decoder[S, O, D]) ProcessingStarted() bool {
	return d.currentMessage != nil
}

// IsBroken reports whether the decoder has reached a terminal all-impossible
// message. A broken decoder ignores further NextStep calls.
func (d *Decoder[S, O, D]) IsBroken() bool {
	return d.broken
}

// StartWithInitialStateProbabilities initializes the decoder from a prior
// over the step-0 candidates, with no incoming observation. It is
// equivalent to StartWithInitialObservation with the zero value of O and an
// emission model of identity (the supplied log-probabilities are used
// unmodified), routing through the same initializeStateProbabilities helper
// so the two entry points can never drift apart.
func (d *Decoder[S, O, D]) StartWithInitialStateProbabilities(initialStates []S, initialLogProbs map[S]float64) error {
	var zeroObs O
	return d.initializeStateProbabilities(zeroObs, initialStates, initialLogProbs)
}

// StartWithInitialObservation initializes the decoder from an emission
// model evaluated against the step-0 candidates given the first observation.
func (d *Decoder[S, O, D]) StartWithInitialObservation(observation O, candidates []S, emissionLogProbs map[S]float64) error {
	return d.initializeStateProbabilities(observation, candidates, emissionLogProbs)
}

func (d *Decoder[S, O, D]) initializeStateProbabilities(observation O, candidates []S, logProbs map[S]float64) error {
	if d.ProcessingStarted() {
		return nil
	}

	message := make(map[S]float64, len(candidates))
	frontier := make(map[S]*ExtendedState[S, O, D], len(candidates))
	var zeroDescriptor D
	for _, s := range candidates {
		p, ok := logProbs[s]
		if !ok {
			if d.metrics != nil {
				d.metrics.IncrementEmissionMiss(d.runID)
			}
			err := fmt.Errorf("viterbi: missing initial log-probability for candidate state")
			d.emit("emission_missing", 0, map[string]interface{}{"error": err.Error()})
			return err
		}
		message[s] = p
		frontier[s] = &ExtendedState[S, O, D]{
			State:                s,
			Observation:          observation,
			TransitionDescriptor: zeroDescriptor,
			predecessor:          nil,
		}
	}

	d.historyFrozen = true
	broken := hmmBreak(message)
	d.broken = broken
	d.prevCandidates = append([]S(nil), candidates...)
	d.committedSteps = 1

	// A break is terminal and retains no usable result: current_message
	// stays non-nil (ProcessingStarted is still true) but empty, so
	// ComputeMostLikelySequence reports an empty sequence rather than one
	// built from -Inf-valued, predecessor-less frontier nodes.
	if broken {
		d.currentMessage = make(map[S]float64)
		d.frontier = make(map[S]*ExtendedState[S, O, D])
	} else {
		d.currentMessage = message
		d.frontier = frontier
		if d.keepHistory {
			d.messageHistory = append(d.messageHistory, copyMessage(message))
		}
	}

	d.emit("step_start", 0, nil)
	if broken {
		d.emit("hmm_break", 0, nil)
		d.recordMetrics(0, 0, 0)
	} else {
		d.emit("step_end", 0, map[string]interface{}{"frontier_size": len(frontier)})
		d.recordMetrics(0, 0, len(frontier))
		d.checkpoint(context.Background(), 0)
	}

	return nil
}

// NextStepNoDescriptors is NextStep with an empty transitionDescriptors map,
// for callers that do not attach metadata to transitions.
func (d *Decoder[S, O, D]) NextStepNoDescriptors(observation O, candidates []S, emissionLogProbs map[S]float64, transitionLogProbs map[TransitionKey[S]]float64) error {
	return d.NextStep(observation, candidates, emissionLogProbs, transitionLogProbs, nil)
}

// NextStep advances the decoder by one time step: it computes the forward
// step over candidates against the previous step's committed candidates. If
// the result breaks the HMM, the decoder becomes terminal and retains its
// last valid message and frontier - the broken step is never committed -
// otherwise the new message and frontier replace the previous ones.
//
// If the decoder is already broken, NextStep is a silent no-op: a broken
// HMM is a first-class terminal state, not an error condition.
func (d *Decoder[S, O, D]) NextStep(observation O, candidates []S, emissionLogProbs map[S]float64, transitionLogProbs map[TransitionKey[S]]float64, transitionDescriptors map[TransitionKey[S]]D) error {
	if !d.ProcessingStarted() {
		return fmt.Errorf("viterbi: NextStep called before Start")
	}
	if d.broken {
		return nil
	}

	start := time.Now()
	step := d.committedSteps
	d.emit("step_start", step, nil)

	result, err := d.forwardStep(observation, candidates, emissionLogProbs, transitionLogProbs, transitionDescriptors)
	if err != nil {
		d.emit("emission_missing", step, map[string]interface{}{"error": err.Error()})
		return err
	}

	if hmmBreak(result.NewMessage) {
		d.broken = true
		d.emit("hmm_break", step, nil)
		d.recordMetrics(step, time.Since(start), len(result.NewExtendedStates))
		return nil
	}

	d.currentMessage = result.NewMessage
	d.frontier = result.NewExtendedStates
	d.prevCandidates = append([]S(nil), candidates...)
	d.committedSteps++

	if d.keepHistory {
		d.messageHistory = append(d.messageHistory, copyMessage(result.NewMessage))
	}

	d.emit("step_end", step, map[string]interface{}{"frontier_size": len(result.NewExtendedStates)})
	d.recordMetrics(step, time.Since(start), len(result.NewExtendedStates))
	d.checkpoint(context.Background(), step)

	return nil
}

// forwardStep implements the dynamic-programming recurrence of §4.2: for
// each current candidate, scan the previous step's candidates in order and
// keep the strictly-greatest predecessor score, so that ties resolve to
// whichever previous candidate the caller listed first.
func (d *Decoder[S, O, D]) forwardStep(observation O, curCandidates []S, emissionLogProbs map[S]float64, transitionLogProbs map[TransitionKey[S]]float64, transitionDescriptors map[TransitionKey[S]]D) (ForwardStepResult[S, O, D], error) {
	newMessage := make(map[S]float64, len(curCandidates))
	newStates := make(map[S]*ExtendedState[S, O, D], len(curCandidates))
	var zeroDescriptor D

	for _, cur := range curCandidates {
		emission, ok := emissionLogProbs[cur]
		if !ok {
			if d.metrics != nil {
				d.metrics.IncrementEmissionMiss(d.runID)
			}
			return ForwardStepResult[S, O, D]{}, fmt.Errorf("viterbi: missing emission log-probability for candidate state")
		}

		maxLogProb := negInf
		var maxPrev S
		haveMaxPrev := false

		for _, prev := range d.prevCandidates {
			prevScore, ok := d.currentMessage[prev]
			if !ok {
				continue
			}
			tLog := negInf
			if p, ok := transitionLogProbs[TransitionKey[S]{From: prev, To: cur}]; ok {
				tLog = p
			} else if d.metrics != nil {
				d.metrics.IncrementTransitionMiss(d.runID)
			}
			candidateLog := prevScore + tLog
			if candidateLog > maxLogProb {
				maxLogProb = candidateLog
				maxPrev = prev
				haveMaxPrev = true
			}
		}

		newMessage[cur] = maxLogProb + emission

		if haveMaxPrev {
			descriptor := zeroDescriptor
			if dd, ok := transitionDescriptors[TransitionKey[S]{From: maxPrev, To: cur}]; ok {
				descriptor = dd
			}
			newStates[cur] = &ExtendedState[S, O, D]{
				State:                cur,
				Observation:          observation,
				TransitionDescriptor: descriptor,
				predecessor:          d.frontier[maxPrev],
			}
		}
	}

	return ForwardStepResult[S, O, D]{NewMessage: newMessage, NewExtendedStates: newStates}, nil
}

// ComputeMostLikelySequence walks the back-pointer forest from the best
// final candidate to step 0 and returns the decoded sequence in forward
// order. It returns nil if no step has ever committed.
func (d *Decoder[S, O, D]) ComputeMostLikelySequence() []SequenceState[S, O, D] {
	if !d.ProcessingStarted() || len(d.currentMessage) == 0 {
		return nil
	}

	best, ok := mostLikelyState(d.prevCandidates, d.currentMessage)
	if !ok {
		return nil
	}

	node := d.frontier[best]
	reversed := make([]SequenceState[S, O, D], 0, d.committedSteps)
	for node != nil {
		reversed = append(reversed, SequenceState[S, O, D]{
			State:                node.State,
			Observation:          node.Observation,
			TransitionDescriptor: node.TransitionDescriptor,
		})
		node = node.predecessor
	}

	out := make([]SequenceState[S, O, D], len(reversed))
	for i, s := range reversed {
		out[len(reversed)-1-i] = s
	}
	return out
}

// MessageHistory returns defensive copies of every committed message, or
// nil if history retention was never enabled.
func (d *Decoder[S, O, D]) MessageHistory() []map[S]float64 {
	if len(d.messageHistory) == 0 {
		return nil
	}
	out := make([]map[S]float64, len(d.messageHistory))
	for i, m := range d.messageHistory {
		out[i] = copyMessage(m)
	}
	return out
}

// hmmBreak reports whether every value in message is -Inf (or the message
// is empty), the terminal condition defined in §4.3.
func hmmBreak[S comparable](message map[S]float64) bool {
	if len(message) == 0 {
		return true
	}
	for _, v := range message {
		if v != negInf {
			return false
		}
	}
	return true
}

// mostLikelyState scans candidates - not the map directly - so the result
// is a deterministic function of caller-supplied ordering: the first
// candidate attaining the maximum wins ties.
func mostLikelyState[S comparable](candidates []S, message map[S]float64) (S, bool) {
	var best S
	found := false
	maxLogProb := negInf
	for _, s := range candidates {
		v, ok := message[s]
		if !ok {
			continue
		}
		if !found || v > maxLogProb {
			best = s
			maxLogProb = v
			found = true
		}
	}
	return best, found
}

func copyMessage[S comparable](m map[S]float64) map[S]float64 {
	out := make(map[S]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *Decoder[S, O, D]) emit(msg string, step int, meta map[string]interface{}) {
	if d.emitter == nil {
		return
	}
	d.emitter.Emit(emit.Event{RunID: d.runID, Step: step, Msg: msg, Meta: meta})
}

func (d *Decoder[S, O, D]) recordMetrics(step int, latency time.Duration, frontierSize int) {
	if d.metrics == nil {
		return
	}
	status := "ok"
	if d.broken {
		status = "broken"
		d.metrics.IncrementBreaks(d.runID)
	}
	d.metrics.RecordStepLatency(d.runID, status, latency)
	d.metrics.SetFrontierSize(d.runID, frontierSize)
}

func (d *Decoder[S, O, D]) checkpoint(ctx context.Context, step int) {
	if d.store == nil {
		return
	}
	cp := store.Checkpoint[S]{
		RunID:          d.runID,
		StepID:         step,
		Message:        d.currentMessage,
		PrevCandidates: d.prevCandidates,
		Broken:         d.broken,
		IdempotencyKey: computeIdempotencyKey(d.runID, step, d.currentMessage),
		Timestamp:      time.Now(),
	}
	_ = d.store.SaveCheckpoint(ctx, cp)
}
