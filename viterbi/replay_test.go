package viterbi_test

import (
	"errors"
	"math"
	"testing"

	"github.com/tilematch/viterbi-go/examples/weather"
	"github.com/tilematch/viterbi-go/viterbi"
)

func TestReplay_IdenticalInputsRoundTrip(t *testing.T) {
	model := weather.ClassicModel()
	candidates := weather.Candidates
	emissions := model.EmissionLogProbs(candidates, weather.Yes)
	transitions := model.TransitionLogProbs(candidates, candidates)
	message := map[weather.Weather]float64{weather.RAIN: -0.5, weather.SUN: -2.0}

	recorded, err := viterbi.RecordStep(1, candidates, emissions, transitions, message)
	if err != nil {
		t.Fatalf("RecordStep: %v", err)
	}

	if err := viterbi.VerifyReplay(recorded, candidates, emissions, transitions, message); err != nil {
		t.Fatalf("VerifyReplay on identical inputs: %v", err)
	}
}

// TestReplay_CandidateReorderingIsInputMismatch ensures that verifying with
// a reordered candidate slice is reported as an input mismatch rather than
// ErrReplayMismatch: the hash is order-independent over map contents, but
// the candidate slice is hashed in its given order.
func TestReplay_CandidateReorderingIsInputMismatch(t *testing.T) {
	model := weather.UniformModel()
	candidates := []weather.Weather{weather.RAIN, weather.SUN}
	reordered := []weather.Weather{weather.SUN, weather.RAIN}

	emissions := model.EmissionLogProbs(candidates, weather.Yes)
	transitions := model.TransitionLogProbs(candidates, candidates)
	message := map[weather.Weather]float64{weather.RAIN: -1.0, weather.SUN: -1.0}

	recorded, err := viterbi.RecordStep(0, candidates, emissions, transitions, message)
	if err != nil {
		t.Fatalf("RecordStep: %v", err)
	}

	// candidates is a JSON-ordered slice, so RecordStep hashes it by value,
	// not by iteration order; reordered encodes to a different JSON array
	// and therefore correctly reports an input mismatch rather than a
	// message mismatch.
	err = viterbi.VerifyReplay(recorded, reordered, emissions, transitions, message)
	if err == nil {
		t.Fatal("expected an error verifying against a differently-ordered candidate slice")
	}
	if errors.Is(err, viterbi.ErrReplayMismatch) {
		t.Fatal("expected a plain input-mismatch error, not ErrReplayMismatch")
	}
}

// TestReplay_MessageDivergenceReportsMismatch verifies that identical
// inputs with a different resulting message produce ErrReplayMismatch,
// the signal a caller uses to detect an accidentally non-deterministic
// candidate or probability generator.
func TestReplay_MessageDivergenceReportsMismatch(t *testing.T) {
	model := weather.ClassicModel()
	candidates := weather.Candidates
	emissions := model.EmissionLogProbs(candidates, weather.Yes)
	transitions := model.TransitionLogProbs(candidates, candidates)
	message := map[weather.Weather]float64{weather.RAIN: -0.5, weather.SUN: -2.0}

	recorded, err := viterbi.RecordStep(2, candidates, emissions, transitions, message)
	if err != nil {
		t.Fatalf("RecordStep: %v", err)
	}

	divergent := map[weather.Weather]float64{weather.RAIN: -0.6, weather.SUN: -2.0}
	err = viterbi.VerifyReplay(recorded, candidates, emissions, transitions, divergent)
	if !errors.Is(err, viterbi.ErrReplayMismatch) {
		t.Fatalf("expected ErrReplayMismatch, got %v", err)
	}
}

// TestReplay_InputDivergenceIsNotMessageMismatch verifies that changing an
// input (here, a transition probability) between record and verify is
// reported distinctly from a message-hash mismatch - it means the caller
// asked to verify the wrong step, not that the decoder was nondeterministic.
func TestReplay_InputDivergenceIsNotMessageMismatch(t *testing.T) {
	model := weather.ClassicModel()
	candidates := weather.Candidates
	emissions := model.EmissionLogProbs(candidates, weather.Yes)
	transitions := model.TransitionLogProbs(candidates, candidates)
	message := map[weather.Weather]float64{weather.RAIN: -0.5, weather.SUN: -2.0}

	recorded, err := viterbi.RecordStep(3, candidates, emissions, transitions, message)
	if err != nil {
		t.Fatalf("RecordStep: %v", err)
	}

	changedTransitions := map[viterbi.TransitionKey[weather.Weather]]float64{}
	for k, v := range transitions {
		changedTransitions[k] = v
	}
	changedTransitions[viterbi.TransitionKey[weather.Weather]{From: weather.RAIN, To: weather.RAIN}] = math.Inf(-1)

	err = viterbi.VerifyReplay(recorded, candidates, emissions, changedTransitions, message)
	if err == nil {
		t.Fatal("expected an error when transition inputs differ from the recorded step")
	}
	if errors.Is(err, viterbi.ErrReplayMismatch) {
		t.Fatal("expected a plain input-mismatch error, not ErrReplayMismatch")
	}
}
