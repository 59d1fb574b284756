package viterbi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// RecordedStep captures the hash of one forward step's inputs and resulting
// message, so a caller can later verify that re-running the same inputs
// produces the same message - catching a candidate or probability
// generator that is accidentally non-deterministic (e.g. depends on Go map
// iteration order instead of the supplied candidate slice order).
type RecordedStep struct {
	Step        int    `json:"step"`
	InputHash   string `json:"input_hash"`
	MessageHash string `json:"message_hash"`
}

// RecordStep hashes a step's inputs (the candidate slice in its given order,
// and the emission and transition maps in an order-independent but
// content-sensitive encoding) and its resulting message into a RecordedStep.
func RecordStep[S State[S]](step int, candidates []S, emissionLogProbs map[S]float64, transitionLogProbs map[TransitionKey[S]]float64, message map[S]float64) (RecordedStep, error) {
	inputHash, err := hashStepInputs(candidates, emissionLogProbs, transitionLogProbs)
	if err != nil {
		return RecordedStep{}, err
	}
	messageHash, err := hashMessage(message)
	if err != nil {
		return RecordedStep{}, err
	}
	return RecordedStep{Step: step, InputHash: inputHash, MessageHash: messageHash}, nil
}

// VerifyReplay re-hashes candidates/probabilities and the resulting message
// and compares against a previously recorded step with the same inputs. It
// returns ErrReplayMismatch if the messages diverge despite identical
// inputs, and a plain error if the inputs themselves differ (the caller
// asked to verify the wrong step).
func VerifyReplay[S State[S]](recorded RecordedStep, candidates []S, emissionLogProbs map[S]float64, transitionLogProbs map[TransitionKey[S]]float64, message map[S]float64) error {
	inputHash, err := hashStepInputs(candidates, emissionLogProbs, transitionLogProbs)
	if err != nil {
		return err
	}
	if inputHash != recorded.InputHash {
		return fmt.Errorf("viterbi: replay inputs differ from recorded step %d", recorded.Step)
	}

	messageHash, err := hashMessage(message)
	if err != nil {
		return err
	}
	if messageHash != recorded.MessageHash {
		return fmt.Errorf("%w: step %d", ErrReplayMismatch, recorded.Step)
	}
	return nil
}

func hashStepInputs[S State[S]](candidates []S, emissionLogProbs map[S]float64, transitionLogProbs map[TransitionKey[S]]float64) (string, error) {
	h := sha256.New()

	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return "", fmt.Errorf("viterbi: marshal candidates: %w", err)
	}
	h.Write(candidatesJSON)

	type emissionEntry struct {
		State string  `json:"state"`
		Prob  float64 `json:"prob"`
	}
	emissions := make([]emissionEntry, 0, len(emissionLogProbs))
	for s, p := range emissionLogProbs {
		sj, err := json.Marshal(s)
		if err != nil {
			return "", fmt.Errorf("viterbi: marshal emission state: %w", err)
		}
		emissions = append(emissions, emissionEntry{State: string(sj), Prob: p})
	}
	sort.Slice(emissions, func(i, j int) bool { return emissions[i].State < emissions[j].State })
	emissionsJSON, err := json.Marshal(emissions)
	if err != nil {
		return "", fmt.Errorf("viterbi: marshal emissions: %w", err)
	}
	h.Write(emissionsJSON)

	type transitionEntry struct {
		Key  string  `json:"key"`
		Prob float64 `json:"prob"`
	}
	transitions := make([]transitionEntry, 0, len(transitionLogProbs))
	for k, p := range transitionLogProbs {
		kj, err := json.Marshal(k)
		if err != nil {
			return "", fmt.Errorf("viterbi: marshal transition key: %w", err)
		}
		transitions = append(transitions, transitionEntry{Key: string(kj), Prob: p})
	}
	sort.Slice(transitions, func(i, j int) bool { return transitions[i].Key < transitions[j].Key })
	transitionsJSON, err := json.Marshal(transitions)
	if err != nil {
		return "", fmt.Errorf("viterbi: marshal transitions: %w", err)
	}
	h.Write(transitionsJSON)

	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

func hashMessage[S State[S]](message map[S]float64) (string, error) {
	type entry struct {
		State string  `json:"state"`
		Prob  float64 `json:"prob"`
	}
	entries := make([]entry, 0, len(message))
	for s, p := range message {
		sj, err := json.Marshal(s)
		if err != nil {
			return "", fmt.Errorf("viterbi: marshal message state: %w", err)
		}
		entries = append(entries, entry{State: string(sj), Prob: p})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].State < entries[j].State })

	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("viterbi: marshal message: %w", err)
	}
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:]), nil
}
