package emit

import (
	"testing"
	"time"
)

func TestEvent_Struct(t *testing.T) {
	t.Run("complete event with all fields", func(t *testing.T) {
		meta := map[string]interface{}{
			"duration_ms": 125,
			"broken":      false,
		}

		event := Event{
			RunID: "run-001",
			Step:  3,
			Msg:   "step_end",
			Meta:  meta,
		}

		if event.RunID != "run-001" {
			t.Errorf("expected RunID = 'run-001', got %q", event.RunID)
		}
		if event.Step != 3 {
			t.Errorf("expected Step = 3, got %d", event.Step)
		}
		if event.Msg != "step_end" {
			t.Errorf("expected Msg = 'step_end', got %q", event.Msg)
		}
		if event.Meta["duration_ms"] != 125 {
			t.Errorf("expected Meta['duration_ms'] = 125, got %v", event.Meta["duration_ms"])
		}
	})

	t.Run("minimal event", func(t *testing.T) {
		event := Event{
			RunID: "run-002",
			Msg:   "step_start",
		}

		if event.Step != 0 {
			t.Errorf("expected Step = 0 (zero value), got %d", event.Step)
		}
		if event.Meta != nil {
			t.Error("expected Meta = nil (zero value)")
		}
	})

	t.Run("event with metadata", func(t *testing.T) {
		event := Event{
			RunID: "run-003",
			Step:  1,
			Msg:   "step_start",
			Meta: map[string]interface{}{
				"timestamp":  time.Now().Unix(),
				"candidates": 2,
				"tags":       []string{"weather", "umbrella"},
			},
		}

		if event.Meta["candidates"] != 2 {
			t.Errorf("expected candidates = 2, got %v", event.Meta["candidates"])
		}

		tags, ok := event.Meta["tags"].([]string)
		if !ok {
			t.Fatal("expected tags to be []string")
		}
		if len(tags) != 2 {
			t.Errorf("expected 2 tags, got %d", len(tags))
		}
	})

	t.Run("zero value event", func(t *testing.T) {
		var event Event

		if event.RunID != "" {
			t.Errorf("expected zero value RunID, got %q", event.RunID)
		}
		if event.Step != 0 {
			t.Errorf("expected zero value Step, got %d", event.Step)
		}
		if event.Msg != "" {
			t.Errorf("expected zero value Msg, got %q", event.Msg)
		}
		if event.Meta != nil {
			t.Error("expected zero value Meta to be nil")
		}
	})
}

func TestEvent_UseCases(t *testing.T) {
	t.Run("step start event", func(t *testing.T) {
		event := Event{RunID: "run-001", Step: 1, Msg: "step_start"}

		if event.Msg != "step_start" {
			t.Errorf("expected Msg = 'step_start', got %q", event.Msg)
		}
	})

	t.Run("step end event", func(t *testing.T) {
		event := Event{
			RunID: "run-001",
			Step:  1,
			Msg:   "step_end",
			Meta: map[string]interface{}{
				"candidates":    3,
				"frontier_size": 3,
			},
		}

		if event.Meta["candidates"] != 3 {
			t.Errorf("expected candidates = 3, got %v", event.Meta["candidates"])
		}
	})

	t.Run("hmm break event", func(t *testing.T) {
		event := Event{
			RunID: "run-001",
			Step:  2,
			Msg:   "hmm_break",
			Meta: map[string]interface{}{
				"error": "all candidate states have -Inf probability",
			},
		}

		if event.Meta["error"] == "" {
			t.Error("expected non-empty error message")
		}
	})

	t.Run("checkpoint event", func(t *testing.T) {
		event := Event{
			RunID: "run-001",
			Step:  5,
			Msg:   "checkpoint_saved",
			Meta: map[string]interface{}{
				"idempotency_key": "sha256:deadbeef",
			},
		}

		key, ok := event.Meta["idempotency_key"].(string)
		if !ok || key != "sha256:deadbeef" {
			t.Errorf("expected idempotency_key = 'sha256:deadbeef', got %v", key)
		}
	})
}
