package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

// TestMySQLIntegration validates MySQLStore against a real MySQL database.
//
// Prerequisites:
// - MySQL server running (local, Docker, or cloud).
// - TEST_MYSQL_DSN environment variable set with connection string.
// - Database user has CREATE, INSERT, SELECT, UPDATE permissions.
//
// Example DSN: "user:password@tcp(localhost:3306)/test_db?parseTime=true".
func TestMySQLIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("Skipping MySQL integration test: set TEST_MYSQL_DSN to run")
	}

	t.Run("decode run survives restart and resumes from checkpoint", func(t *testing.T) {
		ctx := context.Background()

		st, err := NewMySQLStore[string](dsn)
		if err != nil {
			t.Fatalf("NewMySQLStore: %v", err)
		}
		defer func() { _ = st.Close() }()

		runID := fmt.Sprintf("integration-test-%d", time.Now().UnixNano())

		for step := 1; step <= 3; step++ {
			cp := Checkpoint[string]{
				RunID:          runID,
				StepID:         step,
				Message:        map[string]float64{"RAIN": -float64(step), "SUN": -float64(step) * 1.5},
				PrevCandidates: []string{"RAIN", "SUN"},
				IdempotencyKey: fmt.Sprintf("%s-step-%d", runID, step),
				Timestamp:      time.Now(),
			}
			if err := st.SaveCheckpoint(ctx, cp); err != nil {
				t.Fatalf("SaveCheckpoint(step=%d): %v", step, err)
			}
		}

		latest, err := st.LatestCheckpoint(ctx, runID)
		if err != nil {
			t.Fatalf("LatestCheckpoint: %v", err)
		}
		if latest.StepID != 3 {
			t.Errorf("LatestCheckpoint.StepID = %d, want 3", latest.StepID)
		}

		if err := st.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}

		t.Log("simulating process restart")

		st2, err := NewMySQLStore[string](dsn)
		if err != nil {
			t.Fatalf("NewMySQLStore after restart: %v", err)
		}
		defer func() { _ = st2.Close() }()

		resumed, err := st2.LoadCheckpoint(ctx, runID, 3)
		if err != nil {
			t.Fatalf("LoadCheckpoint after restart: %v", err)
		}
		if resumed.Message["RAIN"] != -3 {
			t.Errorf("resumed Message[RAIN] = %v, want -3", resumed.Message["RAIN"])
		}

		for step := 4; step <= 5; step++ {
			cp := Checkpoint[string]{
				RunID:          runID,
				StepID:         step,
				Message:        map[string]float64{"RAIN": -float64(step), "SUN": -float64(step) * 1.5},
				PrevCandidates: []string{"RAIN", "SUN"},
				IdempotencyKey: fmt.Sprintf("%s-step-%d", runID, step),
				Timestamp:      time.Now(),
			}
			if err := st2.SaveCheckpoint(ctx, cp); err != nil {
				t.Fatalf("SaveCheckpoint(step=%d): %v", step, err)
			}
		}

		final, err := st2.LatestCheckpoint(ctx, runID)
		if err != nil {
			t.Fatalf("LatestCheckpoint (final): %v", err)
		}
		if final.StepID != 5 {
			t.Errorf("final StepID = %d, want 5", final.StepID)
		}
	})

	t.Run("concurrent decode runs are isolated", func(t *testing.T) {
		ctx := context.Background()

		st, err := NewMySQLStore[string](dsn)
		if err != nil {
			t.Fatalf("NewMySQLStore: %v", err)
		}
		defer func() { _ = st.Close() }()

		ts := time.Now().UnixNano()
		runIDs := []string{
			fmt.Sprintf("run-a-%d", ts),
			fmt.Sprintf("run-b-%d", ts),
			fmt.Sprintf("run-c-%d", ts),
		}
		done := make(chan error, len(runIDs))

		for _, runID := range runIDs {
			go func(id string) {
				for step := 1; step <= 3; step++ {
					cp := Checkpoint[string]{
						RunID:          id,
						StepID:         step,
						Message:        map[string]float64{"RAIN": -float64(step)},
						IdempotencyKey: fmt.Sprintf("%s-%d", id, step),
						Timestamp:      time.Now(),
					}
					if err := st.SaveCheckpoint(ctx, cp); err != nil {
						done <- fmt.Errorf("run %s step %d: %w", id, step, err)
						return
					}
					time.Sleep(10 * time.Millisecond)
				}
				done <- nil
			}(runID)
		}

		for range runIDs {
			if err := <-done; err != nil {
				t.Errorf("concurrent run failed: %v", err)
			}
		}

		for _, runID := range runIDs {
			latest, err := st.LatestCheckpoint(ctx, runID)
			if err != nil {
				t.Errorf("LatestCheckpoint(%s): %v", runID, err)
				continue
			}
			if latest.StepID != 3 {
				t.Errorf("run %s final StepID = %d, want 3", runID, latest.StepID)
			}
		}
	})
}
