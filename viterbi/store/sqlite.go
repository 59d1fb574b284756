package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file SQLite-backed Store[S], suitable for local
// inspection of a decode run without standing up a database server.
//
// SQLiteStore uses WAL mode so a debugging process can read checkpoints
// while a decode run is still writing them.
type SQLiteStore[S comparable] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
	sf     singleflight.Group
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed checkpoint
// store at path. Pass ":memory:" for an ephemeral database.
func NewSQLiteStore[S comparable](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("viterbi/store: open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("viterbi/store: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore[S]{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("viterbi/store: create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore[S]) createTables(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS decoder_checkpoints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			step_id INTEGER NOT NULL,
			message TEXT NOT NULL,
			prev_candidates TEXT NOT NULL,
			broken INTEGER NOT NULL,
			idempotency_key TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(run_id, step_id)
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_checkpoints_run ON decoder_checkpoints(run_id)"); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "CREATE UNIQUE INDEX IF NOT EXISTS idx_checkpoints_idempotency ON decoder_checkpoints(idempotency_key)"); err != nil {
		return err
	}
	return nil
}

// SaveCheckpoint persists cp. Concurrent saves for the same (runID, stepID)
// - which can happen when several goroutines share one store across
// different decoder instances - are collapsed via singleflight so only one
// write reaches SQLite's single writer connection.
func (s *SQLiteStore[S]) SaveCheckpoint(ctx context.Context, cp Checkpoint[S]) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("viterbi/store: store is closed")
	}
	s.mu.RUnlock()

	key := compositeKey(cp.RunID, cp.StepID)
	_, err, _ := s.sf.Do(key, func() (interface{}, error) {
		messageJSON, err := json.Marshal(cp.Message)
		if err != nil {
			return nil, fmt.Errorf("marshal message: %w", err)
		}
		candidatesJSON, err := json.Marshal(cp.PrevCandidates)
		if err != nil {
			return nil, fmt.Errorf("marshal candidates: %w", err)
		}

		query := `
			INSERT INTO decoder_checkpoints (run_id, step_id, message, prev_candidates, broken, idempotency_key, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, step_id) DO UPDATE SET
				message = excluded.message,
				prev_candidates = excluded.prev_candidates,
				broken = excluded.broken,
				idempotency_key = excluded.idempotency_key,
				timestamp = excluded.timestamp
		`
		_, err = s.db.ExecContext(ctx, query,
			cp.RunID, cp.StepID, string(messageJSON), string(candidatesJSON), cp.Broken,
			cp.IdempotencyKey, cp.Timestamp.Format(time.RFC3339Nano),
		)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("viterbi/store: save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint retrieves the checkpoint for a specific run and step.
func (s *SQLiteStore[S]) LoadCheckpoint(ctx context.Context, runID string, step int) (Checkpoint[S], error) {
	const query = `
		SELECT run_id, step_id, message, prev_candidates, broken, idempotency_key, timestamp
		FROM decoder_checkpoints
		WHERE run_id = ? AND step_id = ?
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, runID, step))
}

// LatestCheckpoint retrieves the highest-step checkpoint for a run.
func (s *SQLiteStore[S]) LatestCheckpoint(ctx context.Context, runID string) (Checkpoint[S], error) {
	const query = `
		SELECT run_id, step_id, message, prev_candidates, broken, idempotency_key, timestamp
		FROM decoder_checkpoints
		WHERE run_id = ?
		ORDER BY step_id DESC
		LIMIT 1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, runID))
}

func (s *SQLiteStore[S]) scanOne(row *sql.Row) (Checkpoint[S], error) {
	var (
		cp             Checkpoint[S]
		messageJSON    string
		candidatesJSON string
		timestampStr   string
	)

	err := row.Scan(&cp.RunID, &cp.StepID, &messageJSON, &candidatesJSON, &cp.Broken, &cp.IdempotencyKey, &timestampStr)
	if err == sql.ErrNoRows {
		return Checkpoint[S]{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint[S]{}, fmt.Errorf("viterbi/store: load checkpoint: %w", err)
	}

	if err := json.Unmarshal([]byte(messageJSON), &cp.Message); err != nil {
		return Checkpoint[S]{}, fmt.Errorf("viterbi/store: unmarshal message: %w", err)
	}
	if err := json.Unmarshal([]byte(candidatesJSON), &cp.PrevCandidates); err != nil {
		return Checkpoint[S]{}, fmt.Errorf("viterbi/store: unmarshal candidates: %w", err)
	}
	cp.Timestamp, err = time.Parse(time.RFC3339Nano, timestampStr)
	if err != nil {
		return Checkpoint[S]{}, fmt.Errorf("viterbi/store: parse timestamp: %w", err)
	}
	return cp, nil
}

// Close closes the underlying database connection. Safe to call more than
// once.
func (s *SQLiteStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
