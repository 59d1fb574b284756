package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"golang.org/x/sync/singleflight"
)

// MySQLStore is a MySQL-backed Store[S], suitable for a long-running service
// decoding many sequences concurrently against a shared durable checkpoint
// table.
type MySQLStore[S comparable] struct {
	db *sql.DB
	sf singleflight.Group
}

// NewMySQLStore opens a connection pool to the given DSN and ensures the
// checkpoint table exists.
func NewMySQLStore[S comparable](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("viterbi/store: open mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("viterbi/store: ping mysql: %w", err)
	}

	s := &MySQLStore[S]{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("viterbi/store: create tables: %w", err)
	}
	return s, nil
}

func (s *MySQLStore[S]) createTables(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS decoder_checkpoints (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(191) NOT NULL,
			step_id INT NOT NULL,
			message JSON NOT NULL,
			prev_candidates JSON NOT NULL,
			broken BOOLEAN NOT NULL,
			idempotency_key VARCHAR(191) NOT NULL,
			timestamp DATETIME(6) NOT NULL,
			created_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6),
			UNIQUE KEY uniq_run_step (run_id, step_id),
			UNIQUE KEY uniq_idempotency (idempotency_key),
			KEY idx_run (run_id)
		) ENGINE=InnoDB
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveCheckpoint persists cp. Concurrent saves for the same (runID, stepID)
// from different goroutines sharing this store are collapsed via
// singleflight before hitting the connection pool.
func (s *MySQLStore[S]) SaveCheckpoint(ctx context.Context, cp Checkpoint[S]) error {
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

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		const query = `
			INSERT INTO decoder_checkpoints (run_id, step_id, message, prev_candidates, broken, idempotency_key, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				message = VALUES(message),
				prev_candidates = VALUES(prev_candidates),
				broken = VALUES(broken),
				timestamp = VALUES(timestamp)
		`
		if _, err := tx.ExecContext(ctx, query,
			cp.RunID, cp.StepID, string(messageJSON), string(candidatesJSON), cp.Broken,
			cp.IdempotencyKey, cp.Timestamp.UTC().Format("2006-01-02 15:04:05.000000"),
		); err != nil {
			return nil, fmt.Errorf("insert checkpoint: %w", err)
		}

		return nil, tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("viterbi/store: save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint retrieves the checkpoint for a specific run and step.
func (s *MySQLStore[S]) LoadCheckpoint(ctx context.Context, runID string, step int) (Checkpoint[S], error) {
	const query = `
		SELECT run_id, step_id, message, prev_candidates, broken, idempotency_key, timestamp
		FROM decoder_checkpoints
		WHERE run_id = ? AND step_id = ?
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, runID, step))
}

// LatestCheckpoint retrieves the highest-step checkpoint for a run.
func (s *MySQLStore[S]) LatestCheckpoint(ctx context.Context, runID string) (Checkpoint[S], error) {
	const query = `
		SELECT run_id, step_id, message, prev_candidates, broken, idempotency_key, timestamp
		FROM decoder_checkpoints
		WHERE run_id = ?
		ORDER BY step_id DESC
		LIMIT 1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, runID))
}

func (s *MySQLStore[S]) scanOne(row *sql.Row) (Checkpoint[S], error) {
	var (
		cp             Checkpoint[S]
		messageJSON    string
		candidatesJSON string
		timestamp      time.Time
	)

	err := row.Scan(&cp.RunID, &cp.StepID, &messageJSON, &candidatesJSON, &cp.Broken, &cp.IdempotencyKey, &timestamp)
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
	cp.Timestamp = timestamp
	return cp, nil
}

// Close closes the underlying connection pool.
func (s *MySQLStore[S]) Close() error {
	return s.db.Close()
}
