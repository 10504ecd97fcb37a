package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/trial-eligibility-engine/internal/domain"
)

// SQLiteStore persists audit traces in a SQLite database, one row per trial
// evaluation. It implements domain.TraceWriter and additionally supports
// replaying a run's traces for review.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens the trace database, creating the file and schema if
// they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL keeps concurrent evaluation fan-outs from serializing on writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// createSchema creates the trace table and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS eligibility_traces (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		trial_id TEXT NOT NULL,
		overall TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_traces_run_id ON eligibility_traces(run_id);
	CREATE INDEX IF NOT EXISTS idx_traces_trial_id ON eligibility_traces(trial_id);
	CREATE INDEX IF NOT EXISTS idx_traces_created_at ON eligibility_traces(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Write appends one trace record.
func (s *SQLiteStore) Write(ctx context.Context, trace *domain.TrialTrace) error {
	payload, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("encoding trace for trial %s: %w", trace.TrialID, err)
	}

	createdAt := trace.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO eligibility_traces (run_id, trial_id, overall, payload, created_at) VALUES (?, ?, ?, ?, ?)",
		trace.RunID, trace.TrialID, trace.Overall.String(), string(payload), createdAt,
	)
	if err != nil {
		return fmt.Errorf("inserting trace for trial %s: %w", trace.TrialID, err)
	}
	return nil
}

// GetByRunID replays every trace recorded for one evaluation run, in
// insertion order.
func (s *SQLiteStore) GetByRunID(ctx context.Context, runID string) ([]*domain.TrialTrace, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM eligibility_traces WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying traces for run %s: %w", runID, err)
	}
	defer rows.Close()

	var traces []*domain.TrialTrace
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning trace row: %w", err)
		}
		var trace domain.TrialTrace
		if err := json.Unmarshal([]byte(payload), &trace); err != nil {
			return nil, fmt.Errorf("decoding trace payload: %w", err)
		}
		traces = append(traces, &trace)
	}
	return traces, rows.Err()
}

// CountByTrial returns how many traces have been recorded per trial id.
func (s *SQLiteStore) CountByTrial(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT trial_id, COUNT(*) FROM eligibility_traces GROUP BY trial_id",
	)
	if err != nil {
		return nil, fmt.Errorf("counting traces: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var trialID string
		var n int
		if err := rows.Scan(&trialID, &n); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		counts[trialID] = n
	}
	return counts, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
