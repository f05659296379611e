// Package history persists one row per triage run in a local SQLite
// database, for the history CLI command and post-hoc debugging.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/prtriage/prtriage/internal/detect"
)

const schema = `
CREATE TABLE IF NOT EXISTS triage_runs (
	run_id      TEXT PRIMARY KEY,
	owner       TEXT NOT NULL,
	repo        TEXT NOT NULL,
	pr_number   INTEGER NOT NULL,
	head_sha    TEXT NOT NULL,
	score       INTEGER NOT NULL,
	flagged     INTEGER NOT NULL,
	match_count INTEGER NOT NULL,
	detection   TEXT,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_triage_runs_repo_pr
	ON triage_runs(owner, repo, pr_number, created_at DESC);
`

// Run is one recorded triage run.
type Run struct {
	RunID      string
	Owner      string
	Repo       string
	Number     int
	HeadSHA    string
	Score      int
	Flagged    bool
	MatchCount int
	Detection  *detect.Result
	CreatedAt  time.Time
}

// Store is the SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path with WAL
// journaling and initializes the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one run. The detection result is stored as JSON so the
// full classification survives for later inspection.
func (s *Store) Record(ctx context.Context, run Run) error {
	var detection any
	if run.Detection != nil {
		raw, err := json.Marshal(run.Detection)
		if err != nil {
			return fmt.Errorf("failed to encode detection result: %w", err)
		}
		detection = string(raw)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO triage_runs
			(run_id, owner, repo, pr_number, head_sha, score, flagged, match_count, detection)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Owner, run.Repo, run.Number, run.HeadSHA,
		run.Score, run.Flagged, run.MatchCount, detection)
	if err != nil {
		return fmt.Errorf("failed to record triage run: %w", err)
	}
	return nil
}

// ListRecent returns the latest runs, newest first. A non-empty owner
// and repo narrow the listing to one repository.
func (s *Store) ListRecent(ctx context.Context, owner, repo string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, owner, repo, pr_number, head_sha, score, flagged, match_count, detection, created_at
		FROM triage_runs`
	args := []any{}
	if owner != "" && repo != "" {
		query += ` WHERE owner = ? AND repo = ?`
		args = append(args, owner, repo)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query triage runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			detection sql.NullString
		)
		if err := rows.Scan(&run.RunID, &run.Owner, &run.Repo, &run.Number, &run.HeadSHA,
			&run.Score, &run.Flagged, &run.MatchCount, &detection, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan triage run: %w", err)
		}
		if detection.Valid && detection.String != "" {
			var res detect.Result
			if err := json.Unmarshal([]byte(detection.String), &res); err != nil {
				return nil, fmt.Errorf("failed to decode detection result for run %s: %w", run.RunID, err)
			}
			run.Detection = &res
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
