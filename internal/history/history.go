package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/fleet"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/workflow"
	_ "modernc.org/sqlite"
)

// DefaultListLimit is used when List is called without a positive limit.
const DefaultListLimit = 20

// Times are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	workflow    TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	total       INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	partial     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS host_reports (
	run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	host    TEXT NOT NULL,
	address TEXT NOT NULL,
	status  TEXT NOT NULL,
	partial INTEGER NOT NULL,
	report  TEXT NOT NULL,
	PRIMARY KEY (run_id, host)
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
`

// Run is one row of the run listing.
type Run struct {
	ID         string        `json:"id" yaml:"id"`
	Workflow   string        `json:"workflow" yaml:"workflow"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
	Summary    fleet.Summary `json:"summary" yaml:"summary"`
}

// Store is an append-only log of finished fleet runs kept in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. A leading "~/" is expanded and
// missing parent directories are created.
func Open(path string) (*Store, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if resolved != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(resolved), 0o700); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", resolved)
	if err != nil {
		return nil, fmt.Errorf("open history database %q: %w", resolved, err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save appends a finished report.
func (s *Store) Save(ctx context.Context, r *fleet.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs(id,workflow,started_at,finished_at,total,succeeded,failed,skipped,partial)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		r.RunID, r.Workflow, formatTime(r.StartedAt), formatTime(r.FinishedAt),
		r.Summary.Total, r.Summary.Succeeded, r.Summary.Failed, r.Summary.Skipped, r.Summary.Partial)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}

	for _, h := range r.Hosts {
		data, err := json.Marshal(h)
		if err != nil {
			return fmt.Errorf("encode report for %s: %w", h.Host, err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO host_reports(run_id,host,address,status,partial,report) VALUES (?,?,?,?,?,?)`,
			r.RunID, h.Host, h.Address, string(h.Status), h.Partial, string(data))
		if err != nil {
			return fmt.Errorf("insert report for %s: %w", h.Host, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", r.RunID, err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,workflow,started_at,finished_at,total,succeeded,failed,skipped,partial
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Get returns the full report of one run with hosts ordered by ID.
func (s *Store) Get(ctx context.Context, runID string) (*fleet.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,workflow,started_at,finished_at,total,succeeded,failed,skipped,partial
		FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT report FROM host_reports WHERE run_id = ? ORDER BY host`, runID)
	if err != nil {
		return nil, fmt.Errorf("load host reports for %s: %w", runID, err)
	}
	defer rows.Close()

	report := &fleet.Report{
		RunID:      run.ID,
		Workflow:   run.Workflow,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Summary:    run.Summary,
	}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan host report: %w", err)
		}
		var h workflow.HostReport
		if err := json.Unmarshal([]byte(data), &h); err != nil {
			return nil, fmt.Errorf("decode host report: %w", err)
		}
		report.Hosts = append(report.Hosts, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load host reports for %s: %w", runID, err)
	}
	return report, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var started, finished string
	err := row.Scan(&run.ID, &run.Workflow, &started, &finished,
		&run.Summary.Total, &run.Summary.Succeeded, &run.Summary.Failed, &run.Summary.Skipped, &run.Summary.Partial)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scan run: %w", err)
	}
	if run.StartedAt, err = parseTime(started); err != nil {
		return run, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return run, err
	}
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func resolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("history path is empty")
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
