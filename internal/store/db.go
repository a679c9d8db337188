// Package store keeps a SQLite ledger of pipeline runs, dataset outcomes and
// analysis results.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"market-pipeline/internal/model"
)

// ErrNotFound is returned when a run or result does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	specs TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	finished_at DATETIME
);
CREATE TABLE IF NOT EXISTS dataset_outcomes (
	run_id TEXT NOT NULL,
	dataset TEXT NOT NULL,
	state TEXT NOT NULL,
	stage TEXT,
	error_kind TEXT,
	error_message TEXT,
	attempts INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, dataset)
);
CREATE TABLE IF NOT EXISTS analysis_results (
	run_id TEXT NOT NULL,
	dataset TEXT NOT NULL,
	location TEXT NOT NULL,
	result TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, dataset)
);
CREATE INDEX IF NOT EXISTS idx_analysis_results_dataset ON analysis_results (dataset, created_at);
`

// RunStatusRunning marks a run that has started but not finished.
const RunStatusRunning = "running"

// Run is one row of the runs table.
type Run struct {
	ID         string              `json:"id"`
	Status     string              `json:"status"`
	Specs      []model.DatasetSpec `json:"datasets"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// DatasetOutcome is the latest known state of a dataset within a run.
type DatasetOutcome struct {
	RunID        string             `json:"run_id"`
	Dataset      string             `json:"dataset"`
	State        model.DatasetState `json:"state"`
	Stage        string             `json:"stage,omitempty"`
	ErrorKind    string             `json:"error_kind,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Attempts     int                `json:"attempts"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// StoredAnalysis is an analysis artifact recorded for a run.
type StoredAnalysis struct {
	RunID     string               `json:"run_id"`
	Dataset   string               `json:"dataset"`
	Location  string               `json:"location"`
	Result    model.AnalysisResult `json:"result"`
	CreatedAt time.Time            `json:"created_at"`
}

// DB is the run ledger.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the ledger at dbPath and applies the schema.
func Open(dbPath string) (*DB, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{db: db}, nil
}

func (s *DB) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *DB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// StartRun stores a new run in the running state. Starting a run that is
// already recorded is a no-op.
func (s *DB) StartRun(ctx context.Context, runID string, specs []model.DatasetSpec, startedAt time.Time) error {
	specJSON, err := json.Marshal(specs)
	if err != nil {
		return err
	}
	now := startedAt.UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, specs, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		runID, string(specJSON), RunStatusRunning, now, now)
	return err
}

// RecordTransition upserts the dataset's current state. attempts is the
// attempt count of the stage that produced the state; a failure's own count
// takes precedence.
func (s *DB) RecordTransition(ctx context.Context, runID, dataset string, state model.DatasetState, attempts int, failure *model.DatasetFailure) error {
	var stage, kind, msg string
	if failure != nil {
		stage, kind, msg, attempts = string(failure.Stage), failure.Kind, failure.Message, failure.Attempts
	} else {
		stage = stageOf(state)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dataset_outcomes (run_id, dataset, state, stage, error_kind, error_message, attempts, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, dataset) DO UPDATE SET
			state = excluded.state,
			stage = excluded.stage,
			error_kind = excluded.error_kind,
			error_message = excluded.error_message,
			attempts = excluded.attempts,
			updated_at = excluded.updated_at`,
		runID, dataset, string(state), stage, kind, msg, attempts, time.Now().UTC())
	return err
}

func stageOf(state model.DatasetState) string {
	if state == model.StateDone {
		return string(model.Stages[len(model.Stages)-1])
	}
	for _, st := range model.Stages {
		if st.State() == state {
			return string(st)
		}
	}
	return ""
}

// RecordAnalysis stores the analysis of a dataset that reached done.
func (s *DB) RecordAnalysis(ctx context.Context, runID string, a model.Analysis) error {
	resultJSON, err := json.Marshal(a.Result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_results (run_id, dataset, location, result, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (run_id, dataset) DO UPDATE SET
			location = excluded.location,
			result = excluded.result,
			created_at = excluded.created_at`,
		runID, a.Dataset, a.Location, string(resultJSON), time.Now().UTC())
	return err
}

// FinishRun sets the final status of a run.
func (s *DB) FinishRun(ctx context.Context, runID string, status model.BatchStatus, finishedAt time.Time) error {
	now := finishedAt.UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ?, finished_at = ? WHERE id = ?`,
		string(status), now, now, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// ListRuns returns runs, newest first.
func (s *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, specs, status, created_at, updated_at, finished_at FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches one run.
func (s *DB) GetRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, specs, status, created_at, updated_at, finished_at FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r        Run
		specJSON string
		finished sql.NullTime
	)
	if err := sc.Scan(&r.ID, &specJSON, &r.Status, &r.CreatedAt, &r.UpdatedAt, &finished); err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal([]byte(specJSON), &r.Specs); err != nil {
		return Run{}, fmt.Errorf("decode specs of run %s: %w", r.ID, err)
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

// GetDatasetOutcomes lists the per-dataset state of a run, ordered by dataset.
// With failedOnly set only failed datasets are returned.
func (s *DB) GetDatasetOutcomes(ctx context.Context, runID string, failedOnly bool) ([]DatasetOutcome, error) {
	query := `SELECT run_id, dataset, state, stage, error_kind, error_message, attempts, updated_at
		FROM dataset_outcomes WHERE run_id = ?`
	args := []any{runID}
	if failedOnly {
		query += ` AND state = ?`
		args = append(args, string(model.StateFailed))
	}
	query += ` ORDER BY dataset`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	outcomes := []DatasetOutcome{}
	for rows.Next() {
		var o DatasetOutcome
		var stage, kind, msg sql.NullString
		if err := rows.Scan(&o.RunID, &o.Dataset, &o.State, &stage, &kind, &msg, &o.Attempts, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Stage, o.ErrorKind, o.ErrorMessage = stage.String, kind.String, msg.String
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// GetAnalysisResults lists the analyses recorded for a run.
func (s *DB) GetAnalysisResults(ctx context.Context, runID string) ([]StoredAnalysis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, dataset, location, result, created_at FROM analysis_results WHERE run_id = ? ORDER BY dataset`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []StoredAnalysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// GetLatestAnalysis returns the most recent analysis of a dataset across runs.
func (s *DB) GetLatestAnalysis(ctx context.Context, dataset string) (StoredAnalysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, dataset, location, result, created_at FROM analysis_results
		WHERE dataset = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, dataset)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredAnalysis{}, fmt.Errorf("analysis of %s: %w", dataset, ErrNotFound)
	}
	return a, err
}

func scanAnalysis(sc scanner) (StoredAnalysis, error) {
	var a StoredAnalysis
	var resultJSON string
	if err := sc.Scan(&a.RunID, &a.Dataset, &a.Location, &resultJSON, &a.CreatedAt); err != nil {
		return StoredAnalysis{}, err
	}
	if err := json.Unmarshal([]byte(resultJSON), &a.Result); err != nil {
		return StoredAnalysis{}, fmt.Errorf("decode analysis of %s: %w", a.Dataset, err)
	}
	return a, nil
}
