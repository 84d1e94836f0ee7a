// Package history keeps a SQLite log of batch runs and their per-item
// results.
package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/backmassage/posepipe/internal/batch"
)

// timeLayout is fixed width so that started_at sorts chronologically as
// text. Reads accept any RFC 3339 fraction.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		stage       TEXT NOT NULL,
		started_at  TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		total       INTEGER NOT NULL,
		succeeded   INTEGER NOT NULL,
		up_to_date  INTEGER NOT NULL,
		skipped     INTEGER NOT NULL,
		failed      INTEGER NOT NULL,
		interrupted INTEGER NOT NULL,
		dry_run     INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS run_items (
		run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		identifier  TEXT NOT NULL,
		status      TEXT NOT NULL,
		exit_code   INTEGER NOT NULL,
		message     TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		PRIMARY KEY (run_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at)`,
}

const (
	insertRunQuery = `
		INSERT INTO runs (id, stage, started_at, finished_at, total, succeeded, up_to_date, skipped, failed, interrupted, dry_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertItemQuery = `
		INSERT INTO run_items (run_id, position, identifier, status, exit_code, message, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	recentRunsQuery = `
		SELECT id, stage, started_at, finished_at, total, succeeded, up_to_date, skipped, failed, interrupted, dry_run
		FROM runs ORDER BY started_at DESC LIMIT ?`

	runItemsQuery = `
		SELECT position, identifier, status, exit_code, message, duration_ms
		FROM run_items WHERE run_id = ? ORDER BY position`
)

// Run is one recorded batch run.
type Run struct {
	ID          string
	Stage       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Total       int
	Succeeded   int
	UpToDate    int
	Skipped     int
	Failed      int
	Interrupted bool
	DryRun      bool
}

// Item is one recorded per-item result.
type Item struct {
	Position   int
	Identifier string
	Status     batch.Status
	ExitCode   int
	Message    string
	Duration   time.Duration
}

// NewRun summarizes a finalized report under a fresh run id.
func NewRun(r *batch.Report, started, finished time.Time, dryRun bool) Run {
	return Run{
		ID:          uuid.NewString(),
		Stage:       r.Stage,
		StartedAt:   started,
		FinishedAt:  finished,
		Total:       r.Total,
		Succeeded:   r.Counts.Succeeded,
		UpToDate:    r.Counts.UpToDate,
		Skipped:     r.Counts.SkippedMissingInput,
		Failed:      r.Counts.Failed,
		Interrupted: r.Interrupted,
		DryRun:      dryRun,
	}
}

// Store reads and writes run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies
// the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open history database")
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enable foreign keys")
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "set busy timeout")
	}

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. The caller is responsible for Migrate.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "apply history schema")
		}
	}
	return nil
}

// Record stores run and its results in one transaction.
func (s *Store) Record(ctx context.Context, run Run, results []batch.Result) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, insertRunQuery,
		run.ID, run.Stage,
		run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
		run.Total, run.Succeeded, run.UpToDate, run.Skipped, run.Failed,
		run.Interrupted, run.DryRun,
	); err != nil {
		return errors.Wrap(err, "insert run")
	}

	stmt, err := tx.PrepareContext(ctx, insertItemQuery)
	if err != nil {
		return errors.Wrap(err, "prepare item insert")
	}
	defer stmt.Close()

	for i, res := range results {
		if _, err = stmt.ExecContext(ctx,
			run.ID, i, res.Identifier, string(res.Status), res.ExitCode, res.Message,
			res.Duration.Milliseconds(),
		); err != nil {
			return errors.Wrapf(err, "insert item %s", res.Identifier)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, recentRunsQuery, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.Stage, &started, &finished,
			&r.Total, &r.Succeeded, &r.UpToDate, &r.Skipped, &r.Failed,
			&r.Interrupted, &r.DryRun); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, errors.Wrapf(err, "run %s started_at", r.ID)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, errors.Wrapf(err, "run %s finished_at", r.ID)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Items returns the recorded results of one run in report order.
func (s *Store) Items(ctx context.Context, runID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, runItemsQuery, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query run items")
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it     Item
			status string
			ms     int64
		)
		if err := rows.Scan(&it.Position, &it.Identifier, &status, &it.ExitCode, &it.Message, &ms); err != nil {
			return nil, errors.Wrap(err, "scan run item")
		}
		it.Status = batch.Status(status)
		it.Duration = time.Duration(ms) * time.Millisecond
		items = append(items, it)
	}
	return items, rows.Err()
}
