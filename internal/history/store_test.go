package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/posepipe/internal/batch"
)

func sampleReport() *batch.Report {
	r := batch.NewReport("convert")
	r.Record(0, batch.Succeeded("100").WithDuration(1500*time.Millisecond))
	r.Record(1, batch.Skipped("200", "no keypoint json"))
	r.Record(2, batch.Failed("300", 2, errors.New("tool exited with code 2")))
	r.Finalize()
	return r
}

func TestNewRun(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := NewRun(sampleReport(), started, started.Add(time.Minute), true)

	assert.Len(t, run.ID, 36)
	assert.Equal(t, "convert", run.Stage)
	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 1, run.Succeeded)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 1, run.Failed)
	assert.True(t, run.DryRun)

	other := NewRun(sampleReport(), started, started, true)
	assert.NotEqual(t, run.ID, other.ID)
}

func TestMigrate_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS run_items`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS runs_started_at`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, New(db).Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	report := sampleReport()
	run := NewRun(report, started, started.Add(2*time.Second), false)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(run.ID, "convert",
			"2026-03-01T10:00:00.000000000Z", "2026-03-01T10:00:02.000000000Z",
			3, 1, 0, 1, 1, false, false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep := mock.ExpectPrepare(`INSERT INTO run_items`)
	prep.ExpectExec().WithArgs(run.ID, 0, "100", "succeeded", 0, "", int64(1500)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs(run.ID, 1, "200", "skipped_missing_input", 0, "no keypoint json", int64(0)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	prep.ExpectExec().WithArgs(run.ID, 2, "300", "failed", 2, "tool exited with code 2", int64(0)).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	require.NoError(t, New(db).Record(context.Background(), run, report.Results))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_RollsBackOnItemFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	report := sampleReport()
	run := NewRun(report, time.Now(), time.Now(), false)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs`).WillReturnResult(sqlmock.NewResult(1, 1))
	prep := mock.ExpectPrepare(`INSERT INTO run_items`)
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = New(db).Record(context.Background(), run, report.Results)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert item 100")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecent_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "stage", "started_at", "finished_at",
		"total", "succeeded", "up_to_date", "skipped", "failed", "interrupted", "dry_run",
	}).
		AddRow("b", "merge", "2026-03-02T09:00:00Z", "2026-03-02T09:01:00Z", 3, 2, 0, 1, 0, false, false).
		AddRow("a", "convert", "2026-03-01T09:00:00Z", "2026-03-01T09:00:30Z", 2, 2, 0, 0, 0, true, false)
	mock.ExpectQuery(`SELECT .* FROM runs ORDER BY started_at DESC LIMIT`).
		WithArgs(5).
		WillReturnRows(rows)

	runs, err := New(db).Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "merge", runs[0].Stage)
	assert.Equal(t, time.Minute, runs[0].FinishedAt.Sub(runs[0].StartedAt))
	assert.True(t, runs[1].Interrupted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecent_BadTimestamp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "stage", "started_at", "finished_at",
		"total", "succeeded", "up_to_date", "skipped", "failed", "interrupted", "dry_run",
	}).AddRow("a", "merge", "yesterday", "2026-03-02T09:01:00Z", 0, 0, 0, 0, 0, false, false)
	mock.ExpectQuery(`SELECT .* FROM runs`).WillReturnRows(rows)

	_, err = New(db).Recent(context.Background(), 1)
	assert.Error(t, err)
}

func TestStore_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(ctx, path)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	report := sampleReport()
	first := NewRun(report, base, base.Add(time.Second), false)
	second := NewRun(report, base.Add(time.Hour), base.Add(time.Hour+time.Second), false)
	require.NoError(t, s.Record(ctx, first, report.Results))
	require.NoError(t, s.Record(ctx, second, report.Results))

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.True(t, runs[1].StartedAt.Equal(base))

	items, err := s.Items(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "100", items[0].Identifier)
	assert.Equal(t, 1500*time.Millisecond, items[0].Duration)
	assert.Equal(t, batch.StatusFailed, items[2].Status)
	assert.Equal(t, 2, items[2].ExitCode)
	require.NoError(t, s.Close())

	// Re-opening an existing database keeps its rows.
	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	runs, err = s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second.ID, runs[0].ID)
}

func TestRecent_OrdersWithinOneSecond(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer s.Close()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	report := sampleReport()
	var ids []string
	for _, frac := range []time.Duration{123 * time.Millisecond, 120 * time.Millisecond, 0, 500 * time.Millisecond} {
		run := NewRun(report, base.Add(frac), base.Add(time.Second), false)
		require.NoError(t, s.Record(ctx, run, nil))
		ids = append(ids, run.ID)
	}

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	got := make([]string, len(runs))
	for i, r := range runs {
		got[i] = r.ID
	}
	assert.Equal(t, []string{ids[3], ids[0], ids[1], ids[2]}, got)
	assert.True(t, runs[1].StartedAt.Equal(base.Add(123*time.Millisecond)))
}
