package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/backmassage/posepipe/internal/batch"
	"github.com/backmassage/posepipe/internal/config"
	"github.com/backmassage/posepipe/internal/logging"
	"github.com/backmassage/posepipe/internal/metrics"
	"github.com/backmassage/posepipe/internal/watch"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "posepipe "+config.Version()+" (unknown)\n", out)
}

func TestConvertDryRunWritesReport(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "results_100.json"), []byte("[]"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "results_.json"), []byte("[]"), 0o644))
	report := filepath.Join(t.TempDir(), "report.yaml")

	_, err := execute(t, "convert", src, "--dry-run", "--report", report,
		"--python", "/nonexistent/python", "--color", "never")
	require.NoError(t, err)

	b, err := os.ReadFile(report)
	require.NoError(t, err)
	var got struct {
		Stage    string       `yaml:"stage"`
		Total    int          `yaml:"total"`
		Counts   batch.Counts `yaml:"counts"`
		Excluded []string     `yaml:"excluded"`
	}
	require.NoError(t, yaml.Unmarshal(b, &got))
	assert.Equal(t, "convert", got.Stage)
	assert.Equal(t, 1, got.Total)
	assert.Equal(t, 1, got.Counts.Succeeded)
	assert.Equal(t, []string{"results_.json"}, got.Excluded)
	assert.NoDirExists(t, filepath.Join(src, "100"))
}

func TestStageCommandConfigErrors(t *testing.T) {
	_, err := execute(t, "merge", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, errItemsFailed))

	_, err = execute(t, "merge", t.TempDir(), "--engine", "bogus")
	assert.Error(t, err)
}

func TestSkeletonFailuresSetExitError(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "100_botsort.json"), []byte("{}"), 0o644))

	_, err := execute(t, "skeleton", src, "--color", "never")
	assert.True(t, errors.Is(err, errItemsFailed))
}

func TestHistoryCommand(t *testing.T) {
	_, err := execute(t, "history")
	assert.Error(t, err, "history_db unset")

	db := filepath.Join(t.TempDir(), "runs.db")
	out, err := execute(t, "history", "--history-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "results_7.json"), []byte("[]"), 0o644))
	_, err = execute(t, "convert", src, "--dry-run", "--history-db", db, "--color", "never")
	require.NoError(t, err)

	out, err = execute(t, "history", "--history-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "convert")
}

func TestIgnoreRunOutputs(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Report = filepath.Join(dir, "report.json")
	cfg.MetricsFile = filepath.Join(dir, "posepipe.prom")
	cfg.HistoryDB = filepath.Join(dir, "runs.db")

	ignore := ignoreRunOutputs(&cfg)
	assert.True(t, ignore(cfg.Report))
	assert.True(t, ignore(cfg.HistoryDB+"-journal"))
	assert.True(t, ignore(filepath.Join(dir, ".report.json.tmp123")))
	assert.True(t, ignore(filepath.Join(dir, "posepipe.prom123456")))
	assert.False(t, ignore(filepath.Join(dir, "results_1.json")))
	assert.False(t, ignore(filepath.Join(dir, "sub", "posepipe.prom")))
}

func TestWatchSettlesWithMetricsUnderRoot(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.MetricsFile = filepath.Join(root, "posepipe.prom")

	w, err := watch.New(root, watch.Options{
		Debounce: 100 * time.Millisecond,
		Ignore:   ignoreRunOutputs(&cfg),
	}, logging.Nop())
	require.NoError(t, err)
	defer w.Close()

	rec := metrics.NewRecorder()
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(context.Context) error {
			runs.Add(1)
			return rec.WriteFile(cfg.MetricsFile)
		})
	}()

	require.NoError(t, os.WriteFile(filepath.Join(root, "results_1.json"), []byte("[]"), 0o644))
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(time.Second)
	cancel()
	<-done

	assert.Equal(t, int32(1), runs.Load(), "metrics writes must not trigger re-runs")
	assert.FileExists(t, cfg.MetricsFile)
}

func TestInterruptCancelsRunningItems(t *testing.T) {
	var out bytes.Buffer
	log, err := logging.New(logging.Options{Format: config.LogConsole, Stdout: &out, Stderr: &out})
	require.NoError(t, err)

	ctx, stop := interruptible(context.Background(), log)
	defer stop()
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled by SIGINT")
	}
	assert.Contains(t, out.String(), "Received interrupt, cancelling running items")
}
