package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/backmassage/posepipe/internal/config"
	"github.com/backmassage/posepipe/internal/display"
	"github.com/backmassage/posepipe/internal/history"
	"github.com/backmassage/posepipe/internal/invoke"
	"github.com/backmassage/posepipe/internal/logging"
	"github.com/backmassage/posepipe/internal/metrics"
	"github.com/backmassage/posepipe/internal/pipeline"
	"github.com/backmassage/posepipe/internal/stage"
	"github.com/backmassage/posepipe/internal/watch"
)

var stageShort = map[string]string{
	stage.Detect:   "Run the pose demo on every .mp4 video",
	stage.Convert:  "Convert pose demo results to tracker and keypoint JSON",
	stage.Merge:    "Attach tracker ids to keypoint JSON",
	stage.Encode:   "Assemble frame images of each session into an mp4",
	stage.Skeleton: "Export tracked keypoint JSON as skeleton files",
}

func newStageCmd(opts *rootOptions, name string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name + " [source-root]",
		Short: stageShort[name],
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, args)
			if err != nil {
				return err
			}
			if err := cfg.ValidatePaths(); err != nil {
				return err
			}
			return runStage(cmd.Context(), cfg, name)
		},
	}
	config.AddStageFlags(cmd.Flags(), name)
	return cmd
}

// session holds what one stage command keeps across watch re-runs.
type session struct {
	cfg     *config.Config
	log     *logging.Logger
	driver  *pipeline.Driver
	stage   pipeline.Stage
	metrics *metrics.Recorder
	history *history.Store
}

func runStage(parent context.Context, cfg *config.Config, name string) error {
	// Re-runs only pick up new items.
	if cfg.Watch {
		cfg.SkipExisting = true
	}

	log, err := logging.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	display.PrintBanner(os.Stdout, config.Version())
	log.Info("Stage: %s", name)
	log.Info("In:  %s", cfg.SourceRoot)
	log.Info("Out: %s", cfg.OutputRoot)
	if cfg.DryRun {
		log.Warn("DRY RUN: no commands will be executed")
	}

	ctx, cancel := interruptible(parent, log)
	defer cancel()

	runner := invoke.NewRunner(invoke.Options{
		Timeout:    cfg.Timeout,
		LaunchRate: cfg.LaunchRate,
		DryRun:     cfg.DryRun,
		Slots:      cfg.Detect.DeviceSlots,
	}, log)
	st, err := stage.New(name, stage.Env{Cfg: cfg, Runner: runner, Log: log})
	if err != nil {
		return err
	}

	s := &session{
		cfg:   cfg,
		log:   log,
		stage: st,
		driver: pipeline.NewDriver(pipeline.Options{
			SourceRoot:   cfg.SourceRoot,
			OutputRoot:   cfg.OutputRoot,
			Concurrency:  cfg.Concurrency,
			SkipExisting: cfg.SkipExisting,
			DryRun:       cfg.DryRun,
		}, log),
	}
	if cfg.MetricsFile != "" {
		s.metrics = metrics.NewRecorder()
	}
	if cfg.HistoryDB != "" {
		if s.history, err = history.Open(ctx, cfg.HistoryDB); err != nil {
			return err
		}
		defer s.history.Close()
	}

	if !cfg.Watch {
		return s.runOnce(ctx)
	}

	w, err := watch.New(cfg.SourceRoot, watch.Options{
		Debounce: cfg.WatchDebounce,
		Ignore:   ignoreRunOutputs(cfg),
	}, log)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := s.runOnce(ctx); err != nil && !errors.Is(err, errItemsFailed) {
		return err
	}
	return w.Run(ctx, func(ctx context.Context) error {
		if err := s.runOnce(ctx); err != nil && !errors.Is(err, errItemsFailed) {
			return err
		}
		return nil
	})
}

// runOnce runs the stage and writes the report, metrics, and history.
// Output write failures are logged and do not change the exit status.
func (s *session) runOnce(ctx context.Context) error {
	started := time.Now()
	rep, err := s.driver.Run(ctx, s.stage)
	if err != nil {
		return err
	}
	finished := time.Now()

	if s.cfg.Report != "" {
		if err := rep.WriteFile(s.cfg.Report); err != nil {
			s.log.Error("%v", err)
		} else {
			s.log.Info("Report: %s", s.cfg.Report)
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveReport(rep, finished.Sub(started), finished)
		if err := s.metrics.WriteFile(s.cfg.MetricsFile); err != nil {
			s.log.Error("%v", err)
		}
	}
	if s.history != nil {
		run := history.NewRun(rep, started, finished, s.cfg.DryRun)
		// Record even when the run was interrupted.
		if err := s.history.Record(context.WithoutCancel(ctx), run, rep.Results); err != nil {
			s.log.Error("%v", err)
		} else {
			s.log.Debug("Recorded run %s", run.ID)
		}
	}
	if s.cfg.Verbose {
		if table, err := display.ReportTable(rep); err == nil {
			fmt.Fprintln(os.Stdout, table)
		}
	}

	if rep.HasFailures() {
		s.log.Debug("%v", rep.Err())
		return errItemsFailed
	}
	return nil
}

// interruptible cancels the returned context on SIGINT or SIGTERM. The
// driver stops dispatching and running subprocesses are killed.
func interruptible(parent context.Context, log *logging.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Received interrupt, cancelling running items")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// ignoreRunOutputs keeps the files a run writes itself from triggering the
// next watch run: each output, anything next to it whose name extends it
// (SQLite journals, the metrics textfile's temp file), and hidden files,
// which is where atomic writes stage their data.
func ignoreRunOutputs(cfg *config.Config) func(string) bool {
	var own []string
	for _, p := range []string{cfg.Report, cfg.MetricsFile, cfg.HistoryDB, cfg.Log.File} {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			own = append(own, abs)
		}
	}
	return func(path string) bool {
		dir, base := filepath.Split(path)
		if strings.HasPrefix(base, ".") {
			return true
		}
		for _, o := range own {
			odir, obase := filepath.Split(o)
			if dir == odir && strings.HasPrefix(base, obase) {
				return true
			}
		}
		return false
	}
}
