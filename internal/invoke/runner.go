package invoke

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/backmassage/posepipe/internal/batch"
	"github.com/backmassage/posepipe/internal/logging"
)

const (
	defaultTailLines = 20
	tailBytes        = 64 << 10
	waitDelay        = 5 * time.Second
)

// Options configures a Runner.
type Options struct {
	Timeout    time.Duration // per invocation; 0 disables
	LaunchRate float64       // starts per second; 0 is unlimited
	DryRun     bool
	Slots      int // concurrent holders per lock key; default 1
	TailLines  int // stderr lines kept for failure logs; default 20
}

// Runner executes invocations. It is safe for concurrent use by the batch
// workers; locks and the launch limiter are shared across them.
type Runner struct {
	opts    Options
	log     *logging.Logger
	locks   *Locks
	limiter *rate.Limiter
}

// NewRunner returns a Runner that logs through log.
func NewRunner(opts Options, log *logging.Logger) *Runner {
	if opts.TailLines <= 0 {
		opts.TailLines = defaultTailLines
	}
	r := &Runner{
		opts:  opts,
		log:   log,
		locks: NewLocks(opts.Slots),
	}
	if opts.LaunchRate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.LaunchRate), 1)
	}
	return r
}

// DryRun reports whether the runner only logs commands.
func (r *Runner) DryRun() bool { return r.opts.DryRun }

// Invoke runs inv for the item id and returns its result. It never returns
// an error: every failure becomes a failed result.
func (r *Runner) Invoke(ctx context.Context, id string, inv Invocation) batch.Result {
	line := inv.CommandLine()
	if r.opts.DryRun {
		r.log.Info("[%s] [DRY] %s", id, line)
		return batch.Succeeded(id)
	}

	return r.execute(ctx, id, inv.Outputs, inv.Lock, func(ctx context.Context) (int, error) {
		r.log.Debug("[%s] $ %s", id, line)
		return r.runProcess(ctx, id, inv)
	})
}

// RunStep runs an in-process step under the same contract as Invoke. The
// timeout applies: a step that finishes after its deadline is failed and its
// output files are removed.
func (r *Runner) RunStep(ctx context.Context, id string, s Step) batch.Result {
	if r.opts.DryRun {
		r.log.Info("[%s] [DRY] would run %s", id, s.Label)
		return batch.Succeeded(id)
	}

	return r.execute(ctx, id, s.Outputs, s.Lock, func(ctx context.Context) (int, error) {
		r.log.Debug("[%s] running %s", id, s.Label)
		if err := s.Run(ctx); err != nil {
			return 0, errors.Mark(errors.Wrap(err, s.Label), batch.ErrStageExecution)
		}
		// A step that ignores ctx still fails once it overruns.
		if err := ctx.Err(); err != nil {
			return 0, errors.Mark(errors.Wrap(err, s.Label), batch.ErrStageExecution)
		}
		return 0, nil
	})
}

func (r *Runner) execute(
	ctx context.Context,
	id string,
	out Outputs,
	lock string,
	fn func(context.Context) (int, error),
) batch.Result {
	start := time.Now()

	for _, d := range out.Dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			err = errors.Mark(errors.Wrapf(err, "create output directory %s", d), batch.ErrOutputDirectory)
			return batch.Failed(id, 0, err).WithDuration(time.Since(start))
		}
	}

	if lock != "" {
		release, err := r.locks.Acquire(ctx, lock)
		if err != nil {
			return batch.Failed(id, 0, interrupted(err, "waiting for "+lock)).WithDuration(time.Since(start))
		}
		defer release()
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return batch.Failed(id, 0, interrupted(err, "waiting for launch budget")).WithDuration(time.Since(start))
		}
	}

	runCtx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	code, err := fn(runCtx)
	if err == nil {
		return batch.Succeeded(id).WithDuration(time.Since(start))
	}

	r.removePartial(id, out.Files)

	switch {
	case ctx.Err() != nil:
		err, code = interrupted(ctx.Err(), "running"), 0
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		err = errors.Mark(errors.Newf("timed out after %s", r.opts.Timeout), batch.ErrTimeout)
		code = 0
	}
	return batch.Failed(id, code, err).WithDuration(time.Since(start))
}

// runProcess runs the command and returns its exit code. Stderr is kept
// for the failure message and logged on failure; stdout only in verbose mode.
func (r *Runner) runProcess(ctx context.Context, id string, inv Invocation) (int, error) {
	stdout := newTailBuffer(tailBytes)
	stderr := newTailBuffer(tailBytes)

	cmd := exec.CommandContext(ctx, inv.Name, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	for _, l := range stdout.Lines(r.opts.TailLines) {
		r.log.Debug("[%s]   %s", id, l)
	}
	if err == nil {
		return 0, nil
	}

	tool := filepath.Base(inv.Name)
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1, errors.Mark(errors.Wrapf(err, "start %s", tool), batch.ErrStageExecution)
	}

	code := exitErr.ExitCode()
	tail := stderr.Lines(r.opts.TailLines)
	var failure error
	if len(tail) > 0 {
		failure = errors.Newf("%s exited with code %d: %s", tool, code, tail[len(tail)-1])
	} else {
		failure = errors.Newf("%s exited with code %d", tool, code)
	}
	failure = errors.Mark(failure, batch.ErrStageExecution)
	if hint := classifyStderr(stderr.String()); hint != "" {
		failure = errors.WithHint(failure, hint)
	}

	if ctx.Err() == nil && len(tail) > 0 {
		r.log.Error("[%s] Last %s output:", id, tool)
		for _, l := range tail {
			r.log.Error("[%s]   %s", id, l)
		}
	}
	return code, failure
}

// removePartial deletes declared output files left by a failed step.
func (r *Runner) removePartial(id string, files []string) {
	for _, f := range files {
		if err := os.Remove(f); err == nil {
			r.log.Debug("[%s] removed partial output %s", id, f)
		} else if !os.IsNotExist(err) {
			r.log.Warn("[%s] could not remove partial output %s: %v", id, f, err)
		}
	}
}

func interrupted(err error, what string) error {
	return errors.Mark(errors.Wrapf(err, "interrupted while %s", what), batch.ErrStageExecution)
}
