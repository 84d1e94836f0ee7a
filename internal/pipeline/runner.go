package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/backmassage/posepipe/internal/batch"
	"github.com/backmassage/posepipe/internal/fileutil"
	"github.com/backmassage/posepipe/internal/logging"
	"github.com/backmassage/posepipe/internal/naming"
)

// Options configures a Driver.
type Options struct {
	SourceRoot   string
	OutputRoot   string // defaults to SourceRoot
	Concurrency  int    // workers; values below 1 mean 1
	SkipExisting bool   // report items whose outputs all exist as up to date
	DryRun       bool   // only affects log wording; the stage decides what runs
}

// Driver runs stages over the items found under the source root.
type Driver struct {
	opts Options
	log  *logging.Logger
}

// NewDriver returns a Driver that logs through log.
func NewDriver(opts Options, log *logging.Logger) *Driver {
	if opts.OutputRoot == "" {
		opts.OutputRoot = opts.SourceRoot
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Driver{opts: opts, log: log}
}

// job is one item waiting for a worker. pos is its 1-based position for
// progress lines.
type job struct {
	item batch.Item
	pos  int
}

// Run executes st over every discovered item and returns the finalized
// report. The error is non-nil only for configuration problems found before
// iteration; per-item failures are recorded in the report. When ctx is
// cancelled no further items are dispatched and the report is marked
// interrupted.
func (d *Driver) Run(ctx context.Context, st Stage) (*batch.Report, error) {
	if err := st.Validate(); err != nil {
		return nil, err
	}
	if st.Preflight != nil {
		if err := st.Preflight(ctx); err != nil {
			return nil, errors.Wrapf(err, "%s preflight", st.Name)
		}
	}

	paths, err := Discover(d.opts.SourceRoot, st.Discover)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report := batch.NewReport(st.Name)
	items := d.buildItems(st, paths, report)

	d.log.Info("Stage %s: found %d items under %s", st.Name, len(items), d.opts.SourceRoot)
	if d.opts.DryRun {
		d.log.Warn("Dry run: commands are logged, nothing is executed")
	}

	jobs := make(chan job)
	var wg sync.WaitGroup
	for w := 0; w < d.opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res := d.process(ctx, st, j, len(items))
				report.Record(j.item.Index, res)
			}
		}()
	}

dispatch:
	for i, it := range items {
		if ctx.Err() == nil {
			select {
			case jobs <- job{item: it, pos: i + 1}:
				continue
			case <-ctx.Done():
			}
		}
		d.log.Warn("Interrupted, %d of %d items not started", len(items)-i, len(items))
		report.MarkInterrupted()
		break dispatch
	}
	close(jobs)
	wg.Wait()

	report.Finalize()
	logSummary(d.log, report, time.Since(start))
	return report, nil
}

// buildItems extracts identifiers in discovery order. Malformed names are
// excluded from the report's results; a duplicate identifier is recorded as
// failed right away and never reaches the stage.
func (d *Driver) buildItems(st Stage, paths []string, report *batch.Report) []batch.Item {
	registry := naming.NewRegistry()
	items := make([]batch.Item, 0, len(paths))

	idx := 0
	for _, p := range paths {
		base := filepath.Base(p)
		id, err := naming.Extract(base, st.Prefix, st.Suffix)
		if err != nil {
			d.log.Warn("Skipping %s: %v", base, err)
			report.Exclude(base)
			continue
		}

		if owner, ok := registry.Claim(id, p); !ok {
			err := errors.Mark(
				errors.Newf("identifier %q from %s already claimed by %s", id, p, owner),
				batch.ErrIdentifierCollision)
			d.log.Error("[%s] %v", id, err)
			report.Record(idx, batch.Failed(id, 0, err))
			idx++
			continue
		}

		items = append(items, batch.NewItem(p, id, idx, st.outputs(d.opts.OutputRoot, id, idx)))
		idx++
	}
	return items
}

// process runs one item and logs its outcome.
func (d *Driver) process(ctx context.Context, st Stage, j job, total int) batch.Result {
	it := j.item
	d.log.Info("[%d/%d] %s", j.pos, total, filepath.Base(it.SourcePath))

	if d.opts.SkipExisting && upToDate(it) {
		res := batch.UpToDate(it.Identifier)
		d.log.Info("[%s] Skip (up to date)", it.Identifier)
		return res
	}

	began := time.Now()
	res := st.Run(ctx, it).WithDuration(time.Since(began))

	switch res.Status {
	case batch.StatusSucceeded:
		d.log.Success("[%s] Done in %s", it.Identifier, res.Duration.Round(time.Millisecond))
	case batch.StatusSkippedMissingInput:
		d.log.Warn("[%s] Skipped: %s", it.Identifier, res.Message)
	case batch.StatusFailed:
		d.log.Error("[%s] Failed: %s", it.Identifier, res.Message)
	}
	return res
}

// upToDate reports whether the item declares outputs and all of them exist.
func upToDate(it batch.Item) bool {
	paths := it.OutputPaths()
	if len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		if !fileutil.Exists(p) {
			return false
		}
	}
	return true
}
