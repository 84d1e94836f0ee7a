// Package watch re-runs a batch when files appear or change under the
// source root.
package watch

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/backmassage/posepipe/internal/logging"
)

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration // quiet period before a run; default 2s
	// Ignore reports paths whose events never trigger a run, such as the
	// report or metrics file when it lives under the root.
	Ignore func(path string) bool
}

// Watcher watches a directory tree. New subdirectories are picked up as
// they are created. Hidden entries are ignored.
type Watcher struct {
	root    string
	opts    Options
	log     *logging.Logger
	fsw     *fsnotify.Watcher
	trigger chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// New starts watching root and every non-hidden directory below it.
func New(root string, opts Options, log *logging.Logger) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}
	w := &Watcher{
		root:    root,
		opts:    opts,
		log:     log,
		fsw:     fsw,
		trigger: make(chan struct{}, 1),
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

// Run calls fn after every debounced burst of create or write events until
// ctx is done. Runs never overlap; events that arrive during a run schedule
// the next one. An error from fn is logged and watching continues.
func (w *Watcher) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	w.log.Info("Watching %s for changes (debounce %s)", w.root, w.opts.Debounce)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Watcher error: %v", err)

		case <-w.trigger:
			if ctx.Err() != nil {
				return nil
			}
			if err := fn(ctx); err != nil {
				w.log.Error("Run failed: %v", err)
			}
			w.log.Info("Waiting for changes under %s", w.root)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if hidden(w.root, ev.Name) || (w.opts.Ignore != nil && w.opts.Ignore(ev.Name)) {
		return
	}

	if ev.Has(fsnotify.Create) {
		// A new directory may already hold files by the time it is added;
		// the scheduled run rescans the tree anyway.
		if err := w.addTree(ev.Name); err != nil {
			w.log.Debug("Not watching %s: %v", ev.Name, err)
		}
	}
	w.log.Debug("Change: %s %s", ev.Op, ev.Name)
	w.schedule()
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, func() {
		select {
		case w.trigger <- struct{}{}:
		default: // a run is already pending
		}
	})
}

// addTree adds path and its non-hidden subdirectories. Files are skipped.
func (w *Watcher) addTree(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return errors.Wrapf(err, "watch %s", p)
		}
		return nil
	})
}

// hidden reports whether any element of path below root starts with a dot.
// Atomic writes go through hidden temporary files.
func hidden(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
