package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// Configuration errors returned by Discover.
var (
	ErrSourceRoot     = errors.New("source root not readable")
	ErrInvalidPattern = errors.New("invalid discovery pattern")
)

// DiscoverOptions selects the entries Discover returns.
type DiscoverOptions struct {
	Pattern  string // filepath.Match pattern applied to base names
	MaxDepth int    // 1 = direct children only; 0 = unlimited
	Dirs     bool   // match directories instead of regular files
}

// Discover walks root and returns the absolute paths of entries whose base
// name matches opts.Pattern, sorted lexicographically for deterministic
// processing order. Hidden entries are ignored and hidden directories are
// not descended into. Symlinks count as their target.
func Discover(root string, opts DiscoverOptions) ([]string, error) {
	if _, err := filepath.Match(opts.Pattern, ""); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "pattern %q", opts.Pattern), ErrInvalidPattern)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, root), ErrSourceRoot)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "source root"), ErrSourceRoot)
	}
	if !info.IsDir() {
		return nil, errors.Mark(errors.Newf("source root %s is not a directory", abs), ErrSourceRoot)
	}

	var found []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == abs {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		depth := depthOf(abs, path)
		if d.Type()&fs.ModeSymlink != 0 {
			// Classified by target; symlinked directories are not descended.
			fi, err := os.Stat(path)
			if err != nil {
				return nil
			}
			if opts.Dirs && fi.IsDir() || !opts.Dirs && fi.Mode().IsRegular() {
				if matches(opts.Pattern, name) {
					found = append(found, path)
				}
			}
			return nil
		}
		if d.IsDir() {
			if opts.Dirs && matches(opts.Pattern, name) {
				found = append(found, path)
			}
			if opts.MaxDepth > 0 && depth >= opts.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if !opts.Dirs && d.Type().IsRegular() && matches(opts.Pattern, name) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "walk %s", abs), ErrSourceRoot)
	}
	sort.Strings(found)
	return found, nil
}

func matches(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	ok, _ := filepath.Match(pattern, name)
	return ok
}

// depthOf returns 1 for direct children of root.
func depthOf(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
