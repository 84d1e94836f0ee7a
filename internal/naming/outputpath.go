package naming

import (
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Output declares one path a stage writes for an item.
type Output struct {
	Kind     string
	Template Template
	Dir      bool // the output is a directory filled by the tool
}

// Layout is the ordered set of outputs a stage produces, relative to the
// output root.
//
//	{id}/results_{id}.json   -> <root>/100/results_100.json
//	{id}/{id}_npy (Dir)      -> <root>/100/100_npy/
type Layout []Output

// Validate checks every template and rejects duplicate kinds.
func (l Layout) Validate() error {
	seen := make(map[string]bool, len(l))
	for _, o := range l {
		if seen[o.Kind] {
			return errors.Newf("duplicate output kind %q", o.Kind)
		}
		seen[o.Kind] = true
		if err := o.Template.Validate(); err != nil {
			return errors.Wrapf(err, "output %q", o.Kind)
		}
	}
	return nil
}

// Paths returns the output path of every kind for id under root.
func (l Layout) Paths(root, id string) map[string]string {
	out := make(map[string]string, len(l))
	for _, o := range l {
		out[o.Kind] = GetOutputPath(root, id, o.Template)
	}
	return out
}

// Split separates resolved paths, as returned by Paths, into directories
// that must exist before the tool runs and files the tool is expected to
// write. Directories are listed without duplicates in layout order.
func (l Layout) Split(paths map[string]string) (dirs, files []string) {
	seen := make(map[string]bool)
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	for _, o := range l {
		p, ok := paths[o.Kind]
		if !ok {
			continue
		}
		if o.Dir {
			add(p)
			continue
		}
		add(filepath.Dir(p))
		files = append(files, p)
	}
	return dirs, files
}

// GetOutputPath expands t for id and anchors it at root unless it is
// already absolute.
func GetOutputPath(root, id string, t Template) string {
	p := t.Expand(id)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}
