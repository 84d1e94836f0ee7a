package naming

import (
	"os"
	"path/filepath"
)

// Resolve expands id into each template in order and returns the first path
// that exists. Relative templates are taken relative to dir. found is false
// when no candidate exists; Resolve never fails, and a file that disappears
// after the check surfaces later as a stage error.
func Resolve(dir, id string, templates []Template) (path string, found bool) {
	for _, t := range templates {
		p := t.Expand(id)
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}
