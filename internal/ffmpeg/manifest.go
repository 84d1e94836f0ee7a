package ffmpeg

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/backmassage/posepipe/internal/fileutil"
)

// ListFrames returns the absolute paths of the regular files, or symlinks to
// them, directly in dir whose extension (case-insensitive) is in exts,
// sorted by name.
func ListFrames(dir string, exts []string) ([]string, error) {
	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		want[e] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read session directory %s", dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var frames []string
	for _, e := range entries {
		if !isRegular(dir, e) {
			continue
		}
		if want[strings.ToLower(filepath.Ext(e.Name()))] {
			frames = append(frames, filepath.Join(abs, e.Name()))
		}
	}
	sort.Strings(frames)
	return frames, nil
}

// isRegular reports whether e is a regular file, following a symlink.
func isRegular(dir string, e os.DirEntry) bool {
	if e.Type()&os.ModeSymlink == 0 {
		return e.Type().IsRegular()
	}
	fi, err := os.Stat(filepath.Join(dir, e.Name()))
	return err == nil && fi.Mode().IsRegular()
}

// Manifest renders frames as a concat demuxer list: one
// "file '<path>'" line per frame.
func Manifest(frames []string) []byte {
	var b strings.Builder
	for _, f := range frames {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(f, "'", `'\''`))
		b.WriteString("'\n")
	}
	return []byte(b.String())
}

// WriteManifest writes the concat list for frames to path.
func WriteManifest(path string, frames []string) error {
	if len(frames) == 0 {
		return errors.New("no frames to list")
	}
	return fileutil.WriteAtomic(path, Manifest(frames), 0o644)
}
