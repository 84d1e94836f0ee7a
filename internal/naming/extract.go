package naming

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/backmassage/posepipe/internal/batch"
)

// Extract derives the identifier from a base file name by removing prefix
// (when present) and then suffix (which must be present). Names that carry a
// directory component, lack the suffix, or leave nothing behind are
// malformed.
//
//	Extract("results_100.json", "results_", ".json") == "100"
//	Extract("100_botsort.txt", "", "_botsort.txt")   == "100"
func Extract(filename, prefix, suffix string) (string, error) {
	if filename == "" || strings.ContainsRune(filename, '/') || strings.ContainsRune(filename, filepath.Separator) {
		return "", errors.Wrapf(batch.ErrMalformedFilename, "%q is not a base name", filename)
	}

	name := strings.TrimPrefix(filename, prefix)
	if !strings.HasSuffix(name, suffix) {
		return "", errors.Wrapf(batch.ErrMalformedFilename, "%q does not end in %q", filename, suffix)
	}

	id := strings.TrimSuffix(name, suffix)
	if id == "" {
		return "", errors.Wrapf(batch.ErrMalformedFilename, "%q has an empty identifier", filename)
	}
	return id, nil
}
