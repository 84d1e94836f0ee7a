package batch

import "github.com/cockroachdb/errors"

// Per-item error classes. Results carry errors marked with one of these so
// callers can test them with errors.Is.
var (
	ErrMalformedFilename   = errors.New("malformed filename")
	ErrMissingInput        = errors.New("missing input")
	ErrStageExecution      = errors.New("stage execution failed")
	ErrOutputDirectory     = errors.New("cannot create output directory")
	ErrTimeout             = errors.New("stage timed out")
	ErrIdentifierCollision = errors.New("identifier collision")
)
