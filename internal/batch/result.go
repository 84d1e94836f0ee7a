package batch

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Status is the terminal state of one work item.
type Status string

const (
	StatusSucceeded           Status = "succeeded"
	StatusSkippedMissingInput Status = "skipped_missing_input"
	StatusFailed              Status = "failed"
	StatusUpToDate            Status = "up_to_date" // only with skip-existing
)

// Statuses lists every status in report order.
var Statuses = []Status{StatusSucceeded, StatusUpToDate, StatusSkippedMissingInput, StatusFailed}

// Result is the outcome of running one stage for one item. It is created
// once and never mutated.
type Result struct {
	Identifier string        `json:"id" yaml:"id"`
	Status     Status        `json:"status" yaml:"status"`
	ExitCode   int           `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	Message    string        `json:"message,omitempty" yaml:"message,omitempty"`
	Duration   time.Duration `json:"-" yaml:"-"`
	Err        error         `json:"-" yaml:"-"`
}

// Succeeded returns a success result.
func Succeeded(id string) Result {
	return Result{Identifier: id, Status: StatusSucceeded}
}

// UpToDate returns the result for an item whose outputs already exist.
func UpToDate(id string) Result {
	return Result{Identifier: id, Status: StatusUpToDate, Message: "outputs already present"}
}

// Skipped returns a missing-input result. reason names what was missing.
func Skipped(id, reason string) Result {
	return Result{
		Identifier: id,
		Status:     StatusSkippedMissingInput,
		Message:    reason,
		Err:        errors.Mark(errors.New(reason), ErrMissingInput),
	}
}

// Failed returns a failure result. exitCode is the external process exit
// code, or 0 when no process ran.
func Failed(id string, exitCode int, err error) Result {
	if err == nil {
		err = ErrStageExecution
	}
	return Result{
		Identifier: id,
		Status:     StatusFailed,
		ExitCode:   exitCode,
		Message:    err.Error(),
		Err:        err,
	}
}

// WithDuration returns a copy of r carrying d.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}
