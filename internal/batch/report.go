package batch

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/backmassage/posepipe/internal/fileutil"
)

// Counts holds the number of items per terminal status.
type Counts struct {
	Succeeded           int `json:"succeeded" yaml:"succeeded"`
	UpToDate            int `json:"up_to_date,omitempty" yaml:"up_to_date,omitempty"`
	SkippedMissingInput int `json:"skipped_missing_input" yaml:"skipped_missing_input"`
	Failed              int `json:"failed" yaml:"failed"`
}

// Report aggregates the results of one batch run. Record is safe for
// concurrent use; the exported fields are only meaningful after Finalize.
type Report struct {
	Stage       string   `json:"stage" yaml:"stage"`
	Total       int      `json:"total" yaml:"total"`
	Counts      Counts   `json:"counts" yaml:"counts"`
	SkippedIDs  []string `json:"skipped_missing_input,omitempty" yaml:"skipped_missing_input,omitempty"`
	FailedIDs   []string `json:"failed,omitempty" yaml:"failed,omitempty"`
	Excluded    []string `json:"excluded,omitempty" yaml:"excluded,omitempty"`
	Interrupted bool     `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	Results     []Result `json:"results" yaml:"results"`

	mu       sync.Mutex
	slots    map[int]Result
	excluded []string
}

// NewReport returns an empty report for stage.
func NewReport(stage string) *Report {
	return &Report{
		Stage: stage,
		slots: make(map[int]Result),
	}
}

// Record stores the result of the item at discovery index idx.
func (r *Report) Record(idx int, res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[idx] = res
}

// Exclude notes a discovered file that never became a work item.
func (r *Report) Exclude(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.excluded = append(r.excluded, name)
}

// MarkInterrupted flags that the run stopped before every item was dispatched.
func (r *Report) MarkInterrupted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Interrupted = true
}

// Finalize orders the recorded results by discovery index and computes
// counts and identifier lists. It may be called more than once.
func (r *Report) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()

	idxs := make([]int, 0, len(r.slots))
	for i := range r.slots {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)

	r.Results = make([]Result, 0, len(idxs))
	r.Counts = Counts{}
	r.SkippedIDs, r.FailedIDs = nil, nil
	for _, i := range idxs {
		res := r.slots[i]
		r.Results = append(r.Results, res)
		switch res.Status {
		case StatusSucceeded:
			r.Counts.Succeeded++
		case StatusUpToDate:
			r.Counts.UpToDate++
		case StatusSkippedMissingInput:
			r.Counts.SkippedMissingInput++
			r.SkippedIDs = append(r.SkippedIDs, res.Identifier)
		case StatusFailed:
			r.Counts.Failed++
			r.FailedIDs = append(r.FailedIDs, res.Identifier)
		}
	}
	r.Total = len(r.Results)

	r.Excluded = append([]string(nil), r.excluded...)
	sort.Strings(r.Excluded)
}

// Count returns the number of results with status s.
func (r *Report) Count(s Status) int {
	switch s {
	case StatusSucceeded:
		return r.Counts.Succeeded
	case StatusUpToDate:
		return r.Counts.UpToDate
	case StatusSkippedMissingInput:
		return r.Counts.SkippedMissingInput
	case StatusFailed:
		return r.Counts.Failed
	}
	return 0
}

// HasFailures reports whether any item failed.
func (r *Report) HasFailures() bool {
	return r.Counts.Failed > 0
}

// Err returns every failed item as one aggregated error, or nil.
func (r *Report) Err() error {
	var merr *multierror.Error
	for _, res := range r.Results {
		if res.Status != StatusFailed {
			continue
		}
		cause := res.Err
		if cause == nil {
			cause = errors.New(res.Message)
		}
		merr = multierror.Append(merr, errors.Wrapf(cause, "%s", res.Identifier))
	}
	return merr.ErrorOrNil()
}

// Marshal encodes the report as YAML when path ends in .yaml or .yml and as
// indented JSON otherwise. Durations and run metadata are left out so the
// same results always encode to the same bytes.
func (r *Report) Marshal(path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Marshal(r)
	default:
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	}
}

// WriteFile writes the finalized report to path atomically.
func (r *Report) WriteFile(path string) error {
	data, err := r.Marshal(path)
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write report %s", path)
	}
	return nil
}
