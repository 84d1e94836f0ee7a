package pipeline

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/backmassage/posepipe/internal/batch"
	"github.com/backmassage/posepipe/internal/naming"
)

// Stage describes one pipeline step: which source entries it consumes, how
// identifiers are cut from their names, what it writes, and how one item is
// processed.
type Stage struct {
	Name     string
	Discover DiscoverOptions
	Prefix   string
	Suffix   string

	// Layout declares the outputs relative to the output root. Outputs,
	// when set, replaces it for stages whose paths depend on more than the
	// identifier.
	Layout  naming.Layout
	Outputs func(id string, index int) map[string]string

	// Preflight runs once before discovery; an error aborts the run.
	Preflight func(ctx context.Context) error

	// Run processes one item. It reports every per-item problem through
	// the returned result.
	Run func(ctx context.Context, it batch.Item) batch.Result
}

// Validate checks that the stage is complete.
func (s Stage) Validate() error {
	if s.Name == "" {
		return errors.New("stage has no name")
	}
	if s.Run == nil {
		return errors.Newf("stage %s has no run function", s.Name)
	}
	if err := s.Layout.Validate(); err != nil {
		return errors.Wrapf(err, "stage %s", s.Name)
	}
	return nil
}

func (s Stage) outputs(root, id string, index int) map[string]string {
	if s.Outputs != nil {
		return s.Outputs(id, index)
	}
	return s.Layout.Paths(root, id)
}
