// Package stage defines the pipeline stages (detect, convert, merge,
// encode, skeleton) as pipeline.Stage values built from the configuration.
package stage

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/backmassage/posepipe/internal/check"
	"github.com/backmassage/posepipe/internal/config"
	"github.com/backmassage/posepipe/internal/invoke"
	"github.com/backmassage/posepipe/internal/logging"
	"github.com/backmassage/posepipe/internal/pipeline"
)

// Stage names, in pipeline order.
const (
	Detect   = "detect"
	Convert  = "convert"
	Merge    = "merge"
	Encode   = "encode"
	Skeleton = "skeleton"
)

// Names lists every stage in pipeline order.
var Names = []string{Detect, Convert, Merge, Encode, Skeleton}

// Env is what every stage needs to run.
type Env struct {
	Cfg    *config.Config
	Runner *invoke.Runner
	Log    *logging.Logger
}

// New builds the named stage. Errors are configuration errors, such as
// unparseable extra arguments.
func New(name string, env Env) (pipeline.Stage, error) {
	var (
		st  pipeline.Stage
		err error
	)
	switch name {
	case Detect:
		st, err = newDetect(env)
	case Convert:
		st, err = newConvert(env)
	case Merge:
		st, err = newMerge(env)
	case Encode:
		st, err = newEncode(env)
	case Skeleton:
		st, err = newSkeleton(env)
	default:
		return pipeline.Stage{}, errors.Newf("unknown stage %q", name)
	}
	if err != nil {
		return pipeline.Stage{}, errors.Wrapf(err, "%s stage", name)
	}
	if st.Preflight == nil {
		st.Preflight = preflight(env, name)
	}
	return st, nil
}

// preflight checks the stage's tools unless this is a dry run.
func preflight(env Env, name string) func(context.Context) error {
	return func(ctx context.Context) error {
		if env.Runner.DryRun() {
			return nil
		}
		return check.CheckDeps(ctx, env.Cfg, name)
	}
}

func extraArgs(s string) ([]string, error) {
	return invoke.SplitArgs(s)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
