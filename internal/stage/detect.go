package stage

import (
	"context"

	"github.com/backmassage/posepipe/internal/batch"
	"github.com/backmassage/posepipe/internal/invoke"
	"github.com/backmassage/posepipe/internal/naming"
	"github.com/backmassage/posepipe/internal/pipeline"
)

// Detect output kinds.
const (
	KindSession = "session"
	KindResults = "results"
)

// newDetect runs the pose demo on every video. Invocations sharing a device
// are serialized through the runner's device lock.
func newDetect(env Env) (pipeline.Stage, error) {
	cfg := env.Cfg.Detect
	extra, err := extraArgs(cfg.ExtraArgs)
	if err != nil {
		return pipeline.Stage{}, err
	}

	return pipeline.Stage{
		Name:     Detect,
		Discover: pipeline.DiscoverOptions{Pattern: "*.mp4"},
		Suffix:   ".mp4",
		Layout: naming.Layout{
			{Kind: KindSession, Template: "{id}", Dir: true},
			{Kind: KindResults, Template: "{id}/results_{id}.json"},
		},
		Run: func(ctx context.Context, it batch.Item) batch.Result {
			session := it.Output(KindSession)
			args := []string{
				cfg.Script,
				cfg.DetConfig, cfg.DetCheckpoint,
				cfg.PoseConfig, cfg.PoseCheckpoint,
				"--input", it.SourcePath,
				"--output-root", session,
				"--save-predictions",
				"--device", cfg.Device,
				"--bbox-thr", formatFloat(cfg.BboxThr),
				"--use-oks-tracking",
				"--body-only",
			}
			return env.Runner.Invoke(ctx, it.Identifier, invoke.Invocation{
				Name: env.Cfg.Tools.Python,
				Args: append(args, extra...),
				Outputs: invoke.Outputs{
					Dirs:  []string{session},
					Files: []string{it.Output(KindResults)},
				},
				Lock: cfg.Device,
			})
		},
	}, nil
}
