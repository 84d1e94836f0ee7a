package stage

import (
	"context"

	"github.com/backmassage/posepipe/internal/batch"
	"github.com/backmassage/posepipe/internal/invoke"
	"github.com/backmassage/posepipe/internal/naming"
	"github.com/backmassage/posepipe/internal/pipeline"
)

// Convert output kinds.
const (
	KindBot       = "bot"
	KindKeypoints = "kps"
	KindNpy       = "npy"
	KindNpz       = "npz"
)

var convertLayout = naming.Layout{
	{Kind: KindBot, Template: "{id}/{id}_4bot.json"},
	{Kind: KindKeypoints, Template: "{id}/{id}_convert.json"},
	{Kind: KindNpy, Template: "{id}/{id}_npy", Dir: true},
	{Kind: KindNpz, Template: "{id}/{id}_npz", Dir: true},
}

// newConvert turns pose demo results into tracker detections and keypoint
// JSON.
func newConvert(env Env) (pipeline.Stage, error) {
	cfg := env.Cfg.Convert
	extra, err := extraArgs(cfg.ExtraArgs)
	if err != nil {
		return pipeline.Stage{}, err
	}

	return pipeline.Stage{
		Name:     Convert,
		Discover: pipeline.DiscoverOptions{Pattern: "results_*.json"},
		Prefix:   "results_",
		Suffix:   ".json",
		Layout:   convertLayout,
		Run: func(ctx context.Context, it batch.Item) batch.Result {
			dirs, files := convertLayout.Split(it.Outputs())
			args := []string{
				cfg.Script,
				"--input", it.SourcePath,
				"--out-json", it.Output(KindBot),
				"--out-npy-dir", it.Output(KindNpy),
				"--out-json-kps", it.Output(KindKeypoints),
				"--out-npz-dir", it.Output(KindNpz),
				"--min-score", formatFloat(cfg.MinScore),
			}
			return env.Runner.Invoke(ctx, it.Identifier, invoke.Invocation{
				Name:    env.Cfg.Tools.Python,
				Args:    append(args, extra...),
				Outputs: invoke.Outputs{Dirs: dirs, Files: files},
			})
		},
	}, nil
}
