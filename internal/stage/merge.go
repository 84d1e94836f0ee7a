package stage

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/backmassage/posepipe/internal/batch"
	"github.com/backmassage/posepipe/internal/config"
	"github.com/backmassage/posepipe/internal/invoke"
	"github.com/backmassage/posepipe/internal/keypoint"
	"github.com/backmassage/posepipe/internal/naming"
	"github.com/backmassage/posepipe/internal/pipeline"
)

// KindMerged is the merge output kind.
const KindMerged = "merged"

// keypointCandidates are tried in order next to the tracker file.
var keypointCandidates = naming.Templates(
	"{id}_4shift.json",
	"{id}_convert.json",
	"{id}_4bot.json",
	"results_{id}.json",
)

var mergeLayout = naming.Layout{
	{Kind: KindMerged, Template: "{id}/{id}_botsort.json"},
}

// newMerge attaches tracker ids to keypoint JSON, either through the
// merger script or in-process.
func newMerge(env Env) (pipeline.Stage, error) {
	cfg := env.Cfg.Merge
	extra, err := extraArgs(cfg.ExtraArgs)
	if err != nil {
		return pipeline.Stage{}, err
	}

	return pipeline.Stage{
		Name:     Merge,
		Discover: pipeline.DiscoverOptions{Pattern: "*_botsort.txt"},
		Suffix:   "_botsort.txt",
		Layout:   mergeLayout,
		Run: func(ctx context.Context, it batch.Item) batch.Result {
			dirs := keypointDirs(it, env.Cfg.OutputRoot)
			kps, ok := resolveKeypoints(dirs, it.Identifier)
			if !ok {
				return batch.Skipped(it.Identifier, "no keypoint JSON (tried "+candidateNames(it.Identifier)+
					" in "+strings.Join(dirs, ", ")+")")
			}
			outDirs, files := mergeLayout.Split(it.Outputs())
			out := it.Output(KindMerged)
			env.Log.Debug("[%s] keypoints: %s", it.Identifier, kps)

			if cfg.Engine == config.MergeNative {
				return env.Runner.RunStep(ctx, it.Identifier, invoke.Step{
					Label:   "track merge",
					Outputs: invoke.Outputs{Dirs: outDirs, Files: files},
					Run: func(context.Context) error {
						stats, err := keypoint.MergeFile(it.SourcePath, kps, out, keypoint.MergeOptions{
							MinIoU:            cfg.MinIoU,
							UseCenterFallback: cfg.UseCenterFallback,
						})
						if err != nil {
							return err
						}
						env.Log.Info("[%s] %d instances: %d matched by IoU, %d by centre, %d without candidate",
							it.Identifier, stats.Total(), stats.MatchedIoU, stats.MatchedCenter, stats.NoCandidate)
						return nil
					},
				})
			}

			args := []string{
				cfg.Script,
				"--botsort", it.SourcePath,
				"--keypoint", kps,
				"--out", out,
				"--min_iou", formatFloat(cfg.MinIoU),
			}
			if cfg.UseCenterFallback {
				args = append(args, "--use_center_fallback")
			}
			return env.Runner.Invoke(ctx, it.Identifier, invoke.Invocation{
				Name:    env.Cfg.Tools.Python,
				Args:    append(args, extra...),
				Outputs: invoke.Outputs{Dirs: outDirs, Files: files},
			})
		},
	}, nil
}

// keypointDirs lists where keypoint JSON is looked for: next to the tracker
// file, then in the item's session directory under the output root, where
// convert writes.
func keypointDirs(it batch.Item, outputRoot string) []string {
	dirs := []string{filepath.Dir(it.SourcePath)}
	if outputRoot != "" {
		if session := filepath.Join(outputRoot, it.Identifier); session != dirs[0] {
			dirs = append(dirs, session)
		}
	}
	return dirs
}

func resolveKeypoints(dirs []string, id string) (string, bool) {
	for _, dir := range dirs {
		if p, ok := naming.Resolve(dir, id, keypointCandidates); ok {
			return p, true
		}
	}
	return "", false
}

func candidateNames(id string) string {
	names := make([]string, len(keypointCandidates))
	for i, t := range keypointCandidates {
		names[i] = t.Expand(id)
	}
	return strings.Join(names, ", ")
}
