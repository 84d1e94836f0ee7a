package stage

import (
	"context"
	"path/filepath"

	"github.com/backmassage/posepipe/internal/batch"
	"github.com/backmassage/posepipe/internal/invoke"
	"github.com/backmassage/posepipe/internal/keypoint"
	"github.com/backmassage/posepipe/internal/pipeline"
)

// KindSkeleton is the skeleton output kind.
const KindSkeleton = "skeleton"

// newSkeleton exports tracked keypoint JSON as skeleton text. The sequence
// number in each file name comes from the item's discovery position, so
// identical inputs always get identical names.
func newSkeleton(env Env) (pipeline.Stage, error) {
	cfg := env.Cfg.Skeleton
	dir := cfg.Dir
	if dir == "" {
		dir = filepath.Join(env.Cfg.OutputRoot, "skeleton")
	}

	return pipeline.Stage{
		Name:     Skeleton,
		Discover: pipeline.DiscoverOptions{Pattern: "*_botsort.json"},
		Suffix:   "_botsort.json",
		Outputs: func(_ string, index int) map[string]string {
			name := keypoint.SkeletonName(cfg.ActionIndex, cfg.StartNum+index, cfg.PadN, cfg.PadM)
			return map[string]string{KindSkeleton: filepath.Join(dir, name)}
		},
		Run: func(ctx context.Context, it batch.Item) batch.Result {
			out := it.Output(KindSkeleton)
			return env.Runner.RunStep(ctx, it.Identifier, invoke.Step{
				Label:   "skeleton export to " + filepath.Base(out),
				Outputs: invoke.Outputs{Dirs: []string{filepath.Dir(out)}, Files: []string{out}},
				Run: func(context.Context) error {
					n, err := keypoint.ExportSkeleton(it.SourcePath, out, keypoint.SkeletonOptions{
						Joints:         cfg.Joints,
						RequireNonzero: cfg.RequireNonzero,
					})
					if err != nil {
						return err
					}
					env.Log.Info("[%s] %d frames -> %s", it.Identifier, n, filepath.Base(out))
					return nil
				},
			})
		},
	}, nil
}
