package stage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/backmassage/posepipe/internal/batch"
	"github.com/backmassage/posepipe/internal/ffmpeg"
	"github.com/backmassage/posepipe/internal/invoke"
	"github.com/backmassage/posepipe/internal/naming"
	"github.com/backmassage/posepipe/internal/pipeline"
)

// Encode output kinds.
const (
	KindVideo    = "video"
	KindManifest = "manifest"
)

var encodeLayout = naming.Layout{
	{Kind: KindVideo, Template: "{id}/{id}.mp4"},
	{Kind: KindManifest, Template: "{id}/{id}_frames.txt"},
}

// newEncode assembles the frame images of each session directory into an
// mp4. A session without frames is skipped and nothing is written for it.
func newEncode(env Env) (pipeline.Stage, error) {
	cfg := env.Cfg.Encode
	extra, err := extraArgs(cfg.ExtraArgs)
	if err != nil {
		return pipeline.Stage{}, err
	}

	return pipeline.Stage{
		Name:     Encode,
		Discover: pipeline.DiscoverOptions{MaxDepth: 1, Dirs: true},
		Layout:   encodeLayout,
		Run: func(ctx context.Context, it batch.Item) batch.Result {
			frames, err := ffmpeg.ListFrames(it.SourcePath, cfg.FrameExtensions)
			if err != nil {
				return batch.Failed(it.Identifier, 0, errors.Mark(err, batch.ErrStageExecution))
			}
			if len(frames) == 0 {
				return batch.Skipped(it.Identifier, "no frame images in "+it.SourcePath)
			}

			video, manifest := it.Output(KindVideo), it.Output(KindManifest)
			dirs, files := encodeLayout.Split(it.Outputs())

			if !env.Runner.DryRun() {
				dir := filepath.Dir(manifest)
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return batch.Failed(it.Identifier, 0, errors.Mark(
						errors.Wrapf(err, "create output directory %s", dir), batch.ErrOutputDirectory))
				}
				if err := ffmpeg.WriteManifest(manifest, frames); err != nil {
					return batch.Failed(it.Identifier, 0, errors.Mark(err, batch.ErrStageExecution))
				}
			}
			env.Log.Debug("[%s] %d frames", it.Identifier, len(frames))

			argv := ffmpeg.Build(ffmpeg.ConcatJob{
				Binary:    env.Cfg.Tools.FFmpeg,
				Manifest:  manifest,
				Output:    video,
				FPS:       cfg.FPS,
				Codec:     cfg.Codec,
				ExtraArgs: extra,
				Verbose:   env.Cfg.Verbose,
			})
			return env.Runner.Invoke(ctx, it.Identifier, invoke.Invocation{
				Name:    argv[0],
				Args:    argv[1:],
				Outputs: invoke.Outputs{Dirs: dirs, Files: files},
			})
		},
	}, nil
}
