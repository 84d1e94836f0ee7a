package config

// This file registers CLI flags. Each flag carries the config key it sets as
// a pflag annotation, and Load binds annotated flags into viper so a flag
// the user did not pass never shadows the file or the environment.

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// version is shown by "posepipe version"; override at build time with
// -ldflags "-X github.com/backmassage/posepipe/internal/config.version=...".
var version = "0.3.0-dev"

// Version returns the build version string.
func Version() string { return version }

const keyAnnotation = "posepipe_config_key"

// AddRunFlags registers the flags shared by every stage command.
func AddRunFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()

	str(fs, "source_root", "source-root", "", d.SourceRoot, "Directory scanned for work items")
	str(fs, "output_root", "output-root", "o", d.OutputRoot, "Root of per-session output directories (default: source root)")
	keyed(fs, "concurrency", "concurrency", func() { fs.IntP("concurrency", "j", d.Concurrency, "Items processed in parallel") })
	keyed(fs, "timeout", "timeout", func() { fs.Duration("timeout", d.Timeout, "Per-invocation timeout (0 disables)") })
	keyed(fs, "launch_rate", "launch-rate", func() { fs.Float64("launch-rate", d.LaunchRate, "Max process starts per second (0 is unlimited)") })
	boolean(fs, "dry_run", "dry-run", "d", "Log commands without running them")
	boolean(fs, "skip_existing", "skip-existing", "", "Report items whose outputs all exist as up to date")
	boolean(fs, "watch", "watch", "w", "Re-run when files appear under the source root")
	keyed(fs, "watch_debounce", "watch-debounce", func() { fs.Duration("watch-debounce", d.WatchDebounce, "Quiet period before a watch re-run") })
	str(fs, "report", "report", "", "", "Write the batch report (.yaml/.yml or JSON)")
	str(fs, "metrics_file", "metrics-file", "", "", "Write Prometheus metrics in text format")
	str(fs, "history_db", "history-db", "", "", "Record runs in this SQLite database")
	boolean(fs, "verbose", "verbose", "v", "Verbose output")
	str(fs, "log.file", "log", "l", "", "Append logs to file")
	keyed(fs, "log.format", "log-format", func() {
		fs.Var(newLogFormatValue(d.Log.Format), "log-format", "Console log format: console | json")
	})
	keyed(fs, "log.color", "color", func() {
		fs.Var(newColorModeValue(d.Log.Color), "color", "Colored logs: auto | always | never")
	})
	str(fs, "tools.python", "python", "", d.Tools.Python, "Python interpreter")
	str(fs, "tools.ffmpeg", "ffmpeg", "", d.Tools.FFmpeg, "ffmpeg binary")
}

// AddStageFlags registers the flags of one stage. Unknown stage names add
// nothing.
func AddStageFlags(fs *pflag.FlagSet, stage string) {
	d := DefaultConfig()

	switch stage {
	case "detect":
		str(fs, "detect.script", "script", "", d.Detect.Script, "Pose demo script")
		str(fs, "detect.det_config", "det-config", "", "", "Detector config")
		str(fs, "detect.det_checkpoint", "det-checkpoint", "", "", "Detector checkpoint")
		str(fs, "detect.pose_config", "pose-config", "", "", "Pose model config")
		str(fs, "detect.pose_checkpoint", "pose-checkpoint", "", "", "Pose model checkpoint")
		str(fs, "detect.device", "device", "", d.Detect.Device, "Accelerator device")
		keyed(fs, "detect.device_slots", "device-slots", func() {
			fs.Int("device-slots", d.Detect.DeviceSlots, "Concurrent invocations allowed per device")
		})
		float(fs, "detect.bbox_thr", "bbox-thr", d.Detect.BboxThr, "Detector bounding box threshold")
	case "convert":
		str(fs, "convert.script", "script", "", d.Convert.Script, "Converter script")
		float(fs, "convert.min_score", "min-score", d.Convert.MinScore, "Minimum detection score kept")
	case "merge":
		str(fs, "merge.script", "script", "", d.Merge.Script, "Merger script")
		float(fs, "merge.min_iou", "min-iou", d.Merge.MinIoU, "Minimum IoU for a track match")
		boolean(fs, "merge.use_center_fallback", "use-center-fallback", "", "Match by box centre when IoU fails")
		keyed(fs, "merge.engine", "engine", func() {
			fs.Var(newMergeEngineValue(d.Merge.Engine), "engine", "Merge engine: external | native")
		})
	case "encode":
		keyed(fs, "encode.fps", "fps", func() { fs.Int("fps", d.Encode.FPS, "Frame rate of the assembled video") })
		str(fs, "encode.codec", "codec", "", d.Encode.Codec, "Video codec")
		keyed(fs, "encode.frame_extensions", "frame-ext", func() {
			fs.StringSlice("frame-ext", d.Encode.FrameExtensions, "Frame image extensions")
		})
	case "skeleton":
		str(fs, "skeleton.dir", "skeleton-dir", "", "", "Output directory (default: <output-root>/skeleton)")
		keyed(fs, "skeleton.joints", "joints", func() { fs.Int("joints", d.Skeleton.Joints, "Joints per person") })
		keyed(fs, "skeleton.action_index", "action-index", func() {
			fs.Int("action-index", d.Skeleton.ActionIndex, "Action number n in nnnAmmm.skeleton")
		})
		keyed(fs, "skeleton.start_num", "start-num", func() {
			fs.Int("start-num", d.Skeleton.StartNum, "Sequence number m of the first file")
		})
		keyed(fs, "skeleton.pad_n", "pad-n", func() { fs.Int("pad-n", d.Skeleton.PadN, "Zero padding of n") })
		keyed(fs, "skeleton.pad_m", "pad-m", func() { fs.Int("pad-m", d.Skeleton.PadM, "Zero padding of m") })
		boolean(fs, "skeleton.require_nonzero", "require-nonzero", "", "Drop persons whose joints are all zero")
		return
	default:
		return
	}
	str(fs, stage+".extra_args", "extra-args", "", "", "Extra arguments appended to the command (shell quoted)")
}

// bindFlags binds every annotated flag in fs to its config key.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[keyAnnotation]
		if len(keys) != 1 || err != nil {
			return
		}
		if bindErr := v.BindPFlag(keys[0], f); bindErr != nil {
			err = errors.Wrapf(bindErr, "bind flag --%s", f.Name)
		}
	})
	return err
}

func keyed(fs *pflag.FlagSet, key, name string, define func()) {
	define()
	_ = fs.SetAnnotation(name, keyAnnotation, []string{key})
}

func str(fs *pflag.FlagSet, key, name, short, def, usage string) {
	keyed(fs, key, name, func() { fs.StringP(name, short, def, usage) })
}

func boolean(fs *pflag.FlagSet, key, name, short, usage string) {
	keyed(fs, key, name, func() { fs.BoolP(name, short, false, usage) })
}

func float(fs *pflag.FlagSet, key, name string, def float64, usage string) {
	keyed(fs, key, name, func() { fs.Float64(name, def, usage) })
}

// pflag.Value adapters so enum types are validated at parse time.

type colorModeValue struct{ p *ColorMode }

func newColorModeValue(def ColorMode) *colorModeValue {
	return &colorModeValue{p: &def}
}

func (c *colorModeValue) String() string { return string(*c.p) }
func (c *colorModeValue) Type() string   { return "mode" }
func (c *colorModeValue) Set(s string) error {
	switch m := ColorMode(strings.ToLower(s)); m {
	case ColorAuto, ColorAlways, ColorNever:
		*c.p = m
		return nil
	}
	return fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", s)
}

type logFormatValue struct{ p *LogFormat }

func newLogFormatValue(def LogFormat) *logFormatValue {
	return &logFormatValue{p: &def}
}

func (l *logFormatValue) String() string { return string(*l.p) }
func (l *logFormatValue) Type() string   { return "format" }
func (l *logFormatValue) Set(s string) error {
	switch f := LogFormat(strings.ToLower(s)); f {
	case LogConsole, LogJSON:
		*l.p = f
		return nil
	}
	return fmt.Errorf("invalid log format %q (use 'console' or 'json')", s)
}

type mergeEngineValue struct{ p *MergeEngine }

func newMergeEngineValue(def MergeEngine) *mergeEngineValue {
	return &mergeEngineValue{p: &def}
}

func (m *mergeEngineValue) String() string { return string(*m.p) }
func (m *mergeEngineValue) Type() string   { return "engine" }
func (m *mergeEngineValue) Set(s string) error {
	switch e := MergeEngine(strings.ToLower(s)); e {
	case MergeExternal, MergeNative:
		*m.p = e
		return nil
	}
	return fmt.Errorf("invalid merge engine %q (use 'external' or 'native')", s)
}
