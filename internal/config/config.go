// Package config holds runtime configuration: defaults, file/env/flag
// loading, and validation. A single Config is built at startup and passed by
// pointer to the packages that need it; nothing here is process-global.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
)

// --- Enum types for validated string fields ---

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// LogFormat selects the console log encoding.
type LogFormat string

const (
	LogConsole LogFormat = "console" // "2006-01-02 15:04:05 [LEVEL] message" (default).
	LogJSON    LogFormat = "json"    // One JSON object per line.
)

// MergeEngine selects how the merge stage assigns track ids.
type MergeEngine string

const (
	MergeExternal MergeEngine = "external" // Run the merger script (default).
	MergeNative   MergeEngine = "native"   // Greedy IoU assignment in-process.
)

// LogConfig groups logging settings.
type LogConfig struct {
	File   string    `mapstructure:"file"`   // Optional append-only log file.
	Format LogFormat `mapstructure:"format"` // Default: "console".
	Color  ColorMode `mapstructure:"color"`  // Default: "auto".
}

// ToolsConfig names the external programs.
type ToolsConfig struct {
	Python           string `mapstructure:"python"`             // Default: "python3".
	FFmpeg           string `mapstructure:"ffmpeg"`             // Default: "ffmpeg".
	PythonMinVersion string `mapstructure:"python_min_version"` // Semver constraint checked by "check".
}

// DetectConfig configures the pose-estimation stage.
type DetectConfig struct {
	Script         string  `mapstructure:"script"` // Pose demo entry point.
	DetConfig      string  `mapstructure:"det_config"`
	DetCheckpoint  string  `mapstructure:"det_checkpoint"`
	PoseConfig     string  `mapstructure:"pose_config"`
	PoseCheckpoint string  `mapstructure:"pose_checkpoint"`
	Device         string  `mapstructure:"device"`       // Default: "cuda:0".
	DeviceSlots    int     `mapstructure:"device_slots"` // Concurrent invocations per device. Default: 1.
	BboxThr        float64 `mapstructure:"bbox_thr"`     // Default: 0.5.
	ExtraArgs      string  `mapstructure:"extra_args"`
}

// ConvertConfig configures the results-to-detections conversion stage.
type ConvertConfig struct {
	Script    string  `mapstructure:"script"`
	MinScore  float64 `mapstructure:"min_score"` // Default: 0.0.
	ExtraArgs string  `mapstructure:"extra_args"`
}

// MergeConfig configures the tracker/keypoint merge stage.
type MergeConfig struct {
	Engine            MergeEngine `mapstructure:"engine"`
	Script            string      `mapstructure:"script"`
	MinIoU            float64     `mapstructure:"min_iou"` // Default: 0.0. Negative values act as 0.
	UseCenterFallback bool        `mapstructure:"use_center_fallback"`
	ExtraArgs         string      `mapstructure:"extra_args"`
}

// EncodeConfig configures frame-to-video assembly.
type EncodeConfig struct {
	FPS             int      `mapstructure:"fps"`   // Default: 30.
	Codec           string   `mapstructure:"codec"` // Default: "libx264".
	FrameExtensions []string `mapstructure:"frame_extensions"`
	ExtraArgs       string   `mapstructure:"extra_args"`
}

// SkeletonConfig configures skeleton text export.
type SkeletonConfig struct {
	Dir            string `mapstructure:"dir"`    // Default: <output_root>/skeleton.
	Joints         int    `mapstructure:"joints"` // Default: 17.
	ActionIndex    int    `mapstructure:"action_index"`
	StartNum       int    `mapstructure:"start_num"`
	PadN           int    `mapstructure:"pad_n"` // Default: 3.
	PadM           int    `mapstructure:"pad_m"` // Default: 3.
	RequireNonzero bool   `mapstructure:"require_nonzero"`
}

// Config holds all runtime settings. It is populated by [Load] on top of
// [DefaultConfig] and checked by [Config.Validate] and [Config.ValidatePaths].
type Config struct {
	// Paths.
	SourceRoot string `mapstructure:"source_root"`
	OutputRoot string `mapstructure:"output_root"` // Default: SourceRoot.

	// Execution.
	Concurrency   int           `mapstructure:"concurrency"`    // Default: 1 (sequential).
	Timeout       time.Duration `mapstructure:"timeout"`        // Per invocation; 0 disables.
	LaunchRate    float64       `mapstructure:"launch_rate"`    // Process starts per second; 0 is unlimited.
	DryRun        bool          `mapstructure:"dry_run"`        // Log commands without running them.
	SkipExisting  bool          `mapstructure:"skip_existing"`  // Report items with all outputs present as up to date.
	Watch         bool          `mapstructure:"watch"`          // Re-run on source changes.
	WatchDebounce time.Duration `mapstructure:"watch_debounce"` // Default: 2s.

	// Run outputs.
	Report      string `mapstructure:"report"`       // YAML or JSON report path.
	MetricsFile string `mapstructure:"metrics_file"` // Prometheus textfile path.
	HistoryDB   string `mapstructure:"history_db"`   // SQLite run history.

	// Display and logging.
	Verbose bool      `mapstructure:"verbose"`
	Log     LogConfig `mapstructure:"log"`

	Tools    ToolsConfig    `mapstructure:"tools"`
	Detect   DetectConfig   `mapstructure:"detect"`
	Convert  ConvertConfig  `mapstructure:"convert"`
	Merge    MergeConfig    `mapstructure:"merge"`
	Encode   EncodeConfig   `mapstructure:"encode"`
	Skeleton SkeletonConfig `mapstructure:"skeleton"`
}

// DefaultConfig returns a Config with the reference pipeline's settings.
func DefaultConfig() Config {
	return Config{
		Concurrency:   1,
		WatchDebounce: 2 * time.Second,
		Log: LogConfig{
			Format: LogConsole,
			Color:  ColorAuto,
		},
		Tools: ToolsConfig{
			Python:           "python3",
			FFmpeg:           "ffmpeg",
			PythonMinVersion: ">= 3.8",
		},
		Detect: DetectConfig{
			Script:      "demo/body3d_img2pose_demo.py",
			Device:      "cuda:0",
			DeviceSlots: 1,
			BboxThr:     0.5,
		},
		Convert: ConvertConfig{
			Script:   "convert_4bot.py",
			MinScore: 0.0,
		},
		Merge: MergeConfig{
			Engine: MergeExternal,
			Script: "json_plus_track.py",
			MinIoU: 0.0,
		},
		Encode: EncodeConfig{
			FPS:             30,
			Codec:           "libx264",
			FrameExtensions: []string{".jpg", ".jpeg", ".png"},
		},
		Skeleton: SkeletonConfig{
			Joints:      17,
			ActionIndex: 1,
			StartNum:    1,
			PadN:        3,
			PadM:        3,
		},
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks enum fields and numeric ranges. It does not touch the
// filesystem; see [Config.ValidatePaths].
func (c *Config) Validate() error {
	switch c.Log.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return errors.Newf("invalid log.color %q (use 'auto', 'always' or 'never')", c.Log.Color)
	}
	switch c.Log.Format {
	case LogConsole, LogJSON:
	default:
		return errors.Newf("invalid log.format %q (use 'console' or 'json')", c.Log.Format)
	}
	switch c.Merge.Engine {
	case MergeExternal, MergeNative:
	default:
		return errors.Newf("invalid merge.engine %q (use 'external' or 'native')", c.Merge.Engine)
	}

	if c.Concurrency < 1 {
		return errors.Newf("concurrency must be at least 1 (got %d)", c.Concurrency)
	}
	if c.Timeout < 0 {
		return errors.Newf("timeout must not be negative (got %s)", c.Timeout)
	}
	if c.LaunchRate < 0 {
		return errors.Newf("launch_rate must not be negative (got %g)", c.LaunchRate)
	}
	if c.Watch && c.WatchDebounce <= 0 {
		return errors.Newf("watch_debounce must be positive (got %s)", c.WatchDebounce)
	}
	if c.Detect.DeviceSlots < 1 {
		return errors.Newf("detect.device_slots must be at least 1 (got %d)", c.Detect.DeviceSlots)
	}
	if c.Encode.FPS <= 0 {
		return errors.Newf("encode.fps must be positive (got %d)", c.Encode.FPS)
	}
	if c.Encode.Codec == "" {
		return errors.New("encode.codec must not be empty")
	}
	if len(c.Encode.FrameExtensions) == 0 {
		return errors.New("encode.frame_extensions must list at least one extension")
	}
	if c.Skeleton.Joints <= 0 {
		return errors.Newf("skeleton.joints must be positive (got %d)", c.Skeleton.Joints)
	}
	if c.Skeleton.PadN < 1 || c.Skeleton.PadM < 1 {
		return errors.New("skeleton.pad_n and skeleton.pad_m must be at least 1")
	}
	if c.Skeleton.ActionIndex < 0 || c.Skeleton.StartNum < 0 {
		return errors.New("skeleton.action_index and skeleton.start_num must not be negative")
	}
	if c.Tools.PythonMinVersion != "" {
		if _, err := semver.NewConstraint(c.Tools.PythonMinVersion); err != nil {
			return errors.Wrapf(err, "invalid tools.python_min_version %q", c.Tools.PythonMinVersion)
		}
	}
	return nil
}

// ValidatePaths resolves SourceRoot, OutputRoot and Skeleton.Dir to absolute
// paths and fills the defaults that depend on them. The source root must be
// an existing directory.
func (c *Config) ValidatePaths() error {
	if c.SourceRoot == "" {
		return errors.WithHint(errors.New("source_root is not set"),
			"pass it as the first argument, with --source-root, or as POSEPIPE_SOURCE_ROOT")
	}

	src, err := filepath.Abs(NormalizeDirArg(c.SourceRoot))
	if err != nil {
		return errors.Wrap(err, "resolve source_root")
	}
	fi, err := os.Stat(src)
	if err != nil {
		return errors.Wrapf(err, "source_root %s", src)
	}
	if !fi.IsDir() {
		return errors.Newf("source_root %s is not a directory", src)
	}
	c.SourceRoot = src

	if c.OutputRoot == "" {
		c.OutputRoot = src
	} else if c.OutputRoot, err = filepath.Abs(NormalizeDirArg(c.OutputRoot)); err != nil {
		return errors.Wrap(err, "resolve output_root")
	}

	if c.Skeleton.Dir == "" {
		c.Skeleton.Dir = filepath.Join(c.OutputRoot, "skeleton")
	} else if c.Skeleton.Dir, err = filepath.Abs(c.Skeleton.Dir); err != nil {
		return errors.Wrap(err, "resolve skeleton.dir")
	}
	return nil
}
