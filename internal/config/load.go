package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override: POSEPIPE_MERGE_MIN_IOU
// sets merge.min_iou.
const EnvPrefix = "POSEPIPE"

// DefaultEnvFile is loaded when present and no other env file is named.
const DefaultEnvFile = ".env"

// LoadOptions names the sources consulted by [Load].
type LoadOptions struct {
	ConfigFile string         // YAML or TOML; optional.
	EnvFile    string         // dotenv file; optional, DefaultEnvFile when empty.
	Flags      *pflag.FlagSet // Flags registered by AddRunFlags/AddStageFlags.
}

// Load builds a Config from, lowest to highest precedence: defaults, the
// config file, the env file, the environment, and flags the user set.
func Load(opts LoadOptions) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", opts.ConfigFile)
		}
	}

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	// Decode into a zero value: mapstructure merges into non-nil slices.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return &cfg, nil
}

// loadEnvFile exports the variables of a dotenv file without overriding the
// real environment. A missing default file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(DefaultEnvFile); err != nil {
			return nil
		}
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "load env file %s", path)
	}
	return nil
}

// SetDefaults registers every key with its DefaultConfig value so that
// environment overrides are seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("source_root", d.SourceRoot)
	v.SetDefault("output_root", d.OutputRoot)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("launch_rate", d.LaunchRate)
	v.SetDefault("dry_run", d.DryRun)
	v.SetDefault("skip_existing", d.SkipExisting)
	v.SetDefault("watch", d.Watch)
	v.SetDefault("watch_debounce", d.WatchDebounce)
	v.SetDefault("report", d.Report)
	v.SetDefault("metrics_file", d.MetricsFile)
	v.SetDefault("history_db", d.HistoryDB)
	v.SetDefault("verbose", d.Verbose)

	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.format", string(d.Log.Format))
	v.SetDefault("log.color", string(d.Log.Color))

	v.SetDefault("tools.python", d.Tools.Python)
	v.SetDefault("tools.ffmpeg", d.Tools.FFmpeg)
	v.SetDefault("tools.python_min_version", d.Tools.PythonMinVersion)

	v.SetDefault("detect.script", d.Detect.Script)
	v.SetDefault("detect.det_config", d.Detect.DetConfig)
	v.SetDefault("detect.det_checkpoint", d.Detect.DetCheckpoint)
	v.SetDefault("detect.pose_config", d.Detect.PoseConfig)
	v.SetDefault("detect.pose_checkpoint", d.Detect.PoseCheckpoint)
	v.SetDefault("detect.device", d.Detect.Device)
	v.SetDefault("detect.device_slots", d.Detect.DeviceSlots)
	v.SetDefault("detect.bbox_thr", d.Detect.BboxThr)
	v.SetDefault("detect.extra_args", d.Detect.ExtraArgs)

	v.SetDefault("convert.script", d.Convert.Script)
	v.SetDefault("convert.min_score", d.Convert.MinScore)
	v.SetDefault("convert.extra_args", d.Convert.ExtraArgs)

	v.SetDefault("merge.engine", string(d.Merge.Engine))
	v.SetDefault("merge.script", d.Merge.Script)
	v.SetDefault("merge.min_iou", d.Merge.MinIoU)
	v.SetDefault("merge.use_center_fallback", d.Merge.UseCenterFallback)
	v.SetDefault("merge.extra_args", d.Merge.ExtraArgs)

	v.SetDefault("encode.fps", d.Encode.FPS)
	v.SetDefault("encode.codec", d.Encode.Codec)
	v.SetDefault("encode.frame_extensions", d.Encode.FrameExtensions)
	v.SetDefault("encode.extra_args", d.Encode.ExtraArgs)

	v.SetDefault("skeleton.dir", d.Skeleton.Dir)
	v.SetDefault("skeleton.joints", d.Skeleton.Joints)
	v.SetDefault("skeleton.action_index", d.Skeleton.ActionIndex)
	v.SetDefault("skeleton.start_num", d.Skeleton.StartNum)
	v.SetDefault("skeleton.pad_n", d.Skeleton.PadN)
	v.SetDefault("skeleton.pad_m", d.Skeleton.PadM)
	v.SetDefault("skeleton.require_nonzero", d.Skeleton.RequireNonzero)
}
