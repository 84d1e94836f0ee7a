// Package check provides system diagnostics ("posepipe check") and the
// per-stage dependency validation run before a batch starts.
package check

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"regexp"
	"runtime"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/backmassage/posepipe/internal/config"
	"github.com/backmassage/posepipe/internal/display"
	"github.com/backmassage/posepipe/internal/ffmpeg"
)

// Sentinel errors returned by CheckDeps when a required tool or file is missing.
var (
	ErrPythonNotFound = errors.New("python interpreter not found")
	ErrPythonTooOld   = errors.New("python version does not satisfy tools.python_min_version")
	ErrFFmpegNotFound = errors.New("ffmpeg not found")
	ErrScriptNotFound = errors.New("stage script not found")
)

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
}

// RunCheck runs the interactive check flow: tools, python version, ffmpeg
// version, stage scripts and model files, and host resources. It returns an
// error when a required tool is missing; everything else is informational.
func RunCheck(ctx context.Context, cfg *config.Config, log Logger) error {
	log.Info("=== System Check ===")

	var missing error
	if err := checkPython(ctx, cfg, log); err != nil {
		missing = err
	}
	if err := checkFFmpeg(ctx, cfg, log); err != nil && missing == nil {
		missing = err
	}
	checkFiles(cfg, log)
	checkHost(ctx, cfg, log)
	return missing
}

func checkPython(ctx context.Context, cfg *config.Config, log Logger) error {
	path, err := exec.LookPath(cfg.Tools.Python)
	if err != nil {
		log.Error("%s not found", cfg.Tools.Python)
		return errors.Wrap(ErrPythonNotFound, cfg.Tools.Python)
	}
	v, err := PythonVersion(ctx, path)
	if err != nil {
		log.Warn("%s found but --version failed: %v", cfg.Tools.Python, err)
		return nil
	}
	if err := satisfies(v, cfg.Tools.PythonMinVersion); err != nil {
		log.Error("python %s: %v", v, err)
		return err
	}
	log.Success("python: %s (%s)", v, path)
	return nil
}

func checkFFmpeg(ctx context.Context, cfg *config.Config, log Logger) error {
	if _, err := exec.LookPath(cfg.Tools.FFmpeg); err != nil {
		log.Error("%s not found", cfg.Tools.FFmpeg)
		return errors.Wrap(ErrFFmpegNotFound, cfg.Tools.FFmpeg)
	}
	line, err := ffmpeg.Version(ctx, cfg.Tools.FFmpeg)
	if err != nil {
		log.Warn("ffmpeg found but -version failed: %v", err)
		return nil
	}
	log.Success("ffmpeg: %s", line)
	return nil
}

// checkFiles reports the scripts and model files each stage points at.
func checkFiles(cfg *config.Config, log Logger) {
	log.Info("Stage files:")
	files := []struct{ label, path string }{
		{"detect.script", cfg.Detect.Script},
		{"detect.det_config", cfg.Detect.DetConfig},
		{"detect.det_checkpoint", cfg.Detect.DetCheckpoint},
		{"detect.pose_config", cfg.Detect.PoseConfig},
		{"detect.pose_checkpoint", cfg.Detect.PoseCheckpoint},
		{"convert.script", cfg.Convert.Script},
	}
	if cfg.Merge.Engine == config.MergeExternal {
		files = append(files, struct{ label, path string }{"merge.script", cfg.Merge.Script})
	}
	for _, f := range files {
		switch {
		case f.path == "":
			log.Warn("  %s: not set", f.label)
		case fileExists(f.path):
			log.Success("  %s: %s", f.label, f.path)
		default:
			log.Warn("  %s: %s (missing)", f.label, f.path)
		}
	}
}

// checkHost logs CPU and memory figures and warns when the configured
// concurrency exceeds the logical CPU count.
func checkHost(ctx context.Context, cfg *config.Config, log Logger) {
	cpus, err := cpu.CountsWithContext(ctx, true)
	if err != nil || cpus == 0 {
		cpus = runtime.NumCPU()
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		log.Info("Host: %d CPUs, %s memory (%s available)", cpus,
			display.FormatBytes(int64(vm.Total)), display.FormatBytes(int64(vm.Available)))
	} else {
		log.Info("Host: %d CPUs", cpus)
	}
	if cfg.Concurrency > cpus {
		log.Warn("concurrency %d exceeds %d CPUs", cfg.Concurrency, cpus)
	}
}

// CheckDeps is the pre-batch validation for one stage: the tools it runs
// must be on PATH and its script must exist. Native stages need nothing.
func CheckDeps(ctx context.Context, cfg *config.Config, stage string) error {
	needPython := func(script string) error {
		path, err := exec.LookPath(cfg.Tools.Python)
		if err != nil {
			return errors.WithHint(errors.Wrap(ErrPythonNotFound, cfg.Tools.Python),
				"set tools.python or POSEPIPE_TOOLS_PYTHON")
		}
		if cfg.Tools.PythonMinVersion != "" {
			if v, err := PythonVersion(ctx, path); err == nil {
				if err := satisfies(v, cfg.Tools.PythonMinVersion); err != nil {
					return err
				}
			}
		}
		if !fileExists(script) {
			return errors.Wrap(ErrScriptNotFound, script)
		}
		return nil
	}

	switch stage {
	case "detect":
		return needPython(cfg.Detect.Script)
	case "convert":
		return needPython(cfg.Convert.Script)
	case "merge":
		if cfg.Merge.Engine == config.MergeNative {
			return nil
		}
		return needPython(cfg.Merge.Script)
	case "encode":
		if _, err := exec.LookPath(cfg.Tools.FFmpeg); err != nil {
			return errors.WithHint(errors.Wrap(ErrFFmpegNotFound, cfg.Tools.FFmpeg),
				"set tools.ffmpeg or POSEPIPE_TOOLS_FFMPEG")
		}
	}
	return nil
}

var pythonVersionRe = regexp.MustCompile(`Python\s+(\d+\.\d+(?:\.\d+)?)`)

// PythonVersion runs "<bin> --version". Python 2 prints it on stderr, so
// both streams are read.
func PythonVersion(ctx context.Context, bin string) (*semver.Version, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "--version")
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "%s --version", bin)
	}
	m := pythonVersionRe.FindStringSubmatch(out.String())
	if m == nil {
		return nil, errors.Newf("unrecognised version output %q", bytes.TrimSpace(out.Bytes()))
	}
	return semver.NewVersion(m[1])
}

func satisfies(v *semver.Version, constraint string) error {
	if constraint == "" {
		return nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.Wrapf(err, "tools.python_min_version %q", constraint)
	}
	if !c.Check(v) {
		return errors.Wrapf(ErrPythonTooOld, "%s does not satisfy %q", v, constraint)
	}
	return nil
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
