// Package logging provides the leveled logger used across posepipe. It is a
// thin layer over zap that keeps the "2006-01-02 15:04:05 [LEVEL] message"
// console format, sends errors to stderr, and can tee everything into an
// append-only plain log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/backmassage/posepipe/internal/config"
	"github.com/backmassage/posepipe/internal/term"
)

// SuccessLevel marks completed work. It is enabled whenever INFO is.
const SuccessLevel = zapcore.Level(-2)

const timeLayout = "2006-01-02 15:04:05"

// Options configures New. Zero writers default to os.Stdout and os.Stderr.
type Options struct {
	Format  config.LogFormat
	Color   bool
	Verbose bool
	File    string
	Stdout  io.Writer
	Stderr  io.Writer
}

// Logger provides leveled, optionally colored logging with an optional file
// sink. It is safe for concurrent use.
type Logger struct {
	z    *zap.Logger
	file *os.File
}

// NewLogger configures terminal colors from cfg and builds a Logger. Call
// Close when done if a log file was set.
func NewLogger(cfg *config.Config) (*Logger, error) {
	return New(Options{
		Format:  cfg.Log.Format,
		Color:   term.Configure(cfg.Log.Color),
		Verbose: cfg.Verbose,
		File:    cfg.Log.File,
	})
}

// New builds a Logger from explicit options.
func New(opts Options) (*Logger, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	min := zapcore.InfoLevel
	if opts.Verbose {
		min = zapcore.DebugLevel
	}
	enabled := func(lvl zapcore.Level) bool { return lvl == SuccessLevel || lvl >= min }

	var enc zapcore.Encoder
	if opts.Format == config.LogJSON {
		enc = zapcore.NewJSONEncoder(jsonEncoderConfig())
	} else {
		enc = zapcore.NewConsoleEncoder(consoleEncoderConfig(opts.Color))
	}

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.AddSync(opts.Stdout), zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return enabled(lvl) && lvl < zapcore.ErrorLevel
		})),
		zapcore.NewCore(enc.Clone(), zapcore.AddSync(opts.Stderr), zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return enabled(lvl) && lvl >= zapcore.ErrorLevel
		})),
	}

	l := &Logger{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, errors.Wrap(err, "create log directory")
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, errors.Wrap(err, "open log file")
		}
		l.file = f
		// The file always gets plain console lines.
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig(false)),
			zapcore.AddSync(f),
			zap.LevelEnablerFunc(enabled),
		))
	}

	l.z = zap.New(zapcore.NewTee(cores...))
	return l, nil
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// Close flushes buffered entries and closes the log file if one was opened.
func (l *Logger) Close() error {
	_ = l.z.Sync()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *Logger) log(lvl zapcore.Level, format string, args []interface{}) {
	if !l.z.Core().Enabled(lvl) {
		return
	}
	if ce := l.z.Check(lvl, fmt.Sprintf(format, args...)); ce != nil {
		ce.Write()
	}
}

// Info logs at INFO level (blue).
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(zapcore.InfoLevel, format, args)
}

// Success logs at SUCCESS level (green).
func (l *Logger) Success(format string, args ...interface{}) {
	l.log(SuccessLevel, format, args)
}

// Warn logs at WARN level (yellow).
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(zapcore.WarnLevel, format, args)
}

// Error logs at ERROR level (red), to stderr.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(zapcore.ErrorLevel, format, args)
}

// Debug logs at DEBUG level (cyan) when the logger is verbose.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(zapcore.DebugLevel, format, args)
}
