package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/backmassage/posepipe/internal/term"
)

func levelName(lvl zapcore.Level) string {
	if lvl == SuccessLevel {
		return "SUCCESS"
	}
	return lvl.CapitalString()
}

func levelColor(lvl zapcore.Level) string {
	switch {
	case lvl == SuccessLevel:
		return term.Green
	case lvl == zapcore.DebugLevel:
		return term.Cyan
	case lvl == zapcore.InfoLevel:
		return term.Blue
	case lvl == zapcore.WarnLevel:
		return term.Yellow
	default:
		return term.Red
	}
}

func consoleEncoderConfig(color bool) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:    "ts",
		LevelKey:   "level",
		MessageKey: "msg",
		LineEnding: zapcore.DefaultLineEnding,
		EncodeTime: zapcore.TimeEncoderOfLayout(timeLayout),
		EncodeLevel: func(lvl zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			tag := "[" + levelName(lvl) + "]"
			if color {
				tag = term.Paint(levelColor(lvl), tag)
			}
			enc.AppendString(tag)
		},
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.StringDurationEncoder
	ec.EncodeLevel = func(lvl zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(strings.ToLower(levelName(lvl)))
	}
	return ec
}
