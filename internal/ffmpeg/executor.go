package ffmpeg

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
)

// Version runs "<bin> -version" and returns its first line, for example
// "ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers".
func Version(ctx context.Context, bin string) (string, error) {
	if bin == "" {
		bin = "ffmpeg"
	}
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-version")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "%s -version", bin)
	}
	line, _, _ := strings.Cut(out.String(), "\n")
	return strings.TrimSpace(line), nil
}
