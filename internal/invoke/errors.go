package invoke

import (
	"regexp"
	"strings"
)

// Stderr patterns that point at a likely cause. Checked in order; the first
// match supplies the hint attached to the failure.
var stderrHints = []struct {
	re   *regexp.Regexp
	hint string
}{
	{
		regexp.MustCompile(`(?i)CUDA out of memory|CUBLAS_STATUS_ALLOC_FAILED|cudaErrorMemoryAllocation`),
		"the device ran out of memory; lower --concurrency or detect.device_slots",
	},
	{
		regexp.MustCompile(`(?i)no CUDA GPUs are available|Found no NVIDIA driver|Invalid device (id|string)`),
		"the configured device is not usable; check detect.device",
	},
	{
		regexp.MustCompile(`ModuleNotFoundError: No module named|ImportError: `),
		"a Python package is missing; check that tools.python points at the right environment",
	},
	{
		regexp.MustCompile(`(?i)Invalid data found when processing input|Impossible to open|Error while decoding`),
		"a frame image could not be decoded",
	},
	{
		regexp.MustCompile(`(?i)No such file or directory|FileNotFoundError`),
		"an input, script, or model file is missing",
	},
	{
		regexp.MustCompile(`(?i)Permission denied`),
		"a file or directory is not writable",
	},
}

// classifyStderr returns an operator hint for stderr, or "".
func classifyStderr(stderr string) string {
	for _, h := range stderrHints {
		if h.re.MatchString(stderr) {
			return h.hint
		}
	}
	return ""
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = append(t.buf[:0], t.buf[len(t.buf)-t.max:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }

// Lines returns up to n trailing non-empty lines.
func (t *tailBuffer) Lines(n int) []string {
	var out []string
	for _, l := range strings.Split(strings.TrimSpace(string(t.buf)), "\n") {
		if l = strings.TrimRight(l, "\r "); l != "" {
			out = append(out, l)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
