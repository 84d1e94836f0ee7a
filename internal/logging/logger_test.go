package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/posepipe/internal/config"
)

var lineRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} \[([A-Z]+)\] (.*)$`)

func newTestLogger(t *testing.T, opts Options) (*Logger, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	opts.Stdout, opts.Stderr = &out, &errOut
	l, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, &out, &errOut
}

func lines(b *bytes.Buffer) []string {
	s := strings.TrimRight(b.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestNewLogger_NoFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Log.Color = config.ColorNever
	l, err := NewLogger(&cfg)
	require.NoError(t, err)
	defer l.Close()
	l.Info("test message")
}

func TestLogger_ConsoleFormatAndRouting(t *testing.T) {
	l, out, errOut := newTestLogger(t, Options{})

	l.Info("Found %d items", 3)
	l.Success("[%s] done", "100")
	l.Warn("skip")
	l.Error("boom")
	l.Debug("hidden")

	got := lines(out)
	require.Len(t, got, 3)
	wantLevels := []string{"INFO", "SUCCESS", "WARN"}
	wantMsgs := []string{"Found 3 items", "[100] done", "skip"}
	for i, line := range got {
		m := lineRe.FindStringSubmatch(line)
		require.NotNil(t, m, "unexpected line %q", line)
		assert.Equal(t, wantLevels[i], m[1])
		assert.Equal(t, wantMsgs[i], m[2])
	}

	errLines := lines(errOut)
	require.Len(t, errLines, 1)
	m := lineRe.FindStringSubmatch(errLines[0])
	require.NotNil(t, m)
	assert.Equal(t, "ERROR", m[1])
	assert.Equal(t, "boom", m[2])
}

func TestLogger_VerboseEnablesDebug(t *testing.T) {
	l, out, _ := newTestLogger(t, Options{Verbose: true})
	l.Debug("$ %s", "python3 merge.py")
	require.Len(t, lines(out), 1)
	assert.Contains(t, out.String(), "[DEBUG] $ python3 merge.py")
}

func TestLogger_JSON(t *testing.T) {
	l, out, _ := newTestLogger(t, Options{Format: config.LogJSON})
	l.Success("ok")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "success", entry["level"])
	assert.Equal(t, "ok", entry["msg"])
	assert.Contains(t, entry, "ts")
}

func TestLogger_WithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "posepipe.log")
	l, _, _ := newTestLogger(t, Options{File: path, Color: true})

	l.Info("to file")
	l.Error("also to file")
	require.NoError(t, l.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "[INFO] to file")
	assert.Contains(t, string(b), "[ERROR] also to file")
	assert.NotContains(t, string(b), "\033[", "file output must be plain")
}

func TestLogger_FileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posepipe.log")
	for _, msg := range []string{"first", "second"} {
		l, err := New(Options{File: path, Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}})
		require.NoError(t, err)
		l.Info(msg)
		require.NoError(t, l.Close())
	}
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "first")
	assert.Contains(t, string(b), "second")
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("nothing")
	l.Error("nothing")
	assert.NoError(t, l.Close())
}
