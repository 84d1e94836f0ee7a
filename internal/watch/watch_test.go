package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/posepipe/internal/logging"
)

func startWatcher(t *testing.T, root string, opts Options) (*atomic.Int32, context.CancelFunc) {
	t.Helper()
	w, err := New(root, opts, logging.Nop())
	require.NoError(t, err)

	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(context.Context) error {
			runs.Add(1)
			return nil
		})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})
	return &runs, cancel
}

func TestWatcher_RunsAfterWrite(t *testing.T) {
	root := t.TempDir()
	runs, _ := startWatcher(t, root, Options{Debounce: 50 * time.Millisecond})

	require.NoError(t, os.WriteFile(filepath.Join(root, "100_botsort.txt"), []byte("1"), 0o644))
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	root := t.TempDir()
	runs, _ := startWatcher(t, root, Options{Debounce: 300 * time.Millisecond})

	for i := 0; i < 5; i++ {
		name := filepath.Join(root, strings.Repeat("a", i+1)+".txt")
		require.NoError(t, os.WriteFile(name, []byte("x"), 0o644))
	}
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestWatcher_FollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	runs, _ := startWatcher(t, root, Options{Debounce: 50 * time.Millisecond})

	session := filepath.Join(root, "100")
	require.NoError(t, os.Mkdir(session, 0o755))
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)

	before := runs.Load()
	require.NoError(t, os.WriteFile(filepath.Join(session, "000001.jpg"), []byte("x"), 0o644))
	assert.Eventually(t, func() bool { return runs.Load() > before }, 3*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresHiddenAndIgnored(t *testing.T) {
	root := t.TempDir()
	report := filepath.Join(root, "report.json")
	runs, _ := startWatcher(t, root, Options{
		Debounce: 50 * time.Millisecond,
		Ignore:   func(p string) bool { return p == report },
	})

	require.NoError(t, os.WriteFile(filepath.Join(root, ".report.json.tmp-1"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(report, []byte("{}"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
}

func TestHidden(t *testing.T) {
	assert.True(t, hidden("/r", "/r/.git/config"))
	assert.True(t, hidden("/r", "/r/100/.tmp"))
	assert.False(t, hidden("/r", "/r/100/100.mp4"))
	assert.False(t, hidden("/r", "/r"))
}
