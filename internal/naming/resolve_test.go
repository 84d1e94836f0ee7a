package naming

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mergeCandidates = Templates("{id}_4shift.json", "{id}_convert.json", "{id}_4bot.json", "results_{id}.json")

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
}

func TestResolve_PriorityOrder(t *testing.T) {
	cases := []struct {
		name    string
		present []string
		want    string
	}{
		{name: "only last", present: []string{"results_100.json"}, want: "results_100.json"},
		{name: "bot beats results", present: []string{"100_4bot.json", "results_100.json"}, want: "100_4bot.json"},
		{name: "convert beats bot", present: []string{"100_4bot.json", "100_convert.json"}, want: "100_convert.json"},
		{name: "shift beats all", present: []string{"results_100.json", "100_4bot.json", "100_convert.json", "100_4shift.json"}, want: "100_4shift.json"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, p := range tc.present {
				touch(t, filepath.Join(dir, p))
			}
			got, ok := Resolve(dir, "100", mergeCandidates)
			require.True(t, ok)
			assert.Equal(t, filepath.Join(dir, tc.want), got)
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	dir := t.TempDir()
	// Files for another identifier must not satisfy the lookup.
	touch(t, filepath.Join(dir, "100_convert.json"))

	got, ok := Resolve(dir, "300", mergeCandidates)
	assert.False(t, ok)
	assert.Empty(t, got)

	got, ok = Resolve(filepath.Join(dir, "does-not-exist"), "300", mergeCandidates)
	assert.False(t, ok)
	assert.Empty(t, got)

	got, ok = Resolve(dir, "300", nil)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestResolve_AbsoluteTemplate(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	touch(t, filepath.Join(other, "7_convert.json"))

	got, ok := Resolve(dir, "7", []Template{Template(filepath.Join(other, "{id}_convert.json"))})
	require.True(t, ok)
	assert.Equal(t, filepath.Join(other, "7_convert.json"), got)
}
