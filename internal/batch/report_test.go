package batch

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_FinalizeOrdersByIndex(t *testing.T) {
	r := NewReport("convert")
	// Recorded out of order, as a worker pool would.
	r.Record(2, Failed("300", 1, errors.New("boom")))
	r.Record(0, Succeeded("100"))
	r.Record(1, Skipped("200", "no keypoint json"))
	r.Finalize()

	require.Len(t, r.Results, 3)
	assert.Equal(t, "100", r.Results[0].Identifier)
	assert.Equal(t, "200", r.Results[1].Identifier)
	assert.Equal(t, "300", r.Results[2].Identifier)

	assert.Equal(t, 3, r.Total)
	assert.Equal(t, 1, r.Count(StatusSucceeded))
	assert.Equal(t, 1, r.Count(StatusSkippedMissingInput))
	assert.Equal(t, 1, r.Count(StatusFailed))
	assert.Equal(t, []string{"200"}, r.SkippedIDs)
	assert.Equal(t, []string{"300"}, r.FailedIDs)
	assert.True(t, r.HasFailures())
}

func TestReport_IsolationCounts(t *testing.T) {
	r := NewReport("detect")
	for i, id := range []string{"1", "2", "3", "4", "5"} {
		if id == "3" {
			r.Record(i, Failed(id, 2, nil))
			continue
		}
		r.Record(i, Succeeded(id))
	}
	r.Finalize()

	assert.Equal(t, 5, r.Total)
	assert.Equal(t, 4, r.Count(StatusSucceeded))
	assert.Equal(t, 1, r.Count(StatusFailed))
}

func TestReport_ErrAggregatesFailures(t *testing.T) {
	r := NewReport("merge")
	r.Record(0, Succeeded("100"))
	r.Finalize()
	assert.NoError(t, r.Err())

	r.Record(1, Failed("200", 1, errors.Mark(errors.New("exit code 1"), ErrStageExecution)))
	r.Record(2, Failed("300", 0, errors.Mark(errors.New("deadline"), ErrTimeout)))
	r.Finalize()

	err := r.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "200")
	assert.Contains(t, err.Error(), "300")
	assert.True(t, errors.Is(err, ErrStageExecution))
}

func TestReport_ExcludedSorted(t *testing.T) {
	r := NewReport("convert")
	r.Exclude("results_b.txt")
	r.Exclude("results_a.txt")
	r.Finalize()
	assert.Equal(t, []string{"results_a.txt", "results_b.txt"}, r.Excluded)
}

func TestReport_WriteFileIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	build := func() *Report {
		r := NewReport("convert")
		r.Record(1, Succeeded("200").WithDuration(123))
		r.Record(0, Succeeded("100").WithDuration(456))
		r.Finalize()
		return r
	}

	for _, name := range []string{"report.json", "report.yaml"} {
		a := filepath.Join(dir, "a-"+name)
		b := filepath.Join(dir, "b-"+name)
		require.NoError(t, build().WriteFile(a))
		require.NoError(t, build().WriteFile(b))

		ba, err := os.ReadFile(a)
		require.NoError(t, err)
		bb, err := os.ReadFile(b)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(ba, bb), "%s differs between identical runs", name)
		assert.Contains(t, string(ba), "succeeded")
	}
}

func TestSkipped_IsMissingInput(t *testing.T) {
	res := Skipped("300", "no keypoint json")
	assert.Equal(t, StatusSkippedMissingInput, res.Status)
	assert.True(t, errors.Is(res.Err, ErrMissingInput))
	assert.Equal(t, "no keypoint json", res.Message)
}

func TestItem_OutputsAreCopies(t *testing.T) {
	outs := map[string]string{"bot": "/o/1/1_4bot.json", "kps": "/o/1/1_convert.json"}
	it := NewItem("/s/results_1.json", "1", 0, outs)
	outs["bot"] = "changed"

	assert.Equal(t, "/o/1/1_4bot.json", it.Output("bot"))

	got := it.Outputs()
	got["kps"] = "changed"
	assert.Equal(t, "/o/1/1_convert.json", it.Output("kps"))

	assert.Equal(t, []string{"/o/1/1_4bot.json", "/o/1/1_convert.json"}, it.OutputPaths())
}
