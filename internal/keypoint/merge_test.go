package keypoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trackText = `1,7,0,0,10,10,0.9,-1,-1,-1
1,8,100,100,10,10,0.8,-1,-1,-1
2,7,1,1,10,10,0.9,-1,-1,-1
2.0,9.0,50,50,10,10

3,4,5
`

func decodeFrames(t *testing.T, s string) []interface{} {
	t.Helper()
	v, err := decodeJSON(strings.NewReader(s))
	require.NoError(t, err)
	frames, ok := v.([]interface{})
	require.True(t, ok)
	return frames
}

func trackIDs(frames []interface{}) [][]interface{} {
	var out [][]interface{}
	for _, f := range frames {
		var ids []interface{}
		for _, inst := range f.(map[string]interface{})["instances"].([]interface{}) {
			ids = append(ids, inst.(map[string]interface{})["track_id"])
		}
		out = append(out, ids)
	}
	return out
}

func TestParseTracks(t *testing.T) {
	tracks, err := ParseTracks(strings.NewReader(trackText))
	require.NoError(t, err)

	require.Len(t, tracks[1], 2)
	assert.Equal(t, Detection{TrackID: 7, Box: Box{0, 0, 10, 10}}, tracks[1][0])
	assert.Equal(t, Detection{TrackID: 8, Box: Box{100, 100, 110, 110}}, tracks[1][1])
	require.Len(t, tracks[2], 2)
	assert.Equal(t, 9, tracks[2][1].TrackID)
	assert.NotContains(t, tracks, 3, "short rows are ignored")

	_, err = ParseTracks(strings.NewReader("1,x,0,0,1,1\n"))
	assert.Error(t, err)
}

func TestAssignTrackIDs(t *testing.T) {
	tracks, err := ParseTracks(strings.NewReader(trackText))
	require.NoError(t, err)

	frames := decodeFrames(t, `[
	  {"frame_id": 1, "instances": [
	    {"bbox": [101, 101, 111, 111]},
	    {"bbox": [0, 0, 10, 10]},
	    {"bbox": [0, 0, 10, 10]}
	  ]},
	  {"frame_id": 2, "instances": [{"bbox": [500, 500, 510, 510]}, {"keypoints": []}]},
	  {"frame_id": 5, "instances": [{"bbox": [0, 0, 10, 10]}]}
	]`)

	stats, err := AssignTrackIDs(frames, tracks, MergeOptions{})
	require.NoError(t, err)

	// Frame 1: the third instance finds both detections already used.
	// Frame 2: IoU 0 still meets min_iou 0 and takes the first unused box.
	assert.Equal(t, [][]interface{}{{8, 7, -1}, {7, -1}, {-1}}, trackIDs(frames))
	assert.Equal(t, MergeStats{MatchedIoU: 3, NoCandidate: 3}, stats)
	assert.Equal(t, 6, stats.Total())
}

func TestAssignTrackIDs_MinIoUAndCenterFallback(t *testing.T) {
	tracks, err := ParseTracks(strings.NewReader(trackText))
	require.NoError(t, err)

	input := `[{"frame_id": 1, "instances": [{"bbox": [90, 90, 99, 99]}, {"bbox": [20, 20, 30, 30]}]}]`

	frames := decodeFrames(t, input)
	stats, err := AssignTrackIDs(frames, tracks, MergeOptions{MinIoU: 0.3})
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{-1, -1}}, trackIDs(frames))
	assert.Equal(t, MergeStats{NoCandidate: 2}, stats)

	frames = decodeFrames(t, input)
	stats, err = AssignTrackIDs(frames, tracks, MergeOptions{MinIoU: 0.3, UseCenterFallback: true})
	require.NoError(t, err)
	// Nearest centres: (94.5,94.5) -> track 8, (25,25) -> track 7.
	assert.Equal(t, [][]interface{}{{8, 7}}, trackIDs(frames))
	assert.Equal(t, MergeStats{MatchedCenter: 2}, stats)
}

func TestAssignTrackIDs_NegativeMinIoUActsAsZero(t *testing.T) {
	tracks := Tracks{0: {{TrackID: 3, Box: Box{0, 0, 1, 1}}}}
	frames := decodeFrames(t, `[{"frame_id": 0, "instances": [{"bbox": [5, 5, 6, 6]}]}]`)

	stats, err := AssignTrackIDs(frames, tracks, MergeOptions{MinIoU: -2})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MatchedIoU)
}

func TestAssignTrackIDs_BadShape(t *testing.T) {
	_, err := AssignTrackIDs(decodeFrames(t, `[1]`), nil, MergeOptions{})
	assert.Error(t, err)
	_, err = AssignTrackIDs(decodeFrames(t, `[{"frame_id": 1, "instances": {}}]`), nil, MergeOptions{})
	assert.Error(t, err)
}

func TestMergeFile_PreservesFields(t *testing.T) {
	dir := t.TempDir()
	trackPath := filepath.Join(dir, "100_botsort.txt")
	kpPath := filepath.Join(dir, "100_convert.json")
	outPath := filepath.Join(dir, "100", "100_botsort.json")

	require.NoError(t, os.WriteFile(trackPath, []byte(trackText), 0o644))
	require.NoError(t, os.WriteFile(kpPath, []byte(`[{"frame_id": 1, "instances": [
	  {"bbox": [0, 0, 10, 10], "score": 0.98765432101234567, "keypoints": [[1.50, 2, 3e-1]], "label": "<person>"}
	]}]`), 0o644))

	stats, err := MergeFile(trackPath, kpPath, outPath, MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MatchedIoU)

	b, err := os.ReadFile(outPath)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, `"track_id": 7`)
	assert.Contains(t, out, `0.98765432101234567`, "numbers keep their text")
	assert.Contains(t, out, `1.50`)
	assert.Contains(t, out, `3e-1`)
	assert.Contains(t, out, `"<person>"`, "no HTML escaping")
	assert.True(t, strings.HasPrefix(out, "[\n  {"), "two-space indent")
}

func TestMergeFile_Errors(t *testing.T) {
	dir := t.TempDir()
	trackPath := filepath.Join(dir, "t.txt")
	require.NoError(t, os.WriteFile(trackPath, []byte(trackText), 0o644))

	notList := filepath.Join(dir, "obj.json")
	require.NoError(t, os.WriteFile(notList, []byte(`{"instance_info": []}`), 0o644))

	out := filepath.Join(dir, "out.json")
	_, err := MergeFile(trackPath, notList, out, MergeOptions{})
	assert.Error(t, err)
	assert.NoFileExists(t, out)

	_, err = MergeFile(filepath.Join(dir, "missing.txt"), notList, out, MergeOptions{})
	assert.Error(t, err)
}
