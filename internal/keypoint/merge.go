package keypoint

import (
	"math"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/backmassage/posepipe/internal/fileutil"
)

// Unmatched is the track id given to instances no detection was assigned to.
const Unmatched = -1

// MergeOptions tunes track assignment.
type MergeOptions struct {
	MinIoU            float64 // values below 0 act as 0
	UseCenterFallback bool    // match the nearest unused centre when IoU fails
}

// MergeStats counts how each instance got its track id.
type MergeStats struct {
	MatchedIoU    int `json:"matched_iou"`
	MatchedCenter int `json:"matched_center"`
	NoCandidate   int `json:"no_candidate"`
}

// Total is the number of instances seen.
func (s MergeStats) Total() int { return s.MatchedIoU + s.MatchedCenter + s.NoCandidate }

// AssignTrackIDs sets "track_id" on every instance of frames, a decoded
// keypoint JSON list. Within a frame each detection is used at most once;
// instances are matched in order, each to the unused detection with the
// highest IoU, accepted when that IoU is at least MinIoU.
func AssignTrackIDs(frames []interface{}, tracks Tracks, opts MergeOptions) (MergeStats, error) {
	var stats MergeStats
	minIoU := math.Max(0, opts.MinIoU)

	for fi, raw := range frames {
		frame, ok := raw.(map[string]interface{})
		if !ok {
			return stats, errors.Newf("frame %d is not an object", fi)
		}
		frameID := -1
		if v, ok := frame["frame_id"]; ok {
			if frameID, ok = toInt(v); !ok {
				return stats, errors.Newf("frame %d has a non-numeric frame_id", fi)
			}
		}
		var instances []interface{}
		if v, ok := frame["instances"]; ok && v != nil {
			if instances, ok = v.([]interface{}); !ok {
				return stats, errors.Newf("frame_id %d: instances is not a list", frameID)
			}
		}

		dets := tracks[frameID]
		used := make(map[int]bool, len(dets))

		for ii, rawInst := range instances {
			inst, ok := rawInst.(map[string]interface{})
			if !ok {
				return stats, errors.Newf("frame_id %d: instance %d is not an object", frameID, ii)
			}

			box, ok := boxOf(inst["bbox"])
			if !ok || len(dets) == 0 {
				inst["track_id"] = Unmatched
				stats.NoCandidate++
				continue
			}

			if idx, iou := bestIoU(box, dets, used); idx >= 0 && iou >= minIoU {
				inst["track_id"] = dets[idx].TrackID
				used[idx] = true
				stats.MatchedIoU++
				continue
			}

			if opts.UseCenterFallback {
				if idx := nearestCenter(box, dets, used); idx >= 0 {
					inst["track_id"] = dets[idx].TrackID
					used[idx] = true
					stats.MatchedCenter++
					continue
				}
			}

			inst["track_id"] = Unmatched
			stats.NoCandidate++
		}
	}
	return stats, nil
}

// bestIoU returns the unused detection with the strictly highest IoU; the
// first one wins ties.
func bestIoU(box Box, dets []Detection, used map[int]bool) (int, float64) {
	best, bestIdx := -1.0, -1
	for i, d := range dets {
		if used[i] {
			continue
		}
		if iou := box.IoU(d.Box); iou > best {
			best, bestIdx = iou, i
		}
	}
	return bestIdx, best
}

func nearestCenter(box Box, dets []Detection, used map[int]bool) int {
	cx, cy := box.Center()
	best, bestIdx := math.Inf(1), -1
	for i, d := range dets {
		if used[i] {
			continue
		}
		dx, dy := d.Box.Center()
		if d2 := (cx-dx)*(cx-dx) + (cy-dy)*(cy-dy); d2 < best {
			best, bestIdx = d2, i
		}
	}
	return bestIdx
}

// MergeFile reads a tracker file and a keypoint JSON, assigns track ids,
// and writes the result to outPath atomically. Fields it does not set are
// written back unchanged (object keys come out sorted).
func MergeFile(trackPath, keypointPath, outPath string, opts MergeOptions) (MergeStats, error) {
	tracks, err := LoadTracks(trackPath)
	if err != nil {
		return MergeStats{}, err
	}

	f, err := os.Open(keypointPath)
	if err != nil {
		return MergeStats{}, err
	}
	doc, err := decodeJSON(f)
	f.Close()
	if err != nil {
		return MergeStats{}, errors.Wrapf(err, "decode %s", keypointPath)
	}
	frames, ok := doc.([]interface{})
	if !ok {
		return MergeStats{}, errors.Newf("%s: expected a list of frames", keypointPath)
	}

	stats, err := AssignTrackIDs(frames, tracks, opts)
	if err != nil {
		return stats, errors.Wrap(err, keypointPath)
	}

	data, err := encodeJSON(frames)
	if err != nil {
		return stats, err
	}
	return stats, fileutil.WriteAtomic(outPath, data, 0o644)
}
