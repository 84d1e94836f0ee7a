package keypoint

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/backmassage/posepipe/internal/fileutil"
)

// trackIDKeys are tried in order; the first present key decides.
var trackIDKeys = []string{"track_id", "tracking_id", "id", "person_id"}

// SkeletonOptions configures skeleton export.
type SkeletonOptions struct {
	Joints         int  // keypoints every instance must have
	RequireNonzero bool // drop persons whose joints are all (0,0,0)
}

// Person is one tracked pose in a frame.
type Person struct {
	TrackID int
	Joints  [][3]float64
}

// SkeletonName returns the file name for action n and sequence m, for
// example SkeletonName(1, 6, 3, 3) == "001A006.skeleton".
func SkeletonName(n, m, padN, padM int) string {
	return fmt.Sprintf("%0*dA%0*d.skeleton", padN, n, padM, m)
}

// ReadSkeletonFrames decodes tracked keypoint JSON, either a list of frames
// or {"instance_info": [...]}, into persons per frame ordered by frame_id
// and then by track id.
func ReadSkeletonFrames(r io.Reader, opts SkeletonOptions) ([][]Person, error) {
	doc, err := decodeJSON(r)
	if err != nil {
		return nil, err
	}

	var raw []interface{}
	switch v := doc.(type) {
	case []interface{}:
		raw = v
	case map[string]interface{}:
		info, ok := v["instance_info"].([]interface{})
		if !ok {
			return nil, errors.New("unsupported JSON root: expected a list of frames or an object with instance_info")
		}
		raw = info
	default:
		return nil, errors.New("unsupported JSON root: expected a list of frames or an object with instance_info")
	}

	type frame struct {
		id  float64
		obj map[string]interface{}
	}
	frames := make([]frame, 0, len(raw))
	for i, r := range raw {
		obj, ok := r.(map[string]interface{})
		if !ok {
			return nil, errors.Newf("frame %d is not an object", i)
		}
		var id float64
		if v, ok := obj["frame_id"]; ok {
			if id, ok = toFloat(v); !ok {
				return nil, errors.Newf("frame %d has a non-numeric frame_id", i)
			}
		}
		frames = append(frames, frame{id: id, obj: obj})
	}
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].id < frames[j].id })

	out := make([][]Person, 0, len(frames))
	for _, fr := range frames {
		persons, err := framePersons(fr.obj, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "frame_id %s", formatFloat(fr.id))
		}
		out = append(out, persons)
	}
	return out, nil
}

func framePersons(frame map[string]interface{}, opts SkeletonOptions) ([]Person, error) {
	instances, _ := frame["instances"].([]interface{})
	byID := make(map[int][][3]float64, len(instances))

	for i, raw := range instances {
		inst, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errors.Newf("instance %d is not an object", i+1)
		}
		tid := trackID(inst, i+1)
		joints, err := normalizeKeypoints(inst["keypoints"])
		if err != nil {
			return nil, errors.Wrapf(err, "track_id %d", tid)
		}
		if len(joints) != opts.Joints {
			return nil, errors.Newf("track_id %d: %d keypoints, want %d", tid, len(joints), opts.Joints)
		}
		if opts.RequireNonzero && allZero(joints) {
			continue
		}
		// A repeated id keeps the last instance.
		byID[tid] = joints
	}

	persons := make([]Person, 0, len(byID))
	for id, j := range byID {
		persons = append(persons, Person{TrackID: id, Joints: j})
	}
	sort.Slice(persons, func(i, j int) bool { return persons[i].TrackID < persons[j].TrackID })
	return persons, nil
}

// trackID returns the first present id key, or fallback (the 1-based
// position in the frame) when it is absent or not an integer.
func trackID(inst map[string]interface{}, fallback int) int {
	for _, k := range trackIDKeys {
		v, ok := inst[k]
		if !ok {
			continue
		}
		if id, ok := toInt(v); ok {
			return id
		}
		break
	}
	return fallback
}

// normalizeKeypoints unwraps one extra level of nesting and keeps the first
// three values of every point.
func normalizeKeypoints(v interface{}) ([][3]float64, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil, errors.New("keypoints is not a list")
	}
	if len(list) == 1 {
		if inner, ok := list[0].([]interface{}); ok && len(inner) > 0 {
			if _, nested := inner[0].([]interface{}); nested {
				list = inner
			}
		}
	}

	out := make([][3]float64, 0, len(list))
	for i, p := range list {
		pt, ok := p.([]interface{})
		if !ok || len(pt) < 3 {
			return nil, errors.Newf("keypoint %d must have at least 3 values [x, y, z]", i)
		}
		var xyz [3]float64
		for k := 0; k < 3; k++ {
			if xyz[k], ok = toFloat(pt[k]); !ok {
				return nil, errors.Newf("keypoint %d has a non-numeric coordinate", i)
			}
		}
		out = append(out, xyz)
	}
	return out, nil
}

func allZero(joints [][3]float64) bool {
	for _, j := range joints {
		if j[0] != 0 || j[1] != 0 || j[2] != 0 {
			return false
		}
	}
	return true
}

// WriteSkeleton writes frames in skeleton text form: the frame count, then
// per frame the person count followed by, for each person, its track id,
// the joint count, and one "x y z" line per joint.
func WriteSkeleton(w io.Writer, frames [][]Person, joints int) error {
	var b strings.Builder
	b.WriteString(strconv.Itoa(len(frames)))
	b.WriteByte('\n')
	for _, persons := range frames {
		b.WriteString(strconv.Itoa(len(persons)))
		b.WriteByte('\n')
		for _, p := range persons {
			b.WriteString(strconv.Itoa(p.TrackID))
			b.WriteByte('\n')
			b.WriteString(strconv.Itoa(joints))
			b.WriteByte('\n')
			for _, j := range p.Joints {
				b.WriteString(formatFloat(j[0]))
				b.WriteByte(' ')
				b.WriteString(formatFloat(j[1]))
				b.WriteByte(' ')
				b.WriteString(formatFloat(j[2]))
				b.WriteByte('\n')
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// ExportSkeleton converts the tracked keypoint JSON at inPath into a
// skeleton file at outPath and returns the number of frames written.
func ExportSkeleton(inPath, outPath string, opts SkeletonOptions) (int, error) {
	f, err := os.Open(inPath)
	if err != nil {
		return 0, err
	}
	frames, err := ReadSkeletonFrames(f, opts)
	f.Close()
	if err != nil {
		return 0, errors.Wrap(err, inPath)
	}

	var buf bytes.Buffer
	if err := WriteSkeleton(&buf, frames, opts.Joints); err != nil {
		return 0, err
	}
	return len(frames), fileutil.WriteAtomic(outPath, buf.Bytes(), 0o644)
}
