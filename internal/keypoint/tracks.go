package keypoint

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Detection is one tracker box in one frame.
type Detection struct {
	TrackID int
	Box     Box
}

// Tracks maps a frame number to its detections in file order.
type Tracks map[int][]Detection

// LoadTracks reads a tracker result file.
func LoadTracks(path string) (Tracks, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ParseTracks(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return t, nil
}

// ParseTracks reads MOTChallenge rows "frame,id,x,y,w,h[,score,...]".
// Rows with fewer than six fields are ignored; numeric fields may be
// written as floats.
func ParseTracks(r io.Reader) (Tracks, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	cr.LazyQuotes = true

	tracks := make(Tracks)
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return tracks, nil
		}
		if err != nil {
			return nil, err
		}
		if len(row) < 6 {
			continue
		}

		var v [6]float64
		for i := range v {
			if v[i], err = strconv.ParseFloat(strings.TrimSpace(row[i]), 64); err != nil {
				return nil, errors.Wrapf(err, "line %d field %d", line, i+1)
			}
		}
		frame := int(v[0])
		tracks[frame] = append(tracks[frame], Detection{
			TrackID: int(v[1]),
			Box:     BoxFromXYWH(v[2], v[3], v[4], v[5]),
		})
	}
}
