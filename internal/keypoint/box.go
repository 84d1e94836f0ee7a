package keypoint

import "math"

// Box is an axis-aligned rectangle in corner form.
type Box struct {
	X1, Y1, X2, Y2 float64
}

// BoxFromXYWH converts a top-left/width/height box.
func BoxFromXYWH(x, y, w, h float64) Box {
	return Box{X1: x, Y1: y, X2: x + w, Y2: y + h}
}

// Area is zero for degenerate boxes.
func (b Box) Area() float64 {
	return math.Max(0, b.X2-b.X1) * math.Max(0, b.Y2-b.Y1)
}

// IoU returns intersection over union, or 0 when the union is empty.
func (b Box) IoU(o Box) float64 {
	iw := math.Max(0, math.Min(b.X2, o.X2)-math.Max(b.X1, o.X1))
	ih := math.Max(0, math.Min(b.Y2, o.Y2)-math.Max(b.Y1, o.Y1))
	inter := iw * ih
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Center returns the midpoint.
func (b Box) Center() (x, y float64) {
	return 0.5 * (b.X1 + b.X2), 0.5 * (b.Y1 + b.Y2)
}
