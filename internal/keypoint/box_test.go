package keypoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBox_IoU(t *testing.T) {
	tests := []struct {
		name string
		a, b Box
		want float64
	}{
		{"identical", Box{0, 0, 10, 10}, Box{0, 0, 10, 10}, 1},
		{"disjoint", Box{0, 0, 10, 10}, Box{20, 20, 30, 30}, 0},
		{"half overlap", Box{0, 0, 10, 10}, Box{5, 0, 15, 10}, 50.0 / 150.0},
		{"contained", Box{0, 0, 10, 10}, Box{0, 0, 5, 10}, 0.5},
		{"degenerate", Box{0, 0, 0, 0}, Box{0, 0, 0, 0}, 0},
		{"inverted counts as empty", Box{10, 10, 0, 0}, Box{0, 0, 10, 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.a.IoU(tt.b), 1e-12)
			assert.InDelta(t, tt.want, tt.b.IoU(tt.a), 1e-12)
		})
	}
}

func TestBoxFromXYWH(t *testing.T) {
	b := BoxFromXYWH(10, 20, 30, 40)
	assert.Equal(t, Box{10, 20, 40, 60}, b)
	x, y := b.Center()
	assert.Equal(t, 25.0, x)
	assert.Equal(t, 40.0, y)
}
