package fusion

import "imagefusion/pkg/raster"

// ClipWindow returns the square window of the given radius around
// (cx, cy), clipped to an image of the given dimensions.
func ClipWindow(cx, cy, radius, width, height int) raster.Rect {
	x0 := cx - radius
	if x0 < 0 {
		x0 = 0
	}
	y0 := cy - radius
	if y0 < 0 {
		y0 = 0
	}
	x1 := cx + radius + 1
	if x1 > width {
		x1 = width
	}
	y1 := cy + radius + 1
	if y1 > height {
		y1 = height
	}
	return raster.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Classifier buckets sample values into a fixed number of brightness
// classes by linear binning over an observed value range.
type Classifier struct {
	min   float64
	scale float64
	n     int
}

// NewClassifier builds a classifier for n classes over [min, max]. A
// degenerate range (max <= min) maps every value to class 0.
func NewClassifier(min, max float64, n int) Classifier {
	c := Classifier{min: min, n: n}
	if max > min && n > 1 {
		c.scale = float64(n) / (max - min)
	}
	return c
}

// Class returns the class index of v, clamped to [0, n-1].
func (c Classifier) Class(v float64) int {
	if c.scale == 0 {
		return 0
	}
	idx := int((v - c.min) * c.scale)
	if idx < 0 {
		return 0
	}
	if idx >= c.n {
		return c.n - 1
	}
	return idx
}
