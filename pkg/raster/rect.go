package raster

import "fmt"

// Rect describes an axis-aligned pixel rectangle with its origin in the
// top-left corner. X and Y are the column and row of the first pixel,
// W and H the extent in pixels.
type Rect struct {
	X, Y, W, H int
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Valid reports whether the rectangle has non-negative origin and extent.
func (r Rect) Valid() bool {
	return r.X >= 0 && r.Y >= 0 && r.W >= 0 && r.H >= 0
}

// In reports whether the rectangle lies entirely inside an image of the
// given dimensions.
func (r Rect) In(width, height int) bool {
	return r.Valid() && r.X+r.W <= width && r.Y+r.H <= height
}

// Intersect returns the overlapping region of r and s. The result is
// empty if the rectangles do not overlap.
func (r Rect) Intersect(s Rect) Rect {
	x0 := max(r.X, s.X)
	y0 := max(r.Y, s.Y)
	x1 := min(r.X+r.W, s.X+s.W)
	y1 := min(r.Y+r.H, s.Y+s.H)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Contains reports whether s lies entirely inside r.
func (r Rect) Contains(s Rect) bool {
	return s.X >= r.X && s.Y >= r.Y &&
		s.X+s.W <= r.X+r.W && s.Y+s.H <= r.Y+r.H
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.W, r.H, r.X, r.Y)
}
