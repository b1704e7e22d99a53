// Package raster provides the dense multi-channel image buffer used by
// the fusion algorithms. An Image stores one float64 matrix per channel
// and optionally carries a per-pixel validity mask. Sub-rectangle views
// alias the backing storage of their parent, so algorithms can hand out
// cheap windows into a shared output buffer.
package raster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Image is a dense raster with one or more channels of float64 samples.
// All channels share the same width and height.
type Image struct {
	width    int
	height   int
	channels int

	// bands holds one height x width matrix per channel. A view image
	// holds sliced matrices that alias the parent's backing data.
	bands []*mat.Dense

	// mask marks invalid pixels. nil means every pixel is valid.
	mask *Mask
}

// New allocates a zero-filled image of the given dimensions. It panics
// if any dimension is not positive, mirroring the behavior of the
// underlying matrix allocation.
func New(width, height, channels int) *Image {
	if width < 1 || height < 1 || channels < 1 {
		panic(fmt.Sprintf("raster: invalid image dimensions %dx%dx%d", width, height, channels))
	}
	bands := make([]*mat.Dense, channels)
	for c := range bands {
		bands[c] = mat.NewDense(height, width, nil)
	}
	return &Image{width: width, height: height, channels: channels, bands: bands}
}

// FromSlice builds a single-channel image from row-major data. The
// slice is used directly as backing storage, not copied.
func FromSlice(width, height int, data []float64) (*Image, error) {
	if len(data) != width*height {
		return nil, fmt.Errorf("raster: data length %d does not match %dx%d", len(data), width, height)
	}
	return &Image{
		width:    width,
		height:   height,
		channels: 1,
		bands:    []*mat.Dense{mat.NewDense(height, width, data)},
	}, nil
}

// Width returns the image width in pixels.
func (im *Image) Width() int { return im.width }

// Height returns the image height in pixels.
func (im *Image) Height() int { return im.height }

// Channels returns the number of channels.
func (im *Image) Channels() int { return im.channels }

// Bounds returns the full-image rectangle.
func (im *Image) Bounds() Rect {
	return Rect{W: im.width, H: im.height}
}

// At returns the sample at pixel (x, y) in channel c.
func (im *Image) At(x, y, c int) float64 {
	return im.bands[c].At(y, x)
}

// Set writes the sample at pixel (x, y) in channel c.
func (im *Image) Set(x, y, c int, v float64) {
	im.bands[c].Set(y, x, v)
}

// Mask returns the validity mask, or nil if every pixel is valid.
func (im *Image) Mask() *Mask { return im.mask }

// SetMask attaches a validity mask. The mask must be valid for this
// image, or nil to mark all pixels valid.
func (im *Image) SetMask(m *Mask) error {
	if m != nil && !m.ValidFor(im) {
		return fmt.Errorf("raster: mask %dx%dx%d is not valid for image %dx%dx%d",
			m.width, m.height, m.channels, im.width, im.height, im.channels)
	}
	im.mask = m
	return nil
}

// ValidAt reports whether the pixel (x, y) in channel c is valid
// according to the image mask. Images without a mask are valid
// everywhere.
func (im *Image) ValidAt(x, y, c int) bool {
	if im.mask == nil {
		return true
	}
	return im.mask.At(x, y, c)
}

// SameShape reports whether two images agree in width, height and
// channel count.
func (im *Image) SameShape(o *Image) bool {
	return o != nil && im.width == o.width && im.height == o.height && im.channels == o.channels
}

// Shared returns a view of the sub-rectangle r that aliases the backing
// storage: writes through the view are visible in the parent and vice
// versa. The view does not carry the parent's mask.
func (im *Image) Shared(r Rect) (*Image, error) {
	if r.Empty() || !r.In(im.width, im.height) {
		return nil, fmt.Errorf("raster: rectangle %v outside image %dx%d", r, im.width, im.height)
	}
	bands := make([]*mat.Dense, im.channels)
	for c, b := range im.bands {
		bands[c] = b.Slice(r.Y, r.Y+r.H, r.X, r.X+r.W).(*mat.Dense)
	}
	return &Image{width: r.W, height: r.H, channels: im.channels, bands: bands}, nil
}

// Clone returns an owned deep copy of the image, including its mask.
func (im *Image) Clone() *Image {
	bands := make([]*mat.Dense, im.channels)
	for c, b := range im.bands {
		bands[c] = mat.DenseCopyOf(b)
	}
	out := &Image{width: im.width, height: im.height, channels: im.channels, bands: bands}
	if im.mask != nil {
		out.mask = im.mask.Clone()
	}
	return out
}

// CopyFrom copies all samples of src into the image. The shapes must
// agree. If mask is non-nil, only pixels where the mask is true are
// copied; the remaining pixels keep their previous value.
func (im *Image) CopyFrom(src *Image, mask *Mask) error {
	if !im.SameShape(src) {
		return fmt.Errorf("raster: cannot copy %dx%dx%d into %dx%dx%d",
			src.width, src.height, src.channels, im.width, im.height, im.channels)
	}
	if mask == nil {
		for c, b := range im.bands {
			b.Copy(src.bands[c])
		}
		return nil
	}
	if !mask.ValidFor(im) {
		return fmt.Errorf("raster: mask %dx%dx%d is not valid for image %dx%dx%d",
			mask.width, mask.height, mask.channels, im.width, im.height, im.channels)
	}
	for c := 0; c < im.channels; c++ {
		for y := 0; y < im.height; y++ {
			for x := 0; x < im.width; x++ {
				if mask.At(x, y, c) {
					im.bands[c].Set(y, x, src.bands[c].At(y, x))
				}
			}
		}
	}
	return nil
}

// Fill sets every sample in every channel to v.
func (im *Image) Fill(v float64) {
	for _, b := range im.bands {
		for y := 0; y < im.height; y++ {
			for x := 0; x < im.width; x++ {
				b.Set(y, x, v)
			}
		}
	}
}

// Sub returns a new owned image holding the elementwise difference
// im - o. The shapes must agree.
func (im *Image) Sub(o *Image) (*Image, error) {
	return im.elementwise(o, func(a, b float64) float64 { return a - b })
}

// AbsDiff returns a new owned image holding |im - o| elementwise. The
// shapes must agree.
func (im *Image) AbsDiff(o *Image) (*Image, error) {
	return im.elementwise(o, func(a, b float64) float64 { return math.Abs(a - b) })
}

func (im *Image) elementwise(o *Image, op func(a, b float64) float64) (*Image, error) {
	if !im.SameShape(o) {
		return nil, fmt.Errorf("raster: shape mismatch %dx%dx%d vs %dx%dx%d",
			im.width, im.height, im.channels, o.width, o.height, o.channels)
	}
	out := New(im.width, im.height, im.channels)
	for c := 0; c < im.channels; c++ {
		for y := 0; y < im.height; y++ {
			for x := 0; x < im.width; x++ {
				out.bands[c].Set(y, x, op(im.bands[c].At(y, x), o.bands[c].At(y, x)))
			}
		}
	}
	return out, nil
}
