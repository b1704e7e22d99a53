package raster

import "fmt"

// Mask is a boolean raster marking pixels as usable. A mask has either
// one channel, which then applies to every channel of the image it
// accompanies, or exactly as many channels as that image.
type Mask struct {
	width    int
	height   int
	channels int

	// stride is the row stride of the backing storage. Views into a
	// larger mask keep the parent stride.
	stride int

	// bands holds one bit plane per channel. View masks hold
	// re-sliced bit planes that alias the parent's storage.
	bands [][]bool
}

// NewMask allocates a mask of the given dimensions with every bit set
// to false.
func NewMask(width, height, channels int) *Mask {
	if width < 1 || height < 1 || channels < 1 {
		panic(fmt.Sprintf("raster: invalid mask dimensions %dx%dx%d", width, height, channels))
	}
	bands := make([][]bool, channels)
	for c := range bands {
		bands[c] = make([]bool, width*height)
	}
	return &Mask{width: width, height: height, channels: channels, stride: width, bands: bands}
}

// Width returns the mask width in pixels.
func (m *Mask) Width() int { return m.width }

// Height returns the mask height in pixels.
func (m *Mask) Height() int { return m.height }

// Channels returns the number of mask channels.
func (m *Mask) Channels() int { return m.channels }

// At reports the bit at pixel (x, y) for channel c. A single-channel
// mask answers for every channel.
func (m *Mask) At(x, y, c int) bool {
	if m.channels == 1 {
		c = 0
	}
	return m.bands[c][y*m.stride+x]
}

// Set writes the bit at pixel (x, y) for channel c.
func (m *Mask) Set(x, y, c int, v bool) {
	if m.channels == 1 {
		c = 0
	}
	m.bands[c][y*m.stride+x] = v
}

// SetAll sets every bit in every channel to v.
func (m *Mask) SetAll(v bool) {
	for _, band := range m.bands {
		for y := 0; y < m.height; y++ {
			row := band[y*m.stride : y*m.stride+m.width]
			for x := range row {
				row[x] = v
			}
		}
	}
}

// ValidFor reports whether the mask can accompany img: the sizes must
// match and the mask must have either one channel or the image's
// channel count.
func (m *Mask) ValidFor(img *Image) bool {
	return m.width == img.width && m.height == img.height &&
		(m.channels == 1 || m.channels == img.channels)
}

// ValidForRect reports whether the mask can accompany an image of the
// given rectangle extent and channel count.
func (m *Mask) ValidForRect(r Rect, channels int) bool {
	return m.width == r.W && m.height == r.H &&
		(m.channels == 1 || m.channels == channels)
}

// Shared returns a view of the sub-rectangle r that aliases the backing
// storage of the mask.
func (m *Mask) Shared(r Rect) (*Mask, error) {
	if r.Empty() || !r.In(m.width, m.height) {
		return nil, fmt.Errorf("raster: rectangle %v outside mask %dx%d", r, m.width, m.height)
	}
	bands := make([][]bool, m.channels)
	for c, band := range m.bands {
		start := r.Y*m.stride + r.X
		end := (r.Y+r.H-1)*m.stride + r.X + r.W
		bands[c] = band[start:end]
	}
	return &Mask{width: r.W, height: r.H, channels: m.channels, stride: m.stride, bands: bands}, nil
}

// Clone returns an owned deep copy of the mask. The copy is compacted:
// its stride equals its width even if the source was a view.
func (m *Mask) Clone() *Mask {
	out := NewMask(m.width, m.height, m.channels)
	for c, band := range m.bands {
		for y := 0; y < m.height; y++ {
			copy(out.bands[c][y*out.stride:y*out.stride+m.width], band[y*m.stride:y*m.stride+m.width])
		}
	}
	return out
}
