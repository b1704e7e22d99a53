// Package parallel drives any fusion algorithm concurrently over
// disjoint row-bands of the prediction area. Each worker owns its own
// algorithm instance and its own rows of the shared output buffer, so
// the merged result is bit-identical to a single-threaded run over the
// full rectangle.
package parallel

import (
	"errors"
	"fmt"
	"sync"

	"imagefusion/pkg/fusion"
	"imagefusion/pkg/multires"
	"imagefusion/pkg/raster"
)

// Options configures a Parallelizer run.
type Options struct {
	// Threads is the number of worker bands, at least 1. A prediction
	// area with fewer rows than Threads uses one band per row.
	Threads int

	// Fusor holds the options propagated into every algorithm
	// instance. Its PredictArea is overridden per band.
	Fusor fusion.Options

	// PredictArea optionally overrides Fusor.PredictArea as the
	// overall output rectangle. Leave empty to keep the fusor's own.
	PredictArea raster.Rect
}

// effectiveArea returns the output rectangle the run covers.
func (o Options) effectiveArea() raster.Rect {
	if o.PredictArea.Empty() {
		return o.Fusor.PredictArea
	}
	return o.PredictArea
}

// Parallelizer runs N independently owned fusion.DataFusor instances
// over row-bands of the prediction area and merges their outputs into
// one buffer. Apart from Configure taking its own Options, it mirrors
// the DataFusor operations, so callers drive it like a single
// algorithm.
type Parallelizer struct {
	factory func() fusion.DataFusor

	src        *multires.Store
	opts       Options
	area       raster.Rect
	bands      []raster.Rect
	fusors     []fusion.DataFusor
	out        *raster.Image
	configured bool
}

// New returns an unconfigured Parallelizer that builds its algorithm
// instances with the given factory.
func New(factory func() fusion.DataFusor) *Parallelizer {
	return &Parallelizer{factory: factory}
}

// SetSrcImages binds the source store and propagates it into every
// existing algorithm instance.
func (p *Parallelizer) SetSrcImages(s *multires.Store) {
	p.src = s
	for _, f := range p.fusors {
		f.SetSrcImages(s)
	}
}

// Configure validates opts, splits the prediction area into row-bands
// and propagates the per-band options into the worker instances. If the
// thread count is unchanged from the previous call, the existing
// instances are reused and merely reconfigured.
func (p *Parallelizer) Configure(opts Options) error {
	if opts.Threads < 1 {
		return fmt.Errorf("parallel: thread count %d must be at least 1", opts.Threads)
	}
	area := opts.effectiveArea()
	fopts := opts.Fusor.Copy()
	fopts.PredictArea = area
	if err := fopts.Validate(); err != nil {
		return err
	}

	if len(p.fusors) != opts.Threads {
		p.fusors = make([]fusion.DataFusor, opts.Threads)
		for i := range p.fusors {
			f := p.factory()
			f.SetSrcImages(p.src)
			p.fusors[i] = f
		}
	}

	bands := splitRows(area, opts.Threads)
	for i, band := range bands {
		bopts := fopts.Copy()
		bopts.PredictArea = band
		if err := p.fusors[i].Configure(bopts); err != nil {
			return err
		}
	}

	p.opts = opts
	p.opts.Fusor = fopts
	p.area = area
	p.bands = bands
	p.configured = true
	return nil
}

// Options returns a copy of the options of the wrapped algorithm, with
// the effective overall prediction area.
func (p *Parallelizer) Options() fusion.Options {
	return p.opts.Fusor.Copy()
}

// Threads returns the configured thread count.
func (p *Parallelizer) Threads() int {
	return p.opts.Threads
}

// OutputImage returns the merged result of the most recent successful
// Predict, or nil before the first one.
func (p *Parallelizer) OutputImage() *raster.Image { return p.out }

// Predict runs one worker per row-band and merges the band outputs into
// the shared output buffer at disjoint row ranges. All workers run to
// completion even when one fails; the first error in band order is
// returned, and the buffer content is unspecified after a failure.
func (p *Parallelizer) Predict(date int, mask *raster.Mask) error {
	if !p.configured {
		return fusion.ErrNotConfigured
	}
	if p.src == nil {
		return errors.New("parallel: no source store bound")
	}

	channels, err := p.sourceChannels()
	if err != nil {
		return err
	}
	if mask != nil && !mask.ValidForRect(p.area, channels) {
		return fmt.Errorf("parallel: mask %dx%dx%d does not match prediction area %v with %d channels",
			mask.Width(), mask.Height(), mask.Channels(), p.area, channels)
	}

	if p.out == nil || p.out.Width() != p.area.W || p.out.Height() != p.area.H || p.out.Channels() != channels {
		p.out = raster.New(p.area.W, p.area.H, channels)
	}

	errs := make([]error, len(p.bands))
	var wg sync.WaitGroup
	for i, band := range p.bands {
		wg.Add(1)
		go func(i int, band raster.Rect) {
			defer wg.Done()
			errs[i] = p.predictBand(i, band, date, mask)
		}(i, band)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// predictBand runs one worker: predict the band with its own algorithm
// instance, then copy the band rows into the shared output. Bands are
// disjoint, so no locking is needed on the output buffer.
func (p *Parallelizer) predictBand(i int, band raster.Rect, date int, mask *raster.Mask) error {
	rel := raster.Rect{X: band.X - p.area.X, Y: band.Y - p.area.Y, W: band.W, H: band.H}

	var bandMask *raster.Mask
	if mask != nil {
		var err error
		bandMask, err = mask.Shared(rel)
		if err != nil {
			return err
		}
	}

	f := p.fusors[i]
	if err := f.Predict(date, bandMask); err != nil {
		return err
	}

	dst, err := p.out.Shared(rel)
	if err != nil {
		return err
	}
	return dst.CopyFrom(f.OutputImage(), bandMask)
}

// sourceChannels determines the channel count of the run from the
// high-resolution image at the first reference date.
func (p *Parallelizer) sourceChannels() (int, error) {
	img, err := p.src.Get(p.opts.Fusor.HighTag, p.opts.Fusor.RefDates[0])
	if err != nil {
		return 0, err
	}
	return img.Channels(), nil
}

// splitRows cuts the rectangle into up to n horizontal bands of
// ceil(height/n) rows each; the last band may be shorter. A rectangle
// with fewer rows than n yields one band per row.
func splitRows(area raster.Rect, n int) []raster.Rect {
	if n > area.H {
		n = area.H
	}
	rowsPerBand := (area.H + n - 1) / n

	var bands []raster.Rect
	for y := area.Y; y < area.Y+area.H; y += rowsPerBand {
		h := rowsPerBand
		if y+h > area.Y+area.H {
			h = area.Y + area.H - y
		}
		bands = append(bands, raster.Rect{X: area.X, Y: y, W: area.W, H: h})
	}
	return bands
}
