// Package starfm implements the similarity-weighted spatiotemporal
// fusion algorithm. For every target pixel it searches a square window
// for spectrally similar candidate pixels of the same brightness class,
// weights them by inverse spectral, temporal and spatial distance, and
// predicts the high-resolution value as the reference value plus the
// weighted low-resolution change. With two reference dates the two
// predictions are combined inversely to their temporal-change spread.
package starfm

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"imagefusion/pkg/fusion"
	"imagefusion/pkg/multires"
	"imagefusion/pkg/raster"
)

const (
	// thresholdSlack widens the spectral and temporal rejection
	// thresholds so that high-quality candidates sitting right at a
	// threshold are not discarded. Calibration constant.
	thresholdSlack = 1.05

	// minWeightDenom keeps the combined distance away from zero so a
	// perfect candidate cannot collect unbounded weight.
	minWeightDenom = 1e-10

	// minSpread floors the per-window temporal spread so double-pair
	// combination never divides by zero.
	minSpread = 1e-12
)

// Fusor is the similarity-weighted fusion algorithm. It implements
// fusion.DataFusor. A Fusor must not run concurrent Predict calls;
// use one instance per goroutine.
type Fusor struct {
	src        *multires.Store
	opts       fusion.Options
	configured bool
	out        *raster.Image

	// per-pixel scratch, reused across pixels of one Predict call
	cands []candidate
	wbuf  []float64
	dbuf  []float64
}

type candidate struct {
	x, y int
}

// refPair bundles the co-registered images of one reference date.
type refPair struct {
	high *raster.Image
	low  *raster.Image
}

// New returns an unconfigured Fusor.
func New() *Fusor { return &Fusor{} }

// SetSrcImages binds the source store. The store is shared, not owned.
func (f *Fusor) SetSrcImages(s *multires.Store) { f.src = s }

// Configure validates opts and stores a private copy. The most recent
// successful call wins.
func (f *Fusor) Configure(opts fusion.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	f.opts = opts.Copy()
	f.configured = true
	return nil
}

// Options returns a copy of the configured options.
func (f *Fusor) Options() fusion.Options { return f.opts.Copy() }

// OutputImage returns the most recent prediction, or nil before the
// first successful Predict.
func (f *Fusor) OutputImage() *raster.Image { return f.out }

// Predict computes the high-resolution image at date for the configured
// prediction area. Pixels where mask is false keep their previous
// output value.
func (f *Fusor) Predict(date int, mask *raster.Mask) error {
	if !f.configured {
		return fusion.ErrNotConfigured
	}
	if f.src == nil {
		return errors.New("starfm: no source store bound")
	}

	pairs, lowT, err := f.sources(date)
	if err != nil {
		return err
	}

	area := f.opts.PredictArea
	channels := lowT.Channels()
	if mask != nil && !mask.ValidForRect(area, channels) {
		return fmt.Errorf("starfm: mask %dx%dx%d does not match prediction area %v with %d channels",
			mask.Width(), mask.Height(), mask.Channels(), area, channels)
	}

	if f.out == nil || f.out.Width() != area.W || f.out.Height() != area.H || f.out.Channels() != channels {
		f.out = raster.New(area.W, area.H, channels)
	}

	for c := 0; c < channels; c++ {
		for y := area.Y; y < area.Y+area.H; y++ {
			for x := area.X; x < area.X+area.W; x++ {
				if mask != nil && !mask.At(x-area.X, y-area.Y, c) {
					continue
				}
				f.out.Set(x-area.X, y-area.Y, c, f.predictPixel(pairs, lowT, x, y, c))
			}
		}
	}
	return nil
}

// sources reads the reference pairs and the target-date low-resolution
// image from the store and checks that they agree in shape and contain
// the prediction area.
func (f *Fusor) sources(date int) ([]refPair, *raster.Image, error) {
	lowT, err := f.src.Get(f.opts.LowTag, date)
	if err != nil {
		return nil, nil, err
	}

	pairs := make([]refPair, 0, len(f.opts.RefDates))
	for _, ref := range f.opts.RefDates {
		high, err := f.src.Get(f.opts.HighTag, ref)
		if err != nil {
			return nil, nil, err
		}
		low, err := f.src.Get(f.opts.LowTag, ref)
		if err != nil {
			return nil, nil, err
		}
		if !high.SameShape(lowT) || !low.SameShape(lowT) {
			return nil, nil, fmt.Errorf("starfm: images at reference date %d do not match target shape %dx%dx%d",
				ref, lowT.Width(), lowT.Height(), lowT.Channels())
		}
		pairs = append(pairs, refPair{high: high, low: low})
	}

	if !f.opts.PredictArea.In(lowT.Width(), lowT.Height()) {
		return nil, nil, fmt.Errorf("starfm: prediction area %v outside source image %dx%d",
			f.opts.PredictArea, lowT.Width(), lowT.Height())
	}
	return pairs, lowT, nil
}

// predictPixel predicts one pixel of one channel, combining the
// per-reference-date predictions in double-pair mode.
func (f *Fusor) predictPixel(pairs []refPair, lowT *raster.Image, x, y, c int) float64 {
	if f.opts.CopyOnZeroDiff {
		for _, p := range pairs {
			if lowT.At(x, y, c) == p.low.At(x, y, c) {
				return p.high.At(x, y, c)
			}
		}
	}

	if len(pairs) == 1 {
		pred, _ := f.pairPredict(pairs[0], lowT, x, y, c)
		return pred
	}

	pred0, spread0 := f.pairPredict(pairs[0], lowT, x, y, c)
	pred1, spread1 := f.pairPredict(pairs[1], lowT, x, y, c)
	inv0 := 1 / spread0
	inv1 := 1 / spread1
	total := inv0 + inv1
	return (inv0/total)*pred0 + (inv1/total)*pred1
}

// pairPredict predicts one pixel from a single reference date and
// returns the prediction together with the temporal-change spread of
// its candidate set, which double-pair mode uses as an uncertainty.
func (f *Fusor) pairPredict(p refPair, lowT *raster.Image, cx, cy, c int) (pred, spread float64) {
	win := fusion.ClipWindow(cx, cy, f.opts.WinSize, lowT.Width(), lowT.Height())

	minV := math.Inf(1)
	maxV := math.Inf(-1)
	for y := win.Y; y < win.Y+win.H; y++ {
		for x := win.X; x < win.X+win.W; x++ {
			if !pixelValid(p, lowT, x, y, c) {
				continue
			}
			v := p.low.At(x, y, c)
			minV = math.Min(minV, v)
			maxV = math.Max(maxV, v)
		}
	}
	cls := fusion.NewClassifier(minV, maxV, f.opts.NumClasses)
	targetClass := cls.Class(p.low.At(cx, cy, c))

	specThr := f.opts.SpectralUncertainty * thresholdSlack
	tempThr := f.opts.TemporalUncertainty * thresholdSlack

	f.cands = f.cands[:0]
	for y := win.Y; y < win.Y+win.H; y++ {
		for x := win.X; x < win.X+win.W; x++ {
			if !pixelValid(p, lowT, x, y, c) || cls.Class(p.low.At(x, y, c)) != targetClass {
				continue
			}
			if math.Abs(p.high.At(x, y, c)-p.low.At(x, y, c)) > specThr {
				continue
			}
			if math.Abs(p.low.At(x, y, c)-lowT.At(x, y, c)) > tempThr {
				continue
			}
			f.cands = append(f.cands, candidate{x: x, y: y})
		}
	}

	// No candidate survived the thresholds: fall back to the full
	// window, then to the center pixel alone if even that is empty.
	if len(f.cands) == 0 {
		for y := win.Y; y < win.Y+win.H; y++ {
			for x := win.X; x < win.X+win.W; x++ {
				if pixelValid(p, lowT, x, y, c) {
					f.cands = append(f.cands, candidate{x: x, y: y})
				}
			}
		}
	}
	if len(f.cands) == 0 {
		f.cands = append(f.cands, candidate{x: cx, y: cy})
	}

	f.wbuf = f.wbuf[:0]
	f.dbuf = f.dbuf[:0]
	var wsum float64
	for _, cand := range f.cands {
		sd := math.Abs(p.high.At(cand.x, cand.y, c) - p.low.At(cand.x, cand.y, c))
		td := math.Abs(p.low.At(cand.x, cand.y, c) - lowT.At(cand.x, cand.y, c))
		dist := math.Hypot(float64(cand.x-cx), float64(cand.y-cy))
		spatial := 1 + dist/float64(f.opts.WinSize)
		denom := sd * td * spatial
		if denom < minWeightDenom {
			denom = minWeightDenom
		}
		w := 1 / denom
		wsum += w
		f.wbuf = append(f.wbuf, w)
		f.dbuf = append(f.dbuf, lowT.At(cand.x, cand.y, c)-p.low.At(cand.x, cand.y, c))
	}

	var change float64
	for i, w := range f.wbuf {
		change += (w / wsum) * f.dbuf[i]
	}
	pred = p.high.At(cx, cy, c) + change

	spread = 0
	if len(f.dbuf) > 1 {
		spread = stat.StdDev(f.dbuf, nil)
	}
	if spread < minSpread {
		spread = minSpread
	}
	return pred, spread
}

// pixelValid reports whether the pixel is valid in all three source
// images relevant to one reference date.
func pixelValid(p refPair, lowT *raster.Image, x, y, c int) bool {
	return p.high.ValidAt(x, y, c) && p.low.ValidAt(x, y, c) && lowT.ValidAt(x, y, c)
}
