// Package fitfc implements the regression-enhanced spatiotemporal
// fusion algorithm. For every target pixel it fits a local linear
// relationship between the low- and high-resolution reference values
// over a class-restricted window sample, applies quality gates to the
// fitted slope, and predicts the target value from the regressed change
// plus a similarity-weighted interpolation of the regression residuals.
package fitfc

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
	// minWeightDenom keeps the residual-distance weighting bounded.
	minWeightDenom = 1e-10

	// minResVariance floors the per-window residual variance so
	// double-pair combination never divides by zero.
	minResVariance = 1e-12
)

// Fusor is the regression-enhanced fusion algorithm. It implements
// fusion.DataFusor. A Fusor must not run concurrent Predict calls; use
// one instance per goroutine.
type Fusor struct {
	src        *multires.Store
	opts       fusion.Options
	configured bool
	out        *raster.Image

	// per-pixel scratch, reused across pixels of one Predict call
	xs    []float64
	ys    []float64
	cands []candidate
	rbuf  []float64
}

type candidate struct {
	x, y int
}

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
		return errors.New("fitfc: no source store bound")
	}

	pairs, lowT, err := f.sources(date)
	if err != nil {
		return err
	}

	area := f.opts.PredictArea
	channels := lowT.Channels()
	if mask != nil && !mask.ValidForRect(area, channels) {
		return fmt.Errorf("fitfc: mask %dx%dx%d does not match prediction area %v with %d channels",
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
			return nil, nil, fmt.Errorf("fitfc: images at reference date %d do not match target shape %dx%dx%d",
				ref, lowT.Width(), lowT.Height(), lowT.Channels())
		}
		pairs = append(pairs, refPair{high: high, low: low})
	}

	if !f.opts.PredictArea.In(lowT.Width(), lowT.Height()) {
		return nil, nil, fmt.Errorf("fitfc: prediction area %v outside source image %dx%d",
			f.opts.PredictArea, lowT.Width(), lowT.Height())
	}
	return pairs, lowT, nil
}

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

	pred0, var0 := f.pairPredict(pairs[0], lowT, x, y, c)
	pred1, var1 := f.pairPredict(pairs[1], lowT, x, y, c)
	inv0 := 1 / var0
	inv1 := 1 / var1
	total := inv0 + inv1
	return (inv0/total)*pred0 + (inv1/total)*pred1
}

// pairPredict predicts one pixel from a single reference date. It
// returns the prediction and the residual variance of the local fit,
// which double-pair mode uses as an uncertainty.
func (f *Fusor) pairPredict(p refPair, lowT *raster.Image, cx, cy, c int) (pred, resVar float64) {
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

	f.xs = f.xs[:0]
	f.ys = f.ys[:0]
	f.cands = f.cands[:0]
	for y := win.Y; y < win.Y+win.H; y++ {
		for x := win.X; x < win.X+win.W; x++ {
			if !pixelValid(p, lowT, x, y, c) || cls.Class(p.low.At(x, y, c)) != targetClass {
				continue
			}
			f.xs = append(f.xs, p.low.At(x, y, c))
			f.ys = append(f.ys, p.high.At(x, y, c))
			f.cands = append(f.cands, candidate{x: x, y: y})
		}
	}
	if len(f.cands) == 0 {
		// Every window pixel is invalid; predict from the center pixel
		// alone as a pure additive change.
		return p.high.At(cx, cy, c) + (lowT.At(cx, cy, c) - p.low.At(cx, cy, c)), minResVariance
	}

	fit := FitSlope(f.xs, f.ys, f.opts.SmoothSlope)

	// Residuals of the sample against the gated line, and the
	// similarity weights derived from them.
	f.rbuf = f.rbuf[:0]
	residC := p.high.At(cx, cy, c) - (fit.Intercept + fit.Slope*p.low.At(cx, cy, c))
	var wsum, weighted float64
	for i, cand := range f.cands {
		resid := f.ys[i] - (fit.Intercept + fit.Slope*f.xs[i])
		f.rbuf = append(f.rbuf, resid)

		dist := math.Hypot(float64(cand.x-cx), float64(cand.y-cy))
		spatial := 1 + dist/float64(f.opts.WinSize)
		denom := math.Abs(resid-residC) * spatial
		if denom < minWeightDenom {
			denom = minWeightDenom
		}
		w := 1 / denom
		wsum += w
		weighted += w * resid
	}
	weighted /= wsum

	pred = fit.Intercept + fit.Slope*lowT.At(cx, cy, c) + weighted

	resVar = 0
	if len(f.rbuf) > 1 {
		resVar = stat.Variance(f.rbuf, nil)
	}
	if resVar < minResVariance {
		resVar = minResVariance
	}
	return pred, resVar
}

func pixelValid(p refPair, lowT *raster.Image, x, y, c int) bool {
	return p.high.ValidAt(x, y, c) && p.low.ValidAt(x, y, c) && lowT.ValidAt(x, y, c)
}
