package starfm

import (
	"errors"
	"math"
	"testing"

	"imagefusion/pkg/fusion"
	"imagefusion/pkg/multires"
	"imagefusion/pkg/raster"
)

// genImage builds a deterministic test image from a per-pixel formula.
func genImage(w, h, channels int, fn func(x, y, c int) float64) *raster.Image {
	img := raster.New(w, h, channels)
	for c := 0; c < channels; c++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.Set(x, y, c, fn(x, y, c))
			}
		}
	}
	return img
}

// base is a smooth but non-constant surface in [0.1, 0.9].
func base(x, y, c int) float64 {
	return 0.5 + 0.4*math.Sin(float64(x*7+y*13+c*29)/11)
}

// testStore builds a single-pair scenario: reference date 1, target
// date 2. The low-resolution signal changes by a spatially varying
// amount between the dates.
func testStore(w, h, channels int) *multires.Store {
	s := multires.NewStore()
	low1 := genImage(w, h, channels, base)
	high1 := genImage(w, h, channels, func(x, y, c int) float64 {
		return base(x, y, c) + 0.05
	})
	low2 := genImage(w, h, channels, func(x, y, c int) float64 {
		return base(x, y, c) + 0.02*math.Cos(float64(x*3+y*5)/7)
	})
	s.Set("low", 1, low1)
	s.Set("high", 1, high1)
	s.Set("low", 2, low2)
	return s
}

func testOptions(area raster.Rect) fusion.Options {
	return fusion.Options{
		HighTag:             "high",
		LowTag:              "low",
		RefDates:            []int{1},
		PredictArea:         area,
		WinSize:             3,
		NumClasses:          4,
		SpectralUncertainty: 0.1,
		TemporalUncertainty: 0.1,
	}
}

func TestPredictBeforeConfigure(t *testing.T) {
	f := New()
	f.SetSrcImages(testStore(8, 8, 1))
	if err := f.Predict(2, nil); !errors.Is(err, fusion.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestPredictMissingImages(t *testing.T) {
	f := New()
	f.SetSrcImages(multires.NewStore())
	if err := f.Configure(testOptions(raster.Rect{W: 4, H: 4})); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := f.Predict(2, nil); !errors.Is(err, multires.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConfigureRejectsInvalidOptions(t *testing.T) {
	f := New()
	opts := testOptions(raster.Rect{W: 4, H: 4})
	opts.WinSize = 2
	if err := f.Configure(opts); err == nil {
		t.Error("expected configuration error for even window size")
	}
	if f.OutputImage() != nil {
		t.Error("output should be nil before any prediction")
	}
}

func TestZeroDiffShortcutCopiesReference(t *testing.T) {
	w, h := 12, 10
	s := multires.NewStore()
	low := genImage(w, h, 1, base)
	high := genImage(w, h, 1, func(x, y, c int) float64 { return base(x, y, c) + 0.07 })
	s.Set("low", 1, low)
	s.Set("high", 1, high)
	// Target-date low-resolution image identical to the reference.
	s.Set("low", 2, low.Clone())

	opts := testOptions(raster.Rect{W: w, H: h})
	opts.CopyOnZeroDiff = true

	f := New()
	f.SetSrcImages(s)
	if err := f.Configure(opts); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := f.Predict(2, nil); err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	out := f.OutputImage()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if out.At(x, y, 0) != high.At(x, y, 0) {
				t.Fatalf("pixel (%d,%d): shortcut result %v differs from reference %v",
					x, y, out.At(x, y, 0), high.At(x, y, 0))
			}
		}
	}
}

func TestSubRectangleEquivalence(t *testing.T) {
	s := testStore(16, 14, 1)

	full := raster.Rect{X: 1, Y: 1, W: 13, H: 11}
	inner := raster.Rect{X: 4, Y: 3, W: 6, H: 5}

	f := New()
	f.SetSrcImages(s)
	if err := f.Configure(testOptions(full)); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := f.Predict(2, nil); err != nil {
		t.Fatalf("Predict on full rectangle failed: %v", err)
	}
	outFull := f.OutputImage().Clone()

	if err := f.Configure(testOptions(inner)); err != nil {
		t.Fatalf("reconfigure failed: %v", err)
	}
	if err := f.Predict(2, nil); err != nil {
		t.Fatalf("Predict on inner rectangle failed: %v", err)
	}
	outInner := f.OutputImage()

	for y := 0; y < inner.H; y++ {
		for x := 0; x < inner.W; x++ {
			got := outInner.At(x, y, 0)
			want := outFull.At(x+inner.X-full.X, y+inner.Y-full.Y, 0)
			if got != want {
				t.Fatalf("pixel (%d,%d): inner %v != full %v", x, y, got, want)
			}
		}
	}
}

func TestMultiChannelMatchesPerChannelRuns(t *testing.T) {
	w, h, channels := 12, 10, 3
	area := raster.Rect{W: w, H: h}

	multi := New()
	multi.SetSrcImages(testStore(w, h, channels))
	if err := multi.Configure(testOptions(area)); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := multi.Predict(2, nil); err != nil {
		t.Fatalf("multi-channel Predict failed: %v", err)
	}
	out := multi.OutputImage()

	for c := 0; c < channels; c++ {
		c := c
		single := New()
		s := multires.NewStore()
		s.Set("low", 1, genImage(w, h, 1, func(x, y, _ int) float64 { return base(x, y, c) }))
		s.Set("high", 1, genImage(w, h, 1, func(x, y, _ int) float64 { return base(x, y, c) + 0.05 }))
		s.Set("low", 2, genImage(w, h, 1, func(x, y, _ int) float64 {
			return base(x, y, c) + 0.02*math.Cos(float64(x*3+y*5)/7)
		}))
		single.SetSrcImages(s)
		if err := single.Configure(testOptions(area)); err != nil {
			t.Fatalf("Configure failed: %v", err)
		}
		if err := single.Predict(2, nil); err != nil {
			t.Fatalf("single-channel Predict failed: %v", err)
		}
		sout := single.OutputImage()

		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if out.At(x, y, c) != sout.At(x, y, 0) {
					t.Fatalf("channel %d pixel (%d,%d): multi %v != single %v",
						c, x, y, out.At(x, y, c), sout.At(x, y, 0))
				}
			}
		}
	}
}

func TestMaskSkipsPixels(t *testing.T) {
	w, h := 10, 8
	area := raster.Rect{W: w, H: h}
	f := New()
	f.SetSrcImages(testStore(w, h, 1))
	if err := f.Configure(testOptions(area)); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	// First an unmasked run, so masked pixels have a previous value.
	if err := f.Predict(2, nil); err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	before := f.OutputImage().Clone()

	// Predict the reference date itself under a mask covering the left
	// half: right-half pixels must keep their previous values.
	mask := raster.NewMask(w, h, 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w/2; x++ {
			mask.Set(x, y, 0, true)
		}
	}
	if err := f.Predict(1, mask); err != nil {
		t.Fatalf("masked Predict failed: %v", err)
	}
	out := f.OutputImage()

	changed := false
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x >= w/2 {
				if out.At(x, y, 0) != before.At(x, y, 0) {
					t.Fatalf("masked pixel (%d,%d) was overwritten", x, y)
				}
			} else if out.At(x, y, 0) != before.At(x, y, 0) {
				changed = true
			}
		}
	}
	if !changed {
		t.Error("unmasked pixels should have been recomputed for a different date")
	}
}

func TestMaskShapeMismatch(t *testing.T) {
	f := New()
	f.SetSrcImages(testStore(10, 8, 2))
	if err := f.Configure(testOptions(raster.Rect{W: 10, H: 8})); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	wrongSize := raster.NewMask(9, 8, 1)
	if err := f.Predict(2, wrongSize); err == nil {
		t.Error("expected shape mismatch error for wrong-size mask")
	}

	wrongChannels := raster.NewMask(10, 8, 3)
	if err := f.Predict(2, wrongChannels); err == nil {
		t.Error("expected shape mismatch error for wrong channel count")
	}
}

func TestOutputBufferReuse(t *testing.T) {
	f := New()
	f.SetSrcImages(testStore(8, 8, 1))
	if err := f.Configure(testOptions(raster.Rect{W: 8, H: 8})); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := f.Predict(2, nil); err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	first := f.OutputImage()
	if err := f.Predict(2, nil); err != nil {
		t.Fatalf("second Predict failed: %v", err)
	}
	if f.OutputImage() != first {
		t.Error("output buffer should be reused when the shape is unchanged")
	}
}

// TestDoublePairNotWorse sets up a symmetric scenario around the target
// date: the low-resolution change from either reference date is a
// uniform offset, so both single-pair predictions are essentially
// exact. The combined double-pair prediction must not be worse than
// either of them.
func TestDoublePairNotWorse(t *testing.T) {
	w, h := 14, 12
	const d = 0.05
	truth := genImage(w, h, 1, func(x, y, c int) float64 { return base(x, y, c) + 0.1 })

	s := multires.NewStore()
	s.Set("low", 1, genImage(w, h, 1, func(x, y, c int) float64 { return base(x, y, c) - d }))
	s.Set("high", 1, genImage(w, h, 1, func(x, y, c int) float64 { return base(x, y, c) + 0.1 - d }))
	s.Set("low", 3, genImage(w, h, 1, func(x, y, c int) float64 { return base(x, y, c) + d }))
	s.Set("high", 3, genImage(w, h, 1, func(x, y, c int) float64 { return base(x, y, c) + 0.1 + d }))
	s.Set("low", 2, genImage(w, h, 1, base))

	area := raster.Rect{W: w, H: h}
	rmse := func(refDates []int) float64 {
		opts := testOptions(area)
		opts.SpectralUncertainty = 0.2
		opts.TemporalUncertainty = 0.2
		opts.RefDates = refDates
		f := New()
		f.SetSrcImages(s)
		if err := f.Configure(opts); err != nil {
			t.Fatalf("Configure failed: %v", err)
		}
		if err := f.Predict(2, nil); err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		out := f.OutputImage()
		var sum float64
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				diff := out.At(x, y, 0) - truth.At(x, y, 0)
				sum += diff * diff
			}
		}
		return math.Sqrt(sum / float64(w*h))
	}

	err1 := rmse([]int{1})
	err3 := rmse([]int{3})
	err13 := rmse([]int{1, 3})

	const tol = 1e-9
	if err13 > err1+tol {
		t.Errorf("double-pair RMSE %g worse than date-1 RMSE %g", err13, err1)
	}
	if err13 > err3+tol {
		t.Errorf("double-pair RMSE %g worse than date-3 RMSE %g", err13, err3)
	}
	if err1 > 1e-6 || err3 > 1e-6 {
		t.Errorf("single-pair predictions should be near exact in this scenario, got %g and %g", err1, err3)
	}
}

func TestPredictionAreaOutsideSource(t *testing.T) {
	f := New()
	f.SetSrcImages(testStore(8, 8, 1))
	if err := f.Configure(testOptions(raster.Rect{X: 4, Y: 4, W: 8, H: 8})); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := f.Predict(2, nil); err == nil {
		t.Error("expected error for prediction area outside the source image")
	}
}
