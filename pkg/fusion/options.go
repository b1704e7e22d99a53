// Package fusion defines the contract shared by the spatiotemporal
// fusion algorithms: the validated Options they are configured with,
// the DataFusor interface they implement, and the window and
// brightness-class helpers both algorithms search candidate pixels
// with.
package fusion

import (
	"errors"
	"fmt"

	"imagefusion/pkg/raster"
)

// ErrNotConfigured is returned by Predict when Configure has not been
// called successfully on the instance.
var ErrNotConfigured = errors.New("fusion: fusor is not configured")

// Options holds the parameters of a prediction run. An algorithm takes
// a private copy at Configure time, so the options in effect never
// change during Predict.
type Options struct {
	// HighTag and LowTag identify the high- and low-resolution entries
	// in the source store.
	HighTag string
	LowTag  string

	// RefDates holds one reference date (single-pair mode) or two
	// (double-pair mode). A reference date must have both a high- and
	// a low-resolution image in the store.
	RefDates []int

	// PredictArea is the output rectangle, in pixel coordinates of the
	// target resolution.
	PredictArea raster.Rect

	// WinSize is the half-size of the square search window around each
	// target pixel. It must be odd and at least 1; the full window
	// spans 2*WinSize+1 pixels.
	WinSize int

	// NumClasses is the number of brightness classes candidate pixels
	// are bucketed into.
	NumClasses int

	// SpectralUncertainty and TemporalUncertainty are the thresholds
	// above which a candidate's spectral or temporal difference
	// disqualifies it.
	SpectralUncertainty float64
	TemporalUncertainty float64

	// CopyOnZeroDiff enables the exact-match fast path: pixels whose
	// low-resolution value is identical at the reference and target
	// dates are copied verbatim from the reference high-resolution
	// image.
	CopyOnZeroDiff bool

	// SmoothSlope switches the regression-enhanced algorithm from a
	// hard slope gate to the correlation-weighted blend toward 1. The
	// similarity-weighted algorithm ignores it.
	SmoothSlope bool
}

// Copy returns a deep copy of the options. The RefDates slice is
// duplicated so the copy cannot be mutated through the original.
func (o Options) Copy() Options {
	c := o
	c.RefDates = append([]int(nil), o.RefDates...)
	return c
}

// DoublePair reports whether two reference dates are configured.
func (o Options) DoublePair() bool {
	return len(o.RefDates) == 2
}

// Validate checks the options for structural errors. It does not touch
// the store; missing images surface later, from Predict.
func (o Options) Validate() error {
	if o.HighTag == "" {
		return errors.New("fusion: high resolution tag is empty")
	}
	if o.LowTag == "" {
		return errors.New("fusion: low resolution tag is empty")
	}
	if o.HighTag == o.LowTag {
		return fmt.Errorf("fusion: high and low resolution tags are both %q", o.HighTag)
	}
	switch len(o.RefDates) {
	case 1:
	case 2:
		if o.RefDates[0] == o.RefDates[1] {
			return fmt.Errorf("fusion: duplicate reference date %d", o.RefDates[0])
		}
	default:
		return fmt.Errorf("fusion: need one or two reference dates, got %d", len(o.RefDates))
	}
	if o.WinSize < 1 || o.WinSize%2 == 0 {
		return fmt.Errorf("fusion: window size %d must be odd and at least 1", o.WinSize)
	}
	if o.NumClasses < 1 {
		return fmt.Errorf("fusion: number of classes %d must be at least 1", o.NumClasses)
	}
	if o.SpectralUncertainty <= 0 {
		return fmt.Errorf("fusion: spectral uncertainty %g must be positive", o.SpectralUncertainty)
	}
	if o.TemporalUncertainty <= 0 {
		return fmt.Errorf("fusion: temporal uncertainty %g must be positive", o.TemporalUncertainty)
	}
	if o.PredictArea.Empty() || !o.PredictArea.Valid() {
		return fmt.Errorf("fusion: invalid prediction area %v", o.PredictArea)
	}
	return nil
}
