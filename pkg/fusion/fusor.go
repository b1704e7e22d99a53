package fusion

import (
	"imagefusion/pkg/multires"
	"imagefusion/pkg/raster"
)

// DataFusor is implemented by every fusion algorithm. An instance is
// bound to a source store, configured with Options and then asked to
// predict the high-resolution image at a target date. Instances are
// not safe for concurrent Predict calls; run one instance per
// goroutine.
type DataFusor interface {
	// SetSrcImages binds the store the algorithm reads reference and
	// target images from. The store is shared, not owned: it may be
	// mutated between Predict calls and each Predict re-reads it.
	SetSrcImages(s *multires.Store)

	// Configure validates opts and stores a private copy. Calling it
	// again replaces the previous configuration.
	Configure(opts Options) error

	// Predict computes the high-resolution image at the given date,
	// confined to the configured prediction area. A non-nil mask must
	// be valid for the prediction area; pixels where it is false keep
	// their previous output value.
	Predict(date int, mask *raster.Mask) error

	// OutputImage returns the result of the most recent successful
	// Predict, or nil before the first one. The buffer is owned by the
	// fusor and reused across runs of identical shape.
	OutputImage() *raster.Image

	// Options returns a copy of the currently configured options.
	Options() Options
}
