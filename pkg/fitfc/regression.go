package fitfc

import "gonum.org/v1/gonum/stat"

const (
	// maxSlope is the upper plausibility bound on the fitted slope; a
	// steeper relationship between low- and high-resolution values is
	// treated as unreliable.
	maxSlope = 5

	// minRSquared is the minimum share of variance the fit must
	// explain. Below it the linear relationship is considered noise
	// and the slope falls back to 1.
	minRSquared = 0.1
)

// Fit is a quality-gated linear relationship high ~ Intercept +
// Slope*low over a sample of co-located pixel pairs.
type Fit struct {
	// Slope is the effective slope after gating or smoothing.
	Slope float64

	// Intercept is chosen so the fitted line passes through the sample
	// mean with the effective slope.
	Intercept float64

	// R is the Pearson correlation of the sample, 0 for degenerate
	// input.
	R float64
}

// FitSlope fits high ~ a + b*low by ordinary least squares and applies
// the quality gates:
//
//   - zero variance in low: the slope is undefined, fall back to 1
//     (pure additive offset);
//   - zero variance in high: the fit b = 0 is exact and kept;
//   - b < 0 (inverted relationship) or b > 5 (implausibly steep):
//     fall back to 1;
//   - a fit explaining less than minRSquared of the variance: fall
//     back to 1.
//
// With smooth enabled, the hard gates on b are replaced by the
// correlation-weighted blend 1 + r^2*(b-1), which moves the slope
// toward 1 but never away from it.
func FitSlope(xs, ys []float64, smooth bool) Fit {
	n := len(xs)
	if n == 0 {
		return Fit{Slope: 1}
	}
	mx := stat.Mean(xs, nil)
	my := stat.Mean(ys, nil)
	if n < 2 || stat.Variance(xs, nil) == 0 {
		return Fit{Slope: 1, Intercept: my - mx}
	}
	if stat.Variance(ys, nil) == 0 {
		return Fit{Slope: 0, Intercept: my}
	}

	_, b := stat.LinearRegression(xs, ys, nil, false)
	r := stat.Correlation(xs, ys, nil)

	slope := b
	if smooth {
		slope = 1 + r*r*(b-1)
	} else if b < 0 || b > maxSlope || r*r < minRSquared {
		slope = 1
	}
	return Fit{Slope: slope, Intercept: my - slope*mx, R: r}
}

// Correlation is the Pearson correlation coefficient of the two series.
// If either series has zero variance the correlation is defined as 0.
func Correlation(xs, ys []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	if stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
		return 0
	}
	return stat.Correlation(xs, ys, nil)
}
