package estarfm

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// slopeMax bounds the accepted regression slope; steeper fits are treated
// as unreliable and replaced by the identity slope.
const (
	slopeMax      = 5.0
	confidenceMin = 0.95
	minFitSamples = 3
)

// regressionSlope fits y = a + b·x by least squares and gates the slope on
// plausibility: b is kept only when 0 <= b <= 5 and the Fisher-F test of
// the fit (one numerator, n-2 denominator degrees of freedom) reports at
// least 95% confidence; otherwise the identity slope 1 is used. With
// smooth, the slope is instead blended as b·p + (1-p) by the confidence p.
func regressionSlope(xs, ys []float64, smooth bool) float64 {
	n := len(xs)
	if n < minFitSamples {
		return 1
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 1
	}
	p := fitConfidence(xs, ys)
	if smooth {
		if beta < 0 || beta > slopeMax {
			return 1
		}
		return beta*p + (1 - p)
	}
	if beta < 0 || beta > slopeMax || p < confidenceMin {
		return 1
	}
	return beta
}

// fitConfidence is the CDF of the regression's F statistic under
// F(1, n-2): the probability that the linear relation is not noise.
func fitConfidence(xs, ys []float64) float64 {
	n := len(xs)
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0
	}
	r2 := r * r
	if r2 >= 1 {
		return 1
	}
	f := r2 * float64(n-2) / (1 - r2)
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	dist := distuv.F{D1: 1, D2: float64(n - 2)}
	return dist.CDF(f)
}
