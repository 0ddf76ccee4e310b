package core

import (
	"math"

	"github.com/xgirouxb/open-ice/internal/raster"
)

// The logistic fit flags pixels that are outliers during non-transition
// periods of ice phenology: water classified in winter or ice in summer.
// The residual cutoff is high so possible misclassifications during the
// breakup period itself are kept, in case they represent a true succession
// of state changes (ice breaks, then wind shifts ice back over the pixel).
const residualCutoff = 0.85

// A pixel needs at least this many observations before a fit is attempted;
// below it the observations pass through unfiltered and R2 stays masked.
const minObsForFit = 3

// ApplyLogisticFilter fits, per pixel, a linearized logistic regression of
// ice presence against time,
//
//	ln(y/(1-y)) = b0 + b1*x
//
// with y remapped to {0.001, 0.999}, masks observations whose residual
// against the fitted curve exceeds the cutoff, and returns the fit's
// R-squared as a [0,1] image. Observation masks are updated in place.
func ApplyLogisticFilter(obs []*Observation) *raster.Image {
	if len(obs) == 0 {
		return raster.New(0, 0)
	}
	w, h := obs[0].Ice.W, obs[0].Ice.H
	r2 := raster.New(w, h)

	ys := make([]float64, 0, len(obs))
	xs := make([]float64, 0, len(obs))
	idx := make([]int, 0, len(obs))

	for i := 0; i < w*h; i++ {
		ys, xs, idx = ys[:0], xs[:0], idx[:0]
		for j, o := range obs {
			if o.Ice.Valid[i] {
				ys = append(ys, o.Ice.Pix[i])
				xs = append(xs, o.FracYear)
				idx = append(idx, j)
			}
		}
		if len(ys) < minObsForFit {
			continue
		}

		b0, b1, ok := fitLogit(xs, ys)
		if !ok {
			continue
		}

		// Residuals against the fitted curve; mask the outliers.
		var meanY float64
		for _, y := range ys {
			meanY += y
		}
		meanY /= float64(len(ys))

		var ssr, ssto float64
		anySurvive := false
		for k, x := range xs {
			fitted := logistic(b0 + b1*x)
			ssr += (fitted - meanY) * (fitted - meanY)
			ssto += (ys[k] - meanY) * (ys[k] - meanY)
			if math.Abs(fitted-ys[k]) > residualCutoff {
				obs[idx[k]].Ice.Valid[i] = false
			} else {
				anySurvive = true
			}
		}

		if anySurvive {
			if ssto > 0 {
				r2.Pix[i] = ssr / ssto
			}
			r2.Valid[i] = true
		}
	}
	return r2
}

// fitLogit solves the linearized regression by ordinary least squares on the
// logit of y. Returns ok=false when the time axis has no spread.
func fitLogit(xs, ys []float64) (b0, b1 float64, ok bool) {
	n := float64(len(xs))
	var sumX, sumL float64
	for k, x := range xs {
		sumX += x
		sumL += logit(ys[k])
	}
	meanX, meanL := sumX/n, sumL/n

	var sxx, sxl float64
	for k, x := range xs {
		dx := x - meanX
		sxx += dx * dx
		sxl += dx * (logit(ys[k]) - meanL)
	}
	if sxx == 0 {
		return 0, 0, false
	}
	b1 = sxl / sxx
	b0 = meanL - b1*meanX
	return b0, b1, true
}

// logit of the response after remapping {0,1} to {0.001, 0.999} to keep it
// finite.
func logit(y float64) float64 {
	yt := 0.001
	if y == 1 {
		yt = 0.999
	}
	return math.Log(yt / (1 - yt))
}

// logistic is the inverse transform exp(v)/(1+exp(v)), stable for large v.
func logistic(v float64) float64 {
	if v > 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

// CountObservations returns, per pixel, the number of valid ice/water
// observations in the stack.
func CountObservations(obs []*Observation, w, h int) *raster.Image {
	counts := raster.NewConst(w, h, 0)
	for _, o := range obs {
		for i := range o.Ice.Valid {
			if o.Ice.Valid[i] {
				counts.Pix[i]++
			}
		}
	}
	return counts
}
