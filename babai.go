// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package estimator

import (
	"math"

	"gonum.org/v1/gonum/mathext"
)

// BabaiCost is log2 of the cost of one nearest-plane call on a
// d-dimensional basis, d²/2^1.06.
func BabaiCost(d int) float64 {
	return 2*math.Log2(float64(d)) - 1.06
}

// BabaiLogProbability returns the natural log of the probability that
// nearest-plane decoding on shape recovers an error of expected norm
// targetNorm. Each Gram-Schmidt vector with r_i < 2·targetNorm contributes
// the regularized incomplete Beta factor I_{s²}(1/2, (d-1)/2) with
// s = r_i/(2·targetNorm); longer vectors always round correctly.
func BabaiLogProbability(shape *BasisShape, targetNorm float64) (float64, error) {
	if shape == nil || shape.Dim < 2 {
		return 0, domainErrorf("babai", "d", "need a basis of dimension at least 2")
	}
	if !(targetNorm > 0) || math.IsInf(targetNorm, 0) {
		return 0, domainErrorf("babai", "norm", "target norm must be positive and finite, got %g", targetNorm)
	}

	b := float64(shape.Dim-1) / 2
	logNorm := math.Log2(targetNorm)
	var total float64
	for _, r := range shape.LogNorms {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return 0, domainErrorf("babai", "r", "non-finite Gram-Schmidt norm")
		}
		logX := 2 * (r - 1 - logNorm) // log2 s²
		if logX >= 0 {
			continue
		}
		total += logRegIncBetaHalf(b, logX)
		if math.IsInf(total, -1) {
			return total, nil
		}
	}
	return total, nil
}

// logRegIncBetaHalf returns ln I_x(1/2, b) for x = 2^logX.
func logRegIncBetaHalf(b, logX float64) float64 {
	if logX < -600 {
		// I_x(a, b) ≈ x^a/(a·B(a, b)) as x → 0
		return 0.5*logX*math.Ln2 - math.Log(0.5) - mathext.Lbeta(0.5, b)
	}
	p := mathext.RegIncBeta(0.5, b, math.Exp2(logX))
	if p <= 0 {
		return math.Inf(-1)
	}
	return math.Log(p)
}
