// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package estimator

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// BasisShape is the Gram-Schmidt profile of a BKZ-β reduced basis predicted
// by the Geometric Series Assumption. LogNorms holds log2 ‖b*_i‖ and is
// non-increasing.
type BasisShape struct {
	Dim      int
	Beta     int
	Delta    float64
	LogNorms []float64
}

// GSA predicts the Gram-Schmidt norms of a d-dimensional lattice of volume
// 2^logDet after BKZ-β. The norms decay geometrically with ratio δ_0(β)^(-2d/(d-1))
// and their product is the volume.
func GSA(d, beta int, logDet float64) (*BasisShape, error) {
	if d <= 0 {
		return nil, domainErrorf("gsa", "d", "lattice dimension must be positive, got %d", d)
	}
	if beta < 2 {
		return nil, domainErrorf("gsa", "beta", "blocksize must be at least 2, got %d", beta)
	}
	delta := DeltaFromBeta(beta)
	shape := &BasisShape{
		Dim:      d,
		Beta:     beta,
		Delta:    delta,
		LogNorms: make([]float64, d),
	}
	if d == 1 {
		shape.LogNorms[0] = logDet
		return shape, nil
	}

	logDelta := math.Log2(delta)
	vol := logDet / float64(d)
	df := float64(d)
	for i := range shape.LogNorms {
		shape.LogNorms[i] = (-2*df*float64(i)/(df-1)+df)*logDelta + vol
	}
	return shape, nil
}

// LogVolume returns the sum of the log norms, i.e. log2 of the lattice volume.
func (b *BasisShape) LogVolume() float64 {
	return floats.Sum(b.LogNorms)
}
