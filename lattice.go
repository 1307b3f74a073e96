// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package estimator

import (
	"fmt"

	"github.com/luxfi/lattice/v7/core/rlwe"
)

// RingParameters is the part of an RLWE parameter set the estimators need.
// rlwe.Parameters implements it.
type RingParameters interface {
	N() int
	Q() []uint64
}

// FromRLWE returns the LWE instance underlying a ring: n is the ring degree,
// q the product of the moduli and m = n, one ring sample.
func FromRLWE(ring RingParameters, secret SecretDistribution, sigma float64) (LWEParameters, error) {
	moduli := ring.Q()
	if len(moduli) == 0 {
		return LWEParameters{}, domainErrorf("rlwe", "q", "no moduli")
	}
	q := 1.0
	for _, qi := range moduli {
		q *= float64(qi)
	}
	p := LWEParameters{
		N:      ring.N(),
		Q:      q,
		M:      ring.N(),
		Secret: secret,
		Error:  DiscreteGaussian(sigma),
	}
	if err := p.Validate(); err != nil {
		return LWEParameters{}, err
	}
	return p, nil
}

// RLWEParameters builds a single-modulus NTT-friendly ring the way luxfi/fhe
// instantiates its LWE and blind-rotation rings.
func RLWEParameters(logN int, q uint64) (rlwe.Parameters, error) {
	params, err := rlwe.NewParametersFromLiteral(rlwe.ParametersLiteral{
		LogN:    logN,
		Q:       []uint64{q},
		NTTFlag: true,
	})
	if err != nil {
		return rlwe.Parameters{}, fmt.Errorf("rlwe parameters (logN=%d, q=%d): %w", logN, q, err)
	}
	return params, nil
}
