// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package estimator

import "math"

// DefaultSuccessProbability is the overall success probability the
// repetition counts are chosen for.
const DefaultSuccessProbability = 0.99

// HybridDecoding estimates the hybrid decoding attack for one choice of
// (τ, β): BKZ-β reduces the (m + n - τ)-dimensional scaled primal lattice,
// then Babai's nearest plane is run once per guess of the τ dropped secret
// coordinates. The whole experiment is repeated until it succeeds with
// probability DefaultSuccessProbability.
//
// A parameter choice that can never succeed yields a report with
// Infeasible set and an infinite rop, not an error.
func HybridDecoding(params LWEParameters, attack AttackParameters) (CostReport, error) {
	if err := params.Validate(); err != nil {
		return CostReport{}, err
	}
	model := attack.Model
	if model == nil {
		model = Sieve{}
	}
	n, m, tau, beta := params.N, params.M, attack.Tau, attack.Beta
	if tau < 0 || tau > n {
		return CostReport{}, domainErrorf("hybrid decoding", "tau", "must lie in [0, %d], got %d", n, tau)
	}
	d := m + n - tau
	if beta < 2 || beta > d {
		return CostReport{}, domainErrorf("hybrid decoding", "beta", "must lie in [2, %d], got %d", d, beta)
	}

	h := params.Secret.Nonzero(n)
	sigma := params.Error.Sigma
	scale := scaleFactor(sigma, params.Secret.Variance(n))
	logDet := float64(m)*params.LogQ() + float64(n-tau)*math.Log2(scale)

	shape, err := GSA(d, beta, logDet)
	if err != nil {
		return CostReport{}, err
	}
	bkz := model.Estimate(beta, d, params.LogQ())

	guess, err := Guessing(n, h, tau, params.Secret, BabaiCost(d), bkz, attack.MITM)
	if err != nil {
		return CostReport{}, err
	}

	target := math.Sqrt(float64(m)*sigma*sigma + float64(h)*float64(n-tau)/float64(n)*scale*scale)
	logProb, err := BabaiLogProbability(shape, target)
	if err != nil {
		return CostReport{}, err
	}

	r := CostReport{
		Attack:         AttackHybridDecoding,
		Model:          model.Name(),
		Beta:           beta,
		D:              d,
		Tau:            tau,
		LogSearchSpace: Log2(guess.LogSize),
		Probability:    guess.Probability * math.Exp(logProb),
		Scale:          scale,
		PP:             guess.Weight,
		MITM:           attack.MITM,
	}

	repeat := Amplify(DefaultSuccessProbability, r.Probability)
	if math.IsInf(repeat, 1) {
		return infeasible(r), nil
	}
	logRepeat := math.Log2(repeat)
	r.Repeat = Count(repeat)
	r.Pre = Log2(bkz + logRepeat)
	r.Enum = Log2(guess.LogCost + logRepeat)
	r.Rop = Log2(logAdd(bkz, guess.LogCost) + logRepeat)
	return r, nil
}
