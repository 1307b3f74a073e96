// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package estimator

import (
	"fmt"
	"math"
)

// SecretDistribution describes the LWE secret. With HammingWeight zero the
// coefficients are uniform on [Lo, Hi]; otherwise exactly HammingWeight
// coefficients are non-zero and drawn from [Lo, Hi] \ {0}.
type SecretDistribution struct {
	Lo            int `json:"lo"`
	Hi            int `json:"hi"`
	HammingWeight int `json:"h,omitempty"`
}

var (
	// UniformTernary draws every coefficient from {-1, 0, 1}.
	UniformTernary = UniformSecret(-1, 1)
	// UniformBinary draws every coefficient from {0, 1}.
	UniformBinary = UniformSecret(0, 1)
)

// UniformSecret returns a dense secret uniform on [lo, hi].
func UniformSecret(lo, hi int) SecretDistribution {
	return SecretDistribution{Lo: lo, Hi: hi}
}

// SparseSecret returns a secret with exactly h non-zero coefficients in [lo, hi].
func SparseSecret(lo, hi, h int) SecretDistribution {
	return SecretDistribution{Lo: lo, Hi: hi, HammingWeight: h}
}

// Bounds returns the coefficient range.
func (s SecretDistribution) Bounds() (lo, hi int) { return s.Lo, s.Hi }

// IsSparse reports whether the Hamming weight is fixed.
func (s SecretDistribution) IsSparse() bool { return s.HammingWeight > 0 }

// IsTernary reports whether the coefficients live in {-1, 0, 1}, sparse or not.
func (s SecretDistribution) IsTernary() bool { return s.Lo == -1 && s.Hi == 1 }

// Nonzero returns the (expected) number of non-zero coefficients of an
// n-dimensional secret.
func (s SecretDistribution) Nonzero(n int) int {
	if s.IsSparse() {
		return s.HammingWeight
	}
	width := float64(s.Hi - s.Lo + 1)
	return int(math.Round(float64(n) * (1 - 1/width)))
}

// Variance returns the per-coefficient variance of an n-dimensional secret.
func (s SecretDistribution) Variance(n int) float64 {
	if s.IsSparse() {
		lo, hi := float64(s.Lo), float64(s.Hi)
		return float64(s.HammingWeight) / float64(n) * (lo*lo + hi*hi) / 2
	}
	width := float64(s.Hi - s.Lo + 1)
	return (width*width - 1) / 12
}

// Validate checks that lo ≤ 0 ≤ hi, lo < hi and the weight is non-negative.
func (s SecretDistribution) Validate() error {
	if s.Lo > 0 || s.Hi < 0 || s.Lo >= s.Hi {
		return domainErrorf("secret", "bounds", "need lo ≤ 0 ≤ hi and lo < hi, got (%d, %d)", s.Lo, s.Hi)
	}
	if s.HammingWeight < 0 {
		return domainErrorf("secret", "h", "negative Hamming weight %d", s.HammingWeight)
	}
	return nil
}

func (s SecretDistribution) String() string {
	if s.IsSparse() {
		return fmt.Sprintf("((%d, %d), %d)", s.Lo, s.Hi, s.HammingWeight)
	}
	return fmt.Sprintf("(%d, %d)", s.Lo, s.Hi)
}

// ErrorDistribution is a discrete Gaussian with standard deviation Sigma.
type ErrorDistribution struct {
	Sigma float64 `json:"sigma"`
}

// DiscreteGaussian returns an error distribution with standard deviation sigma.
func DiscreteGaussian(sigma float64) ErrorDistribution {
	return ErrorDistribution{Sigma: sigma}
}

// GaussianFromAlpha converts a noise rate α to a distribution with
// σ = αq/√(2π).
func GaussianFromAlpha(alpha, q float64) ErrorDistribution {
	return ErrorDistribution{Sigma: alpha * q / math.Sqrt(2*math.Pi)}
}

// Alpha returns the noise rate √(2π)σ/q.
func (e ErrorDistribution) Alpha(q float64) float64 {
	return math.Sqrt(2*math.Pi) * e.Sigma / q
}

// LWEParameters is one LWE instance. It is a value and never mutated by the
// estimators.
type LWEParameters struct {
	N      int                `json:"n"`
	Q      float64            `json:"q"`
	M      int                `json:"m"`
	Secret SecretDistribution `json:"secret"`
	Error  ErrorDistribution  `json:"error"`
}

// LogQ returns log2 q.
func (p LWEParameters) LogQ() float64 { return math.Log2(p.Q) }

// WithSamples returns a copy of p with m samples.
func (p LWEParameters) WithSamples(m int) LWEParameters {
	p.M = m
	return p
}

// Validate checks the ranges every estimator relies on.
func (p LWEParameters) Validate() error {
	switch {
	case p.N <= 0:
		return domainErrorf("lwe", "n", "must be positive, got %d", p.N)
	case !(p.Q > 1) || math.IsInf(p.Q, 0):
		return domainErrorf("lwe", "q", "must be a finite value > 1, got %g", p.Q)
	case p.M <= 0:
		return domainErrorf("lwe", "m", "must be positive, got %d", p.M)
	case !(p.Error.Sigma > 0):
		return domainErrorf("lwe", "sigma", "must be positive, got %g", p.Error.Sigma)
	}
	if err := p.Secret.Validate(); err != nil {
		return err
	}
	if h := p.Secret.Nonzero(p.N); h > p.N {
		return domainErrorf("lwe", "h", "Hamming weight %d exceeds n = %d", h, p.N)
	}
	return nil
}

func (p LWEParameters) String() string {
	return fmt.Sprintf("n=%d, log2(q)=%.1f, m=%d, σ=%.3f, secret=%s",
		p.N, p.LogQ(), p.M, p.Error.Sigma, p.Secret)
}

// AttackParameters are the attack-internal knobs of one hybrid decoding
// evaluation.
type AttackParameters struct {
	Tau   int
	Beta  int
	MITM  bool
	Model ReductionCostModel
}

// scaleFactor is the Bai-Galbraith rescaling applied to the secret part of
// the embedding when the error is wider than the secret.
func scaleFactor(sigma, varS float64) float64 {
	if sigma*sigma > varS {
		return sigma / math.Sqrt(varS)
	}
	return 1
}
