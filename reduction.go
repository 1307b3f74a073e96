// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package estimator

import (
	"math"
	"sort"
)

// ReductionCostModel maps a BKZ blocksize β on a d-dimensional lattice whose
// entries are bounded by 2^logB to log2 of the number of operations. Costs
// must be non-decreasing in β for fixed d.
type ReductionCostModel interface {
	Name() string
	Estimate(beta, d int, logB float64) float64
}

// ReductionCostFunc adapts a plain function to ReductionCostModel.
type ReductionCostFunc func(beta, d int, logB float64) float64

func (f ReductionCostFunc) Name() string { return "custom" }

func (f ReductionCostFunc) Estimate(beta, d int, logB float64) float64 { return f(beta, d, logB) }

// svpCalls is the log2 number of SVP oracle calls of one BKZ tour: 8d when
// the blocksize is smaller than the lattice, one call otherwise.
func svpCalls(beta, d int) float64 {
	if beta < d {
		return math.Log2(8 * float64(d))
	}
	return 0
}

// Sieve is the classical sieving model 2^(0.292β + 16.4) per SVP call.
type Sieve struct{}

func (Sieve) Name() string { return "sieve" }

func (Sieve) Estimate(beta, d int, _ float64) float64 {
	return svpCalls(beta, d) + 0.292*float64(beta) + 16.4
}

// QuantumSieve is the Grover-accelerated sieving model 2^(0.265β + 16.4).
type QuantumSieve struct{}

func (QuantumSieve) Name() string { return "qsieve" }

func (QuantumSieve) Estimate(beta, d int, _ float64) float64 {
	return svpCalls(beta, d) + 0.265*float64(beta) + 16.4
}

// Enumeration is the extreme-pruning enumeration fit.
type Enumeration struct{}

func (Enumeration) Name() string { return "enum" }

func (Enumeration) Estimate(beta, d int, _ float64) float64 {
	b := float64(beta)
	return svpCalls(beta, d) + 0.270188776350190*b*math.Log(b) - 1.0192050451318417*b + 16.10253135200765 + math.Log2(100)
}

// CoreSieve charges a single SVP call in dimension β.
type CoreSieve struct{}

func (CoreSieve) Name() string { return "core-sieve" }

func (CoreSieve) Estimate(beta, _ int, _ float64) float64 { return 0.292*float64(beta) + 16.4 }

// CoreQuantumSieve is the core variant of QuantumSieve.
type CoreQuantumSieve struct{}

func (CoreQuantumSieve) Name() string { return "core-qsieve" }

func (CoreQuantumSieve) Estimate(beta, _ int, _ float64) float64 { return 0.265*float64(beta) + 16.4 }

var models = map[string]ReductionCostModel{
	"sieve":       Sieve{},
	"qsieve":      QuantumSieve{},
	"enum":        Enumeration{},
	"core-sieve":  CoreSieve{},
	"core-qsieve": CoreQuantumSieve{},
}

// ModelByName resolves one of the named reduction cost models.
func ModelByName(name string) (ReductionCostModel, error) {
	if name == "" {
		return Sieve{}, nil
	}
	m, ok := models[name]
	if !ok {
		return nil, domainErrorf("model", "name", "unknown reduction cost model %q", name)
	}
	return m, nil
}

// ModelNames lists the registered model names in sorted order.
func ModelNames() []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LLLCost is log2(d³·B²) for LLL on a d-dimensional basis with B-bit entries.
func LLLCost(d int, logB float64) float64 {
	c := 3 * math.Log2(float64(d))
	if logB > 0 {
		c += 2 * math.Log2(logB)
	}
	return c
}

// Experimental root Hermite factors for small blocksizes.
var smallDelta = []struct {
	beta  int
	delta float64
}{
	{2, 1.02190},
	{5, 1.01862},
	{10, 1.01616},
	{15, 1.01485},
	{20, 1.01420},
	{25, 1.01342},
	{28, 1.01331},
	{40, 1.01295},
}

// DeltaFromBeta returns the root Hermite factor δ_0 reached by BKZ-β.
func DeltaFromBeta(beta int) float64 {
	if beta >= 40 {
		k := float64(beta)
		return math.Pow(k/(2*math.Pi*math.E)*math.Pow(math.Pi*k, 1/k), 1/(2*(k-1)))
	}
	if beta <= 2 {
		return smallDelta[0].delta
	}
	for i := 1; i < len(smallDelta); i++ {
		if smallDelta[i].beta > beta {
			return smallDelta[i-1].delta
		}
	}
	return smallDelta[len(smallDelta)-1].delta
}

// BetaFromDelta returns the smallest blocksize reaching root Hermite factor delta.
func BetaFromDelta(delta float64) int {
	beta := 40
	for DeltaFromBeta(2*beta) > delta {
		beta *= 2
	}
	for DeltaFromBeta(beta+10) > delta {
		beta += 10
	}
	for DeltaFromBeta(beta) > delta {
		beta++
	}
	return beta
}

// MaxBlocksize bounds the blocksize of a search targeting secbits of
// security: the first β (from 45, in steps of 5) whose single-call cost on a
// dimension-one lattice exceeds secbits.
func MaxBlocksize(secbits float64, model ReductionCostModel) int {
	beta := 40
	for cost := 0.0; cost <= secbits && beta < 1<<16; {
		beta += 5
		cost = model.Estimate(beta, 1, 0)
	}
	return beta
}
