// Package estimator - Parameter Sets
//
// This file names the LWE instances the estimators are usually run on.
//
// # Literature sets
//
// - example_64, example_128: n = 1024, q = 2^47, sparse ternary key of weight 64 or 128
// - example_binary_64: the same lattice with a dense binary key
// - example_ternary: n = 4096, q = 2^200, dense ternary key
// - chhs_19: the n = 8192, q = 2^125 HE set with a weight-64 ternary key
// - ntruprime: n = 761, q = 4591, weight-250 ternary key
// - tfhe: n = 1024, q = 2^32, binary key, α = √(2π)·2^-25
//
// # Binary FHE sets
//
// The STD*_LMKCDEY family mirrors OpenFHE's BINFHE_PARAMSET with the same
// name; PN10QP27 is the ring used by luxfi/fhe. They are modelled with a
// uniform ternary key, m = n samples and σ = 3.19.
//
// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause
package estimator

import (
	"math"
	"slices"
)

// SecurityLevel is the level a parameter set targets, in bits. Post-quantum
// levels carry a leading 1 (1128 is 128-bit post-quantum).
type SecurityLevel int

const (
	SecurityUnspecified SecurityLevel = 0
	// Security128 provides 128-bit classical security
	Security128 SecurityLevel = 128
	// Security128Q provides 128-bit post-quantum security
	Security128Q SecurityLevel = 1128
	Security192  SecurityLevel = 192
	Security192Q SecurityLevel = 1192
	Security256  SecurityLevel = 256
	Security256Q SecurityLevel = 1256
)

// Bits returns the target in bits, 0 when unspecified.
func (s SecurityLevel) Bits() float64 {
	if s > 1000 {
		return float64(s - 1000)
	}
	return float64(s)
}

// Quantum reports whether the level is post-quantum.
func (s SecurityLevel) Quantum() bool { return s > 1000 }

// ParameterSet is a named LWE instance.
type ParameterSet struct {
	Name     string        `json:"name"`
	Security SecurityLevel `json:"security,omitempty"`
	// Source is a short citation or origin.
	Source string        `json:"source,omitempty"`
	Params LWEParameters `json:"params"`
}

// StandardSigma is the error width of most HE parameter sets.
const StandardSigma = 3.19

func lwe(n int, logQ float64, m int, sigma float64, secret SecretDistribution) LWEParameters {
	return LWEParameters{N: n, Q: math.Exp2(logQ), M: m, Secret: secret, Error: DiscreteGaussian(sigma)}
}

// binFHE models an OpenFHE binary-FHE LWE set.
func binFHE(name string, level SecurityLevel, n, logQ int) ParameterSet {
	return ParameterSet{
		Name:     name,
		Security: level,
		Source:   "OpenFHE BINFHE_PARAMSET::" + name,
		Params:   lwe(n, float64(logQ), n, StandardSigma, UniformTernary),
	}
}

var (
	Example64 = ParameterSet{
		Name:   "example_64",
		Source: "sparse ternary HE example",
		Params: lwe(1024, 47, 1024, StandardSigma, SparseSecret(-1, 1, 64)),
	}
	ExampleBinary64 = ParameterSet{
		Name:   "example_binary_64",
		Source: "dense binary variant of example_64",
		Params: lwe(1024, 47, 1024, StandardSigma, UniformBinary),
	}
	Example128 = ParameterSet{
		Name:   "example_128",
		Source: "sparse ternary HE example",
		Params: lwe(1024, 47, 1024, StandardSigma, SparseSecret(-1, 1, 128)),
	}
	ExampleTernary = ParameterSet{
		Name:   "example_ternary",
		Source: "dense ternary HE example",
		Params: lwe(4096, 200, 1024, StandardSigma, UniformTernary),
	}
	// CHHS19 is the example of Cheon, Hhan, Hong and Son (2019).
	CHHS19 = ParameterSet{
		Name:   "chhs_19",
		Source: "Cheon-Hhan-Hong-Son 2019",
		Params: lwe(8192, 125, 8192, StandardSigma, SparseSecret(-1, 1, 64)),
	}
	NTRUPrime = ParameterSet{
		Name:   "ntruprime",
		Source: "NTRU Prime sntrup761",
		Params: LWEParameters{
			N:      761,
			Q:      4591,
			M:      761,
			Secret: SparseSecret(-1, 1, 250),
			Error:  DiscreteGaussian(math.Sqrt(2.0 / 3)),
		},
	}
	// TFHE uses α = √(2π)·2^-25, that is σ = 2^-25·q.
	TFHE = ParameterSet{
		Name:     "tfhe",
		Security: Security128,
		Source:   "TFHE gate bootstrapping LWE",
		Params:   lwe(1024, 32, 1024, math.Exp2(-25+32), UniformBinary),
	}
	// PN10QP27 is the N = 1024, Q = 0x7fff801 ring of luxfi/fhe.
	PN10QP27 = ParameterSet{
		Name:     "PN10QP27",
		Security: Security128,
		Source:   "luxfi/fhe PN10QP27",
		Params: LWEParameters{
			N:      1024,
			Q:      0x7fff801,
			M:      1024,
			Secret: UniformTernary,
			Error:  DiscreteGaussian(StandardSigma),
		},
	}

	STD128_LMKCDEY  = binFHE("STD128_LMKCDEY", Security128, 447, 28)
	STD128Q_LMKCDEY = binFHE("STD128Q_LMKCDEY", Security128Q, 483, 27)
	STD192_LMKCDEY  = binFHE("STD192_LMKCDEY", Security192, 716, 39)
	STD192Q_LMKCDEY = binFHE("STD192Q_LMKCDEY", Security192Q, 776, 36)
	STD256_LMKCDEY  = binFHE("STD256_LMKCDEY", Security256, 939, 30)
	STD256Q_LMKCDEY = binFHE("STD256Q_LMKCDEY", Security256Q, 1019, 28)
)

// AllParameterSets returns every named set, literature sets first.
func AllParameterSets() []ParameterSet {
	return []ParameterSet{
		Example64,
		ExampleBinary64,
		Example128,
		ExampleTernary,
		CHHS19,
		NTRUPrime,
		TFHE,
		PN10QP27,
		STD128_LMKCDEY,
		STD128Q_LMKCDEY,
		STD192_LMKCDEY,
		STD192Q_LMKCDEY,
		STD256_LMKCDEY,
		STD256Q_LMKCDEY,
	}
}

// GetParameterSet returns the set with the given name.
func GetParameterSet(name string) (ParameterSet, bool) {
	sets := AllParameterSets()
	i := slices.IndexFunc(sets, func(s ParameterSet) bool { return s.Name == name })
	if i < 0 {
		return ParameterSet{}, false
	}
	return sets[i], true
}

// ParameterSetNames lists the catalog in order.
func ParameterSetNames() []string {
	sets := AllParameterSets()
	names := make([]string, len(sets))
	for i, s := range sets {
		names[i] = s.Name
	}
	return names
}
