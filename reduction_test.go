// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package estimator

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReductionModels(t *testing.T) {
	t.Run("SieveCountsTourCalls", func(t *testing.T) {
		// 8·1798 SVP calls of cost 2^(0.292·100 + 16.4)
		require.InDelta(t, 59.412, Sieve{}.Estimate(100, 1798, 47), 1e-3)
		// a single call once β reaches d
		require.InDelta(t, 45.6, Sieve{}.Estimate(100, 100, 47), 1e-9)
	})

	t.Run("Monotone", func(t *testing.T) {
		for _, name := range ModelNames() {
			m, err := ModelByName(name)
			require.NoError(t, err)
			prev := math.Inf(-1)
			for beta := 40; beta < 1000; beta += 7 {
				c := m.Estimate(beta, 2048, 47)
				if c < prev {
					t.Fatalf("%s: cost decreased at β=%d: %.3f < %.3f", name, beta, c, prev)
				}
				prev = c
			}
		}
	})

	t.Run("QuantumBelowClassical", func(t *testing.T) {
		for _, beta := range []int{60, 200, 500} {
			if (QuantumSieve{}).Estimate(beta, 1000, 30) >= (Sieve{}).Estimate(beta, 1000, 30) {
				t.Errorf("β=%d: quantum sieve not cheaper", beta)
			}
		}
	})

	t.Run("ByName", func(t *testing.T) {
		m, err := ModelByName("")
		require.NoError(t, err)
		require.Equal(t, "sieve", m.Name())

		_, err = ModelByName("lll-only")
		if !errors.Is(err, ErrDomain) {
			t.Fatalf("expected ErrDomain, got %v", err)
		}
	})

	t.Run("CustomFunc", func(t *testing.T) {
		f := ReductionCostFunc(func(beta, _ int, _ float64) float64 { return float64(beta) })
		require.Equal(t, "custom", f.Name())
		require.Equal(t, 77.0, f.Estimate(77, 100, 10))
	})
}

func TestRootHermiteFactor(t *testing.T) {
	require.InDelta(t, 1.0092587, DeltaFromBeta(100), 1e-6)
	require.InDelta(t, 1.0125375, DeltaFromBeta(40), 1e-6)

	// small blocksizes use the experimental table
	require.Equal(t, 1.02190, DeltaFromBeta(2))
	require.Equal(t, 1.01616, DeltaFromBeta(12))

	for _, beta := range []int{40, 100, 257, 900} {
		if got := BetaFromDelta(DeltaFromBeta(beta)); got != beta {
			t.Errorf("BetaFromDelta(δ(%d)) = %d", beta, got)
		}
	}
}

func TestMaxBlocksize(t *testing.T) {
	// 0.292·385 + 16.4 is the first cost above 128
	require.Equal(t, 385, MaxBlocksize(128, Sieve{}))
	require.Greater(t, MaxBlocksize(128, QuantumSieve{}), MaxBlocksize(128, Sieve{}))
}

func TestLLLCost(t *testing.T) {
	require.InDelta(t, 3*math.Log2(1000)+2*math.Log2(47), LLLCost(1000, 47), 1e-12)
}
