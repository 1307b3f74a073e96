// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package estimator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHybridDual(t *testing.T) {
	t.Run("Example64", func(t *testing.T) {
		r, err := HybridDual(t.Context(), Example64.Params, Sieve{})
		require.NoError(t, err)
		require.Equal(t, AttackHybridDual, r.Attack)
		require.True(t, r.MITM)
		require.InDelta(t, 61.85, float64(r.Rop), 0.2)
		require.Equal(t, 89, r.Beta)
		require.Equal(t, 286, r.K)
		require.Equal(t, 14, r.Postprocess)
		require.Equal(t, 775, r.M)
		require.Equal(t, 1513, r.D)
		require.InDelta(t, 10.83, r.C, 0.05)
		require.Equal(t, r.D-(1024-r.K), r.M)
	})

	t.Run("CHHS19", func(t *testing.T) {
		if testing.Short() {
			t.Skip("large dimension")
		}
		r, err := HybridDual(t.Context(), CHHS19.Params, Sieve{})
		require.NoError(t, err)
		require.True(t, r.MITM)
		require.InDelta(t, 120.5, float64(r.Rop), 0.2)
		// the optimum is flat: blocksizes 205 to 219 lie within 0.1 bits
		require.InDelta(t, 207, r.Beta, 15)
		require.InDelta(t, 15, r.Postprocess, 3)
		require.Equal(t, r.D-(8192-r.K), r.M)

		cfg := DefaultDualConfig()
		cfg.MITM = false
		plain, err := cfg.Estimate(t.Context(), CHHS19.Params, Sieve{})
		require.NoError(t, err)
		require.False(t, plain.MITM)
		require.InDelta(t, 152.59, float64(plain.Rop), 0.2)
		require.Equal(t, 175, plain.Beta)
		require.Equal(t, 5063, plain.K)
		require.Equal(t, 5, plain.Postprocess)
	})

	t.Run("BinaryIgnoresMITM", func(t *testing.T) {
		r, err := HybridDual(t.Context(), ExampleBinary64.Params, Sieve{})
		require.NoError(t, err)
		require.False(t, r.MITM)
		require.InDelta(t, 73.43, float64(r.Rop), 0.2)
		require.Equal(t, 147, r.Beta)
		require.Equal(t, 1022, r.M)
		require.Equal(t, 39, r.K)
		// the search loop ran to k without exceeding the reduction cost
		require.Equal(t, r.K, r.Postprocess)
	})

	t.Run("MITMNeverWorse", func(t *testing.T) {
		cfg := DefaultDualConfig()
		mitm, err := cfg.Estimate(t.Context(), Example128.Params, Sieve{})
		require.NoError(t, err)
		cfg.MITM = false
		plain, err := cfg.Estimate(t.Context(), Example128.Params, Sieve{})
		require.NoError(t, err)
		if mitm.Rop > plain.Rop+1e-9 {
			t.Fatalf("mitm 2^%.2f worse than plain 2^%.2f", mitm.Rop, plain.Rop)
		}
	})

	t.Run("DualScale", func(t *testing.T) {
		r, err := DefaultDualConfig().DualScale(Example64.Params, Sieve{})
		require.NoError(t, err)
		require.False(t, r.Infeasible)
		require.Equal(t, 0, r.K)
		require.Greater(t, r.D, 1024)
	})

	t.Run("Domain", func(t *testing.T) {
		bad := Example64.Params
		bad.N = 0
		if _, err := HybridDual(t.Context(), bad, nil); !errors.Is(err, ErrDomain) {
			t.Fatalf("expected ErrDomain, got %v", err)
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		_, err := HybridDual(ctx, Example64.Params, nil)
		require.ErrorIs(t, err, ErrResourceLimit)
		require.ErrorIs(t, err, context.Canceled)
		var limit *ResourceLimitError
		require.ErrorAs(t, err, &limit)
		require.Equal(t, "time", limit.Limit)

		_, err = SampleCount(ctx, Example64.Params, nil)
		require.ErrorIs(t, err, ErrResourceLimit)
	})
}

// The refined search must beat or match every point of the coarse grid,
// including those past a k that did not improve.
func TestHybridDualNoWorseThanGrid(t *testing.T) {
	for _, tc := range []struct {
		name string
		ps   ParameterSet
		mitm bool
	}{
		{"Example64", Example64, true},
		{"Example64Plain", Example64, false},
		{"Example128", Example128, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultDualConfig()
			cfg.MITM = tc.mitm
			best, err := cfg.Estimate(t.Context(), tc.ps.Params, Sieve{})
			require.NoError(t, err)

			s := newDropAndSolve(cfg, tc.ps.Params, Sieve{})
			n := tc.ps.Params.N
			for k := 0; k < n-s.h; k += n / 32 {
				r, ok := s.at(k)
				if ok && r.Rop < best.Rop {
					t.Errorf("k=%d costs 2^%.2f, below the reported 2^%.2f at k=%d", k, r.Rop, best.Rop, best.K)
				}
			}
		})
	}
}

func TestSampleCount(t *testing.T) {
	m, err := SampleCount(t.Context(), Example64.Params, Sieve{})
	require.NoError(t, err)
	require.Equal(t, 877, m)

	m2, err := SampleCount(t.Context(), Example64.Params, nil)
	require.NoError(t, err)
	require.Equal(t, m, m2)
}
