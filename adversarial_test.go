// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package estimator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEdgeCaseExtremePoints(t *testing.T) {
	params := Example64.Params
	n, m := params.N, params.M

	for _, pt := range []Point{
		{Tau: n, Beta: 2},
		{Tau: n, Beta: m},
		{Tau: 0, Beta: m + n},
		{Tau: n - 1, Beta: m + 1},
	} {
		r, err := HybridDecoding(params, AttackParameters{Tau: pt.Tau, Beta: pt.Beta, MITM: true})
		if err != nil {
			if !errors.Is(err, ErrDomain) {
				t.Fatalf("%+v: unexpected error %v", pt, err)
			}
			continue
		}
		require.Equal(t, m+n-pt.Tau, r.D, "%+v", pt)
	}
}

func TestPropertyLargerModulusIsEasier(t *testing.T) {
	small := Example64.Params
	large := small
	large.Q *= 8

	for _, pt := range []Point{{250, 100}, {0, 160}, {400, 120}} {
		a, err := HybridDecoding(small, AttackParameters{Tau: pt.Tau, Beta: pt.Beta, MITM: true})
		require.NoError(t, err)
		b, err := HybridDecoding(large, AttackParameters{Tau: pt.Tau, Beta: pt.Beta, MITM: true})
		require.NoError(t, err)
		if b.Rop > a.Rop+1e-9 {
			t.Errorf("%+v: q·8 costs 2^%v, more than 2^%v", pt, b.Rop, a.Rop)
		}
	}
}

func TestCrossValidationRLWE(t *testing.T) {
	ring, err := RLWEParameters(10, 0x7fff801)
	require.NoError(t, err)
	params, err := FromRLWE(ring, UniformTernary, StandardSigma)
	require.NoError(t, err)

	want, err := HybridDual(t.Context(), PN10QP27.Params, nil)
	require.NoError(t, err)
	got, err := HybridDual(t.Context(), params, nil)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestConcurrentEstimates(t *testing.T) {
	params := Example64.Params.WithSamples(877)
	want, err := HybridDecoding(params, AttackParameters{Tau: 250, Beta: 100, MITM: true})
	require.NoError(t, err)

	const goroutines = 8
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := HybridDecoding(params, AttackParameters{Tau: 250, Beta: 100, MITM: true})
			if err != nil {
				errs <- err
				return
			}
			if got != want {
				errs <- errors.New("concurrent evaluation disagrees")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestConcurrentSearches(t *testing.T) {
	if testing.Short() {
		t.Skip("runs several full searches")
	}
	params := Example64.Params.WithSamples(877)
	grid := ExhaustiveGrid{BetaMin: 80, BetaStep: 20, TauStep: 64}

	results := make([]CostReport, 4)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := HybridDecodingSearch(context.Background(), params, true, nil,
				WithGivenSamples(), WithStrategy(grid), WithWorkers(i+1))
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = r
		}()
	}
	wg.Wait()
	for i := 1; i < len(results); i++ {
		require.Equal(t, results[0], results[i])
	}
}
