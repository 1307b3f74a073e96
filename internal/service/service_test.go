// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/estimator"
	"github.com/luxfi/estimator/internal/storage"
)

func ptr[T any](v T) *T { return &v }

func TestRequestNormalize(t *testing.T) {
	t.Run("SetAndParamsEncodeEqually", func(t *testing.T) {
		params := estimator.Example64.Params
		byName := Request{Set: "example_64", Tau: ptr(250), Beta: ptr(100)}
		byValue := Request{Attack: estimator.AttackHybridDecoding, Params: &params, Model: "sieve",
			MITM: ptr(true), Tau: ptr(250), Beta: ptr(100)}

		h1, err := byName.Handle()
		require.NoError(t, err)
		h2, err := byValue.Handle()
		require.NoError(t, err)
		require.Equal(t, h1, h2)
	})

	t.Run("DualIgnoresSearchKnobs", func(t *testing.T) {
		a, err := Request{Attack: estimator.AttackHybridDual, Set: "example_64"}.Handle()
		require.NoError(t, err)
		b, err := Request{Attack: estimator.AttackHybridDual, Set: "example_64", SecBits: 128}.Handle()
		require.NoError(t, err)
		require.Equal(t, a, b)
	})

	t.Run("MITMChangesHandle", func(t *testing.T) {
		a, err := Request{Set: "example_64"}.Handle()
		require.NoError(t, err)
		b, err := Request{Set: "example_64", MITM: ptr(false)}.Handle()
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})

	t.Run("BadRequests", func(t *testing.T) {
		params := estimator.Example64.Params
		for name, r := range map[string]Request{
			"NoInstance": {},
			"Both":       {Set: "example_64", Params: &params},
			"UnknownSet": {Set: "kyber512"},
			"UnknownAtk": {Attack: "bkw", Set: "example_64"},
			"UnknownMdl": {Set: "example_64", Model: "quantum-magic"},
			"HalfPoint":  {Set: "example_64", Tau: ptr(10)},
			"InvalidLWE": {Params: &estimator.LWEParameters{N: 10, Q: 0, M: 10}},
		} {
			t.Run(name, func(t *testing.T) {
				_, err := r.Normalize()
				require.ErrorIs(t, err, ErrBadRequest)
			})
		}
	})
}

func TestServiceEstimate(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage(16)
	svc := New(store, Options{})

	req := Request{Set: "example_64", Tau: ptr(250), Beta: ptr(100)}
	first, err := svc.Estimate(ctx, req)
	require.NoError(t, err)
	require.False(t, first.Cached)
	require.InDelta(t, 65.07, float64(first.Report.Rop), 0.2)
	require.Equal(t, 1798, first.Report.D)

	second, err := svc.Estimate(ctx, req)
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.Equal(t, first.Handle, second.Handle)
	require.Equal(t, first.Report, second.Report)

	stored, err := svc.Report(ctx, first.Handle)
	require.NoError(t, err)
	require.Equal(t, first.Report, stored)

	t.Run("Dual", func(t *testing.T) {
		res, err := svc.Estimate(ctx, Request{Attack: estimator.AttackHybridDual, Set: "example_64"})
		require.NoError(t, err)
		require.Equal(t, estimator.AttackHybridDual, res.Report.Attack)
		require.InDelta(t, 61.85, float64(res.Report.Rop), 0.2)
	})

	t.Run("DomainError", func(t *testing.T) {
		_, err := svc.Estimate(ctx, Request{Set: "example_64", Tau: ptr(2000), Beta: ptr(100)})
		require.ErrorIs(t, err, estimator.ErrDomain)
	})

	t.Run("SearchLimit", func(t *testing.T) {
		limited := New(storage.NewMemoryStorage(1), Options{MaxEvaluations: 3})
		_, err := limited.Estimate(ctx, Request{Set: "example_64", GivenSamples: true})
		require.ErrorIs(t, err, estimator.ErrResourceLimit)
	})

	t.Run("MissingReport", func(t *testing.T) {
		_, err := svc.Report(ctx, storage.ComputeHandle([]byte("nothing")))
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
