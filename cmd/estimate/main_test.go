// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/estimator"
)

func TestParseSecret(t *testing.T) {
	for in, want := range map[string]estimator.SecretDistribution{
		"ternary":        estimator.UniformTernary,
		"ternary:64":     estimator.SparseSecret(-1, 1, 64),
		"binary":         estimator.UniformBinary,
		"binary:32":      estimator.SparseSecret(0, 1, 32),
		"uniform:-2,2":   estimator.UniformSecret(-2, 2),
		"sparse:-1,1,10": estimator.SparseSecret(-1, 1, 10),
	} {
		got, err := parseSecret(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, bad := range []string{"gaussian", "ternary:x", "uniform:1", "uniform:2,1", "sparse:1,2"} {
		_, err := parseSecret(bad)
		require.Error(t, err, bad)
	}
}

func TestInstance(t *testing.T) {
	t.Run("Set", func(t *testing.T) {
		o := &options{set: "example_64", secret: "ternary"}
		name, params, err := o.instance()
		require.NoError(t, err)
		require.Equal(t, "example_64", name)
		require.Equal(t, estimator.Example64.Params, params)
	})

	t.Run("Explicit", func(t *testing.T) {
		o := &options{n: 1024, logQ: 47, m: 877, sigma: 3.19, secret: "ternary:64"}
		_, params, err := o.instance()
		require.NoError(t, err)
		require.Equal(t, 877, params.M)
		require.InDelta(t, 47, params.LogQ(), 1e-12)
		require.Equal(t, 64, params.Secret.HammingWeight)
	})

	t.Run("RLWE", func(t *testing.T) {
		o := &options{rlweLogN: 10, rlweQ: "0x7fff801", sigma: estimator.StandardSigma, secret: "ternary"}
		_, params, err := o.instance()
		require.NoError(t, err)
		require.Equal(t, estimator.PN10QP27.Params, params)
	})

	t.Run("Errors", func(t *testing.T) {
		for name, o := range map[string]*options{
			"Nothing":    {secret: "ternary"},
			"UnknownSet": {set: "kyber512", secret: "ternary"},
			"BadModulus": {rlweLogN: 10, rlweQ: "zz", secret: "ternary"},
			"ZeroSigma":  {n: 64, logQ: 10, secret: "ternary"},
		} {
			_, _, err := o.instance()
			require.Error(t, err, name)
		}
	})
}

func TestRun(t *testing.T) {
	t.Chdir(t.TempDir())
	ctx := context.Background()

	t.Run("Table", func(t *testing.T) {
		var out strings.Builder
		require.NoError(t, run(ctx, []string{"-set", "example_64", "-tau", "250", "-beta", "100"}, &out))
		require.Contains(t, out.String(), "example_64: n=1024")
		require.Contains(t, out.String(), "     rop:   2^65.1")
		require.Contains(t, out.String(), "  repeat:       42")
	})

	t.Run("JSON", func(t *testing.T) {
		var out strings.Builder
		require.NoError(t, run(ctx, []string{"-set", "example_64", "-attack", "hybrid-dual", "-json"}, &out))
		var doc struct {
			Name   string               `json:"name"`
			Report estimator.CostReport `json:"report"`
		}
		require.NoError(t, json.Unmarshal([]byte(out.String()), &doc))
		require.Equal(t, "example_64", doc.Name)
		require.Equal(t, estimator.AttackHybridDual, doc.Report.Attack)
		require.InDelta(t, 61.85, float64(doc.Report.Rop), 0.2)
	})

	t.Run("SearchWithPlotAndProfile", func(t *testing.T) {
		dir := t.TempDir()
		page := filepath.Join(dir, "surface.html")
		cpu := filepath.Join(dir, "cpu.prof")
		var out strings.Builder
		require.NoError(t, run(ctx, []string{
			"-set", "example_64", "-m", "877", "-given-samples",
			"-beta-min", "80", "-beta-step", "40", "-tau-step", "256",
			"-workers", "2", "-plot", page, "-cpuprofile", cpu,
		}, &out))
		require.Contains(t, out.String(), "hybrid-decoding (sieve)")
		for _, path := range []string{page, cpu} {
			st, err := os.Stat(path)
			require.NoError(t, err)
			require.NotZero(t, st.Size())
		}
	})

	t.Run("List", func(t *testing.T) {
		var out strings.Builder
		require.NoError(t, run(ctx, []string{"-list"}, &out))
		for _, name := range estimator.ParameterSetNames() {
			require.Contains(t, out.String(), name)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		for name, args := range map[string][]string{
			"HalfPoint":   {"-set", "example_64", "-tau", "10"},
			"Attack":      {"-set", "example_64", "-attack", "bkw"},
			"Model":       {"-set", "example_64", "-model", "magic"},
			"PlotOnPoint": {"-set", "example_64", "-tau", "250", "-beta", "100", "-plot", "x.html"},
			"Extra":       {"-set", "example_64", "stray"},
			"Limit":       {"-set", "example_64", "-max-evals", "3"},
		} {
			var out strings.Builder
			require.Error(t, run(ctx, args, &out), name)
		}
	})
}
