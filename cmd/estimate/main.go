// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Command estimate prints the cost of the hybrid decoding or hybrid dual
// attack on an LWE instance.
//
//	estimate -set example_64
//	estimate -set chhs_19 -attack hybrid-dual -json
//	estimate -n 1024 -logq 47 -sigma 3.19 -secret ternary:64 -tau 250 -beta 100
//	estimate -rlwe-logn 10 -rlwe-q 0x7fff801 -secret ternary -plot surface.html
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/luxfi/estimator"
	"github.com/luxfi/estimator/internal/config"
	"github.com/luxfi/estimator/internal/plot"
	"github.com/luxfi/estimator/internal/profile"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	set    string
	list   bool
	n, m   int
	logQ   float64
	sigma  float64
	secret string

	rlweLogN int
	rlweQ    string

	attack  string
	model   string
	mitm    bool
	tau     int
	beta    int
	secbits float64
	given   bool

	betaMin, betaStep, tauStep int

	workers  int
	maxEvals int
	timeout  time.Duration

	json       bool
	plot       string
	cpuProfile string
	memProfile string
}

func parseFlags(args []string, cfg config.Config, out io.Writer) (*options, error) {
	var o options
	fs := flag.NewFlagSet("estimate", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&o.set, "set", "", "named parameter set (see -list)")
	fs.BoolVar(&o.list, "list", false, "list the named parameter sets and exit")
	fs.IntVar(&o.n, "n", 0, "LWE dimension")
	fs.Float64Var(&o.logQ, "logq", 0, "log2 of the modulus")
	fs.IntVar(&o.m, "m", 0, "number of samples (default n)")
	fs.Float64Var(&o.sigma, "sigma", estimator.StandardSigma, "error standard deviation")
	fs.StringVar(&o.secret, "secret", "ternary", "secret: ternary, binary, ternary:h, uniform:lo,hi or sparse:lo,hi,h")
	fs.IntVar(&o.rlweLogN, "rlwe-logn", 0, "build the instance from an RLWE ring of degree 2^logn")
	fs.StringVar(&o.rlweQ, "rlwe-q", "", "NTT-friendly prime modulus of the RLWE ring")

	fs.StringVar(&o.attack, "attack", string(estimator.AttackHybridDecoding), "hybrid-decoding or hybrid-dual")
	fs.StringVar(&o.model, "model", "sieve", "reduction cost model: "+strings.Join(estimator.ModelNames(), ", "))
	fs.BoolVar(&o.mitm, "mitm", true, "meet-in-the-middle guessing")
	fs.IntVar(&o.tau, "tau", -1, "guessing dimension; with -beta evaluates one point instead of searching")
	fs.IntVar(&o.beta, "beta", -1, "BKZ blocksize; with -tau evaluates one point instead of searching")
	fs.Float64Var(&o.secbits, "secbits", 0, "bound the searched blocksizes by this security level")
	fs.BoolVar(&o.given, "given-samples", false, "search with the given m instead of the dual estimate's")
	fs.IntVar(&o.betaMin, "beta-min", 0, "exhaustive grid: smallest blocksize (0 keeps the two-phase grid)")
	fs.IntVar(&o.betaStep, "beta-step", 5, "exhaustive grid: blocksize step")
	fs.IntVar(&o.tauStep, "tau-step", 10, "exhaustive grid: guessing dimension step")

	fs.IntVar(&o.workers, "workers", cfg.SearchWorkers, "goroutines evaluating grid points")
	fs.IntVar(&o.maxEvals, "max-evals", cfg.MaxEvaluations, "cap on evaluated grid points")
	fs.DurationVar(&o.timeout, "timeout", cfg.SearchTimeout, "search time limit")

	fs.BoolVar(&o.json, "json", false, "print the report as JSON")
	fs.StringVar(&o.plot, "plot", "", "write the search surface as an HTML page to this file")
	fs.StringVar(&o.cpuProfile, "cpuprofile", "", "write a CPU profile to this file")
	fs.StringVar(&o.memProfile, "memprofile", "", "write a heap profile to this file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return &o, nil
}

// parseSecret reads the -secret syntax.
func parseSecret(s string) (estimator.SecretDistribution, error) {
	name, args, _ := strings.Cut(s, ":")
	var nums []int
	if args != "" {
		for _, f := range strings.Split(args, ",") {
			v, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return estimator.SecretDistribution{}, fmt.Errorf("secret %q: %w", s, err)
			}
			nums = append(nums, v)
		}
	}

	var secret estimator.SecretDistribution
	switch {
	case name == "ternary" && len(nums) == 0:
		secret = estimator.UniformTernary
	case name == "ternary" && len(nums) == 1:
		secret = estimator.SparseSecret(-1, 1, nums[0])
	case name == "binary" && len(nums) == 0:
		secret = estimator.UniformBinary
	case name == "binary" && len(nums) == 1:
		secret = estimator.SparseSecret(0, 1, nums[0])
	case name == "uniform" && len(nums) == 2:
		secret = estimator.UniformSecret(nums[0], nums[1])
	case name == "sparse" && len(nums) == 3:
		secret = estimator.SparseSecret(nums[0], nums[1], nums[2])
	default:
		return estimator.SecretDistribution{}, fmt.Errorf("secret %q: unknown form", s)
	}
	if err := secret.Validate(); err != nil {
		return estimator.SecretDistribution{}, fmt.Errorf("secret %q: %w", s, err)
	}
	return secret, nil
}

// instance resolves the LWE parameters the flags describe.
func (o *options) instance() (name string, params estimator.LWEParameters, err error) {
	secret, err := parseSecret(o.secret)
	if err != nil {
		return "", params, err
	}

	switch {
	case o.set != "":
		ps, ok := estimator.GetParameterSet(o.set)
		if !ok {
			return "", params, fmt.Errorf("unknown parameter set %q (known: %s)", o.set,
				strings.Join(estimator.ParameterSetNames(), ", "))
		}
		name, params = ps.Name, ps.Params

	case o.rlweLogN > 0:
		q, err := strconv.ParseUint(o.rlweQ, 0, 64)
		if err != nil {
			return "", params, fmt.Errorf("rlwe-q: %w", err)
		}
		ring, err := estimator.RLWEParameters(o.rlweLogN, q)
		if err != nil {
			return "", params, err
		}
		if params, err = estimator.FromRLWE(ring, secret, o.sigma); err != nil {
			return "", params, err
		}
		name = fmt.Sprintf("rlwe N=2^%d", o.rlweLogN)

	case o.n > 0:
		params = estimator.LWEParameters{
			N:      o.n,
			Q:      math.Exp2(o.logQ),
			M:      o.n,
			Secret: secret,
			Error:  estimator.DiscreteGaussian(o.sigma),
		}
		name = fmt.Sprintf("n=%d", o.n)

	default:
		return "", params, errors.New("give -set, -n with -logq, or -rlwe-logn with -rlwe-q")
	}

	if o.m > 0 {
		params = params.WithSamples(o.m)
	}
	return name, params, params.Validate()
}

func (o *options) strategy() estimator.Strategy {
	if o.betaMin > 0 {
		return estimator.ExhaustiveGrid{BetaMin: o.betaMin, BetaStep: o.betaStep, TauStep: o.tauStep}
	}
	return estimator.DefaultGrid()
}

func listSets(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSECURITY\tSOURCE\tPARAMETERS")
	for _, ps := range estimator.AllParameterSets() {
		level := "-"
		if bits := ps.Security.Bits(); bits > 0 {
			level = strconv.Itoa(int(bits))
			if ps.Security.Quantum() {
				level += "q"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ps.Name, level, ps.Source, ps.Params)
	}
	return tw.Flush()
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	o, err := parseFlags(args, cfg, stdout)
	if err != nil {
		return err
	}
	if o.list {
		return listSets(stdout)
	}

	name, params, err := o.instance()
	if err != nil {
		return err
	}
	model, err := estimator.ModelByName(o.model)
	if err != nil {
		return err
	}

	var prof *profile.Profiler
	if pc := (profile.Config{CPUProfile: o.cpuProfile, MemProfile: o.memProfile}); pc.Enabled() {
		prof = profile.New(pc, cfg.Logger())
		if err := prof.Start(); err != nil {
			return err
		}
	}

	var trace plot.Trace
	start := time.Now()
	report, err := o.estimate(ctx, params, model, cfg, trace.Observe)
	if prof != nil {
		if perr := prof.Stop(); perr != nil {
			log.Printf("profiling: %v", perr)
		}
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if o.plot != "" {
		if err := writePlot(o.plot, name, trace.Samples(), report); err != nil {
			return err
		}
	}

	if o.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Name   string                  `json:"name"`
			Params estimator.LWEParameters `json:"params"`
			Report estimator.CostReport    `json:"report"`
		}{name, params, report})
	}

	fmt.Fprintf(stdout, "%s: %s\n", name, params)
	fmt.Fprintf(stdout, "%s (%s), %v\n", report.Attack, report.Model, elapsed.Round(time.Millisecond))
	return estimator.WriteTable(stdout, report)
}

func (o *options) estimate(ctx context.Context, params estimator.LWEParameters, model estimator.ReductionCostModel,
	cfg config.Config, observe func(estimator.Point, estimator.CostReport)) (estimator.CostReport, error) {
	switch estimator.Attack(o.attack) {
	case estimator.AttackHybridDual:
		if o.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.timeout)
			defer cancel()
		}
		dual := estimator.DefaultDualConfig()
		dual.MITM = o.mitm
		return dual.Estimate(ctx, params, model)

	case estimator.AttackHybridDecoding:
		if (o.tau < 0) != (o.beta < 0) {
			return estimator.CostReport{}, errors.New("-tau and -beta go together")
		}
		if o.tau >= 0 {
			return estimator.HybridDecoding(params, estimator.AttackParameters{
				Tau: o.tau, Beta: o.beta, MITM: o.mitm, Model: model,
			})
		}
		opts := []estimator.SearchOption{
			estimator.WithStrategy(o.strategy()),
			estimator.WithSecBits(o.secbits),
			estimator.WithWorkers(o.workers),
			estimator.WithLimits(o.maxEvals, o.timeout),
			estimator.WithObserver(observe),
			estimator.WithLogger(cfg.Logger()),
		}
		if o.given {
			opts = append(opts, estimator.WithGivenSamples())
		}
		return estimator.HybridDecodingSearch(ctx, params, o.mitm, model, opts...)

	default:
		return estimator.CostReport{}, fmt.Errorf("unknown attack %q", o.attack)
	}
}

func writePlot(path, title string, samples []plot.Sample, best estimator.CostReport) error {
	if len(samples) == 0 {
		return errors.New("-plot needs a (τ, β) search")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot: %w", err)
	}
	if err := plot.Render(f, title, samples, best); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
