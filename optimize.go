// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package estimator

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Point is one (τ, β) candidate of a parameter search.
type Point struct {
	Tau  int `json:"tau"`
	Beta int `json:"beta"`
}

// Strategy generates the candidates a search evaluates, phase by phase.
// Every sequence must be finite and may be iterated more than once.
type Strategy interface {
	Phases() int
	// Candidates returns the grid of phase for an n-dimensional secret with
	// blocksizes below betaMax. incumbent is the best point found in earlier
	// phases, nil in the first one.
	Candidates(phase, n, betaMax int, incumbent *Point) iter.Seq[Point]
}

// TwoPhaseGrid is a coarse grid over the whole (τ, β) range followed by a
// finer grid around the coarse minimum. It trades optimality for running
// time and may miss the global minimum.
type TwoPhaseGrid struct {
	// Coarse phase: β from BetaStart below betaMax in steps of
	// CoarseBetaStep, τ from 0 below n in steps of n/CoarseTauDivisor.
	BetaStart        int `json:"beta_start"`
	CoarseBetaStep   int `json:"coarse_beta_step"`
	CoarseTauDivisor int `json:"coarse_tau_divisor"`
	// Fine phase: β within ±FineBetaRadius in steps of FineBetaStep, τ within
	// ±n/FineTauDivisor in steps of max(n/FineTauStepDivisor, 1).
	FineBetaRadius     int `json:"fine_beta_radius"`
	FineBetaStep       int `json:"fine_beta_step"`
	FineTauDivisor     int `json:"fine_tau_divisor"`
	FineTauStepDivisor int `json:"fine_tau_step_divisor"`
}

// DefaultGrid returns the grid used for the published estimates.
func DefaultGrid() TwoPhaseGrid {
	return TwoPhaseGrid{
		BetaStart:          60,
		CoarseBetaStep:     50,
		CoarseTauDivisor:   10,
		FineBetaRadius:     25,
		FineBetaStep:       10,
		FineTauDivisor:     20,
		FineTauStepDivisor: 100,
	}
}

func (g TwoPhaseGrid) Phases() int { return 2 }

func (g TwoPhaseGrid) Candidates(phase, n, betaMax int, incumbent *Point) iter.Seq[Point] {
	var betas, taus []int
	switch phase {
	case 0:
		betas = steps(g.BetaStart, betaMax, g.CoarseBetaStep)
		if g.CoarseTauDivisor > 0 {
			taus = steps(0, n, n/g.CoarseTauDivisor)
		}
	case 1:
		if incumbent == nil {
			break
		}
		betas = steps(incumbent.Beta-g.FineBetaRadius, incumbent.Beta+g.FineBetaRadius, g.FineBetaStep)
		radius, stride := 0, 1
		if g.FineTauDivisor > 0 {
			radius = n / g.FineTauDivisor
		}
		if g.FineTauStepDivisor > 0 {
			stride = max(n/g.FineTauStepDivisor, 1)
		}
		taus = steps(max(incumbent.Tau-radius, 0), incumbent.Tau+radius, stride)
	}
	slices.Reverse(betas)
	return grid(betas, taus)
}

// ExhaustiveGrid evaluates every β from BetaMin below betaMax and every τ in
// [0, n] on fixed strides in a single phase.
type ExhaustiveGrid struct {
	BetaMin  int `json:"beta_min"`
	BetaStep int `json:"beta_step"`
	TauStep  int `json:"tau_step"`
}

func (g ExhaustiveGrid) Phases() int { return 1 }

func (g ExhaustiveGrid) Candidates(_, n, betaMax int, _ *Point) iter.Seq[Point] {
	betas := steps(max(g.BetaMin, 2), betaMax, g.BetaStep)
	slices.Reverse(betas)
	return grid(betas, steps(0, n+1, g.TauStep))
}

// steps returns from, from+step, ... below to; nothing for a non-positive step.
func steps(from, to, step int) []int {
	if step <= 0 {
		return nil
	}
	var out []int
	for v := from; v < to; v += step {
		out = append(out, v)
	}
	return out
}

// grid yields β-major order: every τ for the first β, then the next β.
func grid(betas, taus []int) iter.Seq[Point] {
	return func(yield func(Point) bool) {
		for _, b := range betas {
			for _, t := range taus {
				if !yield(Point{Tau: t, Beta: b}) {
					return
				}
			}
		}
	}
}

// SampleSource selects the number of samples a search uses.
type SampleSource int

const (
	// SamplesFromDual uses the m of the plain hybrid dual estimate.
	SamplesFromDual SampleSource = iota
	// SamplesGiven uses the caller's m unchanged.
	SamplesGiven
)

// Optimizer searches (τ, β) for the cheapest hybrid decoding attack.
type Optimizer struct {
	Strategy Strategy
	Model    ReductionCostModel
	MITM     bool
	// SecBits bounds β by MaxBlocksize when positive. Use it when deriving
	// parameters for a target level, not when assessing a given set.
	SecBits float64
	Samples SampleSource
	// MaxEvaluations caps the number of grid points; zero disables the cap.
	MaxEvaluations int
	// Timeout bounds the whole search; zero disables it.
	Timeout time.Duration
	// Workers evaluates grid points concurrently when greater than one.
	Workers int
	// Observer sees every evaluated point in grid order.
	Observer func(Point, CostReport)
	Logger   *slog.Logger
}

// SearchOption customises HybridDecodingSearch.
type SearchOption func(*Optimizer)

// WithStrategy replaces the candidate generator.
func WithStrategy(s Strategy) SearchOption { return func(o *Optimizer) { o.Strategy = s } }

// WithSecBits bounds the blocksizes searched.
func WithSecBits(bits float64) SearchOption { return func(o *Optimizer) { o.SecBits = bits } }

// WithGivenSamples keeps the caller's m.
func WithGivenSamples() SearchOption { return func(o *Optimizer) { o.Samples = SamplesGiven } }

// WithWorkers evaluates grid points on n goroutines.
func WithWorkers(n int) SearchOption { return func(o *Optimizer) { o.Workers = n } }

// WithLimits caps the number of evaluations and the wall-clock time.
func WithLimits(maxEvaluations int, timeout time.Duration) SearchOption {
	return func(o *Optimizer) {
		o.MaxEvaluations = maxEvaluations
		o.Timeout = timeout
	}
}

// WithObserver registers a callback for every evaluated point.
func WithObserver(f func(Point, CostReport)) SearchOption {
	return func(o *Optimizer) { o.Observer = f }
}

// WithLogger sets the logger search progress goes to.
func WithLogger(l *slog.Logger) SearchOption { return func(o *Optimizer) { o.Logger = l } }

// HybridDecodingSearch runs the default two-phase search and returns the
// best report found, with τ and β filled in.
func HybridDecodingSearch(ctx context.Context, params LWEParameters, mitm bool, model ReductionCostModel, opts ...SearchOption) (CostReport, error) {
	o := &Optimizer{Strategy: DefaultGrid(), Model: model, MITM: mitm}
	for _, opt := range opts {
		opt(o)
	}
	return o.Search(ctx, params)
}

func (o *Optimizer) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Search evaluates the strategy's grids and keeps the strictly cheapest
// report; ties go to the point met first in grid order, so the result does
// not depend on Workers.
func (o *Optimizer) Search(ctx context.Context, params LWEParameters) (CostReport, error) {
	if err := params.Validate(); err != nil {
		return CostReport{}, err
	}
	model := o.Model
	if model == nil {
		model = Sieve{}
	}
	strategy := o.Strategy
	if strategy == nil {
		strategy = DefaultGrid()
	}

	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	if o.Samples == SamplesFromDual {
		m, err := SampleCount(ctx, params, model)
		if err != nil {
			return CostReport{}, err
		}
		o.logger().Debug("samples from dual estimate", "given", params.M, "m", m)
		params = params.WithSamples(m)
	}

	betaMax := params.N
	if o.SecBits > 0 {
		betaMax = MaxBlocksize(o.SecBits, model)
		o.logger().Debug("blocksize bounded", "secbits", o.SecBits, "beta_max", betaMax)
	}

	var (
		best      CostReport
		incumbent *Point
		evaluated int
	)
	for phase := 0; phase < strategy.Phases(); phase++ {
		var pts []Point
		for p := range strategy.Candidates(phase, params.N, betaMax, incumbent) {
			if p.Tau < 0 || p.Tau > params.N || p.Beta < 2 || p.Beta > params.M+params.N-p.Tau {
				continue
			}
			if o.MaxEvaluations > 0 && evaluated+len(pts) >= o.MaxEvaluations {
				return CostReport{}, &ResourceLimitError{
					Limit:  "evaluations",
					Reason: fmt.Sprintf("search grid exceeds the configured maximum of %d points", o.MaxEvaluations),
				}
			}
			pts = append(pts, p)
		}

		reports, err := o.evaluate(ctx, params, model, pts)
		if err != nil {
			return CostReport{}, err
		}
		for i, r := range reports {
			if o.Observer != nil {
				o.Observer(pts[i], r)
			}
			if incumbent == nil || r.Better(best) {
				best = r
				incumbent = &pts[i]
			}
		}
		evaluated += len(pts)
		if incumbent != nil {
			o.logger().Debug("search phase done", "phase", phase, "points", len(pts),
				"rop", best.Rop.String(), "tau", incumbent.Tau, "beta", incumbent.Beta)
		}
	}

	if incumbent == nil {
		return CostReport{}, domainErrorf("search", "grid", "no admissible (τ, β) point for n = %d, β < %d", params.N, betaMax)
	}
	best.Searched = true
	return best, nil
}

func (o *Optimizer) evaluate(ctx context.Context, params LWEParameters, model ReductionCostModel, pts []Point) ([]CostReport, error) {
	reports := make([]CostReport, len(pts))
	eval := func(i int) error {
		if err := ctx.Err(); err != nil {
			return &ResourceLimitError{Limit: "time", Reason: "search interrupted", Err: err}
		}
		r, err := HybridDecoding(params, AttackParameters{Tau: pts[i].Tau, Beta: pts[i].Beta, MITM: o.MITM, Model: model})
		if err != nil {
			return err
		}
		reports[i] = r
		return nil
	}

	if o.Workers <= 1 {
		for i := range pts {
			if err := eval(i); err != nil {
				return nil, err
			}
		}
		return reports, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	next := make(chan int)
	for w := 0; w < o.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				if err := eval(i); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}
		}()
	}
	for i := range pts {
		mu.Lock()
		failed := firstErr != nil
		mu.Unlock()
		if failed {
			break
		}
		next <- i
	}
	close(next)
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return reports, nil
}
