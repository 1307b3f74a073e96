// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package estimator

import (
	"context"
	"fmt"
	"math"
)

// DualConfig tunes the hybrid dual estimate.
type DualConfig struct {
	// Step is the grid spacing of the number k of dropped coordinates; zero
	// selects n/32.
	Step int
	// MITM square-roots the post-processing search and balances the
	// blocksize against it. It only takes effect for ternary secrets.
	MITM bool
	// UseLLL produces the many short dual vectors by LLL re-randomisation of
	// one BKZ-reduced basis, which lengthens them by RerandScale.
	UseLLL      bool
	RerandScale float64
	// LogFailure is -log2 of the failure probability each distinguishing
	// instance of the plain attack is run at. The meet-in-the-middle variant
	// runs its instances at SuccessProbability.
	LogFailure float64
	// SuccessProbability is the target of the drop-and-solve amplification.
	SuccessProbability float64
}

// DefaultDualConfig returns the configuration of the published estimates:
// LLL re-randomisation, per-instance failure 2^-80 and overall success 0.99.
func DefaultDualConfig() DualConfig {
	return DualConfig{
		MITM:               true,
		UseLLL:             true,
		RerandScale:        2,
		LogFailure:         80,
		SuccessProbability: DefaultSuccessProbability,
	}
}

type dualPoint struct {
	rop, red, repeat float64
	beta, d          int
	delta, c         float64
}

// dualAt costs the BKZ-β dual distinguisher on the first n secret
// coordinates, in the normal form where the secret is scaled by c to match
// the error. ok is false when the lattice is too small or the vectors too
// long to distinguish.
func (cfg DualConfig) dualAt(beta, n int, p LWEParameters, log1mTarget float64, model ReductionCostModel) (dualPoint, bool) {
	logQ := p.LogQ()
	c := scaleFactor(p.Error.Sigma, p.Secret.Variance(n))
	logQC := logQ - math.Log2(c)

	delta := DeltaFromBeta(beta)
	logDelta := math.Log2(delta)
	d := int(math.Round(math.Sqrt(float64(n) * logQC / logDelta)))
	d = min(d, p.M+n)
	if d <= n {
		return dualPoint{}, false
	}

	logLen := float64(d)*logDelta + float64(n)/float64(d)*logQC
	if cfg.UseLLL && cfg.RerandScale > 0 {
		logLen += math.Log2(cfg.RerandScale)
	}
	lx := logLen + math.Log2(p.Error.Alpha(p.Q))
	if lx > 20 {
		return dualPoint{}, false
	}
	x := math.Exp2(lx)
	repeat := AmplifyMajority(log1mTarget, -math.Pi*x*x)
	red := model.Estimate(beta, d, logQ)
	rop := red + repeat
	if cfg.UseLLL {
		rop = logAdd(red, repeat+LLLCost(d, logQ))
	}
	return dualPoint{rop: rop, red: red, repeat: repeat, beta: beta, d: d, delta: delta, c: c}, true
}

// dualScale searches β for the cheapest distinguisher alone.
func (cfg DualConfig) dualScale(n int, p LWEParameters, log1mTarget float64, model ReductionCostModel) (dualPoint, bool) {
	var best dualPoint
	found := false
	for beta := 40; beta < 2*n; beta++ {
		pt, ok := cfg.dualAt(beta, n, p, log1mTarget, model)
		if ok && (!found || pt.rop < best.rop) {
			best, found = pt, true
		}
	}
	return best, found
}

// DualScale estimates the plain dual attack in scaled normal form without
// dropping coordinates.
func (cfg DualConfig) DualScale(params LWEParameters, model ReductionCostModel) (CostReport, error) {
	if err := params.Validate(); err != nil {
		return CostReport{}, err
	}
	if model == nil {
		model = Sieve{}
	}
	r := CostReport{Attack: AttackHybridDual, Model: model.Name()}
	pt, ok := cfg.dualScale(params.N, params, math.Log(1-cfg.SuccessProbability), model)
	if !ok {
		return infeasible(r), nil
	}
	return dualReport(r, pt, params.N, 0, 0), nil
}

// dropAndSolve evaluates single points k of the drop-and-solve search.
type dropAndSolve struct {
	cfg      DualConfig
	params   LWEParameters
	model    ReductionCostModel
	base     CostReport
	h        int
	logWidth float64
	mitm     bool
}

func newDropAndSolve(cfg DualConfig, params LWEParameters, model ReductionCostModel) *dropAndSolve {
	if model == nil {
		model = Sieve{}
	}
	lo, hi := params.Secret.Bounds()
	mitm := cfg.MITM && params.Secret.IsTernary()
	return &dropAndSolve{
		cfg:      cfg,
		params:   params,
		model:    model,
		base:     CostReport{Attack: AttackHybridDual, Model: model.Name(), MITM: mitm},
		h:        params.Secret.Nonzero(params.N),
		logWidth: math.Log2(float64(hi - lo)),
		mitm:     mitm,
	}
}

// at drops k coordinates. Without meet-in-the-middle β is the one that
// minimises the distinguisher alone; with it, β minimises the total
// including the guessing. ok is false when no β yields a usable point.
func (s *dropAndSolve) at(k int) (CostReport, bool) {
	n := s.params.N - k
	if !s.mitm {
		pt, ok := s.cfg.dualScale(n, s.params, -s.cfg.LogFailure*math.Ln2, s.model)
		if !ok {
			return CostReport{}, false
		}
		return s.solve(k, pt)
	}

	log1mTarget := math.Log(1 - s.cfg.SuccessProbability)
	logQ := s.params.LogQ()
	var best CostReport
	found := false
	for beta := 40; beta < 2*n; beta++ {
		// a BKZ-β reduction costs at least one SVP call in dimension β
		if found && s.model.Estimate(beta, beta, logQ) >= float64(best.Rop) {
			break
		}
		pt, ok := s.cfg.dualAt(beta, n, s.params, log1mTarget, s.model)
		if !ok {
			continue
		}
		if r, ok := s.solve(k, pt); ok && (!found || r.Better(best)) {
			best, found = r, true
		}
	}
	return best, found
}

// solve adds the post-processing of the k dropped coordinates to the
// distinguisher pt: weights i = 1, 2, ... are searched until their
// cumulative cost reaches the lattice cost, and the whole is repeated until
// the dropped part has a searched weight with probability SuccessProbability.
func (s *dropAndSolve) solve(k int, pt dualPoint) (CostReport, bool) {
	n := s.params.N
	prob := DropProbability(n, s.h, k, 0)
	post := math.Inf(-1)
	pp := k
	for i := 1; i < k; i++ {
		search := logBinomial(k, i) + float64(i)*s.logWidth
		if s.mitm {
			search /= 2
		}
		ci := logAdd(1+pt.repeat+math.Log2(float64(pt.d)*float64(k)), pt.repeat+search+math.Log2(float64(i)))
		total := logAdd(post, ci)
		if total >= pt.rop {
			pp = i
			break
		}
		post = total
		prob += DropProbability(n, s.h, k, i)
	}

	amp := Amplify(s.cfg.SuccessProbability, math.Min(prob, 1))
	if math.IsInf(amp, 1) {
		return CostReport{}, false
	}
	la := math.Log2(amp)
	pt.rop = logAdd(pt.rop, post) + la
	pt.red += la
	pt.repeat += la
	return dualReport(s.base, pt, n-k, k, pp), true
}

// Estimate runs drop and solve: it drops k secret coordinates, solves the
// remaining (n-k)-dimensional instance with the dual distinguisher and
// repairs up to Postprocess non-zero dropped coordinates by exhaustive
// search. Every k on the grid 0, step, 2·step, ... is evaluated, then the
// cheapest is refined by halving the step around it. The context bounds the
// search; once it is done Estimate returns a ResourceLimitError.
func (cfg DualConfig) Estimate(ctx context.Context, params LWEParameters, model ReductionCostModel) (CostReport, error) {
	if err := params.Validate(); err != nil {
		return CostReport{}, err
	}
	n := params.N
	step := cfg.Step
	if step <= 0 {
		step = max(n/32, 1)
	}
	s := newDropAndSolve(cfg, params, model)

	var best CostReport
	found := false
	seen := make(map[int]bool)
	try := func(k int) error {
		if k < 0 || k >= n-s.h || seen[k] {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return &ResourceLimitError{Limit: "time", Reason: "dual estimate interrupted", Err: err}
		}
		seen[k] = true
		if r, ok := s.at(k); ok && (!found || r.Better(best)) {
			best, found = r, true
		}
		return nil
	}

	for k := 0; k < n-s.h; k += step {
		if err := try(k); err != nil {
			return CostReport{}, err
		}
	}
	for half := step / 2; found && half > 0; half /= 2 {
		center := best.K
		for _, k := range [...]int{center - half, center + half} {
			if err := try(k); err != nil {
				return CostReport{}, err
			}
		}
	}
	if !found {
		return infeasible(s.base), nil
	}
	return best, nil
}

func dualReport(r CostReport, pt dualPoint, n, k, pp int) CostReport {
	r.Rop = Log2(pt.rop)
	r.Red = Log2(pt.red)
	r.Repeat = Count(math.Exp2(pt.repeat))
	r.M = pt.d - n
	r.D = pt.d
	r.Beta = pt.beta
	r.Delta0 = pt.delta
	r.C = pt.c
	r.K = k
	r.Postprocess = pp
	return r
}

// HybridDual estimates the hybrid dual attack with DefaultDualConfig. The
// meet-in-the-middle speed-up is applied to ternary secrets only; the
// report's MITM field records whether it was.
func HybridDual(ctx context.Context, params LWEParameters, model ReductionCostModel) (CostReport, error) {
	return DefaultDualConfig().Estimate(ctx, params, model)
}

// SampleCount returns the number of samples m the hybrid dual estimate
// without meet-in-the-middle uses. Primal searches reuse it so both attacks
// are compared on the same sample budget.
func SampleCount(ctx context.Context, params LWEParameters, model ReductionCostModel) (int, error) {
	cfg := DefaultDualConfig()
	cfg.MITM = false
	r, err := cfg.Estimate(ctx, params, model)
	if err != nil {
		return 0, err
	}
	if r.Infeasible {
		return 0, fmt.Errorf("sample count for %s: %w", params, ErrInfeasible)
	}
	return r.M, nil
}
