// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package estimator

import (
	"math"

	"gonum.org/v1/gonum/stat/combin"
)

// logAdd returns log2(2^a + 2^b).
func logAdd(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(b, -1) {
		return a
	}
	if math.IsInf(a, 1) {
		return a
	}
	return a + math.Log2(1+math.Exp2(b-a))
}

// logBinomial returns log2 C(n, k), or -Inf when k is outside [0, n].
func logBinomial(n, k int) float64 {
	if k < 0 || k > n || n < 0 {
		return math.Inf(-1)
	}
	return combin.LogGeneralizedBinomial(float64(n), float64(k)) / math.Ln2
}

// DropProbability is the probability that exactly fail of the h non-zero
// secret coordinates fall among k coordinates chosen at random from n:
// C(n-h, k-fail)·C(h, fail)/C(n, k).
func DropProbability(n, h, k, fail int) float64 {
	l := logBinomial(n-h, k-fail) + logBinomial(h, fail) - logBinomial(n, k)
	if math.IsNaN(l) {
		return 0
	}
	return math.Exp2(l)
}

// Amplify returns the number of independent trials with success probability
// p needed to succeed with probability target: 1 when p already exceeds the
// target and +Inf when p is zero.
func Amplify(target, p float64) float64 {
	if target < p {
		return 1
	}
	if p <= 0 {
		return math.Inf(1)
	}
	return math.Ceil(math.Log(1-target) / math.Log1p(-p))
}

// AmplifyMajority returns log2 of the number of samples a majority vote
// needs to distinguish with advantage e^logAdv and failure probability
// e^log1mTarget.
func AmplifyMajority(log1mTarget, logAdv float64) float64 {
	num := -2 * (math.Ln2 + log1mTarget)
	if num <= 0 {
		return 0
	}
	if logAdv > -10 {
		adv := math.Exp(logAdv)
		if adv >= 1 {
			return 0
		}
		return math.Log2(math.Max(1, math.Ceil(num/-math.Log1p(-adv*adv))))
	}
	// ln(1-ε²) ≈ -ε² once ε is tiny
	return math.Max(0, math.Log2(num)-2*logAdv/math.Ln2)
}

// GuessCost is log2 of the work to enumerate a search space of size 2^logS,
// square-rooted under the meet-in-the-middle assumption.
func GuessCost(logS float64, mitm bool) float64 {
	if mitm {
		return logS / 2
	}
	return logS
}

// GuessMemory is log2 of the memory a meet-in-the-middle search holds. It is
// reported for reference and never charged to the total cost.
func GuessMemory(logS float64, mitm bool) float64 {
	if mitm {
		return logS / 2
	}
	return 0
}

// GuessSpace is the outcome of balancing the guessing phase.
type GuessSpace struct {
	// LogSize is log2 |S|.
	LogSize float64
	// Weight is the largest Hamming weight enumerated (pp).
	Weight int
	// Probability that the τ guessed coordinates have weight ≤ Weight.
	Probability float64
	// LogCost is log2 of Babai cost times the guessing cost.
	LogCost float64
}

// Guessing grows the guessing space on τ coordinates shell by shell
// (Hamming weight 1, 2, ...) while calling Babai on every candidate stays
// within the reduction budget. The meet-in-the-middle variant pays for the
// square root of the space and is assumed to always succeed.
func Guessing(n, h, tau int, secret SecretDistribution, logBabai, logBudget float64, mitm bool) (GuessSpace, error) {
	if tau < 0 || tau > n {
		return GuessSpace{}, domainErrorf("guessing", "tau", "must lie in [0, %d], got %d", n, tau)
	}
	g := GuessSpace{Probability: 1}
	if tau == 0 {
		g.LogCost = logBabai
		return g, nil
	}

	lo, hi := secret.Bounds()
	logWidth := math.Log2(float64(hi - lo))
	g.Probability = DropProbability(n, h, tau, 0)

	hw := 1
	for ; hw < h && hw < tau; hw++ {
		next := logAdd(g.LogSize, logBinomial(tau, hw)+float64(hw)*logWidth)
		if logBabai+GuessCost(next, mitm) > logBudget {
			hw--
			break
		}
		g.LogSize = next
		g.Probability += DropProbability(n, h, tau, hw)
	}
	g.Weight = hw
	g.LogCost = logBabai + GuessCost(g.LogSize, mitm)
	return g, nil
}
