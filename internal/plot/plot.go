// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package plot renders the cost surface explored by a (τ, β) search as an
// HTML page.
package plot

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"

	"github.com/luxfi/estimator"
)

// Sample is one evaluated grid point.
type Sample struct {
	Point estimator.Point
	Rop   float64
}

// Trace collects the points a search evaluates. Its Observe method is an
// Optimizer observer.
type Trace struct {
	index   map[estimator.Point]int
	samples []Sample
}

// Observe records p; a revisited point keeps its latest cost.
func (t *Trace) Observe(p estimator.Point, r estimator.CostReport) {
	if t.index == nil {
		t.index = make(map[estimator.Point]int)
	}
	s := Sample{Point: p, Rop: float64(r.Rop)}
	if i, ok := t.index[p]; ok {
		t.samples[i] = s
		return
	}
	t.index[p] = len(t.samples)
	t.samples = append(t.samples, s)
}

// Samples returns the recorded points in evaluation order.
func (t *Trace) Samples() []Sample { return slices.Clone(t.samples) }

func axis(samples []Sample, key func(estimator.Point) int) []int {
	var vals []int
	for _, s := range samples {
		vals = append(vals, key(s.Point))
	}
	slices.Sort(vals)
	return slices.Compact(vals)
}

func labels(vals []int) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strconv.Itoa(v)
	}
	return out
}

func finite(samples []Sample) []float64 {
	var out []float64
	for _, s := range samples {
		if !math.IsInf(s.Rop, 0) && !math.IsNaN(s.Rop) {
			out = append(out, s.Rop)
		}
	}
	return out
}

// SearchSurface is a heat map of log2 rop over τ (x) and β (y). Infeasible
// points are left blank.
func SearchSurface(title string, samples []Sample, best estimator.CostReport) *charts.HeatMap {
	taus := axis(samples, func(p estimator.Point) int { return p.Tau })
	betas := axis(samples, func(p estimator.Point) int { return p.Beta })

	items := make([]opts.HeatMapData, 0, len(samples))
	for _, s := range samples {
		if math.IsInf(s.Rop, 0) || math.IsNaN(s.Rop) {
			continue
		}
		x, _ := slices.BinarySearch(taus, s.Point.Tau)
		y, _ := slices.BinarySearch(betas, s.Point.Beta)
		items = append(items, opts.HeatMapData{Value: [3]any{x, y, math.Round(s.Rop*100) / 100}})
	}

	lo, hi := 0.0, 1.0
	if vals := finite(samples); len(vals) > 0 {
		lo, hi = floats.Min(vals), floats.Max(vals)
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("best rop %s at τ=%d, β=%d", best.Rop, best.Tau, best.Beta),
		}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "700px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "τ", Type: "category", Data: labels(taus)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "β", Type: "category", Data: labels(betas)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        float32(math.Floor(lo)),
			Max:        float32(math.Ceil(hi)),
			InRange:    &opts.VisualMapInRange{Color: []string{"#0ea5e9", "#22c55e", "#ef4444"}},
		}),
	)
	hm.SetXAxis(labels(taus)).AddSeries("log2 rop", items)
	return hm
}

// BetaProfile plots, for every β, the cheapest rop over all τ.
func BetaProfile(title string, samples []Sample) *charts.Line {
	betas := axis(samples, func(p estimator.Point) int { return p.Beta })
	minima := make([]float64, len(betas))
	for i := range minima {
		minima[i] = math.Inf(1)
	}
	for _, s := range samples {
		i, _ := slices.BinarySearch(betas, s.Point.Beta)
		minima[i] = math.Min(minima[i], s.Rop)
	}

	items := make([]opts.LineData, len(betas))
	for i, v := range minima {
		if math.IsInf(v, 1) {
			items[i] = opts.LineData{Value: "-"}
			continue
		}
		items[i] = opts.LineData{Value: math.Round(v*100) / 100}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "400px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "β"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "log2 rop", Type: "value"}),
	)
	line.SetXAxis(labels(betas)).AddSeries("min over τ", items)
	return line
}

// Render writes a page with the search surface and the β profile.
func Render(w io.Writer, title string, samples []Sample, best estimator.CostReport) error {
	page := components.NewPage().SetPageTitle(title)
	page.AddCharts(
		SearchSurface(title, samples, best),
		BetaProfile(title+" (cheapest τ per β)", samples),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	return nil
}
