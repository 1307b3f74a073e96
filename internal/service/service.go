// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package service turns estimate requests into cached cost reports. It is
// shared by the HTTP server, the queue worker and the command-line tool.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/luxfi/estimator"
	"github.com/luxfi/estimator/internal/storage"
)

// ErrBadRequest marks requests that can never be estimated.
var ErrBadRequest = errors.New("bad request")

// Request asks for one estimate. Exactly one of Set and Params names the
// LWE instance. A hybrid decoding request with both Tau and Beta evaluates
// that point; otherwise the (τ, β) search runs.
type Request struct {
	Attack estimator.Attack         `json:"attack"`
	Set    string                   `json:"set,omitempty"`
	Params *estimator.LWEParameters `json:"params,omitempty"`
	Model  string                   `json:"model,omitempty"`
	// MITM defaults to true.
	MITM *bool `json:"mitm,omitempty"`

	Tau  *int `json:"tau,omitempty"`
	Beta *int `json:"beta,omitempty"`

	SecBits      float64                 `json:"secbits,omitempty"`
	GivenSamples bool                    `json:"given_samples,omitempty"`
	Grid         *estimator.TwoPhaseGrid `json:"grid,omitempty"`
}

// Resolve returns the LWE instance the request names.
func (r Request) Resolve() (estimator.LWEParameters, error) {
	switch {
	case r.Set != "" && r.Params != nil:
		return estimator.LWEParameters{}, fmt.Errorf("%w: both set and params given", ErrBadRequest)
	case r.Set != "":
		ps, ok := estimator.GetParameterSet(r.Set)
		if !ok {
			return estimator.LWEParameters{}, fmt.Errorf("%w: unknown parameter set %q", ErrBadRequest, r.Set)
		}
		return ps.Params, nil
	case r.Params != nil:
		if err := r.Params.Validate(); err != nil {
			return estimator.LWEParameters{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		return *r.Params, nil
	default:
		return estimator.LWEParameters{}, fmt.Errorf("%w: no parameter set or params", ErrBadRequest)
	}
}

// Normalize fills the defaults and replaces a named set by its parameters so
// equal requests encode equally.
func (r Request) Normalize() (Request, error) {
	if r.Attack == "" {
		r.Attack = estimator.AttackHybridDecoding
	}
	if r.Attack != estimator.AttackHybridDecoding && r.Attack != estimator.AttackHybridDual {
		return Request{}, fmt.Errorf("%w: unknown attack %q", ErrBadRequest, r.Attack)
	}
	model, err := estimator.ModelByName(r.Model)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	r.Model = model.Name()
	if r.MITM == nil {
		mitm := true
		r.MITM = &mitm
	}
	params, err := r.Resolve()
	if err != nil {
		return Request{}, err
	}
	r.Set, r.Params = "", &params

	if (r.Tau == nil) != (r.Beta == nil) {
		return Request{}, fmt.Errorf("%w: tau and beta go together", ErrBadRequest)
	}
	if r.Attack == estimator.AttackHybridDual {
		r.Tau, r.Beta, r.SecBits, r.GivenSamples, r.Grid = nil, nil, 0, false, nil
	}
	if r.Tau != nil {
		r.SecBits, r.GivenSamples, r.Grid = 0, false, nil
	}
	return r, nil
}

// Handle is the cache key of the normalized request.
func (r Request) Handle() (storage.Handle, error) {
	n, err := r.Normalize()
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	return storage.ComputeHandle(data), nil
}

// Options tune the searches a Service runs.
type Options struct {
	Workers        int
	MaxEvaluations int
	Timeout        time.Duration
	Logger         *slog.Logger
}

// Result is a served estimate.
type Result struct {
	Handle storage.Handle       `json:"handle"`
	Cached bool                 `json:"cached"`
	Report estimator.CostReport `json:"report"`
}

// Service estimates requests and caches the reports.
type Service struct {
	store storage.Storage
	opts  Options
	log   *slog.Logger
}

// New returns a service caching in store.
func New(store storage.Storage, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, opts: opts, log: log}
}

// Estimate serves req from the cache or computes and stores it.
func (s *Service) Estimate(ctx context.Context, req Request) (Result, error) {
	norm, err := req.Normalize()
	if err != nil {
		return Result{}, err
	}
	handle, err := norm.Handle()
	if err != nil {
		return Result{}, err
	}

	if r, err := s.Report(ctx, handle); err == nil {
		s.log.Debug("estimate served from cache", "handle", handle)
		return Result{Handle: handle, Cached: true, Report: r}, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Result{}, err
	}

	start := time.Now()
	report, err := s.compute(ctx, norm)
	if err != nil {
		return Result{}, err
	}
	s.log.Info("estimate computed", "attack", norm.Attack, "params", norm.Params.String(),
		"rop", report.Rop.String(), "elapsed", time.Since(start))

	data, err := json.Marshal(report)
	if err != nil {
		return Result{}, fmt.Errorf("encode report: %w", err)
	}
	if err := s.store.Put(ctx, handle, data); err != nil {
		s.log.Warn("cache store failed", "handle", handle, "err", err)
	}
	return Result{Handle: handle, Report: report}, nil
}

// Report loads a cached report.
func (s *Service) Report(ctx context.Context, handle storage.Handle) (estimator.CostReport, error) {
	data, err := s.store.Load(ctx, handle)
	if err != nil {
		return estimator.CostReport{}, err
	}
	var r estimator.CostReport
	if err := json.Unmarshal(data, &r); err != nil {
		return estimator.CostReport{}, fmt.Errorf("decode report %s: %w", handle, err)
	}
	return r, nil
}

func (s *Service) compute(ctx context.Context, req Request) (estimator.CostReport, error) {
	model, err := estimator.ModelByName(req.Model)
	if err != nil {
		return estimator.CostReport{}, err
	}
	params := *req.Params
	mitm := *req.MITM

	if req.Attack == estimator.AttackHybridDual {
		if s.opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
			defer cancel()
		}
		cfg := estimator.DefaultDualConfig()
		cfg.MITM = mitm
		return cfg.Estimate(ctx, params, model)
	}
	if req.Tau != nil {
		return estimator.HybridDecoding(params, estimator.AttackParameters{
			Tau: *req.Tau, Beta: *req.Beta, MITM: mitm, Model: model,
		})
	}

	o := &estimator.Optimizer{
		Strategy:       estimator.DefaultGrid(),
		Model:          model,
		MITM:           mitm,
		SecBits:        req.SecBits,
		MaxEvaluations: s.opts.MaxEvaluations,
		Timeout:        s.opts.Timeout,
		Workers:        s.opts.Workers,
		Logger:         s.log,
	}
	if req.Grid != nil {
		o.Strategy = *req.Grid
	}
	if req.GivenSamples {
		o.Samples = estimator.SamplesGiven
	}
	return o.Search(ctx, params)
}
