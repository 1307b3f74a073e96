// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package server provides the estimator HTTP API.
//
// The server supports two modes:
// - Synchronous: POST /estimate computes (or serves from cache) and answers
// - Queued: POST /jobs enqueues a request for cmd/estimator-worker
//
// The gateway runs the queued mode only.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/luxfi/estimator"
	"github.com/luxfi/estimator/internal/queue"
	"github.com/luxfi/estimator/internal/service"
	"github.com/luxfi/estimator/internal/storage"
)

// Config holds server configuration
type Config struct {
	Address string
	// AsyncOnly disables the synchronous estimate endpoints.
	AsyncOnly bool
	// MaxBatch caps the requests of one POST /estimate/batch.
	MaxBatch int
}

// Server serves estimates over HTTP.
type Server struct {
	cfg   Config
	svc   *service.Service
	queue queue.Queue
	log   *slog.Logger
	start time.Time
}

// New creates a server. q may be nil, in which case the job endpoints are
// not mounted.
func New(cfg Config, svc *service.Service, q queue.Queue, log *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("server: nil service")
	}
	if cfg.AsyncOnly && q == nil {
		return nil, errors.New("server: async-only mode needs a queue")
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 32
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{cfg: cfg, svc: svc, queue: q, log: log, start: time.Now()}, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /models", s.handleModels)
	mux.HandleFunc("GET /params", s.handleParams)
	mux.HandleFunc("GET /params/{name}", s.handleParamSet)
	mux.HandleFunc("GET /reports/{handle}", s.handleReport)

	if !s.cfg.AsyncOnly {
		mux.HandleFunc("POST /estimate", s.handleEstimate)
		mux.HandleFunc("POST /estimate/batch", s.handleBatch)
	}

	if s.queue != nil {
		mux.HandleFunc("POST /jobs", s.handleSubmit)
		mux.HandleFunc("GET /jobs/{id}", s.handleJob)
	}

	// CORS middleware
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusOf maps an estimate error to an HTTP status.
func statusOf(err error) int {
	var limit *estimator.ResourceLimitError
	switch {
	case errors.Is(err, service.ErrBadRequest),
		errors.Is(err, estimator.ErrDomain),
		errors.Is(err, storage.ErrInvalidHandle):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, queue.ErrJobNotFound):
		return http.StatusNotFound
	case errors.As(err, &limit):
		if limit.Limit == "time" {
			return http.StatusServiceUnavailable
		}
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeRequest(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", service.ErrBadRequest, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":     "ok",
		"async_only": s.cfg.AsyncOnly,
		"queue":      s.queue != nil,
		"uptime":     time.Since(s.start).Round(time.Second).String(),
	}
	if s.queue != nil {
		n, err := s.queue.Len(r.Context())
		if err != nil {
			status["status"] = "degraded"
			status["queue_error"] = err.Error()
		} else {
			status["queue_depth"] = n
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"models": estimator.ModelNames()})
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, estimator.AllParameterSets())
}

func (s *Server) handleParamSet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ps, ok := estimator.GetParameterSet(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown parameter set: " + name})
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Report(r.Context(), storage.Handle(r.PathValue("handle")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req service.Request
	if err := decodeRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Estimate(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// BatchRequest is a request for several estimates at once.
type BatchRequest struct {
	Requests []service.Request `json:"requests"`
}

// BatchResult is a single result from the batch
type BatchResult struct {
	Index  int             `json:"index"`
	Result *service.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// BatchStats contains timing statistics
type BatchStats struct {
	Total       int     `json:"total"`
	Succeeded   int     `json:"succeeded"`
	Cached      int     `json:"cached"`
	TotalTimeMs float64 `json:"total_time_ms"`
}

// BatchResponse is the response from a batch of estimates
type BatchResponse struct {
	Results []BatchResult `json:"results"`
	Stats   BatchStats    `json:"stats"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	switch {
	case len(req.Requests) == 0:
		s.writeError(w, r, fmt.Errorf("%w: no requests provided", service.ErrBadRequest))
		return
	case len(req.Requests) > s.cfg.MaxBatch:
		s.writeError(w, r, fmt.Errorf("%w: %d requests exceed the batch limit %d",
			service.ErrBadRequest, len(req.Requests), s.cfg.MaxBatch))
		return
	}
	writeJSON(w, http.StatusOK, s.processBatch(r, req.Requests))
}

func (s *Server) processBatch(r *http.Request, reqs []service.Request) *BatchResponse {
	startTime := time.Now()
	resp := &BatchResponse{Results: make([]BatchResult, len(reqs))}

	for i, req := range reqs {
		result := BatchResult{Index: i}
		res, err := s.svc.Estimate(r.Context(), req)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Result = &res
			resp.Stats.Succeeded++
			if res.Cached {
				resp.Stats.Cached++
			}
		}
		resp.Results[i] = result
	}

	resp.Stats.Total = len(reqs)
	resp.Stats.TotalTimeMs = float64(time.Since(startTime).Microseconds()) / 1000
	return resp
}

// JobView is the public state of a queued job.
type JobView struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	ReportHandle string    `json:"report_handle,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func viewOf(job *queue.Job) JobView {
	return JobView{
		ID:           job.ID,
		Status:       job.Status.String(),
		ReportHandle: job.ReportHandle,
		Error:        job.Error,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req service.Request
	if err := decodeRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	norm, err := req.Normalize()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := json.Marshal(norm)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("encode request: %w", err))
		return
	}

	job := queue.NewJob(data)
	if err := s.queue.Push(r.Context(), job); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("job queued", "id", job.ID, "attack", norm.Attack)
	writeJSON(w, http.StatusAccepted, viewOf(job))
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.queue.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(job))
}
