// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/estimator/internal/queue"
	"github.com/luxfi/estimator/internal/service"
)

// WorkerPool runs queued estimate jobs.
type WorkerPool struct {
	numWorkers int
	queue      queue.Queue
	svc        *service.Service

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running atomic.Bool

	successCount atomic.Int64
	failureCount atomic.Int64
	cachedCount  atomic.Int64
	busy         atomic.Int64
}

// NewWorkerPool returns a stopped pool of n workers.
func NewWorkerPool(n int, q queue.Queue, svc *service.Service) *WorkerPool {
	return &WorkerPool{numWorkers: n, queue: q, svc: svc}
}

// Start starts the worker pool.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.running.Load() {
		return errors.New("pool already running")
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.running.Store(true)

	log.Printf("Starting %d workers", p.numWorkers)

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	return nil
}

// Stop cancels running estimates and waits for the workers to exit.
func (p *WorkerPool) Stop(timeout time.Duration) error {
	if !p.running.Load() {
		return nil
	}

	log.Println("Stopping worker pool...")
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Worker pool stopped")
	case <-time.After(timeout):
		return errors.New("shutdown timeout")
	}

	p.running.Store(false)
	return nil
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := p.queue.Pop(ctx)
		switch {
		case err == nil:
			p.processJob(ctx, id, job)
		case errors.Is(err, queue.ErrQueueEmpty), errors.Is(err, queue.ErrJobNotFound):
		case ctx.Err() != nil:
			return
		default:
			log.Printf("Worker %d: failed to pop job: %v", id, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (p *WorkerPool) fail(ctx context.Context, job *queue.Job, err error) {
	job.Status = queue.StatusFailed
	job.Error = err.Error()
	if err := p.queue.Update(ctx, job); err != nil {
		log.Printf("failed to record failure of job %s: %v", job.ID, err)
	}
	p.failureCount.Add(1)
}

func (p *WorkerPool) processJob(ctx context.Context, workerID int, job *queue.Job) {
	p.busy.Add(1)
	defer p.busy.Add(-1)

	log.Printf("Worker %d: processing job %s", workerID, job.ID)

	job.Status = queue.StatusProcessing
	if err := p.queue.Update(ctx, job); err != nil {
		log.Printf("Worker %d: failed to update job status: %v", workerID, err)
	}

	var req service.Request
	if err := json.Unmarshal(job.Request, &req); err != nil {
		p.fail(ctx, job, fmt.Errorf("decode request: %w", err))
		return
	}

	start := time.Now()
	res, err := p.svc.Estimate(ctx, req)
	if err != nil {
		// record the failure even when shutdown interrupted the search
		if ctx.Err() != nil {
			ctx = context.WithoutCancel(ctx)
		}
		p.fail(ctx, job, err)
		log.Printf("Worker %d: job %s failed: %v", workerID, job.ID, err)
		return
	}

	job.Status = queue.StatusCompleted
	job.ReportHandle = string(res.Handle)
	if err := p.queue.Update(ctx, job); err != nil {
		log.Printf("Worker %d: failed to update job result: %v", workerID, err)
	}

	p.successCount.Add(1)
	if res.Cached {
		p.cachedCount.Add(1)
	}
	log.Printf("Worker %d: job %s completed in %v (rop %s)", workerID, job.ID,
		time.Since(start).Round(time.Millisecond), res.Report.Rop)
}

// WriteMetrics writes the pool counters in the Prometheus text format.
func (p *WorkerPool) WriteMetrics(w io.Writer) {
	fmt.Fprintf(w, "# HELP estimator_jobs_total Total estimate jobs\n")
	fmt.Fprintf(w, "# TYPE estimator_jobs_total counter\n")
	fmt.Fprintf(w, "estimator_jobs_total{status=\"success\"} %d\n", p.successCount.Load())
	fmt.Fprintf(w, "estimator_jobs_total{status=\"failure\"} %d\n", p.failureCount.Load())
	fmt.Fprintf(w, "# HELP estimator_jobs_cached_total Jobs served from the report cache\n")
	fmt.Fprintf(w, "# TYPE estimator_jobs_cached_total counter\n")
	fmt.Fprintf(w, "estimator_jobs_cached_total %d\n", p.cachedCount.Load())
	fmt.Fprintf(w, "# HELP estimator_workers_busy Workers running an estimate\n")
	fmt.Fprintf(w, "# TYPE estimator_workers_busy gauge\n")
	fmt.Fprintf(w, "estimator_workers_busy %d\n", p.busy.Load())
}
