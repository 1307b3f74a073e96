// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Command estimator-worker runs queued estimate jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/estimator/internal/config"
	"github.com/luxfi/estimator/internal/queue"
	"github.com/luxfi/estimator/internal/service"
	"github.com/luxfi/estimator/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	var (
		numWorkers    = flag.Int("workers", cfg.Workers, "number of worker goroutines")
		searchWorkers = flag.Int("search-workers", cfg.SearchWorkers, "goroutines per search")
		redisAddr     = flag.String("redis", cfg.RedisAddr, "Redis address")
		redisDB       = flag.Int("redis-db", cfg.RedisDB, "Redis database number")
		queueName     = flag.String("queue", cfg.QueueName, "queue name")
		storeKind     = flag.String("store", cfg.StoreKind, "report store: memory, file or leveldb")
		storePath     = flag.String("storage", cfg.StorePath, "report store path")
		metricsAddr   = flag.String("metrics", cfg.MetricsAddr, "metrics server address")
	)
	flag.Parse()

	log.Printf("Estimator Worker starting...")
	log.Printf("  Workers: %d", *numWorkers)
	log.Printf("  Redis: %s", *redisAddr)
	log.Printf("  Store: %s %s", *storeKind, *storePath)
	log.Printf("  Metrics: %s", *metricsAddr)

	// Queue.
	q, err := queue.NewRedisQueue(queue.RedisConfig{
		Addr:     *redisAddr,
		Password: cfg.RedisPassword,
		DB:       *redisDB,
	}, *queueName)
	if err != nil {
		return fmt.Errorf("create queue: %w", err)
	}
	defer q.Close()

	// Report store.
	store, err := storage.Open(*storeKind, *storePath, cfg.StoreCapacityMB)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close()

	svc := service.New(store, service.Options{
		Workers:        *searchWorkers,
		MaxEvaluations: cfg.MaxEvaluations,
		Timeout:        cfg.SearchTimeout,
		Logger:         cfg.Logger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewWorkerPool(*numWorkers, q, svc)
	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}

	// Metrics server.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		pool.WriteMetrics(w)
	})

	server := &http.Server{
		Addr:    *metricsAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("Metrics server starting on %s", *metricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Printf("Received signal: %s", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics server shutdown error: %v", err)
	}

	if err := pool.Stop(30 * time.Second); err != nil {
		log.Printf("Worker pool shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
