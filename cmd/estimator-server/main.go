// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Estimator Server - HTTP front end for LWE hybrid attack estimates
//
// Provides:
// - Synchronous estimates with a content-addressed report cache
// - Parameter set and cost model catalogs
// - Optional queued jobs for cmd/estimator-worker
//
//	estimator-server -addr :8080 -store file -jobs
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
	"github.com/luxfi/estimator/server"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var (
		addr          = flag.String("addr", cfg.HTTPAddr, "HTTP server address")
		storeKind     = flag.String("store", cfg.StoreKind, "report store: memory, file or leveldb")
		storePath     = flag.String("storage", cfg.StorePath, "report store path")
		jobs          = flag.Bool("jobs", false, "Enable the queued job endpoints")
		redisAddr     = flag.String("redis", cfg.RedisAddr, "Redis address for -jobs")
		queueName     = flag.String("queue", cfg.QueueName, "queue name")
		searchWorkers = flag.Int("search-workers", cfg.SearchWorkers, "goroutines per search")
		batch         = flag.Int("batch", 32, "Maximum requests per batch")
	)
	flag.Parse()

	log.Printf("Estimator Server starting...")
	log.Printf("  Address: %s", *addr)
	log.Printf("  Store: %s %s", *storeKind, *storePath)
	log.Printf("  Jobs: %v", *jobs)
	if *jobs {
		log.Printf("  Redis: %s (queue %s)", *redisAddr, *queueName)
	}

	store, err := storage.Open(*storeKind, *storePath, cfg.StoreCapacityMB)
	if err != nil {
		log.Fatalf("Failed to open report store: %v", err)
	}
	defer store.Close()

	var q queue.Queue
	if *jobs {
		rq, err := queue.NewRedisQueue(queue.RedisConfig{
			Addr:     *redisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, *queueName)
		if err != nil {
			log.Fatalf("Failed to connect queue: %v", err)
		}
		defer rq.Close()
		q = rq
	}

	logger := cfg.Logger()
	svc := service.New(store, service.Options{
		Workers:        *searchWorkers,
		MaxEvaluations: cfg.MaxEvaluations,
		Timeout:        cfg.SearchTimeout,
		Logger:         logger,
	})

	srv, err := server.New(server.Config{Address: *addr, MaxBatch: *batch}, svc, q, logger)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Searches can run for minutes; the write timeout covers the search cap.
	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.SearchTimeout + 30*time.Second,
	}

	go func() {
		log.Printf("Estimator Server listening on %s", *addr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down Estimator Server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	fmt.Println("Estimator Server stopped")
}
