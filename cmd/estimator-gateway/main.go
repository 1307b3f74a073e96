// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Command estimator-gateway accepts estimate jobs and serves their reports.
// It never computes; cmd/estimator-worker drains the queue into the shared
// report store.
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
		redisAddr = flag.String("redis", cfg.RedisAddr, "Redis address")
		redisDB   = flag.Int("redis-db", cfg.RedisDB, "Redis database number")
		queueName = flag.String("queue", cfg.QueueName, "queue name")
		storePath = flag.String("storage", cfg.StorePath, "report directory shared with the workers")
		httpAddr  = flag.String("http", cfg.HTTPAddr, "HTTP API address")
	)
	flag.Parse()

	log.Printf("Estimator Gateway starting...")
	log.Printf("  Redis: %s", *redisAddr)
	log.Printf("  Storage: %s", *storePath)
	log.Printf("  HTTP: %s", *httpAddr)

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

	// Storage. Workers write reports here, so it must be a file store.
	store, err := storage.NewFileStorage(*storePath)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close()

	logger := cfg.Logger()
	srv, err := server.New(server.Config{Address: *httpAddr, AsyncOnly: true},
		service.New(store, service.Options{Logger: logger}), q, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	httpServer := &http.Server{
		Addr:         *httpAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server starting on %s", *httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Printf("Received signal: %s", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
