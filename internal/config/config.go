// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads the estimator services' settings from an optional
// .env file and ESTIMATOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the settings shared by the commands.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	QueueName     string

	// StoreKind is memory, file or leveldb.
	StoreKind       string
	StorePath       string
	StoreCapacityMB int64

	Workers        int
	SearchWorkers  int
	SearchTimeout  time.Duration
	MaxEvaluations int
	LogLevel       slog.Level
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		MetricsAddr:     ":9090",
		RedisAddr:       "localhost:6379",
		QueueName:       "default",
		StoreKind:       "memory",
		StorePath:       "/tmp/estimator-reports",
		StoreCapacityMB: 256,
		Workers:         4,
		SearchWorkers:   1,
		SearchTimeout:   10 * time.Minute,
		MaxEvaluations:  100000,
		LogLevel:        slog.LevelInfo,
	}
}

// Load reads envFile when it exists, then applies the environment on top of
// the defaults. Variables already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a variable lookup.
func FromEnv(getenv func(string) string) (Config, error) {
	c := Default()
	var errs []error
	str := func(name string, dst *string) {
		if v := getenv("ESTIMATOR_" + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := getenv("ESTIMATOR_" + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("ESTIMATOR_%s: %w", name, err))
				return
			}
			*dst = n
		}
	}

	str("HTTP_ADDR", &c.HTTPAddr)
	str("METRICS_ADDR", &c.MetricsAddr)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPassword)
	num("REDIS_DB", &c.RedisDB)
	str("QUEUE", &c.QueueName)
	str("STORE", &c.StoreKind)
	str("STORE_PATH", &c.StorePath)
	num("WORKERS", &c.Workers)
	num("SEARCH_WORKERS", &c.SearchWorkers)
	num("MAX_EVALUATIONS", &c.MaxEvaluations)

	var capacity int
	if v := getenv("ESTIMATOR_STORE_CAPACITY_MB"); v != "" {
		num("STORE_CAPACITY_MB", &capacity)
		c.StoreCapacityMB = int64(capacity)
	}
	if v := getenv("ESTIMATOR_SEARCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ESTIMATOR_SEARCH_TIMEOUT: %w", err))
		} else {
			c.SearchTimeout = d
		}
	}
	if v := getenv("ESTIMATOR_LOG_LEVEL"); v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(strings.ToUpper(v))); err != nil {
			errs = append(errs, fmt.Errorf("ESTIMATOR_LOG_LEVEL: %w", err))
		}
	}

	switch c.StoreKind {
	case "memory", "file", "leveldb":
	default:
		errs = append(errs, fmt.Errorf("ESTIMATOR_STORE: unknown kind %q", c.StoreKind))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("ESTIMATOR_WORKERS: need at least one worker, got %d", c.Workers))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Logger returns a text logger on stderr at the configured level.
func (c Config) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.LogLevel}))
}
