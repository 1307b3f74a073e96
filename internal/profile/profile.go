// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package profile records pprof profiles around long parameter searches.
package profile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
	"time"
)

// Config names the profile files to write; empty names are skipped.
type Config struct {
	CPUProfile   string
	MemProfile   string
	BlockProfile string
	MutexProfile string
}

// Enabled reports whether any profile is requested.
func (c Config) Enabled() bool {
	return c.CPUProfile != "" || c.MemProfile != "" || c.BlockProfile != "" || c.MutexProfile != ""
}

// Profiler wraps a profiling session.
type Profiler struct {
	config  Config
	cpuFile *os.File
	start   time.Time
	log     *slog.Logger
}

// New creates a profiler; a nil logger means slog.Default().
func New(config Config, log *slog.Logger) *Profiler {
	if log == nil {
		log = slog.Default()
	}
	return &Profiler{config: config, log: log}
}

// Start begins CPU profiling and enables the block and mutex samplers that
// were requested.
func (p *Profiler) Start() error {
	p.start = time.Now()

	if p.config.BlockProfile != "" {
		runtime.SetBlockProfileRate(1)
	}
	if p.config.MutexProfile != "" {
		runtime.SetMutexProfileFraction(1)
	}
	if p.config.CPUProfile != "" {
		f, err := os.Create(p.config.CPUProfile)
		if err != nil {
			return fmt.Errorf("create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("start CPU profile: %w", err)
		}
		p.cpuFile = f
	}
	return nil
}

// Stop ends the session and writes every requested profile. It attempts all
// of them and returns the joined errors.
func (p *Profiler) Stop() error {
	var errs []error
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := p.cpuFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close CPU profile: %w", err))
		}
		p.cpuFile = nil
		p.log.Info("profile written", "kind", "cpu", "path", p.config.CPUProfile)
	}

	if p.config.MemProfile != "" {
		runtime.GC()
		errs = append(errs, p.write("heap", p.config.MemProfile))
	}
	if p.config.BlockProfile != "" {
		errs = append(errs, p.write("block", p.config.BlockProfile))
		runtime.SetBlockProfileRate(0)
	}
	if p.config.MutexProfile != "" {
		errs = append(errs, p.write("mutex", p.config.MutexProfile))
		runtime.SetMutexProfileFraction(0)
	}

	p.log.Info("profiling done", "duration", time.Since(p.start))
	return errors.Join(errs...)
}

func (p *Profiler) write(kind, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s profile: %w", kind, err)
	}
	defer f.Close()
	if err := pprof.Lookup(kind).WriteTo(f, 0); err != nil {
		return fmt.Errorf("write %s profile: %w", kind, err)
	}
	p.log.Info("profile written", "kind", kind, "path", path)
	return nil
}

// MemStats returns current memory statistics.
func MemStats() runtime.MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m
}
