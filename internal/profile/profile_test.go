// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/luxfi/estimator"
)

func TestProfiler(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		CPUProfile:   filepath.Join(dir, "cpu.prof"),
		MemProfile:   filepath.Join(dir, "mem.prof"),
		BlockProfile: filepath.Join(dir, "block.prof"),
	}
	if !cfg.Enabled() {
		t.Fatal("config with files reports disabled")
	}
	if (Config{}).Enabled() {
		t.Fatal("empty config reports enabled")
	}

	p := New(cfg, nil)
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := estimator.HybridDual(t.Context(), estimator.Example64.Params, nil); err != nil {
		t.Fatalf("workload: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	for _, path := range []string{cfg.CPUProfile, cfg.MemProfile, cfg.BlockProfile} {
		st, err := os.Stat(path)
		if err != nil {
			t.Fatalf("profile %s: %v", path, err)
		}
		if st.Size() == 0 {
			t.Errorf("profile %s is empty", path)
		}
	}

	if MemStats().NumGC == 0 {
		t.Error("expected at least one GC after the heap profile")
	}
}

func TestProfilerBadPath(t *testing.T) {
	p := New(Config{CPUProfile: filepath.Join(t.TempDir(), "missing", "cpu.prof")}, nil)
	if err := p.Start(); err == nil {
		t.Fatal("expected an error for an unwritable path")
	}
}
