// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package storage caches encoded cost reports under the hash of the request
// that produced them.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Common errors.
var (
	ErrNotFound      = errors.New("report not found")
	ErrStorageFull   = errors.New("storage capacity exceeded")
	ErrInvalidHandle = errors.New("invalid report handle")
)

// Handle identifies a cached report: the hex SHA-256 of its canonical request.
type Handle string

// ComputeHandle hashes a canonical request encoding.
func ComputeHandle(request []byte) Handle {
	hash := sha256.Sum256(request)
	return Handle(hex.EncodeToString(hash[:]))
}

// Valid reports whether h has the shape of a ComputeHandle result.
func (h Handle) Valid() bool {
	if len(h) != 2*sha256.Size {
		return false
	}
	_, err := hex.DecodeString(string(h))
	return err == nil
}

// Storage defines the interface of a report cache.
type Storage interface {
	// Put saves data under handle, replacing any previous value.
	Put(ctx context.Context, handle Handle, data []byte) error
	// Load retrieves the data stored under handle.
	Load(ctx context.Context, handle Handle) ([]byte, error)
	// Delete removes a report.
	Delete(ctx context.Context, handle Handle) error
	// Exists checks if a report is cached.
	Exists(ctx context.Context, handle Handle) (bool, error)
	// List returns every cached handle in sorted order.
	List(ctx context.Context) ([]Handle, error)
	// Close releases the storage.
	Close() error
}

func checkHandle(handle Handle) error {
	if !handle.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}
	return nil
}

// MemoryStorage keeps reports in a map bounded by a byte capacity.
type MemoryStorage struct {
	mu       sync.RWMutex
	data     map[Handle][]byte
	capacity int64
	size     int64
}

// NewMemoryStorage creates an in-memory cache holding at most capacityMB
// megabytes of report data.
func NewMemoryStorage(capacityMB int64) *MemoryStorage {
	return &MemoryStorage{
		data:     make(map[Handle][]byte),
		capacity: capacityMB * 1024 * 1024,
	}
}

func (s *MemoryStorage) Put(ctx context.Context, handle Handle, data []byte) error {
	if err := checkHandle(handle); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old := int64(len(s.data[handle]))
	if s.size-old+int64(len(data)) > s.capacity {
		return ErrStorageFull
	}
	s.data[handle] = append([]byte(nil), data...)
	s.size += int64(len(data)) - old
	return nil
}

func (s *MemoryStorage) Load(ctx context.Context, handle Handle) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.data[handle]
	if !exists {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStorage) Delete(ctx context.Context, handle Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, exists := s.data[handle]
	if !exists {
		return ErrNotFound
	}
	s.size -= int64(len(data))
	delete(s.data, handle)
	return nil
}

func (s *MemoryStorage) Exists(ctx context.Context, handle Handle) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[handle]
	return exists, nil
}

func (s *MemoryStorage) List(ctx context.Context) ([]Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handles := make([]Handle, 0, len(s.data))
	for h := range s.data {
		handles = append(handles, h)
	}
	slices.Sort(handles)
	return handles, nil
}

func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[Handle][]byte)
	s.size = 0
	return nil
}

// FileStorage keeps one JSON file per report under a sharded directory.
type FileStorage struct {
	baseDir string
}

// NewFileStorage creates a file-based cache rooted at baseDir.
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStorage{baseDir: baseDir}, nil
}

func (s *FileStorage) path(handle Handle) string {
	h := string(handle)
	// Shard by the first two hex digits.
	return filepath.Join(s.baseDir, h[:2], h+".json")
}

func (s *FileStorage) Put(ctx context.Context, handle Handle, data []byte) error {
	if err := checkHandle(handle); err != nil {
		return err
	}
	path := s.path(handle)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create shard dir: %w", err)
	}

	// Write atomically via temp file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (s *FileStorage) Load(ctx context.Context, handle Handle) ([]byte, error) {
	if !handle.Valid() {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(s.path(handle))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func (s *FileStorage) Delete(ctx context.Context, handle Handle) error {
	if !handle.Valid() {
		return ErrNotFound
	}
	if err := os.Remove(s.path(handle)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (s *FileStorage) Exists(ctx context.Context, handle Handle) (bool, error) {
	if !handle.Valid() {
		return false, nil
	}
	_, err := os.Stat(s.path(handle))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat file: %w", err)
}

func (s *FileStorage) List(ctx context.Context) ([]Handle, error) {
	matches, err := filepath.Glob(filepath.Join(s.baseDir, "??", "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	var handles []Handle
	for _, m := range matches {
		h := Handle(strings.TrimSuffix(filepath.Base(m), ".json"))
		if h.Valid() {
			handles = append(handles, h)
		}
	}
	slices.Sort(handles)
	return handles, nil
}

func (s *FileStorage) Close() error {
	return nil
}

// Open returns the storage of the given kind: "memory", "file" or "leveldb".
// path is the directory of the file and leveldb kinds.
func Open(kind, path string, capacityMB int64) (Storage, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStorage(capacityMB), nil
	case "file":
		s, err := NewFileStorage(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "leveldb":
		s, err := NewLevelDBStorage(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage kind %q", kind)
	}
}
