// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var reportPrefix = []byte("report/")

// LevelDBStorage keeps reports in a LevelDB database, keyed by
// "report/<handle>".
type LevelDBStorage struct {
	db *leveldb.DB
}

// NewLevelDBStorage opens or creates the database at path.
func NewLevelDBStorage(path string) (*LevelDBStorage, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDBStorage{db: db}, nil
}

func key(handle Handle) []byte {
	return append(append([]byte(nil), reportPrefix...), handle...)
}

func (s *LevelDBStorage) Put(ctx context.Context, handle Handle, data []byte) error {
	if err := checkHandle(handle); err != nil {
		return err
	}
	if err := s.db.Put(key(handle), data, nil); err != nil {
		return fmt.Errorf("leveldb put: %w", err)
	}
	return nil
}

func (s *LevelDBStorage) Load(ctx context.Context, handle Handle) ([]byte, error) {
	data, err := s.db.Get(key(handle), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leveldb get: %w", err)
	}
	return data, nil
}

func (s *LevelDBStorage) Delete(ctx context.Context, handle Handle) error {
	ok, err := s.Exists(ctx, handle)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if err := s.db.Delete(key(handle), nil); err != nil {
		return fmt.Errorf("leveldb delete: %w", err)
	}
	return nil
}

func (s *LevelDBStorage) Exists(ctx context.Context, handle Handle) (bool, error) {
	ok, err := s.db.Has(key(handle), nil)
	if err != nil {
		return false, fmt.Errorf("leveldb has: %w", err)
	}
	return ok, nil
}

// List walks the report prefix; LevelDB iterates keys in sorted order.
func (s *LevelDBStorage) List(ctx context.Context) ([]Handle, error) {
	iter := s.db.NewIterator(util.BytesPrefix(reportPrefix), nil)
	defer iter.Release()

	var handles []Handle
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		handles = append(handles, Handle(iter.Key()[len(reportPrefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("leveldb iterate: %w", err)
	}
	return handles, nil
}

func (s *LevelDBStorage) Close() error {
	return s.db.Close()
}
