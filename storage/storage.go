// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package storage persists records as one file per record in a directory.
//
// The base directory must already exist.  The store never creates it and
// reports a missing directory as StorageUnavailable.  Every write replaces the
// record file atomically.
package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/decred/keyvault/errors"
	"github.com/google/uuid"
)

// Codec converts records of type T to and from their file contents.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(b []byte) (T, error)
	ID(v T) uuid.UUID
	SetID(v T, id uuid.UUID)
}

// DefaultCacheSize is the number of encoded records kept in memory.
const DefaultCacheSize = 64

const filePerm = 0600

// FileStore stores records of type T under dir as <uuid>.<ext>.
type FileStore[T any] struct {
	dir   string
	ext   string
	codec Codec[T]
	cache *cache

	// mu serializes writers so that existence checks and renames are not
	// interleaved.
	mu sync.Mutex
}

// New returns a store of records in dir.  A cacheSize of zero disables the
// read cache.
func New[T any](dir, ext string, codec Codec[T], cacheSize int) (*FileStore[T], error) {
	if err := checkDir(dir); err != nil {
		return nil, errors.E(errors.Op("storage.New"), err)
	}
	return &FileStore[T]{
		dir:   dir,
		ext:   ext,
		codec: codec,
		cache: newCache(cacheSize),
	}, nil
}

// Dir returns the directory of the store.
func (s *FileStore[T]) Dir() string {
	return s.dir
}

func (s *FileStore[T]) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+"."+s.ext)
}

func (s *FileStore[T]) exists(id uuid.UUID) (bool, error) {
	_, err := os.Stat(s.path(id))
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}

func (s *FileStore[T]) write(id uuid.UUID, v T) error {
	b, err := s.codec.Encode(v)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(s.path(id), b, filePerm); err != nil {
		s.cache.remove(id)
		return err
	}
	s.cache.put(id, b)
	return nil
}

// Add persists a new record and returns its id.  A record without an id is
// assigned a fresh one.  An explicit id that is already stored fails with
// Exist.
func (s *FileStore[T]) Add(v T) (uuid.UUID, error) {
	const op errors.Op = "storage.Add"
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.codec.ID(v)
	if id == uuid.Nil {
		id = uuid.New()
		s.codec.SetID(v, id)
	}
	exists, err := s.exists(id)
	if err != nil {
		return uuid.Nil, errors.E(op, errors.IO, err)
	}
	if exists {
		return uuid.Nil, errors.E(op, errors.Exist, errors.Field(id.String()))
	}
	if err := s.write(id, v); err != nil {
		return uuid.Nil, errors.E(op, err)
	}
	log.Debugf("Added %s record %v", s.ext, id)
	return id, nil
}

// Get reads the record with the given id.
func (s *FileStore[T]) Get(id uuid.UUID) (T, error) {
	const op errors.Op = "storage.Get"
	var zero T
	gen := s.cache.generation()
	b, ok := s.cache.get(id)
	if !ok {
		var err error
		b, err = os.ReadFile(s.path(id))
		if err != nil {
			if os.IsNotExist(err) {
				if err := checkDir(s.dir); err != nil {
					return zero, errors.E(op, err)
				}
				return zero, errors.E(op, errors.NotExist, errors.Field(id.String()))
			}
			return zero, errors.E(op, errors.IO, err)
		}
	}
	v, err := s.codec.Decode(b)
	if err != nil {
		return zero, errors.E(op, err)
	}
	if !ok {
		s.cache.fill(id, b, gen)
	}
	return v, nil
}

// Update replaces a stored record.  Unknown ids fail with NotExist.
func (s *FileStore[T]) Update(v T) error {
	const op errors.Op = "storage.Update"
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.codec.ID(v)
	exists, err := s.exists(id)
	if err != nil {
		return errors.E(op, errors.IO, err)
	}
	if !exists {
		if err := checkDir(s.dir); err != nil {
			return errors.E(op, err)
		}
		return errors.E(op, errors.NotExist, errors.Field(id.String()))
	}
	if err := s.write(id, v); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// Remove deletes a stored record.
func (s *FileStore[T]) Remove(id uuid.UUID) error {
	const op errors.Op = "storage.Remove"
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.remove(id)
	err := os.Remove(s.path(id))
	switch {
	case err == nil:
		log.Debugf("Removed %s record %v", s.ext, id)
		return nil
	case os.IsNotExist(err):
		if err := checkDir(s.dir); err != nil {
			return errors.E(op, err)
		}
		return errors.E(op, errors.NotExist, errors.Field(id.String()))
	default:
		return errors.E(op, errors.IO, err)
	}
}

// IDs returns the ids of all stored records in lexical order.  Files not
// named after a record id are ignored.
func (s *FileStore[T]) IDs() ([]uuid.UUID, error) {
	const op errors.Op = "storage.IDs"
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E(op, errors.StorageUnavailable, errors.Field(s.dir), err)
		}
		return nil, errors.E(op, errors.IO, err)
	}
	suffix := "." + s.ext
	var ids []uuid.UUID
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(name, suffix))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// List reads every stored record.  A record that fails to decode fails the
// whole listing.
func (s *FileStore[T]) List() ([]T, error) {
	const op errors.Op = "storage.List"
	ids, err := s.IDs()
	if err != nil {
		return nil, errors.E(op, err)
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		v, err := s.Get(id)
		if err != nil {
			// Removed by a concurrent writer.
			if errors.Is(errors.NotExist, err) {
				continue
			}
			return nil, errors.E(op, err)
		}
		out = append(out, v)
	}
	return out, nil
}
