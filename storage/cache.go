// Copyright (c) 2018-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"container/list"
	"sync"

	"github.com/google/uuid"
)

type cacheEntry struct {
	id   uuid.UUID
	data []byte
}

// cache is a least recently used map from record id to encoded record.
// Encoded bytes are kept rather than decoded records so that every Get
// returns a record the caller may freely modify.
//
// gen is incremented by every write and removal.  A reader that loaded a
// record from disk may only cache it if no write happened since it started.
type cache struct {
	mu    sync.Mutex
	m     map[uuid.UUID]*list.Element
	list  *list.List
	limit int
	gen   uint64
}

func newCache(limit int) *cache {
	return &cache{
		m:     make(map[uuid.UUID]*list.Element, limit),
		list:  list.New(),
		limit: limit,
	}
}

// generation returns the current write generation.
func (c *cache) generation() uint64 {
	defer c.mu.Unlock()
	c.mu.Lock()
	return c.gen
}

// put stores freshly written data under id, replacing any previous value and
// marking it most recently used.
func (c *cache) put(id uuid.UUID, data []byte) {
	defer c.mu.Unlock()
	c.mu.Lock()

	c.gen++
	c.store(id, data)
}

// fill caches data read from disk, unless a write or removal happened after
// gen was observed.  It reports whether data was cached.
func (c *cache) fill(id uuid.UUID, data []byte, gen uint64) bool {
	defer c.mu.Unlock()
	c.mu.Lock()

	if c.gen != gen {
		return false
	}
	c.store(id, data)
	return true
}

// store inserts data with c.mu held.  The least recently used entry is
// evicted when the cache is full.
func (c *cache) store(id uuid.UUID, data []byte) {
	if c.limit <= 0 {
		return
	}
	if elem, ok := c.m[id]; ok {
		elem.Value.(*cacheEntry).data = data
		c.list.MoveToFront(elem)
		return
	}
	if len(c.m) >= c.limit {
		if elem := c.list.Back(); elem != nil {
			c.list.Remove(elem)
			delete(c.m, elem.Value.(*cacheEntry).id)
		}
	}
	c.m[id] = c.list.PushFront(&cacheEntry{id: id, data: data})
}

func (c *cache) get(id uuid.UUID) ([]byte, bool) {
	defer c.mu.Unlock()
	c.mu.Lock()

	elem, ok := c.m[id]
	if !ok {
		return nil, false
	}
	c.list.MoveToFront(elem)
	return elem.Value.(*cacheEntry).data, true
}

func (c *cache) remove(id uuid.UUID) {
	defer c.mu.Unlock()
	c.mu.Lock()

	c.gen++
	if elem, ok := c.m[id]; ok {
		c.list.Remove(elem)
		delete(c.m, id)
	}
}

func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}
