// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// keyedMutex serializes callers per record id.  Entries exist only while a
// caller holds or waits for the id.
type keyedMutex struct {
	mu      sync.Mutex
	mutexes map[uuid.UUID]*cntMutex
}

type cntMutex struct {
	sync.Mutex
	cnt int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{mutexes: make(map[uuid.UUID]*cntMutex)}
}

// lock blocks until id is available.
func (k *keyedMutex) lock(id uuid.UUID) {
	k.mu.Lock()
	mtx, ok := k.mutexes[id]
	if ok {
		mtx.cnt++
	} else {
		mtx = &cntMutex{cnt: 1}
		k.mutexes[id] = mtx
	}
	k.mu.Unlock()

	mtx.Lock()
}

// unlock releases id.  It is a run-time error if id is not locked.
func (k *keyedMutex) unlock(id uuid.UUID) {
	k.mu.Lock()
	mtx, ok := k.mutexes[id]
	if !ok {
		panic(fmt.Sprintf("double unlock for %v", id))
	}
	mtx.cnt--
	if mtx.cnt == 0 {
		delete(k.mutexes, id)
	}
	k.mu.Unlock()

	mtx.Unlock()
}

// held returns how many callers hold or wait for id.
func (k *keyedMutex) held(id uuid.UUID) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if mtx, ok := k.mutexes[id]; ok {
		return mtx.cnt
	}
	return 0
}
