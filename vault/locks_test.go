// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	a, b := uuid.New(), uuid.New()

	k.lock(a)
	// Another id is independent.
	k.lock(b)
	k.unlock(b)

	acquired := make(chan struct{})
	go func() {
		k.lock(a)
		close(acquired)
		k.unlock(a)
	}()
	select {
	case <-acquired:
		t.Fatal("second holder acquired a locked id")
	case <-time.After(20 * time.Millisecond):
	}
	require.Equal(t, 2, k.held(a))
	k.unlock(a)
	<-acquired

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k.lock(a)
			counter++
			k.unlock(a)
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)
	require.Zero(t, k.held(a))
	require.Empty(t, k.mutexes)

	require.Panics(t, func() { k.unlock(a) })
}
