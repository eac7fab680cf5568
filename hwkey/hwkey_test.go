// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hwkey_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hwkey"
	"github.com/decred/keyvault/hwkey/apdu"
	"github.com/decred/keyvault/hwkey/hwkeytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(cmd *apdu.Command) ([]byte, uint16) {
	return cmd.Data, apdu.SWOK
}

func connect(t *testing.T, dev *hwkeytest.Device, opts *hwkey.Options) *hwkey.Handle {
	t.Helper()
	mgr := hwkeytest.NewManager()
	mgr.Attach("dev0", dev)
	h, err := hwkey.NewConnector(mgr, opts).Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestConnectNoDevice(t *testing.T) {
	c := hwkey.NewConnector(hwkeytest.NewManager(), nil)
	_, err := c.Connect(context.Background())
	require.True(t, errors.Is(errors.Unavailable, err), "%v", err)
}

func TestConnectTimeout(t *testing.T) {
	mgr := hwkeytest.NewManager()
	dev := hwkeytest.NewDevice(echo)
	mgr.Attach("dev0", dev)
	mgr.OpenGate = make(chan struct{})
	c := hwkey.NewConnector(mgr, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Connect(ctx)
	require.True(t, errors.Is(errors.Unavailable, err), "%v", err)

	// The abandoned open completes and is closed.
	close(mgr.OpenGate)
	require.Eventually(t, dev.Closed, time.Second, time.Millisecond)
}

func TestHandleShared(t *testing.T) {
	mgr := hwkeytest.NewManager()
	dev := hwkeytest.NewDevice(echo)
	mgr.Attach("dev0", dev)
	c := hwkey.NewConnector(mgr, nil)
	ctx := context.Background()

	h1, err := c.Connect(ctx)
	require.NoError(t, err)
	h2, err := c.Connect(ctx)
	require.NoError(t, err)
	require.Same(t, h1, h2)
	require.Equal(t, 1, mgr.Opens())

	require.NoError(t, h1.Close())
	require.False(t, dev.Closed())
	require.NoError(t, h2.Close())
	require.True(t, dev.Closed())
}

func TestExchangeChunked(t *testing.T) {
	tests := []struct {
		size   int
		known  bool
		frames int
	}{
		{1000, false, 4},
		{1000, true, 4},
		{510, true, 2},
		{765, true, 3},
		{255, true, 1},
	}
	for _, test := range tests {
		dev := hwkeytest.NewDevice(echo)
		if test.known {
			size := test.size
			dev.Length = func(*apdu.Command) int { return size }
		}
		h := connect(t, dev, nil)

		data := make([]byte, test.size)
		for i := range data {
			data[i] = byte(i * 7)
		}
		cmd := &apdu.Command{CLA: 0xe0, INS: 0x04, P1: 0x00, Data: data}
		resp, err := h.Exchange(context.Background(), cmd)
		require.NoError(t, err, "size %d", test.size)
		require.Equal(t, data, resp, "size %d", test.size)

		frames := dev.Frames()
		require.Len(t, frames, test.frames, "size %d", test.size)
		for i, f := range frames {
			wantP1 := byte(0x80)
			if i == 0 {
				wantP1 = 0x00
			}
			require.Equal(t, wantP1, f[2], "frame %d", i)
			require.LessOrEqual(t, len(f)-apdu.HeaderLen, apdu.MaxChunk)
		}
		cmds := dev.Commands()
		require.Len(t, cmds, 1)
		require.True(t, bytes.Equal(cmds[0].Data, data))
	}
}

func TestExchangeStatus(t *testing.T) {
	tests := []struct {
		sw   uint16
		kind errors.Kind
	}{
		{apdu.SWConditionsNotMet, errors.Declined},
		{apdu.SWClaNotSupported, errors.WrongApp},
		{apdu.SWInvalidData, errors.CommError},
	}
	for _, test := range tests {
		sw := test.sw
		dev := hwkeytest.NewDevice(func(*apdu.Command) ([]byte, uint16) { return nil, sw })
		h := connect(t, dev, nil)
		_, err := h.Exchange(context.Background(), &apdu.Command{CLA: 0xe0, INS: 0x02})
		require.True(t, errors.Is(test.kind, err), "sw %04x: %v", sw, err)
	}
}

func TestExchangeDisconnect(t *testing.T) {
	dev := hwkeytest.NewDevice(echo)
	h := connect(t, dev, nil)
	dev.Fail(errors.New("hid: read timeout"))
	_, err := h.Exchange(context.Background(), &apdu.Command{CLA: 0xe0, INS: 0x02})
	require.True(t, errors.Is(errors.CommError, err), "%v", err)
	require.True(t, errors.Transient(err))
}

func TestSendSingleResult(t *testing.T) {
	dev := hwkeytest.NewDevice(echo)
	h := connect(t, dev, nil)
	ch := h.Send(context.Background(), []byte{0xe0, 0x02, 0, 0, 1, 0xaa})
	var results []hwkey.Result
	for r := range ch {
		results = append(results, r)
	}
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Equal(t, []byte{0xaa, 0x90, 0x00}, results[0].Data)
}

func TestSerialized(t *testing.T) {
	dev := hwkeytest.NewDevice(echo)
	h := connect(t, dev, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := bytes.Repeat([]byte{byte(i)}, 300+i)
			resp, err := h.Exchange(context.Background(),
				&apdu.Command{CLA: 0xe0, INS: 0x04, Data: data})
			assert.NoError(t, err)
			assert.Equal(t, data, resp)
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, dev.MaxInFlight())
	require.Len(t, dev.Commands(), 8)
}

func TestFailFast(t *testing.T) {
	dev := hwkeytest.NewDevice(echo)
	dev.Gate = make(chan struct{})
	opts := hwkey.DefaultOptions()
	opts.Policy = hwkey.FailFast
	h := connect(t, dev, opts)

	first := h.Send(context.Background(), []byte{0xe0, 0x02, 0, 0, 0})
	_, err := h.Exchange(context.Background(), &apdu.Command{CLA: 0xe0, INS: 0x02})
	require.True(t, errors.Is(errors.DeviceBusy, err), "%v", err)

	close(dev.Gate)
	r := <-first
	require.NoError(t, r.Err)
}

func TestWaitCancelled(t *testing.T) {
	dev := hwkeytest.NewDevice(echo)
	dev.Gate = make(chan struct{})
	h := connect(t, dev, nil)

	first := h.Send(context.Background(), []byte{0xe0, 0x02, 0, 0, 0})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.Exchange(ctx, &apdu.Command{CLA: 0xe0, INS: 0x02})
	require.Error(t, err)
	require.True(t, errors.Transient(err), "%v", err)

	close(dev.Gate)
	require.NoError(t, (<-first).Err)
}

func TestFingerprint(t *testing.T) {
	fp, err := hwkey.ParseFingerprint("73c5da0a")
	require.NoError(t, err)
	require.Equal(t, hwkey.Fingerprint{0x73, 0xc5, 0xda, 0x0a}, fp)
	require.Equal(t, "73c5da0a", fp.String())

	_, err = hwkey.ParseFingerprint("73c5da")
	require.True(t, errors.Is(errors.InvalidFieldValue, err))
}
