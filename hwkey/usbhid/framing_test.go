// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package usbhid

import (
	"bytes"
	"io"
	"testing"

	"github.com/decred/keyvault/errors"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestWrapUnwrap(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		msg := rapid.SliceOfN(rapid.Byte(), 0, 1200).Draw(t, "msg")
		var buf bytes.Buffer
		for _, p := range Wrap(msg) {
			if len(p) != PacketSize {
				t.Fatalf("packet of %d bytes", len(p))
			}
			buf.Write(p)
		}
		got, err := Unwrap(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, msg) {
			t.Fatal("message differs")
		}
	})
}

func TestUnwrapSequence(t *testing.T) {
	packets := Wrap(make([]byte, 200))
	packets[1][4] = 7
	var buf bytes.Buffer
	for _, p := range packets {
		buf.Write(p)
	}
	_, err := Unwrap(&buf)
	require.True(t, errors.Is(errors.CommError, err), "%v", err)
}

func TestUnwrapShort(t *testing.T) {
	p := Wrap(make([]byte, 100))[0]
	_, err := Unwrap(bytes.NewReader(p))
	require.True(t, errors.Is(errors.CommError, err), "%v", err)
}

// loopback answers each written message with a fixed response once the last
// packet of the message has been written.
type loopback struct {
	in     bytes.Buffer
	out    bytes.Buffer
	resp   []byte
	closed bool
}

func (l *loopback) Write(p []byte) (int, error) {
	l.in.Write(p)
	if _, err := Unwrap(bytes.NewReader(l.in.Bytes())); err == nil {
		l.in.Reset()
		for _, r := range Wrap(l.resp) {
			l.out.Write(r)
		}
	}
	return len(p), nil
}

func (l *loopback) Read(p []byte) (int, error) {
	if l.out.Len() == 0 {
		return 0, io.EOF
	}
	return l.out.Read(p)
}

func (l *loopback) Close() error {
	l.closed = true
	return nil
}

func TestDeviceExchange(t *testing.T) {
	lb := &loopback{resp: []byte{0x01, 0x02, 0x90, 0x00}}
	d := NewDevice(lb)
	resp, err := d.Exchange(bytes.Repeat([]byte{0xaa}, 130))
	require.NoError(t, err)
	require.Equal(t, lb.resp, resp)
	require.NoError(t, d.Close())
	require.True(t, lb.closed)
}
