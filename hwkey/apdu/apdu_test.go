// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package apdu

import (
	"bytes"
	"testing"

	"github.com/decred/keyvault/errors"
	"pgregory.net/rapid"
)

func TestFramesSingle(t *testing.T) {
	c := Command{CLA: 0xe0, INS: 0x04, P1: 0x00, P2: 0x00, Data: []byte{1, 2, 3}}
	frames, err := c.Frames(MaxChunk, 0x80)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xe0, 0x04, 0x00, 0x00, 0x03, 1, 2, 3}
	if len(frames) != 1 || !bytes.Equal(frames[0], want) {
		t.Fatalf("frames %x", frames)
	}

	empty := Command{CLA: 0xb0, INS: 0x01}
	frames, err = empty.Frames(MaxChunk, 0x80)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 || !bytes.Equal(frames[0], []byte{0xb0, 0x01, 0, 0, 0}) {
		t.Fatalf("empty frames %x", frames)
	}
}

func TestFramesChunked(t *testing.T) {
	data := make([]byte, 600)
	for i := range data {
		data[i] = byte(i)
	}
	c := Command{CLA: 0xe0, INS: 0x04, P1: 0x00, P2: 0x00, Data: data}
	frames, err := c.Frames(MaxChunk, 0x80)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 3 {
		t.Fatalf("%d frames", len(frames))
	}
	wantLc := []int{255, 255, 90}
	wantP1 := []byte{0x00, 0x80, 0x80}
	for i, frame := range frames {
		f, err := ParseFrame(frame)
		if err != nil {
			t.Fatal(err)
		}
		if len(f.Data) != wantLc[i] || f.P1 != wantP1[i] || f.CLA != 0xe0 || f.INS != 0x04 {
			t.Errorf("frame %d: header %x", i, frame[:HeaderLen])
		}
	}
}

func TestFramesReassemble(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 2000).Draw(t, "data")
		chunk := rapid.IntRange(1, MaxChunk).Draw(t, "chunk")
		c := Command{CLA: 0xe0, INS: 0x04, P1: 0x01, Data: data}
		frames, err := c.Frames(chunk, 0x80)
		if err != nil {
			t.Fatal(err)
		}
		var got []byte
		for i, frame := range frames {
			f, err := ParseFrame(frame)
			if err != nil {
				t.Fatal(err)
			}
			if i > 0 && f.P1 != 0x80 {
				t.Fatalf("frame %d p1 %x", i, f.P1)
			}
			if len(f.Data) > chunk {
				t.Fatalf("frame %d carries %d bytes", i, len(f.Data))
			}
			got = append(got, f.Data...)
		}
		if !bytes.Equal(got, data) {
			t.Fatal("reassembled payload differs")
		}
	})
}

func TestFramesBadChunk(t *testing.T) {
	c := Command{}
	if _, err := c.Frames(256, 0x80); !errors.Is(errors.Invalid, err) {
		t.Fatalf("chunk 256: %v", err)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		raw  []byte
		kind errors.Kind
		ok   bool
	}{
		{[]byte{0xaa, 0x90, 0x00}, 0, true},
		{[]byte{0x69, 0x85}, errors.Declined, false},
		{[]byte{0x6d, 0x00}, errors.WrongApp, false},
		{[]byte{0x6e, 0x00}, errors.WrongApp, false},
		{[]byte{0x6a, 0x80}, errors.CommError, false},
		{[]byte{0x90}, errors.CommError, false},
		{nil, errors.CommError, false},
	}
	for _, test := range tests {
		data, err := Check(test.raw)
		if test.ok {
			if err != nil || !bytes.Equal(data, []byte{0xaa}) {
				t.Errorf("%x: %x %v", test.raw, data, err)
			}
			continue
		}
		if !errors.Is(test.kind, err) {
			t.Errorf("%x: got %v, want %v", test.raw, err, test.kind)
		}
	}
	if errors.Transient(StatusError(SWConditionsNotMet)) {
		t.Error("declined reported as transient")
	}
}
