// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package apdu frames commands for smart card style hardware signers and
// parses their responses.
//
// A frame is a five byte header {cla, ins, p1, p2, lc} followed by lc bytes of
// payload.  Payloads longer than one frame can carry are split into a first
// frame and continuation frames.  Continuation frames repeat the header with
// p1 replaced by a continuation marker chosen by the device application.
package apdu

import (
	"encoding/binary"
	"fmt"

	"github.com/decred/keyvault/errors"
)

// HeaderLen is the length of a frame header.
const HeaderLen = 5

// MaxChunk is the largest payload a single frame can carry.
const MaxChunk = 255

// Command is an application level command before framing.
type Command struct {
	CLA  byte
	INS  byte
	P1   byte
	P2   byte
	Data []byte
}

// Header returns the frame header for a payload of length lc.
func (c *Command) Header(p1 byte, lc int) []byte {
	return []byte{c.CLA, c.INS, p1, c.P2, byte(lc)}
}

// Frames splits the command into frames carrying at most chunk payload bytes.
// The first frame uses the command's P1; every following frame uses
// continuationP1.  A command without payload produces a single frame with
// lc = 0.
func (c *Command) Frames(chunk int, continuationP1 byte) ([][]byte, error) {
	if chunk <= 0 || chunk > MaxChunk {
		return nil, errors.E(errors.Op("apdu.Frames"), errors.Invalid,
			errors.Errorf("chunk size %d out of range", chunk))
	}
	data := c.Data
	frames := make([][]byte, 0, len(data)/chunk+1)
	p1 := c.P1
	for {
		n := len(data)
		if n > chunk {
			n = chunk
		}
		frame := make([]byte, 0, HeaderLen+n)
		frame = append(frame, c.Header(p1, n)...)
		frame = append(frame, data[:n]...)
		frames = append(frames, frame)
		data = data[n:]
		if len(data) == 0 {
			return frames, nil
		}
		p1 = continuationP1
	}
}

// Frame is one parsed frame.
type Frame struct {
	CLA, INS, P1, P2 byte
	Data             []byte
}

// ParseFrame splits a frame into its header fields and payload.  The payload
// length must match lc.
func ParseFrame(b []byte) (*Frame, error) {
	const op errors.Op = "apdu.ParseFrame"
	if len(b) < HeaderLen {
		return nil, errors.E(op, errors.CommError, "short frame")
	}
	if int(b[4]) != len(b)-HeaderLen {
		return nil, errors.E(op, errors.CommError,
			errors.Errorf("lc %d does not match payload length %d", b[4], len(b)-HeaderLen))
	}
	return &Frame{CLA: b[0], INS: b[1], P1: b[2], P2: b[3], Data: b[HeaderLen:]}, nil
}

// Status words.
const (
	SWOK               uint16 = 0x9000
	SWConditionsNotMet uint16 = 0x6985 // user declined
	SWWrongLength      uint16 = 0x6700
	SWInvalidData      uint16 = 0x6a80
	SWInsNotSupported  uint16 = 0x6d00
	SWClaNotSupported  uint16 = 0x6e00
	SWAppNotOpen       uint16 = 0x6511
	SWLocked           uint16 = 0x5515
)

// ParseResponse splits a raw response into payload and status word.
func ParseResponse(raw []byte) ([]byte, uint16, error) {
	if len(raw) < 2 {
		return nil, 0, errors.E(errors.Op("apdu.ParseResponse"), errors.CommError,
			errors.Errorf("response of %d bytes has no status word", len(raw)))
	}
	n := len(raw) - 2
	return raw[:n], binary.BigEndian.Uint16(raw[n:]), nil
}

// StatusError maps a status word to an error.  Success returns nil.
func StatusError(sw uint16) error {
	const op errors.Op = "apdu.StatusError"
	field := errors.Field(fmt.Sprintf("sw=%04x", sw))
	switch sw {
	case SWOK:
		return nil
	case SWConditionsNotMet:
		return errors.E(op, errors.Declined, field)
	case SWInsNotSupported, SWClaNotSupported, SWAppNotOpen:
		return errors.E(op, errors.WrongApp, field)
	case SWLocked:
		return errors.E(op, errors.Unavailable, field, "device is locked")
	default:
		return errors.E(op, errors.CommError, field)
	}
}

// Check parses a raw response and returns its payload if the status word
// reports success.
func Check(raw []byte) ([]byte, error) {
	data, sw, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}
	if err := StatusError(sw); err != nil {
		return nil, err
	}
	return data, nil
}
