// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package usbhid

import (
	"encoding/binary"
	"io"

	"github.com/decred/keyvault/errors"
)

// HID transport framing.  Every packet starts with the channel, the command
// tag and a big endian sequence number.  The first packet of a message also
// carries the big endian message length.
const (
	PacketSize = 64
	Channel    = 0x0101
	TagAPDU    = 0x05

	packetHeaderLen = 5
)

// Wrap splits msg into zero padded HID packets.
func Wrap(msg []byte) [][]byte {
	payload := make([]byte, 2, 2+len(msg))
	binary.BigEndian.PutUint16(payload, uint16(len(msg)))
	payload = append(payload, msg...)

	var packets [][]byte
	for seq := uint16(0); len(payload) > 0; seq++ {
		p := make([]byte, PacketSize)
		binary.BigEndian.PutUint16(p[0:], Channel)
		p[2] = TagAPDU
		binary.BigEndian.PutUint16(p[3:], seq)
		n := copy(p[packetHeaderLen:], payload)
		payload = payload[n:]
		packets = append(packets, p)
	}
	return packets
}

// Unwrap reads packets from r until a complete message is assembled.
// Packets on another channel, with another tag or out of sequence are
// rejected with a CommError.
func Unwrap(r io.Reader) ([]byte, error) {
	const op errors.Op = "usbhid.Unwrap"
	p := make([]byte, PacketSize)
	var msg []byte
	var want int
	for seq := uint16(0); ; seq++ {
		if _, err := io.ReadFull(r, p); err != nil {
			return nil, errors.E(op, errors.CommError, err)
		}
		if binary.BigEndian.Uint16(p[0:]) != Channel || p[2] != TagAPDU {
			return nil, errors.E(op, errors.CommError, "unexpected packet header")
		}
		if got := binary.BigEndian.Uint16(p[3:]); got != seq {
			return nil, errors.E(op, errors.CommError,
				errors.Errorf("packet sequence %d, expected %d", got, seq))
		}
		payload := p[packetHeaderLen:]
		if seq == 0 {
			want = int(binary.BigEndian.Uint16(payload))
			msg = make([]byte, 0, want)
			payload = payload[2:]
		}
		left := want - len(msg)
		if left <= len(payload) {
			return append(msg, payload[:left]...), nil
		}
		msg = append(msg, payload...)
	}
}
