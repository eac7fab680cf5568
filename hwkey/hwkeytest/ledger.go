// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hwkeytest

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/keyvault/hwkey/apdu"
	"github.com/ethereum/go-ethereum/crypto"
)

// Ledger simulates a Ledger device holding seed with the named application
// open.  It answers the application name, wallet public key and Ethereum
// address commands.  Signing requests are answered with a fixed signature.
type Ledger struct {
	Seed    []byte
	AppName string

	// Decline makes every key request fail with the user declined status.
	Decline bool
}

func (l *Ledger) derive(data []byte) (*hdkeychain.ExtendedKey, bool) {
	if len(data) < 1 || len(data) < 1+4*int(data[0]) {
		return nil, false
	}
	key, err := hdkeychain.NewMaster(l.Seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, false
	}
	for i := 0; i < int(data[0]); i++ {
		key, err = key.Derive(binary.BigEndian.Uint32(data[1+4*i:]))
		if err != nil {
			return nil, false
		}
	}
	return key, true
}

// Handle answers one command.
func (l *Ledger) Handle(cmd *apdu.Command) ([]byte, uint16) {
	switch {
	case cmd.CLA == 0xb0 && cmd.INS == 0x01:
		resp := []byte{0x01, byte(len(l.AppName))}
		resp = append(resp, l.AppName...)
		resp = append(resp, 5)
		resp = append(resp, "2.1.0"...)
		return append(resp, 1, 0), apdu.SWOK

	case cmd.CLA == 0xe0 && cmd.INS == 0x40:
		if l.AppName != "Bitcoin" && l.AppName != "Bitcoin Test" {
			return nil, apdu.SWClaNotSupported
		}
		if l.Decline {
			return nil, apdu.SWConditionsNotMet
		}
		key, ok := l.derive(cmd.Data)
		if !ok {
			return nil, apdu.SWInvalidData
		}
		pub, err := key.ECPubKey()
		if err != nil {
			return nil, apdu.SWInvalidData
		}
		raw := pub.SerializeUncompressed()
		resp := append([]byte{byte(len(raw))}, raw...)
		addr := "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"
		resp = append(resp, byte(len(addr)))
		resp = append(resp, addr...)
		return append(resp, key.ChainCode()...), apdu.SWOK

	case cmd.CLA == 0xe0 && cmd.INS == 0x02:
		if l.AppName != "Ethereum" {
			return nil, apdu.SWClaNotSupported
		}
		if l.Decline {
			return nil, apdu.SWConditionsNotMet
		}
		key, ok := l.derive(cmd.Data)
		if !ok {
			return nil, apdu.SWInvalidData
		}
		pub, err := key.ECPubKey()
		if err != nil {
			return nil, apdu.SWInvalidData
		}
		raw := pub.SerializeUncompressed()
		addr := hex.EncodeToString(crypto.Keccak256(raw[1:])[12:])
		resp := append([]byte{byte(len(raw))}, raw...)
		resp = append(resp, byte(len(addr)))
		return append(resp, addr...), apdu.SWOK

	case cmd.CLA == 0xe0 && cmd.INS == 0x04:
		if l.AppName != "Ethereum" {
			return nil, apdu.SWClaNotSupported
		}
		if l.Decline {
			return nil, apdu.SWConditionsNotMet
		}
		sig := make([]byte, 65)
		sig[0] = 0x1b
		for i := 1; i < len(sig); i++ {
			sig[i] = byte(i)
		}
		return sig, apdu.SWOK
	}
	return nil, apdu.SWInsNotSupported
}

// Length returns the payload length of a transaction signing command from
// the path and the RLP list header of its first frame.  Other commands are
// single frames.
func (l *Ledger) Length(first *apdu.Command) int {
	if first.CLA != 0xe0 || first.INS != 0x04 || first.P1 != 0x00 {
		return -1
	}
	data := first.Data
	if len(data) < 1 {
		return -1
	}
	off := 1 + 4*int(data[0])
	if len(data) <= off {
		return -1
	}
	n := rlpListLength(data[off:])
	if n < 0 {
		return -1
	}
	return off + n
}

// rlpListLength returns the encoded size of the RLP list starting b, header
// included, or -1 when b does not start with a complete list header.
func rlpListLength(b []byte) int {
	switch {
	case b[0] < 0xc0:
		return -1
	case b[0] <= 0xf7:
		return 1 + int(b[0]-0xc0)
	}
	n := int(b[0] - 0xf7)
	if len(b) < 1+n || n > 4 {
		return -1
	}
	size := 0
	for _, c := range b[1 : 1+n] {
		size = size<<8 | int(c)
	}
	return 1 + n + size
}

// NewLedger returns a scripted device simulating a Ledger.
func NewLedger(seed []byte, appName string) (*Device, *Ledger) {
	l := &Ledger{Seed: seed, AppName: appName}
	d := NewDevice(l.Handle)
	d.Length = l.Length
	return d, l
}
