// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ledger implements the Bitcoin and Ethereum application commands of
// Ledger devices on top of an hwkey.Handle.
package ledger

import (
	"context"
	"encoding/binary"

	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hdpath"
	"github.com/decred/keyvault/hwkey/apdu"
)

// Exchanger sends a command and returns the successful response payload.
// *hwkey.Handle implements it.
type Exchanger interface {
	Exchange(ctx context.Context, cmd *apdu.Command) ([]byte, error)
}

// Dashboard commands, answered by every application.
const (
	claDashboard       = 0xb0
	insAppNameVersion  = 0x01
	appInfoFormatMagic = 0x01
)

// Known application names.
const (
	AppBitcoin        = "Bitcoin"
	AppBitcoinTestnet = "Bitcoin Test"
	AppEthereum       = "Ethereum"
)

// AppInfo is the name and version of the open application.
type AppInfo struct {
	Name    string
	Version string
}

// GetAppInfo asks the device which application is open.
func GetAppInfo(ctx context.Context, ex Exchanger) (*AppInfo, error) {
	const op errors.Op = "ledger.GetAppInfo"
	resp, err := ex.Exchange(ctx, &apdu.Command{CLA: claDashboard, INS: insAppNameVersion})
	if err != nil {
		return nil, errors.E(op, err)
	}
	r := reader{b: resp}
	if r.u8() != appInfoFormatMagic {
		return nil, errors.E(op, errors.CommError, "unknown app info format")
	}
	name := r.lv()
	version := r.lv()
	if r.err != nil {
		return nil, errors.E(op, errors.CommError, r.err)
	}
	return &AppInfo{Name: string(name), Version: string(version)}, nil
}

// encodePath writes the BIP32 path as a count byte followed by big endian
// child numbers.
func encodePath(p hdpath.Path) ([]byte, error) {
	if len(p) > 10 {
		return nil, errors.E(errors.Op("ledger.encodePath"), errors.InvalidPath,
			errors.Errorf("path %v deeper than 10 levels", p))
	}
	b := make([]byte, 1, 1+4*len(p))
	b[0] = byte(len(p))
	for _, child := range p.Children() {
		b = binary.BigEndian.AppendUint32(b, child)
	}
	return b, nil
}

// reader consumes length prefixed response fields.  The first failure is
// kept and further reads return zero values.
type reader struct {
	b   []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n > len(r.b) {
		r.err = errors.Errorf("response truncated: need %d bytes, have %d", n, len(r.b))
		return nil
	}
	v := r.b[:n]
	r.b = r.b[n:]
	return v
}

func (r *reader) u8() byte {
	v := r.take(1)
	if v == nil {
		return 0
	}
	return v[0]
}

func (r *reader) lv() []byte {
	n := r.u8()
	return r.take(int(n))
}
