// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"context"
	"encoding/hex"

	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hdpath"
	"github.com/decred/keyvault/hwkey/apdu"
	"github.com/ethereum/go-ethereum/common"
)

const (
	claEthereum   = 0xe0
	insGetAddress = 0x02
	insSignTx     = 0x04

	signFirst = 0x00
)

// EthereumApp talks to the Ethereum application.
type EthereumApp struct {
	ex Exchanger
}

// NewEthereumApp returns a client of the Ethereum application reached via ex.
func NewEthereumApp(ex Exchanger) *EthereumApp {
	return &EthereumApp{ex: ex}
}

// IsOpen reports whether the Ethereum application is open.
func (a *EthereumApp) IsOpen(ctx context.Context) (bool, error) {
	info, err := GetAppInfo(ctx, a.ex)
	if err != nil {
		if errors.Is(errors.WrongApp, err) {
			return false, nil
		}
		return false, err
	}
	return info.Name == AppEthereum, nil
}

// GetAddress returns the address of the key at path.
func (a *EthereumApp) GetAddress(ctx context.Context, path hdpath.Path) (common.Address, error) {
	const op errors.Op = "ledger.GetAddress"
	data, err := encodePath(path)
	if err != nil {
		return common.Address{}, errors.E(op, err)
	}
	resp, err := a.ex.Exchange(ctx, &apdu.Command{CLA: claEthereum, INS: insGetAddress, Data: data})
	if err != nil {
		return common.Address{}, errors.E(op, err)
	}
	r := reader{b: resp}
	r.lv() // public key
	text := r.lv()
	if r.err != nil {
		return common.Address{}, errors.E(op, errors.CommError, r.err)
	}
	raw, err := hex.DecodeString(string(text))
	if err != nil || len(raw) != common.AddressLength {
		return common.Address{}, errors.E(op, errors.CommError,
			errors.Errorf("malformed address %q", text))
	}
	return common.BytesToAddress(raw), nil
}

// Signature is a recoverable secp256k1 signature as returned by the device.
type Signature struct {
	V    byte
	R, S [32]byte
}

// SignTransaction asks the device to sign an RLP encoded transaction with the
// key at path.  The payload is sent in 255 byte frames, the first with P1 0x00
// and continuations with P1 0x80.
func (a *EthereumApp) SignTransaction(ctx context.Context, path hdpath.Path, rlpTx []byte) (*Signature, error) {
	const op errors.Op = "ledger.SignTransaction"
	data, err := encodePath(path)
	if err != nil {
		return nil, errors.E(op, err)
	}
	data = append(data, rlpTx...)
	resp, err := a.ex.Exchange(ctx, &apdu.Command{
		CLA:  claEthereum,
		INS:  insSignTx,
		P1:   signFirst,
		Data: data,
	})
	if err != nil {
		return nil, errors.E(op, err)
	}
	if len(resp) != 65 {
		return nil, errors.E(op, errors.CommError,
			errors.Errorf("signature of %d bytes", len(resp)))
	}
	sig := &Signature{V: resp[0]}
	copy(sig.R[:], resp[1:33])
	copy(sig.S[:], resp[33:65])
	return sig, nil
}
