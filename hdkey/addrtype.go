// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hdkey

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hdpath"
)

// AddressType is a Bitcoin script type, which determines the BIP43 purpose
// of the account paths it is derived from.
type AddressType int

// Bitcoin address types.
const (
	P2PKH      AddressType = iota // legacy, BIP44
	P2SHP2WPKH                    // nested segwit, BIP49
	P2WPKH                        // native segwit, BIP84
)

func (t AddressType) String() string {
	switch t {
	case P2PKH:
		return "p2pkh"
	case P2SHP2WPKH:
		return "p2sh-p2wpkh"
	case P2WPKH:
		return "p2wpkh"
	default:
		return "unknown"
	}
}

// Valid reports whether t is a known address type.
func (t AddressType) Valid() bool {
	return t >= P2PKH && t <= P2WPKH
}

// Purpose returns the BIP43 purpose segment of account paths of this type.
func (t AddressType) Purpose() uint32 {
	switch t {
	case P2SHP2WPKH:
		return 49
	case P2WPKH:
		return 84
	default:
		return 44
	}
}

// AddressTypeFromPurpose maps a purpose segment back to its address type.
func AddressTypeFromPurpose(purpose uint32) (AddressType, error) {
	switch purpose {
	case 44:
		return P2PKH, nil
	case 49:
		return P2SHP2WPKH, nil
	case 84:
		return P2WPKH, nil
	}
	return 0, errors.E(errors.Op("hdkey.AddressTypeFromPurpose"), errors.UnsupportedData,
		errors.Field("purpose"), errors.Errorf("no address type for purpose %d", purpose))
}

// Network is a Bitcoin network class.  Extended key version bytes only
// distinguish mainnet from the test networks.
type Network int

// Networks.
const (
	Mainnet Network = iota
	Testnet
)

func (n Network) String() string {
	if n == Testnet {
		return "testnet"
	}
	return "mainnet"
}

// NetworkOf returns the network class of the chain parameters.
func NetworkOf(params *chaincfg.Params) Network {
	if params.Net == chaincfg.MainNetParams.Net {
		return Mainnet
	}
	return Testnet
}

// CoinType returns the BIP44 coin type of Bitcoin on the network.
func (n Network) CoinType() uint32 {
	if n == Testnet {
		return 1
	}
	return 0
}

// GetHDPath returns the account path for this address type on the network.
// The account index is validated against the hardened index domain; nothing
// is derived.
func (t AddressType) GetHDPath(account uint32, net Network) (hdpath.AccountPath, error) {
	const op errors.Op = "hdkey.GetHDPath"
	if !t.Valid() {
		return hdpath.AccountPath{}, errors.E(op, errors.UnsupportedData, errors.Field("address_type"))
	}
	p, err := hdpath.NewAccountPath(t.Purpose(), net.CoinType(), account)
	if err != nil {
		return hdpath.AccountPath{}, errors.E(op, err)
	}
	return p, nil
}

// CheckPath verifies that the purpose of an account path matches the address
// type.  Mismatches are never coerced.
func (t AddressType) CheckPath(p hdpath.AccountPath) error {
	if p.Purpose != t.Purpose() {
		return errors.E(errors.Op("hdkey.CheckPath"), errors.UnsupportedData,
			errors.Field(p.String()),
			errors.Errorf("purpose %d does not match %v (purpose %d)", p.Purpose, t, t.Purpose()))
	}
	return nil
}
