// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package hdkey derives BIP32 keys for the supported chains.
package hdkey

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hdpath"
)

// Derive creates the master key of seed and derives the key at path.
func Derive(seed []byte, path hdpath.Path, net *chaincfg.Params) (*hdkeychain.ExtendedKey, error) {
	const op errors.Op = "hdkey.Derive"
	master, err := hdkeychain.NewMaster(seed, net)
	if err != nil {
		return nil, errors.E(op, errors.InvalidData, errors.Field("seed"), err)
	}
	key, err := DeriveFrom(master, path)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return key, nil
}

// DeriveFrom derives the key at path relative to key.  Hardened segments
// require key to be private; this is checked before any derivation is
// performed.
func DeriveFrom(key *hdkeychain.ExtendedKey, path hdpath.Path) (*hdkeychain.ExtendedKey, error) {
	const op errors.Op = "hdkey.DeriveFrom"
	if !key.IsPrivate() && path.HasHardened() {
		return nil, errors.E(op, errors.PrivateKeyUnavailable, errors.Field(path.String()),
			"hardened derivation from public key")
	}
	for _, seg := range path {
		if seg.Index > hdpath.MaxIndex {
			return nil, errors.E(op, errors.InvalidPath, errors.Field(path.String()))
		}
	}
	var err error
	for i, child := range path.Children() {
		key, err = key.Derive(child)
		if err != nil {
			return nil, errors.E(op, errors.Crypto, errors.Field(path[:i+1].String()), err)
		}
	}
	return key, nil
}

// Fingerprint returns the BIP32 key fingerprint of a compressed public key:
// the first four bytes of its HASH160.
func Fingerprint(pubKey []byte) uint32 {
	return binary.BigEndian.Uint32(btcutil.Hash160(pubKey)[:4])
}
