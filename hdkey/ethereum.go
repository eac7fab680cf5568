// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hdkey

import (
	"crypto/ecdsa"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/keyvault/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EthereumAddress returns the address of the public key of an extended key:
// the last 20 bytes of the keccak256 hash of the uncompressed point.
func EthereumAddress(key *hdkeychain.ExtendedKey) (common.Address, error) {
	pub, err := key.ECPubKey()
	if err != nil {
		return common.Address{}, errors.E(errors.Op("hdkey.EthereumAddress"), errors.Crypto, err)
	}
	return common.BytesToAddress(crypto.Keccak256(pub.SerializeUncompressed()[1:])[12:]), nil
}

// EthereumPrivateKey returns the signing key of a private extended key.
func EthereumPrivateKey(key *hdkeychain.ExtendedKey) (*ecdsa.PrivateKey, error) {
	const op errors.Op = "hdkey.EthereumPrivateKey"
	if !key.IsPrivate() {
		return nil, errors.E(op, errors.PrivateKeyUnavailable)
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	return priv.ToECDSA(), nil
}
