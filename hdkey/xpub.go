// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hdkey

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/decred/keyvault/errors"
)

// SLIP-132 extended public key version bytes.
var xpubVersions = []struct {
	version uint32
	addrTyp AddressType
	net     Network
}{
	{0x0488b21e, P2PKH, Mainnet},      // xpub
	{0x049d7cb2, P2SHP2WPKH, Mainnet}, // ypub
	{0x04b24746, P2WPKH, Mainnet},     // zpub
	{0x043587cf, P2PKH, Testnet},      // tpub
	{0x044a5262, P2SHP2WPKH, Testnet}, // upub
	{0x045f1cf6, P2WPKH, Testnet},     // vpub
}

func versionOf(t AddressType, net Network) []byte {
	for _, v := range xpubVersions {
		if v.addrTyp == t && v.net == net {
			b := make([]byte, 4)
			binary.BigEndian.PutUint32(b, v.version)
			return b
		}
	}
	return nil
}

// XPub is an account level extended public key together with the address
// type it produces.  The serialized form carries the SLIP-132 version of the
// address type and network.
type XPub struct {
	Value       *hdkeychain.ExtendedKey
	AddressType AddressType
}

// NewXPub neuters key and tags it with the version bytes of t on net.
func NewXPub(key *hdkeychain.ExtendedKey, t AddressType, net Network) (*XPub, error) {
	const op errors.Op = "hdkey.NewXPub"
	version := versionOf(t, net)
	if version == nil {
		return nil, errors.E(op, errors.UnsupportedData, errors.Field("address_type"))
	}
	pub, err := key.Neuter()
	if err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	pub, err = pub.CloneWithVersion(version)
	if err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	return &XPub{Value: pub, AddressType: t}, nil
}

// ParseXPub decodes a serialized extended public key.  The address type is
// recovered from the version bytes.  Private keys are rejected.
func ParseXPub(s string) (*XPub, error) {
	const op errors.Op = "hdkey.ParseXPub"
	key, err := hdkeychain.NewKeyFromString(s)
	if err != nil {
		return nil, errors.E(op, errors.InvalidFieldValue, errors.Field("xpub"), err)
	}
	if key.IsPrivate() {
		return nil, errors.E(op, errors.InvalidFieldValue, errors.Field("xpub"),
			"extended private key given where public key expected")
	}
	version := binary.BigEndian.Uint32(key.Version())
	for _, v := range xpubVersions {
		if v.version == version {
			return &XPub{Value: key, AddressType: v.addrTyp}, nil
		}
	}
	return nil, errors.E(op, errors.UnsupportedData, errors.Field("xpub"),
		errors.Errorf("unknown extended key version %08x", version))
}

func (x *XPub) String() string { return x.Value.String() }

// Equal reports whether both keys serialize identically.
func (x *XPub) Equal(other *XPub) bool {
	if x == nil || other == nil {
		return x == other
	}
	return x.AddressType == other.AddressType && x.String() == other.String()
}

// Network returns the network encoded in the version bytes.
func (x *XPub) Network() Network {
	version := binary.BigEndian.Uint32(x.Value.Version())
	for _, v := range xpubVersions {
		if v.version == version {
			return v.net
		}
	}
	return Mainnet
}

// Params returns the chain parameters used to encode addresses of the key.
func (x *XPub) Params() *chaincfg.Params {
	if x.Network() == Testnet {
		return &chaincfg.TestNet3Params
	}
	return &chaincfg.MainNetParams
}

// AddressAt derives the address at change/index below the account key.
func (x *XPub) AddressAt(change, index uint32) (btcutil.Address, error) {
	const op errors.Op = "hdkey.AddressAt"
	k, err := x.Value.Derive(change)
	if err == nil {
		k, err = k.Derive(index)
	}
	if err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	pub, err := k.ECPubKey()
	if err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	params := x.Params()
	hash := btcutil.Hash160(pub.SerializeCompressed())

	var addr btcutil.Address
	switch x.AddressType {
	case P2PKH:
		addr, err = btcutil.NewAddressPubKeyHash(hash, params)
	case P2WPKH:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(hash, params)
	case P2SHP2WPKH:
		var witness *btcutil.AddressWitnessPubKeyHash
		witness, err = btcutil.NewAddressWitnessPubKeyHash(hash, params)
		if err != nil {
			break
		}
		var redeem []byte
		redeem, err = txscript.PayToAddrScript(witness)
		if err != nil {
			break
		}
		addr, err = btcutil.NewAddressScriptHash(redeem, params)
	default:
		return nil, errors.E(op, errors.UnsupportedData, errors.Field("address_type"))
	}
	if err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	return addr, nil
}
