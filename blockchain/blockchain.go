// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockchain enumerates the chains an entry may be bound to.
package blockchain

import (
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/keyvault/errors"
)

// ID identifies a blockchain.  The numeric values are persisted and must not
// change.
type ID uint32

// Supported chains.
const (
	Ethereum        ID = 100
	EthereumClassic ID = 101
	Goerli          ID = 10005
	Bitcoin         ID = 1
	BitcoinTestnet  ID = 10003
)

// Family is a group of chains sharing key formats and derivation rules.
type Family int

// Chain families.  FamilyUnknown is the family of ids not in the chain table.
const (
	FamilyUnknown Family = iota
	FamilyEthereum
	FamilyBitcoin
)

func (f Family) String() string {
	switch f {
	case FamilyEthereum:
		return "ethereum"
	case FamilyBitcoin:
		return "bitcoin"
	default:
		return "unknown"
	}
}

var chains = map[ID]struct {
	code     string
	family   Family
	testnet  bool
	coinType uint32
	chainID  uint64
}{
	Ethereum:        {"ETH", FamilyEthereum, false, 60, 1},
	EthereumClassic: {"ETC", FamilyEthereum, false, 61, 61},
	Goerli:          {"GOERLI", FamilyEthereum, true, 60, 5},
	Bitcoin:         {"BTC", FamilyBitcoin, false, 0, 0},
	BitcoinTestnet:  {"TESTBTC", FamilyBitcoin, true, 1, 0},
}

// All returns every supported chain.
func All() []ID {
	return []ID{Bitcoin, BitcoinTestnet, Ethereum, EthereumClassic, Goerli}
}

// FromUint32 validates a persisted chain id.
func FromUint32(v uint32) (ID, error) {
	id := ID(v)
	if _, ok := chains[id]; !ok {
		return 0, errors.E(errors.Op("blockchain.FromUint32"), errors.UnsupportedData,
			errors.Field("blockchain"), errors.Errorf("unknown blockchain id %d", v))
	}
	return id, nil
}

// Parse returns the chain with the given code, e.g. "BTC" or "eth".
func Parse(code string) (ID, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for id, c := range chains {
		if c.code == code {
			return id, nil
		}
	}
	return 0, errors.E(errors.Op("blockchain.Parse"), errors.UnsupportedData,
		errors.Field("blockchain"), errors.Errorf("unknown blockchain %q", code))
}

// Valid reports whether id is a supported chain.
func (id ID) Valid() bool {
	_, ok := chains[id]
	return ok
}

func (id ID) String() string {
	if c, ok := chains[id]; ok {
		return c.code
	}
	return "UNKNOWN"
}

// Type returns the family of the chain.
func (id ID) Type() Family { return chains[id].family }

// IsTestnet reports whether the chain is a test network.
func (id ID) IsTestnet() bool { return chains[id].testnet }

// CoinType returns the SLIP-44 coin type used in HD paths of the chain.
func (id ID) CoinType() uint32 { return chains[id].coinType }

// ChainID returns the EIP-155 chain id of Ethereum family chains.
func (id ID) ChainID() uint64 { return chains[id].chainID }

// BitcoinParams returns the network parameters of Bitcoin family chains.
func (id ID) BitcoinParams() (*chaincfg.Params, error) {
	switch id {
	case Bitcoin:
		return &chaincfg.MainNetParams, nil
	case BitcoinTestnet:
		return &chaincfg.TestNet3Params, nil
	}
	return nil, errors.E(errors.Op("blockchain.BitcoinParams"), errors.IncorrectBlockchain,
		errors.Field(id.String()), "not a bitcoin chain")
}
