// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package records defines the persisted vault records (seeds, wallets and
// legacy private keys) and their protobuf encodings.
package records

import (
	"time"

	"github.com/decred/keyvault/blockchain"
	"github.com/decred/keyvault/encrypted"
	"github.com/decred/keyvault/hdkey"
	"github.com/decred/keyvault/hdpath"
	"github.com/decred/keyvault/hwkey"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Seed is the root entropy of HD entries, or a reference to a hardware device
// holding it.  Only the label may change after creation.
type Seed struct {
	ID        uuid.UUID
	Label     string
	Source    SeedSource
	CreatedAt time.Time
}

// SeedSource is one of *BytesSource or *HardwareSource.
type SeedSource interface {
	seedSource()
}

// BytesSource holds encrypted seed bytes.
type BytesSource struct {
	Encrypted *encrypted.Container
}

// HardwareSource refers to a paired device.  No secret is stored.  An empty
// fingerprint set matches any connected device.
type HardwareSource struct {
	Fingerprints []hwkey.Fingerprint
}

func (*BytesSource) seedSource()    {}
func (*HardwareSource) seedSource() {}

// Matches reports whether a device with fingerprint fp may serve the seed.
func (s *HardwareSource) Matches(fp hwkey.Fingerprint) bool {
	if len(s.Fingerprints) == 0 {
		return true
	}
	for _, f := range s.Fingerprints {
		if f == fp {
			return true
		}
	}
	return false
}

// WalletEntry binds a key source to an address on one chain.
type WalletEntry struct {
	ID         uint32
	Blockchain blockchain.ID
	Label      string
	Address    AddressRef
	Key        PKType
	CreatedAt  time.Time
}

// PKType is the source of an entry's key: *SeedHD, *HardwareKey or
// *EthereumPk3.
type PKType interface {
	pkType()
}

// SeedHD derives the key from a seed record on demand.
type SeedHD struct {
	SeedID uuid.UUID
	Path   hdpath.StandardPath
}

// HardwareKey is held by a device, identified by fingerprint.
type HardwareKey struct {
	Fingerprint hwkey.Fingerprint
	Path        hdpath.StandardPath
}

// EthereumPk3 refers to a directly imported Ethereum key stored as a
// PrivateKeyHolder record.
type EthereumPk3 struct {
	KeyID uuid.UUID
}

func (*SeedHD) pkType()      {}
func (*HardwareKey) pkType() {}
func (*EthereumPk3) pkType() {}

// AddressRef is one of *PlainAddress or *ExtendedPub.
type AddressRef interface {
	addressRef()
}

// PlainAddress is a single address in the chain's textual format.
type PlainAddress struct {
	Value string
}

// ExtendedPub retains an account key so that child addresses can be listed
// without access to the seed.
type ExtendedPub struct {
	XPub *hdkey.XPub
}

func (*PlainAddress) addressRef() {}
func (*ExtendedPub) addressRef()  {}

// PrivateKeyHolder is the legacy single key record used by directly
// imported Ethereum keys.
type PrivateKeyHolder struct {
	ID        uuid.UUID
	Pk        EthereumPk3Key
	CreatedAt time.Time
}

// EthereumPk3Key is an encrypted Ethereum private key with an optional cached
// address.
type EthereumPk3Key struct {
	Address *common.Address
	Key     *encrypted.Container
}
