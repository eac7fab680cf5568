// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package records

import "github.com/google/uuid"

// SeedCodec stores seed records.
type SeedCodec struct{}

func (SeedCodec) Encode(s *Seed) ([]byte, error) { return EncodeSeed(s) }
func (SeedCodec) Decode(b []byte) (*Seed, error) { return DecodeSeed(b) }
func (SeedCodec) ID(s *Seed) uuid.UUID           { return s.ID }
func (SeedCodec) SetID(s *Seed, id uuid.UUID)    { s.ID = id }

// WalletCodec stores wallet records.
type WalletCodec struct{}

func (WalletCodec) Encode(w *Wallet) ([]byte, error) { return EncodeWallet(w) }
func (WalletCodec) Decode(b []byte) (*Wallet, error) { return DecodeWallet(b) }
func (WalletCodec) ID(w *Wallet) uuid.UUID           { return w.ID }
func (WalletCodec) SetID(w *Wallet, id uuid.UUID)    { w.ID = id }

// PrivateKeyCodec stores directly imported keys.
type PrivateKeyCodec struct{}

func (PrivateKeyCodec) Encode(pk *PrivateKeyHolder) ([]byte, error) { return EncodePrivateKey(pk) }
func (PrivateKeyCodec) Decode(b []byte) (*PrivateKeyHolder, error)  { return DecodePrivateKey(b) }
func (PrivateKeyCodec) ID(pk *PrivateKeyHolder) uuid.UUID           { return pk.ID }
func (PrivateKeyCodec) SetID(pk *PrivateKeyHolder, id uuid.UUID)    { pk.ID = id }
