// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"context"
	"crypto/ecdsa"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/keyvault/blockchain"
	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hdkey"
	"github.com/decred/keyvault/hdpath"
	"github.com/decred/keyvault/hwkey"
	"github.com/decred/keyvault/hwkey/ledger"
	"github.com/decred/keyvault/records"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Signer holds the key of a wallet entry: either a private key in memory or
// a connected device holding it at Path.  It must be closed after use.
type Signer struct {
	Entry records.WalletEntry

	// Key is nil for hardware signers.
	Key *btcec.PrivateKey

	Device *hwkey.Handle
	Path   hdpath.StandardPath
}

// IsHardware reports whether signing is delegated to a device.
func (s *Signer) IsHardware() bool {
	return s.Device != nil
}

// ECDSA returns the private key for Ethereum signing, or nil for hardware
// signers.
func (s *Signer) ECDSA() *ecdsa.PrivateKey {
	if s.Key == nil {
		return nil
	}
	return s.Key.ToECDSA()
}

// SignEthereumTransaction signs an RLP encoded transaction.  V of a software
// signature is 27 plus the recovery id.
func (s *Signer) SignEthereumTransaction(ctx context.Context, rlpTx []byte) (*ledger.Signature, error) {
	const op errors.Op = "vault.SignEthereumTransaction"
	if s.Entry.Blockchain.Type() != blockchain.FamilyEthereum {
		return nil, errors.E(op, errors.IncorrectBlockchain, errors.Field(s.Entry.Blockchain.String()))
	}
	if s.Device != nil {
		sig, err := ledger.NewEthereumApp(s.Device).SignTransaction(ctx, s.Path.Path(), rlpTx)
		if err != nil {
			return nil, errors.E(op, err)
		}
		return sig, nil
	}
	raw, err := crypto.Sign(crypto.Keccak256(rlpTx), s.ECDSA())
	if err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	sig := &ledger.Signature{V: 27 + raw[64]}
	copy(sig.R[:], raw[:32])
	copy(sig.S[:], raw[32:64])
	return sig, nil
}

// Close zeroes the private key and releases the device.
func (s *Signer) Close() error {
	if s.Key != nil {
		s.Key.Zero()
		s.Key = nil
	}
	if s.Device != nil {
		err := s.Device.Close()
		s.Device = nil
		return err
	}
	return nil
}

// ResolveSigner returns the signer of an entry.  password decrypts seeds
// and imported keys; it is unused for hardware keys.  Entries referring to
// removed seeds or keys fail with NotExist.
func (v *Vault) ResolveSigner(ctx context.Context, walletID uuid.UUID, entryID uint32,
	password []byte) (*Signer, error) {

	const op errors.Op = "vault.ResolveSigner"
	w, err := v.wallets.Get(walletID)
	if err != nil {
		return nil, errors.E(op, err)
	}
	entry, err := w.Entry(entryID)
	if err != nil {
		return nil, errors.E(op, err)
	}
	s := &Signer{Entry: *entry}

	switch key := entry.Key.(type) {
	case *records.SeedHD:
		s.Path = key.Path
		seed, err := v.seeds.Get(key.SeedID)
		if err != nil {
			return nil, errors.E(op, err)
		}
		switch src := seed.Source.(type) {
		case *records.BytesSource:
			s.Key, err = v.seedKey(op, src, key.Path, entry.Blockchain, password)
		case *records.HardwareSource:
			s.Device, err = v.hardwareSigner(ctx, entry.Blockchain, src.Matches)
		default:
			err = errors.E(errors.Bug, errors.Errorf("unknown seed source %T", src))
		}
		if err != nil {
			return nil, errors.E(op, err)
		}

	case *records.HardwareKey:
		s.Path = key.Path
		s.Device, err = v.hardwareSigner(ctx, entry.Blockchain, func(fp hwkey.Fingerprint) bool {
			return fp == key.Fingerprint
		})
		if err != nil {
			return nil, errors.E(op, err)
		}

	case *records.EthereumPk3:
		s.Key, err = v.directKey(key.KeyID, password)
		if err != nil {
			return nil, errors.E(op, err)
		}

	default:
		return nil, errors.E(op, errors.Bug, errors.Errorf("unknown key type %T", key))
	}
	return s, nil
}

func (v *Vault) seedKey(op errors.Op, src *records.BytesSource, path hdpath.StandardPath,
	chain blockchain.ID, password []byte) (*btcec.PrivateKey, error) {

	params := &chaincfg.MainNetParams
	if chain.Type() == blockchain.FamilyBitcoin {
		var err error
		params, err = chain.BitcoinParams()
		if err != nil {
			return nil, err
		}
	}
	raw, err := decryptSeed(op, src, password)
	if err != nil {
		return nil, err
	}
	defer zero(raw)
	key, err := hdkey.Derive(raw, path.Path(), params)
	if err != nil {
		return nil, err
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, errors.E(errors.Crypto, err)
	}
	return priv, nil
}

// hardwareSigner connects the device holding the key.  Devices running the
// Bitcoin application are matched by fingerprint; the Ethereum application
// exposes none.
func (v *Vault) hardwareSigner(ctx context.Context, chain blockchain.ID,
	matches func(hwkey.Fingerprint) bool) (*hwkey.Handle, error) {

	if v.hw == nil {
		return nil, errors.E(errors.Unavailable, "no hardware connector")
	}
	ctx, cancel := context.WithTimeout(ctx, v.hwTimeout)
	defer cancel()
	h, err := v.hw.Connect(ctx)
	if err != nil {
		return nil, err
	}

	if err := checkDevice(ctx, h, chain, matches); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

func checkDevice(ctx context.Context, h *hwkey.Handle, chain blockchain.ID,
	matches func(hwkey.Fingerprint) bool) error {

	if chain.Type() != blockchain.FamilyBitcoin {
		open, err := ledger.NewEthereumApp(h).IsOpen(ctx)
		if err != nil {
			return err
		}
		if !open {
			return errors.E(errors.WrongApp, errors.Field(chain.String()))
		}
		return nil
	}

	params, err := chain.BitcoinParams()
	if err != nil {
		return err
	}
	app := ledger.NewBitcoinApp(h)
	open, err := app.IsOpen(ctx, hdkey.NetworkOf(params))
	if err != nil {
		return err
	}
	if !open {
		return errors.E(errors.WrongApp, errors.Field(chain.String()))
	}
	fp, err := app.Fingerprint(ctx)
	if err != nil {
		return err
	}
	if !matches(fp) {
		return errors.E(errors.Unavailable, errors.Field(fp.String()),
			"connected device does not hold the key")
	}
	return nil
}

// directKey decrypts an imported private key.  The cached address, when
// present, must belong to the key.
func (v *Vault) directKey(keyID uuid.UUID, password []byte) (*btcec.PrivateKey, error) {
	holder, err := v.keys.Get(keyID)
	if err != nil {
		return nil, err
	}
	if len(password) == 0 {
		return nil, errors.E(errors.PasswordRequired, errors.Field("password"))
	}
	raw, err := holder.Pk.Key.Decrypt(password)
	if err != nil {
		return nil, err
	}
	defer zero(raw)
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, errors.E(errors.InvalidData, errors.Field("key"), err)
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	if addr := holder.Pk.Address; addr != nil && crypto.PubkeyToAddress(key.PublicKey) != *addr {
		priv.Zero()
		return nil, errors.E(errors.InvalidData, errors.Field("address"),
			"key does not match cached address")
	}
	return priv, nil
}
