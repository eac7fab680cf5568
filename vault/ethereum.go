// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"context"
	"crypto/ecdsa"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/keyvault/blockchain"
	"github.com/decred/keyvault/encrypted"
	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hdkey"
	"github.com/decred/keyvault/hdpath"
	"github.com/decred/keyvault/hwkey/ledger"
	"github.com/decred/keyvault/keystore"
	"github.com/decred/keyvault/records"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// EthereumEntries provisions Ethereum family entries of one wallet.
type EthereumEntries struct {
	v        *Vault
	walletID uuid.UUID
}

// AddEthereumEntry returns the Ethereum provisioning workflows of a wallet.
func (v *Vault) AddEthereumEntry(walletID uuid.UUID) *EthereumEntries {
	return &EthereumEntries{v: v, walletID: walletID}
}

func checkEthereum(op errors.Op, chain blockchain.ID) error {
	if !chain.Valid() || chain.Type() != blockchain.FamilyEthereum {
		return errors.E(op, errors.IncorrectBlockchain, errors.Field(chain.String()))
	}
	return nil
}

// SeedHD adds an entry for the address at path of a seed.  expected, when
// not nil, must equal the address the seed yields, and is used as is when
// the seed yields nothing.
func (e *EthereumEntries) SeedHD(ctx context.Context, seedID uuid.UUID, path hdpath.StandardPath,
	chain blockchain.ID, expected *common.Address, opts *AddEntryOptions) (uint32, error) {

	const op errors.Op = "vault.AddEthereumEntry.SeedHD"
	v := e.v
	if opts == nil {
		opts = new(AddEntryOptions)
	}
	if err := checkEthereum(op, chain); err != nil {
		return 0, err
	}

	v.walletLocks.lock(e.walletID)
	defer v.walletLocks.unlock(e.walletID)

	w, err := v.wallets.Get(e.walletID)
	if err != nil {
		return 0, errors.E(op, err)
	}
	seed, err := v.seeds.Get(seedID)
	if err != nil {
		return 0, errors.E(op, err)
	}

	var derived *common.Address
	switch src := seed.Source.(type) {
	case *records.BytesSource:
		raw, err := decryptSeed(op, src, opts.SeedPassword)
		if err != nil {
			return 0, err
		}
		key, err := hdkey.Derive(raw, path.Path(), &chaincfg.MainNetParams)
		zero(raw)
		if err != nil {
			return 0, errors.E(op, err)
		}
		addr, err := hdkey.EthereumAddress(key)
		if err != nil {
			return 0, errors.E(op, err)
		}
		derived = &addr
	case *records.HardwareSource:
		derived, err = v.ledgerAddress(ctx, path)
		if err != nil {
			return 0, errors.E(op, err)
		}
	default:
		return 0, errors.E(op, errors.Bug, errors.Errorf("unknown seed source %T", src))
	}

	var addr common.Address
	switch {
	case expected != nil && derived != nil:
		if *expected != *derived {
			return 0, errors.E(op, errors.InvalidData, errors.Field("address"), "different address")
		}
		addr = *derived
	case derived != nil:
		addr = *derived
	case expected != nil:
		addr = *expected
	default:
		return 0, errors.E(op, errors.PublicKeyUnavailable, errors.Field("address"))
	}

	if err := ctx.Err(); err != nil {
		return 0, errors.E(op, err)
	}
	id, err := w.AddEntry(records.WalletEntry{
		Blockchain: chain,
		Label:      opts.Label,
		Address:    &records.PlainAddress{Value: addr.Hex()},
		Key:        &records.SeedHD{SeedID: seedID, Path: path},
		CreatedAt:  v.now(),
	})
	if err != nil {
		return 0, errors.E(op, err)
	}
	if err := w.Validate(); err != nil {
		return 0, errors.E(op, errors.Bug, err)
	}
	if err := v.wallets.Update(w); err != nil {
		return 0, errors.E(op, err)
	}
	log.Infof("Added %v entry %d (%v) to wallet %v", chain, id, path, e.walletID)
	return id, nil
}

// ledgerAddress reads the address at path from the Ethereum application of
// a connected device.  The application exposes no master fingerprint, so the
// device is not matched against the seed.
func (v *Vault) ledgerAddress(ctx context.Context, path hdpath.StandardPath) (*common.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, v.hwTimeout)
	defer cancel()
	h := v.connect(ctx)
	if h == nil {
		return nil, nil
	}
	defer h.Close()

	app := ledger.NewEthereumApp(h)
	open, err := app.IsOpen(ctx)
	if err != nil || !open {
		log.Debugf("Ethereum application is not available on %s: %v", h.Info().ID, err)
		return nil, nil
	}
	addr, err := app.GetAddress(ctx, path.Path())
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// ImportPk3 encrypts key with passphrase, stores it as a private key record
// and adds an entry referring to it.
func (e *EthereumEntries) ImportPk3(key *ecdsa.PrivateKey, passphrase []byte,
	chain blockchain.ID, label string) (uint32, error) {

	const op errors.Op = "vault.AddEthereumEntry.ImportPk3"
	if len(passphrase) == 0 {
		return 0, errors.E(op, errors.PasswordRequired, errors.Field("passphrase"))
	}
	raw := crypto.FromECDSA(key)
	c, err := encrypted.Encrypt(raw, passphrase, e.v.enc)
	zero(raw)
	if err != nil {
		return 0, errors.E(op, err)
	}
	return e.importContainer(op, crypto.PubkeyToAddress(key.PublicKey), c, chain, label)
}

// ImportKeyfile adds an entry for the key of a legacy keyfile.  The
// encrypted key is stored unchanged, so it keeps the keyfile passphrase.
func (e *EthereumEntries) ImportKeyfile(kf *keystore.KeyFile, chain blockchain.ID) (uint32, error) {
	const op errors.Op = "vault.AddEthereumEntry.ImportKeyfile"
	if kf.Crypto == nil {
		return 0, errors.E(op, errors.FieldIsEmpty, errors.Field("crypto"))
	}
	return e.importContainer(op, kf.Address, kf.Crypto, chain, kf.Name)
}

func (e *EthereumEntries) importContainer(op errors.Op, addr common.Address, c *encrypted.Container,
	chain blockchain.ID, label string) (uint32, error) {

	v := e.v
	if err := checkEthereum(op, chain); err != nil {
		return 0, err
	}

	v.walletLocks.lock(e.walletID)
	defer v.walletLocks.unlock(e.walletID)

	w, err := v.wallets.Get(e.walletID)
	if err != nil {
		return 0, errors.E(op, err)
	}
	keyID, err := v.keys.Add(&records.PrivateKeyHolder{
		Pk:        records.EthereumPk3Key{Address: &addr, Key: c},
		CreatedAt: v.now(),
	})
	if err != nil {
		return 0, errors.E(op, err)
	}
	id, err := w.AddEntry(records.WalletEntry{
		Blockchain: chain,
		Label:      label,
		Address:    &records.PlainAddress{Value: addr.Hex()},
		Key:        &records.EthereumPk3{KeyID: keyID},
		CreatedAt:  v.now(),
	})
	if err == nil {
		err = v.wallets.Update(w)
	}
	if err != nil {
		if rmErr := v.keys.Remove(keyID); rmErr != nil {
			log.Errorf("Failed to remove orphaned key %v: %v", keyID, rmErr)
		}
		return 0, errors.E(op, err)
	}
	log.Infof("Imported %v key %v as entry %d of wallet %v", chain, addr, id, e.walletID)
	return id, nil
}
