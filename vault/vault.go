// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package vault provides the key vault: seeds, wallets and their entries
// persisted as encrypted records, and the workflows that provision and use
// them.
//
// Every change to a wallet is made under the wallet's lock and persisted in
// a single atomic record update, so a failed or cancelled operation leaves
// the stored wallet untouched.
package vault

import (
	"os"
	"path/filepath"
	"time"

	"github.com/decred/keyvault/encrypted"
	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hwkey"
	"github.com/decred/keyvault/keystore"
	"github.com/decred/keyvault/records"
	"github.com/decred/keyvault/storage"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
)

// Record file extensions.
const (
	SeedExt       = "seed"
	WalletExt     = "wallet"
	PrivateKeyExt = "key"
)

// DefaultHardwareTimeout bounds each hardware interaction when the
// configuration does not set one.
const DefaultHardwareTimeout = 30 * time.Second

// Config describes how a Vault is opened.
type Config struct {
	// Dir is the base directory of the records.  It must exist.
	Dir string

	// KeystoreDir is the directory of legacy keyfiles.  It defaults to
	// the keystore directory below Dir.  Keyfile operations fail with
	// StorageUnavailable when it does not exist.
	KeystoreDir string

	// Hardware connects hardware devices.  Hardware backed seeds yield no
	// key material when nil.
	Hardware        *hwkey.Connector
	HardwareTimeout time.Duration

	// Encryption configures the containers of new secrets.
	Encryption *encrypted.Config

	Clock     clock.Clock
	CacheSize int
}

// Vault is an open key vault.
type Vault struct {
	seeds   *storage.FileStore[*records.Seed]
	wallets *storage.FileStore[*records.Wallet]
	keys    *storage.FileStore[*records.PrivateKeyHolder]

	keystoreDir string
	hw          *hwkey.Connector
	hwTimeout   time.Duration
	enc         *encrypted.Config
	clock       clock.Clock

	walletLocks *keyedMutex
	seedLocks   *keyedMutex
}

// New opens the vault described by cfg.  Nothing is created on disk.
func New(cfg *Config) (*Vault, error) {
	const op errors.Op = "vault.New"
	cacheSize := cfg.CacheSize
	if cacheSize == 0 {
		cacheSize = storage.DefaultCacheSize
	}
	seeds, err := storage.New[*records.Seed](cfg.Dir, SeedExt, records.SeedCodec{}, cacheSize)
	if err != nil {
		return nil, errors.E(op, err)
	}
	wallets, err := storage.New[*records.Wallet](cfg.Dir, WalletExt, records.WalletCodec{}, cacheSize)
	if err != nil {
		return nil, errors.E(op, err)
	}
	keys, err := storage.New[*records.PrivateKeyHolder](cfg.Dir, PrivateKeyExt,
		records.PrivateKeyCodec{}, cacheSize)
	if err != nil {
		return nil, errors.E(op, err)
	}

	v := &Vault{
		seeds:       seeds,
		wallets:     wallets,
		keys:        keys,
		keystoreDir: cfg.KeystoreDir,
		hw:          cfg.Hardware,
		hwTimeout:   cfg.HardwareTimeout,
		enc:         cfg.Encryption,
		clock:       cfg.Clock,
		walletLocks: newKeyedMutex(),
		seedLocks:   newKeyedMutex(),
	}
	if v.keystoreDir == "" {
		v.keystoreDir = filepath.Join(cfg.Dir, "keystore")
	}
	if v.hwTimeout <= 0 {
		v.hwTimeout = DefaultHardwareTimeout
	}
	if v.enc == nil {
		v.enc = encrypted.DefaultConfig()
	}
	if v.clock == nil {
		v.clock = clock.NewDefaultClock()
	}
	log.Debugf("Opened vault at %s", cfg.Dir)
	return v, nil
}

// Create makes the base directory of cfg and opens the vault.
func Create(cfg *Config) (*Vault, error) {
	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, errors.E(errors.Op("vault.Create"), errors.StorageUnavailable,
			errors.Field(cfg.Dir), err)
	}
	return New(cfg)
}

// now returns the record timestamp of the current time at the precision
// records are stored with.
func (v *Vault) now() time.Time {
	return v.clock.Now().UTC().Truncate(time.Millisecond)
}

// keystore opens the keyfile directory.
func (v *Vault) keystore() (*keystore.Dir, error) {
	return keystore.OpenDir(v.keystoreDir, v.clock)
}

// CreateWallet stores a new empty wallet.
func (v *Vault) CreateWallet(label string) (uuid.UUID, error) {
	const op errors.Op = "vault.CreateWallet"
	id, err := v.wallets.Add(&records.Wallet{Label: label, CreatedAt: v.now()})
	if err != nil {
		return uuid.Nil, errors.E(op, err)
	}
	log.Infof("Created wallet %v", id)
	return id, nil
}

// Wallet returns the stored wallet.
func (v *Vault) Wallet(id uuid.UUID) (*records.Wallet, error) {
	w, err := v.wallets.Get(id)
	if err != nil {
		return nil, errors.E(errors.Op("vault.Wallet"), err)
	}
	return w, nil
}

// Wallets returns every stored wallet.
func (v *Vault) Wallets() ([]*records.Wallet, error) {
	ws, err := v.wallets.List()
	if err != nil {
		return nil, errors.E(errors.Op("vault.Wallets"), err)
	}
	return ws, nil
}

// UpdateWalletLabel renames a wallet.
func (v *Vault) UpdateWalletLabel(id uuid.UUID, label string) error {
	return v.updateWallet("vault.UpdateWalletLabel", id, func(w *records.Wallet) error {
		w.Label = label
		return nil
	})
}

// RemoveWallet deletes a wallet.  Seeds and private keys referenced by its
// entries are kept.
func (v *Vault) RemoveWallet(id uuid.UUID) error {
	const op errors.Op = "vault.RemoveWallet"
	v.walletLocks.lock(id)
	defer v.walletLocks.unlock(id)
	if err := v.wallets.Remove(id); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// updateWallet applies fn to the stored wallet under its lock and persists
// the result.  Nothing is written when fn fails.
func (v *Vault) updateWallet(op errors.Op, id uuid.UUID, fn func(w *records.Wallet) error) error {
	v.walletLocks.lock(id)
	defer v.walletLocks.unlock(id)

	w, err := v.wallets.Get(id)
	if err != nil {
		return errors.E(op, err)
	}
	if err := fn(w); err != nil {
		return errors.E(op, err)
	}
	if err := w.Validate(); err != nil {
		return errors.E(op, errors.Bug, err)
	}
	if err := v.wallets.Update(w); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// RemoveEntry deletes an entry of a wallet.  Its id is never reissued.
func (v *Vault) RemoveEntry(walletID uuid.UUID, entryID uint32) error {
	return v.updateWallet("vault.RemoveEntry", walletID, func(w *records.Wallet) error {
		return w.RemoveEntry(entryID)
	})
}

// UpdateEntryLabel renames an entry of a wallet.
func (v *Vault) UpdateEntryLabel(walletID uuid.UUID, entryID uint32, label string) error {
	return v.updateWallet("vault.UpdateEntryLabel", walletID, func(w *records.Wallet) error {
		e, err := w.Entry(entryID)
		if err != nil {
			return err
		}
		e.Label = label
		return nil
	})
}
