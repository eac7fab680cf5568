// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"context"

	"github.com/decred/keyvault/encrypted"
	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hwkey"
	"github.com/decred/keyvault/hwkey/ledger"
	"github.com/decred/keyvault/records"
	"github.com/decred/keyvault/walletseed"
	"github.com/google/uuid"
)

// CreateSeedBytes encrypts seed with passphrase and stores it.
func (v *Vault) CreateSeedBytes(seed, passphrase []byte, label string) (uuid.UUID, error) {
	const op errors.Op = "vault.CreateSeedBytes"
	if len(passphrase) == 0 {
		return uuid.Nil, errors.E(op, errors.PasswordRequired, errors.Field("passphrase"))
	}
	c, err := encrypted.Encrypt(seed, passphrase, v.enc)
	if err != nil {
		return uuid.Nil, errors.E(op, err)
	}
	id, err := v.seeds.Add(&records.Seed{
		Label:     label,
		Source:    &records.BytesSource{Encrypted: c},
		CreatedAt: v.now(),
	})
	if err != nil {
		return uuid.Nil, errors.E(op, err)
	}
	log.Infof("Created seed %v", id)
	return id, nil
}

// CreateSeed stores the BIP39 seed of mnemonic, encrypted with passphrase.
// mnemonicPassword is the optional BIP39 password.
func (v *Vault) CreateSeed(mnemonic, mnemonicPassword string, passphrase []byte, label string) (uuid.UUID, error) {
	const op errors.Op = "vault.CreateSeed"
	if err := walletseed.ValidateMnemonic(mnemonic); err != nil {
		return uuid.Nil, errors.E(op, err)
	}
	seed, err := walletseed.MnemonicToSeed(mnemonic, mnemonicPassword)
	if err != nil {
		return uuid.Nil, errors.E(op, err)
	}
	defer zero(seed)
	id, err := v.CreateSeedBytes(seed, passphrase, label)
	if err != nil {
		return uuid.Nil, errors.E(op, err)
	}
	return id, nil
}

// ImportHardwareSeed stores a seed served by the connected device.  The
// fingerprint of the device is recorded when its Bitcoin application is
// open.  Otherwise the seed matches any device.
func (v *Vault) ImportHardwareSeed(ctx context.Context, label string) (uuid.UUID, error) {
	const op errors.Op = "vault.ImportHardwareSeed"
	if v.hw == nil {
		return uuid.Nil, errors.E(op, errors.Unavailable, "no hardware connector")
	}
	ctx, cancel := context.WithTimeout(ctx, v.hwTimeout)
	defer cancel()
	h, err := v.hw.Connect(ctx)
	if err != nil {
		return uuid.Nil, errors.E(op, err)
	}
	defer h.Close()

	src := new(records.HardwareSource)
	app := ledger.NewBitcoinApp(h)
	info, err := ledger.GetAppInfo(ctx, h)
	switch {
	case err == nil && (info.Name == ledger.AppBitcoin || info.Name == ledger.AppBitcoinTestnet):
		fp, err := app.Fingerprint(ctx)
		if err != nil {
			return uuid.Nil, errors.E(op, err)
		}
		src.Fingerprints = []hwkey.Fingerprint{fp}
	case err != nil && !errors.Is(errors.WrongApp, err):
		return uuid.Nil, errors.E(op, err)
	}

	id, err := v.seeds.Add(&records.Seed{Label: label, Source: src, CreatedAt: v.now()})
	if err != nil {
		return uuid.Nil, errors.E(op, err)
	}
	log.Infof("Imported hardware seed %v from %s (%d fingerprints)", id,
		h.Info().Product, len(src.Fingerprints))
	return id, nil
}

// Seed returns the stored seed.
func (v *Vault) Seed(id uuid.UUID) (*records.Seed, error) {
	s, err := v.seeds.Get(id)
	if err != nil {
		return nil, errors.E(errors.Op("vault.Seed"), err)
	}
	return s, nil
}

// Seeds returns every stored seed.
func (v *Vault) Seeds() ([]*records.Seed, error) {
	ss, err := v.seeds.List()
	if err != nil {
		return nil, errors.E(errors.Op("vault.Seeds"), err)
	}
	return ss, nil
}

// UpdateSeedLabel renames a seed.  The label is the only mutable field.
func (v *Vault) UpdateSeedLabel(id uuid.UUID, label string) error {
	const op errors.Op = "vault.UpdateSeedLabel"
	v.seedLocks.lock(id)
	defer v.seedLocks.unlock(id)
	s, err := v.seeds.Get(id)
	if err != nil {
		return errors.E(op, err)
	}
	s.Label = label
	if err := v.seeds.Update(s); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// decryptSeed returns the plaintext of a bytes seed.
func decryptSeed(op errors.Op, src *records.BytesSource, password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, errors.E(op, errors.PasswordRequired, errors.Field("seed_password"))
	}
	seed, err := src.Encrypted.Decrypt(password)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return seed, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
