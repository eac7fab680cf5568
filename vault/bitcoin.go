// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/decred/keyvault/blockchain"
	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hdkey"
	"github.com/decred/keyvault/hdpath"
	"github.com/decred/keyvault/hwkey"
	"github.com/decred/keyvault/hwkey/ledger"
	"github.com/decred/keyvault/records"
	"github.com/google/uuid"
)

// AddEntryOptions are the optional inputs of seed based provisioning.
type AddEntryOptions struct {
	// SeedPassword decrypts bytes seeds.
	SeedPassword []byte

	// XPub is the expected account key of a Bitcoin entry.  It is used
	// as is when the seed yields no key material, and must equal the
	// derived key otherwise.
	XPub *hdkey.XPub

	Label string
}

// BitcoinEntries provisions Bitcoin entries of one wallet.
type BitcoinEntries struct {
	v        *Vault
	walletID uuid.UUID
}

// AddBitcoinEntry returns the Bitcoin provisioning workflows of a wallet.
func (v *Vault) AddBitcoinEntry(walletID uuid.UUID) *BitcoinEntries {
	return &BitcoinEntries{v: v, walletID: walletID}
}

// addressType is the script type of new Bitcoin entries.
const addressType = hdkey.P2WPKH

// SeedHD adds an entry for the account of a seed and returns its id.  The
// entry keeps the account xpub and derives its key at the first receive
// address.  The account's coin type is taken from the chain.
//
// The wallet is locked from the first read to the final write, and nothing
// is written unless every step succeeds.
func (b *BitcoinEntries) SeedHD(ctx context.Context, seedID uuid.UUID, account hdpath.AccountPath,
	chain blockchain.ID, opts *AddEntryOptions) (uint32, error) {

	const op errors.Op = "vault.AddBitcoinEntry.SeedHD"
	v := b.v
	if opts == nil {
		opts = new(AddEntryOptions)
	}
	if chain.Type() != blockchain.FamilyBitcoin {
		return 0, errors.E(op, errors.IncorrectBlockchain, errors.Field(chain.String()))
	}
	params, err := chain.BitcoinParams()
	if err != nil {
		return 0, errors.E(op, err)
	}
	net := hdkey.NetworkOf(params)
	if err := addressType.CheckPath(account); err != nil {
		return 0, errors.E(op, err)
	}
	path, err := addressType.GetHDPath(account.Account, net)
	if err != nil {
		return 0, errors.E(op, err)
	}

	v.walletLocks.lock(b.walletID)
	defer v.walletLocks.unlock(b.walletID)

	w, err := v.wallets.Get(b.walletID)
	if err != nil {
		return 0, errors.E(op, err)
	}
	seed, err := v.seeds.Get(seedID)
	if err != nil {
		return 0, errors.E(op, err)
	}

	var derived *hdkey.XPub
	switch src := seed.Source.(type) {
	case *records.BytesSource:
		raw, err := decryptSeed(op, src, opts.SeedPassword)
		if err != nil {
			return 0, err
		}
		key, err := hdkey.Derive(raw, path.Path(), params)
		zero(raw)
		if err != nil {
			return 0, errors.E(op, err)
		}
		derived, err = hdkey.NewXPub(key, addressType, net)
		if err != nil {
			return 0, errors.E(op, err)
		}
	case *records.HardwareSource:
		derived, err = v.ledgerXPub(ctx, src, path, net)
		if err != nil {
			return 0, errors.E(op, err)
		}
	default:
		return 0, errors.E(op, errors.Bug, errors.Errorf("unknown seed source %T", src))
	}

	xpub, err := reconcileXPub(opts.XPub, derived)
	if err != nil {
		return 0, errors.E(op, err)
	}
	if xpub.Network() != net {
		return 0, errors.E(op, errors.IncorrectBlockchain, errors.Field(chain.String()),
			errors.Errorf("%v key for %v chain", xpub.Network(), net))
	}

	if err := ctx.Err(); err != nil {
		return 0, errors.E(op, err)
	}
	id, err := w.AddEntry(records.WalletEntry{
		Blockchain: chain,
		Label:      opts.Label,
		Address:    &records.ExtendedPub{XPub: xpub},
		Key:        &records.SeedHD{SeedID: seedID, Path: path.Address(0, 0)},
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
	log.Infof("Added %v entry %d (%v) to wallet %v", chain, id, path, b.walletID)
	return id, nil
}

// HardwareKey adds an entry for the key at path of the connected device.  The
// entry is pinned to the device by its master key fingerprint and stores the
// P2WPKH address of the key.  Unlike SeedHD no seed record is involved, so the
// account is not reserved.
func (b *BitcoinEntries) HardwareKey(ctx context.Context, path hdpath.StandardPath,
	chain blockchain.ID, label string) (uint32, error) {

	const op errors.Op = "vault.AddBitcoinEntry.HardwareKey"
	v := b.v
	if chain.Type() != blockchain.FamilyBitcoin {
		return 0, errors.E(op, errors.IncorrectBlockchain, errors.Field(chain.String()))
	}
	params, err := chain.BitcoinParams()
	if err != nil {
		return 0, errors.E(op, err)
	}
	net := hdkey.NetworkOf(params)
	if err := addressType.CheckPath(path.AccountPath); err != nil {
		return 0, errors.E(op, err)
	}
	if path.CoinType != net.CoinType() {
		return 0, errors.E(op, errors.IncorrectBlockchain, errors.Field(path.String()),
			errors.Errorf("coin type %d on %v", path.CoinType, net))
	}
	if v.hw == nil {
		return 0, errors.E(op, errors.Unavailable, "no hardware connector")
	}

	hwctx, cancel := context.WithTimeout(ctx, v.hwTimeout)
	defer cancel()
	h, err := v.hw.Connect(hwctx)
	if err != nil {
		return 0, errors.E(op, err)
	}
	defer h.Close()
	app := ledger.NewBitcoinApp(h)
	open, err := app.IsOpen(hwctx, net)
	if err != nil {
		return 0, errors.E(op, err)
	}
	if !open {
		return 0, errors.E(op, errors.WrongApp,
			errors.Errorf("Bitcoin %v application is not open", net))
	}
	fp, err := app.Fingerprint(hwctx)
	if err != nil {
		return 0, errors.E(op, err)
	}
	pub, err := app.PublicKey(hwctx, path.Path())
	if err != nil {
		return 0, errors.E(op, err)
	}
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(pub.SerializeCompressed()), params)
	if err != nil {
		return 0, errors.E(op, errors.Crypto, err)
	}

	v.walletLocks.lock(b.walletID)
	defer v.walletLocks.unlock(b.walletID)

	w, err := v.wallets.Get(b.walletID)
	if err != nil {
		return 0, errors.E(op, err)
	}
	if err := ctx.Err(); err != nil {
		return 0, errors.E(op, err)
	}
	id, err := w.AddEntry(records.WalletEntry{
		Blockchain: chain,
		Label:      label,
		Address:    &records.PlainAddress{Value: addr.EncodeAddress()},
		Key:        &records.HardwareKey{Fingerprint: fp, Path: path},
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
	log.Infof("Added %v entry %d (%v on %v) to wallet %v", chain, id, path, fp, b.walletID)
	return id, nil
}

// reconcileXPub picks the account key from the expected and the derived
// keys.  Both must agree when present.
func reconcileXPub(expected, derived *hdkey.XPub) (*hdkey.XPub, error) {
	switch {
	case expected != nil && derived != nil:
		if !expected.Equal(derived) {
			return nil, errors.E(errors.InvalidData, errors.Field("xpub"), "different xpub")
		}
		return derived, nil
	case derived != nil:
		return derived, nil
	case expected != nil:
		return expected, nil
	}
	return nil, errors.E(errors.PublicKeyUnavailable, errors.Field("xpub"))
}

// connect returns a handle of the first connected device, or nil when no
// device can be reached.
func (v *Vault) connect(ctx context.Context) *hwkey.Handle {
	if v.hw == nil {
		return nil
	}
	h, err := v.hw.Connect(ctx)
	if err != nil {
		log.Debugf("No hardware device: %v", err)
		return nil
	}
	return h
}

// ledgerXPub reads the account key from the Bitcoin application of a
// connected device.  It returns nil without error when no device serving
// src is reachable or the application for net is not open.
func (v *Vault) ledgerXPub(ctx context.Context, src *records.HardwareSource,
	path hdpath.AccountPath, net hdkey.Network) (*hdkey.XPub, error) {

	ctx, cancel := context.WithTimeout(ctx, v.hwTimeout)
	defer cancel()
	h := v.connect(ctx)
	if h == nil {
		return nil, nil
	}
	defer h.Close()

	app := ledger.NewBitcoinApp(h)
	open, err := app.IsOpen(ctx, net)
	if err != nil {
		log.Debugf("Device %s unreachable: %v", h.Info().ID, err)
		return nil, nil
	}
	if !open {
		log.Debugf("Bitcoin %v application is not open on %s", net, h.Info().ID)
		return nil, nil
	}
	if len(src.Fingerprints) > 0 {
		fp, err := app.Fingerprint(ctx)
		if err != nil {
			return nil, err
		}
		if !src.Matches(fp) {
			log.Debugf("Device %s (%v) does not hold the seed", h.Info().ID, fp)
			return nil, nil
		}
	}
	return app.GetXPub(ctx, path, addressType, net)
}
