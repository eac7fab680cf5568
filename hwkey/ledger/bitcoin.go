// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"context"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hdkey"
	"github.com/decred/keyvault/hdpath"
	"github.com/decred/keyvault/hwkey"
	"github.com/decred/keyvault/hwkey/apdu"
)

const (
	claBitcoin         = 0xe0
	insGetWalletPubKey = 0x40
	chainCodeLen       = 32
)

// Address formats of GET_WALLET_PUBLIC_KEY.
const (
	formatLegacy = 0x00
	formatP2SH   = 0x01
	formatBech32 = 0x02
)

func addressFormat(t hdkey.AddressType) byte {
	switch t {
	case hdkey.P2SHP2WPKH:
		return formatP2SH
	case hdkey.P2WPKH:
		return formatBech32
	default:
		return formatLegacy
	}
}

// BitcoinApp talks to the Bitcoin application.
type BitcoinApp struct {
	ex Exchanger
}

// NewBitcoinApp returns a client of the Bitcoin application reached via ex.
func NewBitcoinApp(ex Exchanger) *BitcoinApp {
	return &BitcoinApp{ex: ex}
}

// IsOpen reports whether the Bitcoin application for net is the one open on
// the device.
func (a *BitcoinApp) IsOpen(ctx context.Context, net hdkey.Network) (bool, error) {
	info, err := GetAppInfo(ctx, a.ex)
	if err != nil {
		if errors.Is(errors.WrongApp, err) {
			return false, nil
		}
		return false, err
	}
	want := AppBitcoin
	if net == hdkey.Testnet {
		want = AppBitcoinTestnet
	}
	log.Debugf("Open application %q version %s", info.Name, info.Version)
	return info.Name == want, nil
}

type walletPubKey struct {
	pubKey    *btcec.PublicKey
	address   string
	chainCode []byte
}

func (a *BitcoinApp) walletPubKey(ctx context.Context, p hdpath.Path, format byte) (*walletPubKey, error) {
	const op errors.Op = "ledger.walletPubKey"
	data, err := encodePath(p)
	if err != nil {
		return nil, errors.E(op, err)
	}
	resp, err := a.ex.Exchange(ctx, &apdu.Command{
		CLA:  claBitcoin,
		INS:  insGetWalletPubKey,
		P1:   0x00, // do not display
		P2:   format,
		Data: data,
	})
	if err != nil {
		return nil, errors.E(op, err)
	}
	r := reader{b: resp}
	rawPub := r.lv()
	addr := r.lv()
	chainCode := r.take(chainCodeLen)
	if r.err != nil {
		return nil, errors.E(op, errors.CommError, r.err)
	}
	pub, err := btcec.ParsePubKey(rawPub)
	if err != nil {
		return nil, errors.E(op, errors.CommError, err)
	}
	return &walletPubKey{pubKey: pub, address: string(addr), chainCode: chainCode}, nil
}

// PublicKey returns the public key at path.
func (a *BitcoinApp) PublicKey(ctx context.Context, p hdpath.Path) (*btcec.PublicKey, error) {
	k, err := a.walletPubKey(ctx, p, formatLegacy)
	if err != nil {
		return nil, errors.E(errors.Op("ledger.PublicKey"), err)
	}
	return k.pubKey, nil
}

// Fingerprint returns the fingerprint of the device master key.
func (a *BitcoinApp) Fingerprint(ctx context.Context) (hwkey.Fingerprint, error) {
	var fp hwkey.Fingerprint
	master, err := a.walletPubKey(ctx, nil, formatLegacy)
	if err != nil {
		return fp, errors.E(errors.Op("ledger.Fingerprint"), err)
	}
	copy(fp[:], btcutil.Hash160(master.pubKey.SerializeCompressed()))
	return fp, nil
}

// GetXPub builds the extended public key of account.  The parent key is read
// as well to fill in the parent fingerprint.
func (a *BitcoinApp) GetXPub(ctx context.Context, account hdpath.AccountPath,
	t hdkey.AddressType, net hdkey.Network) (*hdkey.XPub, error) {

	const op errors.Op = "ledger.GetXPub"
	path := account.Path()
	format := addressFormat(t)
	parent, err := a.walletPubKey(ctx, path[:len(path)-1], format)
	if err != nil {
		return nil, errors.E(op, err)
	}
	acct, err := a.walletPubKey(ctx, path, format)
	if err != nil {
		return nil, errors.E(op, err)
	}
	parentFP := btcutil.Hash160(parent.pubKey.SerializeCompressed())[:4]
	key := hdkeychain.NewExtendedKey(chaincfg.MainNetParams.HDPublicKeyID[:],
		acct.pubKey.SerializeCompressed(), acct.chainCode, parentFP,
		uint8(len(path)), path[len(path)-1].Child(), false)
	xpub, err := hdkey.NewXPub(key, t, net)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return xpub, nil
}
