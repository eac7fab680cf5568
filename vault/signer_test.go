// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"context"
	"testing"

	"github.com/decred/keyvault/blockchain"
	"github.com/decred/keyvault/encrypted"
	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hwkey"
	"github.com/decred/keyvault/records"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestResolveSignerSeed(t *testing.T) {
	v := newVault(t, nil)
	seedID, err := v.CreateSeed(midnight, "", password, "")
	require.NoError(t, err)
	walletID := newWallet(t, v)
	id, err := v.AddBitcoinEntry(walletID).SeedHD(context.Background(), seedID,
		mustAccount(t, "m/84'/0'/3'"), blockchain.Bitcoin, &AddEntryOptions{SeedPassword: password})
	require.NoError(t, err)

	s, err := v.ResolveSigner(context.Background(), walletID, id, password)
	require.NoError(t, err)
	defer s.Close()
	require.False(t, s.IsHardware())

	// The signing key is the first receive key below the stored xpub.
	xpub := s.Entry.Address.(*records.ExtendedPub).XPub
	child, err := xpub.Value.Derive(0)
	require.NoError(t, err)
	child, err = child.Derive(0)
	require.NoError(t, err)
	pub, err := child.ECPubKey()
	require.NoError(t, err)
	require.Equal(t, pub.SerializeCompressed(), s.Key.PubKey().SerializeCompressed())

	_, err = s.SignEthereumTransaction(context.Background(), []byte{0xc0})
	require.True(t, errors.Is(errors.IncorrectBlockchain, err), "%v", err)

	_, err = v.ResolveSigner(context.Background(), walletID, id, nil)
	require.True(t, errors.Is(errors.PasswordRequired, err), "%v", err)
	_, err = v.ResolveSigner(context.Background(), walletID, id+1, password)
	require.True(t, errors.Is(errors.NotExist, err), "%v", err)
	_, err = v.ResolveSigner(context.Background(), uuid.New(), id, password)
	require.True(t, errors.Is(errors.NotExist, err), "%v", err)
}

func TestSignEthereumSoftware(t *testing.T) {
	v := newVault(t, nil)
	seedID, err := v.CreateSeed(abandon, "", password, "")
	require.NoError(t, err)
	walletID := newWallet(t, v)
	id, err := v.AddEthereumEntry(walletID).SeedHD(context.Background(), seedID,
		mustStandard(t, "m/44'/60'/0'/0/0"), blockchain.Ethereum, nil, &AddEntryOptions{SeedPassword: password})
	require.NoError(t, err)

	s, err := v.ResolveSigner(context.Background(), walletID, id, password)
	require.NoError(t, err)
	defer s.Close()

	tx := []byte{0xe6, 0x80, 0x01, 0x82, 0x52, 0x08}
	sig, err := s.SignEthereumTransaction(context.Background(), tx)
	require.NoError(t, err)
	raw := append(append(sig.R[:], sig.S[:]...), sig.V-27)
	pub, err := crypto.SigToPub(crypto.Keccak256(tx), raw)
	require.NoError(t, err)
	require.Equal(t, abandonAddress, crypto.PubkeyToAddress(*pub))
}

func TestResolveSignerHardware(t *testing.T) {
	hw, dev := ledgerConnector(t, "Bitcoin")
	v := newVault(t, hw)
	seedID := addHardwareSeed(t, v)
	walletID := newWallet(t, v)
	id, err := v.AddBitcoinEntry(walletID).SeedHD(context.Background(), seedID,
		mustAccount(t, "m/84'/0'/0'"), blockchain.Bitcoin, noOptions)
	require.NoError(t, err)

	s, err := v.ResolveSigner(context.Background(), walletID, id, nil)
	require.NoError(t, err)
	require.True(t, s.IsHardware())
	require.Nil(t, s.ECDSA())
	require.Equal(t, "m/84'/0'/0'/0/0", s.Path.String())
	require.False(t, dev.Closed())
	require.NoError(t, s.Close())
	require.True(t, dev.Closed())
}

func TestResolveSignerHardwareKey(t *testing.T) {
	hw, _ := ledgerConnector(t, "Bitcoin")
	v := newVault(t, hw)
	walletID := newWallet(t, v)
	path := mustStandard(t, "m/84'/0'/0'/0/0")

	addKey := func(fp string) uint32 {
		f, err := hwkey.ParseFingerprint(fp)
		require.NoError(t, err)
		var id uint32
		err = v.updateWallet("test", walletID, func(w *records.Wallet) error {
			var err error
			id, err = w.AddEntry(records.WalletEntry{
				Blockchain: blockchain.Bitcoin,
				Address:    &records.PlainAddress{Value: "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu"},
				Key:        &records.HardwareKey{Fingerprint: f, Path: path},
			})
			return err
		})
		require.NoError(t, err)
		return id
	}

	s, err := v.ResolveSigner(context.Background(), walletID, addKey("73c5da0a"), nil)
	require.NoError(t, err)
	require.True(t, s.IsHardware())
	require.NoError(t, s.Close())

	_, err = v.ResolveSigner(context.Background(), walletID, addKey("01020304"), nil)
	require.True(t, errors.Is(errors.Unavailable, err), "%v", err)
	require.True(t, errors.Transient(err))
}

func TestResolveSignerLedgerEthereum(t *testing.T) {
	hw, dev := ledgerConnector(t, "Ethereum")
	v := newVault(t, hw)
	seedID := addHardwareSeed(t, v)
	walletID := newWallet(t, v)
	id, err := v.AddEthereumEntry(walletID).SeedHD(context.Background(), seedID,
		mustStandard(t, "m/44'/60'/0'/0/0"), blockchain.Ethereum, nil, nil)
	require.NoError(t, err)

	s, err := v.ResolveSigner(context.Background(), walletID, id, nil)
	require.NoError(t, err)
	defer s.Close()

	tx := make([]byte, 600)
	sig, err := s.SignEthereumTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.Equal(t, byte(0x1b), sig.V)

	// Path and payload were split over continuation frames.
	cmds := dev.Commands()
	last := cmds[len(cmds)-1]
	require.Equal(t, byte(0x04), last.INS)
	require.Len(t, last.Data, 1+4*5+len(tx))
}

func TestResolveSignerNoDevice(t *testing.T) {
	v := newVault(t, nil)
	seedID := addHardwareSeed(t, v)
	walletID := newWallet(t, v)
	id, err := v.AddBitcoinEntry(walletID).SeedHD(context.Background(), seedID,
		mustAccount(t, "m/84'/0'/3'"), blockchain.Bitcoin, &AddEntryOptions{XPub: mustXPub(t, account3XPub)})
	require.NoError(t, err)

	_, err = v.ResolveSigner(context.Background(), walletID, id, nil)
	require.True(t, errors.Is(errors.Unavailable, err), "%v", err)

	require.NoError(t, v.seeds.Remove(seedID))
	_, err = v.ResolveSigner(context.Background(), walletID, id, nil)
	require.True(t, errors.Is(errors.NotExist, err), "%v", err)
}

func TestDirectKeyCorrupt(t *testing.T) {
	v := newVault(t, nil)
	for _, raw := range [][]byte{
		make([]byte, 40),
		make([]byte, 32),
		crypto.S256().Params().N.FillBytes(make([]byte, 32)),
	} {
		c, err := encrypted.Encrypt(raw, password, fastKDF)
		require.NoError(t, err)
		id, err := v.keys.Add(&records.PrivateKeyHolder{Pk: records.EthereumPk3Key{Key: c}, CreatedAt: testTime})
		require.NoError(t, err)
		_, err = v.directKey(id, password)
		require.True(t, errors.Is(errors.InvalidData, err), "%v", err)
	}
}

func TestSignUnknownChain(t *testing.T) {
	s := &Signer{Entry: records.WalletEntry{Blockchain: blockchain.ID(12345)}}
	_, err := s.SignEthereumTransaction(context.Background(), []byte{0xc0})
	require.True(t, errors.Is(errors.IncorrectBlockchain, err), "%v", err)
}
