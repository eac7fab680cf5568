// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/decred/keyvault/blockchain"
	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/keystore"
	"github.com/decred/keyvault/records"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestDecryptKeyfile(t *testing.T) {
	v := newVault(t, nil)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	// Without a keystore directory.
	_, err = v.DecryptKeyfile(addr, password)
	require.True(t, errors.Is(errors.StorageUnavailable, err), "%v", err)
	_, err = v.Keyfiles(false)
	require.True(t, errors.Is(errors.StorageUnavailable, err), "%v", err)
	_, err = v.ExportKeyfile(key, password, "")
	require.True(t, errors.Is(errors.StorageUnavailable, err), "%v", err)

	require.NoError(t, os.Mkdir(v.keystoreDir, 0700))
	name, err := v.ExportKeyfile(key, password, "exported")
	require.NoError(t, err)
	require.Equal(t, v.keystoreDir, filepath.Dir(name))

	got, err := v.DecryptKeyfile(addr, password)
	require.NoError(t, err)
	require.Equal(t, key.D, got.D)
	_, err = v.DecryptKeyfile(addr, []byte("wrong"))
	require.True(t, errors.Is(errors.Passphrase, err), "%v", err)

	accounts, err := v.Keyfiles(false)
	require.NoError(t, err)
	require.Equal(t, []keystore.Account{{Name: "exported", Address: addr}}, accounts)

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, err = v.DecryptKeyfile(crypto.PubkeyToAddress(other.PublicKey), password)
	require.True(t, errors.Is(errors.NotExist, err), "%v", err)
}

func TestDecryptImportedKey(t *testing.T) {
	v := newVault(t, nil)
	walletID := newWallet(t, v)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, err = v.AddEthereumEntry(walletID).ImportPk3(key, password, blockchain.Ethereum, "")
	require.NoError(t, err)

	// Imported keys are found although no keystore directory exists.
	got, err := v.DecryptKeyfile(crypto.PubkeyToAddress(key.PublicKey), password)
	require.NoError(t, err)
	require.Equal(t, key.D, got.D)
}

func TestProvisionEntry(t *testing.T) {
	var c Consumer = newVault(t, nil)
	v := c.(*Vault)
	seedID, err := v.CreateSeed(abandon, "", password, "")
	require.NoError(t, err)
	walletID := newWallet(t, v)

	req := &ProvisionRequest{
		WalletID:   walletID,
		SeedID:     seedID,
		Blockchain: blockchain.Bitcoin,
		Path:       "m/84'/0'/0'",
		Options:    AddEntryOptions{SeedPassword: password},
	}
	btcID, err := c.ProvisionEntry(context.Background(), req)
	require.NoError(t, err)

	req.Blockchain = blockchain.Goerli
	req.Path = "m/44'/60'/1'/0/0"
	ethID, err := c.ProvisionEntry(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, btcID+1, ethID)

	w, err := v.Wallet(walletID)
	require.NoError(t, err)
	require.Equal(t, abandonXPub, w.Entries[0].Address.(*records.ExtendedPub).XPub.String())
	require.Equal(t, []records.ReservedPath{
		{SeedID: seedID, AccountID: 0},
		{SeedID: seedID, AccountID: 1},
	}, w.Reserved)

	// A full path is not an account path.
	req.Blockchain = blockchain.Bitcoin
	_, err = c.ProvisionEntry(context.Background(), req)
	require.True(t, errors.Is(errors.InvalidPath, err), "%v", err)
	req.Blockchain = blockchain.ID(7)
	_, err = c.ProvisionEntry(context.Background(), req)
	require.True(t, errors.Is(errors.IncorrectBlockchain, err), "%v", err)
}
