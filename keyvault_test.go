// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/decred/keyvault/blockchain"
	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hwkey"
	"github.com/decred/keyvault/kdf"
	"github.com/stretchr/testify/require"
)

const (
	abandon = "abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon abandon about"
	abandonXPub = "zpub6rFR7y4Q2AijBEqTUquhVz398htDFrtymD9xYYfG1m4wAcvPhXNfE3EfH1r1A" +
		"DqtfSdVCToUG868RvUUkgDKf31mGDtKsAYz2oz2AGutZYs"
)

func TestCleanAndExpandPath(t *testing.T) {
	t.Setenv("KEYVAULT_TEST_DIR", "/tmp/kv")
	require.Equal(t, "/tmp/kv/records", cleanAndExpandPath("$KEYVAULT_TEST_DIR/./records/"))
	require.Equal(t, "relative", cleanAndExpandPath("relative/"))

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		require.Equal(t, filepath.Join(home, "vault"), cleanAndExpandPath("~/vault"))
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, args, err := loadConfig([]string{"--appdata=" + dir, "--nofilelogging",
		"--kdf=pbkdf2", "--chain=goerli", "--hwfailfast", "listwallets"})
	require.NoError(t, err)
	require.Equal(t, []string{"listwallets"}, args)
	require.Equal(t, filepath.Join(dir, "vault"), cfg.vaultDir())
	require.Equal(t, filepath.Join(dir, "keystore"), cfg.KeystoreDir)
	require.Equal(t, filepath.Join(dir, "logs"), cfg.LogDir)
	require.Equal(t, kdf.Pbkdf2, cfg.encryption().KDF)
	require.Equal(t, blockchain.Goerli, cfg.Chain.ID)
	require.Equal(t, blockchain.Bitcoin, cfg.bitcoinChain())
	require.Equal(t, hwkey.FailFast, cfg.hardwareOptions().Policy)

	// The sample config was written and is parsed on the next run.
	confFile := filepath.Join(dir, defaultConfigFilename)
	b, err := os.ReadFile(confFile)
	require.NoError(t, err)
	require.Equal(t, sampleKeyvaultConf, string(b))

	b = append(b, "\ntestnet=1\nchain=ETC\n"...)
	require.NoError(t, os.WriteFile(confFile, b, 0600))
	cfg, _, err = loadConfig([]string{"--appdata=" + dir, "--nofilelogging"})
	require.NoError(t, err)
	require.Equal(t, blockchain.BitcoinTestnet, cfg.bitcoinChain())
	require.Equal(t, blockchain.EthereumClassic, cfg.Chain.ID)
	require.Equal(t, kdf.Scrypt, cfg.encryption().KDF)

	// Command line options take precedence over the config file.
	cfg, _, err = loadConfig([]string{"--appdata=" + dir, "--nofilelogging", "--chain=ETH"})
	require.NoError(t, err)
	require.Equal(t, blockchain.Ethereum, cfg.Chain.ID)

	tests := [][]string{
		{"--scryptn=3"},
		{"--scryptn=4194304"},
		{"--pbkdf2iterations=0"},
		{"--pbkdf2iterations=4000000000"},
		{"--chain=BTC"},
		{"--hwtimeout=0s"},
		{"--debuglevel=LOUD"},
		{"--debuglevel=NOPE=debug"},
	}
	for _, extra := range tests {
		_, _, err := loadConfig(append([]string{"--appdata=" + dir, "--nofilelogging"}, extra...))
		require.Error(t, err, "%v", extra)
	}
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	cfg, _, err := loadConfig([]string{"--appdata=" + dir, "--nofilelogging",
		"--scryptn=1024", "--label=main"})
	require.NoError(t, err)

	input := strings.Join([]string{
		// createseed
		"yes", abandon, "", "no", "secret", "secret",
		// addbtc
		"secret",
	}, "\n") + "\n"
	var out bytes.Buffer
	a, err := newApp(cfg, nil, strings.NewReader(input), &out)
	require.NoError(t, err)
	ctx := context.Background()
	lastLine := func() string {
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		return strings.TrimSpace(lines[len(lines)-1])
	}

	require.NoError(t, a.runCommand(ctx, []string{"createseed"}))
	seedID := lastLine()
	require.NoError(t, a.runCommand(ctx, []string{"createwallet"}))
	walletID := lastLine()
	require.NoError(t, a.runCommand(ctx, []string{"addbtc", walletID, seedID, "m/84'/0'/0'"}))
	require.Equal(t, "0", lastLine())

	out.Reset()
	require.NoError(t, a.runCommand(ctx, []string{"listwallets"}))
	require.Contains(t, out.String(), walletID)
	require.Contains(t, out.String(), abandonXPub)
	out.Reset()
	require.NoError(t, a.runCommand(ctx, []string{"listseeds"}))
	require.Contains(t, out.String(), seedID)
	require.Contains(t, out.String(), "encrypted")

	err = a.runCommand(ctx, nil)
	require.True(t, errors.Is(errors.Invalid, err), "%v", err)
	err = a.runCommand(ctx, []string{"frobnicate"})
	require.True(t, errors.Is(errors.Invalid, err), "%v", err)
	err = a.runCommand(ctx, []string{"addbtc", walletID})
	require.True(t, errors.Is(errors.Invalid, err), "%v", err)
	err = a.runCommand(ctx, []string{"addbtc", "not-a-uuid", seedID, "m/84'/0'/1'"})
	require.True(t, errors.Is(errors.InvalidFieldValue, err), "%v", err)
	err = a.runCommand(ctx, []string{"addbtchw", walletID, "m/84'/0'/0'/0/0"})
	require.True(t, errors.Is(errors.Unavailable, err), "%v", err)
	err = a.runCommand(ctx, []string{"hwinfo"})
	require.True(t, errors.Is(errors.Unavailable, err), "%v", err)

	// The keystore directory is not created by the vault.
	err = a.runCommand(ctx, []string{"listkeyfiles"})
	require.True(t, errors.Is(errors.StorageUnavailable, err), "%v", err)
	require.NoError(t, os.MkdirAll(cfg.KeystoreDir, 0700))
	require.NoError(t, a.runCommand(ctx, []string{"listkeyfiles"}))
}
