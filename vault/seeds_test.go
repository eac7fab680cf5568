// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"context"
	"testing"

	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/records"
	"github.com/decred/keyvault/walletseed"
	"github.com/stretchr/testify/require"
)

func TestCreateSeed(t *testing.T) {
	v := newVault(t, nil)

	_, err := v.CreateSeed("abandon abandon", "", password, "")
	require.True(t, errors.Is(errors.InvalidFieldValue, err), "%v", err)
	_, err = v.CreateSeed(abandon, "", nil, "")
	require.True(t, errors.Is(errors.PasswordRequired, err), "%v", err)

	id, err := v.CreateSeed("  Abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon ABOUT ",
		"", password, "paper")
	require.NoError(t, err)
	s, err := v.Seed(id)
	require.NoError(t, err)
	require.Equal(t, "paper", s.Label)
	require.Equal(t, testTime, s.CreatedAt)

	src, ok := s.Source.(*records.BytesSource)
	require.True(t, ok, "source is %T", s.Source)
	plain, err := src.Encrypted.Decrypt(password)
	require.NoError(t, err)
	want, err := walletseed.MnemonicToSeed(abandon, "")
	require.NoError(t, err)
	require.Equal(t, want, plain)

	require.NoError(t, v.UpdateSeedLabel(id, "renamed"))
	s, err = v.Seed(id)
	require.NoError(t, err)
	require.Equal(t, "renamed", s.Label)

	seeds, err := v.Seeds()
	require.NoError(t, err)
	require.Len(t, seeds, 1)
}

func TestImportHardwareSeed(t *testing.T) {
	v := newVault(t, nil)
	_, err := v.ImportHardwareSeed(context.Background(), "")
	require.True(t, errors.Is(errors.Unavailable, err), "%v", err)

	hw, _ := ledgerConnector(t, "Bitcoin")
	v = newVault(t, hw)
	id, err := v.ImportHardwareSeed(context.Background(), "nano")
	require.NoError(t, err)
	s, err := v.Seed(id)
	require.NoError(t, err)
	src := s.Source.(*records.HardwareSource)
	require.Len(t, src.Fingerprints, 1)
	require.Equal(t, "73c5da0a", src.Fingerprints[0].String())

	// The Ethereum application reports no fingerprint.
	hw, _ = ledgerConnector(t, "Ethereum")
	v = newVault(t, hw)
	id, err = v.ImportHardwareSeed(context.Background(), "")
	require.NoError(t, err)
	s, err = v.Seed(id)
	require.NoError(t, err)
	require.Empty(t, s.Source.(*records.HardwareSource).Fingerprints)
}
