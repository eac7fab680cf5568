// Copyright (c) 2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package walletseed generates seed entropy and converts between BIP39
// mnemonics and HD seeds.
package walletseed

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/keyvault/errors"
	"github.com/tyler-smith/go-bip39"
)

// DefaultEntropyBits is the entropy of generated mnemonics, producing 24 words.
const DefaultEntropyBits = 256

// GenerateRandomSeed returns a new seed created from a cryptographically-secure
// random source.  If the seed size is unacceptable,
// hdkeychain.ErrInvalidSeedLen is returned.
func GenerateRandomSeed(size uint) ([]byte, error) {
	const op errors.Op = "walletseed.GenerateRandomSeed"
	if size >= uint(^uint8(0)) {
		return nil, errors.E(op, errors.Invalid, hdkeychain.ErrInvalidSeedLen)
	}
	if size < hdkeychain.MinSeedBytes || size > hdkeychain.MaxSeedBytes {
		return nil, errors.E(op, errors.Invalid, hdkeychain.ErrInvalidSeedLen)
	}
	seed, err := hdkeychain.GenerateSeed(uint8(size))
	if err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	return seed, nil
}

// GenerateMnemonic returns a new BIP39 mnemonic encoding bits of entropy.
// bits must be a multiple of 32 between 128 and 256.
func GenerateMnemonic(bits int) (string, error) {
	const op errors.Op = "walletseed.GenerateMnemonic"
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", errors.E(op, errors.Invalid, err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", errors.E(op, errors.Bug, err)
	}
	return mnemonic, nil
}

// NormalizeMnemonic lowercases a mnemonic and collapses whitespace between
// words.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

// ValidateMnemonic checks the words and checksum of a BIP39 mnemonic.
func ValidateMnemonic(mnemonic string) error {
	const op errors.Op = "walletseed.ValidateMnemonic"
	if _, err := bip39.EntropyFromMnemonic(NormalizeMnemonic(mnemonic)); err != nil {
		return errors.E(op, errors.InvalidFieldValue, errors.Field("mnemonic"), err)
	}
	return nil
}

// MnemonicToSeed returns the 64 byte BIP39 seed of a mnemonic.  password is the
// optional mnemonic password ("25th word"), not the vault passphrase.
func MnemonicToSeed(mnemonic, password string) ([]byte, error) {
	const op errors.Op = "walletseed.MnemonicToSeed"
	seed, err := bip39.NewSeedWithErrorChecking(NormalizeMnemonic(mnemonic), password)
	if err != nil {
		return nil, errors.E(op, errors.InvalidFieldValue, errors.Field("mnemonic"), err)
	}
	return seed, nil
}

// DecodeUserInput decodes a seed given either as hexadecimal or as a BIP39
// mnemonic without password.
func DecodeUserInput(input string) ([]byte, error) {
	const op errors.Op = "walletseed.DecodeUserInput"
	input = strings.TrimSpace(input)
	if len(strings.Fields(input)) > 1 {
		seed, err := MnemonicToSeed(input, "")
		if err != nil {
			return nil, errors.E(op, err)
		}
		return seed, nil
	}
	seed, err := hex.DecodeString(input)
	if err != nil {
		return nil, errors.E(op, errors.InvalidFieldValue, errors.Field("seed"), err)
	}
	if len(seed) < hdkeychain.MinSeedBytes || len(seed) > hdkeychain.MaxSeedBytes {
		return nil, errors.E(op, errors.InvalidFieldValue, errors.Field("seed"),
			hdkeychain.ErrInvalidSeedLen)
	}
	return seed, nil
}
