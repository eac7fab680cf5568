// Copyright (c) 2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletseed

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/decred/keyvault/errors"
)

var mnemonicTests = []struct {
	mnemonic string
	password string
	seed     string
}{
	{
		mnemonic: "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about",
		password: "TREZOR",
		seed:     "c55257c360c07c72029aebc1b53c05ed0362ada38ead3e3e9efa3708e53495531f09a6987599d18264c1e1c92f2cf141630c7a3c4ab7c81b2f001698e7463b04",
	},
	{
		mnemonic: "legal winner thank year wave sausage worth useful legal winner thank yellow",
		password: "TREZOR",
		seed:     "2e8905819b8723fe2c1d161860e5ee1830318dbf49a83bd451cfb8440c28bd6fa457fe1296106559a3c80937a1c1069be3a3a5bd381ee6260e8d9739fce1f607",
	},
}

func TestMnemonicToSeed(t *testing.T) {
	for i, test := range mnemonicTests {
		seed, err := MnemonicToSeed(test.mnemonic, test.password)
		if err != nil {
			t.Errorf("test %d: error: %v", i, err)
			continue
		}
		if hex.EncodeToString(seed) != test.seed {
			t.Errorf("test %d: got %x want %s", i, seed, test.seed)
		}
	}
}

func TestNormalizeMnemonic(t *testing.T) {
	upper := "  ABANDON abandon abandon abandon abandon abandon\tabandon abandon abandon abandon abandon  About "
	seed, err := MnemonicToSeed(upper, "TREZOR")
	if err != nil {
		t.Fatal(err)
	}
	if hex.EncodeToString(seed) != mnemonicTests[0].seed {
		t.Fatalf("normalized mnemonic produced %x", seed)
	}
}

func TestValidateMnemonic(t *testing.T) {
	if err := ValidateMnemonic(mnemonicTests[0].mnemonic); err != nil {
		t.Fatal(err)
	}
	// Valid words, bad checksum.
	bad := strings.Repeat("abandon ", 12)
	if err := ValidateMnemonic(bad); !errors.Is(errors.InvalidFieldValue, err) {
		t.Fatalf("bad checksum: %v", err)
	}
	if err := ValidateMnemonic("not a mnemonic at all"); !errors.Is(errors.InvalidFieldValue, err) {
		t.Fatalf("bad words: %v", err)
	}
}

func TestGenerateMnemonic(t *testing.T) {
	m, err := GenerateMnemonic(DefaultEntropyBits)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(strings.Fields(m)); n != 24 {
		t.Fatalf("%d words", n)
	}
	if err := ValidateMnemonic(m); err != nil {
		t.Fatal(err)
	}
	if _, err := GenerateMnemonic(100); !errors.Is(errors.Invalid, err) {
		t.Fatalf("bad entropy size: %v", err)
	}
}

func TestGenerateRandomSeed(t *testing.T) {
	seed, err := GenerateRandomSeed(32)
	if err != nil {
		t.Fatal(err)
	}
	if len(seed) != 32 {
		t.Fatalf("seed len %d", len(seed))
	}
	if _, err := GenerateRandomSeed(8); !errors.Is(errors.Invalid, err) {
		t.Fatalf("short seed: %v", err)
	}
}

func TestDecodeUserInput(t *testing.T) {
	want, _ := hex.DecodeString(mnemonicTests[1].seed)
	data, err := DecodeUserInput(mnemonicTests[1].seed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, want) {
		t.Fatalf("hex: got %x", data)
	}

	data, err = DecodeUserInput(mnemonicTests[1].mnemonic)
	if err != nil {
		t.Fatal(err)
	}
	fromMnemonic, _ := MnemonicToSeed(mnemonicTests[1].mnemonic, "")
	if !bytes.Equal(data, fromMnemonic) {
		t.Fatalf("mnemonic: got %x", data)
	}

	if _, err := DecodeUserInput("zz"); !errors.Is(errors.InvalidFieldValue, err) {
		t.Fatalf("bad hex: %v", err)
	}
}
