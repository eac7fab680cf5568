// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package records

import (
	"math"
	"testing"
	"time"

	"github.com/decred/keyvault/blockchain"
	"github.com/decred/keyvault/encrypted"
	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hdkey"
	"github.com/decred/keyvault/hdpath"
	"github.com/decred/keyvault/hwkey"
	"github.com/decred/keyvault/internal/pbwire"
	"github.com/decred/keyvault/kdf"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var fastKDF = &encrypted.Config{KDF: kdf.Pbkdf2, Pbkdf2Iterations: 16}

var created = time.UnixMilli(1700000000123).UTC()

func container(t *testing.T) *encrypted.Container {
	t.Helper()
	c, err := encrypted.Encrypt([]byte("seed bytes"), []byte("test"), fastKDF)
	require.NoError(t, err)
	return c
}

func standard(t *testing.T, s string) hdpath.StandardPath {
	t.Helper()
	p, err := hdpath.ParseStandard(s)
	require.NoError(t, err)
	return p
}

func TestSeedRoundTrip(t *testing.T) {
	seeds := []*Seed{
		{
			ID:        uuid.New(),
			Label:     "main",
			Source:    &BytesSource{Encrypted: container(t)},
			CreatedAt: created,
		},
		{
			ID: uuid.New(),
			Source: &HardwareSource{Fingerprints: []hwkey.Fingerprint{
				{0x73, 0xc5, 0xda, 0x0a}, {1, 2, 3, 4},
			}},
		},
		{ID: uuid.New(), Source: &HardwareSource{}},
	}
	for _, s := range seeds {
		b, err := EncodeSeed(s)
		require.NoError(t, err)
		got, err := DecodeSeed(b)
		require.NoError(t, err)
		require.Equal(t, s, got)
	}
}

func TestHardwareSourceMatches(t *testing.T) {
	fp := hwkey.Fingerprint{0x73, 0xc5, 0xda, 0x0a}
	require.True(t, (&HardwareSource{}).Matches(fp))
	require.True(t, (&HardwareSource{Fingerprints: []hwkey.Fingerprint{fp}}).Matches(fp))
	require.False(t, (&HardwareSource{Fingerprints: []hwkey.Fingerprint{{1}}}).Matches(fp))
}

func TestPrivateKeyRoundTrip(t *testing.T) {
	addr := common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
	pk := &PrivateKeyHolder{
		ID:        uuid.New(),
		Pk:        EthereumPk3Key{Address: &addr, Key: container(t)},
		CreatedAt: created,
	}
	b, err := EncodePrivateKey(pk)
	require.NoError(t, err)
	got, err := DecodePrivateKey(b)
	require.NoError(t, err)
	require.Equal(t, pk, got)

	pk.Pk.Address = nil
	b, err = EncodePrivateKey(pk)
	require.NoError(t, err)
	got, err = DecodePrivateKey(b)
	require.NoError(t, err)
	require.Nil(t, got.Pk.Address)
}

func TestPrivateKeyFieldErrors(t *testing.T) {
	enc, err := container(t).AppendProto(nil)
	require.NoError(t, err)
	id := uuid.New().String()

	pk3 := func(withValue bool) []byte {
		var b []byte
		b = pbwire.AppendString(b, 1, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
		if withValue {
			b = pbwire.AppendMessage(b, 2, enc)
		}
		return b
	}
	msg := func(id string, eth []byte) []byte {
		var b []byte
		b = pbwire.AppendString(b, 1, id)
		if eth != nil {
			b = pbwire.AppendMessage(b, 2, eth)
		}
		return wrap(FileTypePrivateKey, b)
	}

	tests := []struct {
		name  string
		b     []byte
		kind  errors.Kind
		field errors.Field
	}{
		{"no ethereum", msg(id, nil), errors.InvalidFieldValue, "pk"},
		{"no pk", msg(id, []byte{}), errors.FieldIsEmpty, "pk"},
		{"no value", msg(id, pbwire.AppendMessage(nil, 1, pk3(false))), errors.FieldIsEmpty, "encrypted"},
		{"bad id", msg("not-a-uuid", pbwire.AppendMessage(nil, 1, pk3(true))), errors.InvalidFieldValue, "id"},
		{"no id", msg("", pbwire.AppendMessage(nil, 1, pk3(true))), errors.FieldIsEmpty, "id"},
		{"wrong type", wrap(FileTypeSeed, nil), errors.InvalidFieldValue, "type"},
	}
	for _, test := range tests {
		_, err := DecodePrivateKey(test.b)
		require.True(t, errors.Is(test.kind, err), "%s: %v", test.name, err)
		require.Equal(t, test.field, errors.FieldOf(err), test.name)
	}

	_, err = EncodePrivateKey(&PrivateKeyHolder{ID: uuid.New()})
	require.True(t, errors.Is(errors.FieldIsEmpty, err))
}

func TestVersionGate(t *testing.T) {
	s := &Seed{ID: uuid.New(), Source: &HardwareSource{}}
	good, err := EncodeSeed(s)
	require.NoError(t, err)
	m, err := pbwire.Parse(good)
	require.NoError(t, err)
	payload := m.Bytes(3)

	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Uint64().Filter(func(v uint64) bool { return v != FileVersion }).Draw(t, "version")
		var b []byte
		b = pbwire.AppendUint(b, 1, v)
		b = pbwire.AppendUint(b, 2, uint64(FileTypeSeed))
		b = pbwire.AppendMessage(b, 3, payload)
		_, err := DecodeSeed(b)
		if !errors.Is(errors.UnsupportedVersion, err) {
			t.Fatalf("version %d: %v", v, err)
		}
	})
}

func testWallet(t *testing.T) (*Wallet, uuid.UUID) {
	seedID := uuid.New()
	xpub, err := hdkey.ParseXPub("zpub6rFR7y4Q2AijBEqTUquhVz398htDFrtymD9xYYfG1m4wAcvPhXNfE3EfH1r1ADqtfSdVCToUG868RvUUkgDKf31mGDtKsAYz2oz2AGutZYs")
	require.NoError(t, err)
	w := &Wallet{ID: uuid.New(), Label: "savings", CreatedAt: created}
	mustAdd := func(e WalletEntry) {
		_, err := w.AddEntry(e)
		require.NoError(t, err)
	}
	mustAdd(WalletEntry{
		Blockchain: blockchain.Bitcoin,
		Label:      "btc",
		Key:        &SeedHD{SeedID: seedID, Path: standard(t, "m/84'/0'/0'/0/0")},
		Address:    &ExtendedPub{XPub: xpub},
		CreatedAt:  created,
	})
	mustAdd(WalletEntry{
		Blockchain: blockchain.Ethereum,
		Key:        &EthereumPk3{KeyID: uuid.New()},
		Address:    &PlainAddress{Value: "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"},
	})
	mustAdd(WalletEntry{
		Blockchain: blockchain.Ethereum,
		Key: &HardwareKey{
			Fingerprint: hwkey.Fingerprint{0x73, 0xc5, 0xda, 0x0a},
			Path:        standard(t, "m/44'/60'/0'/0/0"),
		},
	})
	return w, seedID
}

func TestWalletRoundTrip(t *testing.T) {
	w, seedID := testWallet(t)
	require.Equal(t, uint32(3), w.EntrySeq)
	require.Equal(t, []ReservedPath{{SeedID: seedID, AccountID: 0}}, w.Reserved)

	b, err := EncodeWallet(w)
	require.NoError(t, err)
	got, err := DecodeWallet(b)
	require.NoError(t, err)
	require.Equal(t, w, got)
}

func TestWalletRemoveKeepsSeq(t *testing.T) {
	w, _ := testWallet(t)
	require.NoError(t, w.RemoveEntry(2))
	require.Equal(t, uint32(3), w.NextEntryID())
	err := w.RemoveEntry(2)
	require.True(t, errors.Is(errors.NotExist, err))
	_, err = w.Entry(7)
	require.True(t, errors.Is(errors.NotExist, err))
}

func TestWalletEntryIDsExhausted(t *testing.T) {
	w := &Wallet{ID: uuid.New(), EntrySeq: math.MaxUint32 - 1}
	id, err := w.AddEntry(WalletEntry{Blockchain: blockchain.Ethereum,
		Address: &PlainAddress{Value: "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"}})
	require.NoError(t, err)
	require.Equal(t, uint32(math.MaxUint32-1), id)
	require.Equal(t, uint32(math.MaxUint32), w.EntrySeq)

	_, err = w.AddEntry(WalletEntry{Blockchain: blockchain.Ethereum})
	require.True(t, errors.Is(errors.Invalid, err), "%v", err)
	require.Len(t, w.Entries, 1)
	require.Equal(t, uint32(math.MaxUint32), w.EntrySeq)

	// An entry holding the largest id also ends issuing.
	w = &Wallet{ID: uuid.New(), Entries: []WalletEntry{{ID: math.MaxUint32}}}
	_, err = w.AddEntry(WalletEntry{Blockchain: blockchain.Ethereum})
	require.True(t, errors.Is(errors.Invalid, err), "%v", err)
}

func TestWalletValidate(t *testing.T) {
	w, _ := testWallet(t)
	w.EntrySeq = 2
	err := w.Validate()
	require.True(t, errors.Is(errors.InvalidFieldValue, err))
	require.Equal(t, errors.Field("entry_seq"), errors.FieldOf(err))
	_, err = EncodeWallet(w)
	require.Error(t, err)

	w, _ = testWallet(t)
	w.Reserved = nil
	err = w.Validate()
	require.Equal(t, errors.Field("reserved"), errors.FieldOf(err))

	w, _ = testWallet(t)
	w.Entries[1].ID = 0
	err = w.Validate()
	require.Equal(t, errors.Field("entries"), errors.FieldOf(err))
}

func TestReservationProperty(t *testing.T) {
	seeds := []uuid.UUID{uuid.New(), uuid.New()}
	rapid.Check(t, func(t *rapid.T) {
		w := &Wallet{ID: uuid.New()}
		ops := rapid.IntRange(1, 30).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			if len(w.Entries) > 0 && rapid.Bool().Draw(t, "remove") {
				idx := rapid.IntRange(0, len(w.Entries)-1).Draw(t, "idx")
				if err := w.RemoveEntry(w.Entries[idx].ID); err != nil {
					t.Fatal(err)
				}
				continue
			}
			seed := seeds[rapid.IntRange(0, 1).Draw(t, "seed")]
			account := rapid.Uint32Range(0, 5).Draw(t, "account")
			acct, err := hdpath.NewAccountPath(84, 0, account)
			if err != nil {
				t.Fatal(err)
			}
			before := w.EntrySeq
			id, err := w.AddEntry(WalletEntry{
				Blockchain: blockchain.Bitcoin,
				Key:        &SeedHD{SeedID: seed, Path: acct.Address(0, 0)},
			})
			if err != nil {
				t.Fatal(err)
			}
			if id < before {
				t.Fatalf("id %d reissued below entry_seq %d", id, before)
			}
			if !w.IsReserved(seed, account) {
				t.Fatalf("account %d not reserved", account)
			}
		}
		if err := w.Validate(); err != nil {
			t.Fatal(err)
		}
	})
}
