// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keystore reads and writes legacy UTC/JSON keyfiles.
//
// A keyfile is one JSON object per file holding a single encrypted Ethereum
// private key.  Only version 3 files are read.  The keyfile format is
// independent of the binary records: it has its own version and fields.
package keystore

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/decred/keyvault/encrypted"
	"github.com/decred/keyvault/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Version is the only supported keyfile version.
const Version = 3

// KeyFile is a decoded keyfile.
type KeyFile struct {
	ID          uuid.UUID
	Address     common.Address
	Name        string
	Description string

	// Visible is nil when the file carries no visibility flag, which is
	// the same as visible.
	Visible *bool

	Crypto *encrypted.Container
}

// IsVisible reports whether the keyfile is listed by default.
func (kf *KeyFile) IsVisible() bool {
	return kf.Visible == nil || *kf.Visible
}

// NewKeyFile encrypts key with passphrase.  A nil cfg selects the default
// container configuration.
func NewKeyFile(key *ecdsa.PrivateKey, passphrase []byte, cfg *encrypted.Config) (*KeyFile, error) {
	const op errors.Op = "keystore.NewKeyFile"
	raw := crypto.FromECDSA(key)
	defer func() {
		for i := range raw {
			raw[i] = 0
		}
	}()
	c, err := encrypted.Encrypt(raw, passphrase, cfg)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return &KeyFile{
		ID:      uuid.New(),
		Address: crypto.PubkeyToAddress(key.PublicKey),
		Crypto:  c,
	}, nil
}

// DecryptKey decrypts the private key.  A key that does not belong to the
// recorded address fails with InvalidData.
func (kf *KeyFile) DecryptKey(passphrase []byte) (*ecdsa.PrivateKey, error) {
	const op errors.Op = "keystore.DecryptKey"
	if kf.Crypto == nil {
		return nil, errors.E(op, errors.FieldIsEmpty, errors.Field("crypto"))
	}
	raw, err := kf.Crypto.Decrypt(passphrase)
	if err != nil {
		return nil, errors.E(op, err)
	}
	defer func() {
		for i := range raw {
			raw[i] = 0
		}
	}()
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, errors.E(op, errors.InvalidData, errors.Field("crypto"), err)
	}
	if crypto.PubkeyToAddress(key.PublicKey) != kf.Address {
		return nil, errors.E(op, errors.InvalidData, errors.Field("address"),
			"key does not match keyfile address")
	}
	return key, nil
}

type keyFileJSON struct {
	Version     int             `json:"version"`
	ID          string          `json:"id"`
	Address     string          `json:"address"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Visible     *bool           `json:"visible,omitempty"`
	Crypto      json.RawMessage `json:"crypto"`
}

// MarshalJSON implements json.Marshaler.
func (kf *KeyFile) MarshalJSON() ([]byte, error) {
	if kf.Crypto == nil {
		return nil, errors.E(errors.Op("keystore.MarshalJSON"), errors.FieldIsEmpty,
			errors.Field("crypto"))
	}
	c, err := json.Marshal(kf.Crypto)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&keyFileJSON{
		Version:     Version,
		ID:          kf.ID.String(),
		Address:     hex.EncodeToString(kf.Address[:]),
		Name:        kf.Name,
		Description: kf.Description,
		Visible:     kf.Visible,
		Crypto:      c,
	})
}

// UnmarshalJSON implements json.Unmarshaler.  The version is checked before
// any other field.
func (kf *KeyFile) UnmarshalJSON(b []byte) error {
	const op errors.Op = "keystore.UnmarshalJSON"
	var v struct {
		Version json.RawMessage `json:"version"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return errors.E(op, errors.InvalidData, err)
	}
	if len(v.Version) == 0 {
		return errors.E(op, errors.FieldIsEmpty, errors.Field("version"))
	}
	if !bytes.Equal(v.Version, []byte("3")) {
		return errors.E(op, errors.UnsupportedVersion, errors.Field("version"),
			errors.Errorf("keyfile version %s", v.Version))
	}

	var j keyFileJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return errors.E(op, errors.InvalidData, err)
	}
	if j.ID == "" {
		return errors.E(op, errors.FieldIsEmpty, errors.Field("id"))
	}
	id, err := uuid.Parse(j.ID)
	if err != nil {
		return errors.E(op, errors.InvalidFieldValue, errors.Field("id"), err)
	}
	addr, err := parseAddress(j.Address)
	if err != nil {
		return errors.E(op, err)
	}
	if len(j.Crypto) == 0 {
		return errors.E(op, errors.FieldIsEmpty, errors.Field("crypto"))
	}
	c := new(encrypted.Container)
	if err := json.Unmarshal(j.Crypto, c); err != nil {
		return errors.E(op, err)
	}
	*kf = KeyFile{
		ID:          id,
		Address:     addr,
		Name:        j.Name,
		Description: j.Description,
		Visible:     j.Visible,
		Crypto:      c,
	}
	return nil
}

// parseAddress accepts a hex address with or without 0x prefix.
func parseAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, errors.E(errors.FieldIsEmpty, errors.Field("address"))
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil || len(raw) != common.AddressLength {
		return common.Address{}, errors.E(errors.InvalidFieldValue, errors.Field("address"),
			errors.Errorf("%q", s))
	}
	return common.BytesToAddress(raw), nil
}

// Decode parses a keyfile.
func Decode(b []byte) (*KeyFile, error) {
	kf := new(KeyFile)
	if err := kf.UnmarshalJSON(b); err != nil {
		return nil, err
	}
	return kf, nil
}
