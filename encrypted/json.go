// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package encrypted

import (
	"encoding/hex"
	"encoding/json"

	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/kdf"
)

type cryptoJSON struct {
	Cipher       string           `json:"cipher"`
	CipherText   string           `json:"ciphertext"`
	CipherParams cipherparamsJSON `json:"cipherparams"`
	KDF          string           `json:"kdf"`
	KDFParams    json.RawMessage  `json:"kdfparams"`
	MAC          string           `json:"mac"`
}

type cipherparamsJSON struct {
	IV string `json:"iv"`
}

type scryptJSON struct {
	DKLen int    `json:"dklen"`
	N     uint32 `json:"n"`
	R     uint32 `json:"r"`
	P     uint32 `json:"p"`
	Salt  string `json:"salt"`
}

type pbkdf2JSON struct {
	DKLen int    `json:"dklen"`
	C     uint32 `json:"c"`
	PRF   string `json:"prf"`
	Salt  string `json:"salt"`
}

type argon2idJSON struct {
	DKLen   int    `json:"dklen"`
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"`
	Threads uint8  `json:"threads"`
	Salt    string `json:"salt"`
}

const prfHmacSHA256 = "hmac-sha256"

// MarshalJSON encodes the container as the "crypto" object of a web3 keyfile.
func (c *Container) MarshalJSON() ([]byte, error) {
	const op errors.Op = "encrypted.MarshalJSON"
	var params interface{}
	switch p := c.KDF.(type) {
	case *kdf.ScryptParams:
		params = scryptJSON{DKLen: keyLen, N: p.N, R: p.R, P: p.P,
			Salt: hex.EncodeToString(p.Salt)}
	case *kdf.Pbkdf2Params:
		params = pbkdf2JSON{DKLen: keyLen, C: p.Iterations, PRF: prfHmacSHA256,
			Salt: hex.EncodeToString(p.Salt)}
	case *kdf.Argon2idParams:
		params = argon2idJSON{DKLen: keyLen, Time: p.Time, Memory: p.Memory,
			Threads: p.Threads, Salt: hex.EncodeToString(p.Salt[:])}
	default:
		return nil, errors.E(op, errors.FieldIsEmpty, errors.Field("kdf"))
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, errors.E(op, errors.Bug, err)
	}
	return json.Marshal(cryptoJSON{
		Cipher:       string(c.Cipher),
		CipherText:   hex.EncodeToString(c.Ciphertext),
		CipherParams: cipherparamsJSON{IV: hex.EncodeToString(c.IV)},
		KDF:          string(c.KDF.Algorithm()),
		KDFParams:    rawParams,
		MAC:          hex.EncodeToString(c.MAC),
	})
}

// UnmarshalJSON decodes a web3 keyfile "crypto" object.  Every field must be
// present and well formed; the offending field is named in the error.
func (c *Container) UnmarshalJSON(b []byte) error {
	const op errors.Op = "encrypted.UnmarshalJSON"
	var j cryptoJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return errors.E(op, errors.InvalidFieldValue, errors.Field("crypto"), err)
	}

	var out Container
	var err error
	out.Cipher = Cipher(j.Cipher)
	// An empty plaintext encrypts to an empty ciphertext.
	if out.Ciphertext, err = hex.DecodeString(j.CipherText); err != nil {
		return errors.E(op, errors.InvalidFieldValue, errors.Field("ciphertext"), err)
	}
	if out.IV, err = decodeHex("iv", j.CipherParams.IV); err != nil {
		return errors.E(op, err)
	}
	if out.MAC, err = decodeHex("mac", j.MAC); err != nil {
		return errors.E(op, err)
	}
	if len(j.KDFParams) == 0 {
		return errors.E(op, errors.FieldIsEmpty, errors.Field("kdfparams"))
	}

	switch kdf.Algorithm(j.KDF) {
	case kdf.Scrypt:
		var p scryptJSON
		if err := json.Unmarshal(j.KDFParams, &p); err != nil {
			return errors.E(op, errors.InvalidFieldValue, errors.Field("kdfparams"), err)
		}
		if err := checkDKLen(p.DKLen); err != nil {
			return errors.E(op, err)
		}
		salt, err := decodeHex("salt", p.Salt)
		if err != nil {
			return errors.E(op, err)
		}
		out.KDF = &kdf.ScryptParams{Salt: salt, N: p.N, R: p.R, P: p.P}
	case kdf.Pbkdf2:
		var p pbkdf2JSON
		if err := json.Unmarshal(j.KDFParams, &p); err != nil {
			return errors.E(op, errors.InvalidFieldValue, errors.Field("kdfparams"), err)
		}
		if err := checkDKLen(p.DKLen); err != nil {
			return errors.E(op, err)
		}
		if p.PRF != prfHmacSHA256 {
			return errors.E(op, errors.UnsupportedData, errors.Field("prf"),
				errors.Errorf("prf %q", p.PRF))
		}
		salt, err := decodeHex("salt", p.Salt)
		if err != nil {
			return errors.E(op, err)
		}
		out.KDF = &kdf.Pbkdf2Params{Salt: salt, Iterations: p.C}
	case kdf.Argon2id:
		var p argon2idJSON
		if err := json.Unmarshal(j.KDFParams, &p); err != nil {
			return errors.E(op, errors.InvalidFieldValue, errors.Field("kdfparams"), err)
		}
		if err := checkDKLen(p.DKLen); err != nil {
			return errors.E(op, err)
		}
		salt, err := decodeHex("salt", p.Salt)
		if err != nil {
			return errors.E(op, err)
		}
		a := &kdf.Argon2idParams{Time: p.Time, Memory: p.Memory, Threads: p.Threads}
		if len(salt) != len(a.Salt) {
			return errors.E(op, errors.InvalidFieldValue, errors.Field("salt"))
		}
		copy(a.Salt[:], salt)
		out.KDF = a
	case "":
		return errors.E(op, errors.FieldIsEmpty, errors.Field("kdf"))
	default:
		return errors.E(op, errors.UnsupportedData, errors.Field("kdf"),
			errors.Errorf("kdf %q", j.KDF))
	}

	if err := out.Validate(); err != nil {
		return errors.E(op, err)
	}
	*c = out
	return nil
}

func decodeHex(field, s string) ([]byte, error) {
	if s == "" {
		return nil, errors.E(errors.FieldIsEmpty, errors.Field(field))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.E(errors.InvalidFieldValue, errors.Field(field), err)
	}
	return b, nil
}

func checkDKLen(n int) error {
	if n != keyLen {
		return errors.E(errors.UnsupportedData, errors.Field("dklen"),
			errors.Errorf("derived key length %d", n))
	}
	return nil
}
