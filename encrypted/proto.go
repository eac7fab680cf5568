// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package encrypted

import (
	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/internal/pbwire"
	"github.com/decred/keyvault/kdf"
	"google.golang.org/protobuf/encoding/protowire"
)

// Protobuf field numbers of the Encrypted message.
//
//	message Encrypted {
//	    CipherType type = 1;
//	    bytes secret = 2;
//	    bytes iv = 3;
//	    Mac mac = 4;
//	    oneof kdf {
//	        ScryptKdf kdf_scrypt = 5;
//	        Pbkdf2 kdf_pbkdf = 6;
//	        Argon2 kdf_argon2 = 7;
//	    }
//	}
const (
	fieldType   protowire.Number = 1
	fieldSecret protowire.Number = 2
	fieldIV     protowire.Number = 3
	fieldMac    protowire.Number = 4
	fieldScrypt protowire.Number = 5
	fieldPbkdf2 protowire.Number = 6
	fieldArgon2 protowire.Number = 7
)

const (
	cipherTypeAES128CTR = 1
	macTypeWeb3         = 1
	prfTypeHmacSHA256   = 1
)

// AppendProto appends the protobuf encoding of the container to b.
func (c *Container) AppendProto(b []byte) ([]byte, error) {
	const op errors.Op = "encrypted.AppendProto"
	if err := c.Validate(); err != nil {
		return nil, errors.E(op, err)
	}

	b = pbwire.AppendUint(b, fieldType, cipherTypeAES128CTR)
	b = pbwire.AppendBytes(b, fieldSecret, c.Ciphertext)
	b = pbwire.AppendBytes(b, fieldIV, c.IV)

	var m []byte
	m = pbwire.AppendUint(m, 1, macTypeWeb3)
	m = pbwire.AppendBytes(m, 2, c.MAC)
	b = pbwire.AppendMessage(b, fieldMac, m)

	var k []byte
	switch p := c.KDF.(type) {
	case *kdf.ScryptParams:
		k = pbwire.AppendUint(k, 1, keyLen)
		k = pbwire.AppendBytes(k, 2, p.Salt)
		k = pbwire.AppendUint(k, 3, uint64(p.N))
		k = pbwire.AppendUint(k, 4, uint64(p.R))
		k = pbwire.AppendUint(k, 5, uint64(p.P))
		b = pbwire.AppendMessage(b, fieldScrypt, k)
	case *kdf.Pbkdf2Params:
		k = pbwire.AppendUint(k, 1, keyLen)
		k = pbwire.AppendUint(k, 2, uint64(p.Iterations))
		k = pbwire.AppendUint(k, 3, prfTypeHmacSHA256)
		k = pbwire.AppendBytes(k, 4, p.Salt)
		b = pbwire.AppendMessage(b, fieldPbkdf2, k)
	case *kdf.Argon2idParams:
		k = pbwire.AppendUint(k, 1, uint64(p.Memory))
		k = pbwire.AppendUint(k, 2, uint64(p.Time))
		k = pbwire.AppendUint(k, 3, uint64(p.Threads))
		k = pbwire.AppendBytes(k, 4, p.Salt[:])
		b = pbwire.AppendMessage(b, fieldArgon2, k)
	default:
		return nil, errors.E(op, errors.Bug, "unhandled kdf parameters")
	}
	return b, nil
}

// DecodeProto decodes a protobuf encoded Encrypted message.
func DecodeProto(b []byte) (*Container, error) {
	const op errors.Op = "encrypted.DecodeProto"
	m, err := pbwire.Parse(b)
	if err != nil {
		return nil, errors.E(op, errors.Field("encrypted"), err)
	}

	switch m.Uint(fieldType) {
	case cipherTypeAES128CTR:
	case 0:
		return nil, errors.E(op, errors.FieldIsEmpty, errors.Field("type"))
	default:
		return nil, errors.E(op, errors.UnsupportedData, errors.Field("type"))
	}
	c := &Container{
		Cipher:     AES128CTR,
		Ciphertext: m.Bytes(fieldSecret),
		IV:         m.Bytes(fieldIV),
	}
	if len(c.IV) == 0 {
		return nil, errors.E(op, errors.FieldIsEmpty, errors.Field("iv"))
	}

	if !m.Has(fieldMac) {
		return nil, errors.E(op, errors.FieldIsEmpty, errors.Field("mac"))
	}
	mac, err := pbwire.Parse(m.Bytes(fieldMac))
	if err != nil {
		return nil, errors.E(op, errors.Field("mac"), err)
	}
	if mac.Uint(1) != macTypeWeb3 {
		return nil, errors.E(op, errors.UnsupportedData, errors.Field("mac.type"))
	}
	c.MAC = mac.Bytes(2)

	switch {
	case m.Has(fieldScrypt):
		k, err := pbwire.Parse(m.Bytes(fieldScrypt))
		if err != nil {
			return nil, errors.E(op, errors.Field("kdf_scrypt"), err)
		}
		if err := checkDKLen(int(k.Uint(1))); err != nil {
			return nil, errors.E(op, err)
		}
		c.KDF = &kdf.ScryptParams{
			Salt: k.Bytes(2),
			N:    uint32(k.Uint(3)),
			R:    uint32(k.Uint(4)),
			P:    uint32(k.Uint(5)),
		}
	case m.Has(fieldPbkdf2):
		k, err := pbwire.Parse(m.Bytes(fieldPbkdf2))
		if err != nil {
			return nil, errors.E(op, errors.Field("kdf_pbkdf"), err)
		}
		if err := checkDKLen(int(k.Uint(1))); err != nil {
			return nil, errors.E(op, err)
		}
		if k.Uint(3) != prfTypeHmacSHA256 {
			return nil, errors.E(op, errors.UnsupportedData, errors.Field("prf"))
		}
		c.KDF = &kdf.Pbkdf2Params{
			Iterations: uint32(k.Uint(2)),
			Salt:       k.Bytes(4),
		}
	case m.Has(fieldArgon2):
		k, err := pbwire.Parse(m.Bytes(fieldArgon2))
		if err != nil {
			return nil, errors.E(op, errors.Field("kdf_argon2"), err)
		}
		p := &kdf.Argon2idParams{
			Memory:  uint32(k.Uint(1)),
			Time:    uint32(k.Uint(2)),
			Threads: uint8(k.Uint(3)),
		}
		salt := k.Bytes(4)
		if len(salt) != len(p.Salt) {
			return nil, errors.E(op, errors.InvalidFieldValue, errors.Field("salt"))
		}
		copy(p.Salt[:], salt)
		c.KDF = p
	default:
		return nil, errors.E(op, errors.FieldIsEmpty, errors.Field("kdf"))
	}

	if err := c.Validate(); err != nil {
		return nil, errors.E(op, err)
	}
	return c, nil
}
