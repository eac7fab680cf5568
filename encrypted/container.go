// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package encrypted implements the at-rest container protecting every secret
// held by the vault.
//
// A container is produced by deriving a 32 byte key from a passphrase using
// one of the kdf package functions.  The first 16 bytes key AES-128-CTR and
// the remaining 16 bytes are the MAC key.  The MAC is
// keccak256(macKey || ciphertext), which is the scheme used by version 3 web3
// keyfiles, so the JSON encoding of a container can be read by other Ethereum
// tooling.
package encrypted

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"io"

	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/kdf"
	"github.com/ethereum/go-ethereum/crypto"
)

// Cipher identifies the symmetric cipher of a container.
type Cipher string

// AES128CTR is the only supported cipher.
const AES128CTR Cipher = "aes-128-ctr"

const (
	keyLen = 32
	ivLen  = aes.BlockSize
)

// Container is an encrypted secret together with everything besides the
// passphrase needed to decrypt it.  Containers are immutable once created.
type Container struct {
	Cipher     Cipher
	IV         []byte
	KDF        kdf.Params
	Ciphertext []byte
	MAC        []byte
}

// Config selects the key derivation function and its cost for new containers.
type Config struct {
	KDF              kdf.Algorithm
	ScryptN          uint32
	Pbkdf2Iterations uint32

	// Rand is the entropy source for salts and IVs.  crypto/rand is used
	// when nil.
	Rand io.Reader
}

// DefaultConfig returns the configuration used when Encrypt is called with a
// nil config: scrypt with the standard web3 cost factors.
func DefaultConfig() *Config {
	return &Config{
		KDF:              kdf.Scrypt,
		ScryptN:          kdf.DefaultScryptN,
		Pbkdf2Iterations: kdf.DefaultPbkdf2Iterations,
	}
}

func (cfg *Config) newParams(rnd io.Reader) (kdf.Params, error) {
	switch cfg.KDF {
	case kdf.Scrypt, "":
		n := cfg.ScryptN
		if n == 0 {
			n = kdf.DefaultScryptN
		}
		return kdf.NewScryptParams(rnd, n)
	case kdf.Pbkdf2:
		c := cfg.Pbkdf2Iterations
		if c == 0 {
			c = kdf.DefaultPbkdf2Iterations
		}
		return kdf.NewPbkdf2Params(rnd, c)
	case kdf.Argon2id:
		return kdf.NewArgon2idParams(rnd)
	default:
		return nil, errors.E(errors.UnsupportedData, errors.Field("kdf"),
			errors.Errorf("unknown kdf %q", cfg.KDF))
	}
}

// Encrypt protects plaintext with passphrase.  The only failure modes are an
// entropy source failure and an invalid configuration.
func Encrypt(plaintext, passphrase []byte, cfg *Config) (*Container, error) {
	const op errors.Op = "encrypted.Encrypt"
	if cfg == nil {
		cfg = DefaultConfig()
	}
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.Reader
	}

	params, err := cfg.newParams(rnd)
	if err != nil {
		return nil, errors.E(op, err)
	}
	c, err := seal(plaintext, passphrase, params, rnd)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return c, nil
}

func seal(plaintext, passphrase []byte, params kdf.Params, rnd io.Reader) (*Container, error) {
	const op errors.Op = "encrypted.seal"
	iv := make([]byte, ivLen)
	if _, err := io.ReadFull(rnd, iv); err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	key, err := params.DeriveKey(passphrase, keyLen)
	if err != nil {
		return nil, errors.E(op, err)
	}
	defer zero(key)

	ciphertext, err := aesCTR(key[:16], iv, plaintext)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return &Container{
		Cipher:     AES128CTR,
		IV:         iv,
		KDF:        params,
		Ciphertext: ciphertext,
		MAC:        mac(key[16:], ciphertext),
	}, nil
}

// Validate checks that the container is complete and uses supported
// algorithms.  It does not verify the MAC.
func (c *Container) Validate() error {
	const op errors.Op = "encrypted.Validate"
	switch {
	case c.Cipher != AES128CTR:
		return errors.E(op, errors.UnsupportedData, errors.Field("cipher"),
			errors.Errorf("cipher %q", c.Cipher))
	case len(c.IV) != ivLen:
		return errors.E(op, errors.InvalidFieldValue, errors.Field("iv"))
	case c.KDF == nil:
		return errors.E(op, errors.FieldIsEmpty, errors.Field("kdf"))
	case len(c.MAC) != 32:
		return errors.E(op, errors.InvalidFieldValue, errors.Field("mac"))
	}
	return c.KDF.Validate()
}

// Decrypt verifies the MAC using a key derived from passphrase and returns the
// plaintext.  A MAC mismatch is reported as errors.Passphrase and no
// decryption is attempted.
func (c *Container) Decrypt(passphrase []byte) ([]byte, error) {
	const op errors.Op = "encrypted.Decrypt"
	if err := c.Validate(); err != nil {
		return nil, errors.E(op, err)
	}
	key, err := c.KDF.DeriveKey(passphrase, keyLen)
	if err != nil {
		return nil, errors.E(op, err)
	}
	defer zero(key)

	if subtle.ConstantTimeCompare(mac(key[16:], c.Ciphertext), c.MAC) != 1 {
		return nil, errors.E(op, errors.Passphrase, errors.Field("mac"))
	}
	plaintext, err := aesCTR(key[:16], c.IV, c.Ciphertext)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return plaintext, nil
}

func mac(macKey, ciphertext []byte) []byte {
	return crypto.Keccak256(macKey, ciphertext)
}

func aesCTR(key, iv, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.E(errors.Crypto, err)
	}
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)
	return out, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
