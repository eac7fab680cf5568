// Copyright (c) 2020 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package kdf implements the passphrase key derivation functions selectable
// for encrypted containers: Argon2id, scrypt and PBKDF2-HMAC-SHA256.
package kdf

import (
	"crypto/sha256"
	"encoding/binary"
	"io"
	"runtime"

	"github.com/decred/keyvault/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// Algorithm identifies a key derivation function.
type Algorithm string

// Supported key derivation functions.  The string values are the identifiers
// used in the web3 keyfile "kdf" field.
const (
	Scrypt   Algorithm = "scrypt"
	Pbkdf2   Algorithm = "pbkdf2"
	Argon2id Algorithm = "argon2id"
)

// SaltLen is the length of randomly generated salts.
const SaltLen = 32

// Upper bounds on cost factors.  Parameters read from keyfiles written by
// other tools are checked against them before any key is derived.
const (
	// MaxMemory is the largest memory in bytes a derivation may require.
	MaxMemory uint64 = 2 << 30

	MaxScryptP         = 64
	MaxArgon2idTime    = 64
	MaxPbkdf2Iteration = 1 << 26
)

// Params is implemented by the parameter set of every supported KDF.
type Params interface {
	// Algorithm returns the KDF implemented by the parameters.
	Algorithm() Algorithm

	// Validate checks the cost factors, rejecting values that are either
	// impossible to evaluate, weaker than the KDF permits, or too costly to
	// evaluate on an ordinary machine.
	Validate() error

	// DeriveKey derives a key of keyLen bytes from password.
	DeriveKey(password []byte, keyLen uint32) ([]byte, error)
}

// Argon2idParams describes the difficulty and parallelism requirements for the
// Argon2id KDF.
type Argon2idParams struct {
	Salt    [16]byte
	Time    uint32
	Memory  uint32
	Threads uint8
}

// NewArgon2idParams returns the minimum recommended parameters for the Argon2id
// KDF with a random salt.  Randomness is read from rand.
//
// The time and memory parameters may be increased by an application when stronger
// security requirements are desired, and additional memory is available.
func NewArgon2idParams(rand io.Reader) (*Argon2idParams, error) {
	ncpu := runtime.NumCPU()
	if ncpu > 255 {
		ncpu = 255
	}
	p := &Argon2idParams{
		Time:    1,
		Memory:  256 * 1024, // 256 MiB
		Threads: uint8(ncpu),
	}
	if _, err := io.ReadFull(rand, p.Salt[:]); err != nil {
		return nil, errors.E(errors.Op("kdf.NewArgon2idParams"), errors.Crypto, err)
	}
	return p, nil
}

// Argon2idMarshaledLen is the length of the marshaled Argon2id parameters.
const Argon2idMarshaledLen = 25

// MarshalBinary implements encoding.BinaryMarshaler.
// The returned byte slice has length Argon2idMarshaledLen.
func (p *Argon2idParams) MarshalBinary() ([]byte, error) {
	b := make([]byte, Argon2idMarshaledLen)
	copy(b, p.Salt[:])
	binary.LittleEndian.PutUint32(b[16:16+4], p.Time)
	binary.LittleEndian.PutUint32(b[16+4:16+8], p.Memory)
	b[16+8] = p.Threads
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (p *Argon2idParams) UnmarshalBinary(data []byte) error {
	if len(data) != Argon2idMarshaledLen {
		return errors.E(errors.Op("kdf.UnmarshalBinary"), errors.InvalidFieldValue,
			errors.Field("argon2id"), "invalid marshaled Argon2id parameters")
	}
	copy(p.Salt[:], data)
	p.Time = binary.LittleEndian.Uint32(data[16:])
	p.Memory = binary.LittleEndian.Uint32(data[16+4:])
	p.Threads = data[16+8]
	return nil
}

// Algorithm implements Params.
func (p *Argon2idParams) Algorithm() Algorithm { return Argon2id }

// Validate implements Params.
func (p *Argon2idParams) Validate() error {
	const op errors.Op = "kdf.Argon2idParams.Validate"
	switch {
	case p.Time == 0:
		return errors.E(op, errors.InvalidFieldValue, errors.Field("time"))
	case p.Threads == 0:
		return errors.E(op, errors.InvalidFieldValue, errors.Field("threads"))
	case p.Time > MaxArgon2idTime:
		return errors.E(op, errors.InvalidFieldValue, errors.Field("time"),
			errors.Errorf("time %d exceeds %d", p.Time, MaxArgon2idTime))
	case p.Memory < 8*uint32(p.Threads):
		return errors.E(op, errors.InvalidFieldValue, errors.Field("memory"))
	case uint64(p.Memory)*1024 > MaxMemory:
		return errors.E(op, errors.InvalidFieldValue, errors.Field("memory"),
			errors.Errorf("memory %d KiB exceeds %d bytes", p.Memory, MaxMemory))
	}
	return nil
}

// DeriveKey implements Params.
func (p *Argon2idParams) DeriveKey(password []byte, keyLen uint32) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	defer runtime.GC()
	return argon2.IDKey(password, p.Salt[:], p.Time, p.Memory, p.Threads, keyLen), nil
}

// ScryptParams describes the cost factors of the scrypt KDF.
type ScryptParams struct {
	Salt []byte
	N    uint32
	R    uint32
	P    uint32
}

// Default scrypt cost factors, matching the "standard" web3 keyfile settings.
const (
	DefaultScryptN = 1 << 18
	DefaultScryptR = 8
	DefaultScryptP = 1
)

// NewScryptParams returns scrypt parameters with the given cost factor n and a
// random salt read from rand.
func NewScryptParams(rand io.Reader, n uint32) (*ScryptParams, error) {
	p := &ScryptParams{
		Salt: make([]byte, SaltLen),
		N:    n,
		R:    DefaultScryptR,
		P:    DefaultScryptP,
	}
	if _, err := io.ReadFull(rand, p.Salt); err != nil {
		return nil, errors.E(errors.Op("kdf.NewScryptParams"), errors.Crypto, err)
	}
	return p, nil
}

// Algorithm implements Params.
func (p *ScryptParams) Algorithm() Algorithm { return Scrypt }

// Validate implements Params.
func (p *ScryptParams) Validate() error {
	const op errors.Op = "kdf.ScryptParams.Validate"
	switch {
	case p.N <= 1 || p.N&(p.N-1) != 0:
		return errors.E(op, errors.InvalidFieldValue, errors.Field("n"))
	case p.R == 0:
		return errors.E(op, errors.InvalidFieldValue, errors.Field("r"))
	case p.P == 0 || p.P > MaxScryptP:
		return errors.E(op, errors.InvalidFieldValue, errors.Field("p"))
	case uint64(p.R)*uint64(p.P) >= 1<<30:
		return errors.E(op, errors.InvalidFieldValue, errors.Field("p"))
	case 128*uint64(p.R)*uint64(p.N) > MaxMemory || 128*uint64(p.R)*uint64(p.P) > MaxMemory:
		return errors.E(op, errors.InvalidFieldValue, errors.Field("n"),
			errors.Errorf("n=%d r=%d p=%d exceeds %d bytes", p.N, p.R, p.P, MaxMemory))
	case len(p.Salt) == 0:
		return errors.E(op, errors.FieldIsEmpty, errors.Field("salt"))
	}
	return nil
}

// DeriveKey implements Params.
func (p *ScryptParams) DeriveKey(password []byte, keyLen uint32) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	key, err := scrypt.Key(password, p.Salt, int(p.N), int(p.R), int(p.P), int(keyLen))
	if err != nil {
		return nil, errors.E(errors.Op("kdf.ScryptParams.DeriveKey"), errors.Crypto, err)
	}
	return key, nil
}

// Pbkdf2Params describes PBKDF2 with HMAC-SHA256 as the pseudo random function.
type Pbkdf2Params struct {
	Salt       []byte
	Iterations uint32
}

// DefaultPbkdf2Iterations is the iteration count used for new PBKDF2 params.
const DefaultPbkdf2Iterations = 262144

// NewPbkdf2Params returns PBKDF2 parameters with a random salt read from rand.
func NewPbkdf2Params(rand io.Reader, iterations uint32) (*Pbkdf2Params, error) {
	p := &Pbkdf2Params{
		Salt:       make([]byte, SaltLen),
		Iterations: iterations,
	}
	if _, err := io.ReadFull(rand, p.Salt); err != nil {
		return nil, errors.E(errors.Op("kdf.NewPbkdf2Params"), errors.Crypto, err)
	}
	return p, nil
}

// Algorithm implements Params.
func (p *Pbkdf2Params) Algorithm() Algorithm { return Pbkdf2 }

// Validate implements Params.
func (p *Pbkdf2Params) Validate() error {
	const op errors.Op = "kdf.Pbkdf2Params.Validate"
	if p.Iterations == 0 || p.Iterations > MaxPbkdf2Iteration {
		return errors.E(op, errors.InvalidFieldValue, errors.Field("c"))
	}
	if len(p.Salt) == 0 {
		return errors.E(op, errors.FieldIsEmpty, errors.Field("salt"))
	}
	return nil
}

// DeriveKey implements Params.
func (p *Pbkdf2Params) DeriveKey(password []byte, keyLen uint32) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return pbkdf2.Key(password, p.Salt, int(p.Iterations), int(keyLen), sha256.New), nil
}
