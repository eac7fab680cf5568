// Copyright (c) 2016 The Decred developers
// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"fmt"
	"strings"

	"github.com/decred/keyvault/kdf"
)

// KDFFlag describes the key derivation function of new encrypted containers
// and implements the flags.Marshaler and Unmarshaler interfaces so it can be
// used as a config struct field.
type KDFFlag struct {
	alg kdf.Algorithm
}

// NewKDFFlag creates a KDFFlag with a default algorithm.
func NewKDFFlag(defaultValue kdf.Algorithm) *KDFFlag {
	return &KDFFlag{defaultValue}
}

// Algorithm returns the selected key derivation function.
func (f *KDFFlag) Algorithm() kdf.Algorithm {
	return f.alg
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (f *KDFFlag) MarshalFlag() (string, error) {
	return string(f.alg), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (f *KDFFlag) UnmarshalFlag(value string) error {
	switch alg := kdf.Algorithm(strings.ToLower(value)); alg {
	case kdf.Scrypt, kdf.Pbkdf2, kdf.Argon2id:
		f.alg = alg
		return nil
	default:
		return fmt.Errorf("unrecognized key derivation function %q", value)
	}
}
